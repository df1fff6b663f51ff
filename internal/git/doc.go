// Package git records which commit of the workspace a run was built from.
package git
