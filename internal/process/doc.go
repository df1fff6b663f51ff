// Package process runs the external build tool as a subprocess.
//
// A Runner streams the child's output line by line (indented, so it reads as
// nested under the pipeline's own log lines) or keeps it silent, always captures
// stdout and stderr, and resolves either when the child exits or, when a
// WaitForMatch pattern is given, as soon as the pattern shows up in its output.
// A nonzero exit is reported as an *ExitError carrying the captured output.
//
// Cancelling the context sends the child an interrupt and kills it after the
// grace period, so an operator interrupt never leaves a build running behind
// the pipeline's back.
package process
