// Package errors provides the classified error primitives used across themebuilder.
//
// Every failure the pipeline can surface is a ClassifiedError carrying a category,
// a severity and structured context. The CLI adapter maps categories to process
// exit codes so operators and CI scripts can tell a missing option apart from a
// failed build or a configuration file that could not be restored.
//
// Example usage:
//
//	err := errors.BuildFailure("build subprocess failed").
//		WithCause(runErr).
//		WithContext("theme", "acme").
//		WithContext("exit_code", 1).
//		Build()
package errors
