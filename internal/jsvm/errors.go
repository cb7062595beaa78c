// Package jsvm provides a pooled JavaScript execution engine based on goja,
// used to run skills declared with `runtime: js`.
package jsvm

import (
	"errors"
	"fmt"
)

// Sentinel errors for JS VM operations.
var (
	// ErrTimeout indicates script execution exceeded the timeout limit.
	ErrTimeout = errors.New("jsvm: execution timeout")

	// ErrVMPoolExhausted indicates no VM instances available in the pool.
	ErrVMPoolExhausted = errors.New("jsvm: vm pool exhausted")
)

// ScriptSyntaxError indicates a JavaScript syntax error.
type ScriptSyntaxError struct {
	Script  string
	Message string
}

func (e *ScriptSyntaxError) Error() string {
	if e.Script != "" {
		return fmt.Sprintf("jsvm: syntax error in %s: %s", e.Script, e.Message)
	}
	return fmt.Sprintf("jsvm: syntax error: %s", e.Message)
}

// ExecutionError indicates a runtime failure while executing a script.
type ExecutionError struct {
	Script string
	Cause  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("jsvm: execution failed in %s: %v", e.Script, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}
