package jsvm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dop251/goja"
)

// RuntimeConfig holds configuration for the Runtime.
type RuntimeConfig struct {
	PoolConfig    PoolConfig
	SandboxConfig SandboxConfig
}

// DefaultRuntimeConfig returns default runtime configuration.
func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		PoolConfig:    DefaultPoolConfig(),
		SandboxConfig: DefaultSandboxConfig(),
	}
}

// Runtime provides JavaScript execution for skills.
type Runtime struct {
	pool   *VMPool
	config RuntimeConfig
	closed bool
}

// NewRuntime creates a new JavaScript runtime.
func NewRuntime(cfg RuntimeConfig) *Runtime {
	return &Runtime{
		pool:   NewVMPool(cfg.PoolConfig),
		config: cfg,
	}
}

// ExecuteResult holds the result of script execution.
type ExecuteResult struct {
	// Value is the return value of the script.
	Value interface{}
	// Logs contains console output captured during execution.
	Logs []string
}

// Execute runs a JavaScript script and returns the result.
func (r *Runtime) Execute(ctx context.Context, script, scriptName string) (*ExecuteResult, error) {
	if r.closed {
		return nil, fmt.Errorf("runtime is closed")
	}

	vm, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer r.pool.Release(vm)

	sandbox := NewSandbox(r.config.SandboxConfig)
	execCtx, err := sandbox.Setup(vm, ctx)
	if err != nil {
		return nil, err
	}
	defer sandbox.Cleanup(vm)

	val, err := vm.RunString(script)
	if err != nil {
		return nil, wrapExecutionError(err, scriptName)
	}

	select {
	case <-execCtx.Done():
		return nil, &ExecutionError{Script: scriptName, Cause: execCtx.Err()}
	default:
	}

	return &ExecuteResult{
		Value: exportValue(val),
		Logs:  sandbox.Logs(),
	}, nil
}

// ExecuteSkill runs a skill script with `args` bound as a global object and
// returns the script's final value rendered as a string (JSON for objects).
func (r *Runtime) ExecuteSkill(ctx context.Context, script, scriptName string, args map[string]any) (string, []string, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode args: %w", err)
	}

	wrapped := fmt.Sprintf("var args = %s;\n%s", argsJSON, script)
	result, err := r.Execute(ctx, wrapped, scriptName)
	if err != nil {
		return "", nil, err
	}

	return renderValue(result.Value), result.Logs, nil
}

// Close shuts down the runtime and releases resources.
func (r *Runtime) Close() error {
	r.closed = true
	return r.pool.Close()
}

// wrapExecutionError converts goja errors to structured errors.
func wrapExecutionError(err error, scriptName string) error {
	if interrupted, ok := err.(*goja.InterruptedError); ok {
		return &ExecutionError{
			Script: scriptName,
			Cause:  fmt.Errorf("interrupted: %v", interrupted.Value()),
		}
	}

	if exception, ok := err.(*goja.Exception); ok {
		return &ExecutionError{
			Script: scriptName,
			Cause:  fmt.Errorf("exception: %s", exception.String()),
		}
	}

	if compileErr, ok := err.(*goja.CompilerSyntaxError); ok {
		return &ScriptSyntaxError{
			Script:  scriptName,
			Message: compileErr.Error(),
		}
	}

	return &ExecutionError{Script: scriptName, Cause: err}
}

// exportValue converts goja values to Go values.
func exportValue(val goja.Value) interface{} {
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return nil
	}
	return val.Export()
}

func renderValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	}
}
