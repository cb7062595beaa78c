package jsvm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	r := NewRuntime(DefaultRuntimeConfig())
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestExecute(t *testing.T) {
	r := newTestRuntime(t)

	t.Run("returns value", func(t *testing.T) {
		result, err := r.Execute(context.Background(), "1 + 2", "add.js")
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if result.Value != int64(3) {
			t.Errorf("expected 3, got %v (%T)", result.Value, result.Value)
		}
	})

	t.Run("captures console output", func(t *testing.T) {
		result, err := r.Execute(context.Background(), `console.log("hello", 42); "done"`, "log.js")
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if len(result.Logs) != 1 || result.Logs[0] != "[log] hello 42" {
			t.Errorf("unexpected logs: %v", result.Logs)
		}
		if result.Value != "done" {
			t.Errorf("expected 'done', got %v", result.Value)
		}
	})

	t.Run("syntax error", func(t *testing.T) {
		_, err := r.Execute(context.Background(), "function {", "bad.js")
		var syntaxErr *ScriptSyntaxError
		if !errors.As(err, &syntaxErr) {
			t.Fatalf("expected ScriptSyntaxError, got %v", err)
		}
		if syntaxErr.Script != "bad.js" {
			t.Errorf("expected script 'bad.js', got %q", syntaxErr.Script)
		}
	})

	t.Run("exception", func(t *testing.T) {
		_, err := r.Execute(context.Background(), `throw new Error("boom")`, "throw.js")
		var execErr *ExecutionError
		if !errors.As(err, &execErr) {
			t.Fatalf("expected ExecutionError, got %v", err)
		}
		if !strings.Contains(execErr.Error(), "boom") {
			t.Errorf("expected error to mention 'boom', got %v", execErr)
		}
	})

	t.Run("infinite loop interrupted", func(t *testing.T) {
		cfg := DefaultRuntimeConfig()
		cfg.SandboxConfig.Timeout = 100 * time.Millisecond
		rt := NewRuntime(cfg)
		defer rt.Close()

		start := time.Now()
		_, err := rt.Execute(context.Background(), "while(true){}", "loop.js")
		if err == nil {
			t.Fatal("expected timeout error")
		}
		if time.Since(start) > 5*time.Second {
			t.Error("interrupt took too long")
		}
	})
}

func TestExecuteSkill(t *testing.T) {
	r := newTestRuntime(t)

	t.Run("args bound as global", func(t *testing.T) {
		out, _, err := r.ExecuteSkill(context.Background(),
			`"Hello, " + args.name`, "greet.js",
			map[string]any{"name": "world"})
		if err != nil {
			t.Fatalf("ExecuteSkill failed: %v", err)
		}
		if out != "Hello, world" {
			t.Errorf("expected 'Hello, world', got %q", out)
		}
	})

	t.Run("object result rendered as JSON", func(t *testing.T) {
		out, _, err := r.ExecuteSkill(context.Background(),
			`({count: args.n})`, "obj.js",
			map[string]any{"n": 2})
		if err != nil {
			t.Fatalf("ExecuteSkill failed: %v", err)
		}
		if out != `{"count":2}` {
			t.Errorf("expected JSON object, got %q", out)
		}
	})
}

func TestRuntimeClosed(t *testing.T) {
	r := NewRuntime(DefaultRuntimeConfig())
	_ = r.Close()
	if _, err := r.Execute(context.Background(), "1", "x.js"); err == nil {
		t.Fatal("expected error after Close")
	}
}
