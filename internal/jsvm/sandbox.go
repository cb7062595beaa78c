package jsvm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
)

// SandboxConfig holds configuration for the sandbox environment.
type SandboxConfig struct {
	// Timeout is the maximum execution time for scripts.
	Timeout time.Duration
}

// DefaultSandboxConfig returns default sandbox configuration.
func DefaultSandboxConfig() SandboxConfig {
	return SandboxConfig{
		Timeout: 30 * time.Second,
	}
}

// Sandbox confines one script execution: it arms the interrupt watchdog
// and installs a console that captures log output instead of writing to
// the process streams.
type Sandbox struct {
	config SandboxConfig

	mu         sync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
	logs       []string
}

// NewSandbox creates a new sandbox with the given configuration.
func NewSandbox(cfg SandboxConfig) *Sandbox {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSandboxConfig().Timeout
	}
	return &Sandbox{config: cfg}
}

// Setup configures the VM for one execution and returns the bounded context.
func (s *Sandbox) Setup(vm *goja.Runtime, ctx context.Context) (context.Context, error) {
	s.mu.Lock()
	execCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	s.cancelFunc = cancel
	s.done = make(chan struct{})
	done := s.done
	s.logs = nil
	s.mu.Unlock()

	go func() {
		select {
		case <-execCtx.Done():
			vm.Interrupt("execution interrupted: " + execCtx.Err().Error())
		case <-done:
			return
		}
	}()

	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if err := s.installConsole(vm); err != nil {
		cancel()
		return nil, err
	}

	return execCtx, nil
}

// Cleanup removes injected objects and cancels any pending interrupt.
func (s *Sandbox) Cleanup(vm *goja.Runtime) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}

	_ = vm.GlobalObject().Delete("console")
	vm.ClearInterrupt()
}

// Logs returns the console output captured during execution.
func (s *Sandbox) Logs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.logs))
	copy(out, s.logs)
	return out
}

func (s *Sandbox) installConsole(vm *goja.Runtime) error {
	console := vm.NewObject()
	capture := func(level string) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, formatValue(arg))
			}
			s.mu.Lock()
			s.logs = append(s.logs, fmt.Sprintf("[%s] %s", level, strings.Join(parts, " ")))
			s.mu.Unlock()
			return goja.Undefined()
		}
	}

	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		if err := console.Set(level, capture(level)); err != nil {
			return err
		}
	}
	return vm.Set("console", console)
}

func formatValue(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) {
		return "undefined"
	}
	if goja.IsNull(v) {
		return "null"
	}
	return fmt.Sprintf("%v", v.Export())
}
