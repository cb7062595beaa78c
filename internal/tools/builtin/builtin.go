// Package builtin provides the built-in desktop tools exposed to the model.
package builtin

import (
	"pilot/internal/tools"
)

// RegisterBuiltins registers all built-in tools to the given registry.
func RegisterBuiltins(r *tools.Registry) error {
	builtins := []tools.Tool{
		NewRunCommandTool(),
		NewOpenApplicationTool(),
		NewListWindowsTool(),
		NewReadClipboardTool(),
		NewWriteClipboardTool(),
	}

	for _, tool := range builtins {
		if err := r.Register(tool); err != nil {
			return err
		}
	}

	return nil
}

// MustRegisterBuiltins registers all built-in tools and panics on error.
func MustRegisterBuiltins(r *tools.Registry) {
	if err := RegisterBuiltins(r); err != nil {
		panic(err)
	}
}

// NewRegistryWithBuiltins creates a new registry with all built-in tools registered.
func NewRegistryWithBuiltins() *tools.Registry {
	r := tools.NewRegistry()
	MustRegisterBuiltins(r)
	return r
}

// ToolNames returns the names of all built-in tools.
func ToolNames() []string {
	return []string{
		"run_command",
		"open_application",
		"list_windows",
		"read_clipboard",
		"write_clipboard",
	}
}
