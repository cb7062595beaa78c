package builtin

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"pilot/internal/tools"
)

const appToolTimeout = 15 * time.Second

// OpenApplicationArgs defines the parameters for the open_application tool.
type OpenApplicationArgs struct {
	Name string `json:"name" jsonschema:"description=Application name as shown in the launcher (e.g. Firefox or TextEdit),required"`
}

// OpenApplicationTool launches a desktop application by name.
type OpenApplicationTool struct {
	tools.BaseTool
}

// NewOpenApplicationTool creates a new open_application tool.
func NewOpenApplicationTool() *OpenApplicationTool {
	return &OpenApplicationTool{
		BaseTool: tools.BaseTool{
			ToolName:        "open_application",
			ToolDescription: "Launch a desktop application by name. Prefer this over clicking through menus when the goal requires an application that is not already open.",
			ToolParameters:  tools.BuildSchema(OpenApplicationArgs{}),
		},
	}
}

// Execute launches the application.
func (t *OpenApplicationTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return tools.ToolResult{}, tools.NewInvalidArgsError(t.Name(), "name is required", nil)
	}

	execCtx, cancel := context.WithTimeout(ctx, appToolTimeout)
	defer cancel()

	var attempts [][]string
	switch runtime.GOOS {
	case "darwin":
		attempts = [][]string{{"open", "-a", name}}
	case "linux":
		// gtk-launch wants the .desktop id; fall back to treating the
		// name as a command, then to xdg-open for file/URL arguments.
		attempts = [][]string{
			{"gtk-launch", strings.ToLower(name)},
			{strings.ToLower(name)},
			{"xdg-open", name},
		}
	default:
		return tools.NewErrorResult(fmt.Sprintf("unsupported platform: %s", runtime.GOOS)), nil
	}

	var lastErr error
	for _, argv := range attempts {
		if _, err := exec.LookPath(argv[0]); err != nil {
			lastErr = err
			continue
		}
		cmd := exec.CommandContext(execCtx, argv[0], argv[1:]...)
		if err := cmd.Start(); err != nil {
			lastErr = err
			continue
		}
		// Launchers detach; don't wait for the application to exit.
		go func() { _ = cmd.Wait() }()
		return tools.NewSuccessResult(fmt.Sprintf("launched %s", name)), nil
	}

	return tools.NewErrorResult(fmt.Sprintf("failed to launch %s: %v", name, lastErr)), nil
}

// ListWindowsTool lists the titles of open windows.
type ListWindowsTool struct {
	tools.BaseTool
}

// NewListWindowsTool creates a new list_windows tool.
func NewListWindowsTool() *ListWindowsTool {
	return &ListWindowsTool{
		BaseTool: tools.BaseTool{
			ToolName:        "list_windows",
			ToolDescription: "List the titles of currently open windows. Use this to find out which applications are running before deciding where to click.",
		},
	}
}

// Execute lists open windows.
func (t *ListWindowsTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, appToolTimeout)
	defer cancel()

	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		script := `tell application "System Events" to get name of every process whose visible is true`
		cmd = exec.CommandContext(execCtx, "osascript", "-e", script)
	case "linux":
		if _, err := exec.LookPath("wmctrl"); err != nil {
			return tools.NewErrorResult("wmctrl not installed; cannot list windows"), nil
		}
		cmd = exec.CommandContext(execCtx, "wmctrl", "-l")
	default:
		return tools.NewErrorResult(fmt.Sprintf("unsupported platform: %s", runtime.GOOS)), nil
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return tools.NewErrorResult(fmt.Sprintf("failed to list windows: %v", err)), nil
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return tools.NewSuccessResult("(no windows)"), nil
	}
	return tools.NewSuccessResult(out), nil
}
