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

const clipboardTimeout = 10 * time.Second

// ReadClipboardTool returns the current text clipboard contents.
type ReadClipboardTool struct {
	tools.BaseTool
}

// NewReadClipboardTool creates a new read_clipboard tool.
func NewReadClipboardTool() *ReadClipboardTool {
	return &ReadClipboardTool{
		BaseTool: tools.BaseTool{
			ToolName:        "read_clipboard",
			ToolDescription: "Read the current text content of the system clipboard.",
		},
	}
}

// Execute reads the clipboard.
func (t *ReadClipboardTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()

	cmd, err := clipboardReadCommand(execCtx)
	if err != nil {
		return tools.NewErrorResult(err.Error()), nil
	}

	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return tools.NewErrorResult(fmt.Sprintf("failed to read clipboard: %v", err)), nil
	}

	out := stdout.String()
	if out == "" {
		return tools.NewSuccessResult("(clipboard is empty)"), nil
	}
	return tools.NewSuccessResult(out), nil
}

// WriteClipboardArgs defines the parameters for the write_clipboard tool.
type WriteClipboardArgs struct {
	Text string `json:"text" jsonschema:"description=Text to place on the clipboard,required"`
}

// WriteClipboardTool replaces the clipboard contents with the given text.
type WriteClipboardTool struct {
	tools.BaseTool
}

// NewWriteClipboardTool creates a new write_clipboard tool.
func NewWriteClipboardTool() *WriteClipboardTool {
	return &WriteClipboardTool{
		BaseTool: tools.BaseTool{
			ToolName:        "write_clipboard",
			ToolDescription: "Replace the system clipboard with the given text. Combine with a paste key press to enter long or special-character text reliably.",
			ToolParameters:  tools.BuildSchema(WriteClipboardArgs{}),
		},
	}
}

// Execute writes the clipboard.
func (t *WriteClipboardTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	text, ok := args["text"].(string)
	if !ok {
		return tools.ToolResult{}, tools.NewInvalidArgsError(t.Name(), "text is required", nil)
	}

	execCtx, cancel := context.WithTimeout(ctx, clipboardTimeout)
	defer cancel()

	cmd, err := clipboardWriteCommand(execCtx)
	if err != nil {
		return tools.NewErrorResult(err.Error()), nil
	}

	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return tools.NewErrorResult(fmt.Sprintf("failed to write clipboard: %v", err)), nil
	}

	return tools.NewSuccessResult(fmt.Sprintf("copied %d characters", len(text))), nil
}

func clipboardReadCommand(ctx context.Context) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "pbpaste"), nil
	case "linux":
		if _, err := exec.LookPath("xclip"); err == nil {
			return exec.CommandContext(ctx, "xclip", "-selection", "clipboard", "-o"), nil
		}
		if _, err := exec.LookPath("xsel"); err == nil {
			return exec.CommandContext(ctx, "xsel", "--clipboard", "--output"), nil
		}
		return nil, fmt.Errorf("no clipboard tool found (install xclip or xsel)")
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}

func clipboardWriteCommand(ctx context.Context) (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.CommandContext(ctx, "pbcopy"), nil
	case "linux":
		if _, err := exec.LookPath("xclip"); err == nil {
			return exec.CommandContext(ctx, "xclip", "-selection", "clipboard"), nil
		}
		if _, err := exec.LookPath("xsel"); err == nil {
			return exec.CommandContext(ctx, "xsel", "--clipboard", "--input"), nil
		}
		return nil, fmt.Errorf("no clipboard tool found (install xclip or xsel)")
	default:
		return nil, fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}
