package skills

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	goruntime "runtime"
	"strings"
	"time"

	"pilot/internal/jsvm"
	"pilot/internal/tools"
)

// DefaultToolTimeout bounds a single skill invocation.
const DefaultToolTimeout = 30 * time.Second

// SkillTool adapts a Skill to the tools.Tool interface. Shell skills render
// their command template and run it through the system shell; js skills
// execute their script in the jsvm sandbox with the call arguments bound.
type SkillTool struct {
	skill   *Skill
	runtime *jsvm.Runtime
	timeout time.Duration
	wait    time.Duration
}

// NewSkillTool creates a tool for the given skill. runtime may be nil if
// the skill does not use the js runtime. wait is the post-execution pause
// before control returns to the loop.
func NewSkillTool(skill *Skill, runtime *jsvm.Runtime, timeout, wait time.Duration) *SkillTool {
	if timeout <= 0 {
		timeout = DefaultToolTimeout
	}
	return &SkillTool{
		skill:   skill,
		runtime: runtime,
		timeout: timeout,
		wait:    wait,
	}
}

// Skill returns the underlying skill.
func (t *SkillTool) Skill() *Skill {
	return t.skill
}

// Name returns the snake_case tool name.
func (t *SkillTool) Name() string {
	return t.skill.ToolName()
}

// Description returns the skill description.
func (t *SkillTool) Description() string {
	return t.skill.Description
}

// Parameters returns the JSON Schema for the skill's parameters.
func (t *SkillTool) Parameters() map[string]any {
	return t.skill.ParamSchema()
}

// Execute runs the skill with the given arguments.
func (t *SkillTool) Execute(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	execCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var result tools.ToolResult
	var err error
	switch t.skill.Runtime {
	case RuntimeJS:
		result, err = t.executeJS(execCtx, args)
	default:
		result, err = t.executeShell(execCtx, args)
	}
	if err != nil {
		return result, err
	}

	// Give the desktop time to settle before the next observation.
	if t.wait > 0 {
		select {
		case <-time.After(t.wait):
		case <-ctx.Done():
		}
	}

	return result, nil
}

func (t *SkillTool) executeShell(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	command, err := t.skill.RenderCommand(args)
	if err != nil {
		return tools.ToolResult{}, tools.NewInvalidArgsError(t.Name(), err.Error(), nil)
	}

	var cmd *exec.Cmd
	if goruntime.GOOS == "windows" {
		cmd = exec.CommandContext(ctx, "cmd", "/C", command)
	} else {
		cmd = exec.CommandContext(ctx, "sh", "-c", command)
	}
	cmd.Dir = filepath.Dir(t.skill.Path)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()

	output := strings.TrimSpace(stdout.String())
	if stderr.Len() > 0 {
		if output != "" {
			output += "\n"
		}
		output += "STDERR:\n" + strings.TrimSpace(stderr.String())
	}

	if runErr != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return tools.ToolResult{}, tools.NewToolTimeoutError(t.Name(), t.timeout.String())
		}
		if output != "" {
			output += "\n"
		}
		return tools.NewErrorResult(output + fmt.Sprintf("Exit error: %v", runErr)), nil
	}

	if output == "" {
		output = "(no output)"
	}
	return tools.NewSuccessResult(output), nil
}

func (t *SkillTool) executeJS(ctx context.Context, args map[string]any) (tools.ToolResult, error) {
	if t.runtime == nil {
		return tools.NewErrorResult("js runtime not available"), nil
	}

	// For js skills the command names the script file next to SKILL.md.
	scriptPath := filepath.Join(filepath.Dir(t.skill.Path), t.skill.Command)
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		return tools.NewErrorResult(fmt.Sprintf("failed to read script: %v", err)), nil
	}

	out, logs, err := t.runtime.ExecuteSkill(ctx, string(script), filepath.Base(scriptPath), args)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return tools.ToolResult{}, tools.NewToolTimeoutError(t.Name(), t.timeout.String())
		}
		return tools.NewErrorResult(fmt.Sprintf("execution error: %v", err)), nil
	}

	if out == "" && len(logs) > 0 {
		out = strings.Join(logs, "\n")
	}
	if out == "" {
		out = "(no output)"
	}
	return tools.NewSuccessResult(out), nil
}

// Tools builds a tools.Tool per loaded skill from the current snapshot.
func (m *Manager) Tools(runtime *jsvm.Runtime, timeout, wait time.Duration) []tools.Tool {
	skills := m.List()
	result := make([]tools.Tool, 0, len(skills))
	for _, s := range skills {
		result = append(result, NewSkillTool(s, runtime, timeout, wait))
	}
	return result
}
