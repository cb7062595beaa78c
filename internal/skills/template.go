package skills

import (
	"fmt"
	"regexp"
	"strings"
)

// placeholderRegex matches {{paramName}} placeholders in command templates.
var placeholderRegex = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// safeArgRegex covers values that need no quoting. Same safe set as
// shlex.quote.
var safeArgRegex = regexp.MustCompile(`^[A-Za-z0-9_@%+=:,./-]+$`)

// RenderCommand substitutes call arguments into the skill's command
// template. Missing arguments fall back to the parameter default; a
// required parameter with no value is an error. Substituted values are
// shell-quoted; only values from the safe character set pass through bare.
func (s *Skill) RenderCommand(args map[string]any) (string, error) {
	values := make(map[string]string, len(s.Parameters))

	for _, p := range s.Parameters {
		if v, ok := args[p.Name]; ok && v != nil {
			values[p.Name] = quoteArg(formatArg(v))
			continue
		}
		if p.Default != nil {
			values[p.Name] = quoteArg(formatArg(p.Default))
			continue
		}
		if p.Required {
			return "", fmt.Errorf("skill %s: missing required parameter %q", s.ToolName(), p.Name)
		}
		values[p.Name] = ""
	}

	var missing string
	rendered := placeholderRegex.ReplaceAllStringFunc(s.Command, func(m string) string {
		name := placeholderRegex.FindStringSubmatch(m)[1]
		v, ok := values[name]
		if !ok {
			// Placeholder with no declared parameter: also check raw args
			// so undeclared-but-supplied values still work.
			if raw, found := args[name]; found {
				return quoteArg(formatArg(raw))
			}
			missing = name
			return m
		}
		return v
	})

	if missing != "" {
		return "", fmt.Errorf("skill %s: template references undeclared parameter %q", s.ToolName(), missing)
	}

	return rendered, nil
}

// quoteArg single-quotes a value for the shell, POSIX style. Safe values
// stay bare so templates that carry their own quotes keep working.
func quoteArg(s string) string {
	if s == "" || safeArgRegex.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func formatArg(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case bool:
		if val {
			return "true"
		}
		return "false"
	case float64:
		// JSON numbers arrive as float64; render integers without a dot.
		if val == float64(int64(val)) {
			return fmt.Sprintf("%d", int64(val))
		}
		return fmt.Sprintf("%g", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}
