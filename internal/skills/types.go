// Package skills loads user-authored SKILL.md files and exposes them to the
// model as function-calling tools with prompt knowledge injection.
package skills

import (
	"strings"
	"time"
	"unicode"
)

// Runtime values accepted in SKILL.md front-matter.
const (
	RuntimeShell = "shell"
	RuntimeJS    = "js"
)

// Skill is a parsed SKILL.md: front-matter fields plus the Markdown body.
type Skill struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Category    string      `json:"category,omitempty"`
	Version     string      `json:"version,omitempty"`
	Author      string      `json:"author,omitempty"`
	Command     string      `json:"command"`
	Runtime     string      `json:"runtime,omitempty"`
	Parameters  []Parameter `json:"parameters,omitempty"`

	// Body is the Markdown after the front-matter. It is injected into the
	// system prompt while the skill is active.
	Body string `json:"-"`

	Path     string    `json:"-"`
	LoadedAt time.Time `json:"-"`
}

// Parameter describes one parameter of a skill command template.
type Parameter struct {
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description"`
	Default     any      `json:"default,omitempty" yaml:"default"`
	Required    bool     `json:"required,omitempty" yaml:"required"`
	Type        string   `json:"type,omitempty" yaml:"type"`
	Enum        []string `json:"enum,omitempty" yaml:"enum"`
}

// ToolName returns the function-calling name for this skill.
func (s *Skill) ToolName() string {
	return ToSnakeCase(s.Name)
}

// SchemaType returns the JSON Schema type for the parameter. An explicit
// type wins; otherwise it is inferred from the default value's shape.
func (p Parameter) SchemaType() string {
	if p.Type != "" {
		return p.Type
	}
	switch p.Default.(type) {
	case bool:
		return "boolean"
	case int, int64:
		return "integer"
	case float32, float64:
		return "number"
	default:
		return "string"
	}
}

// ParamSchema builds the JSON Schema object for the skill's parameters.
func (s *Skill) ParamSchema() map[string]any {
	properties := make(map[string]any, len(s.Parameters))
	required := []string{}

	for _, p := range s.Parameters {
		prop := map[string]any{
			"type": p.SchemaType(),
		}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return map[string]any{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

// ToSnakeCase converts a skill name to a snake_case tool name. The
// conversion is idempotent: applying it twice yields the same result.
func ToSnakeCase(name string) string {
	var b strings.Builder
	var prev rune

	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsUpper(r):
			if prev != 0 && prev != '_' && !unicode.IsUpper(prev) {
				b.WriteRune('_')
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			// Separators collapse to a single underscore.
			if prev != '_' && b.Len() > 0 {
				b.WriteRune('_')
				r = '_'
			} else {
				continue
			}
		}
		prev = r
	}

	return strings.Trim(b.String(), "_")
}
