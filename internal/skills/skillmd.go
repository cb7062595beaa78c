package skills

import (
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// frontmatterRegex matches YAML front-matter delimited by --- lines.
var frontmatterRegex = regexp.MustCompile(`(?s)^---\s*\n(.+?)\n---\s*\n?`)

// frontmatter is the YAML section of a SKILL.md file.
type frontmatter struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description"`
	Category    string      `yaml:"category"`
	Version     string      `yaml:"version"`
	Author      string      `yaml:"author"`
	Command     string      `yaml:"command"`
	Runtime     string      `yaml:"runtime"`
	Parameters  []Parameter `yaml:"parameters"`
}

// ParseSkillMD parses a SKILL.md file into a Skill.
func ParseSkillMD(path string) (*Skill, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{Path: path, Message: "read failed", Cause: err}
	}
	return ParseSkillMDContent(string(content), path)
}

// ParseSkillMDContent parses SKILL.md content into a Skill. The body is
// everything after the front-matter block.
func ParseSkillMDContent(content, path string) (*Skill, error) {
	matches := frontmatterRegex.FindStringSubmatch(content)
	if len(matches) < 2 {
		return nil, &ParseError{Path: path, Message: "missing front-matter"}
	}

	var fm frontmatter
	if err := yaml.Unmarshal([]byte(matches[1]), &fm); err != nil {
		return nil, &ParseError{Path: path, Message: "bad front-matter yaml", Cause: err}
	}

	if fm.Name == "" {
		return nil, &ParseError{Path: path, Message: "name is required"}
	}
	if fm.Description == "" {
		return nil, &ParseError{Path: path, Message: "description is required"}
	}
	if fm.Command == "" {
		return nil, &ParseError{Path: path, Message: "command is required"}
	}

	runtime := fm.Runtime
	switch runtime {
	case "", RuntimeShell, RuntimeJS:
	default:
		return nil, &ParseError{Path: path, Message: "unknown runtime: " + runtime}
	}
	if runtime == "" {
		runtime = RuntimeShell
	}

	idx := frontmatterRegex.FindStringIndex(content)
	body := strings.TrimSpace(content[idx[1]:])

	return &Skill{
		Name:        fm.Name,
		Description: fm.Description,
		Category:    fm.Category,
		Version:     fm.Version,
		Author:      fm.Author,
		Command:     fm.Command,
		Runtime:     runtime,
		Parameters:  fm.Parameters,
		Body:        body,
		Path:        path,
		LoadedAt:    time.Now(),
	}, nil
}
