package skills

import (
	"errors"
	"fmt"
)

// Sentinel errors for the skills package.
var (
	// ErrInvalidSkill is returned when a SKILL.md file is malformed or
	// missing required front-matter fields.
	ErrInvalidSkill = errors.New("invalid skill")

	// ErrSkillNotFound is returned when a requested skill is not loaded.
	ErrSkillNotFound = errors.New("skill not found")
)

// ParseError reports a SKILL.md file that could not be parsed.
type ParseError struct {
	Path    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("skill %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("skill %s: %s", e.Path, e.Message)
}

// Is allows errors.Is to match against ErrInvalidSkill.
func (e *ParseError) Is(target error) bool {
	return target == ErrInvalidSkill
}

// Unwrap returns the underlying cause or sentinel error.
func (e *ParseError) Unwrap() error {
	if e.Cause != nil {
		return e.Cause
	}
	return ErrInvalidSkill
}
