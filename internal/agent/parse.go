package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports model output that could not be parsed into a
// DecisionBundle.
type ParseError struct {
	Preview string
	Cause   error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse decision from %q: %v", e.Preview, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ParseDecision extracts a DecisionBundle from raw model output. The
// parser tolerates ```json fences and surrounding prose; validation is a
// separate step (Validate).
func ParseDecision(raw string) (*DecisionBundle, error) {
	jsonStr, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}

	var bundle DecisionBundle
	if err := json.Unmarshal([]byte(jsonStr), &bundle); err != nil {
		return nil, &ParseError{Preview: preview(jsonStr), Cause: err}
	}

	return &bundle, nil
}

// extractJSON finds the JSON object in model output: the whole string, the
// contents of a markdown code fence, or the first-to-last brace span.
func extractJSON(raw string) (string, error) {
	candidate := stripCodeFence(raw)

	if json.Valid([]byte(candidate)) {
		return candidate, nil
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start != -1 && end > start {
		span := candidate[start : end+1]
		if json.Valid([]byte(span)) {
			return span, nil
		}
	}

	return "", &ParseError{Preview: preview(raw), Cause: fmt.Errorf("no JSON object found")}
}

// stripCodeFence removes a surrounding ```json ... ``` fence if present.
func stripCodeFence(raw string) string {
	trimmed := strings.TrimSpace(raw)

	if strings.HasPrefix(trimmed, "```json") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```json"))
	} else if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimPrefix(trimmed, "```"))
	}

	if strings.HasSuffix(trimmed, "```") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, "```"))
	}

	return trimmed
}

func preview(s string) string {
	if len(s) > 100 {
		return s[:100] + "..."
	}
	return s
}
