package agent

import (
	"fmt"

	"pilot/internal/input"
	"pilot/internal/screen"
)

// maxActionsPerBatch bounds one ExecuteNow batch.
const maxActionsPerBatch = 5

// ValidationError names the rule a DecisionBundle violated.
type ValidationError struct {
	Name   string
	Detail string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("invalid decision: %s (%s)", e.Name, e.Detail)
	}
	return "invalid decision: " + e.Name
}

func invalid(name, format string, args ...any) error {
	return &ValidationError{Name: name, Detail: fmt.Sprintf(format, args...)}
}

// Validate checks a parsed DecisionBundle against the decision contract.
// Accepted bundles satisfy isGoalComplete XOR (executeNow != nil).
func Validate(b *DecisionBundle) error {
	if b.Thought == "" {
		return &ValidationError{Name: "empty_thought"}
	}

	if b.IsGoalComplete {
		if b.CompletionSummary == "" {
			return &ValidationError{Name: "missing_summary"}
		}
		return nil
	}

	if b.ExecuteNow == nil {
		return &ValidationError{Name: "missing_execute_now"}
	}
	if len(b.ExecuteNow.Actions) == 0 {
		return &ValidationError{Name: "no_actions"}
	}
	if len(b.ExecuteNow.Actions) > maxActionsPerBatch {
		return invalid("too_many_actions", "%d actions, max %d",
			len(b.ExecuteNow.Actions), maxActionsPerBatch)
	}

	for i, action := range b.ExecuteNow.Actions {
		if err := validateAction(i, action); err != nil {
			return err
		}
	}

	return nil
}

func validateAction(i int, a Action) error {
	if a.Type == "" {
		return invalid("missing_action_type", "action %d has no type", i)
	}

	switch a.Type {
	case ActionClick, ActionDoubleClick, ActionRightClick:
		if err := checkCoords(i, a.Coords); err != nil {
			return err
		}
	case ActionType:
		if a.Text == "" {
			return invalid("missing_text", "action %d", i)
		}
	case ActionKey:
		if a.Key == "" || !input.IsValidKey(a.Key) {
			return invalid("bad_key", "action %d: %q", i, a.Key)
		}
	case ActionScroll:
		if a.Amount == nil {
			return invalid("missing_amount", "action %d", i)
		}
	case ActionDrag:
		if coordsInvalid(a.Coords) || coordsInvalid(a.ToCoords) {
			return invalid("bad_drag", "action %d", i)
		}
	case ActionWait:
		// duration 0 degenerates to a no-op wait; tolerated.
	default:
		return invalid("missing_action_type", "action %d has unknown type %q", i, a.Type)
	}

	return nil
}

func checkCoords(i int, coords []int) error {
	if coordsInvalid(coords) {
		return invalid("bad_coords", "action %d: %v", i, coords)
	}
	return nil
}

func coordsInvalid(coords []int) bool {
	if len(coords) != 2 {
		return true
	}
	for _, c := range coords {
		if c < 0 || c > screen.NormalizedMax {
			return true
		}
	}
	return false
}
