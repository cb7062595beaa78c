// Package agent implements the perception-decision-action core: the
// decision loop, the DecisionBundle contract, the batch executor and the
// per-goal task context.
package agent

import (
	"fmt"
	"strings"
)

// Action types in the model-facing vocabulary.
const (
	ActionClick       = "click"
	ActionDoubleClick = "doubleClick"
	ActionRightClick  = "rightClick"
	ActionType        = "type"
	ActionKey         = "key"
	ActionScroll      = "scroll"
	ActionDrag        = "drag"
	ActionWait        = "wait"
)

// LastActionResult values the model reports about the previous round.
const (
	ResultSuccess = "success"
	ResultFailed  = "failed"
	ResultPartial = "partial"
	ResultNone    = "none"
)

// DecisionBundle 模型每轮返回的结构化决策
type DecisionBundle struct {
	Thought           string      `json:"thought"`
	LastActionResult  string      `json:"last_action_result"`
	ExecuteNow        *ExecuteNow `json:"execute_now"`
	IsGoalComplete    bool        `json:"is_goal_complete"`
	CompletionSummary string      `json:"completion_summary,omitempty"`
}

// ExecuteNow is a named batch of 1..5 ordered actions to run before the
// next observation.
type ExecuteNow struct {
	Intent  string   `json:"intent"`
	Actions []Action `json:"actions"`
}

// Action is a tagged variant over the action vocabulary. Coordinates are
// in the model's normalized [0,1000] space on both axes.
type Action struct {
	Type     string `json:"type"`
	Coords   []int  `json:"coords,omitempty"`
	ToCoords []int  `json:"to_coords,omitempty"`
	Text     string `json:"text,omitempty"`
	Key      string `json:"key,omitempty"`
	Amount   *int   `json:"amount,omitempty"`
	Duration int    `json:"duration,omitempty"`
}

// IsBoundary reports whether the action is presumed to change the screen
// unpredictably: clicks, scrolls, and submitting with enter. A boundary
// action that is not last in its batch forces a re-observation.
func (a Action) IsBoundary() bool {
	switch a.Type {
	case ActionClick, ActionDoubleClick, ActionRightClick, ActionScroll:
		return true
	case ActionKey:
		return strings.EqualFold(a.Key, "enter")
	default:
		return false
	}
}

// Describe returns a short human-readable description of the action, used
// in events, logs and the last-round summary.
func (a Action) Describe() string {
	switch a.Type {
	case ActionClick, ActionDoubleClick, ActionRightClick:
		if len(a.Coords) == 2 {
			return fmt.Sprintf("%s (%d, %d)", a.Type, a.Coords[0], a.Coords[1])
		}
		return a.Type
	case ActionType:
		text := a.Text
		if len(text) > 30 {
			text = text[:30] + "…"
		}
		return fmt.Sprintf("type %q", text)
	case ActionKey:
		return "key " + a.Key
	case ActionScroll:
		if a.Amount != nil {
			return fmt.Sprintf("scroll %d", *a.Amount)
		}
		return "scroll"
	case ActionDrag:
		if len(a.Coords) == 2 && len(a.ToCoords) == 2 {
			return fmt.Sprintf("drag (%d, %d) -> (%d, %d)",
				a.Coords[0], a.Coords[1], a.ToCoords[0], a.ToCoords[1])
		}
		return "drag"
	case ActionWait:
		return fmt.Sprintf("wait %dms", a.Duration)
	default:
		return a.Type
	}
}

// ActionResult records the outcome of one executed action.
type ActionResult struct {
	Action  Action `json:"action"`
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// BatchResult aggregates the outcome of one ExecuteNow batch.
type BatchResult struct {
	Intent        string         `json:"intent"`
	Results       []ActionResult `json:"results"`
	ExecutedCount int            `json:"executed_count"`
	AllSuccess    bool           `json:"all_success"`
	HitBoundary   bool           `json:"hit_boundary"`
}

// ResultStrings renders each action's outcome for the round summary.
func (r *BatchResult) ResultStrings() []string {
	out := make([]string, 0, len(r.Results))
	for _, ar := range r.Results {
		status := "ok"
		if !ar.Success {
			status = "failed: " + ar.Message
		}
		out = append(out, fmt.Sprintf("%s: %s", ar.Action.Describe(), status))
	}
	return out
}
