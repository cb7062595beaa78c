package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

// systemPromptBase is the static role prompt. The task-context injection
// and active skill knowledge are appended per iteration.
const systemPromptBase = `You are a desktop automation agent. Each turn you receive a screenshot of the user's screen and must decide the next step toward the goal.

The screenshot is annotated: a red cross marks the current mouse position and a green ring marks where the previous click landed. Use them to verify that your last actions had the intended effect before planning new ones.

Coordinates: address the screen with integers from 0 to 1000 on both axes, where (0,0) is the top-left corner and (1000,1000) the bottom-right, regardless of the actual resolution.

Rules:
- First verify the result of the previous round against the screenshot, then decide.
- Batch only actions whose outcome is predictable without looking (for example: type, tab, type). Anything that changes the screen — a click, a scroll, pressing enter — ends the batch; you will see the result next turn.
- At most 5 actions per batch.
- When the goal is visibly achieved, set is_goal_complete to true and describe the outcome in completion_summary. Do not keep acting after the goal is done.
- If something failed, do not blindly repeat it. Change the approach.

Respond with a single JSON object matching the decision schema. No prose outside the JSON.`

// decisionSchemaJSON is the JSON schema enforced on the model's output
// when the provider supports structured responses.
const decisionSchemaJSON = `{
  "type": "object",
  "properties": {
    "thought": {
      "type": "string",
      "description": "Analysis of the screenshot, verification of the previous round, and reasoning for the next step"
    },
    "last_action_result": {
      "type": "string",
      "enum": ["success", "failed", "partial", "none"]
    },
    "execute_now": {
      "type": ["object", "null"],
      "properties": {
        "intent": {"type": "string"},
        "actions": {
          "type": "array",
          "minItems": 1,
          "maxItems": 5,
          "items": {
            "type": "object",
            "properties": {
              "type": {
                "type": "string",
                "enum": ["click", "doubleClick", "rightClick", "type", "key", "scroll", "drag", "wait"]
              },
              "coords": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 1000}},
              "to_coords": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 1000}},
              "text": {"type": "string"},
              "key": {"type": "string"},
              "amount": {"type": "integer"},
              "duration": {"type": "integer"}
            },
            "required": ["type"]
          }
        }
      },
      "required": ["intent", "actions"]
    },
    "is_goal_complete": {"type": "boolean"},
    "completion_summary": {"type": "string"}
  },
  "required": ["thought", "last_action_result", "is_goal_complete"]
}`

// DecisionSchema returns the schema as raw JSON for the response format.
func DecisionSchema() json.RawMessage {
	return json.RawMessage(decisionSchemaJSON)
}

// buildSystemPrompt assembles the per-iteration system prompt.
func buildSystemPrompt(tc *TaskContext) string {
	var b strings.Builder
	b.WriteString(systemPromptBase)
	b.WriteString("\n\n")
	b.WriteString(tc.Injection())
	return b.String()
}

// buildRoundPrompt builds the user-turn text for this iteration. The first
// round asks for analysis; later rounds embed the last-round summary for
// verification; recovery mode demands a changed strategy.
func buildRoundPrompt(tc *TaskContext) string {
	if tc.TotalIterations <= 1 {
		return fmt.Sprintf("Goal: %s\n\nAnalyze the screenshot and decide the first step.", tc.GlobalGoal)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n\n", tc.GlobalGoal)

	if tc.LastRoundSummary != "" {
		b.WriteString("The previous round executed:\n")
		b.WriteString(tc.LastRoundSummary)
		b.WriteString("\n\nVerify the result on this screenshot, then continue — or correct course if it did not work.")
	} else {
		b.WriteString("Continue from the current screen state.")
	}

	if tc.InRecoveryMode {
		b.WriteString("\n\nIMPORTANT: previous attempts keep failing. Use a different strategy this round.")
		if tc.LastError != "" {
			fmt.Fprintf(&b, " Last error: %s", tc.LastError)
		}
	}

	return b.String()
}
