package agent

import (
	"fmt"
	"strings"
	"time"
)

// recentActionsCap bounds the recent-actions ring.
const recentActionsCap = 10

// recoveryThreshold 连续失败达到该次数后进入恢复模式
const recoveryThreshold = 5

// CompletedIntent records one finished round's intent and outcome.
type CompletedIntent struct {
	Intent  string
	Success bool
	Result  string
}

// RecordedAction is one entry in the recent-actions ring.
type RecordedAction struct {
	Action  Action
	Success bool
	Result  string
}

// TaskContext is the per-goal working memory injected into every decision.
// It is owned by exactly one ExecuteGoal invocation and never shared.
type TaskContext struct {
	GlobalGoal       string
	CurrentIntent    string
	CompletedIntents []CompletedIntent
	RecentActions    []RecordedAction
	LastRoundSummary string
	LastError        string

	TotalIterations     int
	TotalActions        int
	SuccessfulActions   int
	FailedActions       int
	ConsecutiveFailures int
	InRecoveryMode      bool

	// RecoveryThreshold 连续失败进入恢复模式的阈值
	RecoveryThreshold int

	StartTime time.Time
	Deadline  time.Time

	// skillKnowledge holds the bodies of skills invoked during this goal,
	// injected as Active Skill knowledge for the remaining iterations.
	skillKnowledge []string
	skillNames     map[string]bool
}

// NewTaskContext creates the context for one goal. A zero deadline means
// no wall-clock bound.
func NewTaskContext(goal string, deadline time.Duration) *TaskContext {
	tc := &TaskContext{
		GlobalGoal:        goal,
		StartTime:         time.Now(),
		RecoveryThreshold: recoveryThreshold,
		skillNames:        make(map[string]bool),
	}
	if deadline > 0 {
		tc.Deadline = tc.StartTime.Add(deadline)
	}
	return tc
}

// StartIntent marks the intent of the round about to execute.
func (tc *TaskContext) StartIntent(intent string) {
	tc.CurrentIntent = intent
}

// CompleteIntent appends the finished round to the intent history. Success
// clears the consecutive-failure counter; failure increments it and
// records the error.
func (tc *TaskContext) CompleteIntent(success bool, result string) {
	if tc.CurrentIntent != "" {
		tc.CompletedIntents = append(tc.CompletedIntents, CompletedIntent{
			Intent:  tc.CurrentIntent,
			Success: success,
			Result:  result,
		})
		tc.CurrentIntent = ""
	}

	if success {
		tc.ConsecutiveFailures = 0
		tc.InRecoveryMode = false
	} else {
		tc.ConsecutiveFailures++
		if result != "" {
			tc.LastError = result
		}
		tc.InRecoveryMode = tc.ShouldEnterRecoveryMode(tc.RecoveryThreshold)
	}
}

// RecordAction appends to the bounded recent-actions ring and updates the
// action counters.
func (tc *TaskContext) RecordAction(action Action, success bool, result string) {
	tc.RecentActions = append(tc.RecentActions, RecordedAction{
		Action:  action,
		Success: success,
		Result:  result,
	})
	if len(tc.RecentActions) > recentActionsCap {
		tc.RecentActions = tc.RecentActions[len(tc.RecentActions)-recentActionsCap:]
	}

	tc.TotalActions++
	if success {
		tc.SuccessfulActions++
	} else {
		tc.FailedActions++
	}
}

// RecordRoundActions digests one executed batch into the last-round
// summary injected into the next prompt.
func (tc *TaskContext) RecordRoundActions(en *ExecuteNow, results []string) {
	var b strings.Builder
	fmt.Fprintf(&b, "Intent: %s\n", en.Intent)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r)
	}
	if len(results) < len(en.Actions) {
		fmt.Fprintf(&b, "(%d remaining actions were discarded at a boundary)\n",
			len(en.Actions)-len(results))
	}
	tc.LastRoundSummary = strings.TrimRight(b.String(), "\n")
}

// IncrementIteration advances the iteration counter.
func (tc *TaskContext) IncrementIteration() {
	tc.TotalIterations++
}

// ShouldEnterRecoveryMode reports whether the failure streak reached the
// threshold.
func (tc *TaskContext) ShouldEnterRecoveryMode(threshold int) bool {
	return tc.ConsecutiveFailures >= threshold
}

// AddSkillKnowledge installs a skill's Markdown body as active knowledge
// for the remainder of the goal. Duplicate installs are ignored.
func (tc *TaskContext) AddSkillKnowledge(name, body string) {
	if body == "" || tc.skillNames[name] {
		return
	}
	tc.skillNames[name] = true
	tc.skillKnowledge = append(tc.skillKnowledge,
		fmt.Sprintf("### Skill: %s\n\n%s", name, body))
}

// Injection renders the Markdown block appended to the system prompt.
func (tc *TaskContext) Injection() string {
	var b strings.Builder

	b.WriteString("## Current Task\n\n")
	fmt.Fprintf(&b, "Goal: %s\n", tc.GlobalGoal)
	fmt.Fprintf(&b, "Iteration: %d\n", tc.TotalIterations)

	if n := len(tc.CompletedIntents); n > 0 {
		b.WriteString("\n## Completed Steps\n\n")
		start := 0
		if n > 5 {
			start = n - 5
			fmt.Fprintf(&b, "(%d earlier steps omitted)\n", start)
		}
		for i := start; i < n; i++ {
			ci := tc.CompletedIntents[i]
			status := "ok"
			if !ci.Success {
				status = "failed"
			}
			fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, ci.Intent, status)
		}
	}

	if tc.LastRoundSummary != "" {
		b.WriteString("\n## Last Round\n\n")
		b.WriteString(tc.LastRoundSummary)
		b.WriteString("\n")
	}

	if tc.InRecoveryMode {
		b.WriteString("\n## RECOVERY MODE\n\n")
		fmt.Fprintf(&b,
			"The last %d rounds failed. Do NOT repeat the same approach. "+
				"Analyze the screen again and try a DIFFERENT strategy.\n",
			tc.ConsecutiveFailures)
		if tc.LastError != "" {
			fmt.Fprintf(&b, "Last error: %s\n", tc.LastError)
		}
	}

	if len(tc.skillKnowledge) > 0 {
		b.WriteString("\n## Active Skill Knowledge\n\n")
		b.WriteString(strings.Join(tc.skillKnowledge, "\n\n"))
		b.WriteString("\n")
	}

	return b.String()
}

// DeadlineExceeded reports whether the per-goal wall-clock bound passed.
func (tc *TaskContext) DeadlineExceeded() bool {
	return !tc.Deadline.IsZero() && time.Now().After(tc.Deadline)
}
