package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"pilot/internal/compaction"
	"pilot/internal/events"
	"pilot/internal/input"
	"pilot/internal/jsvm"
	"pilot/internal/provider"
	"pilot/internal/screen"
	"pilot/internal/skills"
	"pilot/internal/storage"
	"pilot/internal/tools"
)

// Defaults for the loop bounds.
const (
	DefaultMaxIterations          = 50
	DefaultMaxConsecutiveFailures = 5
)

// State of the orchestrator's goal state machine.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StatePartial   State = "partial"
)

// Status classifies a finished goal.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusPartial Status = "partial"
)

// Result is the outcome of one ExecuteGoal invocation.
type Result struct {
	Status            Status `json:"status"`
	Summary           string `json:"summary"`
	Iterations        int    `json:"iterations"`
	SuccessfulActions int    `json:"successful_actions"`
	FailedActions     int    `json:"failed_actions"`
}

// Capturer is the perception surface the loop needs. *screen.Capturer
// satisfies it.
type Capturer interface {
	Capture(ctx context.Context) (*screen.Frame, error)
	SetLastClick(x, y int, label string)
}

// Config wires the orchestrator's collaborators. Provider, Capturer and
// Driver are required; everything else is optional.
type Config struct {
	Provider provider.Provider
	Model    string

	Capturer Capturer
	Driver   input.Driver

	Tools     *tools.Registry // built-in tools
	Skills    *skills.Manager
	JSRuntime *jsvm.Runtime

	Store     *storage.Store
	Bus       *events.Bus
	Compactor *compaction.Compactor

	MaxIterations          int
	MaxConsecutiveFailures int
	// MaxCorrections 连续失败达到该次数后进入恢复模式
	MaxCorrections int
	Deadline       time.Duration

	ToolTimeout time.Duration
	ToolWait    time.Duration
}

// Orchestrator 驱动观察-决策-执行循环,一个进程同一时刻只跑一个目标
type Orchestrator struct {
	cfg      Config
	model    *modelClient
	executor *Executor

	mu      sync.Mutex
	state   State
	cancel  context.CancelFunc
	current string // goal in flight
}

// New creates an orchestrator. Zero bounds fall back to the defaults.
func New(cfg Config) *Orchestrator {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if cfg.MaxConsecutiveFailures <= 0 {
		cfg.MaxConsecutiveFailures = DefaultMaxConsecutiveFailures
	}
	if cfg.ToolTimeout <= 0 {
		cfg.ToolTimeout = 30 * time.Second
	}

	return &Orchestrator{
		cfg:      cfg,
		model:    newModelClient(cfg.Provider, cfg.Model),
		executor: NewExecutor(cfg.Driver, cfg.Capturer),
		state:    StateIdle,
	}
}

// State returns the current goal state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// CurrentGoal returns the goal in flight, if any.
func (o *Orchestrator) CurrentGoal() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state == StateRunning {
		return o.current
	}
	return ""
}

// Interrupt requests cancellation of the running goal. The loop
// acknowledges it at the next iteration boundary or inter-action pause;
// in-flight OS input events are not aborted.
func (o *Orchestrator) Interrupt() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

// ExecuteGoal runs the decision loop for one goal. A second call while a
// goal is running returns ErrAlreadyRunning.
func (o *Orchestrator) ExecuteGoal(ctx context.Context, goal string) (*Result, error) {
	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	o.state = StateRunning
	o.cancel = cancel
	o.current = goal
	o.mu.Unlock()

	defer cancel()

	result := o.run(loopCtx, goal)

	o.mu.Lock()
	o.cancel = nil
	o.current = ""
	switch result.Status {
	case StatusSuccess:
		o.state = StateCompleted
	case StatusFailure:
		o.state = StateFailed
	default:
		o.state = StatePartial
	}
	o.mu.Unlock()

	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, goal string) *Result {
	tc := NewTaskContext(goal, o.cfg.Deadline)
	if o.cfg.MaxCorrections > 0 {
		tc.RecoveryThreshold = o.cfg.MaxCorrections
	}

	sessionKey := ""
	if o.cfg.Store != nil {
		if sess, err := o.cfg.Store.Current(); err == nil {
			sessionKey = sess.SessionKey
		}
	}

	o.emit(events.GoalStarted, events.GoalStartedData{Goal: goal, SessionKey: sessionKey})
	o.persist(storage.MessageTypeUser, "Goal: "+goal, false)

	slog.Info("goal started", "goal", goal, "maxIterations", o.cfg.MaxIterations)

	for tc.TotalIterations < o.cfg.MaxIterations {
		tc.IncrementIteration()

		if ctx.Err() != nil {
			return o.interrupted(tc)
		}
		if tc.DeadlineExceeded() {
			return o.finishFailure(tc, StatusPartial, "deadline exceeded")
		}
		if tc.ConsecutiveFailures >= o.cfg.MaxConsecutiveFailures {
			reason := fmt.Sprintf("too many consecutive failures (%d)", tc.ConsecutiveFailures)
			if tc.LastError != "" {
				reason += ": " + tc.LastError
			}
			return o.finishFailure(tc, StatusFailure, reason)
		}

		o.emit(events.IterationStarted, events.IterationStartedData{
			Iteration:     tc.TotalIterations,
			MaxIterations: o.cfg.MaxIterations,
		})

		frame, err := o.cfg.Capturer.Capture(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return o.interrupted(tc)
			}
			o.recordTransient(tc, fmt.Sprintf("screen capture failed: %v", err))
			continue
		}

		roundPrompt := buildRoundPrompt(tc)
		messages := []provider.Message{
			{Role: provider.RoleSystem, Content: buildSystemPrompt(tc)},
			{Role: provider.RoleUser, Content: roundPrompt, Images: []string{frame.DataURL()}},
		}

		o.persist(storage.MessageTypeUser, roundPrompt, false)
		o.persist(storage.MessageTypeUser, frame.DataURL(), true)

		resp, err := o.model.Decide(ctx, messages, o.providerTools())
		if err != nil {
			if ctx.Err() != nil {
				return o.interrupted(tc)
			}
			o.recordTransient(tc, fmt.Sprintf("model call failed: %v", err))
			continue
		}

		if len(resp.ToolCalls) > 0 {
			o.handleToolCalls(ctx, tc, resp.ToolCalls)
			o.maybeCompact(ctx)
			continue
		}

		o.persist(storage.MessageTypeAssistant, resp.Content, false)

		bundle, err := ParseDecision(resp.Content)
		if err != nil {
			o.recordTransient(tc, fmt.Sprintf("unparseable decision: %v", err))
			continue
		}
		if err := Validate(bundle); err != nil {
			o.recordTransient(tc, err.Error())
			continue
		}

		if bundle.IsGoalComplete {
			o.emit(events.GoalCompleted, events.GoalCompletedData{
				Summary:           bundle.CompletionSummary,
				Iterations:        tc.TotalIterations,
				SuccessfulActions: tc.SuccessfulActions,
				FailedActions:     tc.FailedActions,
			})
			slog.Info("goal completed", "iterations", tc.TotalIterations,
				"summary", bundle.CompletionSummary)
			return o.result(tc, StatusSuccess, bundle.CompletionSummary)
		}

		en := bundle.ExecuteNow
		tc.StartIntent(en.Intent)
		o.emit(events.RoundStarted, events.RoundStartedData{
			Iteration:   tc.TotalIterations,
			Thought:     bundle.Thought,
			Intent:      en.Intent,
			ActionCount: len(en.Actions),
		})

		batch, err := o.executor.ExecuteBatch(ctx, en, frame)
		o.recordBatch(tc, en, batch)
		if err != nil {
			// Only a cancelled context aborts a batch mid-way.
			return o.interrupted(tc)
		}

		o.emit(events.RoundFinished, events.RoundFinishedData{
			Iteration:   tc.TotalIterations,
			Executed:    batch.ExecutedCount,
			Total:       len(en.Actions),
			AllSuccess:  batch.AllSuccess,
			HitBoundary: batch.HitBoundary,
		})

		o.maybeCompact(ctx)
	}

	return o.finishFailure(tc, StatusPartial, "max iterations reached")
}

// recordBatch folds one executed batch into the task context and emits
// per-action events.
func (o *Orchestrator) recordBatch(tc *TaskContext, en *ExecuteNow, batch *BatchResult) {
	var firstError string
	for i, ar := range batch.Results {
		tc.RecordAction(ar.Action, ar.Success, ar.Message)
		if ar.Success {
			o.emit(events.ActionExecuted, events.ActionExecutedData{
				Iteration: tc.TotalIterations,
				Index:     i,
				Action:    ar.Action.Type,
				Detail:    ar.Action.Describe(),
			})
		} else {
			if firstError == "" {
				firstError = ar.Message
			}
			o.emit(events.ActionFailed, events.ActionFailedData{
				Iteration: tc.TotalIterations,
				Index:     i,
				Action:    ar.Action.Type,
				Error:     ar.Message,
			})
		}
	}

	tc.RecordRoundActions(en, batch.ResultStrings())
	tc.CompleteIntent(batch.AllSuccess, firstError)
}

// handleToolCalls dispatches model-requested tool invocations: built-ins
// first, then skills. A skill call additionally installs its Markdown body
// as active knowledge for the rest of the goal.
func (o *Orchestrator) handleToolCalls(ctx context.Context, tc *TaskContext, calls []provider.ToolCall) {
	for _, call := range calls {
		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				o.recordTransient(tc, fmt.Sprintf("tool %s: bad arguments: %v", call.Name, err))
				continue
			}
		}

		tool, isSkill := o.resolveTool(call.Name)
		if tool == nil {
			o.recordTransient(tc, fmt.Sprintf("tool %s not found", call.Name))
			continue
		}

		tc.StartIntent("tool: " + call.Name)
		slog.Info("dispatching tool call", "tool", call.Name, "skill", isSkill)

		toolCtx, cancel := context.WithTimeout(ctx, o.cfg.ToolTimeout)
		result, err := tool.Execute(toolCtx, args)
		cancel()

		content := result.Content
		success := err == nil && !result.IsError
		if err != nil {
			content = err.Error()
		}

		o.persist(storage.MessageTypeTool,
			fmt.Sprintf("[%s] %s", call.Name, content), false)

		if success {
			o.emit(events.ActionExecuted, events.ActionExecutedData{
				Iteration: tc.TotalIterations,
				Action:    "tool:" + call.Name,
				Detail:    firstLine(content),
			})
		} else {
			o.emit(events.ActionFailed, events.ActionFailedData{
				Iteration: tc.TotalIterations,
				Action:    "tool:" + call.Name,
				Error:     firstLine(content),
			})
		}

		if isSkill {
			if skill, ok := o.cfg.Skills.Get(call.Name); ok {
				tc.AddSkillKnowledge(skill.Name, skill.Body)
			}
		}

		tc.RecordRoundActions(&ExecuteNow{
			Intent:  "tool: " + call.Name,
			Actions: []Action{},
		}, []string{fmt.Sprintf("tool %s: %s", call.Name, firstLine(content))})
		tc.CompleteIntent(success, firstLine(content))
	}
}

// resolveTool looks the name up in the built-in registry first, then the
// skill set.
func (o *Orchestrator) resolveTool(name string) (tools.Tool, bool) {
	if o.cfg.Tools != nil {
		if t, ok := o.cfg.Tools.Get(name); ok {
			return t, false
		}
	}
	if o.cfg.Skills != nil {
		if skill, ok := o.cfg.Skills.Get(name); ok {
			return skills.NewSkillTool(skill, o.cfg.JSRuntime, o.cfg.ToolTimeout, o.cfg.ToolWait), true
		}
	}
	return nil, false
}

// providerTools assembles the function specs sent with each request:
// built-ins plus the current copy-on-write skill snapshot.
func (o *Orchestrator) providerTools() []provider.Tool {
	var specs []provider.Tool

	if o.cfg.Tools != nil {
		if builtin, err := o.cfg.Tools.ToProviderTools(); err == nil {
			specs = append(specs, builtin...)
		}
	}

	if o.cfg.Skills != nil {
		for _, st := range o.cfg.Skills.Tools(o.cfg.JSRuntime, o.cfg.ToolTimeout, o.cfg.ToolWait) {
			params, err := json.Marshal(st.Parameters())
			if err != nil {
				continue
			}
			specs = append(specs, provider.Tool{
				Type: "function",
				Function: provider.ToolFunction{
					Name:        st.Name(),
					Description: st.Description(),
					Parameters:  params,
				},
			})
		}
	}

	return specs
}

// recordTransient notes a non-terminal failure (capture, parse, validate,
// model transport) and lets the loop retry next iteration.
func (o *Orchestrator) recordTransient(tc *TaskContext, msg string) {
	tc.ConsecutiveFailures++
	tc.LastError = msg
	tc.InRecoveryMode = tc.ShouldEnterRecoveryMode(tc.RecoveryThreshold)
	slog.Warn("transient failure", "iteration", tc.TotalIterations,
		"consecutive", tc.ConsecutiveFailures, "error", msg)
}

// maybeCompact compresses the persisted session history when it grows
// past the token threshold. Failures are logged only.
func (o *Orchestrator) maybeCompact(ctx context.Context) {
	if o.cfg.Compactor == nil || o.cfg.Store == nil {
		return
	}

	stored, err := o.cfg.Store.Messages(0)
	if err != nil {
		slog.Warn("compaction: load failed", "error", err)
		return
	}

	msgs := make([]provider.Message, 0, len(stored))
	for _, m := range stored {
		msgs = append(msgs, provider.Message{Role: m.Type, Content: m.Content})
	}

	if !o.cfg.Compactor.NeedsCompression(msgs) {
		return
	}

	compressed := o.cfg.Compactor.CompressWithFallback(ctx, msgs)

	sess, err := o.cfg.Store.Current()
	if err != nil {
		slog.Warn("compaction: no current session", "error", err)
		return
	}

	// Pair kept rows back to their stored originals so has_image and
	// token counts survive the rewrite. Only the summary row is new.
	source := make(map[string][]*storage.SessionMessage, len(stored))
	for _, m := range stored {
		k := m.Type + "\x00" + m.Content
		source[k] = append(source[k], m)
	}

	replacement := make([]*storage.SessionMessage, 0, len(compressed))
	for _, m := range compressed {
		row := &storage.SessionMessage{Type: m.Role, Content: m.Content}
		k := m.Role + "\x00" + m.Content
		if rows := source[k]; len(rows) > 0 {
			orig := rows[0]
			source[k] = rows[1:]
			row.HasImage = orig.HasImage
			row.TokenCount = orig.TokenCount
		} else {
			row.HasImage = len(m.Images) > 0 || strings.Contains(m.Content, "data:image/")
			row.TokenCount = compaction.NewTokenCounter().EstimateText(m.Content)
		}
		replacement = append(replacement, row)
	}

	if err := o.cfg.Store.DB().ReplaceMessages(sess.ID, replacement); err != nil {
		slog.Warn("compaction: replace failed", "error", err)
		return
	}

	slog.Info("session history compacted",
		"before", len(msgs), "after", len(compressed))
}

func (o *Orchestrator) interrupted(tc *TaskContext) *Result {
	o.emit(events.GoalInterrupted, events.GoalInterruptedData{Iterations: tc.TotalIterations})
	slog.Info("goal interrupted", "iterations", tc.TotalIterations)
	return o.result(tc, StatusPartial, "interrupted")
}

func (o *Orchestrator) finishFailure(tc *TaskContext, status Status, reason string) *Result {
	o.emit(events.GoalFailed, events.GoalFailedData{
		Reason:     reason,
		Iterations: tc.TotalIterations,
	})
	slog.Warn("goal did not complete", "status", string(status), "reason", reason)
	return o.result(tc, status, reason)
}

func (o *Orchestrator) result(tc *TaskContext, status Status, summary string) *Result {
	return &Result{
		Status:            status,
		Summary:           summary,
		Iterations:        tc.TotalIterations,
		SuccessfulActions: tc.SuccessfulActions,
		FailedActions:     tc.FailedActions,
	}
}

func (o *Orchestrator) emit(t events.Type, data any) {
	if o.cfg.Bus != nil {
		o.cfg.Bus.Publish(t, data)
	}
}

// persist writes one row to the current session; failures never reach the
// loop.
func (o *Orchestrator) persist(msgType, content string, hasImage bool) {
	if o.cfg.Store == nil || content == "" {
		return
	}
	tokens := len(content) / 4
	if _, err := o.cfg.Store.SaveMessage(msgType, content, hasImage, tokens); err != nil {
		slog.Warn("session persist failed", "type", msgType, "error", err)
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 120 {
		s = s[:120] + "…"
	}
	return s
}
