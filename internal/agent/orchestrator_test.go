package agent

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"pilot/internal/compaction"
	"pilot/internal/events"
	"pilot/internal/provider"
	"pilot/internal/screen"
	"pilot/internal/storage"
)

// fakeCapturer serves a fixed frame and counts captures.
type fakeCapturer struct {
	mu       sync.Mutex
	captures int
	fail     bool
}

func (c *fakeCapturer) Capture(_ context.Context) (*screen.Frame, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.captures++
	if c.fail {
		return nil, errors.New("no display")
	}
	return testFrame(), nil
}

func (c *fakeCapturer) SetLastClick(x, y int, label string) {}

func (c *fakeCapturer) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.captures
}

// scriptProvider replays scripted responses and records every request.
// When the script runs out, the last step repeats.
type scriptProvider struct {
	mu       sync.Mutex
	script   []string
	requests []provider.ChatRequest
	onChat   func(ctx context.Context, n int) error
}

func (p *scriptProvider) Name() string     { return "script" }
func (p *scriptProvider) Models() []string { return []string{"script-1"} }

func (p *scriptProvider) Chat(ctx context.Context, req provider.ChatRequest) (*provider.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	n := len(p.requests)
	p.mu.Unlock()

	if p.onChat != nil {
		if err := p.onChat(ctx, n); err != nil {
			return nil, err
		}
	}

	idx := n - 1
	if idx >= len(p.script) {
		idx = len(p.script) - 1
	}
	return &provider.ChatResponse{Content: p.script[idx]}, nil
}

func (p *scriptProvider) request(n int) provider.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.requests[n-1]
}

func (p *scriptProvider) requestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func completionJSON(t *testing.T, summary string) string {
	t.Helper()
	return marshalBundle(t, &DecisionBundle{
		Thought:           "goal reached",
		LastActionResult:  ResultSuccess,
		IsGoalComplete:    true,
		CompletionSummary: summary,
	})
}

func actingJSON(t *testing.T, intent string, actions ...Action) string {
	t.Helper()
	return marshalBundle(t, &DecisionBundle{
		Thought:          "next step",
		LastActionResult: ResultNone,
		ExecuteNow:       &ExecuteNow{Intent: intent, Actions: actions},
	})
}

func marshalBundle(t *testing.T, b *DecisionBundle) string {
	t.Helper()
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal bundle: %v", err)
	}
	return string(data)
}

func TestExecuteGoalImmediateCompletion(t *testing.T) {
	prov := &scriptProvider{script: []string{completionJSON(t, "Nothing to do")}}
	capturer := &fakeCapturer{}
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	orch := New(Config{
		Provider: prov,
		Model:    "script-1",
		Capturer: capturer,
		Driver:   &fakeDriver{},
		Bus:      bus,
	})

	result, err := orch.ExecuteGoal(context.Background(), "do nothing")
	if err != nil {
		t.Fatalf("ExecuteGoal() error = %v", err)
	}

	if result.Status != StatusSuccess {
		t.Errorf("status = %q, want success", result.Status)
	}
	if result.Summary != "Nothing to do" {
		t.Errorf("summary = %q", result.Summary)
	}
	if result.Iterations != 1 {
		t.Errorf("iterations = %d, want 1", result.Iterations)
	}
	if orch.State() != StateCompleted {
		t.Errorf("state = %q, want completed", orch.State())
	}

	var types []events.Type
drain:
	for {
		select {
		case ev := <-ch:
			types = append(types, ev.Type)
		default:
			break drain
		}
	}
	want := []events.Type{events.GoalStarted, events.IterationStarted, events.GoalCompleted}
	if len(types) != len(want) {
		t.Fatalf("event types = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, types[i], want[i])
		}
	}
}

func TestExecuteGoalBoundaryForcesReobservation(t *testing.T) {
	prov := &scriptProvider{script: []string{
		actingJSON(t, "Fill the field",
			Action{Type: ActionType, Text: "admin"},
			Action{Type: ActionClick, Coords: []int{500, 300}},
			Action{Type: ActionType, Text: "never runs"},
		),
		completionJSON(t, "Form submitted"),
	}}
	capturer := &fakeCapturer{}
	driver := &fakeDriver{}

	orch := New(Config{
		Provider: prov,
		Model:    "script-1",
		Capturer: capturer,
		Driver:   driver,
	})

	result, err := orch.ExecuteGoal(context.Background(), "fill the form")
	if err != nil {
		t.Fatalf("ExecuteGoal() error = %v", err)
	}

	if result.Status != StatusSuccess {
		t.Fatalf("status = %q, want success", result.Status)
	}
	if result.Iterations != 2 {
		t.Errorf("iterations = %d, want 2", result.Iterations)
	}
	if capturer.count() != 2 {
		t.Errorf("captures = %d, want a fresh frame per round", capturer.count())
	}
	if len(driver.calls) != 2 {
		t.Errorf("driver calls = %v, want the batch cut at the click", driver.calls)
	}
	if result.SuccessfulActions != 2 || result.FailedActions != 0 {
		t.Errorf("action counters = %d/%d, want 2/0",
			result.SuccessfulActions, result.FailedActions)
	}
}

func TestExecuteGoalRetriesUnparseableDecision(t *testing.T) {
	prov := &scriptProvider{script: []string{
		"I am not JSON at all.",
		completionJSON(t, "done"),
	}}

	orch := New(Config{
		Provider: prov,
		Model:    "script-1",
		Capturer: &fakeCapturer{},
		Driver:   &fakeDriver{},
	})

	result, err := orch.ExecuteGoal(context.Background(), "goal")
	if err != nil {
		t.Fatalf("ExecuteGoal() error = %v", err)
	}
	if result.Status != StatusSuccess || result.Iterations != 2 {
		t.Errorf("result = %+v, want success in 2 iterations", result)
	}
}

func TestExecuteGoalRecoveryPromptAndFailureCutoff(t *testing.T) {
	prov := &scriptProvider{script: []string{
		actingJSON(t, "Type into the field", Action{Type: ActionType, Text: "x"}),
	}}
	driver := &fakeDriver{failOn: "type"}

	orch := New(Config{
		Provider:               prov,
		Model:                  "script-1",
		Capturer:               &fakeCapturer{},
		Driver:                 driver,
		MaxConsecutiveFailures: 8,
	})

	result, err := orch.ExecuteGoal(context.Background(), "stubborn field")
	if err != nil {
		t.Fatalf("ExecuteGoal() error = %v", err)
	}

	if result.Status != StatusFailure {
		t.Fatalf("status = %q, want failure", result.Status)
	}
	if !strings.Contains(result.Summary, "too many consecutive failures") {
		t.Errorf("summary = %q", result.Summary)
	}
	if !strings.Contains(result.Summary, "injected failure") {
		t.Errorf("summary does not carry the last error: %q", result.Summary)
	}

	// Five failed rounds arm recovery mode; the sixth request must warn.
	if prov.requestCount() < 6 {
		t.Fatalf("requests = %d, want at least 6", prov.requestCount())
	}
	sixth := prov.request(6)
	system := sixth.Messages[0].Content
	if !strings.Contains(system, "RECOVERY MODE") {
		t.Error("sixth system prompt missing recovery section")
	}
	if !strings.Contains(system, "injected failure") {
		t.Error("sixth system prompt missing last error")
	}
	early := prov.request(3).Messages[0].Content
	if strings.Contains(early, "RECOVERY MODE") {
		t.Error("recovery section appeared before the threshold")
	}
}

func TestExecuteGoalMaxCorrectionsLowersRecoveryThreshold(t *testing.T) {
	prov := &scriptProvider{script: []string{
		actingJSON(t, "Type into the field", Action{Type: ActionType, Text: "x"}),
	}}
	driver := &fakeDriver{failOn: "type"}

	orch := New(Config{
		Provider:               prov,
		Model:                  "script-1",
		Capturer:               &fakeCapturer{},
		Driver:                 driver,
		MaxConsecutiveFailures: 4,
		MaxCorrections:         2,
	})

	if _, err := orch.ExecuteGoal(context.Background(), "stubborn field"); err != nil {
		t.Fatalf("ExecuteGoal() error = %v", err)
	}

	if prov.requestCount() < 3 {
		t.Fatalf("requests = %d, want at least 3", prov.requestCount())
	}
	if strings.Contains(prov.request(2).Messages[0].Content, "RECOVERY MODE") {
		t.Error("recovery section appeared before the configured threshold")
	}
	if !strings.Contains(prov.request(3).Messages[0].Content, "RECOVERY MODE") {
		t.Error("third system prompt missing recovery section at threshold 2")
	}
}

func TestExecuteGoalMaxIterations(t *testing.T) {
	prov := &scriptProvider{script: []string{
		actingJSON(t, "Wait it out", Action{Type: ActionWait, Duration: 1}),
	}}

	orch := New(Config{
		Provider:      prov,
		Model:         "script-1",
		Capturer:      &fakeCapturer{},
		Driver:        &fakeDriver{},
		MaxIterations: 3,
	})

	result, err := orch.ExecuteGoal(context.Background(), "never finishes")
	if err != nil {
		t.Fatalf("ExecuteGoal() error = %v", err)
	}

	if result.Status != StatusPartial {
		t.Errorf("status = %q, want partial", result.Status)
	}
	if result.Summary != "max iterations reached" {
		t.Errorf("summary = %q", result.Summary)
	}
	if result.Iterations != 3 {
		t.Errorf("iterations = %d, want 3", result.Iterations)
	}
	if orch.State() != StatePartial {
		t.Errorf("state = %q, want partial", orch.State())
	}
}

func TestExecuteGoalInterrupt(t *testing.T) {
	var orch *Orchestrator
	prov := &scriptProvider{
		script: []string{completionJSON(t, "unreachable")},
		onChat: func(ctx context.Context, n int) error {
			orch.Interrupt()
			<-ctx.Done()
			return ctx.Err()
		},
	}

	orch = New(Config{
		Provider: prov,
		Model:    "script-1",
		Capturer: &fakeCapturer{},
		Driver:   &fakeDriver{},
	})

	result, err := orch.ExecuteGoal(context.Background(), "long goal")
	if err != nil {
		t.Fatalf("ExecuteGoal() error = %v", err)
	}

	if result.Status != StatusPartial || result.Summary != "interrupted" {
		t.Errorf("result = %+v, want partial/interrupted", result)
	}
	if orch.State() != StatePartial {
		t.Errorf("state = %q, want partial", orch.State())
	}
}

func TestExecuteGoalRejectsConcurrentGoal(t *testing.T) {
	release := make(chan struct{})
	prov := &scriptProvider{
		script: []string{completionJSON(t, "first done")},
		onChat: func(ctx context.Context, n int) error {
			select {
			case <-release:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	}

	orch := New(Config{
		Provider: prov,
		Model:    "script-1",
		Capturer: &fakeCapturer{},
		Driver:   &fakeDriver{},
	})

	done := make(chan *Result, 1)
	go func() {
		result, _ := orch.ExecuteGoal(context.Background(), "first")
		done <- result
	}()

	deadline := time.After(2 * time.Second)
	for orch.State() != StateRunning {
		select {
		case <-deadline:
			t.Fatal("first goal never started")
		case <-time.After(time.Millisecond):
		}
	}

	if goal := orch.CurrentGoal(); goal != "first" {
		t.Errorf("current goal = %q, want first", goal)
	}
	if _, err := orch.ExecuteGoal(context.Background(), "second"); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second goal error = %v, want ErrAlreadyRunning", err)
	}

	close(release)
	select {
	case result := <-done:
		if result.Status != StatusSuccess {
			t.Errorf("first goal status = %q, want success", result.Status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first goal never finished")
	}
}

func TestMaybeCompactPreservesImageFlags(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open storage: %v", err)
	}
	defer db.Close()
	store := storage.NewStore(db)

	// Old text turns destined for the summary, then a recent tail with
	// screenshot rows.
	for i := 0; i < 8; i++ {
		if _, err := store.SaveMessage(storage.MessageTypeUser,
			strings.Repeat("step detail ", 20), false, 60); err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}
	shot := "data:image/jpeg;base64," + strings.Repeat("A", 64)
	for i := 0; i < 3; i++ {
		if _, err := store.SaveMessage(storage.MessageTypeUser, shot, true, 16); err != nil {
			t.Fatalf("seed screenshot: %v", err)
		}
		if _, err := store.SaveMessage(storage.MessageTypeAssistant, "acknowledged", false, 3); err != nil {
			t.Fatalf("seed reply: %v", err)
		}
	}

	prov := &scriptProvider{script: []string{"condensed history"}}
	compactor := compaction.NewCompactor(compaction.Config{
		TokenThreshold:   50,
		KeepRecentCount:  6,
		SummaryMaxTokens: 100,
		ChunkMaxTokens:   4000,
	}, prov)

	orch := New(Config{
		Provider:  prov,
		Model:     "script-1",
		Capturer:  &fakeCapturer{},
		Driver:    &fakeDriver{},
		Store:     store,
		Compactor: compactor,
	})

	orch.maybeCompact(context.Background())

	sess, err := store.Current()
	if err != nil {
		t.Fatalf("current session: %v", err)
	}

	messages, err := store.Messages(0)
	if err != nil {
		t.Fatalf("load messages: %v", err)
	}
	if len(messages) >= 14 {
		t.Fatalf("messages = %d, want compacted history", len(messages))
	}

	flagged, err := db.CountImageMessages(sess.ID)
	if err != nil {
		t.Fatalf("count image messages: %v", err)
	}
	if flagged != 3 {
		t.Errorf("has_image rows = %d, want all 3 kept screenshots flagged", flagged)
	}
	for _, m := range messages {
		if strings.Contains(m.Content, "data:image/") && !m.HasImage {
			t.Errorf("screenshot row %d lost its has_image flag", m.ID)
		}
		if m.Content == shot && m.TokenCount != 16 {
			t.Errorf("screenshot row %d token count = %d, want 16", m.ID, m.TokenCount)
		}
	}

	// The pruning pass must now see the kept screenshots.
	pruned, err := db.CleanupOldImages(sess.ID, 1)
	if err != nil {
		t.Fatalf("cleanup old images: %v", err)
	}
	if pruned != 2 {
		t.Errorf("pruned = %d, want 2", pruned)
	}
}

func TestExecuteGoalCaptureFailureIsTransient(t *testing.T) {
	prov := &scriptProvider{script: []string{completionJSON(t, "never asked")}}
	capturer := &fakeCapturer{fail: true}

	orch := New(Config{
		Provider:               prov,
		Model:                  "script-1",
		Capturer:               capturer,
		Driver:                 &fakeDriver{},
		MaxConsecutiveFailures: 3,
	})

	result, err := orch.ExecuteGoal(context.Background(), "blind goal")
	if err != nil {
		t.Fatalf("ExecuteGoal() error = %v", err)
	}

	if result.Status != StatusFailure {
		t.Errorf("status = %q, want failure", result.Status)
	}
	if prov.requestCount() != 0 {
		t.Errorf("model called %d times despite capture failures", prov.requestCount())
	}
}
