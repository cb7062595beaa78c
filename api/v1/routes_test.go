package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"pilot/internal/agent"
	"pilot/internal/events"
	"pilot/internal/provider"
	"pilot/internal/screen"
	"pilot/internal/storage"
)

// completeProvider always declares the goal complete on the first round.
type completeProvider struct{}

func (completeProvider) Name() string     { return "complete" }
func (completeProvider) Models() []string { return []string{"complete-1"} }

func (completeProvider) Chat(_ context.Context, _ provider.ChatRequest) (*provider.ChatResponse, error) {
	return &provider.ChatResponse{
		Content: `{"thought":"done","last_action_result":"success","is_goal_complete":true,"completion_summary":"ok"}`,
	}, nil
}

type stubCapturer struct{}

func (stubCapturer) Capture(_ context.Context) (*screen.Frame, error) {
	return &screen.Frame{JPEGBase64: "ZmFrZQ==", Width: 1000, Height: 1000}, nil
}
func (stubCapturer) SetLastClick(x, y int, label string) {}

func newTestRouter(t *testing.T, deps *RouterDeps) *mux.Router {
	t.Helper()
	m := mux.NewRouter()
	NewRouter(deps).RegisterRoutes(m)
	return m
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return storage.NewStore(db)
}

func newIdleOrchestrator() *agent.Orchestrator {
	return agent.New(agent.Config{
		Provider: completeProvider{},
		Model:    "complete-1",
		Capturer: stubCapturer{},
	})
}

func TestHandlersWithoutDeps(t *testing.T) {
	router := newTestRouter(t, nil)

	tests := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/goal"},
		{http.MethodPost, "/api/v1/interrupt"},
		{http.MethodGet, "/api/v1/status"},
		{http.MethodGet, "/api/v1/sessions"},
		{http.MethodPost, "/api/v1/sessions/reset"},
		{http.MethodGet, "/api/v1/sessions/x/messages"},
		{http.MethodGet, "/api/v1/skills"},
		{http.MethodPost, "/api/v1/tts"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, bytes.NewBufferString("{}"))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusServiceUnavailable {
				t.Errorf("status = %d, want 503", w.Code)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{Version: "1.2.3"})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "1.2.3" {
		t.Errorf("body = %v", body)
	}
}

func TestSubmitGoalValidation(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{Orchestrator: newIdleOrchestrator()})

	tests := []struct {
		name string
		body string
	}{
		{"broken JSON", "{"},
		{"empty goal", `{"goal":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/goal", bytes.NewBufferString(tt.body))
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestSubmitGoalRunsToCompletion(t *testing.T) {
	orch := newIdleOrchestrator()
	router := newTestRouter(t, &RouterDeps{Orchestrator: orch})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/goal",
		bytes.NewBufferString(`{"goal":"open the browser"}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}
	var resp GoalResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Status != "accepted" || resp.Goal != "open the browser" {
		t.Errorf("response = %+v", resp)
	}

	deadline := time.Now().Add(2 * time.Second)
	for orch.State() != agent.StateCompleted {
		if time.Now().After(deadline) {
			t.Fatalf("goal never completed, state = %q", orch.State())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestInterruptWhenIdle(t *testing.T) {
	router := newTestRouter(t, &RouterDeps{Orchestrator: newIdleOrchestrator()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/interrupt", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", w.Code)
	}
}

func TestStatus(t *testing.T) {
	store := newTestStore(t)
	router := newTestRouter(t, &RouterDeps{
		Orchestrator: newIdleOrchestrator(),
		Store:        store,
	})

	if _, err := store.SaveMessage(storage.MessageTypeUser, "hello", false, 2); err != nil {
		t.Fatalf("save message: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.State != string(agent.StateIdle) {
		t.Errorf("state = %q, want idle", resp.State)
	}
	if resp.SessionKey == "" || resp.MessageCount != 1 {
		t.Errorf("session stats = %+v", resp)
	}
}

func TestSessionsFlow(t *testing.T) {
	store := newTestStore(t)
	router := newTestRouter(t, &RouterDeps{Store: store})

	sess, err := store.Current()
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if _, err := store.SaveMessage(storage.MessageTypeUser, "Goal: test", false, 3); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.SaveMessage(storage.MessageTypeUser, "data:image/jpeg;base64,AAAA", true, 100); err != nil {
		t.Fatalf("save: %v", err)
	}

	t.Run("list", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp SessionListResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Count != 1 || resp.Sessions[0].SessionKey != sess.SessionKey {
			t.Errorf("response = %+v", resp)
		}
	})

	t.Run("messages elide screenshots", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/api/v1/sessions/"+sess.SessionKey+"/messages", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var resp MessageListResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if resp.Count != 2 {
			t.Fatalf("count = %d, want 2", resp.Count)
		}
		for _, m := range resp.Messages {
			if m.HasImage && m.Content != "[screenshot omitted]" {
				t.Errorf("screenshot not elided: %q", m.Content)
			}
		}
	})

	t.Run("messages unknown session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions/nope/messages", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})

	t.Run("reset", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/reset", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d", w.Code)
		}
		var fresh storage.Session
		if err := json.Unmarshal(w.Body.Bytes(), &fresh); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if fresh.SessionKey == sess.SessionKey {
			t.Error("reset returned the old session")
		}
	})
}

func TestTTSRelay(t *testing.T) {
	bus := events.NewBus()
	ch, cancel := bus.Subscribe()
	defer cancel()

	router := newTestRouter(t, &RouterDeps{Bus: bus})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/tts",
		bytes.NewBufferString(`{"type":"tts_audio","data":{"chunk":"UklGRg=="}}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", w.Code)
	}

	select {
	case ev := <-ch:
		if ev.Type != events.TTSAudio {
			t.Errorf("event type = %q, want tts_audio", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("relayed event never reached the bus")
	}

	t.Run("unknown type", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/tts",
			bytes.NewBufferString(`{"type":"goal_started"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})
}
