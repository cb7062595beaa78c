package v1

import (
	"context"
	"encoding/json"
	"net/http"

	"pilot/internal/agent"
	"pilot/internal/gateway/handlers"
	"pilot/pkg/logger"
)

// GoalRequest 提交目标的请求体
type GoalRequest struct {
	Goal string `json:"goal"`
}

// GoalResponse acknowledges an accepted goal.
type GoalResponse struct {
	Status string `json:"status"`
	Goal   string `json:"goal"`
}

// StatusResponse describes the orchestrator's current state.
type StatusResponse struct {
	State        string `json:"state"`
	Goal         string `json:"goal,omitempty"`
	SessionKey   string `json:"session_key,omitempty"`
	MessageCount int    `json:"message_count,omitempty"`
	TotalTokens  int    `json:"total_tokens,omitempty"`
}

// HandleSubmitGoal accepts a goal and starts it asynchronously. The
// caller follows progress on the WebSocket event stream.
func (r *Router) HandleSubmitGoal(w http.ResponseWriter, req *http.Request) {
	if r.orchestrator == nil {
		handlers.SendError(w, http.StatusServiceUnavailable,
			handlers.ErrCodeServiceUnavailable, "agent not initialized")
		return
	}

	var body GoalRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		handlers.SendError(w, http.StatusBadRequest,
			handlers.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}
	if body.Goal == "" {
		handlers.SendError(w, http.StatusBadRequest,
			handlers.ErrCodeInvalidRequest, "goal is required")
		return
	}

	if r.orchestrator.State() == agent.StateRunning {
		handlers.SendError(w, http.StatusConflict,
			"ALREADY_RUNNING", "a goal is already running")
		return
	}

	go func() {
		// 目标生命周期独立于 HTTP 请求
		result, err := r.orchestrator.ExecuteGoal(context.Background(), body.Goal)
		if err != nil {
			logger.Warn().Err(err).Str("goal", body.Goal).Msg("Goal rejected")
			return
		}
		logger.Info().
			Str("status", string(result.Status)).
			Int("iterations", result.Iterations).
			Msg("Goal finished")
	}()

	handlers.SendJSON(w, http.StatusAccepted, GoalResponse{
		Status: "accepted",
		Goal:   body.Goal,
	})
}

// HandleInterrupt cancels the running goal.
func (r *Router) HandleInterrupt(w http.ResponseWriter, req *http.Request) {
	if r.orchestrator == nil {
		handlers.SendError(w, http.StatusServiceUnavailable,
			handlers.ErrCodeServiceUnavailable, "agent not initialized")
		return
	}

	if r.orchestrator.State() != agent.StateRunning {
		handlers.SendError(w, http.StatusConflict,
			"NOT_RUNNING", "no goal is running")
		return
	}

	r.orchestrator.Interrupt()
	handlers.SendJSON(w, http.StatusOK, map[string]string{"status": "interrupting"})
}

// HandleStatus reports the goal state machine plus the current session's
// counters.
func (r *Router) HandleStatus(w http.ResponseWriter, req *http.Request) {
	if r.orchestrator == nil {
		handlers.SendError(w, http.StatusServiceUnavailable,
			handlers.ErrCodeServiceUnavailable, "agent not initialized")
		return
	}

	resp := StatusResponse{
		State: string(r.orchestrator.State()),
		Goal:  r.orchestrator.CurrentGoal(),
	}

	if r.store != nil {
		if sess, err := r.store.Stats(); err == nil {
			resp.SessionKey = sess.SessionKey
			resp.MessageCount = sess.MessageCount
			resp.TotalTokens = sess.TotalTokens
		}
	}

	handlers.SendJSON(w, http.StatusOK, resp)
}
