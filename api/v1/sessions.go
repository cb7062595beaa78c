package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"pilot/internal/gateway/handlers"
	"pilot/internal/storage"
)

// SessionListResponse is the response for listing sessions.
type SessionListResponse struct {
	Sessions []*storage.Session `json:"sessions"`
	Count    int                `json:"count"`
}

// MessageListResponse is the response for a session's messages.
type MessageListResponse struct {
	SessionKey string                    `json:"session_key"`
	Messages   []*storage.SessionMessage `json:"messages"`
	Count      int                       `json:"count"`
}

// HandleListSessions lists sessions, most recent first.
func (r *Router) HandleListSessions(w http.ResponseWriter, req *http.Request) {
	if r.store == nil {
		handlers.SendError(w, http.StatusServiceUnavailable,
			handlers.ErrCodeServiceUnavailable, "storage not initialized")
		return
	}

	limit := queryInt(req, "limit", 50)
	offset := queryInt(req, "offset", 0)

	sessions, err := r.store.DB().ListSessions(limit, offset)
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError,
			handlers.ErrCodeInternalError, err.Error())
		return
	}

	handlers.SendJSON(w, http.StatusOK, SessionListResponse{
		Sessions: sessions,
		Count:    len(sessions),
	})
}

// HandleGetMessages returns the messages of one session. Screenshot
// payloads are elided unless include_images=true.
func (r *Router) HandleGetMessages(w http.ResponseWriter, req *http.Request) {
	if r.store == nil {
		handlers.SendError(w, http.StatusServiceUnavailable,
			handlers.ErrCodeServiceUnavailable, "storage not initialized")
		return
	}

	key := mux.Vars(req)["key"]
	sess, err := r.store.DB().GetSession(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			handlers.SendError(w, http.StatusNotFound,
				handlers.ErrCodeNotFound, "session not found")
			return
		}
		handlers.SendError(w, http.StatusInternalServerError,
			handlers.ErrCodeInternalError, err.Error())
		return
	}

	messages, err := r.store.DB().GetMessages(sess.ID, queryInt(req, "limit", 0))
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError,
			handlers.ErrCodeInternalError, err.Error())
		return
	}

	if req.URL.Query().Get("include_images") != "true" {
		for _, m := range messages {
			if m.HasImage {
				m.Content = "[screenshot omitted]"
			}
		}
	}

	handlers.SendJSON(w, http.StatusOK, MessageListResponse{
		SessionKey: sess.SessionKey,
		Messages:   messages,
		Count:      len(messages),
	})
}

// HandleResetSession abandons the current session and starts a fresh one.
// The old session stays until its retention window lapses.
func (r *Router) HandleResetSession(w http.ResponseWriter, req *http.Request) {
	if r.store == nil {
		handlers.SendError(w, http.StatusServiceUnavailable,
			handlers.ErrCodeServiceUnavailable, "storage not initialized")
		return
	}

	sess, err := r.store.Reset()
	if err != nil {
		handlers.SendError(w, http.StatusInternalServerError,
			handlers.ErrCodeInternalError, err.Error())
		return
	}

	handlers.SendJSON(w, http.StatusOK, sess)
}

func queryInt(req *http.Request, name string, fallback int) int {
	raw := req.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}
