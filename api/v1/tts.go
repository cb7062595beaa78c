package v1

import (
	"encoding/json"
	"net/http"

	"pilot/internal/events"
	"pilot/internal/gateway/handlers"
)

// TTSRequest 语音协作进程上报的事件
type TTSRequest struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

var ttsTypes = map[events.Type]bool{
	events.TTSAudio: true,
	events.TTSSkip:  true,
	events.TTSError: true,
}

// HandleTTSRelay forwards a TTS sidecar event onto the bus, untouched.
// The WebSocket bridge delivers it to every connected client.
func (r *Router) HandleTTSRelay(w http.ResponseWriter, req *http.Request) {
	if r.bus == nil {
		handlers.SendError(w, http.StatusServiceUnavailable,
			handlers.ErrCodeServiceUnavailable, "event bus not initialized")
		return
	}

	var body TTSRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		handlers.SendError(w, http.StatusBadRequest,
			handlers.ErrCodeInvalidRequest, "invalid JSON body")
		return
	}

	t := events.Type(body.Type)
	if !ttsTypes[t] {
		handlers.SendError(w, http.StatusBadRequest,
			handlers.ErrCodeInvalidRequest, "unknown tts event type")
		return
	}

	r.bus.Relay(t, events.RelayData(body.Data))
	handlers.SendJSON(w, http.StatusAccepted, map[string]string{"status": "relayed"})
}
