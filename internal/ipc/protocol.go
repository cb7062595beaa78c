// Package ipc implements the local control channel: the daemon listens
// on a unix socket (named pipe on Windows) and the ctl command talks to
// it with length-prefixed JSON frames, one reply per request.
package ipc

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

const (
	// UnixSocketPath is the default control socket path (macOS/Linux).
	UnixSocketPath = "/tmp/pilot.sock"

	// WindowsPipeName is the Windows named pipe path.
	WindowsPipeName = `\\.\pipe\pilot-ipc`

	// ProtocolVersion is the current control protocol version.
	ProtocolVersion = "1.0"

	// MaxMessageSize is the maximum allowed frame payload (1MB).
	MaxMessageSize = 1024 * 1024

	// HeaderSize is the size of the length header (4 bytes, big endian).
	HeaderSize = 4
)

// MessageType 控制消息类型
type MessageType string

const (
	// MsgSubmitGoal asks the daemon to start a goal.
	MsgSubmitGoal MessageType = "submit_goal"

	// MsgInterrupt cancels the running goal.
	MsgInterrupt MessageType = "interrupt"

	// MsgStatus queries the goal state machine.
	MsgStatus MessageType = "status"

	// MsgPing is a health probe; the daemon answers MsgPong.
	MsgPing MessageType = "ping"
	MsgPong MessageType = "pong"

	// MsgResult is the success reply to a request.
	MsgResult MessageType = "result"

	// MsgError is the failure reply to a request.
	MsgError MessageType = "error"
)

// Message 控制信道上的一帧
type Message struct {
	ID        string          `json:"id"`
	Version   string          `json:"version"`
	Type      MessageType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"timestamp"`

	// ReplyTo is the ID of the request this message answers.
	ReplyTo string `json:"reply_to,omitempty"`
}

// NewMessage creates a message of the given type.
func NewMessage(msgType MessageType) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Version:   ProtocolVersion,
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
	}
}

// WithPayload sets the payload from any serializable value.
func (m *Message) WithPayload(payload any) *Message {
	data, err := json.Marshal(payload)
	if err == nil {
		m.Payload = data
	}
	return m
}

// WithReplyTo sets the reply-to field.
func (m *Message) WithReplyTo(replyTo string) *Message {
	m.ReplyTo = replyTo
	return m
}

// ParsePayload unmarshals the payload into the given target.
func (m *Message) ParsePayload(target any) error {
	if m.Payload == nil {
		return nil
	}
	return json.Unmarshal(m.Payload, target)
}

// SubmitGoalPayload is the payload for MsgSubmitGoal.
type SubmitGoalPayload struct {
	Goal string `json:"goal"`
}

// StatusPayload is the result payload for MsgStatus.
type StatusPayload struct {
	State string `json:"state"`
	Goal  string `json:"goal,omitempty"`
}

// ResultPayload acknowledges an accepted request.
type ResultPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ErrorPayload is the payload for MsgError.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler answers one request. A nil reply gets converted to a generic
// ok result.
type Handler func(msg *Message) *Message

// ErrorReply builds an error reply to the given request.
func ErrorReply(req *Message, code, message string) *Message {
	return NewMessage(MsgError).
		WithReplyTo(req.ID).
		WithPayload(&ErrorPayload{Code: code, Message: message})
}
