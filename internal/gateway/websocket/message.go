// Package websocket fans the runtime's event stream out to connected
// clients. The stream is one-way; the only client-to-server traffic is
// the ping/pong keepalive.
package websocket

// WSMessage 客户端控制消息信封。事件信封由 events 包产出，原样转发。
type WSMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Control message types.
const (
	TypePing  = "ping"
	TypePong  = "pong"
	TypeError = "error"
)
