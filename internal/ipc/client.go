package ipc

import (
	"context"
	"fmt"
	"net"
	"runtime"
	"time"
)

// Client is a one-shot control client used by the ctl command. Each
// Request dials the daemon, sends one frame and reads one reply.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// ClientOption is a functional option for Client
type ClientOption func(*Client)

// WithSocketPath sets a custom socket path
func WithSocketPath(path string) ClientOption {
	return func(c *Client) {
		c.socketPath = path
	}
}

// WithTimeout sets the per-request deadline.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a control client for the platform socket path.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout: 5 * time.Second,
	}

	if runtime.GOOS == "windows" {
		c.socketPath = WindowsPipeName
	} else {
		c.socketPath = UnixSocketPath
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Request sends a message and waits for the reply. An error reply from
// the daemon is returned as an error.
func (c *Client) Request(ctx context.Context, msg *Message) (*Message, error) {
	conn, err := c.dial()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to daemon at %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)

	if err := NewEncoder(conn).Encode(msg); err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	reply, err := NewDecoder(conn).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}

	if reply.Type == MsgError {
		var p ErrorPayload
		if err := reply.ParsePayload(&p); err != nil {
			return nil, fmt.Errorf("daemon returned an unreadable error: %w", err)
		}
		return nil, fmt.Errorf("daemon error %s: %s", p.Code, p.Message)
	}

	return reply, nil
}

// Ping checks whether the daemon is reachable.
func (c *Client) Ping(ctx context.Context) error {
	reply, err := c.Request(ctx, NewMessage(MsgPing))
	if err != nil {
		return err
	}
	if reply.Type != MsgPong {
		return fmt.Errorf("unexpected reply type: %s", reply.Type)
	}
	return nil
}

func (c *Client) dial() (net.Conn, error) {
	return dialPipe(c.socketPath)
}
