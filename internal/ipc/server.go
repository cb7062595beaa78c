package ipc

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"sync"
	"time"

	"pilot/pkg/logger"
)

// Server listens on the control socket and answers ctl requests. Each
// request gets exactly one reply on the same connection.
type Server struct {
	listener   net.Listener
	socketPath string

	handlers   map[MessageType]Handler
	handlersMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ServerOption is a functional option for Server
type ServerOption func(*Server)

// WithListenPath overrides the platform socket path.
func WithListenPath(path string) ServerOption {
	return func(s *Server) {
		s.socketPath = path
	}
}

// NewServer creates the control server. Handlers are registered before
// Start.
func NewServer(opts ...ServerOption) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		handlers: make(map[MessageType]Handler),
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.RegisterHandler(MsgPing, func(msg *Message) *Message {
		return NewMessage(MsgPong).WithReplyTo(msg.ID)
	})

	return s
}

// Start begins accepting connections on the platform socket path.
func (s *Server) Start() error {
	socketPath := s.socketPath
	if socketPath == "" {
		socketPath = s.getSocketPath()
		s.socketPath = socketPath
	}

	if runtime.GOOS != "windows" {
		os.Remove(socketPath)
	}

	listener, err := listenPipe(socketPath)
	if err != nil {
		return fmt.Errorf("failed to start IPC server: %w", err)
	}
	s.listener = listener

	if runtime.GOOS != "windows" {
		if err := os.Chmod(socketPath, 0600); err != nil {
			logger.Warnf("failed to set socket permissions: %v", err)
		}
	}

	logger.Infof("IPC server listening on %s", socketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// Stop closes the listener and waits for in-flight connections.
func (s *Server) Stop() error {
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	if runtime.GOOS != "windows" && s.socketPath != "" {
		os.Remove(s.socketPath)
	}

	s.wg.Wait()
	logger.Info().Msg("IPC server stopped")
	return nil
}

// SocketPath returns the socket path being used.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// RegisterHandler installs the handler for a message type. The last
// registration wins.
func (s *Server) RegisterHandler(msgType MessageType, handler Handler) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[msgType] = handler
}

func (s *Server) getSocketPath() string {
	if runtime.GOOS == "windows" {
		return WindowsPipeName
	}
	return UnixSocketPath
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				logger.Warnf("failed to accept connection: %v", err)
				continue
			}
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConnection(conn)
		}()
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	decoder := NewDecoder(conn)
	encoder := NewEncoder(conn)

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

		msg, err := decoder.Decode()
		if err != nil {
			if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
				continue
			}
			if err.Error() != "EOF" {
				logger.Warnf("failed to decode message: %v", err)
			}
			return
		}

		reply := s.dispatch(msg)

		_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := encoder.Encode(reply); err != nil {
			logger.Warnf("failed to send reply for %s: %v", msg.Type, err)
			return
		}
	}
}

func (s *Server) dispatch(msg *Message) *Message {
	s.handlersMu.RLock()
	handler, ok := s.handlers[msg.Type]
	s.handlersMu.RUnlock()

	if !ok {
		return ErrorReply(msg, "UNKNOWN_TYPE", fmt.Sprintf("no handler for message type: %s", msg.Type))
	}

	reply := handler(msg)
	if reply == nil {
		reply = NewMessage(MsgResult).
			WithReplyTo(msg.ID).
			WithPayload(&ResultPayload{Status: "ok"})
	}
	return reply
}
