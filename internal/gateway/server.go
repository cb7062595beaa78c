// Package gateway provides the local HTTP gateway: the REST surface and
// the WebSocket event stream.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	v1 "pilot/api/v1"
	"pilot/internal/config"
	"pilot/internal/events"
	"pilot/internal/gateway/handlers"
	"pilot/internal/gateway/middleware"
	"pilot/internal/gateway/websocket"
	"pilot/pkg/logger"
)

// Server 网关服务器，只监听回环地址
type Server struct {
	httpServer  *http.Server
	router      *mux.Router
	hub         *websocket.Hub
	config      *config.Config
	bus         *events.Bus
	rateLimiter *middleware.RateLimiter
	apiRouter   *v1.Router

	stopBridge func()
}

// NewServer creates the gateway. The bus feeds the WebSocket stream; the
// deps populate the REST handlers.
func NewServer(cfg *config.Config, bus *events.Bus, deps *v1.RouterDeps) *Server {
	router := mux.NewRouter()
	hub := websocket.NewHub()

	rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())

	// Recovery -> Logging -> CORS -> RateLimit
	handler := middleware.Recovery(
		middleware.Logging(
			middleware.CORS(
				rateLimiter.RateLimit(router),
			),
		),
	)

	s := &Server{
		httpServer: &http.Server{
			Handler:      handler,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 0, // WebSocket 连接由自身的 deadline 管理
			IdleTimeout:  120 * time.Second,
		},
		router:      router,
		hub:         hub,
		config:      cfg,
		bus:         bus,
		rateLimiter: rateLimiter,
		apiRouter:   v1.NewRouter(deps),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.apiRouter.RegisterRoutes(s.router)

	s.router.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		websocket.ServeWs(s.hub, w, r)
	})
}

// Start runs the HTTP server. It blocks until Shutdown or a listener
// error.
func (s *Server) Start() error {
	handlers.InitStartTime()

	addr := fmt.Sprintf("%s:%d", s.config.Gateway.Host, s.config.Gateway.Port)
	s.httpServer.Addr = addr

	go s.hub.Run()
	s.startEventBridge()

	logger.Info().Str("addr", addr).Msg("Starting gateway server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// startEventBridge forwards every bus event to the WebSocket hub.
func (s *Server) startEventBridge() {
	if s.bus == nil {
		return
	}

	ch, cancel := s.bus.Subscribe()
	s.stopBridge = cancel

	go func() {
		for ev := range ch {
			data, err := json.Marshal(ev)
			if err != nil {
				logger.Warn().Err(err).Str("type", string(ev.Type)).Msg("Failed to marshal event")
				continue
			}
			s.hub.BroadcastAll(data)
		}
	}()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info().Msg("Shutting down gateway server")

	if s.stopBridge != nil {
		s.stopBridge()
	}
	s.hub.Stop()
	s.rateLimiter.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}
	return nil
}

// Router returns the underlying router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *websocket.Hub {
	return s.hub
}
