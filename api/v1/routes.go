// Package v1 implements the gateway's REST surface.
package v1

import (
	"net/http"

	"github.com/gorilla/mux"

	"pilot/internal/agent"
	"pilot/internal/events"
	"pilot/internal/gateway/handlers"
	"pilot/internal/skills"
	"pilot/internal/storage"
)

// RouterDeps holds dependencies for the v1 API router.
type RouterDeps struct {
	Orchestrator *agent.Orchestrator
	Store        *storage.Store
	Skills       *skills.Manager
	Bus          *events.Bus
	Version      string
}

// Router wraps v1 API dependencies.
type Router struct {
	orchestrator *agent.Orchestrator
	store        *storage.Store
	skills       *skills.Manager
	bus          *events.Bus
	version      string
}

// NewRouter creates a new v1 API router.
func NewRouter(deps *RouterDeps) *Router {
	if deps == nil {
		deps = &RouterDeps{}
	}
	return &Router{
		orchestrator: deps.Orchestrator,
		store:        deps.Store,
		skills:       deps.Skills,
		bus:          deps.Bus,
		version:      deps.Version,
	}
}

// SetOrchestrator updates the orchestrator dependency.
func (r *Router) SetOrchestrator(o *agent.Orchestrator) {
	r.orchestrator = o
}

// SetStore updates the session store dependency.
func (r *Router) SetStore(s *storage.Store) {
	r.store = s
}

// SetSkills updates the skill manager dependency.
func (r *Router) SetSkills(m *skills.Manager) {
	r.skills = m
}

// SetBus updates the event bus dependency.
func (r *Router) SetBus(b *events.Bus) {
	r.bus = b
}

// RegisterRoutes registers all v1 API routes.
func (r *Router) RegisterRoutes(router *mux.Router) {
	v1 := router.PathPrefix("/api/v1").Subrouter()

	// Health
	v1.HandleFunc("/health", handlers.HealthHandler(r.version)).Methods(http.MethodGet)

	// Goal control
	v1.HandleFunc("/goal", r.HandleSubmitGoal).Methods(http.MethodPost)
	v1.HandleFunc("/interrupt", r.HandleInterrupt).Methods(http.MethodPost)
	v1.HandleFunc("/status", r.HandleStatus).Methods(http.MethodGet)

	// Sessions
	v1.HandleFunc("/sessions", r.HandleListSessions).Methods(http.MethodGet)
	v1.HandleFunc("/sessions/reset", r.HandleResetSession).Methods(http.MethodPost)
	v1.HandleFunc("/sessions/{key}/messages", r.HandleGetMessages).Methods(http.MethodGet)

	// Skills
	v1.HandleFunc("/skills", r.HandleListSkills).Methods(http.MethodGet)

	// TTS relay
	v1.HandleFunc("/tts", r.HandleTTSRelay).Methods(http.MethodPost)
}
