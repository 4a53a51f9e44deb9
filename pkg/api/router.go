// Package api is the thin HTTP adapter over the Workflow Engine's public
// operations: it owns request validation and response encoding, none of
// the gate/retry logic.
package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"

	"github.com/jordigilh/docflow/pkg/eventbus"
	"github.com/jordigilh/docflow/pkg/workflow/engine"
)

// Documents is the narrow document-CRUD collaborator the Control API
// needs beyond the Workflow Engine itself — spec.md §1 scopes "thin CRUD
// for user documents" out of the workflow core, so it lives behind its
// own small interface here rather than in pkg/workflow/engine.
type Documents interface {
	Create(title string, config engine.Config) (engine.Document, error)
	List(userID string) ([]engine.Document, error)
}

// Server wires the Control API router and the real-time event channel
// over the engine and event bus.
type Server struct {
	router *chi.Mux
}

// NewServer builds the router named in spec.md §6: document CRUD,
// workflow lifecycle, and the WebSocket upgrade endpoint.
func NewServer(eng *engine.Engine, docs Documents, bus *eventbus.Bus, allowedOrigins []string, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
	}
	h := &handlers{engine: eng, docs: docs, log: log}
	ws := &wsHandler{bus: bus, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/workflow", func(r chi.Router) {
		r.Post("/documents", h.createDocument)
		r.Get("/documents", h.listDocuments)
		r.Post("/start", h.start)
		r.Post("/{id}/stop", h.stop)
		r.Get("/{id}/status", h.status)
		r.Get("/{id}/nodes", h.nodes)
		r.Post("/{id}/rollback/{node_id}", h.rollback)
		r.Get("/{id}/ws", ws.serve)
	})

	return &Server{router: r}
}

// Router exposes the underlying chi.Mux for cmd/workflow-service to
// mount under an *http.Server.
func (s *Server) Router() chi.Router {
	return s.router
}
