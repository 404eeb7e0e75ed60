package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/lazypower/reverie/internal/engine"
	"github.com/lazypower/reverie/internal/logging"
	"github.com/lazypower/reverie/internal/memory"
	"github.com/lazypower/reverie/internal/metrics"
)

// Server is the reverie HTTP API server.
type Server struct {
	engine  *engine.Engine
	metrics *metrics.Recorder
	router  chi.Router
	version string
	started time.Time
	log     *logrus.Entry
}

// New creates a Server over the engine. rec may be nil, in which case
// /metrics answers 404.
func New(eng *engine.Engine, rec *metrics.Recorder, version string) *Server {
	s := &Server{
		engine:  eng,
		metrics: rec,
		version: version,
		started: time.Now(),
		log:     logging.For("server"),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(s.accessLog)

	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/clock", s.handleClock)
		r.Post("/clock/tick", s.handleTick)

		r.Get("/agents", s.handleListAgents)
		r.Post("/agents", s.handleCreateAgent)

		r.Route("/agents/{name}", func(r chi.Router) {
			r.Get("/", s.handleGetAgent)
			r.Delete("/", s.handleDeleteAgent)
			r.Post("/perceive", s.handlePerceive)
			r.Post("/actions", s.handleAction)
			r.Put("/traits", s.handleReviseTraits)
			r.Get("/concepts", s.handleListConcepts)
			r.Post("/concepts", s.handleAddConcept)
			r.Delete("/concepts/{id}", s.handleForget)
			r.Post("/retrieve", s.handleRetrieve)
			r.Get("/current-events", s.handleCurrentEvents)
			r.Get("/perceptions", s.handlePerceptions)
			r.Get("/export", s.handleExport)
			r.Put("/import", s.handleImport)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := true
	if err := s.engine.DB.Ping(); err != nil {
		dbOK = false
	}

	embedder := ""
	if s.engine.Embedder != nil {
		embedder = s.engine.Embedder.Model()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"uptime":   time.Since(s.started).Seconds(),
		"db":       dbOK,
		"db_path":  s.engine.DB.Path,
		"embedder": embedder,
		"sim_time": memory.FormatTime(s.engine.Clock.Now()),
	})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"took":       time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
