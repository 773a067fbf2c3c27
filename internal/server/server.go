// internal/server/server.go

// Package server exposes the calculation service over HTTP.
package server

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jmoiron/sqlx"

	"github.com/nettolabs/netto/internal/core/db"
	"github.com/nettolabs/netto/internal/loader"
	"github.com/nettolabs/netto/internal/rules"
	"github.com/nettolabs/netto/internal/store"
)

/*
 * Service wiring and the compiled-ruleset cache.
 *
 * Stored documents are raw JSONC; compiling one on every calculation
 * would dominate request latency, so the server keeps an engine per
 * (country, year), invalidated by the row's updated_at. A re-imported
 * document bumps updated_at and the next request recompiles. The cache
 * is never invalidated by time, only by change.
 */

// Server handles the HTTP API. Construct with New, mount via Router.
type Server struct {
	log      *slog.Logger
	store    *store.Store
	registry *rules.Registry
	conn     *sqlx.DB
	timeout  time.Duration

	mu    sync.RWMutex
	cache map[string]*cachedEngine
}

type cachedEngine struct {
	updatedAt string
	engine    *rules.Engine
}

// New wires a server over a loaded query set and rule registry.
func New(log *slog.Logger, queries *db.Queries, registry *rules.Registry, timeout time.Duration) *Server {
	return &Server{
		log:      log,
		store:    store.New(queries),
		registry: registry,
		conn:     queries.DB(),
		timeout:  timeout,
		cache:    map[string]*cachedEngine{},
	}
}

// Router builds the chi handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/calculate", s.handleCalculate)
		r.Get("/flags", s.handleFlags)
		r.Get("/rulesets", s.handleRulesets)
		r.Get("/health", s.handleHealth)
	})

	return r
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
			"remote", r.RemoteAddr,
		)
	})
}

// engineFor returns the compiled engine for (country, year), reusing
// the cached compilation while the stored row is unchanged.
func (s *Server) engineFor(country string, year int) (*rules.Engine, error) {
	rs, err := s.store.Get(country, year)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s/%d", rs.Country, rs.Year)

	s.mu.RLock()
	cached, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && cached.updatedAt == rs.UpdatedAt {
		return cached.engine, nil
	}

	doc, err := loader.Load(strings.NewReader(rs.Document))
	if err != nil {
		return nil, fmt.Errorf("stored ruleset %s: %w", key, err)
	}
	compiled, err := loader.Compile(doc, s.registry)
	if err != nil {
		return nil, fmt.Errorf("stored ruleset %s: %w", key, err)
	}
	engine := rules.NewEngine(compiled)

	s.mu.Lock()
	s.cache[key] = &cachedEngine{updatedAt: rs.UpdatedAt, engine: engine}
	s.mu.Unlock()

	return engine, nil
}
