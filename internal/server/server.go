// Package server exposes any gateway.Gateway over HTTP, with the change
// feeds served as websockets. It is the backend notes clients connect to.
package server

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/ulule/limiter/v3"
	stdlibmw "github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	memorystore "github.com/ulule/limiter/v3/drivers/store/memory"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	"go.uber.org/zap"

	"github.com/Makepad-fr/notes/internal/api"
	"github.com/Makepad-fr/notes/internal/gateway"
	"github.com/Makepad-fr/notes/internal/model"
	"github.com/Makepad-fr/notes/internal/validation"
)

// Server routes note requests to a gateway.
type Server struct {
	gw       gateway.Gateway
	log      *zap.Logger
	token    string
	origins  []string
	rate     *limiter.Rate
	service  string
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*websocket.Conn]struct{}
	closed bool
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// WithToken requires "Authorization: Bearer <token>" (or ?access_token=
// on feed upgrades) on every request.
func WithToken(token string) Option { return func(s *Server) { s.token = token } }

// WithAllowedOrigins sets the CORS allow-list. Empty means any origin.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithRateLimit limits requests per client IP. Over the limit the server
// answers 429.
func WithRateLimit(rate limiter.Rate) Option { return func(s *Server) { s.rate = &rate } }

// WithTracing wraps the REST routes in OpenTelemetry spans named after
// service. Feed upgrades are not traced.
func WithTracing(service string) Option { return func(s *Server) { s.service = service } }

func New(gw gateway.Gateway, opts ...Option) *Server {
	s := &Server{
		gw:    gw,
		log:   zap.NewNop(),
		conns: map[*websocket.Conn]struct{}{},
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.upgrader.CheckOrigin = s.checkOrigin
	return s
}

// Handler returns the full middleware chain: CORS, request logging, rate
// limiting, auth, and tracing on the REST routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logging)
	if s.rate != nil {
		r.Use(s.rateLimit(*s.rate))
	}
	r.Use(s.auth)

	rest := r.NewRoute().Subrouter()
	if s.service != "" {
		rest.Use(otelmux.Middleware(s.service))
	}
	rest.Methods(http.MethodGet).Path(api.PathNotes).HandlerFunc(s.listNotes)
	rest.Methods(http.MethodPost).Path(api.PathNotes).HandlerFunc(s.createNote)
	rest.Methods(http.MethodPatch).Path(api.PathNote).HandlerFunc(s.updateNote)
	rest.Methods(http.MethodDelete).Path(api.PathNote).HandlerFunc(s.deleteNote)

	r.Methods(http.MethodGet).Path(api.PathFeedCreations).HandlerFunc(s.feedCreations)
	r.Methods(http.MethodGet).Path(api.PathFeedDeletions).HandlerFunc(s.feedDeletions)

	c := cors.New(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	})
	return c.Handler(r)
}

// Close disconnects every feed client and turns away feeds upgraded
// afterwards. Hijacked websocket connections are not covered by
// http.Server.Shutdown, so register Close with RegisterOnShutdown.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for conn := range s.conns {
		_ = conn.Close()
	}
	clear(s.conns)
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.log.Info("handled",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", m.Code),
			zap.Duration("duration", m.Duration),
		)
	})
}

func (s *Server) rateLimit(rate limiter.Rate) mux.MiddlewareFunc {
	instance := limiter.New(memorystore.NewStore(), rate)
	mw := stdlibmw.NewMiddleware(instance, stdlibmw.WithKeyGetter(clientIP))
	return mw.Handler
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		if got == "" {
			got = r.URL.Query().Get("access_token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.origins) == 0 || r.Header.Get("Origin") == "" {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, o := range s.origins {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	return false
}

func (s *Server) listNotes(w http.ResponseWriter, r *http.Request) {
	notes, err := s.gw.ListAll(r.Context())
	if err != nil {
		s.gatewayError(w, "list_notes_failed", err)
		return
	}
	if notes == nil {
		notes = []model.Note{}
	}
	writeJSON(w, http.StatusOK, notes)
}

func (s *Server) createNote(w http.ResponseWriter, r *http.Request) {
	var n model.Note
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := validation.Note(n); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.gw.Create(r.Context(), n); err != nil {
		s.gatewayError(w, "create_note_failed", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (s *Server) updateNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var p model.NotePatch
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if p.Empty() {
		writeError(w, http.StatusBadRequest, "nothing to update")
		return
	}
	if err := s.gw.Update(r.Context(), id, p); err != nil {
		s.gatewayError(w, "update_note_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) deleteNote(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.gw.Delete(r.Context(), id); err != nil {
		s.gatewayError(w, "delete_note_failed", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) gatewayError(w http.ResponseWriter, event string, err error) {
	switch {
	case errors.Is(err, gateway.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, gateway.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error(event, zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.Error{Error: msg})
}
