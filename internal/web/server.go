// Package web serves the chat bot and stored sessions over HTTP and
// websocket.
package web

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/ehrlich-b/parley/internal/chat"
	"github.com/ehrlich-b/parley/internal/conversation"
	"github.com/ehrlich-b/parley/internal/history"
	"github.com/ehrlich-b/parley/internal/logger"
	"github.com/google/uuid"
)

// DefaultSessionKey is used when a request names no session.
const DefaultSessionKey = "default"

// LoadedMessages is how many records a session load returns.
const LoadedMessages = 50

type ctxKey int

const requestIDKey ctxKey = iota

// Options configures a Server.
type Options struct {
	Bot      *chat.Bot
	Backend  history.Backend
	Registry *conversation.Registry
	// JWTSecret enables bearer auth on every route except /health.
	JWTSecret []byte
}

// Server is the HTTP front end. Each session key is served by one request
// at a time.
type Server struct {
	bot      *chat.Bot
	backend  history.Backend
	registry *conversation.Registry
	secret   []byte
	locks    sessionLocks
	handler  http.Handler
}

// NewServer wires the routes.
func NewServer(opts Options) *Server {
	s := &Server{
		bot:      opts.Bot,
		backend:  opts.Backend,
		registry: opts.Registry,
		secret:   opts.JWTSecret,
	}
	if s.registry == nil {
		s.registry = conversation.NewRegistry()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/sessions", s.handleSessions)
	mux.HandleFunc("POST /api/load-session", s.handleLoadSession)
	mux.HandleFunc("GET /api/sessions/{id}/summary", s.handleSessionSummary)
	mux.HandleFunc("GET /ws/chat", s.handleWSChat)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})

	s.handler = s.withRequestID(s.requireAuth(mux))
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Registry returns the live sessions.
func (s *Server) Registry() *conversation.Registry {
	return s.registry
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("web server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("web server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// withSession runs fn while holding the lock for key.
func (s *Server) withSession(key string, fn func(h *conversation.History)) {
	mu := s.locks.get(key)
	mu.Lock()
	defer mu.Unlock()
	fn(s.registry.GetOrCreate(key))
}

type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *sessionLocks) get(key string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks == nil {
		l.locks = make(map[string]*sync.Mutex)
	}
	mu, ok := l.locks[key]
	if !ok {
		mu = &sync.Mutex{}
		l.locks[key] = mu
	}
	return mu
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, id))

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		s.log(r).Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", time.Since(start))
	})
}

// log returns the process logger tagged with the request ID.
func (s *Server) log(r *http.Request) *slog.Logger {
	if id, ok := r.Context().Value(requestIDKey).(string); ok {
		return logger.Log.With("request_id", id)
	}
	return logger.Log
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Hijack lets the websocket handshake take over the connection.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
