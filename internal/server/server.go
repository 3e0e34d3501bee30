// Package server exposes the dispatcher and hub over HTTP and WebSocket.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/thorium-sim/thorium-core/internal/config"
	"github.com/thorium-sim/thorium-core/internal/dispatcher"
	"github.com/thorium-sim/thorium-core/internal/hub"
	"github.com/thorium-sim/thorium-core/internal/journal"
	"github.com/thorium-sim/thorium-core/internal/logging"
	"github.com/thorium-sim/thorium-core/internal/monitor"
	"github.com/thorium-sim/thorium-core/pkg/core"
	"github.com/thorium-sim/thorium-core/pkg/streaming"
)

const maxPayloadBytes = 1 << 20

// KindRateLimited is reported when a client exceeds its command rate.
const KindRateLimited core.ErrorKind = "rate_limited"

// Commander dispatches named commands.
type Commander interface {
	Dispatch(ctx context.Context, e dispatcher.Event) (any, error)
}

// JournalReader lists recent journal entries.
type JournalReader interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

// StatusReporter reports process status.
type StatusReporter interface {
	Status() monitor.Status
}

// Dependencies holds the collaborators the server exposes.
type Dependencies struct {
	Dispatcher Commander
	Hub        *hub.Hub
	Journal    JournalReader  // optional
	Monitor    StatusReporter // optional
	Logger     *slog.Logger
}

// Server serves the command, snapshot and subscription endpoints.
type Server struct {
	cfg      config.ServerConfig
	deps     Dependencies
	logger   *slog.Logger
	limiter  *rateLimiter
	upgrader ws.Upgrader

	mu    sync.Mutex
	conns map[*connection]struct{}
	wg    sync.WaitGroup
}

// New creates a server. Zero rate settings disable command rate limiting.
func New(cfg config.ServerConfig, deps Dependencies) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  logger.With("component", "server"),
		limiter: newRateLimiter(cfg.CommandsPerSecond, cfg.CommandBurst),
		conns:   make(map[*connection]struct{}),
	}
	s.upgrader = ws.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// Handler returns the routed, CORS-wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/commands/{name}", s.handleCommand)
	mux.HandleFunc("GET /api/snapshots/{topic}", s.handleSnapshot)
	mux.HandleFunc("GET /api/journal", s.handleJournal)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /ws", s.handleWS)

	c := cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.withRequestContext(mux))
}

// ListenAndServe serves on cfg.Address until ctx is done, then shuts down
// gracefully within cfg.ShutdownTimeout and closes open WebSockets.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.Address, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go s.limiter.sweepEvery(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "address", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	err := srv.Shutdown(shutdownCtx)
	s.closeConnections()
	s.wg.Wait()
	s.logger.Info("HTTP server stopped")
	return err
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

// withRequestContext tags each request's log records with a request id.
func (s *Server) withRequestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.ContextWithAttrs(r.Context(), slog.String("request", uuid.NewString()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"subscribers": s.deps.Hub.Subscribers(),
	})
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	if !s.limiter.allow(clientIP(r)) {
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusTooManyRequests, streaming.ResultMessage{
			Command: name,
			Kind:    string(KindRateLimited),
			Error:   "rate limit exceeded",
		})
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, streaming.ResultMessage{
			Command: name,
			Kind:    string(core.KindValidation),
			Error:   err.Error(),
		})
		return
	}

	ctx := logging.ContextWithAttrs(r.Context(), slog.String("command", name))
	result := s.dispatch(ctx, "", name, payload)
	writeJSON(w, statusFor(core.ErrorKind(result.Kind)), result)
}

// dispatch runs one command and converts the outcome to a result message.
func (s *Server) dispatch(ctx context.Context, id, name string, payload json.RawMessage) streaming.ResultMessage {
	res := streaming.ResultMessage{ID: id, Command: name}
	out, err := s.deps.Dispatcher.Dispatch(ctx, dispatcher.Event{
		Command:   name,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		res.Kind = string(dispatcher.ErrorKind(err))
		res.Error = err.Error()
		if res.Kind == string(core.KindInternal) {
			s.logger.ErrorContext(ctx, "Command failed", "error", err)
		} else {
			s.logger.DebugContext(ctx, "Command rejected", "kind", res.Kind, "error", err)
		}
		return res
	}
	res.OK = true
	res.Result = out
	return res
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	topic := r.PathValue("topic")
	if !streaming.KnownTopic(topic) {
		writeJSON(w, http.StatusNotFound, streaming.ErrorMessage{Error: fmt.Sprintf("unknown topic %q", topic)})
		return
	}

	data, err := s.deps.Hub.Current(topic)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Snapshot failed", "topic", topic, "error", err)
		writeJSON(w, http.StatusInternalServerError, streaming.ErrorMessage{Error: err.Error()})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleJournal(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		writeJSON(w, http.StatusNotFound, streaming.ErrorMessage{Error: "journal disabled"})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, streaming.ErrorMessage{Error: fmt.Sprintf("invalid limit %q", raw)})
			return
		}
		limit = n
	}

	entries, err := s.deps.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "Journal read failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, streaming.ErrorMessage{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.deps.Monitor == nil {
		writeJSON(w, http.StatusNotFound, streaming.ErrorMessage{Error: "monitor disabled"})
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Monitor.Status())
}

// statusFor maps an error kind to an HTTP status. The empty kind is success.
func statusFor(kind core.ErrorKind) int {
	switch kind {
	case "":
		return http.StatusOK
	case core.KindNotFound, dispatcher.KindUnknownCommand:
		return http.StatusNotFound
	case core.KindInvalidTarget:
		return http.StatusBadRequest
	case core.KindValidation:
		return http.StatusUnprocessableEntity
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("Failed to write response", "error", err)
	}
}
