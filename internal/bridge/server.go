// Package bridge exposes the session over HTTP: JSON endpoints for the
// current status and queue, playback requests, and a websocket that pushes
// every new snapshot.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/ckaznable/encore/internal/logging"
	"github.com/ckaznable/encore/internal/session"
	"github.com/ckaznable/encore/mpdprotocol"
)

var logger = logging.Module("bridge")

const (
	requestTimeout = 10 * time.Second
	writeTimeout   = 5 * time.Second
	maxBodyBytes   = 4096
)

// Backend is the part of *session.Session the bridge uses.
type Backend interface {
	Snapshot() (session.Snapshot, bool)
	Subscribe() (<-chan session.Snapshot, func())
	Play(ctx context.Context, pos int) error
	Exec(ctx context.Context, line string) ([]string, error)
}

type Server struct {
	backend Backend
}

func NewServer(backend Backend) *Server {
	return &Server{backend: backend}
}

type commandRequest struct {
	Command string `json:"command"`
}

type commandResponse struct {
	Lines []string `json:"lines"`
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/queue", s.handleQueue)
	r.Get("/ws", s.handleWebsocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Post("/play/{pos}", s.handlePlay)
		r.Post("/command", s.handleCommand)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	_, ready := s.backend.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"ready":  ready,
	})
}

func (s *Server) snapshot(w http.ResponseWriter) (session.Snapshot, bool) {
	snap, ok := s.backend.Snapshot()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no status received from the server yet")
	}
	return snap, ok
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w); ok {
		writeJSON(w, http.StatusOK, snap.Status)
	}
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if snap, ok := s.snapshot(w); ok {
		writeJSON(w, http.StatusOK, snap.Queue)
	}
}

func (s *Server) handlePlay(w http.ResponseWriter, r *http.Request) {
	pos, err := strconv.Atoi(chi.URLParam(r, "pos"))
	if err != nil || pos < 0 {
		writeError(w, http.StatusBadRequest, "position must be a non-negative integer")
		return
	}
	if err := s.backend.Play(r.Context(), pos); err != nil {
		writeRequestError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	line := strings.TrimSpace(req.Command)
	if line == "" {
		writeError(w, http.StatusBadRequest, "command is required")
		return
	}

	lines, err := s.backend.Exec(r.Context(), line)
	if err != nil {
		writeRequestError(w, r, err)
		return
	}
	if lines == nil {
		lines = []string{}
	}
	writeJSON(w, http.StatusOK, commandResponse{Lines: lines})
}

// handleWebsocket streams snapshots, starting with the current one, until
// the client goes away or the session stops.
func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logger.WithError(err).Debug("Websocket accept failed")
		return
	}
	defer conn.CloseNow()

	updates, unsubscribe := s.backend.Subscribe()
	defer unsubscribe()

	// Clients only listen; CloseRead handles their close frame.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "session stopped")
				return
			}
			writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(writeCtx, conn, snap)
			cancel()
			if err != nil {
				logger.WithError(err).Debug("Websocket write failed")
				return
			}
		}
	}
}

// statusFor maps a request error to an HTTP status.
func statusFor(err error) int {
	var se *mpdprotocol.ServerError
	switch {
	case errors.Is(err, mpdprotocol.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.As(err, &se):
		return http.StatusBadGateway
	case errors.Is(err, session.ErrStopped):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeRequestError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	logger.WithFields(log.Fields{
		"path":   r.URL.Path,
		"status": status,
	}).WithError(err).Warn("Request failed")
	writeError(w, status, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs each request through logrus.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.WithFields(log.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("Request served")
	})
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.WithField("addr", addr).Info("Bridge listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
