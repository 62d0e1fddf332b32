package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"recap/internal/config"
	"recap/internal/logging"
	"recap/internal/pipeline"
	"recap/internal/progress"
	"recap/internal/record"
	"recap/internal/services"
)

// Server is the client-facing HTTP surface: upload ingestion, the progress
// stream, the stage progress ingress, and the task listing.
type Server struct {
	cfg        *config.Config
	logger     *slog.Logger
	bus        *progress.Bus
	runner     *pipeline.Runner
	supervisor *pipeline.Supervisor
	store      *record.Store

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// New wires the gateway routes. store may be nil; the task listing then
// reports only in-flight work.
func New(cfg *config.Config, bus *progress.Bus, runner *pipeline.Runner, supervisor *pipeline.Supervisor, store *record.Store, logger *slog.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "gateway"),
		bus:        bus,
		runner:     runner,
		supervisor: supervisor,
		store:      store,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/uploadfile", s.handleUpload)
	mux.HandleFunc("/progress/stream/", s.handleStream)
	mux.HandleFunc("/progress/", s.handleProgressIngress)
	mux.HandleFunc("/api/tasks", s.handleTasks)
	s.handler = mux

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler exposes the route table for in-process tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start binds the configured address and serves until ctx ends. Read and
// write timeouts stay unset on purpose: uploads and progress streams are
// long-lived by design.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.Paths.APIBind)
	if err != nil {
		return fmt.Errorf("gateway listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("gateway server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("gateway listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once Start has succeeded.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down, allowing in-flight requests a short drain.
func (s *Server) Stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// writeClassified maps a classified service error onto its response status.
func (s *Server) writeClassified(w http.ResponseWriter, err error) {
	s.writeError(w, services.HTTPStatus(err), err.Error())
}

func pathTaskID(path, prefix string) (string, bool) {
	id := strings.TrimPrefix(path, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
