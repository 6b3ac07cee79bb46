// Package server exposes the workflow engine over HTTP with JSON bodies.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/abhisek/lessonloop/internal/dispatch"
	"github.com/abhisek/lessonloop/internal/evaluator"
	"github.com/abhisek/lessonloop/internal/lesson"
	"github.com/abhisek/lessonloop/internal/observability"
	"github.com/abhisek/lessonloop/internal/session"
	"github.com/abhisek/lessonloop/internal/store"
	"github.com/abhisek/lessonloop/internal/workflow"
)

const maxBodyBytes = 1 << 20

// Server routes requests to the engine. Calls that touch one session are
// funnelled through the dispatch pool so they run in arrival order.
type Server struct {
	engine *workflow.Engine
	pool   *dispatch.Pool
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a server.
func New(engine *workflow.Engine, pool *dispatch.Pool, logger *slog.Logger) *Server {
	s := &Server{engine: engine, pool: pool, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /v1/sessions", s.handleStart)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleGet)
	s.mux.HandleFunc("POST /v1/sessions/{id}/responses", s.handleDeliver)
	s.mux.HandleFunc("POST /v1/sessions/{id}/resume", s.handleResume)
	s.mux.HandleFunc("POST /v1/sessions/{id}/cancel", s.handleCancel)
	s.mux.Handle("GET /metrics", observability.MetricsHandler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

// Handler returns the root handler with request metrics applied.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		s.mux.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		observability.RecordHTTPRequest(r.Method, route, strconv.Itoa(rec.status), time.Since(start))
	})
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string, readTimeout, writeTimeout time.Duration) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var in workflow.StartInput
	if !s.decode(w, r, &in) {
		return
	}
	step, err := s.engine.Start(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, step)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	step, err := s.engine.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) handleDeliver(w http.ResponseWriter, r *http.Request) {
	var resp session.Response
	if !s.decode(w, r, &resp) {
		return
	}
	id := r.PathValue("id")
	s.dispatch(w, r, id, func(ctx context.Context) (*workflow.Step, error) {
		return s.engine.Deliver(ctx, id, resp)
	})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.dispatch(w, r, id, func(ctx context.Context) (*workflow.Step, error) {
		return s.engine.Resume(ctx, id)
	})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.dispatch(w, r, id, func(ctx context.Context) (*workflow.Step, error) {
		return s.engine.Cancel(ctx, id)
	})
}

func (s *Server) dispatch(w http.ResponseWriter, r *http.Request, id string, op func(context.Context) (*workflow.Step, error)) {
	var step *workflow.Step
	err := s.pool.Do(r.Context(), id, func(ctx context.Context) error {
		var err error
		step, err = op(ctx)
		return err
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, step)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid request body: %v", err)})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
	Retry bool   `json:"retry,omitempty"`
}

// StatusFor maps an engine error to an HTTP status and whether the client
// should retry the same request.
func StatusFor(err error) (int, bool) {
	switch {
	case evaluator.IsRetryable(err), errors.Is(err, dispatch.ErrStopped):
		return http.StatusServiceUnavailable, true
	case errors.Is(err, lesson.ErrInvalidLesson), errors.Is(err, workflow.ErrInvalidInput):
		return http.StatusBadRequest, false
	case errors.Is(err, store.ErrSessionNotFound):
		return http.StatusNotFound, false
	case errors.Is(err, store.ErrConflict), errors.Is(err, workflow.ErrSessionDone):
		return http.StatusConflict, false
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, true
	default:
		return http.StatusInternalServerError, false
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, retry := StatusFor(err)
	if status >= http.StatusInternalServerError && !retry {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorBody{Error: err.Error(), Retry: retry})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
