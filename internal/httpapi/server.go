// Package httpapi exposes the assistant over a small JSON HTTP API.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"bizassist/internal/appstate"
	"bizassist/internal/orchestrator"
	"bizassist/internal/store"
	"bizassist/internal/tools"
	"bizassist/internal/workspace"
)

// Archive persists finished runs. *store.SQLiteArchive satisfies it.
type Archive interface {
	SaveRun(ctx context.Context, rec store.RunRecord) error
}

// Options configures a Server. Orchestrator and Store are required.
type Options struct {
	Orchestrator *orchestrator.Orchestrator
	Store        *workspace.Store
	// Session supplies defaults for fields a run request leaves empty.
	Session tools.Session
	// Archive and Stats are optional.
	Archive Archive
	Stats   *appstate.RunStats
	Logger  *zap.Logger
	// RunsPerSecond and Burst bound POST /v1/runs per client address.
	// Zero disables the limit. Loopback clients are never limited.
	RunsPerSecond float64
	Burst         int
}

// Server routes HTTP requests to the orchestrator and the workspace.
type Server struct {
	opts    Options
	logger  *zap.Logger
	limiter *ipRateLimiter
	router  *mux.Router
}

func NewServer(opts Options) (*Server, error) {
	if opts.Orchestrator == nil || opts.Store == nil {
		return nil, errors.New("httpapi: orchestrator and store are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		opts:    opts,
		logger:  logger.Named("http"),
		limiter: newIPRateLimiter(opts.RunsPerSecond, opts.Burst),
	}
	s.router = s.routes()
	return s, nil
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Handle("/runs", s.limitRuns(http.HandlerFunc(s.handleRun))).Methods(http.MethodPost)
	v1.HandleFunc("/tools", s.handleTools).Methods(http.MethodGet)
	v1.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	v1.HandleFunc("/workspace/{collection}", s.handleCollection).Methods(http.MethodGet)
	v1.HandleFunc("/invoices/{id}/pdf", s.handleInvoicePDF).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "no such route")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return r
}

// Handler returns the routed handler, for mounting or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Serve blocks handling HTTP on listener until ctx is cancelled, then shuts
// down and lets in-flight requests drain.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Runs make several model calls; allow for them.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	stopSweep := s.sweepLimiter(ctx)
	defer stopSweep()

	s.logger.Info("listening", zap.String("addr", listener.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// sweepLimiter drops idle rate-limit buckets once a minute.
func (s *Server) sweepLimiter(ctx context.Context) func() {
	if !s.limiter.enabled() {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.cleanup(10 * time.Minute)
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(started)))
	})
}

func (s *Server) limitRuns(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(realIP(r)) {
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many runs; retry shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}
