// Package keepalive serves a tiny HTTP endpoint so hosting platforms that
// ping the process see it alive, plus health and metrics.
package keepalive

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"limitedwatch/internal/metrics"
	"limitedwatch/internal/poller"
	logx "limitedwatch/pkg/logx"
)

// DefaultStaleAfter is how long without a finished iteration before
// /healthz reports unhealthy.
const DefaultStaleAfter = 5 * time.Minute

type Config struct {
	Addr       string
	StaleAfter time.Duration
	// Pprof mounts the runtime profiler under /debug.
	Pprof bool
}

type Server struct {
	cfg    Config
	router chi.Router
	status func() poller.Status
	log    logx.Logger
	now    func() time.Time
}

func New(cfg Config, status func() poller.Status, log logx.Logger) *Server {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = DefaultStaleAfter
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{cfg: cfg, status: status, log: log.With(logx.String("comp", "keepalive")), now: time.Now}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.requestLog)
	r.Get("/", s.handleRoot)
	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", metrics.Handler())
	if cfg.Pprof {
		r.Mount("/debug", middleware.Profiler())
	}
	s.router = r
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Run listens on cfg.Addr until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info("keepalive listening", logx.String("addr", ln.Addr().String()))

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 3*time.Second)
		defer cancel()
		err := srv.Shutdown(sctx)
		<-errCh
		return err
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("limitedwatch is alive\n"))
}

type health struct {
	Status        string     `json:"status"`
	State         string     `json:"state"`
	Iterations    uint64     `json:"iterations"`
	LastIteration *time.Time `json:"last_iteration,omitempty"`
	LastError     string     `json:"last_error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.status()
	h := health{Status: "ok", State: string(st.State), Iterations: st.Iterations, LastError: st.LastError}
	code := http.StatusOK
	if !st.LastIteration.IsZero() {
		at := st.LastIteration
		h.LastIteration = &at
		if s.now().Sub(at) > s.cfg.StaleAfter {
			h.Status = "stale"
			code = http.StatusServiceUnavailable
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(h)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("http request",
			logx.String("method", r.Method),
			logx.String("path", r.URL.Path),
			logx.Int("status", ww.Status()),
			logx.Duration("dur", time.Since(start)),
			logx.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
