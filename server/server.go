package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/moraine-llm/moraine/config"
	"github.com/moraine-llm/moraine/server/metrics"
	"github.com/moraine-llm/moraine/server/middleware"
)

// Router wires the gateway's routes and middleware stack.
type Router struct {
	router chi.Router
}

// NewRouter creates the HTTP router: request ID, timing, panic recovery,
// CORS, logging, optional rate limiting, and the metrics middleware, in
// front of the health, invocation, and metrics endpoints.
func NewRouter(cfg *config.Config, a Agent, capRouter CapabilityRouter, m *metrics.Metrics, logger *zap.Logger) *Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTimer)
	r.Use(middleware.PanicRecovery)
	r.Use(middleware.CORS)
	r.Use(middleware.Logging(logger))
	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(cfg.RateLimit, m.RecordRateLimitHit))
	}
	r.Use(metricsMiddleware(m))

	r.Get("/health", HealthHandler)
	r.Method(http.MethodPost, "/api/simple-agent",
		NewAgentHandler(a, cfg.Bedrock.DefaultSystemPrompt, logger))
	r.Method(http.MethodPost, "/api/declarative-agent",
		NewDeclarativeHandler(capRouter, a, logger))
	r.Method(http.MethodGet, "/metrics", m.Handler())

	return &Router{router: r}
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}

// metricsMiddleware records request counts, durations, and in-flight
// gauges per endpoint.
func metricsMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			endpoint := r.URL.Path
			m.ActiveRequests.WithLabelValues(endpoint).Inc()
			defer m.ActiveRequests.WithLabelValues(endpoint).Dec()

			start := time.Now()
			rw := middleware.NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			m.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
			m.RequestsTotal.WithLabelValues(endpoint, fmt.Sprintf("%d", rw.Status())).Inc()

			switch {
			case rw.Status() >= 500:
				m.ErrorsTotal.WithLabelValues("server_error").Inc()
			case rw.Status() >= 400:
				m.ErrorsTotal.WithLabelValues("client_error").Inc()
			}
		})
	}
}

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

// NewServer creates a new server instance
func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Port),
			Handler:        handler,
			ReadTimeout:    cfg.ReadTimeout,
			WriteTimeout:   cfg.WriteTimeout,
			MaxHeaderBytes: cfg.MaxHeaderBytes,
		},
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          logger,
	}
}

// Start starts the server and blocks until the context is canceled or the
// listener fails.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("Server started", zap.String("address", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		s.logger.Info("Shutting down server")
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error during server shutdown: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}
