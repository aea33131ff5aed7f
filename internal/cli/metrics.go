package cli

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/pinaccess/pkg/buildinfo"
	"github.com/matzehuels/pinaccess/pkg/observability"
)

const shutdownTimeout = 5 * time.Second

// newMetricsRouter serves Prometheus metrics and a liveness probe.
func newMetricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok " + buildinfo.Version + "\n"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// metricsServer exposes the planning metrics while a command runs.
type metricsServer struct {
	srv    *http.Server
	addr   string
	logger *log.Logger
	done   chan struct{}
}

// startMetrics listens on addr and installs the Prometheus hooks. The hooks
// stay installed until shutdown.
func startMetrics(addr string, logger *log.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	hooks := observability.NewPrometheusHooks()
	observability.SetAccessHooks(hooks)
	observability.SetCacheHooks(hooks)

	m := &metricsServer{
		srv:    &http.Server{Handler: newMetricsRouter(), ReadHeaderTimeout: 5 * time.Second},
		addr:   ln.Addr().String(),
		logger: logger,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(m.done)
		if err := m.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", m.addr)
	return m, nil
}

// shutdown stops the server and restores the no-op hooks.
func (m *metricsServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.srv.Shutdown(ctx); err != nil {
		m.logger.Warn("metrics shutdown", "error", err)
	}
	<-m.done
	observability.Reset()
}
