package telemetry

import (
	"context"
	"net"
	"net/http"
	"time"

	"codeberg.org/mutker/kerntune/internal/errors"
	"codeberg.org/mutker/kerntune/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ErrServeMetrics = errors.ErrorCode("telemetry_serve_failed")

	shutdownTimeout   = 5 * time.Second
	readHeaderTimeout = 5 * time.Second
)

// Handler returns the HTTP mux serving /metrics.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Serve exposes /metrics on addr until ctx is done. An empty addr disables
// the endpoint.
func Serve(ctx context.Context, addr string) error {
	if addr == "" {
		return nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.New().Wrap(ErrServeMetrics, err)
	}

	srv := &http.Server{
		Handler:           Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("Serving metrics")

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New().Wrap(ErrServeMetrics, err)
	}

	return nil
}
