package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	Commands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sakura_commands_total",
		Help: "Chat commands handled, by command and outcome",
	}, []string{"command", "outcome"})

	LookupAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sakura_lookup_attempts_total",
		Help: "BlueMap roster requests, by outcome",
	}, []string{"outcome"})

	LookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sakura_lookup_duration_seconds",
		Help:    "Total duration of a position lookup including retries",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	ChatLines = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sakura_chat_lines_total",
		Help: "Outgoing chat lines, by status",
	}, []string{"status"})
)

// Serve exposes /metrics on addr until ctx is done. Empty addr disables it.
func Serve(ctx context.Context, addr string, logger *zap.Logger) {
	if addr == "" {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	go func() {
		logger.Info("metrics_listen", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_error", zap.Error(err))
		}
	}()
}
