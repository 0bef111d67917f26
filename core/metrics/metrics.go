// Package metrics exposes Prometheus counters for the bot runtime on a
// private registry.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/assistbot/core/logger"
)

const namespace = "assistbot"

var (
	registry = prometheus.NewRegistry()

	updates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "updates_total",
		Help:      "Telegram updates handled, by update kind and outcome.",
	}, []string{"kind", "outcome"})

	messages = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Messages sent or edited in response to updates.",
	}, []string{"keyboard"})

	storeOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "store_ops_total",
		Help:      "Key/value store operations, by op and result.",
	}, []string{"op", "result"})

	coinLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "coin_lookups_total",
		Help:      "Crypto lookups, by result.",
	}, []string{"result"})

	providerCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_calls_total",
		Help:      "Response provider attempts, by provider and result.",
	}, []string{"provider", "result"})

	providerLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_call_seconds",
		Help:      "Response provider call latency.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 15},
	}, []string{"provider"})

	sends = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "telegram_sends_total",
		Help:      "Outbound Telegram calls run by the sender queue, by action and result.",
	}, []string{"action", "result"})

	answerCache = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "answer_cache_total",
		Help:      "Answer cache lookups, by result.",
	}, []string{"result"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		updates, messages, storeOps, coinLookups, providerCalls, providerLatency, sends, answerCache,
	)
}

// Registry returns the registry every collector of this package lives in.
func Registry() *prometheus.Registry { return registry }

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveUpdate counts one handled update.
func ObserveUpdate(kind, outcome string) {
	if kind == "" {
		kind = "other"
	}
	updates.WithLabelValues(kind, outcome).Inc()
}

// ObserveMessages counts replies produced for a single update.
func ObserveMessages(n int, keyboard bool) {
	if n <= 0 {
		return
	}
	label := "no"
	if keyboard {
		label = "yes"
	}
	messages.WithLabelValues(label).Add(float64(n))
}

// ObserveStoreOp counts one store operation.
func ObserveStoreOp(op, result string) {
	storeOps.WithLabelValues(op, result).Inc()
}

// ObserveCoinLookup counts one crypto lookup outcome.
func ObserveCoinLookup(result string) {
	coinLookups.WithLabelValues(result).Inc()
}

// ObserveProviderCall records a provider attempt and its latency.
func ObserveProviderCall(provider, result string, took time.Duration) {
	providerCalls.WithLabelValues(provider, result).Inc()
	providerLatency.WithLabelValues(provider).Observe(took.Seconds())
}

// ObserveSend counts one outbound Telegram call; result is ok, retry or fail.
func ObserveSend(action, result string) {
	sends.WithLabelValues(action, result).Inc()
}

// ObserveAnswerCache counts an answer cache hit or miss.
func ObserveAnswerCache(hit bool) {
	if hit {
		answerCache.WithLabelValues("hit").Inc()
		return
	}
	answerCache.WithLabelValues("miss").Inc()
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln)
}

func serve(ctx context.Context, ln net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	logger.Metrics.Info("metrics listener started",
		slog.String("event", "metrics.listen"),
		slog.String("listen", ln.Addr().String()),
	)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		<-errCh
		logger.Metrics.Info("metrics listener stopped", slog.String("event", "metrics.stop"))
		return err
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
