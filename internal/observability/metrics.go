// Package observability exposes Prometheus metrics for the indexer and the
// live reward preview.
package observability

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"telxScope/internal/live"
	"telxScope/internal/model"
)

const defaultNamespace = "telx"

// Metrics holds every collector on its own registry.
type Metrics struct {
	registry *prometheus.Registry

	// Live preview
	Evaluations        *prometheus.CounterVec
	EvaluationDuration prometheus.Histogram
	EvaluatedBlock     prometheus.Gauge
	Positions          *prometheus.GaugeVec
	EligiblePositions  prometheus.Gauge
	LowConfidence      prometheus.Gauge
	Approximate        prometheus.Gauge
	TotalScore         prometheus.Gauge
	Distributed        prometheus.Gauge
	Undistributed      prometheus.Gauge
	WalletReward       *prometheus.GaugeVec

	// Indexer
	LogsIndexed    prometheus.Counter
	BatchesIndexed prometheus.Counter
}

// NewMetrics creates the live metrics on a fresh registry under namespace.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = defaultNamespace
	}
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "evaluations_total",
			Help:      "Live evaluations by outcome",
		}, []string{"outcome"}),
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "evaluation_duration_seconds",
			Help:      "Wall time of a live evaluation including data fetch",
			Buckets:   prometheus.DefBuckets,
		}),
		EvaluatedBlock: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "evaluated_block",
			Help:      "Block the last snapshot was evaluated at",
		}),
		Positions: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "positions",
			Help:      "Positions in the last snapshot by classification",
		}, []string{"classification"}),
		EligiblePositions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "eligible_positions",
			Help:      "Positions contributing weighted score",
		}),
		LowConfidence: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "low_confidence_positions",
			Help:      "Positions scored without bracketing checkpoints",
		}),
		Approximate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "approximate",
			Help:      "1 when the snapshot was scored without usable prices",
		}),
		TotalScore: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "total_score",
			Help:      "Sum of weighted scores",
		}),
		Distributed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "distributed_reward",
			Help:      "Provisionally distributed reward in raw token units",
		}),
		Undistributed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "undistributed_reward",
			Help:      "Budget left undistributed in raw token units",
		}),
		WalletReward: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "wallet_reward",
			Help:      "Provisional reward per wallet in raw token units",
		}, []string{"wallet"}),
		LogsIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "logs_indexed_total",
			Help:      "Registry logs written to storage",
		}),
		BatchesIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "indexer",
			Name:      "batches_indexed_total",
			Help:      "Block batches fully indexed",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveSnapshot records a successful live evaluation. Per-wallet series are
// reset so wallets that dropped out disappear.
func (m *Metrics) ObserveSnapshot(snap *live.Snapshot, elapsed time.Duration) {
	m.Evaluations.WithLabelValues("ok").Inc()
	m.EvaluationDuration.Observe(elapsed.Seconds())
	if snap == nil || snap.Result == nil {
		return
	}
	res := snap.Result
	m.EvaluatedBlock.Set(float64(snap.EvaluatedBlock))

	counts := map[model.Classification]int{model.Passive: 0, model.Active: 0, model.JIT: 0}
	eligible := 0
	for _, pos := range res.Positions {
		if _, ok := counts[pos.Classification]; ok {
			counts[pos.Classification]++
		}
		if pos.Eligible {
			eligible++
		}
	}
	for label, n := range counts {
		m.Positions.WithLabelValues(string(label)).Set(float64(n))
	}
	m.EligiblePositions.Set(float64(eligible))
	m.LowConfidence.Set(float64(res.LowConfidence))
	if res.Approximate {
		m.Approximate.Set(1)
	} else {
		m.Approximate.Set(0)
	}
	m.TotalScore.Set(toFloat(res.TotalScore))
	m.Distributed.Set(toFloat(res.TotalDistributed))
	m.Undistributed.Set(toFloat(res.Undistributed))

	m.WalletReward.Reset()
	for _, wallet := range snap.Wallets {
		m.WalletReward.WithLabelValues(wallet.Address).Set(toFloat(wallet.Reward))
	}
}

// ObserveFailure records a failed live evaluation.
func (m *Metrics) ObserveFailure(elapsed time.Duration) {
	m.Evaluations.WithLabelValues("error").Inc()
	m.EvaluationDuration.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func toFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v.ToBig()).Float64()
	return f
}
