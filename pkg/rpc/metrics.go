package rpc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcomes recorded by Metrics.Requests.
const (
	outcomeSuccess        = "success"
	outcomeRPCError       = "rpc_error"
	outcomeTimeout        = "timeout"
	outcomeConnectionLost = "connection_lost"
	outcomeError          = "error"
)

// Metrics contains the Prometheus metrics of a Client
type Metrics struct {
	Requests            *prometheus.CounterVec
	RequestDuration     *prometheus.HistogramVec
	InFlight            prometheus.Gauge
	ReconnectAttempts   prometheus.Counter
	Reconnects          prometheus.Counter
	ActiveSubscriptions prometheus.Gauge
	DroppedFrames       prometheus.Counter
}

// NewMetrics initializes and registers the transport metrics
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry initializes and registers the transport metrics
// with a custom registry
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "substrate_rpc_requests_total",
			Help: "Total number of JSON-RPC calls by method and outcome",
		}, []string{"method", "outcome"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "substrate_rpc_request_duration_seconds",
			Help:    "Latency of JSON-RPC calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "substrate_rpc_requests_in_flight",
			Help: "Number of calls waiting for a response",
		}),
		ReconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "substrate_rpc_reconnect_attempts_total",
			Help: "Total number of reconnection attempts",
		}),
		Reconnects: factory.NewCounter(prometheus.CounterOpts{
			Name: "substrate_rpc_reconnects_total",
			Help: "Total number of successful reconnections",
		}),
		ActiveSubscriptions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "substrate_rpc_active_subscriptions",
			Help: "Number of open subscriptions",
		}),
		DroppedFrames: factory.NewCounter(prometheus.CounterOpts{
			Name: "substrate_rpc_dropped_frames_total",
			Help: "Frames discarded because no caller or subscription claimed them",
		}),
	}
}
