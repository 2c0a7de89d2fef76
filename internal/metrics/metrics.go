// Package metrics registers the Prometheus collectors the gateway exposes
// on its /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	AuthStrategyDecisions *prometheus.CounterVec
	AuthOutcomes          *prometheus.CounterVec
	AuthDuration          *prometheus.HistogramVec

	DeauthOutcomes *prometheus.CounterVec

	BackendCalls   *prometheus.CounterVec
	BackendLatency *prometheus.HistogramVec

	ProxyRequests *prometheus.CounterVec
}

// New builds and registers every collector against registry.
func New(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		AuthStrategyDecisions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssogate_auth_strategy_decisions_total",
				Help: "Total number of credential-extraction strategy decisions, by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		AuthOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssogate_auth_outcomes_total",
				Help: "Total number of Authenticate calls, by final outcome",
			},
			[]string{"outcome"},
		),
		AuthDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssogate_auth_duration_seconds",
				Help:    "Authenticate call duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		DeauthOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssogate_deauth_outcomes_total",
				Help: "Total number of Deauthenticate calls, by final outcome",
			},
			[]string{"outcome"},
		),
		BackendCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssogate_backend_calls_total",
				Help: "Total number of backend RPC calls, by method and success",
			},
			[]string{"method", "success"},
		),
		BackendLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ssogate_backend_latency_seconds",
				Help:    "Backend RPC call latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		ProxyRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ssogate_proxy_requests_total",
				Help: "Total number of requests forwarded to the backend cluster",
			},
			[]string{"status"},
		),
	}
}
