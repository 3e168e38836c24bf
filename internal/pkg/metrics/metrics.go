package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hypergate_orders_total",
		Help: "The total number of orders processed",
	}, []string{"status", "side"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hypergate_latency_bucket",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	ExchangeLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hypergate_exchange_latency_seconds",
		Help:    "Latency of calls to the exchange API",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint", "outcome"})

	RiskRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hypergate_risk_rejects_total",
		Help: "Total risk engine rejections",
	}, []string{"reason"})

	SignaturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hypergate_signatures_total",
		Help: "Signed exchange actions by action type",
	}, []string{"action"})

	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hypergate_cycles_total",
		Help: "Trading cycles run by outcome",
	}, []string{"outcome"})
)
