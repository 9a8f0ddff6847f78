package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fixmatch_orders_total",
		Help: "Orders accepted by the matching engine.",
	})
	metricRejectsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fixmatch_order_rejects_total",
		Help: "Orders rejected by validation, risk checks, or the book.",
	})
	metricTradesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fixmatch_trades_total",
		Help: "Trades produced by matching.",
	})
	metricVolumeTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fixmatch_traded_volume_total",
		Help: "Total traded quantity across all symbols.",
	})
	metricProcessingSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "fixmatch_request_processing_seconds",
		Help:    "Matching worker time per request.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
	})
)
