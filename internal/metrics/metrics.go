// Package metrics wraps the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector registered by the process.
type Registry struct {
	StoreWritesAccepted prometheus.Counter
	StoreWritesRejected prometheus.Counter
	StorePendingDepth   prometheus.Gauge
	StoreReads          prometheus.Counter
	StoreRangeScans     prometheus.Counter

	StreamTopicsActive        prometheus.Gauge
	StreamMessagesPublished   prometheus.Counter
	StreamMessagesDelivered   prometheus.Counter
	StreamMessagesDropped     prometheus.Counter
	StreamSubscribersActive   prometheus.Gauge
	StreamUpgradeErrors       prometheus.Counter

	HTTPRequestsTotal *prometheus.CounterVec
}

// New registers and returns the server's Prometheus collectors.
func New() *Registry {
	return &Registry{
		StoreWritesAccepted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tidesim_store_writes_accepted_total",
			Help: "Writes that passed size and rate checks and were accepted.",
		}),
		StoreWritesRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tidesim_store_writes_rejected_total",
			Help: "Writes rejected by the per-key cooldown.",
		}),
		StorePendingDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tidesim_store_pending_depth",
			Help: "Number of writes awaiting visibility.",
		}),
		StoreReads: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tidesim_store_reads_total",
			Help: "Total get operations.",
		}),
		StoreRangeScans: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tidesim_store_range_scans_total",
			Help: "Total range operations.",
		}),
		StreamTopicsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tidesim_stream_topics_active",
			Help: "Topics currently holding a subscriber or in-flight publish.",
		}),
		StreamMessagesPublished: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tidesim_stream_messages_published_total",
			Help: "Publish calls accepted by the stream engine.",
		}),
		StreamMessagesDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tidesim_stream_messages_delivered_total",
			Help: "Messages successfully queued to a subscriber's channel.",
		}),
		StreamMessagesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tidesim_stream_messages_dropped_total",
			Help: "Messages evicted from a subscriber's channel due to backpressure.",
		}),
		StreamSubscribersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tidesim_stream_subscribers_active",
			Help: "Live WebSocket subscriptions across all topics.",
		}),
		StreamUpgradeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tidesim_stream_upgrade_errors_total",
			Help: "WebSocket handshake failures on the subscribe path.",
		}),
		HTTPRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "tidesim_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}
}

// Handler exposes the collectors for scraping.
func (r *Registry) Handler() http.Handler {
	return promhttp.Handler()
}
