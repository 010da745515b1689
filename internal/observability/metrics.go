package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChannelConnects   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "inspection_dispatch", Name: "channel_connects_total", Help: "Successful channel connections"})
	ChannelReconnects = promauto.NewCounter(prometheus.CounterOpts{Namespace: "inspection_dispatch", Name: "channel_reconnect_attempts_total", Help: "Reconnect attempts made by the channel state machine"})

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "inspection_dispatch", Name: "events_published_total", Help: "Outbound channel events, by event name"},
		[]string{"event"},
	)

	OffersSeen     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "inspection_dispatch", Name: "offers_seen_total", Help: "Offers admitted to the open set"})
	OffersAccepted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "inspection_dispatch", Name: "offers_accepted_total", Help: "Offers accepted by this driver"})
	OffersLost     = promauto.NewCounter(prometheus.CounterOpts{Namespace: "inspection_dispatch", Name: "offers_lost_total", Help: "Accept attempts that failed"})

	NotificationsEvicted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "inspection_dispatch", Name: "notifications_evicted_total", Help: "Notifications dropped by the capacity bound"})

	PositionsPublished = promauto.NewCounter(prometheus.CounterOpts{Namespace: "inspection_dispatch", Name: "positions_published_total", Help: "Driver position fixes published on the channel"})

	DriversOnline = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "inspection_dispatch", Name: "drivers_online", Help: "Drivers currently connected to the gateway"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "inspection_dispatch", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "inspection_dispatch",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
