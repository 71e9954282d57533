package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Cap watcher
	WindowsFetched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mtwatchers",
		Subsystem: "caps",
		Name:      "windows_fetched_total",
		Help:      "Total block windows queried for logs",
	})

	EventsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mtwatchers",
		Subsystem: "caps",
		Name:      "events_processed_total",
		Help:      "Total cap-change events decoded and emitted",
	}, []string{"kind"})

	DecodeFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mtwatchers",
		Subsystem: "caps",
		Name:      "decode_failures_total",
		Help:      "Total logs skipped because they failed to decode",
	})

	LoopErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mtwatchers",
		Subsystem: "caps",
		Name:      "loop_errors_total",
		Help:      "Total watcher iterations that ended in backoff",
	})

	CursorHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "mtwatchers",
		Subsystem: "caps",
		Name:      "cursor_height",
		Help:      "Next block the watcher will process",
	})

	// Asset poller
	PollCycles = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mtwatchers",
		Subsystem: "assets",
		Name:      "poll_cycles_total",
		Help:      "Total asset listing poll cycles",
	})

	NewAssets = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mtwatchers",
		Subsystem: "assets",
		Name:      "new_assets_total",
		Help:      "Total newly discovered assets",
	})

	PollErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mtwatchers",
		Subsystem: "assets",
		Name:      "poll_errors_total",
		Help:      "Total failed poll cycles",
	})

	// Notifier
	NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mtwatchers",
		Subsystem: "notify",
		Name:      "failures_total",
		Help:      "Total notification deliveries that failed",
	})
)
