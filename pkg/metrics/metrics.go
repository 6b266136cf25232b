package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	playbackCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moments",
			Subsystem: "playback",
			Name:      "commands_total",
			Help:      "Activation commands issued by the feed playback scheduler.",
		},
		[]string{"kind"},
	)

	sessionsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "moments",
			Subsystem: "stories",
			Name:      "sessions_opened_total",
			Help:      "Story viewer sessions opened.",
		},
	)

	sessionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "moments",
			Subsystem: "stories",
			Name:      "sessions_open",
			Help:      "Story viewer sessions currently open.",
		},
	)

	engagementFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "moments",
			Subsystem: "engagement",
			Name:      "write_failures_total",
			Help:      "Fire-and-forget story writes that failed and were dropped.",
		},
		[]string{"kind"},
	)

	repliesSent = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "moments",
			Subsystem: "reply",
			Name:      "sent_total",
			Help:      "Story replies written to conversations.",
		},
	)
)

func init() {
	Registry.MustRegister(
		playbackCommands,
		sessionsOpened,
		sessionsOpen,
		engagementFailures,
		repliesSent,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func PlaybackCommand(kind string) {
	playbackCommands.WithLabelValues(kind).Inc()
}

func SessionOpened() {
	sessionsOpened.Inc()
	sessionsOpen.Inc()
}

func SessionClosed() {
	sessionsOpen.Dec()
}

func EngagementWriteFailed(kind string) {
	engagementFailures.WithLabelValues(kind).Inc()
}

func ReplySent() {
	repliesSent.Inc()
}
