package bot

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Command outcomes used as metric labels.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeDenied    = "denied"
	OutcomeThrottled = "throttled"
	OutcomeGated     = "gated"
	OutcomeError     = "error"
)

var (
	botCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Bot commands handled, by command and outcome.",
		},
		[]string{"command", "outcome"},
	)
	botLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_command_duration_seconds",
			Help:    "Bot command handling latency.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2, 4, 8, 16},
		},
		[]string{"command"},
	)
	botInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bot_commands_inflight",
			Help: "Bot commands currently being handled.",
		},
	)
)

func init() {
	prometheus.MustRegister(botCommands, botLatency, botInflight)
}
