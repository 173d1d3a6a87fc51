package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// metrics counts webhook traffic. Counters only carry the survey id as a
// label; subject identifiers never reach the metrics surface.
type metrics struct {
	registry *prometheus.Registry

	messagesReceived  prometheus.Counter
	repliesSent       prometheus.Counter
	sessionsStarted   *prometheus.CounterVec
	sessionsCompleted *prometheus.CounterVec
	optOuts           prometheus.Counter
	engineErrors      prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		messagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "switchback_messages_received_total",
			Help: "Inbound SMS messages received on the webhook.",
		}),
		repliesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "switchback_replies_sent_total",
			Help: "Outbound reply messages produced.",
		}),
		sessionsStarted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "switchback_sessions_started_total",
			Help: "Survey sessions started.",
		}, []string{"survey_id"}),
		sessionsCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "switchback_sessions_completed_total",
			Help: "Survey sessions that reached completion.",
		}, []string{"survey_id"}),
		optOuts: factory.NewCounter(prometheus.CounterOpts{
			Name: "switchback_opt_outs_total",
			Help: "Opt-out requests processed.",
		}),
		engineErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "switchback_engine_errors_total",
			Help: "Transitions that failed inside the engine.",
		}),
	}
}
