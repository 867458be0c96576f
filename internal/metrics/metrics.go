package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	StatusPolls        prometheus.Counter
	PollErrors         prometheus.Counter
	NotificationChecks prometheus.Counter
	AlertsDispatched   *prometheus.CounterVec
	ChannelFailures    *prometheus.CounterVec
}

func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		StatusPolls: factory.NewCounter(prometheus.CounterOpts{
			Name: "queuematic_status_polls_total",
			Help: "Total status polls against the queue authority",
		}),
		PollErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "queuematic_poll_errors_total",
			Help: "Total failed poll ticks, swallowed and retried on schedule",
		}),
		NotificationChecks: factory.NewCounter(prometheus.CounterOpts{
			Name: "queuematic_notification_checks_total",
			Help: "Total lightweight notification checks",
		}),
		AlertsDispatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "queuematic_alerts_dispatched_total",
			Help: "Total alerts dispatched, by alert kind",
		}, []string{"kind"}),
		ChannelFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "queuematic_alert_channel_failures_total",
			Help: "Total per-channel alert delivery failures, by channel",
		}, []string{"channel"}),
	}
}
