// Package metrics turns event bus traffic into Prometheus series.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"pollbot/internal/eventbus"
)

const namespace = "pollbot"

type Metrics struct {
	reg *prometheus.Registry

	PollsSent        prometheus.Counter
	RemindersSent    prometheus.Counter
	DispatchFailures *prometheus.CounterVec
	Rebuilds         prometheus.Counter
	Jobs             prometheus.Gauge
	Schedules        prometheus.Gauge
	DialogCommits    prometheus.Counter
	SchedulesRemoved prometheus.Counter
}

// New registers the bot series plus the Go runtime and process collectors
// on a private registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		PollsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "polls_sent_total",
			Help: "Polls posted to the group.",
		}),
		RemindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "reminders_sent_total",
			Help: "Reminders posted to the group.",
		}),
		DispatchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatch_failures_total",
			Help: "Failed poll or reminder sends.",
		}, []string{"action"}),
		Rebuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "scheduler_rebuilds_total",
			Help: "Full job table rebuilds.",
		}),
		Jobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "scheduler_jobs",
			Help: "Jobs registered after the last rebuild.",
		}),
		Schedules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "schedules",
			Help: "Schedule records after the last rebuild.",
		}),
		DialogCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "dialog_commits_total",
			Help: "Schedules saved through /set_days.",
		}),
		SchedulesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "schedules_removed_total",
			Help: "Schedules deleted through /remove_days.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.PollsSent, m.RemindersSent, m.DispatchFailures,
		m.Rebuilds, m.Jobs, m.Schedules,
		m.DialogCommits, m.SchedulesRemoved,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe updates the series for one event. Unknown types are ignored.
func (m *Metrics) Observe(e eventbus.Event) {
	switch e.Type {
	case eventbus.PollSent:
		m.PollsSent.Inc()
	case eventbus.ReminderSent:
		m.RemindersSent.Inc()
	case eventbus.DispatchFailed:
		action := "unknown"
		if info, ok := e.Data.(eventbus.DispatchInfo); ok && info.Action != "" {
			action = info.Action
		}
		m.DispatchFailures.WithLabelValues(action).Inc()
	case eventbus.SchedulerRebuilt:
		m.Rebuilds.Inc()
		if info, ok := e.Data.(eventbus.RebuildInfo); ok {
			m.Jobs.Set(float64(info.Jobs))
			m.Schedules.Set(float64(info.Records))
		}
	case eventbus.DialogCommitted:
		m.DialogCommits.Inc()
	case eventbus.ScheduleRemoved:
		m.SchedulesRemoved.Inc()
	}
}

// Run consumes events until ctx is done or the channel closes.
func (m *Metrics) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			m.Observe(e)
		}
	}
}
