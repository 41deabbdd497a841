package app

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the prometheus instruments for the orchestration core.
type Metrics struct {
	TasksCreated      prometheus.Counter
	TasksFinished     *prometheus.CounterVec // by terminal status
	AgentsSpawned     prometheus.Counter
	AdapterCalls      *prometheus.CounterVec // by kind (attempt|verify) and outcome (ok|error)
	EventsSent        prometheus.Counter
	EventsDropped     prometheus.Counter
	ActiveSubscribers prometheus.Gauge
}

// NewMetrics builds the metric set and registers it when reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_tasks_created_total",
			Help: "Number of solve tasks created.",
		}),
		TasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hydra_tasks_finished_total",
			Help: "Number of solve tasks reaching a terminal status.",
		}, []string{"status"}),
		AgentsSpawned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_agents_spawned_total",
			Help: "Number of agent workers spawned.",
		}),
		AdapterCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hydra_adapter_calls_total",
			Help: "Reasoning adapter calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		EventsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_events_sent_total",
			Help: "Task events delivered to subscribers.",
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hydra_events_dropped_total",
			Help: "Task events dropped due to full subscriber buffers.",
		}),
		ActiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hydra_active_subscribers",
			Help: "Currently attached event stream subscribers.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.TasksCreated,
			m.TasksFinished,
			m.AgentsSpawned,
			m.AdapterCalls,
			m.EventsSent,
			m.EventsDropped,
			m.ActiveSubscribers,
		)
	}

	return m
}
