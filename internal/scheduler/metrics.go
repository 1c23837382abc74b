package scheduler

import "github.com/prometheus/client_golang/prometheus"

var (
	runningGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "foundry_scheduler_running",
			Help: "Number of execution contexts currently occupying a concurrency slot.",
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "foundry_scheduler_queue_depth",
			Help: "Number of tasks waiting for a free concurrency slot.",
		},
	)

	limitGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "foundry_scheduler_limit",
			Help: "Current concurrency ceiling.",
		},
	)

	launchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "foundry_scheduler_launches_total",
			Help: "Total number of execution contexts launched.",
		},
	)

	spawnFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "foundry_scheduler_spawn_failures_total",
			Help: "Total number of task launches that failed before running.",
		},
	)

	terminationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "foundry_scheduler_terminations_total",
			Help: "Total number of execution contexts that terminated.",
		},
	)
)

func init() {
	prometheus.MustRegister(runningGauge)
	prometheus.MustRegister(queueDepth)
	prometheus.MustRegister(limitGauge)
	prometheus.MustRegister(launchesTotal)
	prometheus.MustRegister(spawnFailuresTotal)
	prometheus.MustRegister(terminationsTotal)
}
