package scheduler

import (
	"github.com/prometheus/client_golang/prometheus"

	haruprom "github.com/haru-ai/haru/internal/pkg/prometheus"
)

var (
	metricScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "haru",
		Subsystem: "scheduler",
		Name:      "tasks_scheduled_total",
		Help:      "Tasks accepted by the scheduler.",
	})
	metricFired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "haru",
		Subsystem: "scheduler",
		Name:      "tasks_fired_total",
		Help:      "Tasks whose trigger time was reached and dispatch began.",
	})
	metricCompleted = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "haru",
		Subsystem: "scheduler",
		Name:      "tasks_completed_total",
		Help:      "Tasks that finished successfully.",
	})
	metricFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "haru",
		Subsystem: "scheduler",
		Name:      "tasks_failed_total",
		Help:      "Tasks whose execution returned an error.",
	})
	metricCancelled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "haru",
		Subsystem: "scheduler",
		Name:      "tasks_cancelled_total",
		Help:      "Tasks cancelled before firing.",
	})
)

func init() {
	haruprom.GetRegistry().MustRegister(
		metricScheduled, metricFired, metricCompleted, metricFailed, metricCancelled,
	)
}
