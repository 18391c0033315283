package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/guc-preloader/internal/progress"
)

// PrometheusSink exports preload lifecycle metrics via Prometheus.
type PrometheusSink struct {
	tasksQueued   prometheus.Counter
	tasksSettled  *prometheus.CounterVec
	weightSettled *prometheus.CounterVec
	taskDuration  *prometheus.HistogramVec
	sessionResets prometheus.Counter
	navigations   *prometheus.CounterVec
	lastProgress  prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		tasksQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "preloader_tasks_queued_total",
			Help: "Total preload tasks submitted to an aggregator.",
		}),
		tasksSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "preloader_tasks_settled_total",
			Help: "Total preload tasks settled partitioned by result.",
		}, []string{"result"}),
		weightSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "preloader_task_weight_settled_total",
			Help: "Sum of settled task weight partitioned by result.",
		}, []string{"result"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "preloader_task_duration_seconds",
			Help:    "Task execution time partitioned by result.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"result"}),
		sessionResets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "preloader_session_resets_total",
			Help: "Total session resets.",
		}),
		navigations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "preloader_navigations_total",
			Help: "Navigations partitioned by the resolver step that produced them.",
		}, []string{"step"}),
		lastProgress: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "preloader_last_reported_progress",
			Help: "Progress value carried by the most recent settled task.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.tasksQueued,
		s.tasksSettled,
		s.weightSettled,
		s.taskDuration,
		s.sessionResets,
		s.navigations,
		s.lastProgress,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register lifecycle collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageTaskQueued:
			s.tasksQueued.Inc()
		case progress.StageTaskDone:
			s.observeSettled("success", evt)
		case progress.StageTaskFailed:
			s.observeSettled("error", evt)
		case progress.StageSessionReset:
			s.sessionResets.Inc()
		case progress.StageNavigated:
			s.navigations.WithLabelValues(evt.Step).Inc()
		}
	}
	return nil
}

func (s *PrometheusSink) observeSettled(result string, evt progress.Event) {
	s.tasksSettled.WithLabelValues(result).Inc()
	s.weightSettled.WithLabelValues(result).Add(evt.Weight)
	s.taskDuration.WithLabelValues(result).Observe(evt.Dur.Seconds())
	s.lastProgress.Set(evt.Progress)
}

// Close implements the Sink interface; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
