package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/guc-preloader/internal/progress"
)

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	id := uuid.New()
	now := time.Now()
	batch := []progress.Event{
		{SessionID: id, TS: now, Stage: progress.StageTaskQueued, Task: "a", Weight: 2},
		{SessionID: id, TS: now, Stage: progress.StageTaskQueued, Task: "b", Weight: 1},
		{SessionID: id, TS: now, Stage: progress.StageTaskDone, Task: "a", Weight: 2, Progress: 2.0 / 3, Dur: 100 * time.Millisecond},
		{SessionID: id, TS: now, Stage: progress.StageTaskFailed, Task: "b", Weight: 1, Progress: 1, Dur: time.Second},
		{SessionID: id, TS: now, Stage: progress.StageSessionReset},
		{SessionID: id, TS: now, Stage: progress.StageNavigated, Step: "registry", Target: "https://alice.example/"},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 2.0, testutil.ToFloat64(sink.tasksQueued))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksSettled.WithLabelValues("success")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.tasksSettled.WithLabelValues("error")))
	require.InDelta(t, 2.0, testutil.ToFloat64(sink.weightSettled.WithLabelValues("success")), 1e-9)
	require.Equal(t, 1.0, testutil.ToFloat64(sink.sessionResets))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.navigations.WithLabelValues("registry")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.lastProgress))
	require.Equal(t, 2, testutil.CollectAndCount(sink.taskDuration, "preloader_task_duration_seconds"))
	require.NoError(t, sink.Close(context.Background()))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
