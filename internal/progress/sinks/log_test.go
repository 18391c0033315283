package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/guc-preloader/internal/progress"
)

func TestLogSinkLevels(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	sink := NewLogSink(zap.New(core))

	id := uuid.New()
	batch := []progress.Event{
		{SessionID: id, TS: time.Now(), Stage: progress.StageTaskDone, Task: "ok", Weight: 1, Progress: 0.5},
		{SessionID: id, TS: time.Now(), Stage: progress.StageTaskFailed, Task: "bad", Weight: 1, Progress: 1, Note: "boom"},
		{SessionID: id, TS: time.Now(), Stage: progress.StageNavigated, Step: "default", Target: "https://www.guc.edu.kg/"},
	}
	require.NoError(t, sink.Consume(context.Background(), batch))

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, "boom", entries[1].ContextMap()["note"])
	require.Equal(t, "default", entries[2].ContextMap()["step"])
	require.NoError(t, sink.Close(context.Background()))
}

func TestNewLogSinkNilLogger(t *testing.T) {
	t.Parallel()

	sink := NewLogSink(nil)
	require.NoError(t, sink.Consume(context.Background(), []progress.Event{{Stage: progress.StageSessionReset}}))
}
