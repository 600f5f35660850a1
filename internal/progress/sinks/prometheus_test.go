package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/harvester/internal/progress"
)

func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	runID := progress.UUIDToBytes(uuid.New())
	now := time.Now()
	batch := []progress.Event{
		{RunID: runID, TS: now, Stage: progress.StageRunStart, Mode: "search"},
		{RunID: runID, TS: now, Stage: progress.StageItemStored, Mode: "search", Key: "answer:1"},
		{RunID: runID, TS: now, Stage: progress.StageItemDropped, Mode: "search", Key: "answer:2"},
		{RunID: runID, TS: now, Stage: progress.StageCommentsStored, Mode: "search", Key: "answer:1", Count: 4},
		{RunID: runID, TS: now, Stage: progress.StageExhausted, Mode: "search", Scope: "golang"},
		{RunID: runID, TS: now.Add(time.Minute), Stage: progress.StageRunDone, Mode: "search", Dur: time.Minute},
	}

	require.NoError(t, sink.Consume(context.Background(), batch))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsActive))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues("search", "stored")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.items.WithLabelValues("search", "dropped")))
	require.Equal(t, 4.0, testutil.ToFloat64(sink.comments))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.exhaustions.WithLabelValues("search")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.runRuntime, "harvest_run_runtime_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
