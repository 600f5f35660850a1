package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/harvester/internal/progress"
)

func TestSnapshotSinkAggregatesPerRun(t *testing.T) {
	t.Parallel()

	sink := NewSnapshotSink()
	first := uuid.New()
	second := uuid.New()
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: progress.UUIDToBytes(first), TS: start, Stage: progress.StageRunStart, Mode: "question"},
		{RunID: progress.UUIDToBytes(first), TS: start, Stage: progress.StageEscalated, Mode: "question"},
		{RunID: progress.UUIDToBytes(first), TS: start, Stage: progress.StageItemStored, Mode: "question", Key: "a"},
		{RunID: progress.UUIDToBytes(first), TS: start, Stage: progress.StageCommentsStored, Mode: "question", Key: "a", Count: 7},
		{RunID: progress.UUIDToBytes(first), TS: start.Add(time.Hour), Stage: progress.StageRunError, Mode: "question", Note: "boom"},
		{RunID: progress.UUIDToBytes(second), TS: start.Add(2 * time.Hour), Stage: progress.StageRunStart, Mode: "detail"},
	}))

	runs := sink.Runs()
	require.Len(t, runs, 2)
	require.Equal(t, second.String(), runs[0].RunID)
	require.Equal(t, RunRunning, runs[0].State)

	failed := runs[1]
	require.Equal(t, RunFailed, failed.State)
	require.Equal(t, "boom", failed.LastError)
	require.EqualValues(t, 1, failed.ItemsStored)
	require.EqualValues(t, 7, failed.CommentsStored)
	require.EqualValues(t, 1, failed.Escalations)
	require.Equal(t, start.Add(time.Hour), failed.FinishedAt)
}

func TestLogSinkWarnsOnDroppedItems(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	sink := NewLogSink(zap.New(core))
	runID := progress.UUIDToBytes(uuid.New())

	require.NoError(t, sink.Consume(context.Background(), []progress.Event{
		{RunID: runID, TS: time.Now(), Stage: progress.StageItemStored, Key: "answer:1"},
		{RunID: runID, TS: time.Now(), Stage: progress.StageItemDropped, Key: "answer:2", Note: "detail"},
	}))

	require.Equal(t, 2, logs.Len())
	warns := logs.FilterLevelExact(zap.WarnLevel).All()
	require.Len(t, warns, 1)
	require.Equal(t, "answer:2", warns[0].ContextMap()["key"])
}
