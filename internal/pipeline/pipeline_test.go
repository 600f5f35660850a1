package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/harvester/internal/crawler"
	"github.com/JakeFAU/harvester/internal/scheduler"
	"github.com/JakeFAU/harvester/internal/storage/memory"
)

func TestResolveDispatchesByVariantAndPersistsInOrder(t *testing.T) {
	t.Parallel()

	details := &fakeDetails{}
	sink := memory.NewSink()
	p := New(scheduler.New(2, nil), details, sink, nil, nil)

	refs := []crawler.Reference{
		crawler.AnswerRef{QuestionID: "q1", AnswerID: "a1"},
		crawler.ArticleRef{ArticleID: "p1"},
		crawler.VideoRef{VideoID: "v1"},
	}
	stored := p.Resolve(context.Background(), refs)

	require.Len(t, stored, 3)
	require.Equal(t, crawler.KindAnswer, stored[0].Kind)
	require.Equal(t, "q1", stored[0].QuestionID)
	require.Equal(t, crawler.KindArticle, stored[1].Kind)
	require.Equal(t, crawler.KindVideo, stored[2].Kind)
	require.Len(t, sink.Contents(), 3)
	require.EqualValues(t, 3, details.calls.Load())
}

func TestResolveDropsFailuresWithoutFailingBatch(t *testing.T) {
	t.Parallel()

	details := &fakeDetails{missing: map[string]bool{"a2": true}}
	sink := &failingSink{Sink: memory.NewSink(), rejectContent: map[string]bool{"a3": true}}
	p := New(scheduler.New(3, nil), details, sink, nil, nil)

	refs := []crawler.Reference{
		crawler.AnswerRef{QuestionID: "q", AnswerID: "a1"},
		crawler.AnswerRef{QuestionID: "q", AnswerID: "a2"},
		crawler.AnswerRef{QuestionID: "q", AnswerID: "a3"},
		crawler.AnswerRef{QuestionID: "q", AnswerID: "a4"},
	}
	stored := p.Resolve(context.Background(), refs)

	require.Len(t, stored, 2)
	require.Equal(t, "a1", stored[0].ID)
	require.Equal(t, "a4", stored[1].ID)
}

func TestResolveAfterCancelSkipsUnadmitted(t *testing.T) {
	t.Parallel()

	details := &fakeDetails{}
	p := New(scheduler.New(1, nil), details, memory.NewSink(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stored := p.Resolve(ctx, []crawler.Reference{crawler.VideoRef{VideoID: "1"}})
	require.Empty(t, stored)
	require.Zero(t, details.calls.Load())
}

func TestPersistReturnsOnlyStored(t *testing.T) {
	t.Parallel()

	sink := &failingSink{Sink: memory.NewSink(), rejectContent: map[string]bool{"bad": true}}
	p := New(scheduler.New(1, nil), &fakeDetails{}, sink, nil, nil)

	stored := p.Persist(context.Background(), []crawler.ContentItem{
		{ID: "good", Kind: crawler.KindAnswer},
		{ID: "bad", Kind: crawler.KindAnswer},
	})
	require.Len(t, stored, 1)
	require.Equal(t, "good", stored[0].ID)
}

func TestStageOf(t *testing.T) {
	t.Parallel()

	require.Equal(t, "detail:not_found", stageOf(&crawler.FetchError{Stage: "detail", Err: crawler.ErrNotFound}))
	require.Equal(t, "detail", stageOf(&crawler.FetchError{Stage: "detail", Err: context.DeadlineExceeded}))
	require.Equal(t, "canceled", stageOf(context.Canceled))
	require.Equal(t, "resolve", stageOf(crawler.ErrFetch))
}
