package scroll

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/harvester/internal/crawler"
)

func instantOptions() Options {
	return Options{
		MaxEmptyRounds: 10,
		EscalateAfter:  3,
		MaxPolls:       5,
		Deadline:       time.Minute,
	}
}

const questionURL = "https://www.zhihu.com/question/100"

func TestCollectNeverExceedsTarget(t *testing.T) {
	t.Parallel()

	for _, target := range []int{1, 3, 7, 25} {
		surface := &fakeSurface{question: "100", height: 900, batches: [][]string{ids("1", 5), ids("2", 5), ids("3", 5)}}
		c := New(surface, nil, instantOptions(), nil, nil)

		res, err := c.Collect(context.Background(), questionURL, target)
		require.NoError(t, err)
		require.LessOrEqual(t, len(res.Refs), target)
		require.Equal(t, []string{questionURL}, surface.navigations)
	}
}

func TestCollectFirstRoundSkipsInteraction(t *testing.T) {
	t.Parallel()

	// Nothing is visible until the first scroll.
	surface := &fakeSurface{question: "100", height: 500, batches: [][]string{ids("61", 2)}}
	c := New(surface, nil, instantOptions(), nil, nil)

	res, err := c.Collect(context.Background(), questionURL, 2)
	require.NoError(t, err)
	require.Len(t, res.Refs, 2)
	require.Equal(t, 2, res.State.Rounds)
	for _, ref := range res.Refs {
		answer, ok := ref.(crawler.AnswerRef)
		require.True(t, ok)
		require.Equal(t, "100", answer.QuestionID)
	}
}

func TestCollectEscalatesFromRoundFour(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{question: "100", height: 500}
	c := New(surface, nil, instantOptions(), nil, nil)

	res, err := c.Collect(context.Background(), questionURL, 10)
	require.NoError(t, err)
	require.Empty(t, res.Refs)

	require.Equal(t, 10, res.State.Rounds)
	require.Equal(t, TierAggressive, res.State.Tier)
	require.Equal(t, 3, res.State.EscalatedAt)
	require.Equal(t, 4, surface.firstEndRound)
	// rounds 4..10 each run the aggressive sequence
	require.Equal(t, 7, res.State.Escalations)
	require.Equal(t, 7, surface.endPresses)
	require.Equal(t, 7, surface.wheelEvents)
}

func TestCollectEscalationIsSticky(t *testing.T) {
	t.Parallel()

	// rounds 1-3 empty, new keys appear in round 5 and 6.
	surface := &fakeSurface{question: "100", height: 500, batches: [][]string{{}, {}, {}, ids("71", 1), ids("72", 1)}}
	c := New(surface, nil, instantOptions(), nil, nil)

	res, err := c.Collect(context.Background(), questionURL, 2)
	require.NoError(t, err)
	require.Len(t, res.Refs, 2)
	require.Equal(t, TierAggressive, res.State.Tier)
	require.Zero(t, res.State.ConsecutiveEmpty)
	require.Equal(t, 6, res.State.Rounds)
	require.Equal(t, 3, res.State.Escalations)
}

func TestCollectFallsBackToAttributeStrategy(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{question: "77", height: 500, attrOnly: true, batches: [][]string{ids("9", 3)}}
	c := New(surface, nil, instantOptions(), nil, nil)

	res, err := c.Collect(context.Background(), "https://www.zhihu.com/question/77", 3)
	require.NoError(t, err)
	require.Len(t, res.Refs, 3)
	require.Equal(t, crawler.AnswerRef{QuestionID: "77", AnswerID: "91"}, res.Refs[0])
}

func TestCollectClicksLoadMoreControl(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{question: "100", height: 500, controlFound: true, batches: [][]string{ids("61", 1), ids("62", 1)}}
	c := New(surface, nil, instantOptions(), nil, nil)

	_, err := c.Collect(context.Background(), questionURL, 2)
	require.NoError(t, err)
	require.NotEmpty(t, surface.clicks)
	require.Equal(t, LoadMoreControls[len(LoadMoreControls)-1], surface.clicks[0])
}

func TestAwaitStableCapsPolls(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{question: "100", growing: true}
	c := New(surface, nil, instantOptions(), nil, nil)

	require.False(t, c.awaitStable(context.Background()))
	require.Equal(t, 5, surface.heightReads)

	steady := &fakeSurface{question: "100", height: 1200}
	c = New(steady, nil, instantOptions(), nil, nil)
	require.True(t, c.awaitStable(context.Background()))
	require.Equal(t, 3, steady.heightReads)
}

func TestCollectUnstablePageStillExtracts(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{question: "100", growing: true, batches: [][]string{ids("61", 4)}}
	c := New(surface, nil, instantOptions(), nil, nil)

	res, err := c.Collect(context.Background(), questionURL, 4)
	require.NoError(t, err)
	require.Len(t, res.Refs, 4)
	require.False(t, res.State.Stable)
}

func TestCollectHonoursDeadline(t *testing.T) {
	t.Parallel()

	batches := make([][]string, 10000)
	for i := range batches {
		batches[i] = []string{strconv.Itoa(i + 1)}
	}
	surface := &fakeSurface{question: "100", height: 500, delay: 2 * time.Millisecond, batches: batches}
	opts := instantOptions()
	opts.Deadline = 60 * time.Millisecond
	c := New(surface, nil, opts, nil, nil)

	start := time.Now()
	res, err := c.Collect(context.Background(), questionURL, 1_000_000)
	require.NoError(t, err)
	require.True(t, res.State.DeadlineHit)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestCollectReturnsCollectedOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	surface := &fakeSurface{question: "100", height: 500, batches: [][]string{ids("61", 2), ids("62", 2), ids("63", 2)}}
	surface.onExtract = func(n int) {
		if n == 2 {
			cancel()
		}
	}
	c := New(surface, nil, instantOptions(), nil, nil)

	res, err := c.Collect(ctx, questionURL, 100)
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, res.Refs, 2)
}

func TestCollectZeroTarget(t *testing.T) {
	t.Parallel()

	surface := &fakeSurface{question: "100"}
	res, err := New(surface, nil, instantOptions(), nil, nil).Collect(context.Background(), questionURL, 0)
	require.NoError(t, err)
	require.Empty(t, res.Refs)
	require.Empty(t, surface.navigations)
}
