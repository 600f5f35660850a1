package pager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/harvester/internal/crawler"
	"github.com/JakeFAU/harvester/internal/storage/memory"
)

// scriptedSource returns the scripted item counts per keyword, one entry per
// page, and 0 once the script runs out.
type scriptedSource struct {
	script  map[string][]int
	errOn   map[string]int
	expire  map[string]int
	visited []string
	seen    []crawler.Session
}

func (s *scriptedSource) SearchPage(
	_ context.Context,
	sess crawler.Session,
	keyword string,
	page int,
) ([]crawler.ContentItem, error) {
	s.visited = append(s.visited, fmt.Sprintf("%s/%d", keyword, page))
	s.seen = append(s.seen, sess)
	if s.expire[keyword] == page && sess.Cookies["z_c0"] != "fresh" {
		return nil, crawler.ErrSessionExpired
	}
	if s.errOn[keyword] == page {
		return nil, errors.New("status 500")
	}
	counts := s.script[keyword]
	idx := page - 1
	if idx >= len(counts) {
		return nil, nil
	}
	out := make([]crawler.ContentItem, counts[idx])
	for i := range out {
		out[i] = crawler.ContentItem{
			ID:   keyword + "-" + strconv.Itoa(page) + "-" + strconv.Itoa(i),
			Kind: crawler.KindAnswer,
		}
	}
	return out, nil
}

type sinkPersister struct {
	sink *memory.Sink
}

func (p sinkPersister) Persist(ctx context.Context, items []crawler.ContentItem) []crawler.ContentItem {
	for _, item := range items {
		_ = p.sink.StoreContent(ctx, item)
	}
	return items
}

// flakyPersister fails every store whose item id ends in "-0".
type flakyPersister struct {
	sink *memory.Sink
}

func (p flakyPersister) Persist(ctx context.Context, items []crawler.ContentItem) []crawler.ContentItem {
	var stored []crawler.ContentItem
	for _, item := range items {
		if strings.HasSuffix(item.ID, "-0") {
			continue
		}
		_ = p.sink.StoreContent(ctx, item)
		stored = append(stored, item)
	}
	return stored
}

type countingComments struct {
	batches [][]crawler.ContentItem
}

func (c *countingComments) Harvest(_ context.Context, items []crawler.ContentItem) int {
	c.batches = append(c.batches, items)
	return 0
}

type staticSessions struct {
	calls int
}

func (s *staticSessions) Session(context.Context) (crawler.Session, error) {
	s.calls++
	return crawler.Session{Cookies: map[string]string{"z_c0": "fresh"}}, nil
}

func newTestPager(source crawler.SearchSource, sink *memory.Sink, comments CommentFanOut, opts Options) *Pager {
	return New(source, nil, crawler.Session{}, sinkPersister{sink: sink}, comments, opts, nil, nil)
}

func TestPagerStopsAfterEmptyPage(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{script: map[string][]int{"go": {1}}}
	p := newTestPager(source, memory.NewSink(), nil, Options{MaxItems: 100, StartPage: 1})

	results := p.Run(context.Background(), []string{"go"})

	require.Len(t, source.visited, 2)
	require.Equal(t, StateExhausted, results[0].State)
	require.Equal(t, 2, results[0].Pages)
	require.Equal(t, 1, results[0].Items)
}

func TestPagerKeywordsSequentialScenario(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{script: map[string][]int{"a": {5}, "b": {3}}}
	sink := memory.NewSink()
	comments := &countingComments{}
	p := newTestPager(source, sink, comments, Options{MaxItems: 50, StartPage: 1})

	results := p.Run(context.Background(), []string{"a", "b"})

	require.Equal(t, []string{"a/1", "a/2", "b/1", "b/2"}, source.visited)
	require.Equal(t, 8, sink.Writes())
	require.Len(t, results, 2)
	require.Len(t, comments.batches, 2)
	require.Len(t, comments.batches[0], 5)
	for _, item := range sink.Contents() {
		require.NotEmpty(t, item.SourceKeyword)
	}
}

func TestPagerSeparatesReturnedFromStored(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{script: map[string][]int{"k": {4, 4}}}
	sink := memory.NewSink()
	comments := &countingComments{}
	p := New(source, nil, crawler.Session{}, flakyPersister{sink: sink}, comments, Options{MaxItems: 100, StartPage: 1}, nil, nil)

	results := p.Run(context.Background(), []string{"k"})
	require.Equal(t, 8, results[0].Items)
	require.Equal(t, 6, results[0].Stored)
	require.Len(t, sink.Contents(), 6)
	require.Len(t, comments.batches[0], 3)
}

func TestPagerBudgetIsAtLeastOnePage(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{script: map[string][]int{"k": {20, 20, 20}}}
	p := newTestPager(source, memory.NewSink(), nil, Options{MaxItems: 5, StartPage: 1})

	require.Equal(t, DefaultPageSize, p.Budget())
	results := p.Run(context.Background(), []string{"k"})
	require.Equal(t, []string{"k/1"}, source.visited)
	require.Equal(t, StateExhausted, results[0].State)
}

func TestPagerStopsAtBudget(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{script: map[string][]int{"k": {20, 20, 20, 20}}}
	p := newTestPager(source, memory.NewSink(), nil, Options{MaxItems: 40, StartPage: 1})

	results := p.Run(context.Background(), []string{"k"})
	require.Equal(t, []string{"k/1", "k/2"}, source.visited)
	require.Equal(t, 40, results[0].Items)
}

func TestPagerStartsAtConfiguredPage(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{script: map[string][]int{"k": {1, 1, 1}}}
	p := newTestPager(source, memory.NewSink(), nil, Options{MaxItems: 100, StartPage: 3})

	p.Run(context.Background(), []string{"k"})
	require.Equal(t, []string{"k/3", "k/4"}, source.visited)
}

func TestPagerErrorAbandonsOnlyThatKeyword(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{
		script: map[string][]int{"a": {2, 2}, "b": {1}},
		errOn:  map[string]int{"a": 2},
	}
	sink := memory.NewSink()
	p := newTestPager(source, sink, nil, Options{MaxItems: 100, StartPage: 1})

	results := p.Run(context.Background(), []string{"a", "b"})

	require.Equal(t, []string{"a/1", "a/2", "b/1", "b/2"}, source.visited)
	require.Equal(t, StateError, results[0].State)
	require.ErrorIs(t, results[0].Err, crawler.ErrFetch)
	require.Equal(t, StateExhausted, results[1].State)
	require.Equal(t, 3, sink.Writes())
}

func TestPagerRefreshesExpiredSessionOnce(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{
		script: map[string][]int{"k": {1}},
		expire: map[string]int{"k": 1},
	}
	sessions := &staticSessions{}
	p := New(source, sessions, crawler.Session{}, sinkPersister{sink: memory.NewSink()}, nil,
		Options{MaxItems: 100, StartPage: 1}, nil, nil)

	results := p.Run(context.Background(), []string{"k"})

	require.Equal(t, 1, sessions.calls)
	require.Equal(t, []string{"k/1", "k/1", "k/2"}, source.visited)
	require.Equal(t, "fresh", source.seen[2].Cookies["z_c0"])
	require.Equal(t, StateExhausted, results[0].State)
}

func TestPagerCanceledBeforeStart(t *testing.T) {
	t.Parallel()

	source := &scriptedSource{script: map[string][]int{"k": {1}}}
	p := newTestPager(source, memory.NewSink(), nil, Options{MaxItems: 10})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Empty(t, p.Run(ctx, []string{"k", "j"}))
	require.Empty(t, source.visited)
}
