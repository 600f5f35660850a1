package dispatcher

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/JakeFAU/harvester/internal/crawler"
	"github.com/JakeFAU/harvester/internal/scroll"
)

// recordingResolver stores every resolved or persisted item in a memory-style map.
type recordingResolver struct {
	mu        sync.Mutex
	sink      crawler.Sink
	resolved  [][]crawler.Reference
	persisted int
}

func (r *recordingResolver) Resolve(ctx context.Context, refs []crawler.Reference) []crawler.ContentItem {
	r.mu.Lock()
	r.resolved = append(r.resolved, refs)
	r.mu.Unlock()
	items := make([]crawler.ContentItem, 0, len(refs))
	for _, ref := range refs {
		items = append(items, crawler.ContentItem{ID: ref.Key(), Kind: ref.Kind()})
	}
	return r.Persist(ctx, items)
}

func (r *recordingResolver) Persist(ctx context.Context, items []crawler.ContentItem) []crawler.ContentItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range items {
		_ = r.sink.StoreContent(ctx, item)
	}
	r.persisted += len(items)
	return items
}

type countingComments struct {
	mu    sync.Mutex
	items []string
}

func (c *countingComments) Harvest(_ context.Context, items []crawler.ContentItem) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, item := range items {
		c.items = append(c.items, item.ID)
	}
	return len(items)
}

type staticSearch struct {
	perPage int
	pages   int
	seen    []crawler.Session
}

func (s *staticSearch) SearchPage(_ context.Context, sess crawler.Session, keyword string, page int) ([]crawler.ContentItem, error) {
	s.seen = append(s.seen, sess)
	if page > s.pages {
		return nil, nil
	}
	out := make([]crawler.ContentItem, s.perPage)
	for i := range out {
		out[i] = crawler.ContentItem{ID: keyword + strconv.Itoa(page) + strconv.Itoa(i), Kind: crawler.KindAnswer}
	}
	return out, nil
}

type staticSessions struct {
	session crawler.Session
	err     error
	calls   int
}

func (s *staticSessions) Session(context.Context) (crawler.Session, error) {
	s.calls++
	return s.session, s.err
}

type fakeCreators struct {
	known    map[string]int
	listings []crawler.PageCursor
}

func (f *fakeCreators) FetchCreator(_ context.Context, token string) (crawler.Creator, error) {
	if _, ok := f.known[token]; !ok {
		return crawler.Creator{}, crawler.ErrNotFound
	}
	return crawler.Creator{ID: "id-" + token, URLToken: token}, nil
}

// FetchCreatorListing serves five items per page until the creator's total is reached.
func (f *fakeCreators) FetchCreatorListing(
	_ context.Context,
	creator crawler.Creator,
	cursor crawler.PageCursor,
) ([]crawler.ContentItem, crawler.PageCursor, error) {
	f.listings = append(f.listings, cursor)
	total := f.known[creator.URLToken]
	start, _ := strconv.Atoi(cursor.Offset)
	var out []crawler.ContentItem
	for i := start; i < total && len(out) < 5; i++ {
		out = append(out, crawler.ContentItem{ID: creator.URLToken + "-" + strconv.Itoa(i), Kind: crawler.KindArticle})
	}
	end := start + len(out)
	next := crawler.PageCursor{Page: cursor.Page + 1, Offset: strconv.Itoa(end), Exhausted: end >= total}
	return out, next, nil
}

type fakeCollector struct {
	refs  map[string][]crawler.Reference
	err   map[string]error
	calls []string
}

func (f *fakeCollector) Collect(_ context.Context, pageURL string, target int) (scroll.Result, error) {
	f.calls = append(f.calls, pageURL)
	refs := f.refs[pageURL]
	if len(refs) > target {
		refs = refs[:target]
	}
	return scroll.Result{Refs: refs}, f.err[pageURL]
}

type fakeTopics struct{}

func (fakeTopics) ExtractTopic(html string, questionURL string) (crawler.QuestionTopic, error) {
	ref, err := crawler.ParseReference(questionURL + "/answer/1")
	if err != nil {
		return crawler.QuestionTopic{}, err
	}
	return crawler.QuestionTopic{ID: ref.(crawler.AnswerRef).QuestionID, URL: questionURL, Title: html}, nil
}

// pageSurface records navigation and serves a fixed HTML document.
type pageSurface struct {
	mu        sync.Mutex
	navigated []string
	expand    bool
	clicked   []string
	length    int
}

func (s *pageSurface) Navigate(_ context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *pageSurface) Evaluate(_ context.Context, _ string, out any) error {
	if n, ok := out.(*int); ok {
		*n = s.length
	}
	return nil
}

func (s *pageSurface) Wait(ctx context.Context, _ time.Duration) error { return ctx.Err() }

func (s *pageSurface) FindControl(_ context.Context, selectors []string) (string, bool, error) {
	if !s.expand {
		return "", false, nil
	}
	return selectors[0], true, nil
}

func (s *pageSurface) Click(_ context.Context, selector string) error {
	s.clicked = append(s.clicked, selector)
	s.length += 100
	return nil
}

func (s *pageSurface) PressKey(context.Context, string) error { return nil }

func (s *pageSurface) HTML(context.Context) (string, error) { return "question page", nil }
