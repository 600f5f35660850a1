package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/JakeFAU/harvester/internal/crawler"
)

type fakeDetails struct {
	missing map[string]bool
	calls   atomic.Int64
}

func (f *fakeDetails) item(kind crawler.ContentKind, id string) (crawler.ContentItem, error) {
	f.calls.Add(1)
	if f.missing[id] {
		return crawler.ContentItem{}, crawler.ErrNotFound
	}
	return crawler.ContentItem{ID: id, Kind: kind, URL: "https://example.test/" + id, Title: "t" + id}, nil
}

func (f *fakeDetails) FetchAnswer(_ context.Context, ref crawler.AnswerRef) (crawler.ContentItem, error) {
	item, err := f.item(crawler.KindAnswer, ref.AnswerID)
	item.QuestionID = ref.QuestionID
	return item, err
}

func (f *fakeDetails) FetchArticle(_ context.Context, ref crawler.ArticleRef) (crawler.ContentItem, error) {
	return f.item(crawler.KindArticle, ref.ArticleID)
}

func (f *fakeDetails) FetchVideo(_ context.Context, ref crawler.VideoRef) (crawler.ContentItem, error) {
	return f.item(crawler.KindVideo, ref.VideoID)
}

// fakeComments serves pageSize comments per page until total is reached.
type fakeComments struct {
	total    int
	pageSize int
	failOn   map[string]bool
	failPage map[string]int
	calls    atomic.Int64

	mu      sync.Mutex
	cursors map[string][]crawler.PageCursor
}

func (f *fakeComments) FetchCommentsPage(
	_ context.Context,
	item crawler.ContentItem,
	cursor crawler.PageCursor,
) ([]crawler.CommentItem, crawler.PageCursor, error) {
	f.calls.Add(1)
	f.mu.Lock()
	if f.cursors == nil {
		f.cursors = map[string][]crawler.PageCursor{}
	}
	f.cursors[item.ID] = append(f.cursors[item.ID], cursor)
	f.mu.Unlock()

	if f.failOn[item.ID] {
		return nil, cursor, errors.New("upstream 500")
	}
	if n := f.failPage[item.ID]; n > 0 && cursor.Page >= n {
		return nil, cursor, errors.New("upstream 502")
	}
	offset := 0
	if cursor.Offset != "" {
		offset, _ = strconv.Atoi(cursor.Offset)
	}
	var page []crawler.CommentItem
	for i := offset; i < offset+f.pageSize && i < f.total; i++ {
		page = append(page, crawler.CommentItem{
			ID:        fmt.Sprintf("%s-c%d", item.ID, i),
			ContentID: item.ID,
		})
	}
	nextOffset := offset + len(page)
	next := crawler.PageCursor{Page: cursor.Page + 1, Offset: strconv.Itoa(nextOffset), Exhausted: nextOffset >= f.total}
	return page, next, nil
}

func (f *fakeComments) Cursors(id string) []crawler.PageCursor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]crawler.PageCursor(nil), f.cursors[id]...)
}

// failingSink rejects content whose id is listed and delegates the rest.
type failingSink struct {
	crawler.Sink
	rejectContent map[string]bool
}

func (s *failingSink) StoreContent(ctx context.Context, item crawler.ContentItem) error {
	if s.rejectContent[item.ID] {
		return errors.New("disk full")
	}
	return s.Sink.StoreContent(ctx, item)
}
