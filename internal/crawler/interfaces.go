package crawler

import (
	"context"
	"io"
	"time"
)

// Surface is the rendered page used for scroll-driven discovery. Implementations
// back a single browser tab; callers must not assume concurrent calls are safe.
type Surface interface {
	Navigate(ctx context.Context, url string) error
	// Evaluate runs script in the page and decodes its result into out.
	Evaluate(ctx context.Context, script string, out any) error
	Wait(ctx context.Context, d time.Duration) error
	// FindControl returns the first selector that matches a visible, enabled element.
	FindControl(ctx context.Context, selectors []string) (string, bool, error)
	Click(ctx context.Context, selector string) error
	PressKey(ctx context.Context, key string) error
	HTML(ctx context.Context) (string, error)
}

// SessionProvider hands out fresh session credentials on request.
type SessionProvider interface {
	Session(ctx context.Context) (Session, error)
}

// SearchSource returns one fixed-size page of keyword search results.
type SearchSource interface {
	SearchPage(ctx context.Context, sess Session, keyword string, page int) ([]ContentItem, error)
}

// DetailSource resolves a reference to its full content item, one method per variant.
type DetailSource interface {
	FetchAnswer(ctx context.Context, ref AnswerRef) (ContentItem, error)
	FetchArticle(ctx context.Context, ref ArticleRef) (ContentItem, error)
	FetchVideo(ctx context.Context, ref VideoRef) (ContentItem, error)
}

// CommentSource pages through the comments of one content item.
type CommentSource interface {
	FetchCommentsPage(ctx context.Context, item ContentItem, cursor PageCursor) ([]CommentItem, PageCursor, error)
}

// CreatorSource resolves creator profiles and their content listings.
type CreatorSource interface {
	FetchCreator(ctx context.Context, token string) (Creator, error)
	FetchCreatorListing(ctx context.Context, creator Creator, cursor PageCursor) ([]ContentItem, PageCursor, error)
}

// TopicExtractor parses question metadata from a rendered question page.
type TopicExtractor interface {
	ExtractTopic(html string, questionURL string) (QuestionTopic, error)
}

// Sink persists harvested records. Every method is an idempotent upsert keyed by id.
type Sink interface {
	StoreContent(ctx context.Context, item ContentItem) error
	StoreComment(ctx context.Context, comment CommentItem) error
	StoreCreator(ctx context.Context, creator Creator) error
	StoreTopic(ctx context.Context, topic QuestionTopic) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes store notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
