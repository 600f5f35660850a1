package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Reference points at an unfetched content item. The set of implementations is
// closed: AnswerRef, ArticleRef and VideoRef.
type Reference interface {
	// Key is the canonical URL used as the discovery key.
	Key() string
	Kind() ContentKind
	isReference()
}

// AnswerRef names an answer under a question.
type AnswerRef struct {
	QuestionID string
	AnswerID   string
}

// Key implements Reference.
func (r AnswerRef) Key() string {
	return fmt.Sprintf("%s/question/%s/answer/%s", SiteURL, r.QuestionID, r.AnswerID)
}

// Kind implements Reference.
func (AnswerRef) Kind() ContentKind { return KindAnswer }

func (AnswerRef) isReference() {}

// ArticleRef names a column article.
type ArticleRef struct {
	ArticleID string
}

// Key implements Reference.
func (r ArticleRef) Key() string {
	return fmt.Sprintf("%s/p/%s", ColumnURL, r.ArticleID)
}

// Kind implements Reference.
func (ArticleRef) Kind() ContentKind { return KindArticle }

func (ArticleRef) isReference() {}

// VideoRef names a video.
type VideoRef struct {
	VideoID string
}

// Key implements Reference.
func (r VideoRef) Key() string {
	return fmt.Sprintf("%s/zvideo/%s", SiteURL, r.VideoID)
}

// Kind implements Reference.
func (VideoRef) Kind() ContentKind { return KindVideo }

func (VideoRef) isReference() {}

// Canonical hosts used to build reference keys.
const (
	SiteURL   = "https://www.zhihu.com"
	ColumnURL = "https://zhuanlan.zhihu.com"
)

var (
	answerPath  = regexp.MustCompile(`^/question/(\d+)/answer/(\d+)/?$`)
	articlePath = regexp.MustCompile(`^/p/(\d+)/?$`)
	videoPath   = regexp.MustCompile(`^/zvideo/(\d+)/?$`)
)

// ParseReference classifies a content URL. Query strings and fragments are ignored.
func ParseReference(raw string) (Reference, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("parse reference: empty url")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse reference %q: %w", raw, err)
	}
	host := strings.ToLower(u.Hostname())
	if m := answerPath.FindStringSubmatch(u.Path); m != nil {
		return AnswerRef{QuestionID: m[1], AnswerID: m[2]}, nil
	}
	if m := articlePath.FindStringSubmatch(u.Path); m != nil && strings.HasPrefix(host, "zhuanlan.") {
		return ArticleRef{ArticleID: m[1]}, nil
	}
	if m := videoPath.FindStringSubmatch(u.Path); m != nil {
		return VideoRef{VideoID: m[1]}, nil
	}
	return nil, fmt.Errorf("parse reference %q: unrecognized content url", raw)
}

// LastPathSegment returns the trailing segment of a URL path, e.g. a creator token.
func LastPathSegment(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	}
	raw = strings.TrimRight(raw, "/")
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}
