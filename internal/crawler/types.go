package crawler

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ContentKind discriminates the content variants a source exposes.
type ContentKind string

// Content kinds understood by the pipeline.
const (
	KindAnswer  ContentKind = "answer"
	KindArticle ContentKind = "article"
	KindVideo   ContentKind = "zvideo"
)

// Mode selects which top-level flow a run executes.
type Mode string

// Supported run modes.
const (
	ModeSearch   Mode = "search"
	ModeDetail   Mode = "detail"
	ModeCreator  Mode = "creator"
	ModeQuestion Mode = "question"
)

// ParseMode validates a configured mode string.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(raw); m {
	case ModeSearch, ModeDetail, ModeCreator, ModeQuestion:
		return m, nil
	default:
		return "", &ConfigError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", raw)}
	}
}

// CreatorRef is the author summary embedded in content and comments.
type CreatorRef struct {
	ID       string `json:"user_id"`
	URLToken string `json:"url_token"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar"`
	Link     string `json:"link"`
}

// ContentItem is a fully resolved post, answer, article or video.
type ContentItem struct {
	ID            string      `json:"content_id"`
	Kind          ContentKind `json:"content_type"`
	URL           string      `json:"content_url"`
	Title         string      `json:"title"`
	Desc          string      `json:"desc"`
	Text          string      `json:"content_text"`
	QuestionID    string      `json:"question_id,omitempty"`
	Author        CreatorRef  `json:"author"`
	VoteupCount   int64       `json:"voteup_count"`
	CommentCount  int64       `json:"comment_count"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
	SourceKeyword string      `json:"source_keyword,omitempty"`
}

// Identity returns the (kind, id) pair that uniquely names the item within a run.
func (c ContentItem) Identity() string {
	return string(c.Kind) + ":" + c.ID
}

// CommentItem is one comment on a content item. ParentID is nil for root comments.
type CommentItem struct {
	ID              string      `json:"comment_id"`
	ParentID        *string     `json:"parent_comment_id,omitempty"`
	ContentID       string      `json:"content_id"`
	ContentKind     ContentKind `json:"content_type"`
	Author          CreatorRef  `json:"author"`
	Text            string      `json:"content"`
	LikeCount       int64       `json:"like_count"`
	SubCommentCount int64       `json:"sub_comment_count"`
	IPLocation      string      `json:"ip_location,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	Cursor          string      `json:"cursor,omitempty"`
}

// Creator is a creator profile with aggregate counters.
type Creator struct {
	ID           string `json:"user_id"`
	URLToken     string `json:"url_token"`
	Nickname     string `json:"nickname"`
	Avatar       string `json:"avatar"`
	Link         string `json:"link"`
	Gender       string `json:"gender"`
	IPLocation   string `json:"ip_location,omitempty"`
	Follows      int64  `json:"follows"`
	Fans         int64  `json:"fans"`
	AnswerCount  int64  `json:"anwser_count"`
	ArticleCount int64  `json:"article_count"`
	VideoCount   int64  `json:"video_count"`
	VoteupCount  int64  `json:"get_voteup_count"`
}

// Ref returns the summary form embedded in content rows.
func (c Creator) Ref() CreatorRef {
	return CreatorRef{
		ID:       c.ID,
		URLToken: c.URLToken,
		Nickname: c.Nickname,
		Avatar:   c.Avatar,
		Link:     c.Link,
	}
}

// QuestionTopic captures the metadata of a question page swept in question mode.
type QuestionTopic struct {
	ID            string   `json:"question_id"`
	URL           string   `json:"question_url"`
	Title         string   `json:"title"`
	Detail        string   `json:"detail"`
	FollowerCount int64    `json:"follower_count"`
	ViewCount     int64    `json:"view_count"`
	AnswerCount   int64    `json:"answer_count"`
	Topics        []string `json:"topics"`
	AuthorName    string   `json:"author_name,omitempty"`
	AuthorToken   string   `json:"author_url_token,omitempty"`
}

// Session is the cookie and header state shared by consecutive source requests.
type Session struct {
	Cookies map[string]string
	Header  http.Header
}

// CookieHeader renders the cookies in request header form.
func (s Session) CookieHeader() string {
	names := make([]string, 0, len(s.Cookies))
	for name := range s.Cookies {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+"="+s.Cookies[name])
	}
	return strings.Join(parts, "; ")
}

// Empty reports whether the session carries no credentials.
func (s Session) Empty() bool {
	return len(s.Cookies) == 0 && len(s.Header) == 0
}
