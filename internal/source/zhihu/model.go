package zhihu

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// flexID accepts ids encoded either as JSON numbers or strings.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("decode id %s: %w", b, err)
	}
	*f = flexID(n.String())
	return nil
}

type apiAuthor struct {
	ID        flexID     `json:"id"`
	URLToken  string     `json:"url_token"`
	Name      string     `json:"name"`
	AvatarURL string     `json:"avatar_url"`
	Member    *apiAuthor `json:"member"`
}

func (a *apiAuthor) ref(baseURL string) crawler.CreatorRef {
	if a == nil {
		return crawler.CreatorRef{}
	}
	if a.ID == "" && a.Member != nil {
		a = a.Member
	}
	ref := crawler.CreatorRef{
		ID:       string(a.ID),
		URLToken: a.URLToken,
		Nickname: a.Name,
		Avatar:   a.AvatarURL,
	}
	if a.URLToken != "" {
		ref.Link = baseURL + "/people/" + a.URLToken
	}
	return ref
}

type apiContent struct {
	ID           flexID          `json:"id"`
	Type         string          `json:"type"`
	Content      string          `json:"content"`
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Excerpt      string          `json:"excerpt"`
	Question     *apiQuestion    `json:"question"`
	Author       json.RawMessage `json:"author"`
	VoteupCount  int64           `json:"voteup_count"`
	CommentCount int64           `json:"comment_count"`
	CreatedTime  int64           `json:"created_time"`
	UpdatedTime  int64           `json:"updated_time"`
	Created      int64           `json:"created"`
	Updated      int64           `json:"updated"`
	CreatedAt    int64           `json:"created_at"`
	UpdatedAt    int64           `json:"updated_at"`
	PublishedAt  int64           `json:"published_at"`
	VideoURL     string          `json:"video_url"`
	Video        json.RawMessage `json:"video"`
}

type apiQuestion struct {
	ID    flexID `json:"id"`
	Title string `json:"title"`
}

// author decodes the embedded author. Some pages reference the author by
// token; users resolves those.
func (c apiContent) author(users map[string]*apiAuthor) *apiAuthor {
	raw := bytes.TrimSpace(c.Author)
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	if raw[0] == '"' {
		var token string
		if err := json.Unmarshal(raw, &token); err != nil {
			return nil
		}
		return users[token]
	}
	var a apiAuthor
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil
	}
	return &a
}

// item converts an API object. ok is false for types the harvester does not store.
func (s *sourceURLs) item(c apiContent, users map[string]*apiAuthor) (crawler.ContentItem, bool) {
	item := crawler.ContentItem{
		ID:           string(c.ID),
		VoteupCount:  c.VoteupCount,
		CommentCount: c.CommentCount,
		Author:       c.author(users).ref(s.base),
	}
	switch crawler.ContentKind(c.Type) {
	case crawler.KindAnswer:
		item.Kind = crawler.KindAnswer
		if c.Question != nil {
			item.QuestionID = string(c.Question.ID)
			if c.Title == "" {
				c.Title = c.Question.Title
			}
		}
		item.URL = fmt.Sprintf("%s/question/%s/answer/%s", s.base, item.QuestionID, item.ID)
		item.Text = htmlText(c.Content)
		item.Desc = htmlText(firstNonEmpty(c.Description, c.Excerpt))
		item.CreatedAt = unixTime(c.CreatedTime)
		item.UpdatedAt = unixTime(c.UpdatedTime)
	case crawler.KindArticle:
		item.Kind = crawler.KindArticle
		item.URL = fmt.Sprintf("%s/p/%s", s.column, item.ID)
		item.Text = htmlText(c.Content)
		item.Desc = htmlText(c.Excerpt)
		item.CreatedAt = unixTime(firstNonZero(c.CreatedTime, c.Created))
		item.UpdatedAt = unixTime(firstNonZero(c.UpdatedTime, c.Updated))
	case crawler.KindVideo:
		item.Kind = crawler.KindVideo
		if len(bytes.TrimSpace(c.Video)) > 0 && c.Video[0] == '{' {
			item.URL = fmt.Sprintf("%s/zvideo/%s", s.base, item.ID)
			item.CreatedAt = unixTime(c.PublishedAt)
			item.UpdatedAt = unixTime(c.UpdatedAt)
		} else {
			item.URL = firstNonEmpty(c.VideoURL, fmt.Sprintf("%s/zvideo/%s", s.base, item.ID))
			item.CreatedAt = unixTime(c.CreatedAt)
		}
		item.Desc = htmlText(c.Description)
	default:
		return crawler.ContentItem{}, false
	}
	item.Title = htmlText(c.Title)
	return item, item.ID != ""
}

type apiPaging struct {
	IsEnd bool   `json:"is_end"`
	Next  string `json:"next"`
}

type apiComment struct {
	ID                flexID     `json:"id"`
	Type              string     `json:"type"`
	ReplyCommentID    flexID     `json:"reply_comment_id"`
	Content           string     `json:"content"`
	CreatedTime       int64      `json:"created_time"`
	LikeCount         int64      `json:"like_count"`
	ChildCommentCount int64      `json:"child_comment_count"`
	Author            *apiAuthor `json:"author"`
	CommentTag        []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"comment_tag"`
}

func (s *sourceURLs) comment(c apiComment, parent crawler.ContentItem, offset string) crawler.CommentItem {
	out := crawler.CommentItem{
		ID:              string(c.ID),
		ContentID:       parent.ID,
		ContentKind:     parent.Kind,
		Author:          c.Author.ref(s.base),
		Text:            htmlText(c.Content),
		LikeCount:       c.LikeCount,
		SubCommentCount: c.ChildCommentCount,
		CreatedAt:       unixTime(c.CreatedTime),
		Cursor:          offset,
	}
	if id := string(c.ReplyCommentID); id != "" && id != "0" {
		out.ParentID = &id
	}
	for _, tag := range c.CommentTag {
		if tag.Type == "ip_info" {
			out.IPLocation = tag.Text
			break
		}
	}
	return out
}

// sourceURLs holds the hosts used to build canonical content URLs.
type sourceURLs struct {
	base   string
	column string
}

var whitespace = regexp.MustCompile(`\s+`)

// htmlText flattens an HTML fragment into collapsed plain text.
func htmlText(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.TrimSpace(whitespace.ReplaceAllString(doc.Text(), " "))
}

func unixTime(sec int64) time.Time {
	if sec <= 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int64) int64 {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
