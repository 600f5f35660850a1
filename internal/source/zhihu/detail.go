package zhihu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// initialData is the state blob embedded in server-rendered pages.
type initialData struct {
	InitialState struct {
		Entities struct {
			Answers  map[string]apiContent      `json:"answers"`
			Articles map[string]apiContent      `json:"articles"`
			Zvideos  map[string]apiContent      `json:"zvideos"`
			Users    map[string]json.RawMessage `json:"users"`
		} `json:"entities"`
	} `json:"initialState"`
}

func parseInitialData(doc *goquery.Document) (initialData, error) {
	var data initialData
	raw := strings.TrimSpace(doc.Find("script#js-initialData").First().Text())
	if raw == "" {
		return data, fmt.Errorf("page has no initial data: %w", crawler.ErrNotFound)
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return data, fmt.Errorf("decode initial data: %w", err)
	}
	return data, nil
}

func (c *Client) page(ctx context.Context, stage, rawURL string) (*goquery.Document, error) {
	body, err := c.get(ctx, stage, crawler.Session{}, rawURL, "text/html")
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

// FetchAnswer resolves an answer from its rendered page.
func (c *Client) FetchAnswer(ctx context.Context, ref crawler.AnswerRef) (crawler.ContentItem, error) {
	pageURL := fmt.Sprintf("%s/question/%s/answer/%s", c.cfg.BaseURL, ref.QuestionID, ref.AnswerID)
	return c.fetchEntity(ctx, pageURL, ref.AnswerID, func(d initialData) map[string]apiContent {
		return d.InitialState.Entities.Answers
	})
}

// FetchArticle resolves a column article from its rendered page.
func (c *Client) FetchArticle(ctx context.Context, ref crawler.ArticleRef) (crawler.ContentItem, error) {
	pageURL := fmt.Sprintf("%s/p/%s", c.cfg.ColumnURL, ref.ArticleID)
	return c.fetchEntity(ctx, pageURL, ref.ArticleID, func(d initialData) map[string]apiContent {
		return d.InitialState.Entities.Articles
	})
}

// FetchVideo resolves a video from its rendered page.
func (c *Client) FetchVideo(ctx context.Context, ref crawler.VideoRef) (crawler.ContentItem, error) {
	pageURL := fmt.Sprintf("%s/zvideo/%s", c.cfg.BaseURL, ref.VideoID)
	return c.fetchEntity(ctx, pageURL, ref.VideoID, func(d initialData) map[string]apiContent {
		return d.InitialState.Entities.Zvideos
	})
}

func (c *Client) fetchEntity(
	ctx context.Context,
	pageURL, id string,
	pick func(initialData) map[string]apiContent,
) (crawler.ContentItem, error) {
	doc, err := c.page(ctx, "detail", pageURL)
	if err != nil {
		return crawler.ContentItem{}, err
	}
	data, err := parseInitialData(doc)
	if err != nil {
		return crawler.ContentItem{}, fmt.Errorf("%s: %w", pageURL, err)
	}
	entities := pick(data)
	entity, ok := entities[id]
	if !ok {
		for _, v := range entities {
			entity, ok = v, true
			break
		}
	}
	if !ok {
		return crawler.ContentItem{}, fmt.Errorf("%s: entity %s: %w", pageURL, id, crawler.ErrNotFound)
	}
	item, ok := c.urls.item(entity, decodeUsers(data.InitialState.Entities.Users))
	if !ok {
		return crawler.ContentItem{}, fmt.Errorf("%s: unsupported content type %q: %w", pageURL, entity.Type, crawler.ErrNotFound)
	}
	if item.VoteupCount == 0 {
		item.VoteupCount = voteupFromPage(doc)
	}
	if item.CommentCount == 0 {
		item.CommentCount = commentCountFromPage(doc)
	}
	return item, nil
}

// decodeUsers keeps the user entities that decode as authors.
func decodeUsers(raw map[string]json.RawMessage) map[string]*apiAuthor {
	users := make(map[string]*apiAuthor, len(raw))
	for token, blob := range raw {
		var a apiAuthor
		if err := json.Unmarshal(blob, &a); err != nil {
			continue
		}
		if a.URLToken == "" {
			a.URLToken = token
		}
		users[token] = &a
	}
	return users
}

var (
	voteupLabel  = regexp.MustCompile(`赞同\s*(\d+)`)
	commentLabel = regexp.MustCompile(`(\d+)\s*条?评论`)
)

func voteupFromPage(doc *goquery.Document) int64 {
	var n int64
	doc.Find(`button[class*="VoteButton"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text, _ := s.Attr("aria-label")
		if m := voteupLabel.FindStringSubmatch(text + " " + s.Text()); m != nil {
			n, _ = strconv.ParseInt(m[1], 10, 64)
			return false
		}
		return true
	})
	return n
}

func commentCountFromPage(doc *goquery.Document) int64 {
	var n int64
	doc.Find("button").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if m := commentLabel.FindStringSubmatch(s.Text()); m != nil {
			n, _ = strconv.ParseInt(m[1], 10, 64)
			return false
		}
		return true
	})
	return n
}
