package zhihu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// ListingPageSize is the page size requested from creator listings.
const ListingPageSize = 20

type creatorEntity struct {
	ID             flexID `json:"id"`
	URLToken       string `json:"urlToken"`
	Name           string `json:"name"`
	AvatarURL      string `json:"avatarUrl"`
	Gender         *int   `json:"gender"`
	IPInfo         string `json:"ipInfo"`
	FollowingCount int64  `json:"followingCount"`
	FollowerCount  int64  `json:"followerCount"`
	AnswerCount    int64  `json:"answerCount"`
	ArticlesCount  int64  `json:"articlesCount"`
	ZvideoCount    int64  `json:"zvideoCount"`
	VoteupCount    int64  `json:"voteupCount"`
}

// FetchCreator reads a creator's profile from the rendered profile page.
func (c *Client) FetchCreator(ctx context.Context, token string) (crawler.Creator, error) {
	pageURL := c.cfg.BaseURL + "/people/" + url.PathEscape(token)
	doc, err := c.page(ctx, "creator", pageURL)
	if err != nil {
		return crawler.Creator{}, err
	}
	data, err := parseInitialData(doc)
	if err != nil {
		return crawler.Creator{}, fmt.Errorf("creator %s: %w", token, err)
	}
	raw, ok := data.InitialState.Entities.Users[token]
	if !ok {
		return crawler.Creator{}, fmt.Errorf("creator %s: %w", token, crawler.ErrNotFound)
	}
	var e creatorEntity
	if err := json.Unmarshal(raw, &e); err != nil {
		return crawler.Creator{}, fmt.Errorf("decode creator %s: %w", token, err)
	}
	if e.URLToken == "" {
		e.URLToken = token
	}
	return crawler.Creator{
		ID:           string(e.ID),
		URLToken:     e.URLToken,
		Nickname:     e.Name,
		Avatar:       e.AvatarURL,
		Link:         c.cfg.BaseURL + "/people/" + token,
		Gender:       genderText(e.Gender),
		IPLocation:   e.IPInfo,
		Follows:      e.FollowingCount,
		Fans:         e.FollowerCount,
		AnswerCount:  e.AnswerCount,
		ArticleCount: e.ArticlesCount,
		VideoCount:   e.ZvideoCount,
		VoteupCount:  e.VoteupCount,
	}, nil
}

type listingResponse struct {
	Data   []apiContent `json:"data"`
	Paging apiPaging    `json:"paging"`
}

// FetchCreatorListing returns one page of a creator's answers. The cursor
// offset is the numeric item offset.
func (c *Client) FetchCreatorListing(
	ctx context.Context,
	creator crawler.Creator,
	cursor crawler.PageCursor,
) ([]crawler.ContentItem, crawler.PageCursor, error) {
	offset := 0
	if cursor.Offset != "" {
		n, err := strconv.Atoi(cursor.Offset)
		if err != nil {
			return nil, cursor, fmt.Errorf("listing cursor %q: %w", cursor.Offset, err)
		}
		offset = n
	}
	q := url.Values{}
	q.Set("include", "data[*].is_normal,content,voteup_count,comment_count,created_time,updated_time;data[*].author.follower_count")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(ListingPageSize))
	q.Set("order_by", "created")
	endpoint := fmt.Sprintf("%s/api/v4/members/%s/answers?%s", c.cfg.APIURL, url.PathEscape(creator.URLToken), q.Encode())

	body, err := c.get(ctx, "listing", crawler.Session{}, endpoint, "application/json")
	if err != nil {
		return nil, cursor, err
	}
	var resp listingResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, cursor, fmt.Errorf("decode listing of %s: %w", creator.URLToken, err)
	}
	items := make([]crawler.ContentItem, 0, len(resp.Data))
	for _, raw := range resp.Data {
		if raw.Type == "" {
			raw.Type = string(crawler.KindAnswer)
		}
		if item, ok := c.urls.item(raw, nil); ok {
			items = append(items, item)
		}
	}
	end := offset + len(resp.Data)
	next := crawler.PageCursor{
		Page:      cursor.Page + 1,
		Offset:    strconv.Itoa(end),
		Exhausted: resp.Paging.IsEnd || len(resp.Data) == 0,
	}
	return items, next, nil
}

func genderText(g *int) string {
	switch {
	case g == nil:
		return "未知"
	case *g == 1:
		return "男"
	case *g == 0:
		return "女"
	default:
		return "未知"
	}
}
