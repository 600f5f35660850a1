package zhihu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/JakeFAU/harvester/internal/crawler"
)

type commentResponse struct {
	Data   []apiComment `json:"data"`
	Paging apiPaging    `json:"paging"`
}

// FetchCommentsPage returns one page of root comments. The next cursor's
// offset comes from the API's paging.next link.
func (c *Client) FetchCommentsPage(
	ctx context.Context,
	item crawler.ContentItem,
	cursor crawler.PageCursor,
) ([]crawler.CommentItem, crawler.PageCursor, error) {
	q := url.Values{}
	q.Set("order_by", "score")
	q.Set("limit", strconv.Itoa(c.cfg.CommentPage))
	q.Set("offset", cursor.Offset)
	endpoint := fmt.Sprintf("%s/api/v4/comment_v5/%ss/%s/root_comment?%s", c.cfg.APIURL, item.Kind, item.ID, q.Encode())

	body, err := c.get(ctx, "comments", crawler.Session{}, endpoint, "application/json")
	if err != nil {
		return nil, cursor, err
	}
	var resp commentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, cursor, fmt.Errorf("decode comments of %s: %w", item.Identity(), err)
	}

	comments := make([]crawler.CommentItem, 0, len(resp.Data))
	for _, raw := range resp.Data {
		if raw.Type != "comment" {
			continue
		}
		comments = append(comments, c.urls.comment(raw, item, cursor.Offset))
	}
	offset := nextOffset(resp.Paging.Next)
	next := crawler.PageCursor{
		Page:      cursor.Page + 1,
		Offset:    offset,
		Exhausted: resp.Paging.IsEnd || offset == "",
	}
	return comments, next, nil
}

// nextOffset extracts the offset query parameter from a paging link.
func nextOffset(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("offset")
}
