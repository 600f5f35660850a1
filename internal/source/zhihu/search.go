package zhihu

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/JakeFAU/harvester/internal/crawler"
)

// SearchPageSize is fixed by the search API.
const SearchPageSize = 20

type searchResponse struct {
	Data []struct {
		Type   string      `json:"type"`
		Object *apiContent `json:"object"`
	} `json:"data"`
	Paging apiPaging `json:"paging"`
}

// SearchPage returns one page of keyword results. Pages are 1-based.
func (c *Client) SearchPage(ctx context.Context, sess crawler.Session, keyword string, page int) ([]crawler.ContentItem, error) {
	if page < 1 {
		page = 1
	}
	offset := strconv.Itoa((page - 1) * SearchPageSize)
	q := url.Values{}
	q.Set("gk_version", "gz-gaokao")
	q.Set("t", "general")
	q.Set("q", keyword)
	q.Set("correction", "1")
	q.Set("offset", offset)
	q.Set("limit", strconv.Itoa(SearchPageSize))
	q.Set("filter_fields", "")
	q.Set("lc_idx", offset)
	q.Set("show_all_topics", "0")
	q.Set("search_source", "Normal")

	body, err := c.get(ctx, "search", sess, c.cfg.APIURL+"/api/v4/search_v3?"+q.Encode(), "application/json")
	if err != nil {
		return nil, err
	}
	var resp searchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode search page %d: %w", page, err)
	}
	items := make([]crawler.ContentItem, 0, len(resp.Data))
	for _, row := range resp.Data {
		if row.Object == nil || (row.Type != "search_result" && row.Type != "zvideo") {
			continue
		}
		if item, ok := c.urls.item(*row.Object, nil); ok {
			items = append(items, item)
		}
	}
	return items, nil
}
