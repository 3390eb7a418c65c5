// Package news is the client for the news search provider.
package news

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"advisor-core/pkg/model"
	"advisor-core/pkg/upstream"
)

const (
	searchPath = "/search"
	dateLayout = "2006-01-02"

	// DefaultLimit caps the number of results per search.
	DefaultLimit = 5
)

// Query is one search request. An empty Keyword means no filter.
type Query struct {
	Keyword string
	From    time.Time
	To      time.Time
	Limit   int
	Region  string
}

// Client calls GET <base>/search.
type Client struct {
	upstream.Base
}

// NewClient builds a client; timeout <= 0 uses upstream.DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{Base: upstream.NewBase(baseURL, timeout)}
}

type item struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	Summary     string `json:"summary"`
	PublishedAt string `json:"published_at"`
}

// Search returns at least one item or an error. An empty result set is reported
// as a soft upstream error so callers can tell it apart from a broken provider.
func (c *Client) Search(ctx context.Context, q Query) ([]model.NewsItem, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	params := url.Values{}
	params.Set("keyword", q.Keyword)
	params.Set("from", q.From.UTC().Format(dateLayout))
	params.Set("to", q.To.UTC().Format(dateLayout))
	params.Set("limit", strconv.Itoa(limit))
	params.Set("sources", "")
	params.Set("region", q.Region)

	rows, err := upstream.Get[[]item](ctx, c.Base, searchPath, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, upstream.NoData(searchPath)
	}

	out := make([]model.NewsItem, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.NewsItem{
			Title:       r.Title,
			Source:      r.Source,
			URL:         r.URL,
			Summary:     r.Summary,
			PublishedAt: r.PublishedAt,
		})
	}
	return out, nil
}
