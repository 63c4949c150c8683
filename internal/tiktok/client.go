package tiktok

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	stealth "github.com/anatolykoptev/go-stealth"

	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
	"github.com/gauthierbraillon/fanfeed/internal/fetch"
)

const (
	defaultOEmbedURL = "https://www.tiktok.com/oembed"
	tiktokReferer    = "https://www.tiktok.com/"
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient fetch.HTTPClient) ClientOption {
	return func(c *Client) {
		c.fetcher = fetch.New(fetch.WithHTTPClient(httpClient))
	}
}

// WithFetcher sets the fetch adapter used for every JSON call.
func WithFetcher(f *fetch.Client) ClientOption {
	return func(c *Client) {
		c.fetcher = f
	}
}

// WithBaseURL overrides the backend video endpoint.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithOEmbedURL overrides the oEmbed endpoint used to resolve permalinks.
func WithOEmbedURL(oembedURL string) ClientOption {
	return func(c *Client) {
		c.oembedURL = oembedURL
	}
}

// Client talks to the TikTok scraping backend.
type Client struct {
	fetcher   *fetch.Client
	baseURL   string
	oembedURL string
}

// NewClient creates a new backend client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		fetcher:   fetch.New(),
		baseURL:   DefaultBackendURL,
		oembedURL: defaultOEmbedURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Records pages through the backend, PageSize at a time, until q.Limit records
// are collected, a page comes back empty, the backend reports no next cursor,
// or the cursor stops advancing. A rejected call yields *UpstreamError.
func (c *Client) Records(ctx context.Context, q Query) ([]Record, error) {
	limit := ClampLimit(q.Limit)
	keywords := JoinKeywords(q.Keywords)

	collected := make([]Record, 0, limit)
	var cursor *int64

	for len(collected) < limit {
		params := url.Values{"limit": {strconv.Itoa(PageSize)}}
		if keywords != "" {
			params.Set("q", keywords)
		}
		if cursor != nil {
			params.Set("cursor", strconv.FormatInt(*cursor, 10))
		}

		var page backendResponse
		res := c.fetcher.GetJSON(ctx, c.pageURL(params), &page)
		if !res.OK() {
			if res.Kind == fetch.KindStatus {
				msg := res.StatusText
				if msg == "" {
					msg = "TikTok backend error"
				}
				return nil, &UpstreamError{Status: res.Status, Message: msg}
			}
			return nil, fmt.Errorf("tiktok backend unavailable: %w", res.Err)
		}

		collected = append(collected, decodeEach[Record](page.Videos)...)

		if len(page.Videos) == 0 || page.NextCursor == nil {
			break
		}
		if cursor != nil && *page.NextCursor == *cursor {
			slog.Warn("tiktok: backend cursor did not advance, stopping",
				slog.Int64("cursor", *cursor))
			break
		}
		next := *page.NextCursor
		cursor = &next
	}

	if len(collected) > limit {
		collected = collected[:limit]
	}
	return collected, nil
}

// Videos fetches and normalizes backend records. Records without an id are
// dropped.
func (c *Client) Videos(ctx context.Context, q Query) ([]aggregator.VideoItem, error) {
	records, err := c.Records(ctx, q)
	if err != nil {
		return nil, err
	}
	videos := make([]aggregator.VideoItem, 0, len(records))
	for _, r := range records {
		if v, ok := Normalize(r); ok {
			videos = append(videos, v)
		}
	}
	return videos, nil
}

// Provider exposes Videos as an aggregation tier.
func (c *Client) Provider(q Query) aggregator.Provider {
	return aggregator.ProviderFunc{
		Label: "tiktok-api",
		Fn: func(ctx context.Context) ([]aggregator.VideoItem, error) {
			return c.Videos(ctx, q)
		},
	}
}

// Normalize maps a backend record to a VideoItem.
func Normalize(r Record) (aggregator.VideoItem, bool) {
	id := strings.TrimSpace(string(r.VideoID))
	if id == "" {
		return aggregator.VideoItem{}, false
	}

	author := strings.TrimPrefix(firstNonEmpty(r.AuthorID, r.AuthorIDAlt), "@")
	permalink := strings.TrimSpace(r.VideoURL)

	v := aggregator.VideoItem{
		ID:           id,
		Title:        aggregator.NormalizeTitle(r.Title, "", DefaultTitle),
		Source:       aggregator.SourceTikTok,
		AuthorID:     author,
		ThumbnailURL: strings.TrimSpace(r.ThumbnailURL),
		Permalink:    permalink,
		MediaURL:     firstNonEmpty(r.MediaURL, r.PlayURL, r.DownloadURL, permalink),
	}
	if author != "" {
		v.ChannelName = "@" + author
	}
	return v, true
}

func (c *Client) pageURL(params url.Values) string {
	sep := "?"
	if strings.Contains(c.baseURL, "?") {
		sep = "&"
	}
	return c.baseURL + sep + params.Encode()
}

type oembedResponse struct {
	ThumbnailURL string `json:"thumbnail_url"`
}

// ResolveThumbnail looks up a video's thumbnail through TikTok oEmbed. The
// result must itself be an allowed thumbnail source.
func (c *Client) ResolveThumbnail(ctx context.Context, permalink *url.URL) (*url.URL, error) {
	endpoint := c.oembedURL + "?" + url.Values{"url": {permalink.String()}}.Encode()

	var out oembedResponse
	res := c.fetcher.GetJSON(ctx, endpoint, &out)
	if !res.OK() {
		return nil, fmt.Errorf("tiktok oembed lookup failed: %w", res.Err)
	}
	if out.ThumbnailURL == "" {
		return nil, errors.New("tiktok oembed returned no thumbnail")
	}
	return ValidateThumbnailSource(out.ThumbnailURL)
}

// FetchThumbnail opens the image at src with browser-like headers. The caller
// closes the body. Non-2xx answers are returned as a response, not an error.
func (c *Client) FetchThumbnail(ctx context.Context, src *url.URL) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", stealth.RandomUserAgent())
	req.Header.Set("Referer", tiktokReferer)
	req.Header.Set("Accept", "image/avif,image/webp,image/apng,image/*,*/*;q=0.8")

	resp, err := c.fetcher.HTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("thumbnail fetch failed: %w", err)
	}
	return resp, nil
}
