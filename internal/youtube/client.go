package youtube

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
	"github.com/gauthierbraillon/fanfeed/internal/fetch"
)

const defaultBaseURL = "https://www.googleapis.com"

var (
	channelIDPattern = regexp.MustCompile(`^UC[\w-]{22}$`)
	durationPattern  = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+(?:\.\d+)?)S)?)?$`)
)

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient fetch.HTTPClient) ClientOption {
	return func(c *Client) {
		c.fetcher = fetch.New(fetch.WithHTTPClient(httpClient))
	}
}

// WithFetcher sets the fetch adapter used for every API call.
func WithFetcher(f *fetch.Client) ClientOption {
	return func(c *Client) {
		c.fetcher = f
	}
}

// WithBaseURL sets a custom base URL (useful for testing).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithShuffler sets the permutation applied to search results.
func WithShuffler(shuffle aggregator.Shuffler) ClientOption {
	return func(c *Client) {
		c.shuffle = shuffle
	}
}

// Client is a YouTube Data API client authenticated with an API key.
type Client struct {
	apiKey  string
	baseURL string
	fetcher *fetch.Client
	shuffle aggregator.Shuffler
}

// NewClient creates a new YouTube API client with the given API key.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		fetcher: fetch.New(),
		shuffle: aggregator.RandomShuffle,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Videos searches when req.Query is set and reads req.PlaylistID otherwise.
func (c *Client) Videos(ctx context.Context, req Request) ([]aggregator.VideoItem, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(req.Query) != "" {
		return c.Search(ctx, req)
	}
	if strings.TrimSpace(req.PlaylistID) != "" {
		return c.Playlist(ctx, req.PlaylistID, req.Limit)
	}
	return nil, ErrNoSource
}

// Provider exposes Videos as an aggregation tier.
func (c *Client) Provider(req Request) aggregator.Provider {
	return aggregator.ProviderFunc{
		Label: "youtube-api",
		Fn: func(ctx context.Context) ([]aggregator.VideoItem, error) {
			return c.Videos(ctx, req)
		},
	}
}

// Search finds short videos for req.Query ordered by views. When nothing is
// found it retries without the channel restriction and then with
// FallbackQuery. Results are filtered to shorts, shuffled and capped.
func (c *Client) Search(ctx context.Context, req Request) ([]aggregator.VideoItem, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrNoSource
	}
	limit := ClampLimit(req.Limit)
	channelID := SanitizeChannelID(req.ChannelID)

	candidates, err := c.searchPages(ctx, query, channelID, limit)
	if len(candidates) == 0 && channelID != "" {
		slog.Warn("youtube: no results with channel filter, retrying without channel restriction")
		candidates, err = c.searchPages(ctx, query, "", limit)
	}
	if len(candidates) == 0 {
		slog.Warn("youtube: primary search yielded no results, using fallback keyword",
			slog.String("query", FallbackQuery))
		candidates, err = c.searchPages(ctx, FallbackQuery, "", limit)
	}
	if err != nil {
		return nil, err
	}

	videos := aggregator.Shuffled(c.filterShorts(ctx, candidates), c.shuffle)
	if len(videos) > limit {
		videos = videos[:limit]
	}
	return videos, nil
}

// Playlist reads up to limit items of a playlist, keeping playlist order.
func (c *Client) Playlist(ctx context.Context, playlistID string, limit int) ([]aggregator.VideoItem, error) {
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	params := url.Values{
		"key":        {c.apiKey},
		"playlistId": {playlistID},
		"part":       {"snippet,contentDetails"},
		"maxResults": {strconv.Itoa(min(ClampLimit(limit), pageSize))},
	}

	var response playlistItemsResponse
	res := c.fetcher.GetJSON(ctx, c.endpoint("playlistItems", params), &response)
	if !res.OK() {
		return nil, fmt.Errorf("failed to fetch playlist: %w", c.apiError(res))
	}

	candidates := make([]aggregator.VideoItem, 0, len(response.Items))
	for _, item := range response.Items {
		if item.Snippet == nil || item.ContentDetails.VideoID == "" {
			continue
		}
		channel := item.Snippet.VideoOwnerChannelTitle
		if channel == "" {
			channel = item.Snippet.ChannelTitle
		}
		candidates = append(candidates, newShort(
			item.ContentDetails.VideoID,
			item.Snippet.Title,
			channel,
			item.Snippet.PublishedAt,
			item.Snippet.Thumbnails,
		))
	}

	return c.filterShorts(ctx, candidates), nil
}

// SanitizeChannelID returns id when it is a well-formed channel id and ""
// otherwise. Malformed ids are logged and ignored.
func SanitizeChannelID(id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if !channelIDPattern.MatchString(id) {
		slog.Warn("youtube: ignoring invalid channel ID", slog.String("channel_id", id))
		return ""
	}
	return id
}

func (c *Client) searchPages(ctx context.Context, query, channelID string, limit int) ([]aggregator.VideoItem, error) {
	pages := max(1, (limit+pageSize-1)/pageSize)
	collected := make([]aggregator.VideoItem, 0, limit)
	pageToken := ""

	for page := 0; page < pages; page++ {
		params := url.Values{
			"key":           {c.apiKey},
			"part":          {"snippet"},
			"type":          {"video"},
			"q":             {query},
			"videoDuration": {"short"},
			"maxResults":    {strconv.Itoa(pageSize)},
			"order":         {"viewCount"},
		}
		if channelID != "" {
			params.Set("channelId", channelID)
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var response searchResponse
		res := c.fetcher.GetJSON(ctx, c.endpoint("search", params), &response)
		if !res.OK() {
			if len(collected) == 0 {
				return nil, fmt.Errorf("failed to fetch YouTube videos: %w", c.apiError(res))
			}
			slog.Warn("youtube: search pagination failed, returning partial results",
				slog.Int("status", res.Status),
				slog.Int("collected", len(collected)))
			break
		}

		for _, item := range response.Items {
			if item.Snippet == nil || item.ID.VideoID == "" {
				continue
			}
			collected = append(collected, newShort(
				item.ID.VideoID,
				item.Snippet.Title,
				item.Snippet.ChannelTitle,
				item.Snippet.PublishedAt,
				item.Snippet.Thumbnails,
			))
		}

		pageToken = response.NextPageToken
		if pageToken == "" || len(collected) >= limit {
			break
		}
	}

	return collected, nil
}

// filterShorts keeps candidates whose duration is within maxShortSecs and
// fills their view counts. A batch whose details cannot be read is kept as is.
func (c *Client) filterShorts(ctx context.Context, candidates []aggregator.VideoItem) []aggregator.VideoItem {
	shorts := make([]aggregator.VideoItem, 0, len(candidates))

	for start := 0; start < len(candidates); start += pageSize {
		batch := candidates[start:min(start+pageSize, len(candidates))]
		ids := make([]string, len(batch))
		for i, v := range batch {
			ids[i] = v.ID
		}

		params := url.Values{
			"key":  {c.apiKey},
			"part": {"contentDetails,statistics"},
			"id":   {strings.Join(ids, ",")},
		}
		var response videosResponse
		res := c.fetcher.GetJSON(ctx, c.endpoint("videos", params), &response)
		if !res.OK() {
			slog.Warn("youtube: video details unavailable, keeping candidates unfiltered",
				slog.Int("count", len(batch)))
			shorts = append(shorts, batch...)
			continue
		}

		type detail struct {
			seconds float64
			views   string
		}
		details := make(map[string]detail, len(response.Items))
		for _, item := range response.Items {
			details[item.ID] = detail{
				seconds: durationSeconds(item.ContentDetails.Duration),
				views:   item.Statistics.ViewCount,
			}
		}

		for _, v := range batch {
			d, ok := details[v.ID]
			if !ok || d.seconds <= 0 || d.seconds > maxShortSecs {
				continue
			}
			if n, err := strconv.ParseInt(d.views, 10, 64); err == nil {
				v.ViewCount = aggregator.Int64(n)
			}
			shorts = append(shorts, v)
		}
	}

	return shorts
}

func (c *Client) endpoint(resource string, params url.Values) string {
	return fmt.Sprintf("%s/youtube/v3/%s?%s", c.baseURL, resource, params.Encode())
}

func newShort(id, title, channel, publishedAt string, thumbs thumbnails) aggregator.VideoItem {
	return aggregator.VideoItem{
		ID:           id,
		Title:        aggregator.NormalizeTitle(title, "", "YouTube Short"),
		Source:       aggregator.SourceYouTube,
		PublishedAt:  publishedAt,
		ChannelName:  channel,
		ThumbnailURL: thumbs.best(),
		Permalink:    "https://www.youtube.com/shorts/" + id,
	}
}

// durationSeconds parses an ISO-8601 duration such as PT1M5S. Unparseable
// input yields 0.
func durationSeconds(iso string) float64 {
	m := durationPattern.FindStringSubmatch(iso)
	if m == nil {
		return 0
	}
	var total float64
	for i, unit := range []float64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseFloat(m[i+1], 64)
		if err != nil {
			return 0
		}
		total += n * unit
	}
	return total
}

func (c *Client) apiError(res fetch.Result) error {
	if res.Kind != fetch.KindStatus {
		return fmt.Errorf("YouTube API unreachable - please try again later: %w", res.Err)
	}
	return fmt.Errorf("%s: %w", handleAPIError(res.Status), res.Err)
}

func handleAPIError(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "YouTube API rejected the request - check the search parameters"
	case http.StatusUnauthorized:
		return "YouTube API authentication failed - check YOUTUBE_API_KEY"
	case http.StatusForbidden:
		return "YouTube API access denied - check the API key restrictions and daily quota"
	case http.StatusNotFound:
		return "YouTube API resource not found - check the channel or playlist id"
	case http.StatusTooManyRequests:
		return "YouTube API rate limit exceeded - please try again later"
	case http.StatusServiceUnavailable:
		return "YouTube API temporarily unavailable - please try again in a few minutes"
	case http.StatusInternalServerError, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "YouTube API server error - please try again later"
	default:
		return fmt.Sprintf("YouTube API error (status %d) - please try again", statusCode)
	}
}
