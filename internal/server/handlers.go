package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/gauthierbraillon/fanfeed/internal/ads"
	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
	"github.com/gauthierbraillon/fanfeed/internal/tiktok"
	"github.com/gauthierbraillon/fanfeed/internal/youtube"
)

const thumbnailCacheControl = "public, max-age=86400, s-maxage=86400, stale-while-revalidate=43200"

// handleYouTube serves GET /api/youtube/videos?limit=&q=&channelId=&playlistId=.
// Absent parameters fall back to the configured defaults.
func (s *Server) handleYouTube(c echo.Context) error {
	if s.opts.YouTube == nil {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "Missing YOUTUBE_API_KEY"})
	}

	params := c.QueryParams()
	req := youtube.Request{
		Query:      paramOr(params, "q", s.opts.YouTubeDefaults.Query),
		ChannelID:  paramOr(params, "channelId", s.opts.YouTubeDefaults.ChannelID),
		PlaylistID: paramOr(params, "playlistId", s.opts.YouTubeDefaults.PlaylistID),
		Limit:      parseLimit(params.Get("limit"), youtube.DefaultLimit, youtube.MaxLimit),
	}
	if req.ChannelID != "" && youtube.SanitizeChannelID(req.ChannelID) == "" {
		slog.Warn("server: ignoring invalid YouTube channel id", slog.String("channel_id", req.ChannelID))
	}

	videos, err := s.opts.YouTube.Videos(c.Request().Context(), req)
	switch {
	case errors.Is(err, youtube.ErrMissingAPIKey):
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "Missing YOUTUBE_API_KEY"})
	case errors.Is(err, youtube.ErrNoSource):
		return c.JSON(http.StatusBadRequest, errorBody{Error: "Missing search query or playlistId"})
	case err != nil:
		return c.JSON(http.StatusInternalServerError, errorBody{
			Error:   "Failed to fetch YouTube videos.",
			Details: err.Error(),
		})
	}
	return c.JSON(http.StatusOK, videosBody{Videos: nonNil(videos)})
}

// handleTikTok serves GET /api/tiktok?limit=&q=. A backend rejection is passed
// through with its status; an unreachable backend is a 502.
func (s *Server) handleTikTok(c echo.Context) error {
	if s.opts.TikTok == nil {
		return c.JSON(http.StatusInternalServerError, errorBody{Error: "TikTok backend URL is not configured."})
	}

	q := tiktok.Query{
		Keywords: strings.Split(c.QueryParam("q"), ","),
		Limit:    parseLimit(c.QueryParam("limit"), tiktok.DefaultLimit, tiktok.MaxLimit),
	}

	videos, err := s.opts.TikTok.Videos(c.Request().Context(), q)
	if err != nil {
		var upstream *tiktok.UpstreamError
		if errors.As(err, &upstream) {
			return c.JSON(upstream.Status, errorBody{Error: upstream.Message})
		}
		return c.JSON(http.StatusBadGateway, errorBody{Error: "TikTok backend unavailable", Details: err.Error()})
	}
	return c.JSON(http.StatusOK, videosBody{Videos: nonNil(videos)})
}

// handleThumbnail serves GET /api/tiktok-thumbnail?src= or ?permalink=. A
// permalink is resolved through oEmbed first.
func (s *Server) handleThumbnail(c echo.Context) error {
	if s.opts.TikTok == nil {
		return c.JSON(http.StatusServiceUnavailable, errorBody{Error: "TikTok client is not configured."})
	}
	ctx := c.Request().Context()

	var src *url.URL
	if raw := c.QueryParam("src"); raw != "" {
		u, err := tiktok.ValidateThumbnailSource(raw)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "Invalid or disallowed TikTok thumbnail URL"})
		}
		src = u
	} else {
		permalink, err := tiktok.ValidatePermalink(c.QueryParam("permalink"))
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "Invalid or disallowed TikTok thumbnail URL"})
		}
		src, err = s.opts.TikTok.ResolveThumbnail(ctx, permalink)
		if errors.Is(err, tiktok.ErrDisallowedSource) {
			return c.JSON(http.StatusBadRequest, errorBody{Error: "Invalid or disallowed TikTok thumbnail URL"})
		}
		if err != nil {
			slog.Warn("tiktok-thumbnail: oembed lookup failed",
				slog.String("permalink", permalink.String()),
				slog.Any("error", err))
			return c.JSON(http.StatusBadGateway, errorBody{Error: "Unable to resolve TikTok thumbnail"})
		}
	}

	resp, err := s.opts.TikTok.FetchThumbnail(ctx, src)
	if err != nil {
		slog.Error("tiktok-thumbnail: fetch error", slog.String("url", src.String()), slog.Any("error", err))
		return c.JSON(http.StatusBadGateway, errorBody{Error: "Unable to reach TikTok CDN"})
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("tiktok-thumbnail: upstream failure",
			slog.String("url", src.String()),
			slog.Int("status", resp.StatusCode))
		return c.JSON(resp.StatusCode, errorBody{Error: "TikTok CDN rejected request"})
	}

	contentType := resp.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = "image/jpeg"
	}
	h := c.Response().Header()
	h.Set(echo.HeaderCacheControl, thumbnailCacheControl)
	if etag := resp.Header.Get("ETag"); etag != "" {
		h.Set("ETag", etag)
	}
	s.proxied.Add(1)
	return c.Stream(http.StatusOK, contentType, resp.Body)
}

// handleVideos serves GET /api/videos?refresh=&source=, the combined list.
func (s *Server) handleVideos(c echo.Context) error {
	force, _ := strconv.ParseBool(c.QueryParam("refresh"))

	var src aggregator.Source
	switch v := c.QueryParam("source"); v {
	case "", "all":
	case string(aggregator.SourceYouTube), string(aggregator.SourceTikTok):
		src = aggregator.Source(v)
	default:
		return c.JSON(http.StatusBadRequest, errorBody{Error: fmt.Sprintf("unknown source %q", v)})
	}

	videos := s.opts.Service.FetchCombined(c.Request().Context(), force)
	if src != "" {
		videos = aggregator.FilterBySource(videos, src)
	}
	return c.JSON(http.StatusOK, videosBody{Videos: nonNil(videos)})
}

type adsBody struct {
	Ads    []ads.AdItem `json:"ads"`
	Banner *ads.AdItem  `json:"banner"`
}

// handleAds serves GET /api/ads with the catalog and the featured banner.
func (s *Server) handleAds(c echo.Context) error {
	body := adsBody{Ads: nonNil(s.opts.Ads)}
	if featured, ok := ads.ResolveFeatured(s.opts.Ads, s.opts.BannerAdID); ok {
		body.Banner = &featured
	}
	return c.JSON(http.StatusOK, body)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(c echo.Context) error {
	stats := s.opts.Service.Stats()
	var b strings.Builder
	writeMetric(&b, "fanfeed_cache_hits_total", "counter", "Combined list requests served from cache.", stats.Hits())
	writeMetric(&b, "fanfeed_cache_misses_total", "counter", "Combined list requests that queried the sources.", stats.Misses())
	writeMetric(&b, "fanfeed_http_requests_total", "counter", "HTTP requests received.", s.requests.Load())
	writeMetric(&b, "fanfeed_http_server_errors_total", "counter", "HTTP responses with a 5xx status.", s.failures.Load())
	writeMetric(&b, "fanfeed_thumbnails_proxied_total", "counter", "TikTok thumbnails streamed.", s.proxied.Load())
	writeMetric(&b, "fanfeed_uptime_seconds", "gauge", "Seconds since the server started.", int64(s.opts.Now().Sub(s.started).Seconds()))
	return c.String(http.StatusOK, b.String())
}

func writeMetric(b *strings.Builder, name, kind, help string, value int64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", name, help, name, kind, name, value)
}

// paramOr returns the query parameter when present, even if empty, and def
// otherwise.
func paramOr(params url.Values, key, def string) string {
	if params.Has(key) {
		return params.Get(key)
	}
	return def
}

// parseLimit reads a limit parameter, clamped to [1, upper]. Missing or
// unparseable values mean def.
func parseLimit(raw string, def, upper int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return def
	}
	return min(max(n, 1), upper)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
