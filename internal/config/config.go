// Package config reads fanfeed settings from the environment.
//
// This package enables fanfeed to:
// - Pick up a local .env file during development
// - Keep the environment names the gallery has always used
// - Expose one typed Config to the server and the CLI
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/anatolykoptev/go-kit/env"
	"github.com/joho/godotenv"

	"github.com/gauthierbraillon/fanfeed/internal/ads"
	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
	"github.com/gauthierbraillon/fanfeed/internal/tiktok"
)

const (
	// DefaultSearchQuery is searched on YouTube when YOUTUBE_SEARCH_QUERY is unset.
	DefaultSearchQuery = "KPOP DEMON HUNTERS"
	// DefaultTikTokKeyword is sent to the backend when TIKTOK_KEYWORD is unset.
	DefaultTikTokKeyword = "KPOP DEMON HUNTERS"
	// DefaultSnapshotPath is where the snapshot command writes and the
	// static tier reads.
	DefaultSnapshotPath = "public/tiktok_live.json"
	// DefaultYouTubeBaseURL is the Data API host.
	DefaultYouTubeBaseURL = "https://www.googleapis.com"
)

// Config holds every setting the service reads at startup.
type Config struct {
	YouTubeAPIKey     string
	YouTubeChannelID  string
	YouTubePlaylistID string
	YouTubeQuery      string
	YouTubeLimit      int
	YouTubeBaseURL    string

	TikTokBackendURL string
	TikTokKeywords   []string
	TikTokLimit      int
	SnapshotSource   string

	BannerAdID int

	Addr      string
	PublicDir string
	RedisURL  string
	CacheTTL  time.Duration

	RequestTimeout time.Duration
	RateLimit      float64
	RateBurst      int

	LogLevel string
}

// Load reads the .env file at each path (missing files are skipped) and then
// the process environment. Variables already set win over .env entries.
func Load(paths ...string) (Config, error) {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load %s: %w", p, err)
		}
	}

	cfg := Config{
		YouTubeAPIKey:     env.Str("YOUTUBE_API_KEY", ""),
		YouTubeChannelID:  env.Str("YOUTUBE_CHANNEL_ID", ""),
		YouTubePlaylistID: env.Str("YOUTUBE_PLAYLIST_ID", ""),
		YouTubeQuery:      env.Str("YOUTUBE_SEARCH_QUERY", DefaultSearchQuery),
		YouTubeLimit:      env.Int("FANFEED_YOUTUBE_LIMIT", 50),
		YouTubeBaseURL:    env.Str("FANFEED_YOUTUBE_API_URL", DefaultYouTubeBaseURL),

		TikTokBackendURL: env.Str("TIKTOK_BACKEND_API_URL",
			env.Str("NEXT_PUBLIC_TIKTOK_BACKEND_API_URL", tiktok.DefaultBackendURL)),
		TikTokKeywords: env.List("TIKTOK_KEYWORD", DefaultTikTokKeyword),
		TikTokLimit:    env.Int("FANFEED_TIKTOK_LIMIT", tiktok.DefaultLimit),
		SnapshotSource: env.Str("FANFEED_SNAPSHOT", DefaultSnapshotPath),

		BannerAdID: env.Int("INLINE_BANNER_AD_ID",
			env.Int("NEXT_PUBLIC_INLINE_BANNER_AD_ID", 0)),

		Addr:      env.Str("FANFEED_ADDR", ":8080"),
		PublicDir: env.Str("FANFEED_PUBLIC_DIR", "public"),
		RedisURL:  env.Str("REDIS_URL", ""),
		CacheTTL:  env.Duration("FANFEED_CACHE_TTL", aggregator.DefaultTTL),

		RequestTimeout: env.Duration("FANFEED_REQUEST_TIMEOUT", 15*time.Second),
		RateLimit:      env.Float("FANFEED_RATE_LIMIT", 0),
		RateBurst:      env.Int("FANFEED_RATE_BURST", 5),

		LogLevel: strings.ToLower(env.Str("FANFEED_LOG_LEVEL", "info")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if c.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("FANFEED_CACHE_TTL must be positive, got %s", c.CacheTTL))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("FANFEED_RATE_LIMIT must not be negative, got %g", c.RateLimit))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("FANFEED_REQUEST_TIMEOUT must be positive, got %s", c.RequestTimeout))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("FANFEED_LOG_LEVEL must be debug, info, warn or error, got %q", c.LogLevel))
	}
	return errors.Join(errs...)
}

// BannerOverride returns the configured featured ad id, or 0 for the default.
func (c Config) BannerOverride() int {
	if c.BannerAdID > 0 {
		return c.BannerAdID
	}
	return 0
}

// FeaturedAd resolves the inline banner ad against catalog.
func (c Config) FeaturedAd(catalog []ads.AdItem) (ads.AdItem, bool) {
	return ads.ResolveFeatured(catalog, c.BannerOverride())
}

// Redacted returns printable key/value pairs with the API key masked.
func (c Config) Redacted() [][2]string {
	key := "(unset)"
	if c.YouTubeAPIKey != "" {
		key = "****"
		if len(c.YouTubeAPIKey) > 4 {
			key += c.YouTubeAPIKey[len(c.YouTubeAPIKey)-4:]
		}
	}
	return [][2]string{
		{"YOUTUBE_API_KEY", key},
		{"YOUTUBE_CHANNEL_ID", c.YouTubeChannelID},
		{"YOUTUBE_PLAYLIST_ID", c.YouTubePlaylistID},
		{"YOUTUBE_SEARCH_QUERY", c.YouTubeQuery},
		{"TIKTOK_BACKEND_API_URL", c.TikTokBackendURL},
		{"TIKTOK_KEYWORD", strings.Join(c.TikTokKeywords, ",")},
		{"INLINE_BANNER_AD_ID", fmt.Sprint(c.BannerAdID)},
		{"FANFEED_SNAPSHOT", c.SnapshotSource},
		{"FANFEED_ADDR", c.Addr},
		{"FANFEED_PUBLIC_DIR", c.PublicDir},
		{"REDIS_URL", c.RedisURL},
		{"FANFEED_CACHE_TTL", c.CacheTTL.String()},
		{"FANFEED_REQUEST_TIMEOUT", c.RequestTimeout.String()},
		{"FANFEED_RATE_LIMIT", fmt.Sprint(c.RateLimit)},
		{"FANFEED_LOG_LEVEL", c.LogLevel},
	}
}
