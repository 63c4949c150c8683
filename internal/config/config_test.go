package config

// Test requirements (this file serves as documentation):
// AC500: Unset variables fall back to the gallery defaults
// AC501: The legacy NEXT_PUBLIC_ names are accepted as aliases
// AC502: A .env file fills variables the environment leaves unset
// AC503: Settings the service cannot run with are rejected
// AC504: The API key is never printed in full

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gauthierbraillon/fanfeed/internal/ads"
	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
	"github.com/gauthierbraillon/fanfeed/internal/tiktok"
)

var managedVars = []string{
	"YOUTUBE_API_KEY", "YOUTUBE_CHANNEL_ID", "YOUTUBE_PLAYLIST_ID", "YOUTUBE_SEARCH_QUERY",
	"TIKTOK_BACKEND_API_URL", "NEXT_PUBLIC_TIKTOK_BACKEND_API_URL", "TIKTOK_KEYWORD",
	"INLINE_BANNER_AD_ID", "NEXT_PUBLIC_INLINE_BANNER_AD_ID",
	"FANFEED_ADDR", "FANFEED_PUBLIC_DIR", "FANFEED_SNAPSHOT", "REDIS_URL",
	"FANFEED_CACHE_TTL", "FANFEED_REQUEST_TIMEOUT", "FANFEED_RATE_LIMIT", "FANFEED_RATE_BURST",
	"FANFEED_LOG_LEVEL", "FANFEED_YOUTUBE_LIMIT", "FANFEED_TIKTOK_LIMIT", "FANFEED_YOUTUBE_API_URL",
}

// clearEnv unsets every variable Load reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range managedVars {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func noDotEnv(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestAC500_Load_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(noDotEnv(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.YouTubeQuery != DefaultSearchQuery {
		t.Errorf("YouTubeQuery = %q, want %q", cfg.YouTubeQuery, DefaultSearchQuery)
	}
	if cfg.TikTokBackendURL != tiktok.DefaultBackendURL {
		t.Errorf("TikTokBackendURL = %q", cfg.TikTokBackendURL)
	}
	if len(cfg.TikTokKeywords) != 1 || cfg.TikTokKeywords[0] != DefaultTikTokKeyword {
		t.Errorf("TikTokKeywords = %v", cfg.TikTokKeywords)
	}
	if cfg.CacheTTL != aggregator.DefaultTTL {
		t.Errorf("CacheTTL = %s, want %s", cfg.CacheTTL, aggregator.DefaultTTL)
	}
	if cfg.Addr != ":8080" || cfg.PublicDir != "public" || cfg.SnapshotSource != DefaultSnapshotPath {
		t.Errorf("unexpected server defaults: %+v", cfg)
	}
	if cfg.YouTubeAPIKey != "" || cfg.RedisURL != "" {
		t.Error("secrets and optional services should default to empty")
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestAC501_Load_AcceptsLegacyAliases(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEXT_PUBLIC_TIKTOK_BACKEND_API_URL", "http://backend:5001/api/videos")
	t.Setenv("NEXT_PUBLIC_INLINE_BANNER_AD_ID", "103")

	cfg, err := Load(noDotEnv(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.TikTokBackendURL != "http://backend:5001/api/videos" {
		t.Errorf("TikTokBackendURL = %q", cfg.TikTokBackendURL)
	}
	if cfg.BannerAdID != 103 {
		t.Errorf("BannerAdID = %d, want 103", cfg.BannerAdID)
	}

	t.Setenv("INLINE_BANNER_AD_ID", "101")
	cfg, _ = Load(noDotEnv(t))
	if cfg.BannerAdID != 101 {
		t.Errorf("primary name should win over the alias, got %d", cfg.BannerAdID)
	}
}

func TestAC502_Load_ReadsDotEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("YOUTUBE_SEARCH_QUERY", "from environment")

	path := filepath.Join(t.TempDir(), ".env")
	content := strings.Join([]string{
		"YOUTUBE_API_KEY=from-dotenv",
		"YOUTUBE_SEARCH_QUERY=from dotenv",
		"FANFEED_CACHE_TTL=5m",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.YouTubeAPIKey != "from-dotenv" {
		t.Errorf("YouTubeAPIKey = %q, want value from .env", cfg.YouTubeAPIKey)
	}
	if cfg.YouTubeQuery != "from environment" {
		t.Errorf("environment should win over .env, got %q", cfg.YouTubeQuery)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %s, want 5m", cfg.CacheTTL)
	}
}

func TestAC503_Validate_RejectsUnusableSettings(t *testing.T) {
	valid := Config{CacheTTL: time.Minute, RequestTimeout: time.Second, LogLevel: "info"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero ttl", func(c *Config) { c.CacheTTL = 0 }, "FANFEED_CACHE_TTL"},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, "FANFEED_RATE_LIMIT"},
		{"zero timeout", func(c *Config) { c.RequestTimeout = 0 }, "FANFEED_REQUEST_TIMEOUT"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "FANFEED_LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.want)
			}
		})
	}
}

func TestAC504_Redacted_MasksAPIKey(t *testing.T) {
	cfg := Config{YouTubeAPIKey: "AIzaSecretValue1234"}

	for _, kv := range cfg.Redacted() {
		if strings.Contains(kv[1], "AIzaSecret") {
			t.Fatalf("%s leaks the API key: %q", kv[0], kv[1])
		}
		if kv[0] == "YOUTUBE_API_KEY" && kv[1] != "****1234" {
			t.Errorf("masked key = %q, want ****1234", kv[1])
		}
	}

	if got := (Config{}).Redacted()[0][1]; got != "(unset)" {
		t.Errorf("unset key shown as %q", got)
	}
}

func TestFeaturedAd_UsesOverrideThenDefault(t *testing.T) {
	catalog := ads.DefaultCatalog()

	ad, ok := Config{BannerAdID: 102}.FeaturedAd(catalog)
	if !ok || ad.ID != 102 {
		t.Errorf("override: got %d, %v", ad.ID, ok)
	}
	ad, ok = Config{}.FeaturedAd(catalog)
	if !ok || ad.ID != ads.FeaturedAdID {
		t.Errorf("default: got %d, %v", ad.ID, ok)
	}
}
