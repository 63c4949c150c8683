package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"

	"github.com/gauthierbraillon/fanfeed/internal/ads"
	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
	"github.com/gauthierbraillon/fanfeed/internal/config"
	"github.com/gauthierbraillon/fanfeed/internal/fetch"
	"github.com/gauthierbraillon/fanfeed/internal/server"
	"github.com/gauthierbraillon/fanfeed/internal/tiktok"
	"github.com/gauthierbraillon/fanfeed/internal/youtube"
)

// app is the wired service graph shared by the commands.
type app struct {
	cfg            config.Config
	fetcher        *fetch.Client
	youtube        *youtube.Client
	youtubeRequest youtube.Request
	tiktok         *tiktok.Client
	tiktokQuery    tiktok.Query
	service        *aggregator.Service
	catalog        []ads.AdItem
	rdb            *redis.Client
}

// newApp builds the clients and provider chains:
// YouTube: live API, then the bundled subset.
// TikTok: backend, then the static snapshot, then the bundled subset.
func newApp(ctx context.Context, cfg config.Config) *app {
	fetcher := fetch.New(
		fetch.WithTimeout(cfg.RequestTimeout),
		fetch.WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	)

	a := &app{
		cfg:     cfg,
		fetcher: fetcher,
		youtube: youtube.NewClient(cfg.YouTubeAPIKey,
			youtube.WithFetcher(fetcher),
			youtube.WithBaseURL(cfg.YouTubeBaseURL),
		),
		youtubeRequest: youtube.Request{
			Query:      cfg.YouTubeQuery,
			ChannelID:  cfg.YouTubeChannelID,
			PlaylistID: cfg.YouTubePlaylistID,
			Limit:      cfg.YouTubeLimit,
		},
		tiktok: tiktok.NewClient(
			tiktok.WithFetcher(fetcher),
			tiktok.WithBaseURL(cfg.TikTokBackendURL),
		),
		tiktokQuery: tiktok.Query{Keywords: cfg.TikTokKeywords, Limit: cfg.TikTokLimit},
		catalog:     ads.DefaultCatalog(),
		rdb:         aggregator.ConnectRedis(ctx, cfg.RedisURL),
	}

	youtubeChain := aggregator.Chain{
		a.youtube.Provider(a.youtubeRequest),
		aggregator.MockProvider(aggregator.SourceYouTube),
	}
	tiktokChain := aggregator.Chain{
		a.tiktok.Provider(a.tiktokQuery),
		tiktok.SnapshotProvider(fetcher, cfg.SnapshotSource),
		aggregator.MockProvider(aggregator.SourceTikTok),
	}

	a.service = aggregator.NewService(youtubeChain, tiktokChain,
		aggregator.WithCache(aggregator.NewTieredCache(a.rdb)),
		aggregator.WithTTL(cfg.CacheTTL),
	)
	return a
}

// Server builds the HTTP server over the app.
func (a *app) Server() *server.Server {
	return server.New(serverOptions(a))
}

// queue returns a fresh ad queue with the configured featured ad pinned.
func (a *app) queue() *ads.Queue {
	var opts []ads.QueueOption
	if featured, ok := a.cfg.FeaturedAd(a.catalog); ok {
		opts = append(opts, ads.WithFeatured(featured))
	}
	return ads.NewQueue(a.catalog, opts...)
}

// Close releases the redis connection, if any.
func (a *app) Close() {
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}

// writeFileAtomic writes through a temp file in the target directory and
// renames it into place, so readers never see a partial snapshot.
func writeFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
