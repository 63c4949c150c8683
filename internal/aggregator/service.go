package aggregator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultTTL is how long a combined list stays cached.
const DefaultTTL = 2 * time.Minute

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithCache sets the cache the combined list is stored in.
func WithCache(c Cache) ServiceOption {
	return func(s *Service) {
		s.cache = c
	}
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock sets the time source used for cache expiry.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithShuffler sets the permutation used for the last-resort catalog.
func WithShuffler(shuffle Shuffler) ServiceOption {
	return func(s *Service) {
		s.shuffle = shuffle
	}
}

// Service merges the YouTube and TikTok provider chains into one list.
type Service struct {
	youtube Chain
	tiktok  Chain
	cache   Cache
	ttl     time.Duration
	now     func() time.Time
	shuffle Shuffler
	stats   Stats
}

// NewService creates a Service over the two source chains.
func NewService(youtube, tiktok Chain, opts ...ServiceOption) *Service {
	s := &Service{
		youtube: youtube,
		tiktok:  tiktok,
		cache:   NewMemoryCache(),
		ttl:     DefaultTTL,
		now:     time.Now,
		shuffle: RandomShuffle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FetchCombined returns the interleaved YouTube and TikTok list. A cached list
// is returned untouched while it is fresh unless forceRefresh is set. It never
// fails: every error degrades to a smaller list, and an empty merge degrades to
// the shuffled mock catalog.
func (s *Service) FetchCombined(ctx context.Context, forceRefresh bool) []VideoItem {
	if !forceRefresh {
		if videos, ok := s.cache.Get(ctx, CombinedCacheKey, s.now()); ok {
			s.stats.hits.Add(1)
			return videos
		}
	}
	s.stats.misses.Add(1)

	var youtubeVideos, tiktokVideos []VideoItem
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		youtubeVideos = s.youtube.Fetch(gctx)
		return nil
	})
	g.Go(func() error {
		tiktokVideos = s.tiktok.Fetch(gctx)
		return nil
	})
	_ = g.Wait()

	combined := Interleave(youtubeVideos, tiktokVideos)
	if len(combined) == 0 {
		slog.Warn("aggregator: no videos from any source, serving mock catalog")
		combined = Shuffled(MockCatalog(), s.shuffle)
	}

	s.cache.Put(ctx, CombinedCacheKey, combined, s.now(), s.ttl)
	slog.Info("aggregator: combined videos",
		slog.Int("youtube", len(youtubeVideos)),
		slog.Int("tiktok", len(tiktokVideos)),
		slog.Int("total", len(combined)))
	return combined
}

// Stats exposes cache hit and miss counters.
func (s *Service) Stats() *Stats {
	return &s.stats
}
