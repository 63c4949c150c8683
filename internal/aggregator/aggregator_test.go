// Package aggregator tests document the expected behavior of the combined feed.
//
// Test requirements (this file serves as documentation):
// - Interleave alternates sources and never emits a source:id twice
// - A fresh cache entry is served without touching any provider
// - An expired or forced read re-runs both provider chains
// - All providers failing degrades to the full mock catalog
package aggregator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func yt(id string) VideoItem { return VideoItem{ID: id, Title: id, Source: SourceYouTube} }
func tt(id string) VideoItem { return VideoItem{ID: id, Title: id, Source: SourceTikTok} }

func ids(videos []VideoItem) []string {
	out := make([]string, len(videos))
	for i, v := range videos {
		out[i] = v.Key()
	}
	return out
}

func identity(int, func(i, j int)) {}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func countingProvider(name string, calls *atomic.Int32, videos []VideoItem, err error) Provider {
	return ProviderFunc{
		Label: name,
		Fn: func(context.Context) ([]VideoItem, error) {
			calls.Add(1)
			return videos, err
		},
	}
}

func TestInterleave_AlternatesSources(t *testing.T) {
	got := Interleave(
		[]VideoItem{yt("a"), yt("b"), yt("c")},
		[]VideoItem{tt("x")},
	)
	assert.Equal(t, []string{"youtube:a", "tiktok:x", "youtube:b", "youtube:c"}, ids(got))
}

func TestInterleave_DeduplicatesByCompositeKey(t *testing.T) {
	got := Interleave(
		[]VideoItem{yt("1"), yt("1"), yt("2")},
		[]VideoItem{tt("1"), tt("2"), tt("1")},
	)
	assert.Equal(t, []string{"youtube:1", "tiktok:1", "tiktok:2", "youtube:2"}, ids(got))
}

func TestInterleave_Empty(t *testing.T) {
	got := Interleave(nil, nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestInterleave_PreservesRelativeOrder(t *testing.T) {
	a := []VideoItem{yt("3"), yt("1"), yt("2")}
	b := []VideoItem{tt("9"), tt("8")}
	got := Interleave(a, b)

	var gotA, gotB []string
	for _, v := range got {
		if v.Source == SourceYouTube {
			gotA = append(gotA, v.ID)
		} else {
			gotB = append(gotB, v.ID)
		}
	}
	assert.Equal(t, []string{"3", "1", "2"}, gotA)
	assert.Equal(t, []string{"9", "8"}, gotB)
}

func TestShuffled_ReturnsCopy(t *testing.T) {
	in := []VideoItem{yt("a"), yt("b")}
	reverse := func(n int, swap func(i, j int)) { swap(0, n-1) }
	out := Shuffled(in, reverse)

	assert.Equal(t, []string{"youtube:b", "youtube:a"}, ids(out))
	assert.Equal(t, "a", in[0].ID)
}

func TestMockCatalog(t *testing.T) {
	catalog := MockCatalog()
	require.Len(t, catalog, MockCatalogSize)

	seen := make(map[string]bool)
	for _, v := range catalog {
		assert.NotEmpty(t, v.ID)
		assert.False(t, seen[v.Key()], "duplicate %s", v.Key())
		seen[v.Key()] = true
	}
	assert.Equal(t, "dhhq-001-0", catalog[0].ID)
	assert.Equal(t, "tt-001-1", catalog[1].ID)
	assert.Equal(t, int64(1842032+5*173), *catalog[5].ViewCount)

	assert.Len(t, MockVideos(SourceYouTube), 84)
	assert.Len(t, MockVideos(SourceTikTok), 56)

	catalog[0].ID = "mutated"
	assert.Equal(t, "dhhq-001-0", MockCatalog()[0].ID)
}

func TestChain_FirstNonEmptyWins(t *testing.T) {
	var failed, empty, served, skipped atomic.Int32
	chain := Chain{
		countingProvider("failing", &failed, nil, errors.New("boom")),
		countingProvider("empty", &empty, nil, nil),
		countingProvider("live", &served, []VideoItem{yt("1")}, nil),
		countingProvider("never", &skipped, []VideoItem{yt("2")}, nil),
	}

	got := chain.Fetch(context.Background())

	assert.Equal(t, []string{"youtube:1"}, ids(got))
	assert.EqualValues(t, 1, failed.Load())
	assert.EqualValues(t, 1, empty.Load())
	assert.EqualValues(t, 1, served.Load())
	assert.EqualValues(t, 0, skipped.Load())
}

func TestAC001_CacheHitWithinTTLSkipsProviders(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	var ytCalls, ttCalls atomic.Int32
	svc := NewService(
		Chain{countingProvider("yt", &ytCalls, []VideoItem{yt("a")}, nil)},
		Chain{countingProvider("tt", &ttCalls, []VideoItem{tt("b")}, nil)},
		WithClock(clock.Now),
	)

	first := svc.FetchCombined(context.Background(), false)
	require.Len(t, first, 2)

	clock.Advance(time.Minute)
	second := svc.FetchCombined(context.Background(), false)

	require.Len(t, second, 2)
	assert.Same(t, &first[0], &second[0])
	assert.EqualValues(t, 1, ytCalls.Load())
	assert.EqualValues(t, 1, ttCalls.Load())
	assert.EqualValues(t, 1, svc.Stats().Hits())
	assert.EqualValues(t, 1, svc.Stats().Misses())
}

func TestAC002_ExpiredCacheRefetches(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	var ytCalls, ttCalls atomic.Int32
	svc := NewService(
		Chain{countingProvider("yt", &ytCalls, []VideoItem{yt("a")}, nil)},
		Chain{countingProvider("tt", &ttCalls, []VideoItem{tt("b")}, nil)},
		WithClock(clock.Now),
	)

	svc.FetchCombined(context.Background(), false)
	clock.Advance(DefaultTTL)
	svc.FetchCombined(context.Background(), false)

	assert.EqualValues(t, 2, ytCalls.Load())
	assert.EqualValues(t, 2, ttCalls.Load())
}

func TestAC003_ForceRefreshBypassesCache(t *testing.T) {
	var ytCalls, ttCalls atomic.Int32
	svc := NewService(
		Chain{countingProvider("yt", &ytCalls, []VideoItem{yt("a")}, nil)},
		Chain{countingProvider("tt", &ttCalls, nil, nil)},
	)

	svc.FetchCombined(context.Background(), false)
	svc.FetchCombined(context.Background(), true)

	assert.EqualValues(t, 2, ytCalls.Load())
}

func TestAC004_AllProvidersFailingServesMockCatalog(t *testing.T) {
	var ytCalls, ttCalls atomic.Int32
	svc := NewService(
		Chain{countingProvider("yt", &ytCalls, nil, errors.New("quota"))},
		Chain{countingProvider("tt", &ttCalls, nil, errors.New("refused"))},
		WithShuffler(identity),
	)

	got := svc.FetchCombined(context.Background(), false)

	assert.Len(t, got, MockCatalogSize)
	assert.Equal(t, ids(MockCatalog()), ids(got))
}

func TestAC005_FallbackTierServesWhenLiveEmpty(t *testing.T) {
	var live, static atomic.Int32
	svc := NewService(
		Chain{MockProvider(SourceYouTube)},
		Chain{
			countingProvider("live", &live, nil, errors.New("502")),
			countingProvider("static", &static, []VideoItem{tt("snap")}, nil),
			MockProvider(SourceTikTok),
		},
	)

	got := svc.FetchCombined(context.Background(), false)

	require.GreaterOrEqual(t, len(got), 2)
	assert.Equal(t, "tiktok:snap", got[1].Key())
	assert.EqualValues(t, 1, static.Load())
}

func TestMemoryCache_ExpiryIsAMiss(t *testing.T) {
	cache := NewMemoryCache()
	now := time.Now()
	cache.Put(context.Background(), "k", []VideoItem{yt("a")}, now, time.Second)

	_, ok := cache.Get(context.Background(), "k", now.Add(999*time.Millisecond))
	assert.True(t, ok)

	_, ok = cache.Get(context.Background(), "k", now.Add(time.Second))
	assert.False(t, ok)
}
