// Package gallery holds the viewer-side state of the video grid: which
// source tab is active, how much of the list is shown, and the ad gate in
// front of playback.
package gallery

import (
	"context"
	"fmt"
	"sync"

	"github.com/gauthierbraillon/fanfeed/internal/ads"
	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
)

// PageStep is how many more videos LoadMore reveals in compact layout.
const PageStep = 20

// Filter selects the source tab.
type Filter string

const (
	FilterAll     Filter = "all"
	FilterYouTube Filter = "youtube"
	FilterTikTok  Filter = "tiktok"
)

// ParseFilter maps a tab name to a Filter. The empty string means all.
func ParseFilter(s string) (Filter, error) {
	switch Filter(s) {
	case "", FilterAll:
		return FilterAll, nil
	case FilterYouTube, FilterTikTok:
		return Filter(s), nil
	default:
		return "", fmt.Errorf("unknown filter %q (want all, youtube or tiktok)", s)
	}
}

// Fetcher supplies the combined list.
type Fetcher interface {
	FetchCombined(ctx context.Context, forceRefresh bool) []aggregator.VideoItem
}

// Controller is the grid state for one viewer.
type Controller struct {
	mu      sync.Mutex
	service Fetcher
	seq     *ads.Sequencer

	filter  Filter
	videos  []aggregator.VideoItem
	youtube []aggregator.VideoItem
	tiktok  []aggregator.VideoItem
	limit   int
	loading bool
	closed  bool
}

// NewController starts from the bundled catalog so the grid is never empty
// before the first refresh completes.
func NewController(service Fetcher, seq *ads.Sequencer) *Controller {
	youtube := aggregator.MockVideos(aggregator.SourceYouTube)
	tiktok := aggregator.MockVideos(aggregator.SourceTikTok)
	return &Controller{
		service: service,
		seq:     seq,
		filter:  FilterAll,
		videos:  aggregator.Interleave(youtube, tiktok),
		youtube: youtube,
		tiktok:  tiktok,
		limit:   PageStep,
	}
}

// Refresh loads the combined list and commits it. It reports false when the
// controller was closed while the call was in flight; the result is then
// discarded. Concurrent refreshes commit in completion order.
func (c *Controller) Refresh(ctx context.Context, force bool) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.loading = true
	c.mu.Unlock()

	latest := c.service.FetchCombined(ctx, force)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.loading = false

	if len(latest) == 0 {
		c.youtube = aggregator.MockVideos(aggregator.SourceYouTube)
		c.tiktok = aggregator.MockVideos(aggregator.SourceTikTok)
		c.videos = aggregator.Interleave(c.youtube, c.tiktok)
		return true
	}

	c.youtube = aggregator.FilterBySource(latest, aggregator.SourceYouTube)
	if len(c.youtube) == 0 {
		c.youtube = aggregator.MockVideos(aggregator.SourceYouTube)
	}
	c.tiktok = aggregator.FilterBySource(latest, aggregator.SourceTikTok)
	if len(c.tiktok) == 0 {
		c.tiktok = aggregator.MockVideos(aggregator.SourceTikTok)
	}
	c.videos = latest
	return true
}

// Close marks the controller as gone; in-flight refreshes are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Loading reports whether a refresh is in flight.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// SetFilter switches the source tab.
func (c *Controller) SetFilter(f Filter) {
	c.mu.Lock()
	c.filter = f
	c.mu.Unlock()
}

// Filter returns the active tab.
func (c *Controller) Filter() Filter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// Filtered returns the list for the active tab.
func (c *Controller) Filtered() []aggregator.VideoItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filteredLocked()
}

// LoadMore reveals another PageStep videos in compact layout and returns the
// new limit.
func (c *Controller) LoadMore() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit += PageStep
	return c.limit
}

// Displayed returns what the grid shows: the first limit videos in compact
// layout, all of them otherwise.
func (c *Controller) Displayed(compact bool) []aggregator.VideoItem {
	c.mu.Lock()
	defer c.mu.Unlock()

	videos := c.filteredLocked()
	if compact && len(videos) > c.limit {
		return videos[:c.limit]
	}
	return videos
}

// HasMore reports whether compact layout hides part of the list.
func (c *Controller) HasMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.filteredLocked()) > c.limit
}

func (c *Controller) filteredLocked() []aggregator.VideoItem {
	switch c.filter {
	case FilterYouTube:
		return c.youtube
	case FilterTikTok:
		return c.tiktok
	default:
		return c.videos
	}
}

// Select gates video behind the next ad.
func (c *Controller) Select(video aggregator.VideoItem) (ads.AdItem, bool) {
	return c.seq.Select(video)
}

// DismissAd closes the ad; the held video follows after the reveal delay.
func (c *Controller) DismissAd() { c.seq.DismissAd() }

// CloseVideo closes the player.
func (c *Controller) CloseVideo() { c.seq.CloseVideo() }

// ActiveAd returns the ad on screen.
func (c *Controller) ActiveAd() (ads.AdItem, bool) { return c.seq.ActiveAd() }

// Banner returns the inline banner ad.
func (c *Controller) Banner() (ads.AdItem, bool) { return c.seq.Banner() }

// State returns the interstitial phase.
func (c *Controller) State() ads.State { return c.seq.State() }

// Pending returns the selected video.
func (c *Controller) Pending() (aggregator.VideoItem, bool) { return c.seq.Pending() }
