// Package aggregator combines videos from YouTube and TikTok into a unified view.
//
// This package enables fanfeed to:
// - Try each source through an ordered list of providers (live, snapshot, mock)
// - Interleave both sources into one list without duplicate source:id keys
// - Cache the combined list for a short TTL
package aggregator

import (
	"strings"
	"unicode/utf8"
)

// Source identifies the origin of a video.
type Source string

const (
	SourceYouTube Source = "youtube"
	SourceTikTok  Source = "tiktok"
)

// MaxTitleLength bounds normalized titles, in runes.
const MaxTitleLength = 140

// VideoItem is a normalized short-form video from any source.
type VideoItem struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Source       Source `json:"source"`
	PublishedAt  string `json:"publishedAt,omitempty"`
	ChannelName  string `json:"channelName,omitempty"`
	AuthorID     string `json:"authorId,omitempty"`
	ViewCount    *int64 `json:"viewCount,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Permalink    string `json:"permalink,omitempty"`
	MediaURL     string `json:"mediaUrl,omitempty"`
}

// Key is the composite source:id used for deduplication.
func (v VideoItem) Key() string {
	return string(v.Source) + ":" + v.ID
}

// NormalizeTitle trims title and bounds it to MaxTitleLength runes.
// Falls back to fallback, then to def, when the candidates are blank.
func NormalizeTitle(title, fallback, def string) string {
	for _, candidate := range []string{title, fallback} {
		if t := strings.TrimSpace(candidate); t != "" {
			return truncateRunes(t, MaxTitleLength)
		}
	}
	return def
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// FilterBySource returns the videos whose source is src, keeping order.
func FilterBySource(videos []VideoItem, src Source) []VideoItem {
	out := make([]VideoItem, 0, len(videos))
	for _, v := range videos {
		if v.Source == src {
			out = append(out, v)
		}
	}
	return out
}

// Int64 returns a pointer to n, for optional counters.
func Int64(n int64) *int64 {
	return &n
}
