// Package youtube provides a client for the YouTube Data API v3.
//
// This package enables fanfeed to:
// - Search short-form videos by keyword, optionally within one channel
// - Read a playlist when no keyword is configured
// - Keep only true shorts (60 seconds or less) using video details
package youtube

import "errors"

const (
	// DefaultLimit is used when a request does not set a limit.
	DefaultLimit = 50
	// MaxLimit bounds the number of videos a single request may ask for.
	MaxLimit = 100
	// FallbackQuery is searched when the configured keyword finds nothing.
	FallbackQuery = "kpop shorts"

	pageSize     = 50
	maxShortSecs = 60
)

var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("youtube: missing API key")
	// ErrNoSource is returned when neither a search query nor a playlist is set.
	ErrNoSource = errors.New("youtube: missing search query or playlist id")
)

// Request selects what to fetch. A non-empty Query searches; otherwise
// PlaylistID is read.
type Request struct {
	Query      string
	ChannelID  string
	PlaylistID string
	Limit      int
}

// ClampLimit bounds n to [1, MaxLimit]; zero or negative means DefaultLimit.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

// API response types (private - implementation detail)

type thumbnail struct {
	URL string `json:"url"`
}

type thumbnails struct {
	Default  *thumbnail `json:"default"`
	Medium   *thumbnail `json:"medium"`
	High     *thumbnail `json:"high"`
	Standard *thumbnail `json:"standard"`
	Maxres   *thumbnail `json:"maxres"`
}

// best prefers the largest rendition.
func (t thumbnails) best() string {
	for _, th := range []*thumbnail{t.Maxres, t.High, t.Standard, t.Medium, t.Default} {
		if th != nil && th.URL != "" {
			return th.URL
		}
	}
	return ""
}

type searchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet *struct {
			Title        string     `json:"title"`
			ChannelTitle string     `json:"channelTitle"`
			PublishedAt  string     `json:"publishedAt"`
			Thumbnails   thumbnails `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type playlistItemsResponse struct {
	Items []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
		Snippet *struct {
			Title                  string     `json:"title"`
			ChannelTitle           string     `json:"channelTitle"`
			VideoOwnerChannelTitle string     `json:"videoOwnerChannelTitle"`
			PublishedAt            string     `json:"publishedAt"`
			Thumbnails             thumbnails `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type videosResponse struct {
	Items []struct {
		ID         string `json:"id"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
	} `json:"items"`
}
