// Package tiktok reads TikTok videos from the scraping backend and from the
// static snapshot file, and guards the thumbnail proxy.
package tiktok

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultBackendURL is the scraping backend's video endpoint.
	DefaultBackendURL = "http://localhost:5001/api/videos"
	// PageSize is the number of records requested per backend call.
	PageSize = 12
	// DefaultLimit is used when a request does not set a limit.
	DefaultLimit = 100
	// MaxLimit bounds the number of videos a single request may ask for.
	MaxLimit = 200
	// DefaultTitle is shown for clips without a title or caption.
	DefaultTitle = "TikTok Clip"
	// DefaultAuthorHandle is credited for snapshot clips without an author.
	DefaultAuthorHandle = "kpopdemonhunters"
)

// Query selects backend videos.
type Query struct {
	Keywords []string
	Limit    int
}

// ClampLimit bounds n to [1, MaxLimit]; zero or negative means DefaultLimit.
func ClampLimit(n int) int {
	if n <= 0 {
		return DefaultLimit
	}
	return min(n, MaxLimit)
}

// JoinKeywords trims keywords, drops blanks and joins them with commas.
func JoinKeywords(keywords []string) string {
	kept := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.TrimSpace(k); k != "" {
			kept = append(kept, k)
		}
	}
	return strings.Join(kept, ",")
}

// UpstreamError reports a non-2xx answer from the scraping backend.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("tiktok backend rejected request (status %d): %s", e.Status, e.Message)
}

// Record is one video as the scraping backend and the live snapshot carry it.
type Record struct {
	VideoID      flexID `json:"video_id"`
	VideoURL     string `json:"video_url,omitempty"`
	AuthorID     string `json:"author_id,omitempty"`
	AuthorIDAlt  string `json:"authorId,omitempty"`
	Title        string `json:"title,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	PlayURL      string `json:"play_url,omitempty"`
	DownloadURL  string `json:"download_url,omitempty"`
	MediaURL     string `json:"mediaUrl,omitempty"`
}

type backendResponse struct {
	Error      string            `json:"error"`
	NextCursor *int64            `json:"next_cursor"`
	Videos     []json.RawMessage `json:"videos"`
}

// flexID accepts ids sent as JSON strings or numbers. Other shapes decode
// to an empty id so the record is dropped rather than failing the payload.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexID(n.String())
		return nil
	}
	*f = ""
	return nil
}

// optString keeps JSON strings and ignores every other shape.
type optString string

func (o *optString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*o = optString(s)
	}
	return nil
}

// decodeEach decodes every raw entry into T, skipping the ones that do not fit.
func decodeEach[T any](raw []json.RawMessage) []T {
	out := make([]T, 0, len(raw))
	for _, r := range raw {
		var v T
		if err := json.Unmarshal(r, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
