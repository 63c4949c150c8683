package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
	"github.com/gauthierbraillon/fanfeed/internal/fetch"
)

var videoIDPattern = regexp.MustCompile(`video/(\d+)`)

// snapshot is the file the crawler publishes. Current files carry videos;
// older ones carry reels. Both may be present.
type snapshot struct {
	FetchedAt *float64          `json:"fetched_at"`
	Count     *int              `json:"count"`
	Videos    []json.RawMessage `json:"videos"`
	Reels     []json.RawMessage `json:"reels"`
}

type liveEntry struct {
	VideoID      flexID    `json:"video_id"`
	VideoURL     string    `json:"video_url"`
	Permalink    string    `json:"permalink"`
	AuthorID     string    `json:"author_id"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Title        string    `json:"title"`
	Caption      string    `json:"caption"`
	PlayURL      string    `json:"play_url"`
	DownloadURL  string    `json:"download_url"`
	MediaURL     optString `json:"media_url"`
}

type legacyEntry struct {
	Permalink    string    `json:"permalink"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Caption      string    `json:"caption"`
	MediaURL     optString `json:"media_url"`
}

// ParseSnapshot decodes a snapshot file into videos, live entries first,
// deduplicated by id. Entries that cannot be mapped are skipped.
func ParseSnapshot(data []byte) ([]aggregator.VideoItem, error) {
	var snap *snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse tiktok snapshot: %w", err)
	}

	videos := []aggregator.VideoItem{}
	if snap == nil {
		return videos, nil
	}
	seen := make(map[string]struct{})
	add := func(v aggregator.VideoItem, ok bool) {
		if !ok {
			return
		}
		if _, dup := seen[v.ID]; dup {
			return
		}
		seen[v.ID] = struct{}{}
		videos = append(videos, v)
	}

	for _, e := range decodeEach[liveEntry](snap.Videos) {
		add(mapLiveEntry(e))
	}
	for _, e := range decodeEach[legacyEntry](snap.Reels) {
		add(mapLegacyEntry(e))
	}
	return videos, nil
}

// LoadSnapshot reads a snapshot from an http(s) URL or a local file.
func LoadSnapshot(ctx context.Context, fetcher *fetch.Client, source string) ([]aggregator.VideoItem, error) {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		var raw json.RawMessage
		res := fetcher.GetJSON(ctx, source, &raw)
		if !res.OK() {
			return nil, fmt.Errorf("failed to load tiktok snapshot: %w", res.Err)
		}
		return ParseSnapshot(raw)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read tiktok snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// SnapshotProvider exposes LoadSnapshot as an aggregation tier.
func SnapshotProvider(fetcher *fetch.Client, source string) aggregator.Provider {
	return aggregator.ProviderFunc{
		Label: "tiktok-static",
		Fn: func(ctx context.Context) ([]aggregator.VideoItem, error) {
			return LoadSnapshot(ctx, fetcher, source)
		},
	}
}

type snapshotFile struct {
	FetchedAt int64    `json:"fetched_at"`
	Count     int      `json:"count"`
	Keywords  []string `json:"keywords,omitempty"`
	Videos    []Record `json:"videos"`
}

// WriteSnapshot writes records in the current snapshot shape.
func WriteSnapshot(w io.Writer, records []Record, keywords []string, fetchedAt time.Time) error {
	if records == nil {
		records = []Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snapshotFile{
		FetchedAt: fetchedAt.Unix(),
		Count:     len(records),
		Keywords:  keywords,
		Videos:    records,
	}); err != nil {
		return fmt.Errorf("failed to write tiktok snapshot: %w", err)
	}
	return nil
}

// idFromURL extracts the numeric id of a /video/<id> URL, falling back to the
// trimmed URL itself.
func idFromURL(u string) string {
	u = strings.TrimSpace(u)
	if m := videoIDPattern.FindStringSubmatch(u); m != nil {
		return m[1]
	}
	return u
}

func mapLiveEntry(e liveEntry) (aggregator.VideoItem, bool) {
	id := string(e.VideoID)
	if id == "" {
		id = idFromURL(firstNonEmpty(e.VideoURL, e.Permalink))
	}
	if id == "" {
		return aggregator.VideoItem{}, false
	}

	author := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(e.AuthorID), "@"))
	permalink := firstNonEmpty(e.VideoURL, e.Permalink)
	if permalink == "" && author != "" {
		permalink = fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", author, id)
	}
	if author == "" {
		author = DefaultAuthorHandle
	}

	return aggregator.VideoItem{
		ID:           id,
		Title:        aggregator.NormalizeTitle(e.Title, e.Caption, DefaultTitle),
		Source:       aggregator.SourceTikTok,
		ChannelName:  "@" + author,
		AuthorID:     author,
		ThumbnailURL: ProxyThumbnailURL(permalink, e.ThumbnailURL),
		Permalink:    permalink,
		MediaURL:     firstNonEmpty(e.PlayURL, e.DownloadURL, string(e.MediaURL), permalink),
	}, true
}

func mapLegacyEntry(e legacyEntry) (aggregator.VideoItem, bool) {
	permalink := strings.TrimSpace(e.Permalink)
	if permalink == "" {
		return aggregator.VideoItem{}, false
	}
	id := idFromURL(permalink)

	return aggregator.VideoItem{
		ID:           id,
		Title:        aggregator.NormalizeTitle(e.Caption, "", DefaultTitle),
		Source:       aggregator.SourceTikTok,
		ChannelName:  "@" + DefaultAuthorHandle,
		AuthorID:     DefaultAuthorHandle,
		ThumbnailURL: ProxyThumbnailURL(permalink, e.ThumbnailURL),
		Permalink:    permalink,
		MediaURL:     firstNonEmpty(string(e.MediaURL), permalink),
	}, true
}
