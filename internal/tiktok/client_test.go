package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/gauthierbraillon/fanfeed/internal/fetch"
)

func backendVideo(id string) map[string]any {
	return map[string]any{
		"video_id":      id,
		"video_url":     "https://www.tiktok.com/@demonhunters.official/video/" + id,
		"author_id":     "@demonhunters.official",
		"title":         "Clip " + id,
		"thumbnail_url": "https://p16-sign.tiktokcdn-us.com/" + id + ".jpeg",
		"play_url":      "https://v16.tiktokcdn.com/play/" + id,
		"download_url":  "https://v16.tiktokcdn.com/download/" + id,
	}
}

func page(prefix string, n int) []map[string]any {
	out := make([]map[string]any, n)
	for i := range out {
		out[i] = backendVideo(fmt.Sprintf("%s%d", prefix, i))
	}
	return out
}

// recordingBackend serves pages from a script and records every query.
type recordingBackend struct {
	mu      sync.Mutex
	queries []url.Values
}

func (b *recordingBackend) serve(t *testing.T, respond func(call int, q url.Values, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		call := len(b.queries)
		b.queries = append(b.queries, r.URL.Query())
		b.mu.Unlock()
		respond(call, r.URL.Query(), w)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(server *httptest.Server) *Client {
	return NewClient(
		WithBaseURL(server.URL+"/api/videos"),
		WithOEmbedURL(server.URL+"/oembed"),
		WithFetcher(fetch.New(fetch.WithMaxTries(1))),
	)
}

func TestClient_Records_FollowsCursorUntilLimit(t *testing.T) {
	backend := &recordingBackend{}
	server := backend.serve(t, func(call int, q url.Values, w http.ResponseWriter) {
		writeJSON(w, map[string]any{
			"videos":      page(fmt.Sprintf("c%d-", call), PageSize),
			"next_cursor": (call + 1) * PageSize,
		})
	})
	client := newTestClient(server)

	records, err := client.Records(context.Background(), Query{Keywords: []string{" demon hunters ", "", "kpop"}, Limit: 30})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 30 {
		t.Errorf("expected records capped at 30, got %d", len(records))
	}
	if len(backend.queries) != 3 {
		t.Fatalf("expected 3 pages of %d, got %d", PageSize, len(backend.queries))
	}
	first := backend.queries[0]
	if first.Get("limit") != "12" || first.Get("q") != "demon hunters,kpop" || first.Has("cursor") {
		t.Errorf("unexpected first page query %v", first)
	}
	if backend.queries[1].Get("cursor") != "12" || backend.queries[2].Get("cursor") != "24" {
		t.Errorf("cursor should follow next_cursor, got %v and %v", backend.queries[1], backend.queries[2])
	}
}

func TestClient_Records_StopConditions(t *testing.T) {
	tests := []struct {
		name      string
		respond   func(call int) map[string]any
		wantCalls int
		wantCount int
	}{
		{
			name: "null next cursor",
			respond: func(call int) map[string]any {
				return map[string]any{"videos": page("a", 5), "next_cursor": nil}
			},
			wantCalls: 1,
			wantCount: 5,
		},
		{
			name: "empty batch",
			respond: func(call int) map[string]any {
				if call == 0 {
					return map[string]any{"videos": page("a", PageSize), "next_cursor": 12}
				}
				return map[string]any{"videos": []any{}, "next_cursor": 24}
			},
			wantCalls: 2,
			wantCount: PageSize,
		},
		{
			name: "cursor does not advance",
			respond: func(call int) map[string]any {
				return map[string]any{"videos": page(fmt.Sprintf("s%d-", call), PageSize), "next_cursor": 12}
			},
			wantCalls: 2,
			wantCount: 2 * PageSize,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &recordingBackend{}
			server := backend.serve(t, func(call int, q url.Values, w http.ResponseWriter) {
				writeJSON(w, tt.respond(call))
			})

			records, err := newTestClient(server).Records(context.Background(), Query{Limit: 100})

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(backend.queries) != tt.wantCalls {
				t.Errorf("expected %d calls, got %d", tt.wantCalls, len(backend.queries))
			}
			if len(records) != tt.wantCount {
				t.Errorf("expected %d records, got %d", tt.wantCount, len(records))
			}
		})
	}
}

func TestClient_Records_UpstreamRejection(t *testing.T) {
	backend := &recordingBackend{}
	server := backend.serve(t, func(call int, q url.Values, w http.ResponseWriter) {
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := newTestClient(server).Records(context.Background(), Query{})

	var upstream *UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected *UpstreamError, got %v", err)
	}
	if upstream.Status != http.StatusForbidden || upstream.Message != "Forbidden" {
		t.Errorf("unexpected upstream error %+v", upstream)
	}
}

func TestClient_Records_UnreachableBackend(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	client := newTestClient(server)
	server.Close()

	_, err := client.Records(context.Background(), Query{})

	if err == nil {
		t.Fatal("expected an error for an unreachable backend")
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		t.Errorf("transport failure should not be reported as upstream rejection: %v", err)
	}
}

func TestClient_Videos_NormalizesAndDropsIDLessRecords(t *testing.T) {
	backend := &recordingBackend{}
	server := backend.serve(t, func(call int, q url.Values, w http.ResponseWriter) {
		_, _ = w.Write([]byte(`{"next_cursor": null, "videos": [
			{"video_id": 7301, "author_id": "@fan", "play_url": "https://v16.tiktokcdn.com/p", "mediaUrl": "https://v16.tiktokcdn.com/m"},
			{"video_id": "", "title": "no id"},
			{"title": "missing id"},
			{"video_id": {"nested": true}},
			{"video_id": "7302", "title": 42},
			{"video_id": "7303", "authorId": "other", "download_url": "https://v16.tiktokcdn.com/d", "video_url": "https://www.tiktok.com/@other/video/7303"}
		]}`))
	})

	videos, err := newTestClient(server).Videos(context.Background(), Query{})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("expected 2 usable videos, got %+v", videos)
	}

	first := videos[0]
	if first.ID != "7301" || first.AuthorID != "fan" || first.ChannelName != "@fan" {
		t.Errorf("unexpected first video %+v", first)
	}
	if first.Title != DefaultTitle {
		t.Errorf("expected default title, got %q", first.Title)
	}
	if first.MediaURL != "https://v16.tiktokcdn.com/m" {
		t.Errorf("mediaUrl should win over play_url, got %q", first.MediaURL)
	}

	second := videos[1]
	if second.ChannelName != "@other" || second.MediaURL != "https://v16.tiktokcdn.com/d" {
		t.Errorf("unexpected second video %+v", second)
	}
	if second.Permalink != "https://www.tiktok.com/@other/video/7303" {
		t.Errorf("unexpected permalink %q", second.Permalink)
	}
}

func TestNormalize_MediaURLPriority(t *testing.T) {
	base := Record{VideoID: "1", VideoURL: "https://www.tiktok.com/@a/video/1"}

	r := base
	if v, _ := Normalize(r); v.MediaURL != base.VideoURL {
		t.Errorf("expected permalink fallback, got %q", v.MediaURL)
	}
	r.DownloadURL = "download"
	if v, _ := Normalize(r); v.MediaURL != "download" {
		t.Errorf("expected download_url, got %q", v.MediaURL)
	}
	r.PlayURL = "play"
	if v, _ := Normalize(r); v.MediaURL != "play" {
		t.Errorf("expected play_url, got %q", v.MediaURL)
	}
	r.MediaURL = "media"
	if v, _ := Normalize(r); v.MediaURL != "media" {
		t.Errorf("expected mediaUrl, got %q", v.MediaURL)
	}
}

func TestNormalize_TruncatesLongTitles(t *testing.T) {
	v, ok := Normalize(Record{VideoID: "1", Title: "  " + strings.Repeat("é", 200) + "  "})
	if !ok {
		t.Fatal("record with id should normalize")
	}
	if got := len([]rune(v.Title)); got != 140 {
		t.Errorf("expected title bounded to 140 runes, got %d", got)
	}
}

func TestClient_ResolveThumbnail(t *testing.T) {
	var cdnURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/oembed" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if !strings.Contains(r.URL.Query().Get("url"), "/video/42") {
			t.Errorf("oembed should receive the permalink, got %q", r.URL.RawQuery)
		}
		writeJSON(w, map[string]any{"thumbnail_url": cdnURL})
	}))
	defer server.Close()
	client := newTestClient(server)
	permalink, _ := url.Parse("https://www.tiktok.com/@fan/video/42")

	cdnURL = "https://p16-sign-va.tiktokcdn.com/obj/42.jpeg"
	got, err := client.ResolveThumbnail(context.Background(), permalink)
	if err != nil || got.String() != cdnURL {
		t.Fatalf("expected %s, got %v (err %v)", cdnURL, got, err)
	}

	cdnURL = "https://evil.example.com/42.jpeg"
	if _, err := client.ResolveThumbnail(context.Background(), permalink); !errors.Is(err, ErrDisallowedSource) {
		t.Errorf("oembed thumbnails off the CDN must be refused, got %v", err)
	}
}

func TestClient_FetchThumbnail_SendsBrowserHeaders(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Referer") != "https://www.tiktok.com/" {
			t.Errorf("expected TikTok referer, got %q", r.Header.Get("Referer"))
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a browser user agent")
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("png"))
	}))
	defer server.Close()
	src, _ := url.Parse(server.URL + "/img.png")

	resp, err := NewClient().FetchThumbnail(context.Background(), src)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("unexpected status %d", resp.StatusCode)
	}
}

func TestClampLimit(t *testing.T) {
	tests := map[int]int{0: 100, -1: 100, 1: 1, 150: 150, 200: 200, 201: 200}
	for in, want := range tests {
		if got := ClampLimit(in); got != want {
			t.Errorf("ClampLimit(%d) = %d, want %d", in, got, want)
		}
	}
}
