package tiktok

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ThumbnailProxyPath is the route that serves TikTok thumbnails same-origin.
const ThumbnailProxyPath = "/api/tiktok-thumbnail"

var thumbnailHostPattern = regexp.MustCompile(`^(?:[a-z0-9-]+\.)*(?:tiktokcdn\.com|tiktokcdn-us\.com|tiktokcdn-eu\.com)$`)

// ErrDisallowedSource is returned for URLs the proxy must not fetch.
var ErrDisallowedSource = errors.New("tiktok: source not allowed")

// ProxyThumbnailURL points at the thumbnail proxy, by permalink when known and
// by the raw thumbnail URL otherwise. It returns "" when both are empty.
func ProxyThumbnailURL(permalink, thumbnailURL string) string {
	if permalink = strings.TrimSpace(permalink); permalink != "" {
		return ThumbnailProxyPath + "?permalink=" + url.QueryEscape(permalink)
	}
	if thumbnailURL = strings.TrimSpace(thumbnailURL); thumbnailURL != "" {
		return ThumbnailProxyPath + "?src=" + url.QueryEscape(thumbnailURL)
	}
	return ""
}

// AllowedThumbnailHost reports whether host is a TikTok CDN host.
func AllowedThumbnailHost(host string) bool {
	return thumbnailHostPattern.MatchString(strings.ToLower(host))
}

// ValidateThumbnailSource parses raw and checks it is https on a TikTok CDN host.
func ValidateThumbnailSource(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || !AllowedThumbnailHost(u.Hostname()) {
		return nil, ErrDisallowedSource
	}
	return u, nil
}

// ValidatePermalink parses raw and checks it is an https tiktok.com page.
func ValidatePermalink(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" {
		return nil, ErrDisallowedSource
	}
	host := strings.ToLower(u.Hostname())
	if host != "tiktok.com" && !strings.HasSuffix(host, ".tiktok.com") {
		return nil, ErrDisallowedSource
	}
	return u, nil
}
