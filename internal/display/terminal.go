// Package display provides terminal output formatting for fanfeed.
package display

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gauthierbraillon/fanfeed/internal/ads"
	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
)

const separator = " • "

// TerminalFormatter formats videos and ads for terminal display.
type TerminalFormatter struct {
	now func() time.Time
}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{now: time.Now}
}

// FormatItem formats a single video card.
func (f *TerminalFormatter) FormatItem(item aggregator.VideoItem) string {
	var lines []string

	// Header: [SOURCE] Title
	header := fmt.Sprintf("[%s] %s", strings.ToUpper(string(item.Source)), item.Title)
	lines = append(lines, header)

	var meta []string
	if item.ChannelName != "" {
		meta = append(meta, "by "+item.ChannelName)
	}
	if ts := f.formatPublished(item.PublishedAt); ts != "" {
		meta = append(meta, ts)
	}
	if views := FormatViews(item.ViewCount); views != "" {
		meta = append(meta, views)
	}
	if len(meta) > 0 {
		lines = append(lines, "  "+strings.Join(meta, separator))
	}

	if link := item.Permalink; link != "" {
		lines = append(lines, "  "+link)
	}

	return strings.Join(lines, "\n") + "\n"
}

// FormatFeed formats multiple videos as cards.
func (f *TerminalFormatter) FormatFeed(items []aggregator.VideoItem) string {
	if len(items) == 0 {
		return "No videos to display.\n"
	}

	var formatted []string
	for _, item := range items {
		formatted = append(formatted, f.FormatItem(item))
	}

	return strings.Join(formatted, "\n---\n\n")
}

// FormatGrid lists videos one per line, numbered from 1, for selection.
// hasMore adds the load-more hint.
func (f *TerminalFormatter) FormatGrid(items []aggregator.VideoItem, hasMore bool) string {
	if len(items) == 0 {
		return "No videos to display.\n"
	}

	var b strings.Builder
	width := len(fmt.Sprint(len(items)))
	for i, item := range items {
		fmt.Fprintf(&b, "%*d. %-7s %s\n", width, i+1, item.Source, f.TruncateText(item.Title, 60))
	}
	if hasMore {
		b.WriteString("... more videos available (type 'more')\n")
	}
	return b.String()
}

// FormatAd formats the interstitial shown before a video.
func (f *TerminalFormatter) FormatAd(ad ads.AdItem) string {
	lines := []string{
		"== SPONSORED ==",
		"  " + ad.Title,
	}
	if ad.CTA != "" {
		lines = append(lines, fmt.Sprintf("  %s: %s", ad.CTA, ad.URL))
	} else if ad.URL != "" {
		lines = append(lines, "  "+ad.URL)
	}
	lines = append(lines, "  (type 'skip' to continue to your video)")
	return strings.Join(lines, "\n") + "\n"
}

// FormatBanner formats the inline banner slot.
func (f *TerminalFormatter) FormatBanner(ad ads.AdItem) string {
	return fmt.Sprintf("[AD] %s%s%s\n", ad.Title, separator, ad.URL)
}

// FormatPlayer formats the opened video.
func (f *TerminalFormatter) FormatPlayer(item aggregator.VideoItem) string {
	link := item.MediaURL
	if link == "" {
		link = item.Permalink
	}
	return fmt.Sprintf("Now playing: %s\n  %s\n", item.Title, link)
}

// formatPublished renders an RFC 3339 timestamp as relative time. Unparseable
// values are shown as-is.
func (f *TerminalFormatter) formatPublished(s string) string {
	if s == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}
	return f.FormatTimestamp(t)
}

// FormatTimestamp formats a timestamp as relative time.
func (f *TerminalFormatter) FormatTimestamp(t time.Time) string {
	diff := f.now().Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// pluralize returns "N unit ago" or "N units ago" based on count.
func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// FormatViews renders a view count compactly: 950 views, 12.3K views, 4.5M views.
func FormatViews(n *int64) string {
	if n == nil {
		return ""
	}
	v := *n
	switch {
	case v >= 1_000_000_000:
		return fmt.Sprintf("%.1fB views", float64(v)/1e9)
	case v >= 1_000_000:
		return fmt.Sprintf("%.1fM views", float64(v)/1e6)
	case v >= 1_000:
		return fmt.Sprintf("%.1fK views", float64(v)/1e3)
	case v == 1:
		return "1 view"
	default:
		return fmt.Sprintf("%d views", v)
	}
}

// TruncateText truncates text to maxLen runes, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string([]rune(text)[:maxLen-3]) + "..."
}
