package aggregator

import "fmt"

// MockCatalogSize is the number of synthetic records in the bundled catalog.
const MockCatalogSize = 140

type mockSeed struct {
	id          string
	source      Source
	channelName string
	title       string
	thumbnail   string
	viewCount   int64
}

var mockSeeds = []mockSeed{
	{
		id:          "dhhq-001",
		source:      SourceYouTube,
		channelName: "Demon Hunters HQ",
		title:       "[LIVE] Demon Hunters World Premiere Stage",
		thumbnail:   "https://images.unsplash.com/photo-1521334884684-d80222895322?auto=format&fit=crop&w=720&q=80",
		viewCount:   1842032,
	},
	{
		id:          "tt-001",
		source:      SourceTikTok,
		channelName: "@demonhunters.official",
		title:       "Neon Blade Dance Challenge",
		thumbnail:   "https://images.unsplash.com/photo-1498050108023-c5249f4df085?auto=format&fit=crop&w=720&q=80",
		viewCount:   562830,
	},
	{
		id:          "dhhq-002",
		source:      SourceYouTube,
		channelName: "Demon Hunters HQ",
		title:       "Behind the Scenes: Demon Hunters Night Parade",
		thumbnail:   "https://images.unsplash.com/photo-1500530855697-b586d89ba3ee?auto=format&fit=crop&w=720&q=80",
		viewCount:   918203,
	},
	{
		id:          "tt-002",
		source:      SourceTikTok,
		channelName: "@demonhunters.official",
		title:       "Character Costume Makeup Session",
		thumbnail:   "https://images.unsplash.com/photo-1529626455594-4ff0802cfb7e?auto=format&fit=crop&w=720&q=80",
		viewCount:   302114,
	},
	{
		id:          "dhhq-003",
		source:      SourceYouTube,
		channelName: "Demon Hunters HQ",
		title:       "OST Recording Session with Neon Symphony",
		thumbnail:   "https://images.unsplash.com/photo-1529158062015-cad636e69505?auto=format&fit=crop&w=720&q=80",
		viewCount:   712228,
	},
}

var mockCatalog = buildMockCatalog()

func buildMockCatalog() []VideoItem {
	videos := make([]VideoItem, 0, MockCatalogSize)
	for i := 0; i < MockCatalogSize; i++ {
		seed := mockSeeds[i%len(mockSeeds)]
		videos = append(videos, VideoItem{
			ID:           fmt.Sprintf("%s-%d", seed.id, i),
			Title:        fmt.Sprintf("%s #%d", seed.title, i+1),
			Source:       seed.source,
			ChannelName:  seed.channelName,
			ThumbnailURL: seed.thumbnail,
			ViewCount:    Int64(seed.viewCount + int64(i)*173),
		})
	}
	return videos
}

// MockCatalog returns a copy of the bundled synthetic catalog.
func MockCatalog() []VideoItem {
	out := make([]VideoItem, len(mockCatalog))
	copy(out, mockCatalog)
	return out
}

// MockVideos returns the bundled records restricted to one source.
func MockVideos(src Source) []VideoItem {
	return FilterBySource(mockCatalog, src)
}
