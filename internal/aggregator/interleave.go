package aggregator

import "math/rand/v2"

// Interleave merges a and b position by position (a[0], b[0], a[1], b[1], ...)
// up to the longer length, skipping any item whose source:id was already emitted.
// Each input's relative order is preserved.
func Interleave(a, b []VideoItem) []VideoItem {
	n := max(len(a), len(b))
	out := make([]VideoItem, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))

	emit := func(v VideoItem) {
		key := v.Key()
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}

	for i := 0; i < n; i++ {
		if i < len(a) {
			emit(a[i])
		}
		if i < len(b) {
			emit(b[i])
		}
	}
	return out
}

// Shuffler permutes a slice in place.
type Shuffler func(n int, swap func(i, j int))

// RandomShuffle is the default Shuffler.
func RandomShuffle(n int, swap func(i, j int)) {
	rand.Shuffle(n, swap)
}

// Shuffled returns a permuted copy of videos.
func Shuffled(videos []VideoItem, shuffle Shuffler) []VideoItem {
	out := make([]VideoItem, len(videos))
	copy(out, videos)
	if shuffle == nil {
		shuffle = RandomShuffle
	}
	shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}
