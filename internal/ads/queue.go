package ads

import (
	"math/rand/v2"
	"sync"
)

// Shuffler permutes n elements in place through swap.
type Shuffler func(n int, swap func(i, j int))

// QueueOption configures the Queue.
type QueueOption func(*Queue)

// WithFeatured pins ad to the inline banner and removes it from rotation.
func WithFeatured(ad AdItem) QueueOption {
	return func(q *Queue) {
		q.featured = &ad
	}
}

// WithShuffler sets the permutation used on every reshuffle.
func WithShuffler(shuffle Shuffler) QueueOption {
	return func(q *Queue) {
		q.shuffle = shuffle
	}
}

// Queue hands out interstitial ads one at a time. An ad is not handed out
// twice between reshuffles, and a reshuffle never puts the ad just shown at
// the head when another ad is available.
type Queue struct {
	mu       sync.Mutex
	pool     []AdItem
	pending  []AdItem
	featured *AdItem
	banner   *AdItem
	lastID   *int
	shuffle  Shuffler
}

// NewQueue seeds a queue from catalog.
func NewQueue(catalog []AdItem, opts ...QueueOption) *Queue {
	q := &Queue{shuffle: rand.Shuffle}
	for _, opt := range opts {
		opt(q)
	}

	q.pool = make([]AdItem, 0, len(catalog))
	for _, ad := range catalog {
		if q.featured != nil && ad.ID == q.featured.ID {
			continue
		}
		q.pool = append(q.pool, ad)
	}

	q.pending = q.reshuffled()
	if q.featured != nil {
		q.banner = q.featured
	} else {
		q.banner = head(q.pending)
	}
	return q
}

// Next pops the next ad, reshuffling when the queue is exhausted. It reports
// false when there is no ad to rotate.
func (q *Queue) Next() (AdItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		q.pending = q.reshuffled()
	}
	if len(q.pending) == 0 {
		if q.featured == nil {
			q.banner = nil
		}
		return AdItem{}, false
	}

	next := q.pending[0]
	q.pending = q.pending[1:]
	id := next.ID
	q.lastID = &id

	if q.featured != nil {
		return next, true
	}
	if len(q.pending) == 0 {
		q.pending = q.reshuffled()
	}
	q.banner = head(q.pending)
	return next, true
}

// Banner returns the ad for the inline banner slot.
func (q *Queue) Banner() (AdItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.banner == nil {
		return AdItem{}, false
	}
	return *q.banner, true
}

// Featured reports the pinned banner ad, if any.
func (q *Queue) Featured() (AdItem, bool) {
	if q.featured == nil {
		return AdItem{}, false
	}
	return *q.featured, true
}

// Pool returns the rotating ads in catalog order.
func (q *Queue) Pool() []AdItem {
	out := make([]AdItem, len(q.pool))
	copy(out, q.pool)
	return out
}

// reshuffled returns a fresh permutation of the pool. When the last ad shown
// lands first it trades places with the second.
func (q *Queue) reshuffled() []AdItem {
	out := make([]AdItem, len(q.pool))
	copy(out, q.pool)
	q.shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > 1 && q.lastID != nil && out[0].ID == *q.lastID {
		out[0], out[1] = out[1], out[0]
	}
	return out
}

func head(ads []AdItem) *AdItem {
	if len(ads) == 0 {
		return nil
	}
	ad := ads[0]
	return &ad
}
