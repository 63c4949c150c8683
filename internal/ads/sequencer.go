package ads

import (
	"sync"
	"time"

	"github.com/gauthierbraillon/fanfeed/internal/aggregator"
)

// RevealDelay separates dismissing an ad from showing the held video.
const RevealDelay = 200 * time.Millisecond

// State is the interstitial phase.
type State int

const (
	// Idle means no video is selected.
	Idle State = iota
	// AdShown means an ad stands between the viewer and the selected video.
	AdShown
	// VideoShown means the selected video is playing.
	VideoShown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AdShown:
		return "ad"
	case VideoShown:
		return "video"
	default:
		return "unknown"
	}
}

// Timer is the part of *time.Timer the sequencer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d, like time.AfterFunc.
type AfterFunc func(d time.Duration, f func()) Timer

// SequencerOption configures the Sequencer.
type SequencerOption func(*Sequencer)

// WithAfterFunc replaces the timer source.
func WithAfterFunc(after AfterFunc) SequencerOption {
	return func(s *Sequencer) {
		s.after = after
	}
}

// WithRevealDelay overrides RevealDelay.
func WithRevealDelay(d time.Duration) SequencerOption {
	return func(s *Sequencer) {
		s.delay = d
	}
}

// WithOnReveal registers a callback run when the held video is shown.
func WithOnReveal(fn func(aggregator.VideoItem)) SequencerOption {
	return func(s *Sequencer) {
		s.onReveal = fn
	}
}

// Sequencer runs Idle -> AdShown -> VideoShown -> Idle for one viewer.
type Sequencer struct {
	mu        sync.Mutex
	queue     *Queue
	after     AfterFunc
	delay     time.Duration
	onReveal  func(aggregator.VideoItem)
	state     State
	pending   *aggregator.VideoItem
	activeAd  *AdItem
	adVisible bool
	timer     Timer
	gen       uint64
}

// NewSequencer creates an idle sequencer drawing ads from queue.
func NewSequencer(queue *Queue, opts ...SequencerOption) *Sequencer {
	s := &Sequencer{
		queue: queue,
		delay: RevealDelay,
		after: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select holds video and shows the next ad. With nothing to rotate the video
// is shown at once. The returned ad is the one now displayed.
func (s *Sequencer) Select(video aggregator.VideoItem) (AdItem, bool) {
	s.mu.Lock()
	s.cancelTimerLocked()
	s.pending = &video

	ad, ok := s.queue.Next()
	if !ok {
		s.activeAd = nil
		s.adVisible = false
		s.state = VideoShown
		onReveal := s.onReveal
		s.mu.Unlock()
		if onReveal != nil {
			onReveal(video)
		}
		return AdItem{}, false
	}

	s.activeAd = &ad
	s.adVisible = true
	s.state = AdShown
	s.mu.Unlock()
	return ad, true
}

// DismissAd hides the ad. A held video is shown after the reveal delay;
// without one the sequencer returns to Idle.
func (s *Sequencer) DismissAd() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != AdShown || !s.adVisible {
		return
	}
	s.adVisible = false
	if s.pending == nil {
		s.state = Idle
		return
	}

	s.cancelTimerLocked()
	gen := s.gen
	s.timer = s.after(s.delay, func() { s.reveal(gen) })
}

// CloseVideo drops the held video and returns to Idle.
func (s *Sequencer) CloseVideo() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelTimerLocked()
	s.pending = nil
	s.adVisible = false
	s.state = Idle
}

// State returns the current phase.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the held video.
func (s *Sequencer) Pending() (aggregator.VideoItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return aggregator.VideoItem{}, false
	}
	return *s.pending, true
}

// ActiveAd returns the ad on screen. It reports false once the ad is dismissed.
func (s *Sequencer) ActiveAd() (AdItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeAd == nil || !s.adVisible {
		return AdItem{}, false
	}
	return *s.activeAd, true
}

// Banner returns the inline banner ad.
func (s *Sequencer) Banner() (AdItem, bool) {
	return s.queue.Banner()
}

func (s *Sequencer) reveal(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.pending == nil {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.state = VideoShown
	video := *s.pending
	onReveal := s.onReveal
	s.mu.Unlock()

	if onReveal != nil {
		onReveal(video)
	}
}

// cancelTimerLocked stops an armed reveal and invalidates it if it already fired.
func (s *Sequencer) cancelTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}
