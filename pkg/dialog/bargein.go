package dialog

import (
	"sync"

	"github.com/voxline/voxline/pkg/segment"
	"github.com/voxline/voxline/pkg/vad"
)

// defaultBargeInThreshold is the debounce frame count before an interruption
// fires. At 512-sample frames and 16kHz that is roughly 150ms of speech,
// short enough to feel instant and long enough to ride out VAD flicker.
const defaultBargeInThreshold = 5

// BargeInController debounces speech detected while the assistant is
// talking. Each speech frame raises the counter, each non-speech frame
// lowers it (floored at zero); crossing the threshold triggers exactly one
// interruption and resets the counter.
//
// Frames observed while the counter is nonzero are buffered so that a
// confirmed interruption yields the whole debounce window, not just the
// frame that crossed the threshold. The window is discarded when the
// counter falls back to zero.
type BargeInController struct {
	threshold int

	mu      sync.Mutex
	counter int
	window  []segment.Frame
}

// NewBargeInController creates a controller. threshold <= 0 uses the
// default of 5 frames.
func NewBargeInController(threshold int) *BargeInController {
	if threshold <= 0 {
		threshold = defaultBargeInThreshold
	}
	return &BargeInController{threshold: threshold}
}

// Observe feeds one classified frame. When the debounce threshold is
// crossed it returns every buffered frame of the window, in arrival order,
// and true.
func (b *BargeInController) Observe(d vad.Decision, f segment.Frame) ([]segment.Frame, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if d.Speech {
		b.counter++
	} else if b.counter > 0 {
		b.counter--
	}

	if b.counter == 0 {
		b.window = b.window[:0]
		return nil, false
	}

	b.window = append(b.window, f)
	if b.counter >= b.threshold {
		window := b.window
		b.window = nil
		b.counter = 0
		return window, true
	}
	return nil, false
}

// Reset clears the debounce counter and the buffered window.
func (b *BargeInController) Reset() {
	b.mu.Lock()
	b.counter = 0
	b.window = nil
	b.mu.Unlock()
}
