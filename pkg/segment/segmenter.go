package segment

import (
	"time"

	"github.com/voxline/voxline/pkg/vad"
)

// Turn is one complete user utterance: every frame from the first detected
// speech frame through the end of the trailing silence window, concatenated
// in arrival order.
type Turn struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the utterance length in time.
func (t *Turn) Duration() time.Duration {
	if t.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(t.Samples)) / float64(t.SampleRate) * float64(time.Second))
}

// SegmenterConfig configures turn boundary detection.
type SegmenterConfig struct {
	// SilenceThresholdMs closes an active turn once accumulated trailing
	// silence exceeds this many milliseconds. Default 1000.
	SilenceThresholdMs float64

	// SilenceFrameTolerance, when positive, switches the segmenter to
	// frame counting: a turn closes after more than this many consecutive
	// silence frames. Suited to fine-grained streaming ingestion where a
	// full second of padding feels sluggish.
	SilenceFrameTolerance int
}

// DefaultSegmenterConfig returns the defaults for buffered ingestion.
func DefaultSegmenterConfig() SegmenterConfig {
	return SegmenterConfig{SilenceThresholdMs: 1000}
}

// Segmenter accumulates classified frames into turns. It holds no
// goroutines and is not safe for concurrent use; the ingestion loop owns it.
type Segmenter struct {
	cfg SegmenterConfig

	active        bool
	frames        []Frame
	silenceMs     float64
	silenceFrames int
}

// NewSegmenter creates a segmenter in the idle state.
func NewSegmenter(cfg SegmenterConfig) *Segmenter {
	if cfg.SilenceThresholdMs <= 0 {
		cfg.SilenceThresholdMs = DefaultSegmenterConfig().SilenceThresholdMs
	}
	return &Segmenter{cfg: cfg}
}

// Active reports whether a turn is currently accumulating.
func (s *Segmenter) Active() bool {
	return s.active
}

// Push feeds one classified frame. When the frame closes a turn, the
// completed turn is returned with ok true and the segmenter goes idle.
// Silence while idle is discarded.
func (s *Segmenter) Push(d vad.Decision, f Frame) (*Turn, bool) {
	if !s.active {
		if !d.Speech {
			return nil, false
		}
		s.begin(f)
		return nil, false
	}

	s.frames = append(s.frames, f)
	if d.Speech {
		s.silenceMs = 0
		s.silenceFrames = 0
		return nil, false
	}

	s.silenceMs += f.DurationMs()
	s.silenceFrames++
	if s.closed() {
		return s.finish(), true
	}
	return nil, false
}

// SeedActive forces the segmenter into the accumulating state with frames
// as the opening of the new turn. Used on barge-in, where the speech that
// confirmed the interruption must not be lost.
func (s *Segmenter) SeedActive(frames ...Frame) {
	if len(frames) == 0 {
		return
	}
	s.begin(frames[0])
	s.frames = append(s.frames, frames[1:]...)
}

// Reset discards any partial turn and returns the segmenter to idle.
func (s *Segmenter) Reset() {
	s.active = false
	s.frames = nil
	s.silenceMs = 0
	s.silenceFrames = 0
}

func (s *Segmenter) begin(f Frame) {
	s.active = true
	s.frames = append(s.frames[:0], f)
	s.silenceMs = 0
	s.silenceFrames = 0
}

func (s *Segmenter) closed() bool {
	if s.cfg.SilenceFrameTolerance > 0 {
		return s.silenceFrames > s.cfg.SilenceFrameTolerance
	}
	return s.silenceMs > s.cfg.SilenceThresholdMs
}

func (s *Segmenter) finish() *Turn {
	total := 0
	for _, f := range s.frames {
		total += len(f.Samples)
	}

	t := &Turn{
		Samples:    make([]float32, 0, total),
		SampleRate: s.frames[0].SampleRate,
	}
	for _, f := range s.frames {
		t.Samples = append(t.Samples, f.Samples...)
	}

	s.Reset()
	return t
}
