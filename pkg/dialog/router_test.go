package dialog

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxline/voxline/pkg/engine"
	"github.com/voxline/voxline/pkg/segment"
)

func routerFrame() segment.Frame {
	return segment.Frame{Samples: make([]float32, 512), SampleRate: 16000}
}

func newTestRouter(llm *engine.MockLLM, sink *mockSink) (*Router, *segment.Segmenter, *Orchestrator) {
	seg := segment.NewSegmenter(segment.SegmenterConfig{SilenceFrameTolerance: 2})
	orch := NewOrchestrator(OrchestratorConfig{
		STT: &engine.MockSTT{Text: "hello there"},
		LLM: llm,
		TTS: &engine.MockTTS{},
	})
	router := NewRouter(seg, NewBargeInController(5), orch, NewSession(LanguageEnglish), sink)
	return router, seg, orch
}

func TestRouterCompletesTurnAndStartsResponse(t *testing.T) {
	llm := &engine.MockLLM{Fragments: []string{"Hello right back at you."}}
	sink := &mockSink{}
	router, _, orch := newTestRouter(llm, sink)

	// One speech frame then enough silence to close the turn.
	router.HandleFrame(speechFrame(), routerFrame())
	for i := 0; i < 3; i++ {
		router.HandleFrame(silenceFrame(), routerFrame())
	}

	task := orch.Active()
	require.NotNil(t, task)
	waitDone(t, task)

	assert.Equal(t, TaskCompleted, task.State())
	assert.Equal(t, []string{"user_transcription", "audio", "ai_response"}, sink.kinds())
}

func TestRouterBargeInInterruptsAndSeeds(t *testing.T) {
	// Slow stream keeps the task running while the user talks over it.
	llm := &engine.MockLLM{
		Fragments:     []string{"a very long reply ", "that keeps ", "streaming "},
		FragmentDelay: 300 * time.Millisecond,
	}
	sink := &mockSink{}
	router, seg, orch := newTestRouter(llm, sink)

	router.HandleFrame(speechFrame(), routerFrame())
	for i := 0; i < 3; i++ {
		router.HandleFrame(silenceFrame(), routerFrame())
	}
	task := orch.Active()
	require.NotNil(t, task)
	require.True(t, orch.Running())

	// Five speech frames cross the debounce threshold.
	for i := 0; i < 5; i++ {
		router.HandleFrame(speechFrame(), routerFrame())
	}

	assert.Contains(t, sink.kinds(), "interrupt")
	assert.True(t, seg.Active(), "segmenter not seeded with interrupting speech")

	waitDone(t, task)
	assert.Equal(t, TaskCancelled, task.State())
}

func TestRouterBargeInKeepsAllDebounceFrames(t *testing.T) {
	var mu sync.Mutex
	var pcmLens []int
	stt := &engine.MockSTT{
		TranscribeFunc: func(ctx context.Context, pcm []byte, sampleRate int, language string) (string, error) {
			mu.Lock()
			pcmLens = append(pcmLens, len(pcm))
			mu.Unlock()
			return "hello there", nil
		},
	}
	llm := &engine.MockLLM{
		Fragments:     []string{"a very long reply ", "that keeps ", "streaming "},
		FragmentDelay: 300 * time.Millisecond,
	}
	sink := &mockSink{}
	seg := segment.NewSegmenter(segment.SegmenterConfig{SilenceFrameTolerance: 2})
	orch := NewOrchestrator(OrchestratorConfig{STT: stt, LLM: llm, TTS: &engine.MockTTS{}})
	router := NewRouter(seg, NewBargeInController(5), orch, NewSession(LanguageEnglish), sink)

	// First turn: one speech frame, then silence past the tolerance.
	router.HandleFrame(speechFrame(), routerFrame())
	for i := 0; i < 3; i++ {
		router.HandleFrame(silenceFrame(), routerFrame())
	}
	first := orch.Active()
	require.NotNil(t, first)
	require.True(t, orch.Running())

	// Five speech frames trigger the barge-in; three silence frames close
	// the interrupting turn.
	for i := 0; i < 5; i++ {
		router.HandleFrame(speechFrame(), routerFrame())
	}
	waitDone(t, first)
	for i := 0; i < 3; i++ {
		router.HandleFrame(silenceFrame(), routerFrame())
	}

	second := orch.Active()
	require.NotNil(t, second)
	waitDone(t, second)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, pcmLens, 2)
	// First turn: 4 frames of 512 samples at 2 bytes each.
	assert.Equal(t, 4*512*2, pcmLens[0])
	// Interrupting turn: the 5 debounce frames plus 3 closing silence
	// frames, with nothing from the debounce window dropped.
	assert.Equal(t, 8*512*2, pcmLens[1])
}

func TestRouterIgnoresSilenceWhileIdle(t *testing.T) {
	llm := &engine.MockLLM{Fragments: []string{"never used."}}
	sink := &mockSink{}
	router, seg, orch := newTestRouter(llm, sink)

	for i := 0; i < 20; i++ {
		router.HandleFrame(silenceFrame(), routerFrame())
	}

	assert.False(t, seg.Active())
	assert.False(t, orch.Running())
	assert.Empty(t, sink.kinds())
}
