package dialog

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/voxline/voxline/pkg/audio"
	"github.com/voxline/voxline/pkg/engine"
	"github.com/voxline/voxline/pkg/segment"
	"github.com/voxline/voxline/pkg/stats"
	"github.com/voxline/voxline/pkg/trace"
)

// Spoken fallback when an engine call fails mid-turn.
const (
	apologyEN = "Sorry, I am having trouble responding right now."
	apologyTR = "Üzgünüm, şu anda yanıt vermekte zorlanıyorum."
)

// Sink receives the ordered outbound events of one response. Implementations
// may block; backpressure propagates into the pipeline.
type Sink interface {
	SendInterrupt() error
	SendUserTranscription(text string) error
	SendAIResponse(text string) error
	SendAudio(audio []byte) error
}

// OrchestratorConfig wires the engines behind one response pipeline.
type OrchestratorConfig struct {
	STT engine.STT
	LLM engine.LLM
	TTS engine.TTS

	// Stats receives one interaction per completed turn. Optional.
	Stats *stats.Recorder

	// MinSentenceLength is the synthesis chunking floor. Zero uses the
	// default of 10 runes.
	MinSentenceLength int
}

// Orchestrator runs the response pipeline for a session. It enforces the
// single-task invariant: starting a new turn cancels whatever was still
// running.
type Orchestrator struct {
	cfg OrchestratorConfig

	mu      sync.Mutex
	current *ResponseTask
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{cfg: cfg}
}

// StartTurn launches the response pipeline for one finished utterance. Any
// still-running task is cancelled first, so at most one task is ever
// running.
func (o *Orchestrator) StartTurn(turn *segment.Turn, sess *Session, sink Sink) *ResponseTask {
	ctx, cancel := context.WithCancel(context.Background())
	task := newResponseTask(cancel)

	o.mu.Lock()
	if o.current != nil {
		o.current.Cancel()
	}
	o.current = task
	o.mu.Unlock()

	go o.run(ctx, task, turn, sess, sink)
	return task
}

// Running reports whether a response task is currently active.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current != nil && o.current.State() == TaskRunning
}

// Active returns the current task, which may already be finished, or nil.
func (o *Orchestrator) Active() *ResponseTask {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// CancelActive cancels the in-flight task, if any.
func (o *Orchestrator) CancelActive() {
	o.mu.Lock()
	task := o.current
	o.mu.Unlock()
	if task != nil {
		task.Cancel()
	}
}

// run executes the pipeline stages for one turn. The final state is always
// recorded and the current-task slot released, whatever path exits.
func (o *Orchestrator) run(ctx context.Context, task *ResponseTask, turn *segment.Turn, sess *Session, sink Sink) {
	final := TaskCompleted
	defer func() {
		task.finish(final)
		o.mu.Lock()
		if o.current == task {
			o.current = nil
		}
		o.mu.Unlock()
	}()

	language := sess.Language()
	langHint := language
	if langHint == LanguageAuto {
		langHint = ""
	}

	pcm := audio.Float32ToBytes(turn.Samples)
	sttCtx, span := trace.InstrumentSTTRequest(ctx, o.cfg.STT.Name(), len(pcm))
	userText, err := o.cfg.STT.Transcribe(sttCtx, pcm, turn.SampleRate, langHint)
	if err != nil {
		trace.RecordError(span, err)
		span.End()
		if isCancelled(ctx, err) {
			final = TaskCancelled
			return
		}
		log.Printf("[Orchestrator] Transcription failed: %v", err)
		o.apologize(ctx, sink, language)
		final = TaskFailed
		return
	}
	span.End()

	if ctx.Err() != nil {
		// Cancelled while transcription was in flight; the text belongs
		// to a dead turn and must not reach the client.
		final = TaskCancelled
		return
	}

	if strings.TrimSpace(userText) == "" {
		// Breathing or background noise; nothing to answer.
		return
	}

	log.Printf("[Orchestrator] User (%s): %s", language, userText)
	if err := sink.SendUserTranscription(userText); err != nil {
		log.Printf("[Orchestrator] Failed to send transcription: %v", err)
	}

	llmCtx, llmSpan := trace.InstrumentLLMRequest(ctx, o.cfg.LLM.Name(), "")
	stream, err := o.cfg.LLM.Generate(llmCtx, sess.Messages(userText))
	if err != nil {
		trace.RecordError(llmSpan, err)
		llmSpan.End()
		if isCancelled(ctx, err) {
			final = TaskCancelled
			return
		}
		log.Printf("[Orchestrator] LLM request failed: %v", err)
		o.apologize(ctx, sink, language)
		final = TaskFailed
		return
	}
	defer stream.Close()

	assembler := NewSentenceAssembler(o.cfg.MinSentenceLength)
	var full strings.Builder

	for stream.Next() {
		if ctx.Err() != nil {
			llmSpan.End()
			final = TaskCancelled
			return
		}
		fragment := stream.Fragment()
		full.WriteString(fragment)

		if sentence, ok := assembler.Push(fragment); ok {
			o.speak(ctx, sink, sentence)
		}
	}
	llmSpan.End()

	if err := stream.Err(); err != nil {
		if isCancelled(ctx, err) {
			final = TaskCancelled
			return
		}
		log.Printf("[Orchestrator] LLM stream failed: %v", err)
		if full.Len() == 0 {
			o.apologize(ctx, sink, language)
			final = TaskFailed
			return
		}
		// Partial response already spoken; finish with what we have.
	}

	if remaining, ok := assembler.FlushRemaining(); ok {
		o.speak(ctx, sink, remaining)
	}

	if ctx.Err() != nil {
		final = TaskCancelled
		return
	}

	reply := full.String()
	log.Printf("[Orchestrator] AI: %s", reply)
	if err := sink.SendAIResponse(reply); err != nil {
		log.Printf("[Orchestrator] Failed to send response text: %v", err)
	}

	sess.AppendExchange(userText, reply)
	if o.cfg.Stats != nil {
		o.cfg.Stats.Record(stats.Interaction{UserText: userText, ReplyText: reply})
	}
}

// speak synthesizes one sentence and forwards the audio. A failed or empty
// synthesis skips the sentence; the rest of the response continues. Nothing
// is emitted once the turn is cancelled.
func (o *Orchestrator) speak(ctx context.Context, sink Sink, text string) {
	if ctx.Err() != nil {
		return
	}

	ttsCtx, span := trace.InstrumentTTSRequest(ctx, o.cfg.TTS.Name(), "", text)
	clip, err := o.cfg.TTS.Synthesize(ttsCtx, text)
	if err != nil {
		trace.RecordError(span, err)
		span.End()
		if !isCancelled(ctx, err) {
			log.Printf("[Orchestrator] Synthesis failed, skipping sentence: %v", err)
		}
		return
	}
	span.End()

	if len(clip) == 0 || ctx.Err() != nil {
		return
	}
	if err := sink.SendAudio(clip); err != nil {
		log.Printf("[Orchestrator] Failed to send audio: %v", err)
	}
}

// apologize tells the user something went wrong, in their language, unless
// the turn was already cancelled.
func (o *Orchestrator) apologize(ctx context.Context, sink Sink, language string) {
	if ctx.Err() != nil {
		return
	}

	apology := apologyEN
	if language == LanguageTurkish {
		apology = apologyTR
	}

	if err := sink.SendAIResponse(apology); err != nil {
		log.Printf("[Orchestrator] Failed to send apology: %v", err)
		return
	}
	o.speak(ctx, sink, apology)
}

func isCancelled(ctx context.Context, err error) bool {
	return ctx.Err() != nil || errors.Is(err, context.Canceled)
}
