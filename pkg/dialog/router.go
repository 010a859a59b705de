package dialog

import (
	"context"
	"log"

	"github.com/voxline/voxline/pkg/segment"
	"github.com/voxline/voxline/pkg/trace"
	"github.com/voxline/voxline/pkg/vad"
)

// Router directs classified frames to either the barge-in controller or the
// turn segmenter, depending on whether the assistant is mid-response. One
// router serves one session and is driven by that session's single
// ingestion loop.
type Router struct {
	seg     *segment.Segmenter
	bargeIn *BargeInController
	orch    *Orchestrator
	sess    *Session
	sink    Sink
}

// NewRouter creates a router over an existing segmenter, controller and
// orchestrator.
func NewRouter(seg *segment.Segmenter, bargeIn *BargeInController, orch *Orchestrator, sess *Session, sink Sink) *Router {
	return &Router{
		seg:     seg,
		bargeIn: bargeIn,
		orch:    orch,
		sess:    sess,
		sink:    sink,
	}
}

// HandleFrame routes one classified frame.
//
// While a response is running, frames feed the barge-in debounce. A
// confirmed interruption cancels the task, notifies the client so playback
// stops, and seeds the segmenter with the full debounce window so the
// first word of the interruption is kept.
//
// Otherwise frames feed the segmenter, and a completed turn starts the
// response pipeline.
func (r *Router) HandleFrame(d vad.Decision, f segment.Frame) {
	if r.orch.Running() {
		if window, ok := r.bargeIn.Observe(d, f); ok {
			log.Printf("[Dialog] Barge-in detected: interrupting")
			_, span := trace.InstrumentBargeIn(context.Background(), r.sess.ID)
			span.End()
			r.orch.CancelActive()
			if err := r.sink.SendInterrupt(); err != nil {
				log.Printf("[Dialog] Failed to send interrupt: %v", err)
			}
			r.seg.SeedActive(window...)
		}
		return
	}

	r.bargeIn.Reset()
	if turn, ok := r.seg.Push(d, f); ok {
		log.Printf("[Dialog] Turn complete (%.2fs), starting response", turn.Duration().Seconds())
		_, span := trace.InstrumentTurnStart(context.Background(), r.sess.ID, r.sess.Language(), turn.Duration().Seconds())
		span.End()
		r.orch.StartTurn(turn, r.sess, r.sink)
	}
}

// Close cancels any in-flight response.
func (r *Router) Close() {
	r.orch.CancelActive()
}
