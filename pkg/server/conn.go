package server

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/voxline/voxline/pkg/dialog"
	"github.com/voxline/voxline/pkg/segment"
	"github.com/voxline/voxline/pkg/vad"
)

// clientMessage is a text-frame control message from the browser.
type clientMessage struct {
	Type string `json:"type"`
	Lang string `json:"lang"`
}

// outboundEvent is a text-frame event to the browser.
type outboundEvent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// connSession owns one WebSocket connection and its pipeline instances.
type connSession struct {
	id        string
	conn      *websocket.Conn
	sink      *wsSink
	session   *dialog.Session
	vadEngine vad.Engine
	assembler *segment.FrameAssembler
	router    *dialog.Router

	closeOnce sync.Once
}

// newConnSession builds the per-connection pipeline: VAD engine, frame
// assembler sized to it, segmenter, barge-in controller and orchestrator.
func (s *Server) newConnSession(conn *websocket.Conn) (*connSession, error) {
	vadEngine, err := s.vadFactory()
	if err != nil {
		return nil, err
	}

	assemblerCfg := s.config.Assembler
	assemblerCfg.FrameSize = vadEngine.FrameSize()
	assembler, err := segment.NewFrameAssembler(assemblerCfg)
	if err != nil {
		vadEngine.Close()
		return nil, err
	}

	sink := &wsSink{conn: conn}
	session := dialog.NewSession(s.config.DefaultLanguage)
	orch := dialog.NewOrchestrator(dialog.OrchestratorConfig{
		STT:   s.engines.STT,
		LLM:   s.engines.LLM,
		TTS:   s.engines.TTS,
		Stats: s.stats,
	})
	router := dialog.NewRouter(
		segment.NewSegmenter(s.config.Segmenter),
		dialog.NewBargeInController(s.config.BargeInThreshold),
		orch,
		session,
		sink,
	)

	return &connSession{
		id:        uuid.NewString(),
		conn:      conn,
		sink:      sink,
		session:   session,
		vadEngine: vadEngine,
		assembler: assembler,
		router:    router,
	}, nil
}

// run reads messages until the connection drops or the server shuts down.
// Text frames carry configuration; binary frames carry audio.
func (c *connSession) run(ctx context.Context) {
	defer c.close()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msgType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Server] [session %s] read error: %v", c.id, err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			c.handleControl(data)
		case websocket.BinaryMessage:
			c.handleAudio(data)
		}
	}
}

func (c *connSession) handleControl(data []byte) {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("[Server] [session %s] bad control message: %v", c.id, err)
		return
	}
	if msg.Type == "config" && msg.Lang != "" {
		c.session.SetLanguage(msg.Lang)
		log.Printf("[Server] [session %s] language set to %s", c.id, c.session.Language())
	}
}

func (c *connSession) handleAudio(data []byte) {
	frames, err := c.assembler.Push(data)
	if err != nil {
		log.Printf("[Server] [session %s] audio decode failed: %v", c.id, err)
		return
	}

	for _, frame := range frames {
		decision, err := c.vadEngine.Classify(frame.Samples)
		if err != nil {
			log.Printf("[Server] [session %s] VAD failed: %v", c.id, err)
			continue
		}
		c.router.HandleFrame(decision, frame)
	}
}

// close tears the session down: cancels any in-flight response and releases
// the decoder and model resources.
func (c *connSession) close() {
	c.closeOnce.Do(func() {
		c.router.Close()
		c.assembler.Close()
		if err := c.vadEngine.Close(); err != nil {
			log.Printf("[Server] [session %s] VAD close failed: %v", c.id, err)
		}
		c.conn.Close()
	})
}

// wsSink writes outbound events to the WebSocket. gorilla allows one
// concurrent writer, so every write goes through the mutex; the orchestrator
// calling sequentially plus interrupt events from the ingestion loop are the
// two writers.
type wsSink struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

var _ dialog.Sink = (*wsSink)(nil)

func (s *wsSink) SendInterrupt() error {
	return s.sendJSON(outboundEvent{Type: "interrupt"})
}

func (s *wsSink) SendUserTranscription(text string) error {
	return s.sendJSON(outboundEvent{Type: "user_transcription", Text: sanitizeQuotes(text)})
}

func (s *wsSink) SendAIResponse(text string) error {
	return s.sendJSON(outboundEvent{Type: "ai_response", Text: sanitizeQuotes(text)})
}

func (s *wsSink) SendAudio(audio []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, audio)
}

func (s *wsSink) sendJSON(event outboundEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// sanitizeQuotes swaps double quotes for single ones so generated text can
// never break the client's event parsing.
func sanitizeQuotes(text string) string {
	return strings.ReplaceAll(text, `"`, "'")
}
