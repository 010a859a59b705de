// Package server exposes the voice pipeline over WebSocket: binary frames
// in, ordered interrupt/transcript/audio/response events out, plus small
// HTTP endpoints for health and usage stats.
package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxline/voxline/pkg/dialog"
	"github.com/voxline/voxline/pkg/engine"
	"github.com/voxline/voxline/pkg/segment"
	"github.com/voxline/voxline/pkg/stats"
	"github.com/voxline/voxline/pkg/trace"
	"github.com/voxline/voxline/pkg/vad"
)

// Config holds the configuration for the WebSocket voice server.
type Config struct {
	// Addr is the address to listen on (e.g., ":8000").
	Addr string

	// Path is the WebSocket endpoint path.
	Path string

	// AuthToken is the bearer token for authentication.
	// If empty, authentication is disabled.
	AuthToken string

	// MaxSessionsPerIP limits sessions per IP address. 0 means no limit.
	MaxSessionsPerIP int

	// DefaultLanguage is the initial session language (auto, en, tr).
	DefaultLanguage string

	// Assembler configures inbound chunk framing. FrameSize is overridden
	// per connection by the VAD engine's frame size.
	Assembler segment.AssemblerConfig

	// Segmenter configures turn boundary detection.
	Segmenter segment.SegmenterConfig

	// BargeInThreshold is the interruption debounce frame count.
	// 0 uses the dialog default.
	BargeInThreshold int

	// ReadBufferSize is the WebSocket read buffer size.
	ReadBufferSize int

	// WriteBufferSize is the WebSocket write buffer size.
	WriteBufferSize int
}

// DefaultConfig returns the default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Addr:             ":8000",
		Path:             "/websocket/offer",
		MaxSessionsPerIP: 10,
		DefaultLanguage:  dialog.LanguageEnglish,
		Assembler:        segment.DefaultAssemblerConfig(),
		Segmenter:        segment.DefaultSegmenterConfig(),
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
	}
}

// Engines bundles the AI backends shared by every connection.
type Engines struct {
	STT engine.STT
	LLM engine.LLM
	TTS engine.TTS
}

// VADFactory creates a voice activity engine for one connection. The engine
// carries per-stream state, so connections never share one.
type VADFactory func() (vad.Engine, error)

// Server is the WebSocket voice pipeline server.
type Server struct {
	config     *Config
	engines    Engines
	vadFactory VADFactory
	stats      *stats.Recorder

	// Session management
	sessions   map[string]*connSession
	sessionsMu sync.RWMutex

	// IP-based session counting
	ipSessions   map[string]int
	ipSessionsMu sync.RWMutex

	httpServer *http.Server
	mux        *http.ServeMux
	upgrader   websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
}

// NewServer creates a server. recorder may be nil to disable usage stats.
func NewServer(config *Config, engines Engines, vadFactory VADFactory, recorder *stats.Recorder) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		config:     config,
		engines:    engines,
		vadFactory: vadFactory,
		stats:      recorder,
		sessions:   make(map[string]*connSession),
		ipSessions: make(map[string]int),
		mux:        http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins; customize for production
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// RegisterHandler registers an HTTP handler on the server's mux.
// Must be called before Start().
func (s *Server) RegisterHandler(pattern string, handler http.HandlerFunc) {
	s.mux.HandleFunc(pattern, handler)
}

// Start starts the server.
func (s *Server) Start(ctx context.Context) error {
	s.mux.HandleFunc(s.config.Path, s.handleWebSocket)
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/stats", s.handleStats)

	s.httpServer = &http.Server{
		Addr:    s.config.Addr,
		Handler: s.mux,
	}

	log.Printf("[Server] starting on %s%s", s.config.Addr, s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		// Server started successfully
		return nil
	}
}

// Stop stops the server gracefully, cancelling in-flight responses.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()

	s.sessionsMu.Lock()
	for _, sess := range s.sessions {
		sess.close()
	}
	s.sessions = make(map[string]*connSession)
	s.sessionsMu.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// SessionCount returns the number of active sessions.
func (s *Server) SessionCount() int {
	s.sessionsMu.RLock()
	defer s.sessionsMu.RUnlock()
	return len(s.sessions)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"sessions": s.SessionCount(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.stats == nil {
		json.NewEncoder(w).Encode(stats.Snapshot{})
		return
	}
	json.NewEncoder(w).Encode(s.stats.Snapshot())
}

// handleWebSocket authenticates, enforces the per-IP cap and hands the
// upgraded connection to its session loop.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.AuthToken != "" {
		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token != s.config.AuthToken {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	clientIP := getClientIP(r)
	if s.config.MaxSessionsPerIP > 0 {
		s.ipSessionsMu.RLock()
		count := s.ipSessions[clientIP]
		s.ipSessionsMu.RUnlock()

		if count >= s.config.MaxSessionsPerIP {
			http.Error(w, "Too many sessions from this IP", http.StatusTooManyRequests)
			return
		}
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[Server] WebSocket upgrade failed: %v", err)
		return
	}

	sess, err := s.newConnSession(conn)
	if err != nil {
		log.Printf("[Server] Failed to set up session: %v", err)
		conn.Close()
		return
	}

	s.registerSession(sess, clientIP)
	defer s.unregisterSession(sess, clientIP)

	sess.run(s.ctx)
}

func (s *Server) registerSession(sess *connSession, clientIP string) {
	s.sessionsMu.Lock()
	s.sessions[sess.id] = sess
	s.sessionsMu.Unlock()

	s.ipSessionsMu.Lock()
	s.ipSessions[clientIP]++
	s.ipSessionsMu.Unlock()

	_, span := trace.InstrumentConnectionCreated(s.ctx, sess.id, "websocket")
	span.End()

	log.Printf("[Server] [session %s] connected from %s", sess.id, clientIP)
}

func (s *Server) unregisterSession(sess *connSession, clientIP string) {
	s.sessionsMu.Lock()
	delete(s.sessions, sess.id)
	s.sessionsMu.Unlock()

	s.ipSessionsMu.Lock()
	s.ipSessions[clientIP]--
	if s.ipSessions[clientIP] <= 0 {
		delete(s.ipSessions, clientIP)
	}
	s.ipSessionsMu.Unlock()

	_, span := trace.InstrumentConnectionClosed(context.Background(), sess.id, "websocket")
	span.End()

	log.Printf("[Server] [session %s] disconnected", sess.id)
}

func getClientIP(r *http.Request) string {
	// Check X-Forwarded-For header
	xff := r.Header.Get("X-Forwarded-For")
	if xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	// Check X-Real-IP header
	xri := r.Header.Get("X-Real-IP")
	if xri != "" {
		return xri
	}

	// Fall back to RemoteAddr
	return strings.Split(r.RemoteAddr, ":")[0]
}
