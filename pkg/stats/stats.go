// Package stats tracks cumulative usage of the voice pipeline: estimated
// token spend and synthesized speech time, persisted as a small JSON file
// that survives restarts and feeds the analytics endpoint.
package stats

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// recentSessionLimit caps the per-session log kept for the analytics
	// graph.
	recentSessionLimit = 50

	// defaultBudgetHours is the speech-time allowance the usage bar is
	// drawn against.
	defaultBudgetHours = 50
)

// Interaction is one completed exchange: what the user said and what the
// assistant replied.
type Interaction struct {
	UserText  string
	ReplyText string
}

// SessionEntry is one row of the recent-session log.
type SessionEntry struct {
	Timestamp string  `json:"timestamp"`
	Tokens    int     `json:"tokens"`
	Duration  float64 `json:"duration"`
}

// fileState is the on-disk layout.
type fileState struct {
	TotalTokens          int            `json:"total_tokens"`
	TotalDurationSeconds float64        `json:"total_duration_seconds"`
	TotalInteractions    int            `json:"total_interactions"`
	Sessions             []SessionEntry `json:"sessions"`
}

// Snapshot is the aggregate view served to clients.
type Snapshot struct {
	TotalTokens    int            `json:"total_tokens"`
	TotalHours     float64        `json:"total_hours"`
	Interactions   int            `json:"interactions"`
	UsagePercent   int            `json:"usage_percent"`
	RecentSessions []SessionEntry `json:"recent_sessions"`
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	// Path of the JSON stats file. Default stats.json.
	Path string

	// BudgetHours is the allowance UsagePercent is computed against.
	// Default 50.
	BudgetHours float64

	// QueueSize is the record queue depth. Default 64.
	QueueSize int
}

// DefaultRecorderConfig returns the default recorder configuration.
func DefaultRecorderConfig() RecorderConfig {
	return RecorderConfig{
		Path:        "stats.json",
		BudgetHours: defaultBudgetHours,
		QueueSize:   64,
	}
}

// Recorder accumulates usage off the hot path. Record hands the interaction
// to a worker goroutine; the response pipeline never waits on disk.
type Recorder struct {
	cfg   RecorderConfig
	queue chan Interaction
	done  chan struct{}

	mu    sync.RWMutex
	state fileState
}

// NewRecorder loads existing stats from disk (a missing or corrupt file
// starts fresh) and starts the persistence worker.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	def := DefaultRecorderConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.BudgetHours <= 0 {
		cfg.BudgetHours = def.BudgetHours
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}

	r := &Recorder{
		cfg:   cfg,
		queue: make(chan Interaction, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	r.load()

	go r.run()
	return r, nil
}

// Record queues one interaction for accounting. When the queue is full the
// interaction is dropped rather than stalling the caller.
func (r *Recorder) Record(it Interaction) {
	select {
	case r.queue <- it:
	default:
		log.Printf("[Stats] Queue full, dropping interaction")
	}
}

// Snapshot returns the current aggregate view.
func (r *Recorder) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	budgetSeconds := r.cfg.BudgetHours * 3600
	percent := int(r.state.TotalDurationSeconds / budgetSeconds * 100)
	if percent > 100 {
		percent = 100
	}

	sessions := make([]SessionEntry, len(r.state.Sessions))
	copy(sessions, r.state.Sessions)

	return Snapshot{
		TotalTokens:    r.state.TotalTokens,
		TotalHours:     roundHundredths(r.state.TotalDurationSeconds / 3600),
		Interactions:   r.state.TotalInteractions,
		UsagePercent:   percent,
		RecentSessions: sessions,
	}
}

// Close drains the queue and stops the worker.
func (r *Recorder) Close() {
	close(r.queue)
	<-r.done
}

func (r *Recorder) run() {
	defer close(r.done)
	for it := range r.queue {
		r.apply(it)
		if err := r.save(); err != nil {
			log.Printf("[Stats] Failed to persist stats: %v", err)
		}
	}
}

func (r *Recorder) apply(it Interaction) {
	tokens := EstimateTokens(it.UserText, it.ReplyText)
	duration := EstimateSpeechSeconds(it.ReplyText)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.state.TotalTokens += tokens
	r.state.TotalDurationSeconds += duration
	r.state.TotalInteractions++

	r.state.Sessions = append(r.state.Sessions, SessionEntry{
		Timestamp: time.Now().Format(time.RFC3339),
		Tokens:    tokens,
		Duration:  duration,
	})
	if len(r.state.Sessions) > recentSessionLimit {
		r.state.Sessions = r.state.Sessions[len(r.state.Sessions)-recentSessionLimit:]
	}
}

func (r *Recorder) load() {
	data, err := os.ReadFile(r.cfg.Path)
	if err != nil {
		return
	}
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Printf("[Stats] Ignoring corrupt stats file %s: %v", r.cfg.Path, err)
		return
	}
	r.state = state
}

func (r *Recorder) save() error {
	r.mu.RLock()
	data, err := json.MarshalIndent(r.state, "", "    ")
	r.mu.RUnlock()
	if err != nil {
		return err
	}

	// Write-then-rename keeps the file parseable if we crash mid-write.
	tmp := r.cfg.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		if dir := filepath.Dir(r.cfg.Path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0755); mkErr == nil {
				if err = os.WriteFile(tmp, data, 0644); err == nil {
					return os.Rename(tmp, r.cfg.Path)
				}
			}
		}
		return fmt.Errorf("failed to write stats file: %w", err)
	}
	return os.Rename(tmp, r.cfg.Path)
}

// EstimateTokens approximates LLM token spend for one exchange as 1.3
// tokens per whitespace-separated word across both sides.
func EstimateTokens(userText, replyText string) int {
	words := len(strings.Fields(userText)) + len(strings.Fields(replyText))
	return int(float64(words) * 1.3)
}

// EstimateSpeechSeconds approximates synthesized speech time at 0.08
// seconds per character of reply text.
func EstimateSpeechSeconds(replyText string) float64 {
	return float64(len(replyText)) * 0.08
}

func roundHundredths(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
