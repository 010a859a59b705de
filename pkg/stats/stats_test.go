package stats

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stats.json")
	r, err := NewRecorder(RecorderConfig{Path: path})
	require.NoError(t, err)
	return r, path
}

func waitForInteractions(t *testing.T, r *Recorder, n int) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if snap := r.Snapshot(); snap.Interactions >= n {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("recorder never reached %d interactions", n)
	return Snapshot{}
}

func TestEstimateTokens(t *testing.T) {
	// 2 user words + 3 reply words, 1.3 tokens per word.
	assert.Equal(t, 6, EstimateTokens("hello there", "hi how goes"))
	assert.Equal(t, 0, EstimateTokens("", ""))
}

func TestEstimateSpeechSeconds(t *testing.T) {
	assert.InDelta(t, 0.8, EstimateSpeechSeconds("0123456789"), 0.0001)
}

func TestRecorderAccumulates(t *testing.T) {
	r, _ := newTestRecorder(t)
	defer r.Close()

	r.Record(Interaction{UserText: "hello there", ReplyText: "hi how goes"})
	snap := waitForInteractions(t, r, 1)

	assert.Equal(t, 6, snap.TotalTokens)
	assert.Equal(t, 1, snap.Interactions)
	require.Len(t, snap.RecentSessions, 1)
	assert.Equal(t, 6, snap.RecentSessions[0].Tokens)
}

func TestRecorderPersistsAndReloads(t *testing.T) {
	r, path := newTestRecorder(t)
	r.Record(Interaction{UserText: "one two", ReplyText: "three four five"})
	waitForInteractions(t, r, 1)
	r.Close()

	// File on disk matches the on-disk schema.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var raw map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "total_tokens")
	assert.Contains(t, raw, "total_duration_seconds")
	assert.Contains(t, raw, "total_interactions")
	assert.Contains(t, raw, "sessions")

	// A new recorder picks up where the old one stopped.
	r2, err := NewRecorder(RecorderConfig{Path: path})
	require.NoError(t, err)
	defer r2.Close()

	snap := r2.Snapshot()
	assert.Equal(t, 1, snap.Interactions)
	assert.Equal(t, 6, snap.TotalTokens)
}

func TestRecorderKeepsLastFiftySessions(t *testing.T) {
	r, _ := newTestRecorder(t)
	defer r.Close()

	for i := 0; i < 55; i++ {
		r.Record(Interaction{UserText: "a", ReplyText: "b"})
	}
	snap := waitForInteractions(t, r, 55)

	assert.Equal(t, 55, snap.Interactions)
	assert.Len(t, snap.RecentSessions, 50)
}

func TestRecorderIgnoresCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	r, err := NewRecorder(RecorderConfig{Path: path})
	require.NoError(t, err)
	defer r.Close()

	snap := r.Snapshot()
	assert.Equal(t, 0, snap.Interactions)
	assert.Equal(t, 0, snap.UsagePercent)
}

func TestSnapshotUsagePercentCapped(t *testing.T) {
	r, _ := newTestRecorder(t)
	defer r.Close()

	r.mu.Lock()
	r.state.TotalDurationSeconds = 100 * 3600 // double the 50h budget
	r.mu.Unlock()

	assert.Equal(t, 100, r.Snapshot().UsagePercent)
}
