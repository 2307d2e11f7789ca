package camera

import (
	"sync"
	"time"
)

// RecordingState is written by the recorder and read by the stream loop and
// the motion detector.
type RecordingState struct {
	mu          sync.RWMutex
	isRecording bool
	duration    time.Duration
	startedAt   time.Time
}

type RecordingSnapshot struct {
	IsRecording bool      `json:"is_recording"`
	DurationSec int       `json:"duration"`
	StartedAt   time.Time `json:"start_time,omitempty"`
}

// TryBegin reserves the recorder. It reports false if a recording is already
// in progress.
func (r *RecordingState) TryBegin(d time.Duration, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRecording {
		return false
	}
	r.isRecording = true
	r.duration = d
	r.startedAt = now
	return true
}

func (r *RecordingState) mark(d time.Duration, now time.Time) {
	r.mu.Lock()
	r.isRecording = true
	r.duration = d
	r.startedAt = now
	r.mu.Unlock()
}

func (r *RecordingState) End() {
	r.mu.Lock()
	r.isRecording = false
	r.mu.Unlock()
}

func (r *RecordingState) Active() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.isRecording
}

func (r *RecordingState) Snapshot() RecordingSnapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return RecordingSnapshot{
		IsRecording: r.isRecording,
		DurationSec: int(r.duration / time.Second),
		StartedAt:   r.startedAt,
	}
}
