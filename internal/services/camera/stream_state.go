package camera

import (
	"sync"
	"time"
)

type streamState struct {
	mu            sync.Mutex
	active        bool
	activeID      uint64
	stopRequested bool
	lastStartTs   time.Time
	lastFrame     []byte
	lastFrameTs   time.Time
}

func (s *streamState) begin() {
	s.mu.Lock()
	s.stopRequested = false
	s.mu.Unlock()
}

// reserveStart records now as the latest start unless the previous one is
// within debounce. Only the caller that gets true may open the camera.
func (s *streamState) reserveStart(now time.Time, debounce time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastStartTs.IsZero() && now.Sub(s.lastStartTs) < debounce {
		return false
	}
	s.lastStartTs = now
	s.stopRequested = false
	return true
}

func (s *streamState) started(id uint64, now time.Time) {
	s.mu.Lock()
	s.active = true
	s.activeID = id
	s.lastStartTs = now
	s.mu.Unlock()
}

// finished clears the active flag only if id is still the active stream.
func (s *streamState) finished(id uint64) {
	s.mu.Lock()
	if s.activeID == id {
		s.active = false
		s.stopRequested = false
	}
	s.mu.Unlock()
}

func (s *streamState) requestStop() {
	s.mu.Lock()
	s.stopRequested = true
	s.active = false
	s.mu.Unlock()
}

func (s *streamState) stopPending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopRequested
}

func (s *streamState) isActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// publish stores jpeg as the latest frame at most once per interval.
// lastFrameTs never moves backwards.
func (s *streamState) publish(jpeg []byte, now time.Time, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastFrameTs.IsZero() && now.Sub(s.lastFrameTs) < interval {
		return
	}
	buf := make([]byte, len(jpeg))
	copy(buf, jpeg)
	s.lastFrame = buf
	s.lastFrameTs = now
}

// fresh returns the latest frame if it is no older than maxAge.
func (s *streamState) fresh(now time.Time, maxAge time.Duration) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastFrame == nil || now.Sub(s.lastFrameTs) > maxAge {
		return nil, false
	}
	return s.lastFrame, true
}

func (s *streamState) latestTs() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFrameTs
}
