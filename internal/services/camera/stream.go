package camera

import (
	"errors"
	"sync/atomic"
	"time"
)

type TickKind int

const (
	// TickFrame carries a new camera frame.
	TickFrame TickKind = iota
	// TickPlaceholder carries the placeholder image.
	TickPlaceholder
	// TickIdle means the encoder produced nothing new; emit nothing.
	TickIdle
	// TickStale ends the stream because frames stopped arriving.
	TickStale
	// TickStop ends the stream.
	TickStop
)

func (k TickKind) String() string {
	switch k {
	case TickFrame:
		return "frame"
	case TickPlaceholder:
		return "placeholder"
	case TickIdle:
		return "idle"
	case TickStale:
		return "stale"
	default:
		return "stop"
	}
}

type Tick struct {
	Kind TickKind
	JPEG []byte
}

// Done reports whether the stream has ended.
func (t Tick) Done() bool { return t.Kind == TickStale || t.Kind == TickStop }

type streamPhase int

const (
	phaseStart streamPhase = iota
	phaseWaitRecording
	phaseAcquire
	phaseStreaming
	phasePaused
	phaseFallback
	phaseNoCamera
	phaseDone
)

// StreamSession produces the frames of one live-preview response. It is
// driven by calling Next until a tick reports Done, and must be closed.
// Not safe for concurrent use.
type StreamSession struct {
	a     *Arbiter
	id    uint64
	phase streamPhase
	lease Lease
	held  bool

	wait      time.Duration
	startedAt time.Time
	lastSeq   uint64
	lastSeqAt time.Time
}

// AcquireForStreaming returns a producer for one MJPEG response. The camera
// is only touched on the first call to Next.
func (a *Arbiter) AcquireForStreaming() *StreamSession {
	return &StreamSession{
		a:  a,
		id: atomic.AddUint64(&a.nextStreamID, 1),
	}
}

// Next waits out the previous tick's interval and returns the next tick.
func (s *StreamSession) Next() Tick {
	if s.wait > 0 {
		s.a.clock.Sleep(s.wait)
		s.wait = 0
	}

	a := s.a
	for {
		switch s.phase {
		case phaseStart:
			if !a.device.Available() {
				a.stream.begin()
				s.phase = phaseNoCamera
				continue
			}
			if !a.stream.reserveStart(a.clock.Now(), a.opts.Debounce) {
				a.logger.Debug().Msg("Stream request debounced")
				s.phase = phaseDone
				return s.placeholder(0)
			}
			s.phase = phaseWaitRecording

		case phaseWaitRecording:
			if a.recording.Active() {
				return s.placeholder(a.opts.RecordingPoll)
			}
			s.phase = phaseAcquire

		case phaseAcquire:
			if a.stream.stopPending() {
				s.finish()
				return Tick{Kind: TickStop}
			}
			if !s.acquire() {
				continue
			}
			s.phase = phaseStreaming

		case phaseStreaming:
			return s.stream()

		case phasePaused:
			if a.stream.stopPending() {
				s.finish()
				return Tick{Kind: TickStop}
			}
			if a.recording.Active() {
				return s.placeholder(a.opts.RecordingPoll)
			}
			a.logger.Info().Msg("Recording finished, resuming stream")
			s.phase = phaseAcquire

		case phaseFallback:
			if a.stream.stopPending() {
				s.finish()
				return Tick{Kind: TickStop}
			}
			return s.placeholder(a.opts.RecordingPoll)

		case phaseNoCamera:
			if a.stream.stopPending() {
				s.finish()
				return Tick{Kind: TickStop}
			}
			return s.placeholder(a.opts.PlaceholderInterval)

		default:
			return Tick{Kind: TickStop}
		}
	}
}

// acquire opens the stream session and starts its encoder. On failure it
// moves to the next phase itself and reports false.
func (s *StreamSession) acquire() bool {
	a := s.a
	lease, err := a.claim(ModeStream)
	if err != nil {
		if errors.Is(err, ErrRecordingActive) {
			s.phase = phaseWaitRecording
			return false
		}
		a.logger.Warn().Err(err).Msg("Stream acquisition failed, serving placeholder")
		s.phase = phaseFallback
		return false
	}
	if err := a.withSession(lease, func(sess Session) error { return sess.StartEncoder("") }); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to start stream encoder")
		a.release(lease)
		s.phase = phaseFallback
		return false
	}

	now := a.clock.Now()
	s.lease = lease
	s.held = true
	s.startedAt = now
	s.lastSeq = 0
	s.lastSeqAt = now
	a.stream.started(s.id, now)
	a.logger.Info().Msg("Stream started")
	return true
}

func (s *StreamSession) stream() Tick {
	a := s.a
	if a.stream.stopPending() {
		s.finish()
		return Tick{Kind: TickStop}
	}

	if a.recording.Active() {
		s.pause()
		return s.placeholder(a.opts.RecordingPoll)
	}

	var (
		jpeg []byte
		seq  uint64
	)
	err := a.withSession(s.lease, func(sess Session) error {
		jpeg, seq = sess.Latest()
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrLeaseRevoked) && a.recording.Active() {
			s.held = false
			s.phase = phasePaused
			return s.placeholder(a.opts.RecordingPoll)
		}
		a.logger.Info().Err(err).Msg("Stream lost the camera")
		s.finish()
		return Tick{Kind: TickStop}
	}

	now := a.clock.Now()
	s.wait = a.opts.FrameInterval
	if len(jpeg) > 0 && seq != s.lastSeq {
		s.lastSeq = seq
		s.lastSeqAt = now
		a.stream.publish(jpeg, now, a.opts.LatestFrameInterval)
		return Tick{Kind: TickFrame, JPEG: jpeg}
	}

	if now.Sub(s.startedAt) > a.opts.Warmup && now.Sub(s.lastSeqAt) > a.opts.Stale {
		a.logger.Warn().
			Dur("since_last_frame", now.Sub(s.lastSeqAt)).
			Msg("Stream stale, closing camera")
		s.finish()
		return Tick{Kind: TickStale}
	}
	return Tick{Kind: TickIdle}
}

// pause hands the device over to a recording that started mid-stream.
func (s *StreamSession) pause() {
	a := s.a
	if s.held {
		if err := a.withSession(s.lease, func(sess Session) error { return sess.StopEncoder() }); err != nil {
			a.logger.Debug().Err(err).Msg("Stop encoder before pause failed")
		}
		a.release(s.lease)
		s.held = false
	}
	a.logger.Info().Msg("Recording started, pausing stream")
	s.phase = phasePaused
}

func (s *StreamSession) placeholder(wait time.Duration) Tick {
	s.wait = wait
	return Tick{Kind: TickPlaceholder, JPEG: s.a.Placeholder()}
}

func (s *StreamSession) finish() {
	if s.phase == phaseDone {
		return
	}
	if s.held {
		s.a.release(s.lease)
		s.held = false
	}
	s.a.stream.finished(s.id)
	s.phase = phaseDone
}

// Close releases the camera if this stream still holds it. Safe to call
// more than once.
func (s *StreamSession) Close() {
	s.finish()
}
