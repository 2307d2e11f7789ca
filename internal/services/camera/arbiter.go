package camera

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spicam-server/internal/clock"
)

// Lease identifies one grant of the device. It stops working as soon as the
// device is handed to someone else.
type Lease struct {
	gen  uint64
	mode Mode
}

func (l Lease) Mode() Mode { return l.mode }

// Arbiter owns the single camera session and decides who may use it.
// Recording always wins over streaming and stills.
type Arbiter struct {
	opts       Options
	device     Device
	clock      clock.Clock
	transcoder Transcoder
	logger     zerolog.Logger

	// claimMu serialises close, settle and open sequences.
	claimMu sync.Mutex

	mu      sync.Mutex
	session Session
	owner   Mode
	gen     uint64

	recording *RecordingState
	stream    *streamState

	nextStreamID uint64

	placeholderOnce sync.Once
	placeholder     []byte
}

func NewArbiter(opts Options, device Device, clk clock.Clock, transcoder Transcoder, logger zerolog.Logger) *Arbiter {
	if opts.OpenAttempts < 1 {
		opts.OpenAttempts = 1
	}
	return &Arbiter{
		opts:       opts,
		device:     device,
		clock:      clk,
		transcoder: transcoder,
		logger:     logger,
		recording:  &RecordingState{},
		stream:     &streamState{},
	}
}

func (a *Arbiter) Recording() *RecordingState { return a.recording }

func (a *Arbiter) Available() bool { return a.device.Available() }

// Owner reports the mode of the live session, or ModeNone.
func (a *Arbiter) Owner() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.owner
}

func (a *Arbiter) StreamActive() bool { return a.stream.isActive() }

// LatestFrameAge reports how old the last published stream frame is.
func (a *Arbiter) LatestFrameAge() (time.Duration, bool) {
	ts := a.stream.latestTs()
	if ts.IsZero() {
		return 0, false
	}
	return a.clock.Now().Sub(ts), true
}

// claim closes whatever is open, waits for the device to settle and opens a
// session for mode. Busy devices are retried with exponential backoff.
func (a *Arbiter) claim(mode Mode) (Lease, error) {
	if !a.device.Available() {
		return Lease{}, ErrUnavailable
	}

	a.claimMu.Lock()
	defer a.claimMu.Unlock()
	return a.claimLocked(mode)
}

// claimShared returns a lease on the open stream or still session and only
// opens a still session when nothing is open. The lookup happens under claimMu
// so a stream that is still settling is reused rather than replaced.
func (a *Arbiter) claimShared() (Lease, error) {
	if !a.device.Available() {
		return Lease{}, ErrUnavailable
	}

	a.claimMu.Lock()
	defer a.claimMu.Unlock()
	if lease, ok := a.current(); ok {
		return lease, nil
	}
	return a.claimLocked(ModeStill)
}

// claimLocked requires claimMu.
func (a *Arbiter) claimLocked(mode Mode) (Lease, error) {
	if mode != ModeRecord && (a.recording.Active() || a.Owner() == ModeRecord) {
		return Lease{}, ErrRecordingActive
	}

	a.closeQuietly(a.detach())
	a.clock.Sleep(a.opts.SettleDelay)

	var lastErr error
	for attempt := 0; attempt < a.opts.OpenAttempts; attempt++ {
		if attempt > 0 {
			delay := CalculateBackoffDelay(attempt, a.opts.OpenRetryBase, a.opts.OpenRetryMax)
			a.logger.Debug().
				Str("mode", mode.String()).
				Int("attempt", attempt+1).
				Dur("delay", delay).
				Msg("Retrying camera open")
			a.clock.Sleep(delay)
		}

		s, err := a.openSafe(mode)
		if err == nil {
			a.mu.Lock()
			a.gen++
			a.session = s
			a.owner = mode
			lease := Lease{gen: a.gen, mode: mode}
			a.mu.Unlock()

			a.logger.Debug().Str("owner", mode.String()).Msg("Camera session opened")
			return lease, nil
		}
		lastErr = err
		if !errors.Is(err, ErrDeviceBusy) {
			break
		}
	}

	a.logger.Warn().Err(lastErr).Str("mode", mode.String()).Msg("Failed to open camera")
	if errors.Is(lastErr, ErrUnavailable) {
		return Lease{}, lastErr
	}
	return Lease{}, fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
}

func (a *Arbiter) openSafe(mode Mode) (s Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = fmt.Errorf("%w: panic during open: %v", ErrUnavailable, r)
		}
	}()
	return a.device.Open(mode)
}

// detach takes the session out of the arbiter and revokes every lease.
func (a *Arbiter) detach() Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.session
	a.session = nil
	a.owner = ModeNone
	a.gen++
	return s
}

// release closes the session if lease still owns it. It holds claimMu so no
// claim can open the device before the close completes.
func (a *Arbiter) release(l Lease) bool {
	a.claimMu.Lock()
	defer a.claimMu.Unlock()

	a.mu.Lock()
	if a.session == nil || a.gen != l.gen {
		a.mu.Unlock()
		return false
	}
	s := a.session
	a.session = nil
	a.owner = ModeNone
	a.gen++
	a.mu.Unlock()

	a.closeQuietly(s)
	a.logger.Debug().Str("owner", l.mode.String()).Msg("Camera session released")
	return true
}

// current returns a lease on the open non-recording session, if any.
func (a *Arbiter) current() (Lease, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session == nil || a.owner == ModeRecord {
		return Lease{}, false
	}
	return Lease{gen: a.gen, mode: a.owner}, true
}

// withSession runs fn against the session if lease is still current.
// Panics from the capture binding surface as ErrUnavailable.
func (a *Arbiter) withSession(l Lease, fn func(Session) error) (err error) {
	a.mu.Lock()
	if a.session == nil || a.gen != l.gen {
		a.mu.Unlock()
		return ErrLeaseRevoked
	}
	s := a.session
	a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrUnavailable, r)
		}
	}()
	return fn(s)
}

// closeQuietly attempts every teardown step even when earlier ones fail.
func (a *Arbiter) closeQuietly(s Session) {
	if s == nil {
		return
	}
	steps := []struct {
		name string
		fn   func() error
	}{
		{"stop_encoder", s.StopEncoder},
		{"stop", s.Stop},
		{"close", s.Close},
	}
	for _, step := range steps {
		if err := safeCall(step.fn); err != nil {
			a.logger.Debug().Err(err).Str("step", step.name).Msg("Camera teardown step failed")
		}
	}
}

func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

// StopStreaming asks the running stream to end and forcibly releases a
// streaming session.
func (a *Arbiter) StopStreaming() {
	a.stream.requestStop()

	a.mu.Lock()
	owner, gen := a.owner, a.gen
	a.mu.Unlock()
	if owner == ModeStream {
		a.release(Lease{gen: gen, mode: ModeStream})
	}
	a.logger.Info().Msg("Stream stop requested")
}

// Shutdown closes any open session.
func (a *Arbiter) Shutdown() {
	a.stream.requestStop()
	a.claimMu.Lock()
	defer a.claimMu.Unlock()
	a.closeQuietly(a.detach())
}

// CalculateBackoffDelay returns base*2^(attempt-1) clamped to max, with up to
// 20% jitter either way.
func CalculateBackoffDelay(attempt int, base, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := time.Duration(float64(base) * math.Pow(2, float64(attempt-1)))
	if max > 0 && delay > max {
		delay = max
	}
	jitter := time.Duration(float64(delay) * 0.2 * (rand.Float64()*2 - 1))
	return delay + jitter
}
