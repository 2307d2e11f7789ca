package camera

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const rawExt = ".avi"

// RecordVideo tears down whatever holds the camera, records for exactly
// duration into dir and returns the final path. The result is an mp4 when
// transcoding succeeds and the raw file otherwise. Any camera failure yields
// an empty path and an error wrapping ErrUnavailable. Not cancellable.
func (a *Arbiter) RecordVideo(duration time.Duration, dir string) (string, error) {
	a.recording.mark(duration, a.clock.Now())
	defer a.recording.End()

	if !a.device.Available() {
		return "", ErrUnavailable
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create recording directory: %w", err)
	}

	name := "recording_" + a.clock.Now().Format("20060102_150405") + rawExt
	raw := filepath.Join(dir, name)

	lease, err := a.claim(ModeRecord)
	if err != nil {
		return "", err
	}
	if err := a.withSession(lease, func(s Session) error { return s.StartEncoder(raw) }); err != nil {
		a.release(lease)
		if errors.Is(err, ErrUnavailable) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	a.logger.Info().
		Str("path", raw).
		Dur("duration", duration).
		Msg("Recording started")

	a.clock.Sleep(duration)
	a.release(lease)

	return a.finalize(raw), nil
}

// finalize converts raw into an mp4, keeping raw if that fails.
func (a *Arbiter) finalize(raw string) string {
	if a.transcoder == nil {
		return raw
	}
	mp4 := strings.TrimSuffix(raw, rawExt) + ".mp4"
	if err := a.transcoder.Transcode(raw, mp4); err != nil {
		a.logger.Warn().Err(err).Str("raw", raw).Msg("Keeping raw recording")
		return raw
	}
	if err := os.Remove(raw); err != nil {
		a.logger.Debug().Err(err).Str("raw", raw).Msg("Failed to remove raw recording")
	}
	a.logger.Info().Str("path", mp4).Msg("Recording finalized")
	return mp4
}
