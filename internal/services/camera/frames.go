package camera

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gocv.io/x/gocv"
)

// CapturePhoto writes a still to path. If the camera cannot deliver one, the
// placeholder is written instead and placeholder is true. Only a failure to
// write the placeholder itself is returned.
func (a *Arbiter) CapturePhoto(path string) (placeholder bool, err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create photo directory: %w", err)
	}

	if a.device.Available() && !a.recording.Active() {
		err := a.captureStill(path)
		if err == nil {
			return false, nil
		}
		a.logger.Warn().Err(err).Str("path", path).Msg("Still capture failed, writing placeholder")
	}

	if err := os.WriteFile(path, a.Placeholder(), 0o644); err != nil {
		return true, fmt.Errorf("failed to write placeholder photo: %w", err)
	}
	return true, nil
}

func (a *Arbiter) captureStill(path string) error {
	mat, err := a.grab()
	if err != nil {
		return err
	}
	defer mat.Close()

	if !gocv.IMWrite(path, mat) {
		return fmt.Errorf("failed to write %s", path)
	}
	return nil
}

// grab takes one frame from the open session, or opens a still session when
// nothing is open. A session replaced between lookup and grab is looked up
// once more.
func (a *Arbiter) grab() (gocv.Mat, error) {
	lease, ok := a.current()
	if !ok {
		var err error
		if lease, err = a.claimShared(); err != nil {
			return gocv.Mat{}, err
		}
	}

	mat, err := a.grabWith(lease)
	if errors.Is(err, ErrLeaseRevoked) {
		if lease, err = a.claimShared(); err != nil {
			return gocv.Mat{}, err
		}
		mat, err = a.grabWith(lease)
	}
	return mat, err
}

func (a *Arbiter) grabWith(lease Lease) (gocv.Mat, error) {
	var mat gocv.Mat
	err := a.withSession(lease, func(s Session) error {
		m, err := s.Grab()
		if err != nil {
			return err
		}
		mat = m
		return nil
	})
	if err != nil {
		return gocv.Mat{}, err
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, errors.New("empty frame")
	}
	return mat, nil
}

// GetFrame returns a frame for analysis. A fresh stream frame is preferred so
// viewers and the detector share one session. It reports false while a
// recording holds the camera or when capture fails; the returned Mat is only
// valid (and must be closed) when ok is true.
func (a *Arbiter) GetFrame() (gocv.Mat, bool) {
	if a.recording.Active() {
		return gocv.Mat{}, false
	}

	if jpeg, ok := a.stream.fresh(a.clock.Now(), a.opts.FreshFrameMaxAge); ok {
		if mat, err := gocv.IMDecode(jpeg, gocv.IMReadColor); err == nil {
			if !mat.Empty() {
				return mat, true
			}
			mat.Close()
		}
	}

	if !a.device.Available() {
		mat, err := gocv.IMDecode(a.Placeholder(), gocv.IMReadColor)
		if err != nil {
			return gocv.Mat{}, false
		}
		return mat, true
	}

	mat, err := a.grab()
	if err != nil {
		a.logger.Debug().Err(err).Msg("Frame capture failed")
		return gocv.Mat{}, false
	}
	return mat, true
}
