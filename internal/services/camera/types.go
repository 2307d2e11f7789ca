package camera

import (
	"errors"
	"time"

	"gocv.io/x/gocv"

	"spicam-server/internal/config"
)

var (
	// ErrUnavailable means the hardware is absent, disabled or failed.
	ErrUnavailable = errors.New("camera not available")
	// ErrDeviceBusy is returned by Device.Open when the device is held
	// elsewhere. Opens failing this way are retried.
	ErrDeviceBusy = errors.New("camera device busy")
	// ErrTranscode marks a failed raw-to-mp4 conversion. The raw file is kept.
	ErrTranscode = errors.New("transcode failed")
	// ErrLeaseRevoked is returned when the device was handed to another owner.
	ErrLeaseRevoked = errors.New("camera lease revoked")
	// ErrRecordingActive is returned to stream and still claims while a
	// recording holds or has reserved the device.
	ErrRecordingActive = errors.New("recording in progress")
)

// Mode is the configuration a session was opened with.
type Mode int

const (
	ModeNone Mode = iota
	ModeStream
	ModeStill
	ModeRecord
)

func (m Mode) String() string {
	switch m {
	case ModeStream:
		return "stream"
	case ModeStill:
		return "still"
	case ModeRecord:
		return "record"
	default:
		return "none"
	}
}

// Device opens sessions on the physical camera.
type Device interface {
	Available() bool
	Open(mode Mode) (Session, error)
}

// Session is one open handle on the camera. Only the Arbiter holds sessions.
type Session interface {
	// StartEncoder begins continuous capture. Stream sessions keep the most
	// recent JPEG in memory; record sessions write to path.
	StartEncoder(path string) error
	StopEncoder() error
	// Latest returns the newest encoded stream frame and a sequence number
	// that changes whenever a new frame lands.
	Latest() ([]byte, uint64)
	// Grab returns a single frame. The caller closes it.
	Grab() (gocv.Mat, error)
	Stop() error
	Close() error
}

// Transcoder converts a raw recording into its final container.
type Transcoder interface {
	Transcode(src, dst string) error
}

type Options struct {
	StreamWidth  int
	StreamHeight int
	RecordWidth  int
	RecordHeight int
	RecordFPS    float64
	JPEGQuality  int

	SettleDelay   time.Duration
	OpenAttempts  int
	OpenRetryBase time.Duration
	OpenRetryMax  time.Duration

	Debounce            time.Duration
	Warmup              time.Duration
	Stale               time.Duration
	FrameInterval       time.Duration
	PlaceholderInterval time.Duration
	RecordingPoll       time.Duration
	LatestFrameInterval time.Duration
	FreshFrameMaxAge    time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		StreamWidth:         cfg.StreamWidth,
		StreamHeight:        cfg.StreamHeight,
		RecordWidth:         cfg.RecordWidth,
		RecordHeight:        cfg.RecordHeight,
		RecordFPS:           cfg.RecordFPS,
		JPEGQuality:         cfg.JPEGQuality,
		SettleDelay:         cfg.SettleDelay,
		OpenAttempts:        cfg.OpenAttempts,
		OpenRetryBase:       cfg.OpenRetryBase,
		OpenRetryMax:        cfg.OpenRetryMax,
		Debounce:            cfg.StreamDebounce,
		Warmup:              cfg.StreamWarmup,
		Stale:               cfg.StreamStale,
		FrameInterval:       cfg.StreamFrameInterval,
		PlaceholderInterval: cfg.PlaceholderInterval,
		RecordingPoll:       cfg.RecordingPollInterval,
		LatestFrameInterval: cfg.LatestFrameInterval,
		FreshFrameMaxAge:    cfg.FreshFrameMaxAge,
	}
}
