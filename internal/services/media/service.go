package media

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spicam-server/internal/clock"
	"spicam-server/internal/config"
	"spicam-server/internal/services/camera"
	"spicam-server/internal/services/messaging"
	"spicam-server/internal/services/notification"
)

var (
	ErrRecordingInProgress = errors.New("recording already in progress")
	ErrCameraUnavailable   = errors.New("camera not available")
)

// Camera is the slice of the arbiter the media service drives.
type Camera interface {
	Available() bool
	Recording() *camera.RecordingState
	CapturePhoto(path string) (bool, error)
	RecordVideo(duration time.Duration, dir string) (string, error)
}

// ReadyPublisher announces finished media on the event bus.
type ReadyPublisher interface {
	PublishMediaReady(ev messaging.MediaReady) error
}

// Source tells the service who asked for the capture. Button requests get
// feed entries and push notifications; API callers see the result directly.
type Source int

const (
	SourceAPI Source = iota
	SourceButton
)

type Options struct {
	Dir             string
	RetentionDays   int
	DefaultDuration int
	MinDuration     int
	MaxDuration     int
	PreRoll         time.Duration
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Dir:             cfg.MediaDir,
		RetentionDays:   cfg.MediaRetentionDays,
		DefaultDuration: cfg.DefaultRecordDuration,
		MinDuration:     cfg.MinRecordDuration,
		MaxDuration:     cfg.MaxRecordDuration,
		PreRoll:         cfg.RecordPreRoll,
	}
}

type Photo struct {
	Path        string `json:"path"`
	Filename    string `json:"filename"`
	Timestamp   int64  `json:"timestamp"`
	Placeholder bool   `json:"placeholder"`
}

type Service struct {
	opts      Options
	cam       Camera
	notifier  notification.Notifier
	publisher ReadyPublisher
	clock     clock.Clock
	logger    zerolog.Logger

	wg sync.WaitGroup
}

// NewService builds the media service. publisher may be nil when the event
// bus is disabled.
func NewService(opts Options, cam Camera, notifier notification.Notifier, publisher ReadyPublisher, clk clock.Clock, logger zerolog.Logger) *Service {
	if opts.MinDuration <= 0 {
		opts.MinDuration = 5
	}
	if opts.MaxDuration < opts.MinDuration {
		opts.MaxDuration = opts.MinDuration
	}
	if opts.DefaultDuration <= 0 {
		opts.DefaultDuration = 30
	}
	return &Service{
		opts:      opts,
		cam:       cam,
		notifier:  notifier,
		publisher: publisher,
		clock:     clk,
		logger:    logger,
	}
}

func (s *Service) Dir() string { return s.opts.Dir }

// ClampDuration applies the default for non-positive values and then clamps.
func (s *Service) ClampDuration(seconds int) int {
	if seconds <= 0 {
		seconds = s.opts.DefaultDuration
	}
	if seconds < s.opts.MinDuration {
		return s.opts.MinDuration
	}
	if seconds > s.opts.MaxDuration {
		return s.opts.MaxDuration
	}
	return seconds
}

// CapturePhoto writes photo_<unix>.jpg into the media dir. Without a usable
// camera the placeholder image is written instead.
func (s *Service) CapturePhoto(src Source) (Photo, error) {
	now := s.clock.Now()
	name := fmt.Sprintf("photo_%d.jpg", now.Unix())
	path := filepath.Join(s.opts.Dir, name)

	placeholder, err := s.cam.CapturePhoto(path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Photo capture failed")
		return Photo{}, err
	}

	s.logger.Info().
		Str("filename", name).
		Bool("placeholder", placeholder).
		Msg("Photo captured")
	s.publishReady(notification.KindPhoto, name, path, now)

	if src == SourceButton {
		s.notifier.Notify(notification.Notification{
			Kind:    notification.KindPhoto,
			Message: "Photo captured: " + name,
			Title:   "Photo Captured",
			Body:    "Photo captured: " + name,
			Data:    map[string]any{"type": "photo_captured", "filename": name},
		})
	}
	return Photo{Path: path, Filename: name, Timestamp: now.Unix(), Placeholder: placeholder}, nil
}

// StartRecording reserves the recorder and records in the background. It
// returns the clamped duration actually used.
func (s *Service) StartRecording(seconds int, src Source) (int, error) {
	duration := s.ClampDuration(seconds)
	if s.cam.Recording().Active() {
		return 0, ErrRecordingInProgress
	}
	if !s.cam.Available() {
		return 0, ErrCameraUnavailable
	}
	if !s.cam.Recording().TryBegin(time.Duration(duration)*time.Second, s.clock.Now()) {
		return 0, ErrRecordingInProgress
	}

	s.wg.Add(1)
	go s.record(duration)

	s.logger.Info().Int("duration", duration).Msg("Recording scheduled")
	if src == SourceButton {
		s.notifier.Notify(notification.Notification{
			Kind:    notification.KindRecording,
			Message: fmt.Sprintf("Recording started: %ds video", duration),
			Title:   "Recording Started",
			Body:    fmt.Sprintf("Recording %ds video...", duration),
			Data:    map[string]any{"type": "recording_started", "duration": duration},
		})
	}
	return duration, nil
}

func (s *Service) record(duration int) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Recording goroutine panicked")
		}
		s.cam.Recording().End()
	}()

	s.clock.Sleep(s.opts.PreRoll)

	path, err := s.cam.RecordVideo(time.Duration(duration)*time.Second, s.opts.Dir)
	if err != nil {
		s.logger.Error().Err(err).Msg("Recording failed")
		return
	}
	name := filepath.Base(path)
	s.publishReady(notification.KindRecording, name, path, s.clock.Now())

	if filepath.Ext(path) != ".mp4" {
		s.logger.Warn().Str("path", path).Msg("Recording kept in raw format")
		return
	}
	s.notifier.Notify(notification.Notification{
		Kind:    notification.KindRecording,
		Message: "Recording ready: " + name,
		Title:   "Recording Ready",
		Body:    "Recording ready: " + name,
		Data:    map[string]any{"type": "recording_ready", "filename": name},
	})
}

// Wait blocks until background recordings finish.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) publishReady(kind, name, path string, at time.Time) {
	if s.publisher == nil {
		return
	}
	err := s.publisher.PublishMediaReady(messaging.MediaReady{Kind: kind, Filename: name, Path: path, Timestamp: at})
	if err != nil && !errors.Is(err, messaging.ErrNotConnected) {
		s.logger.Warn().Err(err).Str("filename", name).Msg("Failed to publish media event")
	}
}
