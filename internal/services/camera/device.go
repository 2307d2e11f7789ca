package camera

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

// V4L2Device opens the camera through OpenCV's capture backend.
type V4L2Device struct {
	Index   int
	Enabled bool
	opts    Options
	logger  zerolog.Logger
}

func NewV4L2Device(index int, enabled bool, opts Options, logger zerolog.Logger) *V4L2Device {
	return &V4L2Device{Index: index, Enabled: enabled, opts: opts, logger: logger}
}

func (d *V4L2Device) Available() bool {
	if !d.Enabled {
		return false
	}
	_, err := os.Stat(fmt.Sprintf("/dev/video%d", d.Index))
	return err == nil
}

func (d *V4L2Device) Open(mode Mode) (Session, error) {
	vc, err := gocv.OpenVideoCapture(d.Index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceBusy, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, ErrDeviceBusy
	}

	width, height := d.opts.StreamWidth, d.opts.StreamHeight
	if mode == ModeRecord {
		width, height = d.opts.RecordWidth, d.opts.RecordHeight
	}
	vc.Set(gocv.VideoCaptureFrameWidth, float64(width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(height))

	fps := d.opts.RecordFPS
	if fps <= 0 {
		fps = 30
	}

	d.logger.Debug().
		Str("mode", mode.String()).
		Int("width", width).
		Int("height", height).
		Msg("Opened capture device")

	return &v4l2Session{
		mode:    mode,
		capture: vc,
		width:   width,
		height:  height,
		fps:     fps,
		quality: d.opts.JPEGQuality,
		frame:   gocv.NewMat(),
		logger:  d.logger,

		stopTimeout: encoderStopTimeout,
	}, nil
}

// frameWriter is the part of gocv.VideoWriter a recording needs.
type frameWriter interface {
	Write(img gocv.Mat) error
	Close() error
}

const encoderStopTimeout = 2 * time.Second

type v4l2Session struct {
	mode    Mode
	capture *gocv.VideoCapture
	width   int
	height  int
	fps     float64
	quality int
	logger  zerolog.Logger

	// readMu guards capture
	readMu sync.Mutex
	closed bool

	mu     sync.Mutex
	frame  gocv.Mat
	latest []byte
	seq    uint64
	writer frameWriter
	stop   chan struct{}
	done   chan struct{}

	stopTimeout time.Duration
}

func (s *v4l2Session) StartEncoder(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return nil
	}

	if s.mode == ModeRecord {
		w, err := gocv.VideoWriterFile(path, "MJPG", s.fps, s.width, s.height, true)
		if err != nil {
			return fmt.Errorf("failed to open video writer: %w", err)
		}
		s.writer = w
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.encodeLoop(s.stop, s.done)
	return nil
}

func (s *v4l2Session) encodeLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().Interface("panic", r).Msg("Encoder loop panic recovered")
		}
	}()

	img := gocv.NewMat()
	defer img.Close()

	for {
		select {
		case <-stop:
			return
		default:
		}

		s.readMu.Lock()
		ok := !s.closed && s.capture.Read(&img)
		s.readMu.Unlock()
		if !ok || img.Empty() {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		s.mu.Lock()
		if s.writer != nil {
			if err := s.writer.Write(img); err != nil {
				s.logger.Debug().Err(err).Msg("Failed to write recording frame")
			}
		} else if jpeg, err := EncodeJPEG(img, s.quality); err == nil {
			s.latest = jpeg
			s.seq++
		}
		s.frame.Close()
		s.frame = img.Clone()
		s.mu.Unlock()
	}
}

func (s *v4l2Session) StopEncoder() error {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return nil
	}

	close(stop)
	select {
	case <-done:
	case <-time.After(s.stopTimeout):
		// The loop may still write; the file is finalised once it exits.
		go func() {
			<-done
			if err := s.closeWriter(); err != nil {
				s.logger.Warn().Err(err).Msg("Failed to close recording after late encoder stop")
			}
		}()
		return errors.New("encoder did not stop in time")
	}
	return s.closeWriter()
}

func (s *v4l2Session) closeWriter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writer == nil {
		return nil
	}
	err := s.writer.Close()
	s.writer = nil
	return err
}

func (s *v4l2Session) Latest() ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest, s.seq
}

func (s *v4l2Session) Grab() (gocv.Mat, error) {
	s.mu.Lock()
	running := s.stop != nil
	if running && !s.frame.Empty() {
		m := s.frame.Clone()
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()

	img := gocv.NewMat()
	s.readMu.Lock()
	ok := !s.closed && s.capture.Read(&img)
	s.readMu.Unlock()
	if !ok || img.Empty() {
		img.Close()
		return gocv.Mat{}, errors.New("failed to read frame")
	}
	return img, nil
}

func (s *v4l2Session) Stop() error {
	return s.StopEncoder()
}

func (s *v4l2Session) Close() error {
	_ = s.StopEncoder()

	s.readMu.Lock()
	defer s.readMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	s.mu.Lock()
	s.frame.Close()
	s.mu.Unlock()
	return s.capture.Close()
}
