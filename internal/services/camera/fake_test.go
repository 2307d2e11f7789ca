package camera

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gocv.io/x/gocv"

	"spicam-server/internal/clock"
)

var testStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeDevice struct {
	mu        sync.Mutex
	available bool
	openErrs  []error
	opens     []Mode
	sessions  []*fakeSession
	// frozen sessions never produce new stream frames
	frozen      bool
	failGrab    bool
	panicOnOpen bool

	// Opens for gateMode report on entered and then block until gate is closed.
	gate     chan struct{}
	gateMode Mode
	entered  chan Mode
	// maxOpen is the most sessions ever open at once.
	maxOpen int
}

func (d *fakeDevice) Available() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.available
}

func (d *fakeDevice) Open(mode Mode) (Session, error) {
	d.mu.Lock()
	gate, entered := d.gate, d.entered
	gated := gate != nil && mode == d.gateMode
	d.mu.Unlock()
	if gated {
		select {
		case entered <- mode:
		default:
		}
		<-gate
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens = append(d.opens, mode)
	if d.panicOnOpen {
		panic("driver crashed")
	}
	if len(d.openErrs) > 0 {
		err := d.openErrs[0]
		d.openErrs = d.openErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	s := &fakeSession{mode: mode, frozen: d.frozen, failGrab: d.failGrab}
	d.sessions = append(d.sessions, s)
	open := 0
	for _, sess := range d.sessions {
		if !sess.isClosed() {
			open++
		}
	}
	if open > d.maxOpen {
		d.maxOpen = open
	}
	return s, nil
}

func (d *fakeDevice) peakOpen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOpen
}

func (d *fakeDevice) openModes() []Mode {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Mode(nil), d.opens...)
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.opens)
}

func (d *fakeDevice) last() *fakeSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

func (d *fakeDevice) openSessions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, s := range d.sessions {
		if !s.isClosed() {
			n++
		}
	}
	return n
}

type fakeSession struct {
	mu         sync.Mutex
	mode       Mode
	frozen     bool
	encoding   bool
	encodePath string
	seq        uint64
	closed     bool
	stopped    bool
	stopCalls  int

	failStopEncoder bool
	failStop        bool
	failGrab        bool
}

func (s *fakeSession) StartEncoder(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.encoding = true
	s.encodePath = path
	return nil
}

func (s *fakeSession) StopEncoder() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopCalls++
	s.encoding = false
	if s.failStopEncoder {
		return errors.New("encoder wedged")
	}
	return nil
}

func (s *fakeSession) Latest() ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.frozen && s.encoding {
		s.seq++
	}
	if s.seq == 0 {
		return nil, 0
	}
	return []byte{0xff, 0xd8, byte(s.seq), 0xff, 0xd9}, s.seq
}

func (s *fakeSession) Grab() (gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGrab {
		return gocv.Mat{}, errors.New("grab failed")
	}
	m := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	m.SetTo(gocv.NewScalar(90, 90, 90, 0))
	return m, nil
}

func (s *fakeSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.failStop {
		panic("stop exploded")
	}
	return nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) setFrozen(v bool) {
	s.mu.Lock()
	s.frozen = v
	s.mu.Unlock()
}

type fakeTranscoder struct {
	mu    sync.Mutex
	calls int
	err   error
	write bool
}

func (t *fakeTranscoder) Transcode(src, dst string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls++
	if t.err != nil {
		return t.err
	}
	if t.write {
		return writeFile(dst, []byte("mp4"))
	}
	return nil
}

func testOptions() Options {
	return Options{
		StreamWidth:         640,
		StreamHeight:        480,
		RecordWidth:         1920,
		RecordHeight:        1080,
		RecordFPS:           30,
		JPEGQuality:         80,
		SettleDelay:         500 * time.Millisecond,
		OpenAttempts:        3,
		OpenRetryBase:       500 * time.Millisecond,
		OpenRetryMax:        4 * time.Second,
		Debounce:            2 * time.Second,
		Warmup:              5 * time.Second,
		Stale:               3 * time.Second,
		FrameInterval:       33 * time.Millisecond,
		PlaceholderInterval: 100 * time.Millisecond,
		RecordingPoll:       500 * time.Millisecond,
		LatestFrameInterval: 200 * time.Millisecond,
		FreshFrameMaxAge:    time.Second,
	}
}

func newTestArbiter(dev *fakeDevice, tr Transcoder) (*Arbiter, *clock.Manual) {
	clk := clock.NewManual(testStart)
	a := NewArbiter(testOptions(), dev, clk, tr, zerolog.Nop())
	a.placeholder = []byte("placeholder-jpeg")
	return a, clk
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
