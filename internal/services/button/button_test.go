package button

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/periph/conn/gpio"

	"spicam-server/internal/clock"
)

var testStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// scriptedPin is held low during [down, up) of the manual clock.
type scriptedPin struct {
	clk      *clock.Manual
	down, up time.Duration
	panics   bool
}

func (p *scriptedPin) Read() gpio.Level {
	if p.panics {
		p.panics = false
		panic("gpio read failed")
	}
	since := p.clk.Now().Sub(testStart)
	if since >= p.down && since < p.up {
		return gpio.Low
	}
	return gpio.High
}

type recordingHandler struct {
	mu      sync.Mutex
	photos  int
	records []int
	done    func()
}

func (h *recordingHandler) Photo() {
	h.mu.Lock()
	h.photos++
	h.mu.Unlock()
	h.done()
}

func (h *recordingHandler) Record(seconds int) {
	h.mu.Lock()
	h.records = append(h.records, seconds)
	h.mu.Unlock()
	h.done()
}

func TestClassify(t *testing.T) {
	assert.Equal(t, ActionPhoto, Classify(100*time.Millisecond))
	assert.Equal(t, ActionShortRecording, Classify(500*time.Millisecond))
	assert.Equal(t, ActionShortRecording, Classify(1999*time.Millisecond))
	assert.Equal(t, ActionLongRecording, Classify(2*time.Second))
	assert.Equal(t, "photo", ActionPhoto.String())
}

func runPress(t *testing.T, held time.Duration, panics bool) *recordingHandler {
	t.Helper()
	clk := clock.NewManual(testStart)
	down := 100 * time.Millisecond
	if panics {
		// leave room for the error pause before the press
		down = 2 * time.Second
	}
	pin := &scriptedPin{clk: clk, down: down, up: down + held, panics: panics}
	ctx, cancel := context.WithCancel(context.Background())
	h := &recordingHandler{done: cancel}
	p := NewPoller(pin, h, 10*time.Millisecond, clk, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("poller did not stop")
	}
	return h
}

func TestShortPressTakesPhoto(t *testing.T) {
	h := runPress(t, 200*time.Millisecond, false)
	assert.Equal(t, 1, h.photos)
	assert.Empty(t, h.records)
}

func TestMediumHoldRecordsThirtySeconds(t *testing.T) {
	h := runPress(t, time.Second, false)
	assert.Equal(t, []int{ShortRecordSec}, h.records)
}

func TestLongHoldRecordsSixtySeconds(t *testing.T) {
	h := runPress(t, 3*time.Second, false)
	assert.Equal(t, []int{LongRecordSec}, h.records)
}

func TestReadPanicIsSurvived(t *testing.T) {
	h := runPress(t, 200*time.Millisecond, true)
	require.Equal(t, 1, h.photos)
}

func TestHeldAtStartupIsNotAPress(t *testing.T) {
	clk := clock.NewManual(testStart)
	pin := &scriptedPin{clk: clk, down: 0, up: time.Hour}
	h := &recordingHandler{done: func() {}}
	p := NewPoller(pin, h, 10*time.Millisecond, clk, zerolog.Nop())

	level, wait := p.tick(context.Background(), gpio.Low)

	assert.Equal(t, gpio.Low, level)
	assert.Equal(t, 10*time.Millisecond, wait)
	assert.Zero(t, h.photos)
}
