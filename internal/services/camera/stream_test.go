package camera

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamServesFramesAfterSettle(t *testing.T) {
	dev := &fakeDevice{available: true}
	a, clk := newTestArbiter(dev, nil)

	s := a.AcquireForStreaming()
	defer s.Close()

	tick := s.Next()
	require.Equal(t, TickFrame, tick.Kind)
	assert.NotEmpty(t, tick.JPEG)
	assert.Equal(t, testStart.Add(500*time.Millisecond), clk.Now(), "settle delay before open")
	assert.True(t, a.StreamActive())
	assert.Equal(t, ModeStream, a.Owner())

	tick = s.Next()
	assert.Equal(t, TickFrame, tick.Kind)
	assert.Equal(t, testStart.Add(533*time.Millisecond), clk.Now())
}

func TestStreamDebounce(t *testing.T) {
	dev := &fakeDevice{available: true}
	a, clk := newTestArbiter(dev, nil)

	first := a.AcquireForStreaming()
	require.Equal(t, TickFrame, first.Next().Kind)
	first.Close()

	clk.Advance(time.Second)
	second := a.AcquireForStreaming()
	tick := second.Next()
	assert.Equal(t, TickPlaceholder, tick.Kind)
	assert.Equal(t, a.Placeholder(), tick.JPEG)
	assert.Equal(t, TickStop, second.Next().Kind)
	second.Close()
	assert.Equal(t, 1, dev.openCount(), "debounced request must not touch the camera")

	clk.Advance(2 * time.Second)
	third := a.AcquireForStreaming()
	defer third.Close()
	assert.Equal(t, TickFrame, third.Next().Kind)
	assert.Equal(t, 2, dev.openCount())
}

func TestStreamPlaceholdersWhileRecording(t *testing.T) {
	dev := &fakeDevice{available: true}
	a, clk := newTestArbiter(dev, nil)
	require.True(t, a.Recording().TryBegin(10*time.Second, clk.Now()))

	s := a.AcquireForStreaming()
	defer s.Close()

	for i := 0; i < 3; i++ {
		assert.Equal(t, TickPlaceholder, s.Next().Kind)
	}
	assert.Equal(t, testStart.Add(time.Second), clk.Now(), "polls every 500ms")
	assert.Equal(t, 0, dev.openCount())

	a.Recording().End()
	assert.Equal(t, TickFrame, s.Next().Kind)
	assert.Equal(t, 1, dev.openCount())
}

func TestStreamPausesForRecordingAndResumes(t *testing.T) {
	dev := &fakeDevice{available: true}
	a, clk := newTestArbiter(dev, nil)

	s := a.AcquireForStreaming()
	defer s.Close()
	require.Equal(t, TickFrame, s.Next().Kind)
	first := dev.last()

	require.True(t, a.Recording().TryBegin(5*time.Second, clk.Now()))
	assert.Equal(t, TickPlaceholder, s.Next().Kind)
	assert.True(t, first.isClosed(), "stream hands the device over")
	assert.Equal(t, ModeNone, a.Owner())
	assert.Equal(t, TickPlaceholder, s.Next().Kind)

	a.Recording().End()
	resumeAt := clk.Now()
	tick := s.Next()
	require.Equal(t, TickFrame, tick.Kind)
	assert.Equal(t, 2, dev.openCount())
	assert.False(t, dev.last().isClosed())

	// The warmup window restarts on resume, so a freeze right away is not stale.
	dev.last().setFrozen(true)
	for clk.Now().Sub(resumeAt) < 4*time.Second {
		require.Equal(t, TickIdle, s.Next().Kind)
	}
}

func TestStreamStaleClosesCamera(t *testing.T) {
	dev := &fakeDevice{available: true}
	a, clk := newTestArbiter(dev, nil)

	s := a.AcquireForStreaming()
	defer s.Close()
	require.Equal(t, TickFrame, s.Next().Kind)
	started := clk.Now()
	dev.last().setFrozen(true)

	var tick Tick
	for i := 0; i < 1000; i++ {
		tick = s.Next()
		if tick.Done() {
			break
		}
		require.Equal(t, TickIdle, tick.Kind)
	}
	require.Equal(t, TickStale, tick.Kind)
	assert.Greater(t, clk.Now().Sub(started), 5*time.Second)
	assert.True(t, dev.last().isClosed())
	assert.False(t, a.StreamActive())
	assert.Equal(t, ModeNone, a.Owner())
	assert.Equal(t, TickStop, s.Next().Kind)
}

func TestStopStreaming(t *testing.T) {
	dev := &fakeDevice{available: true}
	a, _ := newTestArbiter(dev, nil)

	s := a.AcquireForStreaming()
	defer s.Close()
	require.Equal(t, TickFrame, s.Next().Kind)

	a.StopStreaming()
	assert.True(t, dev.last().isClosed())
	assert.False(t, a.StreamActive())
	assert.Equal(t, TickStop, s.Next().Kind)
}

func TestStreamFallsBackAfterRetries(t *testing.T) {
	dev := &fakeDevice{available: true, openErrs: []error{ErrDeviceBusy, ErrDeviceBusy, ErrDeviceBusy}}
	a, _ := newTestArbiter(dev, nil)

	s := a.AcquireForStreaming()
	defer s.Close()

	assert.Equal(t, TickPlaceholder, s.Next().Kind)
	assert.Equal(t, 3, dev.openCount())
	for i := 0; i < 5; i++ {
		assert.Equal(t, TickPlaceholder, s.Next().Kind)
	}
	assert.Equal(t, 3, dev.openCount(), "fallback does not retry")

	a.StopStreaming()
	assert.Equal(t, TickStop, s.Next().Kind)
}

func TestStreamRetriesBusyDevice(t *testing.T) {
	dev := &fakeDevice{available: true, openErrs: []error{ErrDeviceBusy}}
	a, _ := newTestArbiter(dev, nil)

	s := a.AcquireForStreaming()
	defer s.Close()

	assert.Equal(t, TickFrame, s.Next().Kind)
	assert.Equal(t, 2, dev.openCount())
}

func TestStreamWithoutCamera(t *testing.T) {
	dev := &fakeDevice{available: false}
	a, clk := newTestArbiter(dev, nil)

	s := a.AcquireForStreaming()
	defer s.Close()

	for i := 0; i < 5; i++ {
		assert.Equal(t, TickPlaceholder, s.Next().Kind)
	}
	assert.Equal(t, testStart.Add(400*time.Millisecond), clk.Now())
	assert.Equal(t, 0, dev.openCount())
}

func TestSecondViewerTakesOverAfterDebounce(t *testing.T) {
	dev := &fakeDevice{available: true}
	a, clk := newTestArbiter(dev, nil)

	first := a.AcquireForStreaming()
	defer first.Close()
	require.Equal(t, TickFrame, first.Next().Kind)

	clk.Advance(3 * time.Second)
	second := a.AcquireForStreaming()
	defer second.Close()
	require.Equal(t, TickFrame, second.Next().Kind)

	assert.Equal(t, TickStop, first.Next().Kind, "revoked lease ends the older stream")
	assert.Equal(t, 1, dev.openSessions())
	assert.True(t, a.StreamActive(), "older stream must not clear the newer one's flag")
}

func TestCloseReleasesCamera(t *testing.T) {
	dev := &fakeDevice{available: true}
	a, _ := newTestArbiter(dev, nil)

	s := a.AcquireForStreaming()
	require.Equal(t, TickFrame, s.Next().Kind)
	s.Close()
	s.Close()

	assert.True(t, dev.last().isClosed())
	assert.False(t, a.StreamActive())
	assert.Equal(t, ModeNone, a.Owner())
}

func TestStreamPublishesLatestFrame(t *testing.T) {
	dev := &fakeDevice{available: true}
	a, clk := newTestArbiter(dev, nil)

	s := a.AcquireForStreaming()
	defer s.Close()
	require.Equal(t, TickFrame, s.Next().Kind)

	age, ok := a.LatestFrameAge()
	require.True(t, ok)
	assert.Equal(t, time.Duration(0), age)

	clk.Advance(time.Second)
	age, _ = a.LatestFrameAge()
	assert.Equal(t, time.Second, age)
}

func TestTickKindStrings(t *testing.T) {
	assert.Equal(t, "frame", TickFrame.String())
	assert.Equal(t, "stale", TickStale.String())
	assert.True(t, Tick{Kind: TickStop}.Done())
	assert.False(t, Tick{Kind: TickIdle}.Done())
	assert.True(t, errors.Is(ErrUnavailable, ErrUnavailable))
}
