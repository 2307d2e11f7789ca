// Package button polls the GPIO shutter button and turns presses into photo
// and recording requests.
package button

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"periph.io/x/periph/conn/gpio"
	"periph.io/x/periph/conn/gpio/gpioreg"
	"periph.io/x/periph/host"

	"spicam-server/internal/clock"
)

const (
	shortPress = 500 * time.Millisecond
	mediumHold = 2 * time.Second

	ShortRecordSec = 30
	LongRecordSec  = 60

	releasePoll = 50 * time.Millisecond
	afterPress  = 300 * time.Millisecond
	errorPause  = time.Second
)

type Action int

const (
	ActionPhoto Action = iota
	ActionShortRecording
	ActionLongRecording
)

func (a Action) String() string {
	switch a {
	case ActionPhoto:
		return "photo"
	case ActionShortRecording:
		return "short_recording"
	case ActionLongRecording:
		return "long_recording"
	}
	return "unknown"
}

// Classify maps how long the button was held to an action.
func Classify(held time.Duration) Action {
	switch {
	case held < shortPress:
		return ActionPhoto
	case held < mediumHold:
		return ActionShortRecording
	default:
		return ActionLongRecording
	}
}

// Pin is the input side of a GPIO pin. The button pulls it low when pressed.
type Pin interface {
	Read() gpio.Level
}

// Handler performs the requested capture.
type Handler interface {
	Photo()
	Record(seconds int)
}

// OpenPin initialises the host drivers and configures name as a pulled-up
// input.
func OpenPin(name string) (gpio.PinIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialise GPIO host: %w", err)
	}
	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("GPIO pin %q not found", name)
	}
	if err := pin.In(gpio.PullUp, gpio.NoEdge); err != nil {
		return nil, fmt.Errorf("failed to configure %s as input: %w", name, err)
	}
	return pin, nil
}

type Poller struct {
	pin     Pin
	handler Handler
	clock   clock.Clock
	poll    time.Duration
	logger  zerolog.Logger
}

func NewPoller(pin Pin, handler Handler, poll time.Duration, clk clock.Clock, logger zerolog.Logger) *Poller {
	if poll <= 0 {
		poll = 10 * time.Millisecond
	}
	return &Poller{pin: pin, handler: handler, clock: clk, poll: poll, logger: logger}
}

// Run polls until ctx is cancelled. A press is a high to low transition.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info().Dur("poll", p.poll).Msg("Button poller started")
	last := gpio.High
	for {
		level, wait := p.tick(ctx, last)
		last = level
		if err := clock.SleepContext(ctx, p.clock, wait); err != nil {
			p.logger.Info().Msg("Button poller stopped")
			return
		}
	}
}

func (p *Poller) tick(ctx context.Context, last gpio.Level) (level gpio.Level, wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Interface("panic", r).Msg("Button poll failed")
			level, wait = gpio.High, errorPause
		}
	}()

	level = p.pin.Read()
	if !(last == gpio.High && level == gpio.Low) {
		return level, p.poll
	}

	start := p.clock.Now()
	for p.pin.Read() == gpio.Low {
		if err := clock.SleepContext(ctx, p.clock, releasePoll); err != nil {
			return gpio.High, 0
		}
	}
	held := p.clock.Now().Sub(start)
	action := Classify(held)
	p.logger.Info().Dur("held", held).Str("action", action.String()).Msg("Button pressed")

	switch action {
	case ActionPhoto:
		p.handler.Photo()
	case ActionShortRecording:
		p.handler.Record(ShortRecordSec)
	case ActionLongRecording:
		p.handler.Record(LongRecordSec)
	}
	return gpio.High, afterPress
}
