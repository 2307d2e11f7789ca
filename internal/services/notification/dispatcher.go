package notification

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"spicam-server/internal/clock"
)

// Dispatcher records notifications in the feed synchronously and hands
// pushable ones to a bounded queue drained by worker goroutines. Notify never
// blocks the caller.
type Dispatcher struct {
	feed    *Feed
	sinks   []Sink
	queue   chan Notification
	workers int
	timeout time.Duration
	clock   clock.Clock
	logger  zerolog.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	closed    atomic.Bool
	wg        sync.WaitGroup

	sent    atomic.Int64
	dropped atomic.Int64
	failed  atomic.Int64
}

type DispatcherOptions struct {
	QueueSize       int
	Workers         int
	DeliveryTimeout time.Duration
}

func NewDispatcher(opts DispatcherOptions, feed *Feed, clk clock.Clock, logger zerolog.Logger, sinks ...Sink) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 10 * time.Second
	}
	if feed == nil {
		feed = NewFeed(DefaultFeedSize)
	}
	return &Dispatcher{
		feed:    feed,
		sinks:   sinks,
		queue:   make(chan Notification, opts.QueueSize),
		workers: opts.Workers,
		timeout: opts.DeliveryTimeout,
		clock:   clk,
		logger:  logger,
	}
}

func (d *Dispatcher) Feed() *Feed { return d.feed }

// Start launches the delivery workers. Workers exit when ctx is cancelled or
// Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker(ctx, i)
		}
		d.logger.Info().
			Int("workers", d.workers).
			Int("queue", cap(d.queue)).
			Int("sinks", len(d.sinks)).
			Msg("Notification dispatcher started")
	})
}

// Stop closes the queue and waits for in-flight deliveries.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.closed.Store(true)
		close(d.queue)
	})
	d.wg.Wait()
}

func (d *Dispatcher) Notify(n Notification) bool {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = d.clock.Now()
	}
	if n.Kind == "" {
		n.Kind = KindInfo
	}
	if n.Message != "" {
		d.feed.Add(FeedEntry{Message: n.Message, Kind: n.Kind, Timestamp: n.Timestamp})
	}
	if len(d.sinks) == 0 || d.closed.Load() {
		return true
	}
	return d.enqueue(n)
}

func (d *Dispatcher) enqueue(n Notification) (ok bool) {
	// Stop may close the queue between the check above and the send.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case d.queue <- n:
		return true
	default:
		d.dropped.Add(1)
		d.logger.Warn().Str("kind", n.Kind).Str("title", n.Title).Msg("Notification queue full, dropping")
		return false
	}
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-d.queue:
			if !ok {
				return
			}
			d.deliver(ctx, n)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	for _, s := range d.sinks {
		err := d.deliverOne(ctx, s, n)
		if err != nil {
			d.failed.Add(1)
			d.logger.Warn().Err(err).Str("sink", s.Name()).Str("id", n.ID).Msg("Notification delivery failed")
			continue
		}
		d.sent.Add(1)
	}
}

func (d *Dispatcher) deliverOne(ctx context.Context, s Sink, n Notification) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink %s panicked: %v", s.Name(), r)
		}
	}()
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return s.Deliver(ctx, n)
}

type Stats struct {
	Sent    int64 `json:"sent"`
	Dropped int64 `json:"dropped"`
	Failed  int64 `json:"failed"`
	Queued  int   `json:"queued"`
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Sent:    d.sent.Load(),
		Dropped: d.dropped.Load(),
		Failed:  d.failed.Load(),
		Queued:  len(d.queue),
	}
}
