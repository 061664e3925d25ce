package audit

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/sensorgate/internal"
	"github.com/sirupsen/logrus"
)

// Config controls dispatcher buffering.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool

	// Now stamps Event.Time on events that arrive without one.
	Now func() time.Time
	// Log reports sink panics. Nil discards.
	Log logrus.FieldLogger
}

// Dispatcher forwards auth events to a sink on its own goroutine. Every
// accepted event gets the next sequence number, so a sink can tell dropped
// events by the gaps.
type Dispatcher struct {
	cfg    Config
	sink   Sink
	onDrop func(Event)
	log    logrus.FieldLogger

	queue chan Event
	stop  chan struct{}
	wg    sync.WaitGroup

	seq       atomic.Uint64
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewDispatcher starts a dispatcher. It returns nil when disabled; a nil
// dispatcher accepts and discards events. onDrop, if set, runs with every
// event lost to a full buffer.
func NewDispatcher(cfg Config, sink Sink, onDrop func(Event)) *Dispatcher {
	if !cfg.Enabled || sink == nil {
		return nil
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	d := &Dispatcher{
		cfg:    cfg,
		sink:   sink,
		onDrop: onDrop,
		log:    internal.LoggerOrDiscard(cfg.Log),
		queue:  make(chan Event, cfg.BufferSize),
		stop:   make(chan struct{}),
	}
	d.wg.Add(1)
	go d.work()
	return d
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		case <-d.stop:
			d.drain()
			return
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case ev := <-d.queue:
			d.deliver(ev)
		default:
			return
		}
	}
}

// deliver hands one event to the sink. A panicking sink loses that event
// only.
func (d *Dispatcher) deliver(ev Event) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithFields(logrus.Fields{
				"event": ev.Kind,
				"seq":   ev.Seq,
				"panic": r,
			}).Error("audit sink panicked")
		}
	}()
	d.sink.Emit(context.Background(), ev)
}

// Emit stamps and queues an event. With DropIfFull the call never blocks;
// otherwise it waits for buffer space, ctx cancellation, or Close. A dropped
// event still consumes its sequence number.
func (d *Dispatcher) Emit(ctx context.Context, ev Event) {
	if d == nil || d.closed.Load() {
		return
	}
	ev.Seq = d.seq.Add(1)
	if ev.Time.IsZero() {
		ev.Time = d.cfg.Now()
	}

	if d.cfg.DropIfFull {
		select {
		case d.queue <- ev:
		case <-d.stop:
		default:
			d.dropped.Add(1)
			if d.onDrop != nil {
				d.onDrop(ev)
			}
		}
		return
	}

	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case d.queue <- ev:
	case <-ctx.Done():
	case <-d.stop:
	}
}

// Close delivers whatever is queued and stops the goroutine.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.stop)
		d.wg.Wait()
	})
}

// Dropped counts events lost to a full buffer.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
