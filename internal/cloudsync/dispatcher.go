// Package cloudsync delivers sync events to the submission endpoint.
//
// Delivery is deferred and best-effort: each event waits Delay under its
// key, a newer event for the same key replaces it, and a failed delivery
// is reported but never retried.
package cloudsync

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/shift-clock/internal/clock"
	"github.com/Tiliavir/shift-clock/internal/model"
)

// DefaultDelay is how long an event waits before it is sent.
const DefaultDelay = 60 * time.Second

// DefaultTimeout bounds one delivery attempt.
const DefaultTimeout = 15 * time.Second

// Submitter delivers one event.
type Submitter interface {
	Submit(ctx context.Context, ev model.SyncEvent) error
}

// Options configures a Dispatcher. A nil Submitter makes sync unavailable:
// scheduled events are dropped.
type Options struct {
	Submitter Submitter
	Clock     clock.Clock
	Delay     time.Duration
	Timeout   time.Duration
	// Online reports connectivity; when it returns false the event is
	// skipped. Nil means always online.
	Online  func() bool
	OnError func(key string, err error)
	Logger  *zap.Logger
}

type pending struct {
	ev    model.SyncEvent
	seq   uint64
	timer clock.Timer
}

// Dispatcher holds at most one pending event per key.
type Dispatcher struct {
	opts Options
	log  *zap.Logger

	mu      sync.Mutex
	seq     uint64
	pending map[string]*pending
	closed  bool

	inflight sync.WaitGroup
}

// NewDispatcher returns a Dispatcher with defaults filled in.
func NewDispatcher(opts Options) *Dispatcher {
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Delay <= 0 {
		opts.Delay = DefaultDelay
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Dispatcher{
		opts:    opts,
		log:     opts.Logger,
		pending: map[string]*pending{},
	}
}

// Available reports whether events can be delivered at all.
func (d *Dispatcher) Available() bool {
	return d.opts.Submitter != nil
}

// Schedule arms delivery of ev under key after the delay, replacing any
// event still pending for key.
func (d *Dispatcher) Schedule(key string, ev model.SyncEvent) {
	if d.opts.Submitter == nil {
		d.log.Debug("sync not configured, event dropped", zap.String("key", key), zap.String("action", ev.Action))
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		d.log.Debug("dispatcher closed, event dropped", zap.String("key", key))
		return
	}
	if old, ok := d.pending[key]; ok {
		old.timer.Stop()
		d.log.Debug("pending event superseded", zap.String("key", key))
	}
	d.seq++
	p := &pending{ev: ev, seq: d.seq}
	seq := d.seq
	p.timer = d.opts.Clock.AfterFunc(d.opts.Delay, func() { d.fire(key, seq) })
	d.pending[key] = p
}

// Cancel drops the pending event for key. It reports whether one was
// pending; an event already being sent is not affected.
func (d *Dispatcher) Cancel(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.pending[key]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(d.pending, key)
	return true
}

// Pending returns the keys still waiting, sorted.
func (d *Dispatcher) Pending() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	keys := make([]string, 0, len(d.pending))
	for k := range d.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Flush sends every pending event now and waits for deliveries in
// flight. Delivery failures are returned joined instead of going to
// OnError.
func (d *Dispatcher) Flush(ctx context.Context) error {
	d.mu.Lock()
	batch := d.pending
	d.pending = map[string]*pending{}
	for _, p := range batch {
		p.timer.Stop()
	}
	d.mu.Unlock()

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for key, p := range batch {
		g.Go(func() error {
			if err := d.send(gctx, key, p.ev); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	done := make(chan struct{})
	go func() {
		d.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, ctx.Err())
	}
	return errors.Join(errs...)
}

// Close drops everything pending and waits for deliveries in flight.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	if n := len(d.pending); n > 0 {
		d.log.Info("dropping unsent sync events", zap.Int("count", n))
	}
	for _, p := range d.pending {
		p.timer.Stop()
	}
	d.pending = map[string]*pending{}
	d.mu.Unlock()
	d.inflight.Wait()
}

func (d *Dispatcher) fire(key string, seq uint64) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.seq != seq {
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.inflight.Add(1)
	d.mu.Unlock()
	defer d.inflight.Done()

	if err := d.send(context.Background(), key, p.ev); err != nil && d.opts.OnError != nil {
		d.opts.OnError(key, err)
	}
}

func (d *Dispatcher) send(ctx context.Context, key string, ev model.SyncEvent) error {
	if d.opts.Online != nil && !d.opts.Online() {
		d.log.Info("offline, sync skipped", zap.String("key", key), zap.String("action", ev.Action))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, d.opts.Timeout)
	defer cancel()

	if err := d.opts.Submitter.Submit(ctx, ev); err != nil {
		d.log.Warn("cloud sync failed", zap.String("key", key), zap.String("action", ev.Action), zap.Error(err))
		return err
	}
	d.log.Debug("data sent to cloud", zap.String("key", key), zap.String("action", ev.Action))
	return nil
}
