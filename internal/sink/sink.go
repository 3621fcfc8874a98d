// Package sink fans submitted sync events out to the configured
// destinations: the spreadsheet relay, a local workbook and the database.
package sink

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/shift-clock/internal/cloudsync"
	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/repository"
)

// Sink receives one event.
type Sink interface {
	Name() string
	Submit(ctx context.Context, ev model.SyncEvent) error
}

// FanOut delivers to every sink concurrently.
type FanOut struct {
	sinks []Sink
	log   *zap.Logger
}

func NewFanOut(log *zap.Logger, sinks ...Sink) *FanOut {
	if log == nil {
		log = zap.NewNop()
	}
	return &FanOut{sinks: sinks, log: log}
}

// Len is the number of configured sinks.
func (f *FanOut) Len() int { return len(f.sinks) }

// Submit waits for all sinks; one failing sink does not stop the others.
// The returned error joins every failure.
func (f *FanOut) Submit(ctx context.Context, ev model.SyncEvent) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, s := range f.sinks {
		g.Go(func() error {
			start := time.Now()
			err := s.Submit(ctx, ev)
			f.log.Debug("sink submit",
				zap.String("sink", s.Name()),
				zap.String("action", ev.Action),
				zap.Duration("took", time.Since(start)),
				zap.Error(err))
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Relay forwards events to the spreadsheet relay URL.
type Relay struct {
	sub *cloudsync.HTTPSubmitter
}

func NewRelay(url string, timeout time.Duration) *Relay {
	return &Relay{sub: cloudsync.NewHTTPSubmitter(url, "", timeout)}
}

func (r *Relay) Name() string { return "relay" }

func (r *Relay) Submit(ctx context.Context, ev model.SyncEvent) error {
	return r.sub.Submit(ctx, ev)
}

// Database records events through the repository.
type Database struct {
	repo repository.Repository
}

func NewDatabase(repo repository.Repository) *Database {
	return &Database{repo: repo}
}

func (d *Database) Name() string { return "database" }

func (d *Database) Submit(ctx context.Context, ev model.SyncEvent) error {
	return d.repo.RecordEvent(ctx, ev)
}
