package cloudsync_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Tiliavir/shift-clock/internal/clock"
	"github.com/Tiliavir/shift-clock/internal/cloudsync"
	"github.com/Tiliavir/shift-clock/internal/model"
)

type fakeSubmitter struct {
	mu   sync.Mutex
	sent []model.SyncEvent
	err  error
}

func (f *fakeSubmitter) Submit(_ context.Context, ev model.SyncEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, ev)
	return f.err
}

func (f *fakeSubmitter) calls() []model.SyncEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.SyncEvent(nil), f.sent...)
}

func event(action string) model.SyncEvent {
	return model.SyncEvent{Name: "Dana", Action: action, Timestamp: "2026-03-02T09:00:00.000Z", LocalTime: "9:00am"}
}

func newDispatcher(t *testing.T, sub cloudsync.Submitter) (*cloudsync.Dispatcher, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	d := cloudsync.NewDispatcher(cloudsync.Options{Submitter: sub, Clock: clk})
	t.Cleanup(d.Close)
	return d, clk
}

func TestScheduleWaitsForDelay(t *testing.T) {
	defer goleak.VerifyNone(t)
	sub := &fakeSubmitter{}
	d, clk := newDispatcher(t, sub)

	d.Schedule("a", event(model.ActionClockIn))
	clk.Advance(59 * time.Second)
	assert.Empty(t, sub.calls())
	assert.Equal(t, []string{"a"}, d.Pending())

	clk.Advance(time.Second)
	assert.Equal(t, []model.SyncEvent{event(model.ActionClockIn)}, sub.calls())
	assert.Empty(t, d.Pending())
}

func TestScheduleSupersedesSameKey(t *testing.T) {
	defer goleak.VerifyNone(t)
	sub := &fakeSubmitter{}
	d, clk := newDispatcher(t, sub)

	d.Schedule("a", event("first"))
	clk.Advance(30 * time.Second)
	d.Schedule("a", event("second"))

	// The first timer's deadline passes without a send.
	clk.Advance(30 * time.Second)
	assert.Empty(t, sub.calls())

	clk.Advance(30 * time.Second)
	assert.Equal(t, []model.SyncEvent{event("second")}, sub.calls())
}

func TestDistinctKeysAreIndependent(t *testing.T) {
	defer goleak.VerifyNone(t)
	sub := &fakeSubmitter{}
	d, clk := newDispatcher(t, sub)

	d.Schedule("a", event(model.ActionClockIn))
	d.Schedule("a-out", event(model.ActionClockOut))
	clk.Advance(time.Minute)
	assert.Len(t, sub.calls(), 2)
}

func TestCancel(t *testing.T) {
	defer goleak.VerifyNone(t)
	sub := &fakeSubmitter{}
	d, clk := newDispatcher(t, sub)

	d.Schedule("a", event(model.ActionClockIn))
	assert.True(t, d.Cancel("a"))
	assert.False(t, d.Cancel("a"))
	clk.Advance(2 * time.Minute)
	assert.Empty(t, sub.calls())
	assert.Zero(t, clk.Pending())
}

func TestFailureIsReportedNotRetried(t *testing.T) {
	defer goleak.VerifyNone(t)
	sub := &fakeSubmitter{err: &cloudsync.SyncError{Action: "Clock In", Status: 500, Msg: "boom"}}
	clk := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	var reported []error
	d := cloudsync.NewDispatcher(cloudsync.Options{
		Submitter: sub,
		Clock:     clk,
		OnError:   func(_ string, err error) { reported = append(reported, err) },
	})
	defer d.Close()

	d.Schedule("a", event(model.ActionClockIn))
	clk.Advance(10 * time.Minute)

	assert.Len(t, sub.calls(), 1)
	require.Len(t, reported, 1)
	var se *cloudsync.SyncError
	assert.ErrorAs(t, reported[0], &se)
}

func TestOfflineSkips(t *testing.T) {
	defer goleak.VerifyNone(t)
	sub := &fakeSubmitter{}
	clk := clock.NewFake(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	d := cloudsync.NewDispatcher(cloudsync.Options{
		Submitter: sub,
		Clock:     clk,
		Online:    func() bool { return false },
		OnError:   func(string, error) { t.Error("offline skip must not be reported as an error") },
	})
	defer d.Close()

	d.Schedule("a", event(model.ActionClockIn))
	clk.Advance(time.Minute)
	assert.Empty(t, sub.calls())
	assert.Empty(t, d.Pending(), "skipped events are not retried")
}

func TestFlushSendsImmediately(t *testing.T) {
	defer goleak.VerifyNone(t)
	sub := &fakeSubmitter{}
	d, clk := newDispatcher(t, sub)

	d.Schedule("a", event(model.ActionClockIn))
	d.Schedule("b", event("Paid Off"))
	require.NoError(t, d.Flush(context.Background()))

	assert.Len(t, sub.calls(), 2)
	assert.Empty(t, d.Pending())
	assert.Zero(t, clk.Pending())
}

func TestFlushReturnsFailures(t *testing.T) {
	defer goleak.VerifyNone(t)
	boom := errors.New("boom")
	d, _ := newDispatcher(t, &fakeSubmitter{err: boom})

	d.Schedule("a", event(model.ActionClockIn))
	assert.ErrorIs(t, d.Flush(context.Background()), boom)
}

func TestUnconfiguredDropsEvents(t *testing.T) {
	defer goleak.VerifyNone(t)
	d, clk := newDispatcher(t, nil)

	assert.False(t, d.Available())
	d.Schedule("a", event(model.ActionClockIn))
	assert.Empty(t, d.Pending())
	assert.Zero(t, clk.Pending())
}

func TestCloseDropsPending(t *testing.T) {
	defer goleak.VerifyNone(t)
	sub := &fakeSubmitter{}
	d, clk := newDispatcher(t, sub)

	d.Schedule("a", event(model.ActionClockIn))
	d.Close()
	clk.Advance(time.Minute)
	assert.Empty(t, sub.calls())

	d.Schedule("b", event(model.ActionClockIn))
	assert.Empty(t, d.Pending())
}
