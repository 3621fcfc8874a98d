package shift

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Tiliavir/shift-clock/internal/clock"
	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/progress"
	"github.com/Tiliavir/shift-clock/internal/storage"
	"github.com/Tiliavir/shift-clock/internal/timecalc"
)

// Store persists the machine state.
type Store interface {
	Load() (storage.Data, error)
	Save(storage.Data) error
	Clear() error
}

// Scheduler accepts deferred sync events.
type Scheduler interface {
	Schedule(key string, ev model.SyncEvent)
	Cancel(key string) bool
}

// Clipboard receives generated summary lines.
type Clipboard interface {
	Copy(text string) error
}

// Sharer sends a summary line somewhere outside the app.
type Sharer interface {
	Share(ctx context.Context, text string) error
}

const shareTimeout = 15 * time.Second

// Options configures a Machine. Store is required; the rest default to
// no-ops, the wall clock and DefaultPolicy.
type Options struct {
	Store     Store
	Clock     clock.Clock
	Policy    *Policy
	Sync      Scheduler
	Clipboard Clipboard
	Sharer    Sharer
	Logger    *zap.Logger
	NewID     func() string

	// OnUpdate is called after every transition and every timer tick.
	OnUpdate func(View)
	// OnNotice receives transient user-facing messages.
	OnNotice func(string)
}

// View is a read-only snapshot for rendering.
type View struct {
	Status         model.Status
	UserName       string
	AutoShare      bool
	Unread         int
	Active         *model.ShiftRecord
	Timer          progress.Snapshot
	GraceRemaining int
	Grace          float64
	LastMessage    string
}

// Machine owns the tracker state and records. It is safe for concurrent
// use; timer callbacks and public methods serialize on one mutex.
type Machine struct {
	opts   Options
	policy Policy
	log    *zap.Logger

	mu             sync.Mutex
	state          State
	elapsedGen     int
	elapsedTimer   clock.Timer
	countdownGen   int
	countdownTimer clock.Timer
	closed         bool

	shares sync.WaitGroup
}

// New loads the persisted state and resumes it. Corrupt stored values are
// logged and replaced with defaults; any other load error is returned.
func New(opts Options) (*Machine, error) {
	if opts.Store == nil {
		return nil, errors.New("shift: store is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.NewID == nil {
		opts.NewID = timecalc.GenerateID
	}
	policy := DefaultPolicy()
	if opts.Policy != nil {
		policy = *opts.Policy
	}

	m := &Machine{opts: opts, policy: policy, log: opts.Logger}

	d, err := opts.Store.Load()
	if err != nil {
		if !storage.IsParseError(err) {
			return nil, fmt.Errorf("load state: %w", err)
		}
		m.log.Warn("corrupt stored values replaced with defaults", zap.Error(err))
	}
	m.state = State{Tracker: d.State, Records: d.Records}
	if m.state.Records == nil {
		m.state.Records = []model.ShiftRecord{}
	}
	if next, closed := closeDangling(m.state); len(closed) > 0 {
		m.log.Warn("closing shifts left open without an active status", zap.Strings("shifts", closed))
		m.state = next
		if err := m.persist(); err != nil {
			return nil, err
		}
		for _, id := range closed {
			m.notice(fmt.Sprintf("Shift %s had no clock-out and was closed at its clock-in", id))
		}
	}

	switch m.state.Tracker.Status {
	case model.StatusPendingOut:
		// The countdown is not persisted; an interrupted window counts as expired.
		m.log.Debug("finalizing interrupted clock-out", zap.String("shift", m.state.Tracker.ActiveShiftID))
		if err := m.dispatch(Finalize{Now: opts.Clock.Now()}); err != nil {
			return nil, err
		}
	case model.StatusIn:
		if _, _, ok := m.state.Active(); !ok {
			m.log.Warn("active shift missing, resetting to out", zap.String("shift", m.state.Tracker.ActiveShiftID))
			m.state.Tracker.Status = model.StatusOut
			m.state.Tracker.ActiveShiftID = ""
			if err := m.persist(); err != nil {
				return nil, err
			}
			break
		}
		m.mu.Lock()
		m.startElapsed()
		m.mu.Unlock()
	}
	return m, nil
}

// ClockIn starts a new shift.
func (m *Machine) ClockIn() error {
	return m.dispatch(ClockIn{Now: m.opts.Clock.Now(), ID: m.opts.NewID()})
}

// RequestClockOut closes the active shift and opens the grace window.
func (m *Machine) RequestClockOut() error {
	return m.dispatch(RequestClockOut{Now: m.opts.Clock.Now()})
}

// Toggle is the main button.
func (m *Machine) Toggle() error {
	return m.dispatch(Toggle{Now: m.opts.Clock.Now(), ID: m.opts.NewID()})
}

// Cancel reopens the shift during the grace window.
func (m *Machine) Cancel() error {
	return m.dispatch(Cancel{})
}

// Finalize ends the grace window now.
func (m *Machine) Finalize() error {
	return m.dispatch(Finalize{Now: m.opts.Clock.Now()})
}

// AddLeave records a leave day. Without confirmed it may return a
// *ConfirmationError; repeat with confirmed to proceed.
func (m *Machine) AddLeave(kind model.Kind, date time.Time, confirmed bool) error {
	return m.dispatch(AddLeave{
		Kind:      kind,
		Date:      date,
		Now:       m.opts.Clock.Now(),
		ID:        m.opts.NewID(),
		Confirmed: confirmed,
	})
}

// Delete removes a record by id.
func (m *Machine) Delete(id string) error {
	return m.dispatch(Delete{ID: id})
}

// Clear removes all history and settings.
func (m *Machine) Clear() error {
	return m.dispatch(Clear{})
}

func (m *Machine) SetUserName(name string) error {
	return m.dispatch(SetUserName{Name: name})
}

func (m *Machine) SetAutoShare(enabled bool) error {
	return m.dispatch(SetAutoShare{Enabled: enabled})
}

func (m *Machine) ResetUnread() error {
	return m.dispatch(ResetUnread{})
}

// View returns the current display snapshot.
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

// Records returns a copy of all records, newest first.
func (m *Machine) Records() []model.ShiftRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.ShiftRecord, len(m.state.Records))
	copy(out, m.state.Records)
	return out
}

// Close stops the timers and waits for in-flight shares. The persisted
// state is left as is, so a pending clock-out is finalized on next start.
func (m *Machine) Close() {
	m.mu.Lock()
	m.closed = true
	m.stopElapsed()
	m.stopCountdown()
	m.mu.Unlock()
	m.shares.Wait()
}

func (m *Machine) dispatch(ev Event) error {
	m.mu.Lock()
	post, err := m.applyLocked(ev)
	m.mu.Unlock()
	if err != nil {
		return err
	}
	post()
	return nil
}

// applyLocked runs one transition and its effects. Storage effects run
// first; if they fail the state is restored and nothing else happens.
// The returned func publishes the result and must run without m.mu held.
func (m *Machine) applyLocked(ev Event) (func(), error) {
	if m.closed {
		return nil, errors.New("shift: machine closed")
	}
	prev := m.state
	next, effects, err := m.policy.Apply(prev, ev)
	if err != nil {
		return nil, err
	}
	if len(effects) == 0 && !stateChanged(prev, next) {
		return func() {}, nil
	}
	m.state = next

	for _, e := range effects {
		var err error
		switch e.(type) {
		case Persist:
			err = m.persist()
		case Wipe:
			err = m.opts.Store.Clear()
		}
		if err != nil {
			m.state = prev
			return nil, fmt.Errorf("persist state: %w", err)
		}
	}

	var (
		notices   []string
		announces []string
	)
	for _, e := range effects {
		switch e := e.(type) {
		case StartElapsed:
			m.startElapsed()
		case StopElapsed:
			m.stopElapsed()
		case StartCountdown:
			m.startCountdown()
		case StopCountdown:
			m.stopCountdown()
		case ScheduleSync:
			if m.opts.Sync != nil {
				m.opts.Sync.Schedule(e.Key, e.Event)
			}
		case CancelSync:
			if m.opts.Sync != nil {
				m.opts.Sync.Cancel(e.Key)
			}
		case Notice:
			notices = append(notices, e.Text)
		case Announce:
			announces = append(announces, e.Message)
		}
	}

	view := m.viewLocked()
	autoShare := m.state.Tracker.AutoShare
	return func() {
		for _, msg := range announces {
			m.announce(msg, autoShare)
		}
		for _, n := range notices {
			m.notice(n)
		}
		if m.opts.OnUpdate != nil {
			m.opts.OnUpdate(view)
		}
	}, nil
}

func (m *Machine) persist() error {
	return m.opts.Store.Save(storage.Data{State: m.state.Tracker, Records: m.state.Records})
}

func (m *Machine) announce(msg string, share bool) {
	if m.opts.Clipboard != nil {
		if err := m.opts.Clipboard.Copy(msg); err != nil {
			m.log.Warn("clipboard copy failed", zap.Error(err))
		} else {
			m.notice("Copied to clipboard")
		}
	}
	if !share || m.opts.Sharer == nil {
		return
	}
	m.shares.Add(1)
	go func() {
		defer m.shares.Done()
		ctx, cancel := context.WithTimeout(context.Background(), shareTimeout)
		defer cancel()
		if err := m.opts.Sharer.Share(ctx, msg); err != nil {
			m.log.Warn("share failed", zap.Error(err))
		}
	}()
}

func (m *Machine) notice(text string) {
	m.log.Debug("notice", zap.String("text", text))
	if m.opts.OnNotice != nil {
		m.opts.OnNotice(text)
	}
}

func (m *Machine) startElapsed() {
	m.stopElapsed()
	gen := m.elapsedGen
	m.elapsedTimer = m.opts.Clock.AfterFunc(time.Second, func() { m.onElapsed(gen) })
}

func (m *Machine) stopElapsed() {
	m.elapsedGen++
	if m.elapsedTimer != nil {
		m.elapsedTimer.Stop()
		m.elapsedTimer = nil
	}
}

func (m *Machine) onElapsed(gen int) {
	m.mu.Lock()
	if m.closed || gen != m.elapsedGen || m.state.Tracker.Status != model.StatusIn {
		m.mu.Unlock()
		return
	}
	m.elapsedTimer = m.opts.Clock.AfterFunc(time.Second, func() { m.onElapsed(gen) })
	view := m.viewLocked()
	m.mu.Unlock()

	if m.opts.OnUpdate != nil {
		m.opts.OnUpdate(view)
	}
}

func (m *Machine) startCountdown() {
	m.stopCountdown()
	gen := m.countdownGen
	m.countdownTimer = m.opts.Clock.AfterFunc(time.Second, func() { m.onCountdown(gen) })
}

func (m *Machine) stopCountdown() {
	m.countdownGen++
	if m.countdownTimer != nil {
		m.countdownTimer.Stop()
		m.countdownTimer = nil
	}
}

func (m *Machine) onCountdown(gen int) {
	m.mu.Lock()
	if m.closed || gen != m.countdownGen {
		m.mu.Unlock()
		return
	}
	post, err := m.applyLocked(CountdownTick{Now: m.opts.Clock.Now()})
	if err != nil {
		m.log.Error("clock-out countdown", zap.Error(err))
		m.mu.Unlock()
		m.notice("Could not save clock out: " + err.Error())
		return
	}
	// Finalize bumps the generation through StopCountdown.
	if gen == m.countdownGen && m.state.Tracker.Status == model.StatusPendingOut {
		m.countdownTimer = m.opts.Clock.AfterFunc(time.Second, func() { m.onCountdown(gen) })
	}
	m.mu.Unlock()
	post()
}

func (m *Machine) viewLocked() View {
	t := m.state.Tracker
	v := View{
		Status:         t.Status,
		UserName:       t.UserName,
		AutoShare:      t.AutoShare,
		Unread:         t.Unread,
		Timer:          progress.Zero,
		GraceRemaining: m.state.GraceRemaining,
		LastMessage:    m.state.LastMessage,
	}
	if rec, _, ok := m.state.Active(); ok {
		v.Active = &rec
		if t.Status == model.StatusIn && rec.ClockIn != nil {
			v.Timer = progress.Compute(m.opts.Clock.Now(), *rec.ClockIn)
		}
	}
	if t.Status == model.StatusPendingOut {
		v.Grace = progress.Grace(m.state.GraceRemaining, m.policy.graceSeconds())
	}
	return v
}

// closeDangling stamps every open work record other than the active one
// out at its own clock-in, so at most one shift is open.
func closeDangling(s State) (State, []string) {
	var closed []string
	for i, r := range s.Records {
		if !r.Open() || (r.ID == s.Tracker.ActiveShiftID && s.Tracker.Status != model.StatusOut) {
			continue
		}
		if closed == nil {
			s.Records = append([]model.ShiftRecord(nil), s.Records...)
		}
		out := *r.ClockIn
		r.ClockOut = &out
		r.DurationMinutes = 0
		s.Records[i] = r
		closed = append(closed, r.ID)
	}
	return s, closed
}

func stateChanged(a, b State) bool {
	return a.Tracker != b.Tracker || a.GraceRemaining != b.GraceRemaining ||
		!a.LastTrigger.Equal(b.LastTrigger) || a.LastMessage != b.LastMessage ||
		len(a.Records) != len(b.Records)
}
