// Package shift implements the clock-in / clock-out state machine.
//
// Apply is a pure transition function: it takes the current State and an
// Event and returns the next State plus the Effects the runtime must
// perform. Machine owns a State, performs the effects and drives the
// elapsed and countdown timers.
package shift

import (
	"fmt"
	"strings"
	"time"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/progress"
	"github.com/Tiliavir/shift-clock/internal/timecalc"
)

// Policy holds the tunables of the machine.
type Policy struct {
	// GraceSeconds is the length of the cancellable clock-out window.
	GraceSeconds int
	// MinShift is the shortest shift kept; shorter ones are discarded as
	// accidental taps.
	MinShift time.Duration
	// Debounce ignores a repeated clock-in trigger within this window.
	Debounce time.Duration
	// LeaveMinutes is the fixed duration credited per leave kind.
	// Unknown kinds are credited 0.
	LeaveMinutes map[model.Kind]int
}

// DefaultPolicy returns the standard rules: 10 s grace window, one-minute
// minimum shift, 2 s debounce, 8 h for a paid day off.
func DefaultPolicy() Policy {
	return Policy{
		GraceSeconds: progress.DefaultGraceSeconds,
		MinShift:     time.Minute,
		Debounce:     2 * time.Second,
		LeaveMinutes: map[model.Kind]int{model.KindPaidOff: 480},
	}
}

// State is everything the machine owns.
type State struct {
	Tracker model.TrackerState
	// Records are ordered newest first.
	Records []model.ShiftRecord
	// GraceRemaining counts down the clock-out window in seconds.
	GraceRemaining int
	// LastTrigger is the instant of the last accepted clock trigger.
	LastTrigger time.Time
	// LastMessage is the most recent generated summary line.
	LastMessage string
}

// Active returns the active shift record and its index.
func (s State) Active() (model.ShiftRecord, int, bool) {
	if s.Tracker.ActiveShiftID == "" {
		return model.ShiftRecord{}, -1, false
	}
	for i, r := range s.Records {
		if r.ID == s.Tracker.ActiveShiftID {
			return r, i, true
		}
	}
	return model.ShiftRecord{}, -1, false
}

// OutKey is the sync key of a clock-out event; it differs from the
// record id so it never replaces the pending clock-in event.
func OutKey(id string) string { return id + "-out" }

// Apply computes the transition for ev. On error the returned state is s
// unchanged and no effects are returned.
func (p Policy) Apply(s State, ev Event) (State, []Effect, error) {
	switch ev := ev.(type) {
	case ClockIn:
		if p.debounced(s, ev.Now) {
			return s, nil, nil
		}
		return p.clockIn(s, ev.Now, ev.ID)
	case Toggle:
		if p.debounced(s, ev.Now) {
			return s, nil, nil
		}
		switch s.Tracker.Status {
		case model.StatusOut:
			return p.clockIn(s, ev.Now, ev.ID)
		case model.StatusIn:
			next, effects, err := p.requestClockOut(s, ev.Now)
			if err == nil {
				next.LastTrigger = ev.Now
			}
			return next, effects, err
		default:
			next, effects, err := p.cancel(s)
			if err == nil {
				next.LastTrigger = ev.Now
			}
			return next, effects, err
		}
	case RequestClockOut:
		return p.requestClockOut(s, ev.Now)
	case Cancel:
		return p.cancel(s)
	case CountdownTick:
		return p.tick(s, ev.Now)
	case Finalize:
		if s.Tracker.Status != model.StatusPendingOut {
			return s, nil, invalid("no clock-out pending")
		}
		return p.finalize(s, ev.Now)
	case AddLeave:
		return p.addLeave(s, ev)
	case Delete:
		return p.delete(s, ev.ID)
	case Clear:
		return p.clear(s)
	case SetUserName:
		s.Tracker.UserName = ev.Name
		return s, []Effect{Persist{}}, nil
	case SetAutoShare:
		s.Tracker.AutoShare = ev.Enabled
		return s, []Effect{Persist{}}, nil
	case ResetUnread:
		if s.Tracker.Unread == 0 {
			return s, nil, nil
		}
		s.Tracker.Unread = 0
		return s, []Effect{Persist{}}, nil
	}
	return s, nil, fmt.Errorf("unknown event %T", ev)
}

func (p Policy) debounced(s State, now time.Time) bool {
	if s.LastTrigger.IsZero() {
		return false
	}
	d := now.Sub(s.LastTrigger)
	return d >= 0 && d < p.Debounce
}

func (p Policy) clockIn(s State, now time.Time, id string) (State, []Effect, error) {
	if strings.TrimSpace(s.Tracker.UserName) == "" {
		return s, nil, ErrMissingUserName
	}
	if s.Tracker.Status != model.StatusOut {
		return s, nil, invalid("already clocked in")
	}
	if id == "" {
		return s, nil, fmt.Errorf("clock in: empty record id")
	}

	in := now
	rec := model.ShiftRecord{
		ID:         id,
		Kind:       model.KindWork,
		OccurredOn: now,
		ClockIn:    &in,
	}
	msg := WorkMessage(now, s.Tracker.UserName, "clock in")

	s.Records = prepend(s.Records, rec)
	s.Tracker.Status = model.StatusIn
	s.Tracker.ActiveShiftID = id
	s.Tracker.Unread++
	s.LastTrigger = now
	s.LastMessage = msg

	return s, []Effect{
		Persist{},
		Announce{Message: msg},
		StartElapsed{},
		ScheduleSync{Key: id, Event: workEvent(s.Tracker.UserName, model.ActionClockIn, now)},
	}, nil
}

func (p Policy) requestClockOut(s State, now time.Time) (State, []Effect, error) {
	if s.Tracker.Status != model.StatusIn {
		return s, nil, invalid("not clocked in")
	}
	rec, idx, ok := s.Active()
	if !ok || rec.ClockIn == nil {
		// The active record is gone or unusable; nothing to close.
		s.Tracker.Status = model.StatusOut
		s.Tracker.ActiveShiftID = ""
		return s, []Effect{StopElapsed{}, Persist{}, Notice{Text: "Active shift not found"}}, nil
	}

	out := now
	rec.ClockOut = &out
	rec.DurationMinutes = durationMinutes(*rec.ClockIn, out)
	msg := WorkMessage(now, s.Tracker.UserName, "clock out")

	s.Records = replace(s.Records, idx, rec)
	s.Tracker.Status = model.StatusPendingOut
	s.Tracker.Unread++
	s.GraceRemaining = p.graceSeconds()
	s.LastMessage = msg

	return s, []Effect{
		Persist{},
		Announce{Message: msg},
		StopElapsed{},
		StartCountdown{},
	}, nil
}

func (p Policy) cancel(s State) (State, []Effect, error) {
	if s.Tracker.Status != model.StatusPendingOut {
		return s, nil, invalid("no clock-out pending")
	}
	s.GraceRemaining = 0
	rec, idx, ok := s.Active()
	if !ok {
		s.Tracker.Status = model.StatusOut
		s.Tracker.ActiveShiftID = ""
		return s, []Effect{StopCountdown{}, Persist{}, Notice{Text: "Active shift not found"}}, nil
	}
	rec.ClockOut = nil
	rec.DurationMinutes = 0
	s.Records = replace(s.Records, idx, rec)
	s.Tracker.Status = model.StatusIn

	return s, []Effect{
		StopCountdown{},
		Persist{},
		StartElapsed{},
		Notice{Text: "Clock out cancelled"},
	}, nil
}

func (p Policy) tick(s State, now time.Time) (State, []Effect, error) {
	if s.Tracker.Status != model.StatusPendingOut {
		return s, nil, nil
	}
	s.GraceRemaining--
	if s.GraceRemaining > 0 {
		return s, nil, nil
	}
	return p.finalize(s, now)
}

func (p Policy) finalize(s State, now time.Time) (State, []Effect, error) {
	effects := []Effect{StopCountdown{}}
	rec, idx, ok := s.Active()

	s.Tracker.Status = model.StatusOut
	s.Tracker.ActiveShiftID = ""
	s.GraceRemaining = 0

	if !ok || rec.ClockIn == nil {
		return s, append(effects, Persist{}), nil
	}
	if rec.ClockOut == nil {
		out := now
		rec.ClockOut = &out
		rec.DurationMinutes = durationMinutes(*rec.ClockIn, out)
	}

	if rec.ClockOut.Sub(*rec.ClockIn) < p.MinShift {
		s.Records = remove(s.Records, idx)
		return s, append(effects,
			Persist{},
			CancelSync{Key: rec.ID},
			Notice{Text: "Shift shorter than a minute was discarded"},
		), nil
	}

	s.Records = replace(s.Records, idx, rec)
	return s, append(effects,
		Persist{},
		ScheduleSync{Key: OutKey(rec.ID), Event: workEvent(s.Tracker.UserName, model.ActionClockOut, *rec.ClockOut)},
	), nil
}

func (p Policy) addLeave(s State, ev AddLeave) (State, []Effect, error) {
	if strings.TrimSpace(s.Tracker.UserName) == "" {
		return s, nil, ErrMissingUserName
	}
	kind := model.Kind(strings.TrimSpace(string(ev.Kind)))
	if !kind.IsLeave() {
		return s, nil, &model.ValidationError{Field: "kind", Msg: fmt.Sprintf("invalid leave kind %q", ev.Kind)}
	}
	if ev.Date.IsZero() {
		return s, nil, &model.ValidationError{Field: "date", Msg: "missing leave date"}
	}
	if ev.ID == "" {
		return s, nil, fmt.Errorf("add leave: empty record id")
	}

	if !ev.Confirmed {
		var reasons []string
		if s.Tracker.Status != model.StatusOut && timecalc.SameDay(ev.Date, ev.Now) {
			reasons = append(reasons, "a shift is running today")
		}
		for _, r := range s.Records {
			if timecalc.SameDay(r.OccurredOn.In(ev.Date.Location()), ev.Date) {
				reasons = append(reasons, "a record already exists for "+timecalc.FormatShortDate(ev.Date))
				break
			}
		}
		if len(reasons) > 0 {
			return s, nil, &ConfirmationError{Reasons: reasons}
		}
	}

	day := timecalc.StartOfDay(ev.Date)
	rec := model.ShiftRecord{
		ID:              ev.ID,
		Kind:            kind,
		OccurredOn:      day,
		DurationMinutes: p.LeaveMinutes[kind],
	}
	msg := LeaveMessage(day, s.Tracker.UserName, kind)

	s.Records = prepend(s.Records, rec)
	s.Tracker.Unread++
	s.LastMessage = msg

	return s, []Effect{
		Persist{},
		Announce{Message: msg},
		ScheduleSync{Key: rec.ID, Event: model.SyncEvent{
			Name:      strings.TrimSpace(s.Tracker.UserName),
			Action:    string(kind),
			Timestamp: isoTimestamp(day),
			LocalTime: "N/A",
		}},
	}, nil
}

func (p Policy) delete(s State, id string) (State, []Effect, error) {
	idx := -1
	for i, r := range s.Records {
		if r.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Records = remove(s.Records, idx)
	effects := []Effect{CancelSync{Key: id}, CancelSync{Key: OutKey(id)}}
	if id == s.Tracker.ActiveShiftID {
		s.Tracker.Status = model.StatusOut
		s.Tracker.ActiveShiftID = ""
		s.GraceRemaining = 0
		effects = append(effects, StopElapsed{}, StopCountdown{})
	}
	return s, append(effects, Persist{}), nil
}

func (p Policy) clear(s State) (State, []Effect, error) {
	effects := []Effect{StopElapsed{}, StopCountdown{}}
	for _, r := range s.Records {
		effects = append(effects, CancelSync{Key: r.ID}, CancelSync{Key: OutKey(r.ID)})
	}
	next := State{
		Tracker: model.TrackerState{Status: model.StatusOut},
		Records: []model.ShiftRecord{},
	}
	return next, append(effects, Wipe{}), nil
}

func (p Policy) graceSeconds() int {
	if p.GraceSeconds <= 0 {
		return progress.DefaultGraceSeconds
	}
	return p.GraceSeconds
}

func durationMinutes(in, out time.Time) int {
	d := out.Sub(in)
	if d < 0 {
		return 0
	}
	return int(d / time.Minute)
}

func workEvent(user, action string, at time.Time) model.SyncEvent {
	return model.SyncEvent{
		Name:      strings.TrimSpace(user),
		Action:    action,
		Timestamp: isoTimestamp(at),
		LocalTime: timecalc.FormatClockTime(at),
	}
}

// isoTimestamp formats t like JavaScript's toISOString.
func isoTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// The helpers below never modify their input so a State handed to Apply
// stays valid after the call.

func prepend(records []model.ShiftRecord, r model.ShiftRecord) []model.ShiftRecord {
	out := make([]model.ShiftRecord, 0, len(records)+1)
	out = append(out, r)
	return append(out, records...)
}

func replace(records []model.ShiftRecord, idx int, r model.ShiftRecord) []model.ShiftRecord {
	out := make([]model.ShiftRecord, len(records))
	copy(out, records)
	out[idx] = r
	return out
}

func remove(records []model.ShiftRecord, idx int) []model.ShiftRecord {
	out := make([]model.ShiftRecord, 0, len(records)-1)
	out = append(out, records[:idx]...)
	return append(out, records[idx+1:]...)
}
