package shift

import (
	"time"

	"github.com/Tiliavir/shift-clock/internal/model"
)

// Event is an input to Apply.
type Event interface{ isEvent() }

// ClockIn starts a shift. ID is the id of the record to create.
type ClockIn struct {
	Now time.Time
	ID  string
}

// RequestClockOut closes the active shift and opens the grace window.
type RequestClockOut struct {
	Now time.Time
}

// Toggle is the single main button: clock in when out, request clock-out
// when in, cancel while a clock-out is pending.
type Toggle struct {
	Now time.Time
	ID  string
}

// Cancel reopens the active shift during the grace window.
type Cancel struct{}

// CountdownTick advances the grace window by one second.
type CountdownTick struct {
	Now time.Time
}

// Finalize ends the grace window immediately.
type Finalize struct {
	Now time.Time
}

// AddLeave records a leave day of Kind on Date.
type AddLeave struct {
	Kind      model.Kind
	Date      time.Time
	Now       time.Time
	ID        string
	Confirmed bool
}

// Delete removes a record.
type Delete struct {
	ID string
}

// Clear removes every record and setting.
type Clear struct{}

// SetUserName changes the name used to label records and messages.
type SetUserName struct {
	Name string
}

// SetAutoShare toggles sharing of generated messages.
type SetAutoShare struct {
	Enabled bool
}

// ResetUnread marks all notifications as read.
type ResetUnread struct{}

func (ClockIn) isEvent()         {}
func (RequestClockOut) isEvent() {}
func (Toggle) isEvent()          {}
func (Cancel) isEvent()          {}
func (CountdownTick) isEvent()   {}
func (Finalize) isEvent()        {}
func (AddLeave) isEvent()        {}
func (Delete) isEvent()          {}
func (Clear) isEvent()           {}
func (SetUserName) isEvent()     {}
func (SetAutoShare) isEvent()    {}
func (ResetUnread) isEvent()     {}

// Effect is an action Apply asks the runtime to perform.
type Effect interface{ isEffect() }

// Persist writes state and records to the store.
type Persist struct{}

// Wipe removes everything from the store.
type Wipe struct{}

// Announce copies Message to the clipboard and shares it if enabled.
type Announce struct {
	Message string
}

// ScheduleSync arms a deferred delivery of Event under Key, replacing any
// pending delivery for the same key.
type ScheduleSync struct {
	Key   string
	Event model.SyncEvent
}

// CancelSync drops the pending delivery for Key, if any.
type CancelSync struct {
	Key string
}

// Notice is a transient message for the user.
type Notice struct {
	Text string
}

type (
	StartElapsed   struct{}
	StopElapsed    struct{}
	StartCountdown struct{}
	StopCountdown  struct{}
)

func (Persist) isEffect()        {}
func (Wipe) isEffect()           {}
func (Announce) isEffect()       {}
func (ScheduleSync) isEffect()   {}
func (CancelSync) isEffect()     {}
func (Notice) isEffect()         {}
func (StartElapsed) isEffect()   {}
func (StopElapsed) isEffect()    {}
func (StartCountdown) isEffect() {}
func (StopCountdown) isEffect()  {}
