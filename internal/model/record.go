package model

import "time"

// Kind classifies a ShiftRecord: work or a named leave category.
type Kind string

const (
	// KindWork is a clocked shift with clock-in and clock-out times.
	KindWork Kind = "work"
	// KindPaidOff is the built-in paid leave day.
	KindPaidOff Kind = "Paid Off"
)

// IsLeave reports whether k is a leave category.
func (k Kind) IsLeave() bool {
	return k != "" && k != KindWork
}

// ShiftRecord is one unit of tracked time or leave.
type ShiftRecord struct {
	ID              string     `json:"id"`
	Kind            Kind       `json:"type"`
	OccurredOn      time.Time  `json:"dateObj"`
	ClockIn         *time.Time `json:"in"`
	ClockOut        *time.Time `json:"out"`
	DurationMinutes int        `json:"duration"`
}

// Open reports whether r is a work record still waiting for its clock-out.
func (r ShiftRecord) Open() bool {
	return r.Kind == KindWork && r.ClockIn != nil && r.ClockOut == nil
}

// Completed reports whether r is a closed work record.
func (r ShiftRecord) Completed() bool {
	return r.Kind == KindWork && r.ClockIn != nil && r.ClockOut != nil
}

// Status is the clock state persisted between runs.
type Status string

const (
	StatusOut        Status = "out"
	StatusIn         Status = "in"
	StatusPendingOut Status = "pending_out"
)

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusOut, StatusIn, StatusPendingOut:
		return true
	}
	return false
}

// TrackerState is the process-wide state kept next to the record list.
type TrackerState struct {
	Status        Status `json:"status"`
	ActiveShiftID string `json:"active_shift_id,omitempty"`
	UserName      string `json:"user_name"`
	AutoShare     bool   `json:"auto_share"`
	Unread        int    `json:"unread"`
}

// SyncEvent is the payload delivered to the submission endpoint.
type SyncEvent struct {
	Name      string `json:"name"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	LocalTime string `json:"localTime"`
}

// Actions carried by SyncEvent for work records. Leave events use the
// leave kind as their action.
const (
	ActionClockIn  = "Clock In"
	ActionClockOut = "Clock Out"
)
