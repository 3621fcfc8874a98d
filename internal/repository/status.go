package repository

import (
	"sort"
	"time"

	"github.com/Tiliavir/shift-clock/internal/model"
)

// StatusLimit is how many recent logs the status board looks at.
const StatusLimit = 1000

// Presence states shown on the status board.
const (
	PresenceWorking = "Working"
	PresenceOffline = "Offline"
	PresencePaidOff = "PaidOff"
)

// UserStatus is one line of the status board.
type UserStatus struct {
	Name   string `json:"name"`
	State  string `json:"state"`
	Status string `json:"status"`
	Since  string `json:"since"`
	// Timestamp is set while working so clients can show the running time.
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// DeriveStatuses picks each user's most recent decisive log. logs must be
// ordered newest first; actions other than clock in, clock out and paid
// off are skipped. The result is sorted by name.
func DeriveStatuses(logs []LogRow) []UserStatus {
	seen := map[string]bool{}
	out := []UserStatus{}
	for _, l := range logs {
		if seen[l.UserName] {
			continue
		}
		s := UserStatus{Name: l.UserName, Since: l.LocalString}
		switch l.Action {
		case model.ActionClockIn:
			ts := l.ClientTime
			s.State, s.Status, s.Timestamp = PresenceWorking, "🟢 Working", &ts
		case model.ActionClockOut:
			s.State, s.Status = PresenceOffline, "⚪️ Offline"
		case string(model.KindPaidOff):
			s.State, s.Status = PresencePaidOff, "🏖️ Paid Off"
		default:
			continue
		}
		seen[l.UserName] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
