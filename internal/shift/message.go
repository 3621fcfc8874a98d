package shift

import (
	"fmt"
	"strings"
	"time"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/timecalc"
)

// WorkMessage is the one-line summary of a clock event, e.g.
// "9:00am Dana - clock in".
func WorkMessage(at time.Time, user, action string) string {
	return fmt.Sprintf("%s %s - %s", timecalc.FormatClockTime(at), strings.TrimSpace(user), action)
}

// LeaveMessage is the one-line summary of a leave day, e.g.
// "Jan 12 Dana - Paid Off".
func LeaveMessage(day time.Time, user string, kind model.Kind) string {
	return fmt.Sprintf("%s %s - %s", timecalc.FormatShortDate(day), strings.TrimSpace(user), kind)
}
