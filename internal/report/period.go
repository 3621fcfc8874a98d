// Package report builds timesheets over half-month or custom periods.
package report

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/timecalc"
)

// CustomValue marks a period built from an explicit date range.
const CustomValue = "custom"

// Period is an inclusive reporting window.
type Period struct {
	// Value identifies the period, e.g. "2026-1-16-31" or "custom".
	Value string
	Label string
	Start time.Time
	// End is inclusive, the last millisecond of the final day.
	End time.Time
}

// Contains reports whether t falls within the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// HalfMonth returns the first (1-15) or second (16-end) half of a month.
func HalfMonth(year int, month time.Month, first bool, loc *time.Location) Period {
	if loc == nil {
		loc = time.Local
	}
	if first {
		return Period{
			Value: fmt.Sprintf("%d-%d-1-15", year, int(month)),
			Label: fmt.Sprintf("%s 1-15, %d", month.String()[:3], year),
			Start: time.Date(year, month, 1, 0, 0, 0, 0, loc),
			End:   timecalc.EndOfDay(time.Date(year, month, 15, 0, 0, 0, 0, loc)),
		}
	}
	last := timecalc.LastDayOfMonth(year, month)
	return Period{
		Value: fmt.Sprintf("%d-%d-16-31", year, int(month)),
		Label: fmt.Sprintf("%s 16-End, %d", month.String()[:3], year),
		Start: time.Date(year, month, 16, 0, 0, 0, 0, loc),
		End:   timecalc.EndOfDay(time.Date(year, month, last, 0, 0, 0, 0, loc)),
	}
}

// HalfMonthPeriods lists the selectable windows relative to now: the
// current half, the other half of this month, then the second and first
// halves of the previous month.
func HalfMonthPeriods(now time.Time) []Period {
	loc := now.Location()
	y, m := now.Year(), now.Month()
	first := now.Day() <= 15
	prev := time.Date(y, m-1, 1, 0, 0, 0, 0, loc)
	return []Period{
		HalfMonth(y, m, first, loc),
		HalfMonth(y, m, !first, loc),
		HalfMonth(prev.Year(), prev.Month(), false, loc),
		HalfMonth(prev.Year(), prev.Month(), true, loc),
	}
}

// ParsePeriod resolves a half-month value such as "2026-1-1-15". Any
// well-formed month is accepted, not only the ones HalfMonthPeriods lists.
func ParsePeriod(value string, loc *time.Location) (Period, error) {
	bad := &model.ValidationError{Field: "period", Msg: fmt.Sprintf("invalid period %q", value)}
	parts := strings.Split(value, "-")
	if len(parts) != 4 {
		return Period{}, bad
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 1 {
		return Period{}, bad
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return Period{}, bad
	}
	switch parts[2] + "-" + parts[3] {
	case "1-15":
		return HalfMonth(year, time.Month(month), true, loc), nil
	case "16-31":
		return HalfMonth(year, time.Month(month), false, loc), nil
	}
	return Period{}, bad
}

// CustomPeriod builds a window from two YYYY-MM-DD dates, the end day
// included in full.
func CustomPeriod(start, end string, loc *time.Location) (Period, error) {
	if start == "" || end == "" {
		return Period{}, &model.ValidationError{Field: "range", Msg: "both start and end dates are required"}
	}
	from, err := timecalc.ParseDate(start, loc)
	if err != nil {
		return Period{}, &model.ValidationError{Field: "start", Msg: fmt.Sprintf("invalid start date %q", start)}
	}
	to, err := timecalc.ParseDate(end, loc)
	if err != nil {
		return Period{}, &model.ValidationError{Field: "end", Msg: fmt.Sprintf("invalid end date %q", end)}
	}
	if to.Before(from) {
		return Period{}, &model.ValidationError{Field: "range", Msg: "end date is before start date"}
	}
	return Period{
		Value: CustomValue,
		Label: start + " to " + end,
		Start: from,
		End:   timecalc.EndOfDay(to),
	}, nil
}
