package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/timecalc"
)

const separator = "----------------"

// Line is one counted record of a timesheet.
type Line struct {
	ID       string
	Date     time.Time
	Kind     model.Kind
	ClockIn  *time.Time
	ClockOut *time.Time
	Minutes  int
}

// Report is a timesheet for one user over one period. It is derived on
// demand and never stored.
type Report struct {
	User         string
	Period       Period
	Lines        []Line
	TotalMinutes int
}

// Build filters records to the period, orders them by OccurredOn and
// totals completed work and leave. Open work records are left out.
func Build(records []model.ShiftRecord, user string, p Period) Report {
	loc := p.Start.Location()
	in := make([]model.ShiftRecord, 0, len(records))
	for _, r := range records {
		if p.Contains(r.OccurredOn) {
			in = append(in, r)
		}
	}
	sort.SliceStable(in, func(i, j int) bool {
		return in[i].OccurredOn.Before(in[j].OccurredOn)
	})

	rep := Report{User: user, Period: p, Lines: []Line{}}
	for _, r := range in {
		if !r.Completed() && !r.Kind.IsLeave() {
			continue
		}
		l := Line{
			ID:      r.ID,
			Date:    r.OccurredOn.In(loc),
			Kind:    r.Kind,
			Minutes: r.DurationMinutes,
		}
		if r.Completed() {
			cin, cout := r.ClockIn.In(loc), r.ClockOut.In(loc)
			l.ClockIn, l.ClockOut = &cin, &cout
		}
		rep.Lines = append(rep.Lines, l)
		rep.TotalMinutes += r.DurationMinutes
	}
	return rep
}

// Total formats the summed minutes, e.g. "16h 0m".
func (r Report) Total() string {
	return timecalc.FormatMinutes(r.TotalMinutes)
}

// Describe renders the line body without the date, e.g.
// "9:00am - 5:00pm (8h 0m)" or "Paid Off (8h 0m)".
func (l Line) Describe() string {
	if l.ClockIn != nil && l.ClockOut != nil {
		return fmt.Sprintf("%s - %s (%s)",
			timecalc.FormatClockTime(*l.ClockIn),
			timecalc.FormatClockTime(*l.ClockOut),
			timecalc.FormatMinutes(l.Minutes))
	}
	return fmt.Sprintf("%s (%s)", l.Kind, timecalc.FormatMinutes(l.Minutes))
}

// Text is the copyable plain-text timesheet.
func (r Report) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Timesheet: %s\n", r.User)
	fmt.Fprintf(&b, "Period: %s\n", r.Period.Label)
	b.WriteString(separator + "\n")
	for _, l := range r.Lines {
		fmt.Fprintf(&b, "%s %s\n", timecalc.FormatShortDate(l.Date), l.Describe())
	}
	b.WriteString(separator + "\n")
	fmt.Fprintf(&b, "Total: %s", r.Total())
	return b.String()
}

type jsonLine struct {
	ID       string     `json:"id"`
	Date     string     `json:"date"`
	Type     model.Kind `json:"type"`
	ClockIn  *time.Time `json:"in,omitempty"`
	ClockOut *time.Time `json:"out,omitempty"`
	Minutes  int        `json:"duration_minutes"`
}

type jsonReport struct {
	User         string     `json:"user"`
	Period       string     `json:"period"`
	Label        string     `json:"label"`
	Start        time.Time  `json:"start"`
	End          time.Time  `json:"end"`
	Lines        []jsonLine `json:"lines"`
	TotalMinutes int        `json:"total_minutes"`
	Total        string     `json:"total"`
}

// WriteJSON writes the report as an indented JSON document.
func (r Report) WriteJSON(w io.Writer) error {
	out := jsonReport{
		User:         r.User,
		Period:       r.Period.Value,
		Label:        r.Period.Label,
		Start:        r.Period.Start,
		End:          r.Period.End,
		Lines:        make([]jsonLine, 0, len(r.Lines)),
		TotalMinutes: r.TotalMinutes,
		Total:        r.Total(),
	}
	for _, l := range r.Lines {
		out.Lines = append(out.Lines, jsonLine{
			ID:       l.ID,
			Date:     l.Date.Format("2006-01-02"),
			Type:     l.Kind,
			ClockIn:  l.ClockIn,
			ClockOut: l.ClockOut,
			Minutes:  l.Minutes,
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// WriteCSV writes one row per line plus a trailing total row.
func (r Report) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	rows := [][]string{{"date", "type", "in", "out", "duration_minutes"}}
	for _, l := range r.Lines {
		in, out := "", ""
		if l.ClockIn != nil {
			in = l.ClockIn.Format(time.RFC3339)
		}
		if l.ClockOut != nil {
			out = l.ClockOut.Format(time.RFC3339)
		}
		rows = append(rows, []string{l.Date.Format("2006-01-02"), string(l.Kind), in, out, fmt.Sprint(l.Minutes)})
	}
	rows = append(rows, []string{"total", "", "", "", fmt.Sprint(r.TotalMinutes)})
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
