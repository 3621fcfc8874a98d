// Package export writes the full record history in portable formats.
package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/report"
	"github.com/Tiliavir/shift-clock/internal/storage"
)

// Formats lists the accepted format names.
var Formats = []string{"json", "csv", "xlsx"}

var header = []string{"id", "date", "type", "in", "out", "duration_minutes"}

// Write renders records in format ("json", "csv" or "xlsx").
func Write(w io.Writer, format string, records []model.ShiftRecord) error {
	switch format {
	case "json":
		return storage.BackupJSON(w, records)
	case "csv":
		return WriteCSV(w, records)
	case "xlsx":
		return WriteXLSX(w, records)
	}
	return fmt.Errorf("unknown export format %q (want one of %s)", format, strings.Join(Formats, ", "))
}

func fields(r model.ShiftRecord) []string {
	in, out := "", ""
	if r.ClockIn != nil {
		in = r.ClockIn.Format(time.RFC3339)
	}
	if r.ClockOut != nil {
		out = r.ClockOut.Format(time.RFC3339)
	}
	return []string{r.ID, r.OccurredOn.Format("2006-01-02"), string(r.Kind), in, out, fmt.Sprint(r.DurationMinutes)}
}

// WriteCSV writes one line per record in stored order.
func WriteCSV(w io.Writer, records []model.ShiftRecord) error {
	if _, err := fmt.Fprintln(w, strings.Join(header, ",")); err != nil {
		return err
	}
	for _, r := range records {
		f := fields(r)
		for i := range f {
			f[i] = csvEscape(f[i])
		}
		if _, err := fmt.Fprintln(w, strings.Join(f, ",")); err != nil {
			return err
		}
	}
	return nil
}

// csvEscape wraps a field in quotes if it contains a comma, quote, or newline.
func csvEscape(s string) string {
	if !strings.ContainsAny(s, ",\"\r\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteXLSX writes a workbook with a "Records" sheet.
func WriteXLSX(w io.Writer, records []model.ShiftRecord) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Records"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, header); err != nil {
		return err
	}
	for i, r := range records {
		if err := setRow(f, sheet, i+2, fields(r)); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// WriteReportXLSX writes a timesheet as a workbook with a "Timesheet"
// sheet ending in a total row.
func WriteReportXLSX(w io.Writer, rep report.Report) error {
	f := excelize.NewFile()
	defer f.Close()
	const sheet = "Timesheet"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	rows := [][]string{
		{"Timesheet", rep.User},
		{"Period", rep.Period.Label},
		{},
		{"date", "entry", "duration_minutes"},
	}
	for _, l := range rep.Lines {
		rows = append(rows, []string{l.Date.Format("2006-01-02"), l.Describe(), fmt.Sprint(l.Minutes)})
	}
	rows = append(rows, []string{"Total", rep.Total(), fmt.Sprint(rep.TotalMinutes)})
	for i, row := range rows {
		if err := setRow(f, sheet, i+1, row); err != nil {
			return err
		}
	}
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	vals := make([]any, len(values))
	for i, v := range values {
		vals[i] = v
	}
	return f.SetSheetRow(sheet, cell, &vals)
}
