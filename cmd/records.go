package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/shift"
	"github.com/Tiliavir/shift-clock/internal/storage"
	"github.com/Tiliavir/shift-clock/internal/timecalc"
)

var (
	leaveKind string
	leaveDate string
	leaveYes  bool

	listLimit int

	deleteYes bool
	clearYes  bool
)

var leaveCmd = &cobra.Command{
	Use:   "leave",
	Short: "Record a leave day",
	Args:  cobra.NoArgs,
	RunE:  runLeave,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent records, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete one record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all records and settings",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

func init() {
	leaveCmd.Flags().StringVar(&leaveKind, "kind", string(model.KindPaidOff), "Leave type, one of the configured leave_types")
	leaveCmd.Flags().StringVar(&leaveDate, "date", "", "Day of the leave (YYYY-MM-DD); defaults to today")
	leaveCmd.Flags().BoolVarP(&leaveYes, "yes", "y", false, "Do not ask for confirmation")

	listCmd.Flags().IntVar(&listLimit, "limit", 15, "Maximum number of records to show; 0 shows all")

	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
	clearCmd.Flags().BoolVarP(&clearYes, "yes", "y", false, "Do not ask for confirmation")
}

// confirm asks question on w and reads a y/N answer from r.
func confirm(r io.Reader, w io.Writer, question string) bool {
	fmt.Fprintf(w, "%s [y/N] ", question)
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(w)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runLeave(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()

	kind := model.Kind(leaveKind)
	if _, ok := e.cfg.LeaveTypes[leaveKind]; !ok {
		known := make([]string, 0, len(e.cfg.LeaveTypes))
		for k := range e.cfg.LeaveTypes {
			known = append(known, k)
		}
		sort.Strings(known)
		e.refuse(nil, fmt.Sprintf("Unknown leave type %q. Known types: %s", leaveKind, strings.Join(known, ", ")))
	}

	day := time.Now().In(e.loc)
	if leaveDate != "" {
		d, err := timecalc.ParseDate(leaveDate, e.loc)
		if err != nil {
			e.refuse(nil, fmt.Sprintf("invalid --date value %q: %v", leaveDate, err))
		}
		day = d
	}

	m := e.machine(shiftOptions(w))
	err := m.AddLeave(kind, day, leaveYes)
	var ce *shift.ConfirmationError
	if errors.As(err, &ce) {
		for _, reason := range ce.Reasons {
			fmt.Fprintf(w, "Note: %s.\n", reason)
		}
		if !confirm(cmd.InOrStdin(), w, fmt.Sprintf("Add %s anyway?", kind)) {
			fmt.Fprintf(w, "%s not added.\n", kind)
			e.finish(m)
			return nil
		}
		err = m.AddLeave(kind, day, true)
	}
	if err != nil {
		e.fail(m, err)
	}
	fmt.Fprintln(w, m.View().LastMessage)
	e.finish(m)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	defer e.finish(nil)
	d := e.markRead()
	printList(w, d.Records, listLimit, e.loc)
	return nil
}

// markRead clears the unread counter; viewing the history counts as
// reading it. It writes that one key only and never resumes the machine,
// so a grace window open in another process keeps running.
func (e *env) markRead() storage.Data {
	d := e.snapshot()
	if d.State.Unread > 0 {
		if err := e.store.WriteUnread(0); err != nil {
			exitErr(2, err)
		}
		d.State.Unread = 0
	}
	return d
}

// printList prints records in stored order, newest first, up to limit.
func printList(w io.Writer, records []model.ShiftRecord, limit int, loc *time.Location) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No records found.")
		return
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	for _, r := range records {
		fmt.Fprintln(w, listLine(r, loc))
	}
}

func listLine(r model.ShiftRecord, loc *time.Location) string {
	day := r.OccurredOn.In(loc).Format("Mon Jan 02")
	if r.Kind.IsLeave() {
		return fmt.Sprintf("%s  %s  %-17s %s", r.ID, day, string(r.Kind), timecalc.FormatMinutes(r.DurationMinutes))
	}
	in, out := "--:--", "ongoing"
	if r.ClockIn != nil {
		in = timecalc.FormatClockTime(r.ClockIn.In(loc))
	}
	if r.ClockOut != nil {
		out = timecalc.FormatClockTime(r.ClockOut.In(loc))
	}
	dur := ""
	if r.Completed() {
		dur = timecalc.FormatMinutes(r.DurationMinutes)
	}
	return strings.TrimRight(fmt.Sprintf("%s  %s  %-17s %s", r.ID, day, in+"–"+out, dur), " ")
}

func runDelete(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	id := args[0]
	if !deleteYes && !confirm(cmd.InOrStdin(), w, fmt.Sprintf("Delete record %s?", id)) {
		fmt.Fprintln(w, "Nothing deleted.")
		e.finish(nil)
		return nil
	}
	m := e.machine(shiftOptions(w))
	if err := m.Delete(id); err != nil {
		if errors.Is(err, shift.ErrNotFound) {
			e.refuse(m, fmt.Sprintf("No record with id %q.", id))
		}
		e.fail(m, err)
	}
	fmt.Fprintf(w, "Deleted %s.\n", id)
	e.finish(m)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	if !clearYes && !confirm(cmd.InOrStdin(), w, "Delete all records, the user name and settings?") {
		fmt.Fprintln(w, "Nothing deleted.")
		e.finish(nil)
		return nil
	}
	m := e.machine(shiftOptions(w))
	if err := m.Clear(); err != nil {
		e.fail(m, err)
	}
	fmt.Fprintln(w, "All data cleared.")
	e.finish(m)
	return nil
}
