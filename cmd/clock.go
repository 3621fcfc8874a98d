package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/progress"
	"github.com/Tiliavir/shift-clock/internal/shift"
	"github.com/Tiliavir/shift-clock/internal/timecalc"
)

var outNoWait bool

var inCmd = &cobra.Command{
	Use:   "in",
	Short: "Clock in and start a shift",
	Long: `Clock in and start a shift.

When a submission endpoint is configured, the clock-in event is sent
before the command exits. A shift shorter than a minute is still
discarded locally by a later "clk out", but the endpoint keeps the
clock-in. "clk tui" keeps events queued for the sync delay, so a
discarded clock-in made there is never sent.`,
	Args: cobra.NoArgs,
	RunE: runIn,
}

var outCmd = &cobra.Command{
	Use:   "out",
	Short: "Clock out; Ctrl-C during the grace window cancels",
	Args:  cobra.NoArgs,
	RunE:  runOut,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a pending clock-out",
	Args:  cobra.NoArgs,
	RunE:  runCancel,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current shift",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	outCmd.Flags().BoolVar(&outNoWait, "no-wait", false, "Skip the grace window and clock out immediately")
}

// fail reports err the way the command line expects and exits: 1 when the
// action was refused, 2 when state could not be read or written.
func (e *env) fail(m *shift.Machine, err error) {
	var ve *model.ValidationError
	if errors.As(err, &ve) && ve.Field == "user" {
		e.refuse(m, "No user name set. Run: clk user NAME")
	}
	e.finish(m)
	code := 2
	switch {
	case errors.As(err, &ve),
		errors.Is(err, shift.ErrInvalidTransition),
		errors.Is(err, shift.ErrNotFound),
		errors.Is(err, shift.ErrConfirmationRequired):
		code = 1
	}
	exitErr(code, err)
}

// refuse prints msg and exits 1.
func (e *env) refuse(m *shift.Machine, msg string) {
	e.finish(m)
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}

func printNotice(w io.Writer) func(string) {
	return func(text string) { fmt.Fprintln(w, text) }
}

func runIn(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	m := e.machine(shiftOptions(w))
	if err := m.ClockIn(); err != nil {
		if errors.Is(err, shift.ErrInvalidTransition) {
			e.refuse(m, "Already clocked in.")
		}
		e.fail(m, err)
	}
	fmt.Fprintln(w, m.View().LastMessage)
	e.finish(m)
	return nil
}

func runOut(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	updates := make(chan shift.View, 32)
	opts := shiftOptions(w)
	opts.OnUpdate = func(v shift.View) {
		select {
		case updates <- v:
		default:
		}
	}
	m := e.machine(opts)

	active := m.View().Active
	if err := m.RequestClockOut(); err != nil {
		if errors.Is(err, shift.ErrInvalidTransition) {
			e.refuse(m, "Not clocked in.")
		}
		e.fail(m, err)
	}

	if outNoWait {
		if err := m.Finalize(); err != nil {
			e.fail(m, err)
		}
	} else {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		for m.View().Status == model.StatusPendingOut {
			fmt.Fprintf(w, "\rClocking out in %2ds, Ctrl-C to cancel", m.View().GraceRemaining)
			select {
			case <-ctx.Done():
				if err := m.Cancel(); err != nil && !errors.Is(err, shift.ErrInvalidTransition) {
					stop()
					e.fail(m, err)
				}
			case <-updates:
			}
		}
		stop()
		fmt.Fprintln(w)
	}

	v := m.View()
	if v.Status == model.StatusIn {
		fmt.Fprintln(w, "Still on shift.")
		e.finish(m)
		return nil
	}
	if active != nil {
		for _, r := range m.Records() {
			if r.ID == active.ID && r.Completed() {
				fmt.Fprintln(w, v.LastMessage)
				fmt.Fprintf(w, "Clocked out after %s.\n", formatElapsed(int64(r.ClockOut.Sub(*r.ClockIn).Seconds())))
			}
		}
	}
	e.finish(m)
	return nil
}

// runCancel never resumes the machine: a countdown only lives in the
// process that started it, and loading would finalize it.
func runCancel(cmd *cobra.Command, args []string) error {
	e := loadEnv()
	if e.snapshot().State.Status == model.StatusPendingOut {
		e.refuse(nil, `A clock-out is counting down in another session. Press Ctrl-C there to cancel it.`)
	}
	e.refuse(nil, `No clock-out is pending. Press Ctrl-C while "clk out" counts down to cancel it.`)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	defer e.finish(nil)
	d := e.snapshot()
	now := time.Now().In(e.loc)

	user := d.State.UserName
	if user == "" {
		user = "(not set)"
	}
	fmt.Fprintf(w, "User: %s\n", user)

	active, _, ok := shift.State{Tracker: d.State, Records: d.Records}.Active()
	switch {
	case d.State.Status == model.StatusIn && ok && active.ClockIn != nil:
		timer := progress.Compute(now, *active.ClockIn)
		fmt.Fprintln(w, "On shift:")
		fmt.Fprintf(w, "  Since: %s\n", timecalc.FormatClockTime(active.ClockIn.In(e.loc)))
		fmt.Fprintf(w, "  Elapsed: %s\n", timer.Clock)
		fmt.Fprintf(w, "  Day: %3.0f%%\n", timer.Regular*100)
		if timer.Overtime > 0 {
			fmt.Fprintf(w, "  Overtime: %3.0f%%\n", timer.Overtime*100)
		}
	case d.State.Status == model.StatusPendingOut:
		fmt.Fprintln(w, "Clocking out: the grace window is open in another session.")
	default:
		fmt.Fprintln(w, "Off duty.")
	}
	fmt.Fprintf(w, "Today: %s logged.\n", timecalc.FormatMinutes(minutesOn(d.Records, now)))
	if d.State.AutoShare {
		fmt.Fprintln(w, "Auto-share: on")
	}
	return nil
}

// minutesOn sums completed work and leave credited on day.
func minutesOn(records []model.ShiftRecord, day time.Time) int {
	total := 0
	for _, r := range records {
		if !timecalc.SameDay(r.OccurredOn.In(day.Location()), day) {
			continue
		}
		if r.Completed() || r.Kind.IsLeave() {
			total += r.DurationMinutes
		}
	}
	return total
}

func shiftOptions(w io.Writer) shift.Options {
	return shift.Options{OnNotice: printNotice(w)}
}

func formatElapsed(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
