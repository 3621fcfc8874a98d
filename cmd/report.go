package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tiliavir/shift-clock/internal/export"
	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/report"
	"github.com/Tiliavir/shift-clock/internal/storage"
)

var (
	reportPeriod string
	reportFrom   string
	reportTo     string
	reportFormat string
	reportOutput string
	reportWatch  bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show the timesheet for a half month or a date range",
	Args:  cobra.NoArgs,
	RunE:  runReport,
}

var periodsCmd = &cobra.Command{
	Use:   "periods",
	Short: "List the selectable report periods",
	Args:  cobra.NoArgs,
	RunE:  runPeriods,
}

func init() {
	reportCmd.Flags().StringVar(&reportPeriod, "period", "", `Half-month period such as "2026-1-16-31" (default: the current one)`)
	reportCmd.Flags().StringVar(&reportFrom, "from", "", "Custom range start (YYYY-MM-DD); requires --to")
	reportCmd.Flags().StringVar(&reportTo, "to", "", "Custom range end (YYYY-MM-DD), inclusive; requires --from")
	reportCmd.Flags().StringVar(&reportFormat, "format", "text", "Output format: text, json, csv, xlsx")
	reportCmd.Flags().StringVarP(&reportOutput, "output", "o", "", "Write to a file instead of stdout (required for xlsx)")
	reportCmd.Flags().BoolVar(&reportWatch, "watch", false, "Re-render whenever the records change")
}

// resolvePeriod picks the period from the flags; the current half month
// is the default.
func resolvePeriod(now time.Time, loc *time.Location) (report.Period, error) {
	switch {
	case reportFrom != "" || reportTo != "":
		return report.CustomPeriod(reportFrom, reportTo, loc)
	case reportPeriod != "":
		return report.ParsePeriod(reportPeriod, loc)
	}
	return report.HalfMonthPeriods(now.In(loc))[0], nil
}

func writeReport(w io.Writer, rep report.Report, format string) error {
	switch format {
	case "text":
		_, err := fmt.Fprintln(w, rep.Text())
		return err
	case "json":
		return rep.WriteJSON(w)
	case "csv":
		return rep.WriteCSV(w)
	case "xlsx":
		return export.WriteReportXLSX(w, rep)
	}
	return fmt.Errorf("unknown report format %q (want text, json, csv or xlsx)", format)
}

func runReport(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	defer e.finish(nil)
	e.markRead()

	period, err := resolvePeriod(time.Now(), e.loc)
	if err != nil {
		var ve *model.ValidationError
		if errors.As(err, &ve) {
			e.refuse(nil, ve.Msg)
		}
		return err
	}
	if reportFormat == "xlsx" && reportOutput == "" {
		e.refuse(nil, "--format xlsx needs --output FILE")
	}
	if reportWatch && reportOutput != "" {
		e.refuse(nil, "--watch prints to the terminal and cannot be combined with --output")
	}

	render := func() error {
		user, err := e.store.ReadUser()
		if err != nil {
			return err
		}
		rep := report.Build(e.records(), user, period)
		if reportOutput == "" {
			return writeReport(w, rep, reportFormat)
		}
		f, err := os.Create(reportOutput)
		if err != nil {
			return err
		}
		if err := writeReport(f, rep, reportFormat); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return err
		}
		fmt.Fprintf(w, "Wrote %s (%s, %s).\n", reportOutput, period.Label, rep.Total())
		return nil
	}

	if !reportWatch {
		if err := render(); err != nil {
			exitErr(2, err)
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := watchRecords(ctx, e, func() error {
		fmt.Fprint(w, "\033[H\033[2J")
		return render()
	}); err != nil {
		exitErr(2, err)
	}
	return nil
}

// watchRecords calls render once and again after every change to the
// records file, until ctx is done.
func watchRecords(ctx context.Context, e *env, render func() error) error {
	if err := os.MkdirAll(e.store.Dir(), 0o700); err != nil {
		return err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch records: %w", err)
	}
	defer watcher.Close()
	// The store replaces files by rename, so the directory is watched.
	if err := watcher.Add(e.store.Dir()); err != nil {
		return fmt.Errorf("watch records: %w", err)
	}
	target := filepath.Base(e.store.Path(storage.KeyRecords))

	if err := render(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(ev.Name) != target || !ev.Has(fsnotify.Create|fsnotify.Write|fsnotify.Remove) {
				continue
			}
			e.log.Debug("records changed", zap.String("op", ev.Op.String()))
			if err := render(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.log.Warn("watch error", zap.Error(err))
		}
	}
}

func runPeriods(cmd *cobra.Command, args []string) error {
	w := cmd.OutOrStdout()
	e := loadEnv()
	defer e.finish(nil)
	for _, p := range report.HalfMonthPeriods(time.Now().In(e.loc)) {
		fmt.Fprintf(w, "%-14s %s\n", p.Value, p.Label)
	}
	return nil
}
