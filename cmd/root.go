package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tiliavir/shift-clock/internal/cloudsync"
	"github.com/Tiliavir/shift-clock/internal/config"
	"github.com/Tiliavir/shift-clock/internal/logging"
	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/notify"
	"github.com/Tiliavir/shift-clock/internal/shift"
	"github.com/Tiliavir/shift-clock/internal/storage"
)

var (
	dataDir string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "clk",
	Short: "A single-binary shift clock",
	Long: `clk tracks work shifts and leave days for one user.
State is stored as JSON files in ~/.clk/; clock events can be sent to a
submission endpoint and timesheets are built per half month.`,
	SilenceUsage: true,
}

// Execute is the entry point called from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default $CLK_HOME or ~/.clk)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose logging on stderr")

	rootCmd.AddCommand(inCmd)
	rootCmd.AddCommand(outCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(leaveCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(periodsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(autoshareCmd)
	rootCmd.AddCommand(tuiCmd)
	rootCmd.AddCommand(serveCmd)
}

// flushTimeout bounds the delivery of pending events before a one-shot
// command exits.
const flushTimeout = 20 * time.Second

// env is what every local command needs: store, config and logger.
type env struct {
	base  string
	cfg   config.Config
	loc   *time.Location
	log   *zap.Logger
	store *storage.Store
	sync  *cloudsync.Dispatcher
	// syncNotice shows delivery failures; stderr unless a UI takes over.
	syncNotice func(string)
}

// exitErr prints err and exits with code: 1 for user errors, 2 for
// storage and configuration errors.
func exitErr(code int, err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(code)
}

func loadEnv() *env {
	base := dataDir
	if base == "" {
		var err error
		if base, err = storage.BaseDir(); err != nil {
			exitErr(2, err)
		}
	}
	log, err := logging.NewCLI(verbose)
	if err != nil {
		exitErr(2, err)
	}
	cfg, err := config.Load(base)
	if err != nil {
		exitErr(2, err)
	}
	loc, err := cfg.Location()
	if err != nil {
		exitErr(2, err)
	}
	e := &env{base: base, cfg: cfg, loc: loc, log: log, store: storage.Open(base)}
	e.syncNotice = func(text string) { fmt.Fprintln(os.Stderr, text) }
	e.sync = newDispatcher(cfg, log, func(key string, err error) {
		e.syncNotice(fmt.Sprintf("Sync failed (%s): %v", key, err))
	})
	return e
}

func newDispatcher(cfg config.Config, log *zap.Logger, onError func(string, error)) *cloudsync.Dispatcher {
	opts := cloudsync.Options{
		Delay:   cfg.Sync.Delay,
		Timeout: cfg.Sync.Timeout,
		Logger:  log.Named("sync"),
		OnError: onError,
	}
	if cfg.Sync.Endpoint != "" {
		opts.Submitter = cloudsync.NewHTTPSubmitter(cfg.Sync.Endpoint, cfg.Sync.Token, cfg.Sync.Timeout)
		opts.Online = cloudsync.HostReachable(cfg.Sync.Endpoint, 3*time.Second)
	}
	return cloudsync.NewDispatcher(opts)
}

// machine builds a shift machine over the env. Callers may preset the
// OnUpdate and OnNotice hooks in opts.
func (e *env) machine(opts shift.Options) *shift.Machine {
	policy := shift.DefaultPolicy()
	policy.GraceSeconds = e.cfg.GraceSeconds
	policy.LeaveMinutes = e.cfg.LeaveMinutes()

	opts.Store = e.store
	opts.Policy = &policy
	opts.Sync = e.sync
	opts.Logger = e.log.Named("shift")
	opts.Clipboard = notify.SystemClipboard{}
	if e.cfg.Share.TelegramToken != "" && e.cfg.Share.TelegramChatID != 0 {
		opts.Sharer = notify.NewTelegram(e.cfg.Share.TelegramToken, e.cfg.Share.TelegramChatID, "", nil)
	}
	if opts.OnNotice == nil {
		opts.OnNotice = func(text string) { e.log.Info(text) }
	}

	m, err := shift.New(opts)
	if err != nil {
		exitErr(2, err)
	}
	return m
}

// finish closes m and delivers what is still pending, so scheduled events
// do not die with the process.
func (e *env) finish(m *shift.Machine) {
	if m != nil {
		m.Close()
	}
	if e.sync.Available() && len(e.sync.Pending()) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
		defer cancel()
		if err := e.sync.Flush(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
		}
	}
	e.sync.Close()
	_ = e.log.Sync()
}

// snapshot reads the stored state without resuming the machine. Read-only
// commands use it so they never finalize a clock-out that another process
// is still counting down.
func (e *env) snapshot() storage.Data {
	d, err := e.store.Load()
	if err != nil {
		if !storage.IsParseError(err) {
			exitErr(2, err)
		}
		e.log.Warn("corrupt stored values replaced with defaults", zap.Error(err))
	}
	return d
}

// records reads the record list without resuming the state machine.
func (e *env) records() []model.ShiftRecord {
	recs, err := e.store.ReadRecords()
	if err != nil {
		exitErr(2, err)
	}
	return recs
}
