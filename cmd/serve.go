package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Tiliavir/shift-clock/internal/cloudsync"
	"github.com/Tiliavir/shift-clock/internal/config"
	"github.com/Tiliavir/shift-clock/internal/logging"
	"github.com/Tiliavir/shift-clock/internal/repository"
	"github.com/Tiliavir/shift-clock/internal/server"
	"github.com/Tiliavir/shift-clock/internal/sink"
)

var serveEnvFile string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the submission and reporting HTTP server",
	Long: `serve accepts clock events on POST /api/submit and forwards each one
to every configured sink: the spreadsheet relay (GOOGLE_SCRIPT_URL), a
local workbook (WORKBOOK_PATH) and a database (DATABASE_DRIVER and
DATABASE_DSN). With a database it also answers GET /api/get-report and
GET /api/get-status.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveEnvFile, "env-file", ".env", "Read environment variables from this file when it exists")
}

func runServe(cmd *cobra.Command, args []string) error {
	log, err := logging.NewServer(verbose)
	if err != nil {
		exitErr(2, err)
	}
	defer log.Sync()

	cfg, err := config.LoadServer(serveEnvFile)
	if err != nil {
		exitErr(2, err)
	}

	var sinks []sink.Sink
	if cfg.RelayURL != "" {
		sinks = append(sinks, sink.NewRelay(cfg.RelayURL, cloudsync.DefaultTimeout))
	}
	if cfg.WorkbookPath != "" {
		sinks = append(sinks, sink.NewWorkbook(cfg.WorkbookPath))
	}
	var repo repository.Repository
	if cfg.DatabaseDriver != "" {
		db, err := repository.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, verbose)
		if err != nil {
			log.Error("database unavailable", zap.String("driver", cfg.DatabaseDriver), zap.Error(err))
			exitErr(2, err)
		}
		if sqlDB, err := db.DB(); err == nil {
			defer sqlDB.Close()
		}
		repo = repository.New(db, nil)
		sinks = append(sinks, sink.NewDatabase(repo))
	}
	if len(sinks) == 0 {
		log.Warn("no sinks configured; submissions will be rejected")
	}

	srv := server.New(server.Options{Sinks: sinks, Repo: repo, Logger: log})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log.Info("listening", zap.String("addr", cfg.Addr), zap.Int("sinks", len(sinks)))
	return srv.Run(ctx, cfg.Addr)
}
