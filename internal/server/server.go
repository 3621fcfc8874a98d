// Package server is the HTTP face of clk: event submission and the
// report and status queries over submitted events.
package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Tiliavir/shift-clock/internal/repository"
	"github.com/Tiliavir/shift-clock/internal/sink"
)

const shutdownTimeout = 5 * time.Second

// Options wires the server's collaborators. Repo may be nil when no
// database is configured; the query endpoints then answer 500.
type Options struct {
	Sinks    []sink.Sink
	Repo     repository.Repository
	Logger   *zap.Logger
	Location *time.Location
}

// Server owns the fiber app.
type Server struct {
	app  *fiber.App
	fan  *sink.FanOut
	repo repository.Repository
	log  *zap.Logger
	loc  *time.Location
}

func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	s := &Server{
		fan:  sink.NewFanOut(opts.Logger, opts.Sinks...),
		repo: opts.Repo,
		log:  opts.Logger,
		loc:  opts.Location,
	}

	app := fiber.New(fiber.Config{
		AppName:               "clk",
		DisableStartupMessage: true,
	})
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	app.Use(requestLogger(opts.Logger))

	app.Get("/healthz", s.health)
	api := app.Group("/api")
	api.Post("/submit", s.submit)
	api.Get("/get-report", s.getReport)
	api.Get("/get-status", s.getStatus)

	s.app = app
	return s
}

// App exposes the fiber app, e.g. for app.Test.
func (s *Server) App() *fiber.App { return s.app }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", addr))
		return s.app.Listen(addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		s.log.Info("shutting down")
		return s.app.ShutdownWithTimeout(shutdownTimeout)
	})
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func requestLogger(log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		status := c.Response().StatusCode()
		if err != nil {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}
		log.Info("request",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.Error(err))
		return err
	}
}

func (s *Server) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}
