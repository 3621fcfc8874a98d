package server

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/repository"
	"github.com/Tiliavir/shift-clock/internal/timecalc"
)

func (s *Server) submit(c *fiber.Ctx) error {
	if s.fan.Len() == 0 {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":   "Configuration Error",
			"message": "No sink configured: set GOOGLE_SCRIPT_URL, WORKBOOK_PATH or DATABASE_DRIVER.",
		})
	}

	var ev model.SyncEvent
	if err := c.BodyParser(&ev); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(ev.Name) == "" || strings.TrimSpace(ev.Action) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing name or action"})
	}

	if err := s.fan.Submit(c.UserContext(), ev); err != nil {
		s.log.Warn("submit failed", zap.String("name", ev.Name), zap.String("action", ev.Action), zap.Error(err))
		// Delivery failures are reported in the body, as the relay does.
		return c.JSON(fiber.Map{"result": "error", "message": err.Error()})
	}
	return c.JSON(fiber.Map{"result": "success"})
}

func (s *Server) getReport(c *fiber.Ctx) error {
	start, end := c.Query("start"), c.Query("end")
	if start == "" || end == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing start or end date parameters"})
	}
	if s.repo == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database not configured"})
	}
	from, err := parseBound(start, s.loc, false)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid start date"})
	}
	to, err := parseBound(end, s.loc, true)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid end date"})
	}

	rows, err := s.repo.Report(c.UserContext(), from, to, c.Query("name"))
	if err != nil {
		s.log.Error("error fetching report", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(rows)
}

func (s *Server) getStatus(c *fiber.Ctx) error {
	if s.repo == nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database not configured"})
	}
	logs, err := s.repo.RecentLogs(c.UserContext(), repository.StatusLimit)
	if err != nil {
		s.log.Error("error fetching status", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(repository.DeriveStatuses(logs))
}

// parseBound accepts an RFC 3339 instant or a YYYY-MM-DD date. A date used
// as the upper bound covers the whole day.
func parseBound(s string, loc *time.Location, upper bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	d, err := timecalc.ParseDate(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	if upper {
		return timecalc.EndOfDay(d), nil
	}
	return d, nil
}
