//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Tiliavir/shift-clock/internal/repository"
	"github.com/Tiliavir/shift-clock/internal/server"
	"github.com/Tiliavir/shift-clock/internal/sink"
)

func startMySQL(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "mysql:8.0",
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_DATABASE":      "clk",
			"MYSQL_ROOT_PASSWORD": "secret",
			"MYSQL_USER":          "clk",
			"MYSQL_PASSWORD":      "pass",
		},
		WaitingFor:   wait.ForListeningPort("3306/tcp").WithStartupTimeout(120 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })

	host, err := c.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := c.MappedPort(ctx, "3306/tcp")
	if err != nil {
		t.Fatalf("mapped port: %v", err)
	}
	return fmt.Sprintf("clk:pass@tcp(%s:%s)/clk?parseTime=true&loc=UTC", host, port.Port())
}

func TestSubmitAndReportOnMySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping in short mode")
	}
	db, err := repository.Open("mysql", startMySQL(t), false)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		t.Cleanup(func() { sqlDB.Close() })
	}
	repo := repository.New(db, nil)
	srv := server.New(server.Options{
		Sinks:    []sink.Sink{sink.NewDatabase(repo)},
		Repo:     repo,
		Location: time.UTC,
	})

	events := []string{
		`{"name":"Dana","action":"Clock In","timestamp":"2026-03-02T09:00:00.000Z","localTime":"9:00am"}`,
		`{"name":"Dana","action":"Clock Out","timestamp":"2026-03-02T17:30:00.000Z","localTime":"5:30pm"}`,
		`{"name":"Dana","action":"Paid Off","timestamp":"2026-03-03T00:00:00.000Z","localTime":"N/A"}`,
	}
	for _, body := range events {
		req := httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		resp, err := srv.App().Test(req, -1)
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("submit status %d for %s", resp.StatusCode, body)
		}
	}

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 15, 23, 59, 59, 0, time.UTC)
	rows, err := repo.Report(context.Background(), start, end, "dana")
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	total := 0
	for _, r := range rows {
		total += r.DurationMinutes
	}
	if total != 510+480 {
		t.Errorf("total = %d minutes, want %d", total, 510+480)
	}

	logs, err := repo.RecentLogs(context.Background(), repository.StatusLimit)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	statuses := repository.DeriveStatuses(logs)
	if len(statuses) != 1 || statuses[0].State != repository.PresencePaidOff {
		t.Errorf("statuses = %+v", statuses)
	}
}
