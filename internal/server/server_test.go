package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/shift-clock/internal/model"
	"github.com/Tiliavir/shift-clock/internal/repository"
	"github.com/Tiliavir/shift-clock/internal/server"
	"github.com/Tiliavir/shift-clock/internal/sink"
)

type stubSink struct{ err error }

func (stubSink) Name() string { return "stub" }

func (s stubSink) Submit(context.Context, model.SyncEvent) error { return s.err }

func do(t *testing.T, srv *server.Server, req *http.Request) (int, map[string]any, []byte) {
	t.Helper()
	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var obj map[string]any
	_ = json.Unmarshal(body, &obj)
	return resp.StatusCode, obj, body
}

func submitReq(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/submit", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

const clockInBody = `{"name":"Dana","action":"Clock In","timestamp":"2026-03-02T09:00:00.000Z","localTime":"9:00am"}`

func TestSubmitWithoutSinks(t *testing.T) {
	srv := server.New(server.Options{})
	code, obj, _ := do(t, srv, submitReq(clockInBody))
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Configuration Error", obj["error"])
}

func TestSubmitResults(t *testing.T) {
	tests := []struct {
		name   string
		sink   sink.Sink
		body   string
		code   int
		result string
	}{
		{"success", stubSink{}, clockInBody, http.StatusOK, "success"},
		{"sink failure", stubSink{err: errors.New("sheet locked")}, clockInBody, http.StatusOK, "error"},
		{"bad json", stubSink{}, `{"name":`, http.StatusBadRequest, ""},
		{"missing action", stubSink{}, `{"name":"Dana"}`, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := server.New(server.Options{Sinks: []sink.Sink{tt.sink}})
			code, obj, _ := do(t, srv, submitReq(tt.body))
			assert.Equal(t, tt.code, code)
			if tt.result != "" {
				assert.Equal(t, tt.result, obj["result"])
			}
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	srv := server.New(server.Options{})
	req := httptest.NewRequest(http.MethodOptions, "/api/submit", nil)
	req.Header.Set("Origin", "https://example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	resp, err := srv.App().Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Less(t, resp.StatusCode, 300)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestHealthz(t *testing.T) {
	code, obj, _ := do(t, server.New(server.Options{}), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", obj["status"])
}

func newDBServer(t *testing.T) *server.Server {
	t.Helper()
	db, err := repository.Open("sqlite", filepath.Join(t.TempDir(), "clk.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	repo := repository.New(db, nil)
	return server.New(server.Options{
		Sinks:    []sink.Sink{sink.NewDatabase(repo)},
		Repo:     repo,
		Location: time.UTC,
	})
}

func TestSubmitThenQuery(t *testing.T) {
	srv := newDBServer(t)
	events := []string{
		clockInBody,
		`{"name":"Dana","action":"Clock Out","timestamp":"2026-03-02T17:00:00.000Z","localTime":"5:00pm"}`,
		`{"name":"Lee","action":"Clock In","timestamp":"2026-03-02T08:00:00.000Z","localTime":"8:00am"}`,
		`{"name":"Ari","action":"Paid Off","timestamp":"2026-03-03T00:00:00.000Z","localTime":"N/A"}`,
	}
	for _, body := range events {
		code, obj, _ := do(t, srv, submitReq(body))
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "success", obj["result"], "body %s", body)
	}

	code, _, raw := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/get-report?start=2026-03-01&end=2026-03-02&name=DANA", nil))
	require.Equal(t, http.StatusOK, code)
	var rows []repository.ShiftRow
	require.NoError(t, json.Unmarshal(raw, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 480, rows[0].DurationMinutes)

	code, _, raw = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/get-status", nil))
	require.Equal(t, http.StatusOK, code)
	var statuses []repository.UserStatus
	require.NoError(t, json.Unmarshal(raw, &statuses))
	require.Len(t, statuses, 3)
	assert.Equal(t, "Ari", statuses[0].Name)
	assert.Equal(t, repository.PresencePaidOff, statuses[0].State)
	assert.Equal(t, repository.PresenceOffline, statuses[1].State)
	assert.Equal(t, repository.PresenceWorking, statuses[2].State)
	assert.Equal(t, "8:00am", statuses[2].Since)
}

func TestGetReportValidation(t *testing.T) {
	srv := newDBServer(t)
	tests := []struct {
		query string
		code  int
	}{
		{"", http.StatusBadRequest},
		{"?start=2026-03-01", http.StatusBadRequest},
		{"?start=yesterday&end=2026-03-02", http.StatusBadRequest},
		{"?start=2026-03-01T00:00:00Z&end=2026-03-02T00:00:00Z", http.StatusOK},
	}
	for _, tt := range tests {
		code, _, _ := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/get-report"+tt.query, nil))
		assert.Equal(t, tt.code, code, "query %q", tt.query)
	}
}

func TestQueriesWithoutDatabase(t *testing.T) {
	srv := server.New(server.Options{Sinks: []sink.Sink{stubSink{}}})
	code, _, _ := do(t, srv, httptest.NewRequest(http.MethodGet, "/api/get-status", nil))
	assert.Equal(t, http.StatusInternalServerError, code)
	code, _, _ = do(t, srv, httptest.NewRequest(http.MethodGet, "/api/get-report?start=2026-03-01&end=2026-03-02", nil))
	assert.Equal(t, http.StatusInternalServerError, code)
}
