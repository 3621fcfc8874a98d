package cloudsync_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tiliavir/shift-clock/internal/cloudsync"
	"github.com/Tiliavir/shift-clock/internal/model"
)

func TestHTTPSubmitter(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"success", http.StatusOK, `{"result":"success"}`, false},
		{"plain ok", http.StatusOK, `ok`, false},
		{"relay error body", http.StatusOK, `{"result":"error","message":"sheet locked"}`, true},
		{"server error", http.StatusBadGateway, `upstream down`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got model.SyncEvent
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			s := cloudsync.NewHTTPSubmitter(srv.URL, "", time.Second)
			err := s.Submit(context.Background(), event(model.ActionClockIn))
			assert.Equal(t, event(model.ActionClockIn), got)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var se *cloudsync.SyncError
			require.ErrorAs(t, err, &se)
			assert.Equal(t, tt.status, se.Status)
		})
	}
}

func TestHTTPSubmitterBearerToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"result":"success"}`))
	}))
	defer srv.Close()

	s := cloudsync.NewHTTPSubmitter(srv.URL, "s3cret", time.Second)
	require.NoError(t, s.Submit(context.Background(), event(model.ActionClockOut)))
	assert.Equal(t, "Bearer s3cret", auth)
}

func TestHTTPSubmitterUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	err := cloudsync.NewHTTPSubmitter(url, "", time.Second).Submit(context.Background(), event(model.ActionClockIn))
	var se *cloudsync.SyncError
	require.ErrorAs(t, err, &se)
	assert.Error(t, se.Err)
}

func TestHostReachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	assert.True(t, cloudsync.HostReachable(srv.URL, time.Second)())
	srv.Close()

	assert.False(t, cloudsync.HostReachable("::not a url", time.Second)())
}
