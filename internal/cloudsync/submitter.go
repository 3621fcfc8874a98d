package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/Tiliavir/shift-clock/internal/model"
)

const maxResponseBody = 64 << 10

// SyncError is a failed delivery. It is informational only: local state
// is never rolled back because of it.
type SyncError struct {
	Action string
	Status int
	Msg    string
	Err    error
}

func (e *SyncError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("sync %q: %v", e.Action, e.Err)
	case e.Status != 0 && e.Status/100 != 2:
		return fmt.Sprintf("sync %q: endpoint returned %d: %s", e.Action, e.Status, e.Msg)
	default:
		return fmt.Sprintf("sync %q: %s", e.Action, e.Msg)
	}
}

func (e *SyncError) Unwrap() error { return e.Err }

// HTTPSubmitter POSTs events as JSON.
type HTTPSubmitter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSubmitter returns a submitter for endpoint. A non-empty token is
// sent as a bearer token on every request.
func NewHTTPSubmitter(endpoint, token string, timeout time.Duration) *HTTPSubmitter {
	base := &http.Client{Timeout: timeout}
	client := base
	if token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
		client = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: token,
			TokenType:   "Bearer",
		}))
		client.Timeout = timeout
	}
	return &HTTPSubmitter{endpoint: endpoint, client: client}
}

// relayReply is the body shape of the spreadsheet relay.
type relayReply struct {
	Result  string `json:"result"`
	Message string `json:"message"`
}

func (s *HTTPSubmitter) Submit(ctx context.Context, ev model.SyncEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return &SyncError{Action: ev.Action, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return &SyncError{Action: ev.Action, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return &SyncError{Action: ev.Action, Err: err}
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &SyncError{Action: ev.Action, Status: resp.StatusCode, Err: fmt.Errorf("reading response body: %w", err)}
	}
	if resp.StatusCode/100 != 2 {
		return &SyncError{Action: ev.Action, Status: resp.StatusCode, Msg: string(bytes.TrimSpace(raw))}
	}

	// The relay reports its own failures with a 200 and an error body.
	var reply relayReply
	if json.Unmarshal(raw, &reply) == nil && reply.Result == "error" {
		return &SyncError{Action: ev.Action, Status: resp.StatusCode, Msg: reply.Message}
	}
	return nil
}

// HostReachable returns a connectivity probe that dials the endpoint's
// host. It stands in for the browser's online flag.
func HostReachable(endpoint string, timeout time.Duration) func() bool {
	u, err := url.Parse(endpoint)
	if err != nil || u.Host == "" {
		return func() bool { return false }
	}
	addr := u.Host
	if u.Port() == "" {
		port := "80"
		if u.Scheme == "https" {
			port = "443"
		}
		addr = net.JoinHostPort(u.Hostname(), port)
	}
	return func() bool {
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}
}
