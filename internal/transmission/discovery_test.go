package transmission

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"sync"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MrSnakeDoc/sweep/internal/logger"
)

// flakyTransport refuses the first failures connections, then answers like a
// daemon that already handed out a session token.
type flakyTransport struct {
	mu       sync.Mutex
	failures int
	failWith error
	attempts int
}

func (f *flakyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempts++
	if f.attempts <= f.failures {
		return nil, f.failWith
	}

	body := `{"result":"success","arguments":{"torrents":[{"id":1,"name":"ok"}]}}`
	return &http.Response{
		StatusCode: http.StatusOK,
		Status:     "200 OK",
		Header:     http.Header{SessionHeader: []string{"tok"}},
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Request:    r,
	}, nil
}

func refused() error {
	return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
}

func newFlakyClient(t *testing.T, tr *flakyTransport) (*Client, *int) {
	t.Helper()
	return newFlakyClientWithLogger(t, tr, logger.NewNop())
}

func newFlakyClientWithLogger(t *testing.T, tr *flakyTransport, log logger.Logger) (*Client, *int) {
	t.Helper()
	c, err := New(Options{
		URL:        "http://transmission:9091/transmission/rpc",
		HTTPClient: &http.Client{Transport: tr},
	}, log)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	sleeps := 0
	c.sleep = func(_ context.Context, d time.Duration) error {
		if d != DefaultRetryDelay {
			t.Errorf("retry delay = %v, want %v", d, DefaultRetryDelay)
		}
		sleeps++
		return nil
	}
	return c, &sleeps
}

func TestFetchSucceedsOnLastAttempt(t *testing.T) {
	tr := &flakyTransport{failures: 29, failWith: refused()}
	c, sleeps := newFlakyClient(t, tr)

	torrents, err := c.FetchTorrents(context.Background())
	if err != nil {
		t.Fatalf("FetchTorrents() error = %v", err)
	}
	if len(torrents) != 1 || torrents[0].Name != "ok" {
		t.Errorf("torrents = %+v", torrents)
	}
	if tr.attempts != 30 {
		t.Errorf("attempts = %d, want 30", tr.attempts)
	}
	if *sleeps != 29 {
		t.Errorf("sleeps = %d, want 29", *sleeps)
	}
}

func TestFetchDiscoveryLogging(t *testing.T) {
	tests := []struct {
		name     string
		failures int
		want     []string
	}{
		{
			name:     "first try",
			failures: 0,
			want:     []string{"fetched torrents from daemon"},
		},
		{
			name:     "success after retries",
			failures: 29,
			want:     []string{"connecting to daemon", "connected to daemon after retry"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			tr := &flakyTransport{failures: tt.failures, failWith: refused()}
			c, _ := newFlakyClientWithLogger(t, tr, logger.FromZap(zap.New(core)))

			if _, err := c.FetchTorrents(context.Background()); err != nil {
				t.Fatalf("FetchTorrents() error = %v", err)
			}

			entries := logs.All()
			got := make([]string, 0, len(entries))
			for _, e := range entries {
				got = append(got, e.Message)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("log messages = %q, want %q", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("log[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}

			if tt.failures > 0 {
				last := entries[len(entries)-1].ContextMap()
				if last["attempts"] != int64(tt.failures+1) {
					t.Errorf("attempts field = %v, want %d", last["attempts"], tt.failures+1)
				}
			}
		})
	}
}

func TestFetchGivesUpAfterThirtyAttempts(t *testing.T) {
	tr := &flakyTransport{failures: 1000, failWith: refused()}
	c, _ := newFlakyClient(t, tr)

	_, err := c.FetchTorrents(context.Background())
	if err == nil {
		t.Fatal("FetchTorrents() error = nil, want connectivity error")
	}
	if tr.attempts != DefaultMaxAttempts {
		t.Errorf("attempts = %d, want %d", tr.attempts, DefaultMaxAttempts)
	}

	var connErr *ConnectivityError
	if !errors.As(err, &connErr) || connErr.Attempts != DefaultMaxAttempts {
		t.Errorf("error = %v, want *ConnectivityError after %d attempts", err, DefaultMaxAttempts)
	}
	if !errors.Is(err, syscall.ECONNREFUSED) {
		t.Errorf("error does not unwrap to the original cause: %v", err)
	}
}

func TestFetchDoesNotRetryOtherErrors(t *testing.T) {
	tr := &flakyTransport{failures: 5, failWith: errors.New("tls: bad certificate")}
	c, sleeps := newFlakyClient(t, tr)

	if _, err := c.FetchTorrents(context.Background()); err == nil {
		t.Fatal("FetchTorrents() error = nil, want error")
	}
	if tr.attempts != 1 || *sleeps != 0 {
		t.Errorf("attempts = %d sleeps = %d, want 1 and 0", tr.attempts, *sleeps)
	}
}

func TestFetchStopsOnCancel(t *testing.T) {
	tr := &flakyTransport{failures: 1000, failWith: refused()}
	c, _ := newFlakyClient(t, tr)
	c.sleep = sleepContext
	c.retryDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.FetchTorrents(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("FetchTorrents() error = %v, want context.Canceled", err)
	}
}

func TestRemoveIsNotRetried(t *testing.T) {
	tr := &flakyTransport{failures: 1, failWith: refused()}
	c, _ := newFlakyClient(t, tr)

	err := c.RemoveTorrents(context.Background(), []int64{1, 2}, true)
	if !IsConnectivityError(err) {
		t.Fatalf("RemoveTorrents() error = %v, want connectivity error", err)
	}
	if tr.attempts != 1 {
		t.Errorf("attempts = %d, want 1", tr.attempts)
	}
}

func TestIsConnectivityError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"dns", &net.DNSError{Err: "no such host", Name: "transmission", IsNotFound: true}, true},
		{"refused", refused(), true},
		{"reset", os.NewSyscallError("read", syscall.ECONNRESET), true},
		{"eof", io.EOF, true},
		{"dial timeout", &net.OpError{Op: "dial", Net: "tcp", Err: os.ErrDeadlineExceeded}, true},
		{"read timeout", &net.OpError{Op: "read", Net: "tcp", Err: os.ErrDeadlineExceeded}, false},
		{"request timeout", &url.Error{Op: "Post", URL: "http://transmission:9091/transmission/rpc", Err: os.ErrDeadlineExceeded}, false},
		{"call error", &CallError{Method: "torrent-get", StatusCode: 500, Status: "500"}, false},
		{"session", ErrSessionNegotiationFailed, false},
		{"canceled", context.Canceled, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectivityError(tt.err); got != tt.want {
				t.Errorf("IsConnectivityError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
