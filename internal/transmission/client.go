package transmission

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/MrSnakeDoc/sweep/internal/logger"
)

const (
	// SessionHeader carries the daemon's CSRF session token.
	SessionHeader = "X-Transmission-Session-Id"

	// DefaultTimeout bounds a single HTTP exchange with the daemon.
	DefaultTimeout = 30 * time.Second

	// maxSessionRetransmits is how many times one call is resent after a 409.
	maxSessionRetransmits = 2

	maxResponseBytes = 32 << 20
)

// Observer receives RPC outcomes, typically to feed metrics.
type Observer interface {
	ObserveRPC(method, outcome string)
	ObserveSessionRenegotiation()
}

type nopObserver struct{}

func (nopObserver) ObserveRPC(string, string)    {}
func (nopObserver) ObserveSessionRenegotiation() {}

// Options configures a Client.
type Options struct {
	URL         string        // full RPC endpoint, ex: http://transmission:9091/transmission/rpc
	Username    string        // optional Basic Auth user
	Password    string        // optional Basic Auth password
	Timeout     time.Duration // per-request timeout (default 30s)
	MaxAttempts int           // discovery attempts for FetchTorrents (default 30)
	RetryDelay  time.Duration // fixed delay between discovery attempts (default 1s)
	HTTPClient  *http.Client  // optional, overrides Timeout
	Observer    Observer      // optional
	UserAgent   string        // optional, ex: "sweep/v1.2.0"
}

// Client talks JSON-RPC to the daemon. It holds the session token for its
// whole lifetime and is safe for use by one run at a time; the token itself
// is guarded so concurrent reads never race.
type Client struct {
	endpoint string
	username string
	password string
	http     *http.Client
	log      logger.Logger
	observer Observer
	agent    string

	maxAttempts int
	retryDelay  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	sessionID string
}

// New validates the endpoint and builds a client.
func New(opts Options, log logger.Logger) (*Client, error) {
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid rpc url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("rpc url must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("rpc url must have a host")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	observer := opts.Observer
	if observer == nil {
		observer = nopObserver{}
	}

	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	retryDelay := opts.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	return &Client{
		endpoint:    u.String(),
		username:    opts.Username,
		password:    opts.Password,
		http:        httpClient,
		log:         log,
		observer:    observer,
		agent:       opts.UserAgent,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		sleep:       sleepContext,
	}, nil
}

// Endpoint returns the RPC URL the client posts to.
func (c *Client) Endpoint() string { return c.endpoint }

// SessionID returns the currently held session token, if any.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

type rpcRequest struct {
	Method    string      `json:"method"`
	Arguments interface{} `json:"arguments,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// call performs one RPC, transparently renegotiating the session token.
func (c *Client) call(ctx context.Context, method string, args, out interface{}) error {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	for retransmits := 0; ; retransmits++ {
		resp, respBody, err := c.post(ctx, body)
		if err != nil {
			c.observer.ObserveRPC(method, "transport_error")
			return err
		}

		// Any response may rotate the token, not just a 409.
		c.captureSession(resp.Header)

		if resp.StatusCode == http.StatusConflict {
			if retransmits >= maxSessionRetransmits {
				c.observer.ObserveRPC(method, "session_failed")
				return fmt.Errorf("rpc %s: %w after %d retransmissions",
					method, ErrSessionNegotiationFailed, retransmits)
			}
			c.observer.ObserveSessionRenegotiation()
			c.log.Debug("daemon requested a new session, retransmitting",
				logger.String("method", method),
				logger.Int("retransmit", retransmits+1))
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			c.observer.ObserveRPC(method, "http_error")
			return &CallError{Method: method, StatusCode: resp.StatusCode, Status: resp.Status}
		}

		var decoded rpcResponse
		if err := json.Unmarshal(respBody, &decoded); err != nil {
			c.observer.ObserveRPC(method, "decode_error")
			return fmt.Errorf("failed to decode %s response: %w", method, err)
		}

		if decoded.Result != "success" {
			c.observer.ObserveRPC(method, "rpc_error")
			return &CallError{Method: method, StatusCode: resp.StatusCode, Result: decoded.Result}
		}

		if out != nil && len(decoded.Arguments) > 0 {
			if err := json.Unmarshal(decoded.Arguments, out); err != nil {
				c.observer.ObserveRPC(method, "decode_error")
				return fmt.Errorf("failed to decode %s arguments: %w", method, err)
			}
		}

		c.observer.ObserveRPC(method, "success")
		return nil
	}
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token := c.SessionID(); token != "" {
		req.Header.Set(SessionHeader, token)
	}
	if c.agent != "" {
		req.Header.Set("User-Agent", c.agent)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, nil, err
	}

	return resp, data, nil
}

func (c *Client) captureSession(h http.Header) {
	token := h.Get(SessionHeader)
	if token == "" {
		return
	}

	c.mu.Lock()
	c.sessionID = token
	c.mu.Unlock()
}
