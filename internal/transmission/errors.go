package transmission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ErrSessionNegotiationFailed is returned when the daemon keeps answering
// 409 after the allowed number of retransmissions.
var ErrSessionNegotiationFailed = errors.New("session negotiation failed")

// CallError reports an RPC call the daemon rejected, either with a non-2xx
// HTTP status or with a result other than "success".
type CallError struct {
	Method     string
	StatusCode int
	Status     string // HTTP status text, set when StatusCode is not 2xx
	Result     string // RPC result string, set when the HTTP exchange succeeded
}

func (e *CallError) Error() string {
	if e.Result != "" {
		return fmt.Sprintf("rpc %s failed: result %q", e.Method, e.Result)
	}
	return fmt.Sprintf("rpc %s failed: http %s", e.Method, e.Status)
}

// ConnectivityError is returned once the discovery retry budget is spent.
// It unwraps to the last transport error.
type ConnectivityError struct {
	Attempts int
	Err      error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("daemon unreachable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsConnectivityError reports whether err is a transport-level failure worth
// retrying while the daemon may still be starting: name resolution, refused
// or reset connections, and connect timeouts. A daemon that accepted the
// connection but never answered is not retried, nor is caller cancellation.
func IsConnectivityError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}

	var connErr *ConnectivityError
	if errors.As(err, &connErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	// Dial failures cover refused connections and connect timeouts alike.
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF):
		return true
	}
	return false
}
