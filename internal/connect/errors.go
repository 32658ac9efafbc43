package connect

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrJumpHostDown marks jump-host establishment failure. No device is
// reachable without the jump transport, so this is fatal for the whole run.
var ErrJumpHostDown = errors.New("jump host unreachable")

// ErrorKind buckets connection failures for retry policy decisions.
type ErrorKind string

const (
	// KindTransport is a network-level failure (timeout, refused, reset).
	// Retried up to the configured attempt count.
	KindTransport ErrorKind = "transport"
	// KindAuth is a credential failure. Fatal for the device, never retried.
	KindAuth ErrorKind = "auth"
	// KindProtocol is an SSH algorithm negotiation failure against a legacy
	// device. Retried exactly once with a relaxed algorithm set.
	KindProtocol ErrorKind = "protocol"
	// KindCommand is a failed or timed-out command on an established
	// session. Retryable at the job level.
	KindCommand ErrorKind = "command"
)

// Error is a classified connection or command failure.
type Error struct {
	Kind ErrorKind
	Op   string
	Host string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Host, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf extracts the classification from an error chain. Returns the empty
// string for unclassified errors.
func KindOf(err error) ErrorKind {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// Retryable reports whether the failure may succeed on another attempt.
// Auth and protocol failures have dedicated policies and are not generally
// retryable.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindCommand:
		return true
	}
	return false
}

// authPhrases appear in x/crypto/ssh credential rejections. Checked before
// protocol phrases: an auth failure is also reported as "handshake failed".
var authPhrases = []string{
	"unable to authenticate",
	"permission denied",
	"password rejected",
	"no supported methods remain",
}

// protocolPhrases indicate algorithm negotiation failure against devices
// offering only legacy key exchanges or ciphers.
var protocolPhrases = []string{
	"no common algorithm",
	"algorithm negotiation failed",
	"kex_exchange_identification",
	"unexpected message type",
}

// Classify wraps an SSH or network error with its retry-policy kind.
func Classify(op, host string, err error) *Error {
	kind := KindTransport

	msg := strings.ToLower(err.Error())
	for _, p := range authPhrases {
		if strings.Contains(msg, p) {
			kind = KindAuth
			break
		}
	}
	if kind == KindTransport {
		for _, p := range protocolPhrases {
			if strings.Contains(msg, p) {
				kind = KindProtocol
				break
			}
		}
	}
	if kind == KindTransport {
		var netErr net.Error
		if errors.As(err, &netErr) {
			kind = KindTransport
		}
	}

	return &Error{Kind: kind, Op: op, Host: host, Err: err}
}
