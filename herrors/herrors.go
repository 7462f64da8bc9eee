// Package herrors defines the error taxonomy shared by the pool and the
// failover executor, and the classifier that maps a raw transport/RPC
// error onto one of those kinds: a small closed set of error kinds
// plus one Go error type per kind, so callers can classify with
// errors.As instead of a catch-by-concrete-error-type chain.
package herrors

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind is the classification of a failure observed while executing an
// operation against a Connection.
type Kind int

const (
	// KindApplication is a logical error returned by the server itself
	// (not-found, invalid-argument, schema mismatch, ...). Never retried.
	KindApplication Kind = iota
	// KindTimeout means the server accepted the request but did not
	// answer before the socket timeout elapsed.
	KindTimeout
	// KindUnavailable means the server reported an insufficient number
	// of replicas for the requested consistency level.
	KindUnavailable
	// KindTransport means the channel itself failed (connect, write,
	// read, or an unexpected close).
	KindTransport
	// KindPoolExhausted means a borrow() deadline elapsed on a
	// saturated per-host pool. Never retried by the core.
	KindPoolExhausted
	// KindFatal means programmer misuse: a nil Connection released, a
	// Connection released to a pool that doesn't own it, or a shut-down
	// pool used.
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindApplication:
		return "application"
	case KindTimeout:
		return "timeout"
	case KindUnavailable:
		return "unavailable"
	case KindTransport:
		return "transport"
	case KindPoolExhausted:
		return "pool-exhausted"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the concrete error type carried through the executor's
// retry loop. It wraps the underlying cause while exposing its Kind for
// classification and logging.
type Error struct {
	Kind  Kind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New wraps cause as an *Error of the given kind.
func New(kind Kind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Timeout, Unavailable, Transport, Application, PoolExhausted and Fatal
// are convenience constructors for the corresponding Kind.
func Timeout(cause error) *Error       { return New(KindTimeout, cause) }
func Unavailable(cause error) *Error   { return New(KindUnavailable, cause) }
func Transport(cause error) *Error     { return New(KindTransport, cause) }
func Application(cause error) *Error   { return New(KindApplication, cause) }
func PoolExhausted(cause error) *Error { return New(KindPoolExhausted, cause) }
func Fatal(cause error) *Error         { return New(KindFatal, cause) }

// Is reports whether err is (or wraps) a classified *Error of the given kind.
func Is(err error, kind Kind) bool {
	var herr *Error
	if errors.As(err, &herr) {
		return herr.Kind == kind
	}
	return false
}

// Classifier maps a raw error observed while running an Operation onto
// a classified Kind. Applications may provide their own (e.g. one aware
// of a specific server's application-error wire format); DefaultClassifier
// covers the common transport-level cases.
type Classifier interface {
	Classify(err error) Kind
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(err error) Kind

func (f ClassifierFunc) Classify(err error) Kind { return f(err) }

// DefaultClassifier returns the Kind of an *herrors.Error as is,
// recognizes context.DeadlineExceeded and net.Error timeouts as
// KindTimeout and any other net.Error as KindTransport, and falls back
// to KindApplication for anything else, context.Canceled included.
var DefaultClassifier Classifier = ClassifierFunc(defaultClassify)

func defaultClassify(err error) Kind {
	if err == nil {
		return KindApplication
	}

	var herr *Error
	if errors.As(err, &herr) {
		return herr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout
		}
		return KindTransport
	}

	return KindApplication
}
