package search

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies why a provider call failed.
type ErrorKind string

const (
	KindUnavailable ErrorKind = "unavailable"
	KindTimeout     ErrorKind = "timeout"
	KindTransport   ErrorKind = "transport"
	KindParse       ErrorKind = "parse"
)

// ErrUnavailable marks a provider that cannot be called this run, usually
// because no credential is configured.
var ErrUnavailable = errors.New("provider unavailable")

// ProviderError is the typed error every adapter returns.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func transportError(provider string, err error) error {
	return &ProviderError{Provider: provider, Kind: KindTransport, Err: err}
}

func parseError(provider string, err error) error {
	return &ProviderError{Provider: provider, Kind: KindParse, Err: err}
}

func unavailableError(provider, reason string) error {
	return &ProviderError{Provider: provider, Kind: KindUnavailable, Err: fmt.Errorf("%w: %s", ErrUnavailable, reason)}
}

// Classify maps any error to an ErrorKind. Errors that are not typed are
// treated as transport failures.
func Classify(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var perr *ProviderError
	if errors.As(err, &perr) {
		if perr.Kind == KindTransport && isTimeout(perr.Err) {
			return KindTimeout
		}
		return perr.Kind
	}
	if isTimeout(err) {
		return KindTimeout
	}
	if errors.Is(err, ErrUnavailable) {
		return KindUnavailable
	}
	return KindTransport
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
