package provider

import (
	"errors"
	"fmt"
)

// ErrNotSupported reports a symbol without a provider id. It is a routing
// outcome rather than a failure.
var ErrNotSupported = errors.New("symbol not supported")

// NetworkError wraps a transport failure, including timeouts.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network error: %v", e.Err) }

func (e *NetworkError) Unwrap() error { return e.Err }

// ProviderError is a non-2xx response or a payload that could not be decoded.
// StatusCode is zero for decode failures.
type ProviderError struct {
	StatusCode int
	Msg        string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("provider error: status %d: %s", e.StatusCode, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider error: %s: %v", e.Msg, e.Err)
	}
	return "provider error: " + e.Msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Kind names the error class for logs and metric labels.
func Kind(err error) string {
	var netErr *NetworkError
	var provErr *ProviderError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNotSupported):
		return "not_supported"
	case errors.As(err, &netErr):
		return "network"
	case errors.As(err, &provErr):
		return "provider"
	default:
		return "other"
	}
}
