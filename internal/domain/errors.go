package domain

import (
	"errors"
	"fmt"
)

// ErrUnknownCity is returned by a CityResolver when the authority has no
// municipality for the requested code.
var ErrUnknownCity = errors.New("unknown city code")

// FetchErrorKind classifies why a fetch failed.
type FetchErrorKind string

const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchNetwork    FetchErrorKind = "network"
	FetchHTTPStatus FetchErrorKind = "http_status"
)

// FetchError is a transient failure to retrieve the upstream payload.
// The scheduler retries it on the next tick.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int // set for FetchHTTPStatus
	Err        error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch failed: upstream status %d", e.StatusCode)
	default:
		if e.Err == nil {
			return fmt.Sprintf("fetch failed: %s", e.Kind)
		}
		return fmt.Sprintf("fetch failed (%s): %v", e.Kind, e.Err)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// MalformedSourceError means the payload could not be decoded into the
// expected structure. Nothing from such a payload is applied.
type MalformedSourceError struct {
	Reason string
	Err    error
}

func (e *MalformedSourceError) Error() string {
	if e.Err == nil {
		return "malformed source: " + e.Reason
	}
	return fmt.Sprintf("malformed source: %s: %v", e.Reason, e.Err)
}

func (e *MalformedSourceError) Unwrap() error { return e.Err }

func malformed(err error, format string, args ...any) *MalformedSourceError {
	return &MalformedSourceError{Reason: fmt.Sprintf(format, args...), Err: err}
}

// ConfigurationError is a fatal startup problem such as an invalid or unknown
// city code. It is never retried.
type ConfigurationError struct {
	Field string
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a per-poll failure that the next tick may fix.
func IsTransient(err error) bool {
	var fe *FetchError
	var me *MalformedSourceError
	return errors.As(err, &fe) || errors.As(err, &me)
}
