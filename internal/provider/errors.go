package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorKind is the closed set of failure classes a provider call can end in.
type ErrorKind int

// Error kinds. KindUnknown is the zero value and is never produced by an
// adapter; classification maps it to KindInternal.
const (
	KindUnknown ErrorKind = iota
	KindTimeout
	KindValidation
	KindRateLimited
	KindNotFound
	KindDependency
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindDependency:
		return "dependency"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the failure every TrackProvider method returns.
type Error struct {
	Kind       ErrorKind
	Provider   ProviderName
	StatusCode int           // 0 when no HTTP response was received
	RetryAfter time.Duration // only meaningful for KindRateLimited
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "provider %s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds a provider error with a formatted cause.
func NewError(name ProviderName, kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Provider: name, Cause: fmt.Errorf(format, args...)}
}

// Unsupported reports an operation the provider cannot serve.
func Unsupported(name ProviderName, op Operation) *Error {
	return NewError(name, KindValidation, "%s unsupported", op)
}

// StatusError maps a non-2xx HTTP response to an Error. The Retry-After
// header is honored for 429 and 503 responses.
func StatusError(name ProviderName, resp *http.Response) *Error {
	e := &Error{
		Provider:   name,
		StatusCode: resp.StatusCode,
		Cause:      fmt.Errorf("unexpected HTTP %d", resp.StatusCode),
	}
	switch code := resp.StatusCode; {
	case code == http.StatusNotFound:
		e.Kind = KindNotFound
	case code == http.StatusTooManyRequests:
		e.Kind = KindRateLimited
		e.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
	case code == http.StatusBadRequest, code == http.StatusUnauthorized,
		code == http.StatusForbidden, code == http.StatusUnprocessableEntity:
		e.Kind = KindValidation
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		e.Kind = KindTimeout
	case code >= 500:
		e.Kind = KindDependency
		if code == http.StatusServiceUnavailable {
			e.RetryAfter = ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		}
	default:
		e.Kind = KindInternal
	}
	return e
}

// TransportError classifies an error returned by http.Client.Do. Deadline
// and net timeouts map to KindTimeout, everything else to KindDependency.
func TransportError(name ProviderName, err error) *Error {
	kind := KindDependency
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = KindTimeout
	}
	return &Error{Kind: kind, Provider: name, Cause: err}
}

// DecodeError wraps a response body that could not be parsed.
func DecodeError(name ProviderName, err error) *Error {
	return &Error{Kind: KindInternal, Provider: name, Cause: fmt.Errorf("decoding response: %w", err)}
}

// ParseRetryAfter accepts both the delta-seconds and the HTTP-date forms.
// Unparseable or past values yield zero.
func ParseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
