package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sydlexius/tributary/internal/dto"
	"github.com/sydlexius/tributary/internal/provider"
)

// Sentinels matched by errors.Is against any *Error of the same kind.
var (
	ErrTimeout     = errors.New("provider timeout")
	ErrValidation  = errors.New("provider validation failure")
	ErrRateLimited = errors.New("provider rate limited")
	ErrNotFound    = errors.New("provider resource not found")
	ErrDependency  = errors.New("provider dependency failure")
	ErrInternal    = errors.New("provider internal failure")
)

// Error is the failure a gateway call returns once retries are exhausted or
// the failure is not retryable.
type Error struct {
	Kind       provider.ErrorKind
	Provider   provider.ProviderName
	Operation  provider.Operation
	StatusCode int
	RetryAfter time.Duration
	Attempts   int
	Cause      error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s via %s: %s", e.Operation, e.Provider, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (HTTP %d)", e.StatusCode)
	}
	if e.Attempts > 1 {
		fmt.Fprintf(&b, " after %d attempts", e.Attempts)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && sentinel(e.Kind) == target
}

// Retryable reports whether the kind is eligible for another attempt.
func (e *Error) Retryable() bool {
	return RetryableKind(e.Kind)
}

// RetryableKind reports whether failures of kind k are transient.
func RetryableKind(k provider.ErrorKind) bool {
	switch k {
	case provider.KindTimeout, provider.KindRateLimited, provider.KindDependency:
		return true
	default:
		return false
	}
}

// IsRetryable reports whether err is a retryable gateway or provider error.
func IsRetryable(err error) bool {
	return RetryableKind(KindOf(err))
}

// KindOf returns the error kind err would be classified as, or KindUnknown
// for a nil error.
func KindOf(err error) provider.ErrorKind {
	if err == nil {
		return provider.KindUnknown
	}
	return classify("", "", err).Kind
}

func sentinel(k provider.ErrorKind) error {
	switch k {
	case provider.KindTimeout:
		return ErrTimeout
	case provider.KindValidation:
		return ErrValidation
	case provider.KindRateLimited:
		return ErrRateLimited
	case provider.KindNotFound:
		return ErrNotFound
	case provider.KindDependency:
		return ErrDependency
	case provider.KindInternal, provider.KindUnknown:
		return ErrInternal
	}
	return ErrInternal
}

// classify maps any error returned from a provider call onto exactly one
// gateway error kind.
func classify(name provider.ProviderName, op provider.Operation, err error) *Error {
	var ge *Error
	if errors.As(err, &ge) {
		out := *ge
		return &out
	}

	e := &Error{Provider: name, Operation: op, Cause: err}

	var pe *provider.Error
	if errors.As(err, &pe) {
		if e.Provider == "" {
			e.Provider = pe.Provider
		}
		e.StatusCode = pe.StatusCode
		e.Cause = pe.Cause
		switch pe.Kind {
		case provider.KindTimeout:
			e.Kind = provider.KindTimeout
		case provider.KindValidation:
			e.Kind = provider.KindValidation
		case provider.KindRateLimited:
			e.Kind = provider.KindRateLimited
			e.RetryAfter = pe.RetryAfter
		case provider.KindNotFound:
			e.Kind = provider.KindNotFound
		case provider.KindDependency:
			e.Kind = provider.KindDependency
		case provider.KindInternal, provider.KindUnknown:
			e.Kind = provider.KindInternal
		default:
			e.Kind = provider.KindInternal
		}
		return e
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		e.Kind = provider.KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Kind = provider.KindTimeout
	case errors.Is(err, dto.ErrInvalidInput):
		e.Kind = provider.KindValidation
	default:
		e.Kind = provider.KindInternal
	}
	return e
}
