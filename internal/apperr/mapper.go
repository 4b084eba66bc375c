package apperr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"syscall"
)

// Origin names the downstream dependency an UpstreamError came from.
type Origin string

const (
	OriginAI   Origin = "ai"
	OriginData Origin = "data"
)

// UpstreamError reports a failed call to a downstream provider. StatusCode
// is zero when the provider answered but the reply was unusable.
type UpstreamError struct {
	Origin     Origin
	StatusCode int
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s upstream returned %d: %v", e.Origin, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upstream failed: %v", e.Origin, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// ValidationFailure is raised by input checks that live outside the
// validation package (query parsing, body decoding).
type ValidationFailure struct {
	Field   string
	Message string
	Details map[string]any
}

func (e *ValidationFailure) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// ToAppError classifies any failure into exactly one category. The checks
// run in a fixed order so the same failure class always lands in the same
// category.
func ToAppError(err error) *AppError {
	if err == nil {
		return New(CategoryInternal, WithMessage("An unexpected empty failure occurred."))
	}

	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}

	var vf *ValidationFailure
	if errors.As(err, &vf) {
		return Validation(vf.Field, vf.Message, vf.Details)
	}

	if isTimeout(err) {
		return New(CategoryTimeout, WithCause(err))
	}

	if isNetwork(err) {
		return New(CategoryNetwork, WithCause(err))
	}

	var ue *UpstreamError
	if errors.As(err, &ue) {
		return fromUpstream(ue)
	}

	return New(CategoryInternal, WithCause(err))
}

func fromUpstream(ue *UpstreamError) *AppError {
	details := map[string]any{"origin": string(ue.Origin)}
	if ue.StatusCode != 0 {
		details["upstreamStatus"] = ue.StatusCode
	}
	switch {
	case ue.StatusCode >= http.StatusInternalServerError:
		return New(CategoryServiceDown, WithDetails(details), WithCause(ue))
	case ue.StatusCode == http.StatusTooManyRequests:
		return New(CategoryRateLimit, WithDetails(details), WithCause(ue))
	case ue.StatusCode == http.StatusNotFound:
		return New(CategoryNotFound, WithDetails(details), WithCause(ue))
	}
	if ue.Origin == OriginAI {
		return New(CategoryUpstreamAIError, WithDetails(details), WithCause(ue))
	}
	return New(CategoryUpstreamDataError, WithDetails(details), WithCause(ue))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isNetwork(err error) bool {
	// A cancelled caller means the client went away mid-request.
	if errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
