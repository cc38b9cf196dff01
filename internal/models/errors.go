package models

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindInvalidInput        ErrorKind = "invalid_input"
	KindUpstreamAuth        ErrorKind = "upstream_auth"
	KindUpstreamRateLimited ErrorKind = "upstream_rate_limited"
	KindUpstreamRejected    ErrorKind = "upstream_rejected"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindNormalizerSkipped   ErrorKind = "normalizer_skipped"
	KindEnrichmentDegraded  ErrorKind = "enrichment_degraded"
	KindAnalyzerDegraded    ErrorKind = "analyzer_degraded"
	KindInternal            ErrorKind = "internal"
)

// KindedError is implemented by every error that terminates a search.
type KindedError interface {
	error
	Kind() ErrorKind
}

type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Kind() ErrorKind { return KindInvalidInput }

func NewInvalidInput(field, reason string) *InvalidInputError {
	return &InvalidInputError{Field: field, Reason: reason}
}

type UpstreamAuthError struct {
	Err error
}

func (e *UpstreamAuthError) Error() string {
	if e.Err == nil {
		return "upstream authentication failed"
	}
	return "upstream authentication failed: " + e.Err.Error()
}

func (e *UpstreamAuthError) Unwrap() error   { return e.Err }
func (e *UpstreamAuthError) Kind() ErrorKind { return KindUpstreamAuth }

type UpstreamRateLimitedError struct {
	Body string
}

func (e *UpstreamRateLimitedError) Error() string {
	return "upstream rate limit exceeded"
}

func (e *UpstreamRateLimitedError) Kind() ErrorKind { return KindUpstreamRateLimited }

type UpstreamRejectedError struct {
	Status int
	Body   string
}

func (e *UpstreamRejectedError) Error() string {
	return fmt.Sprintf("upstream rejected request: %d - %s", e.Status, e.Body)
}

func (e *UpstreamRejectedError) Kind() ErrorKind { return KindUpstreamRejected }

// UpstreamUnavailableError covers timeouts, connection faults and 5xx
// responses that survived every retry. Status is zero for transport errors.
type UpstreamUnavailableError struct {
	Status int
	Err    error
}

func (e *UpstreamUnavailableError) Error() string {
	switch {
	case e.Status != 0 && e.Err != nil:
		return fmt.Sprintf("upstream unavailable: status %d: %v", e.Status, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("upstream unavailable: status %d", e.Status)
	case e.Err != nil:
		return "upstream unavailable: " + e.Err.Error()
	default:
		return "upstream unavailable"
	}
}

func (e *UpstreamUnavailableError) Unwrap() error   { return e.Err }
func (e *UpstreamUnavailableError) Kind() ErrorKind { return KindUpstreamUnavailable }

// KindOf reports the taxonomy kind of err, or KindInternal when err does not
// belong to it.
func KindOf(err error) ErrorKind {
	var kinded KindedError
	if errors.As(err, &kinded) {
		return kinded.Kind()
	}
	return KindInternal
}

func IsInvalidInput(err error) bool {
	var target *InvalidInputError
	return errors.As(err, &target)
}

func IsUpstream(err error) bool {
	switch KindOf(err) {
	case KindUpstreamAuth, KindUpstreamRateLimited, KindUpstreamRejected, KindUpstreamUnavailable:
		return true
	}
	return false
}
