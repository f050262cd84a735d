package compliance

import (
	"context"
	"errors"
	"fmt"
)

// Classifier produces a verdict for an activation plan.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, req ActivationPlanRequest) (Verdict, error)
}

// ErrNotConfigured is returned by classifiers that lack credentials. It is a
// routing condition, not a failure.
var ErrNotConfigured = errors.New("classifier not configured")

// FailureKind labels the ways an upstream classifier can fail.
type FailureKind string

const (
	FailureTransport FailureKind = "transport"
	FailureStatus    FailureKind = "status"
	FailureParse     FailureKind = "parse"
)

// UpstreamError describes a failed call to an external classifier.
type UpstreamError struct {
	Kind       FailureKind
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Kind == FailureStatus:
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("upstream %s failure: %v", e.Kind, e.Err)
	default:
		return fmt.Sprintf("upstream %s failure", e.Kind)
	}
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// FailureReason maps err to a short label used in logs, metrics and check history.
func FailureReason(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, ErrNotConfigured) {
		return "not_configured"
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return string(upstream.Kind)
	}
	return "unknown"
}
