package compliance

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
)

// Outcome reports which classifier produced a verdict and why the primary
// was skipped, when it was.
type Outcome struct {
	Verdict     Verdict
	Classifier  string
	FallbackErr error
}

// Chain tries a primary classifier once and answers from the fallback on any
// primary error.
type Chain struct {
	primary  Classifier
	fallback Classifier
}

// OrElse composes primary with a fallback. A nil primary means the fallback
// always answers. The fallback must be total.
func OrElse(primary, fallback Classifier) *Chain {
	return &Chain{primary: primary, fallback: fallback}
}

// Name implements Classifier.
func (c *Chain) Name() string {
	if c.primary == nil {
		return c.fallback.Name()
	}
	return c.primary.Name() + "|" + c.fallback.Name()
}

// Classify implements Classifier; it only errors when the fallback does.
func (c *Chain) Classify(ctx context.Context, req ActivationPlanRequest) (Verdict, error) {
	outcome, err := c.Resolve(ctx, req)
	return outcome.Verdict, err
}

// Resolve runs the chain and reports provenance alongside the verdict.
func (c *Chain) Resolve(ctx context.Context, req ActivationPlanRequest) (Outcome, error) {
	fallbackErr := ErrNotConfigured
	if c.primary != nil {
		verdict, err := c.primary.Classify(ctx, req)
		if err == nil {
			verdict.AIPowered = true
			verdict.Normalize()
			return Outcome{Verdict: verdict, Classifier: c.primary.Name()}, nil
		}
		fallbackErr = err
		if !errors.Is(err, ErrNotConfigured) {
			logrus.WithError(err).WithFields(logrus.Fields{
				"classifier": c.primary.Name(),
				"reason":     FailureReason(err),
			}).Warn("primary classifier failed; falling back")
		}
	}

	verdict, err := c.fallback.Classify(ctx, req)
	if err != nil {
		return Outcome{}, err
	}
	verdict.AIPowered = false
	verdict.Normalize()
	return Outcome{Verdict: verdict, Classifier: c.fallback.Name(), FallbackErr: fallbackErr}, nil
}
