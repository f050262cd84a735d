package compliance

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubClassifier struct {
	name    string
	verdict Verdict
	err     error
	calls   int
}

func (s *stubClassifier) Name() string { return s.name }

func (s *stubClassifier) Classify(context.Context, ActivationPlanRequest) (Verdict, error) {
	s.calls++
	return s.verdict, s.err
}

func TestChainResolve(t *testing.T) {
	aiVerdict := Verdict{
		ComplianceStatus:  StatusConditional,
		Reasoning:         []string{"model finding"},
		LegalAlternatives: []string{"should be dropped"},
	}
	req := ActivationPlanRequest{Title: "Routine Tasting", Description: "staff pours"}

	tests := []struct {
		name       string
		primaryErr error
		noPrimary  bool
		classifier string
		reason     string
		aiPowered  bool
	}{
		{name: "primary succeeds", classifier: "stub", aiPowered: true},
		{name: "no primary", noPrimary: true, classifier: "rules", reason: "not_configured"},
		{name: "status failure", primaryErr: &UpstreamError{Kind: FailureStatus, StatusCode: 500}, classifier: "rules", reason: "status"},
		{name: "transport failure", primaryErr: &UpstreamError{Kind: FailureTransport, Err: errors.New("dial tcp: refused")}, classifier: "rules", reason: "transport"},
		{name: "parse failure", primaryErr: &UpstreamError{Kind: FailureParse, Err: errors.New("no json")}, classifier: "rules", reason: "parse"},
		{name: "canceled", primaryErr: context.Canceled, classifier: "rules", reason: "canceled"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var primary Classifier
			stub := &stubClassifier{name: "stub", verdict: aiVerdict, err: tc.primaryErr}
			if !tc.noPrimary {
				primary = stub
			}
			fallback := NewRuleClassifier(nil)

			outcome, err := OrElse(primary, fallback).Resolve(context.Background(), req)
			require.NoError(t, err)
			assert.Equal(t, tc.classifier, outcome.Classifier)
			assert.Equal(t, tc.reason, FailureReason(outcome.FallbackErr))
			assert.Equal(t, tc.aiPowered, outcome.Verdict.AIPowered)
			assert.Empty(t, outcome.Verdict.LegalAlternatives)
			if !tc.noPrimary {
				assert.Equal(t, 1, stub.calls, "primary is attempted exactly once")
			}
			if !tc.aiPowered {
				assert.Equal(t, fallback.Evaluate(req).Reasoning, outcome.Verdict.Reasoning)
			}
		})
	}
}

func TestChainName(t *testing.T) {
	fallback := NewRuleClassifier(nil)
	assert.Equal(t, "rules", OrElse(nil, fallback).Name())
	assert.Equal(t, "stub|rules", OrElse(&stubClassifier{name: "stub"}, fallback).Name())
}

func TestChainFallbackError(t *testing.T) {
	broken := &stubClassifier{name: "broken", err: errors.New("boom")}
	_, err := OrElse(nil, broken).Classify(context.Background(), ActivationPlanRequest{})
	assert.Error(t, err)
}

func TestFailureReason(t *testing.T) {
	wrapped := errors.Join(errors.New("context"), &UpstreamError{Kind: FailureParse})
	assert.Equal(t, "parse", FailureReason(wrapped))
	assert.Equal(t, "", FailureReason(nil))
	assert.Equal(t, "unknown", FailureReason(errors.New("other")))
	assert.Equal(t, "not_configured", FailureReason(ErrNotConfigured))
}
