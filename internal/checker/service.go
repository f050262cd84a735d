// Package checker wires the compliance classifiers into the per-request
// selection used by the HTTP API and the batch tools.
package checker

import (
	"context"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dealos-proof/backend/internal/ai"
	"dealos-proof/backend/internal/compliance"
	"dealos-proof/backend/internal/observability"
	"dealos-proof/backend/internal/util"
)

// Result is a verdict plus the provenance recorded in check history.
type Result struct {
	Verdict          compliance.Verdict
	Classifier       string
	FallbackReason   string
	Jurisdiction     string
	ProcessingTimeMs int64
}

// Service runs one compliance check per call. It keeps no state between
// calls beyond its configuration.
type Service struct {
	rules   *compliance.RuleBook
	ai      *ai.Client
	metrics *observability.Metrics
}

// NewService builds a Service. A nil client means rule-based checks only.
func NewService(rules *compliance.RuleBook, client *ai.Client, metrics *observability.Metrics) *Service {
	if rules == nil {
		rules = compliance.StaticRuleBook(nil)
	}
	return &Service{rules: rules, ai: client, metrics: metrics}
}

// AIEnabled reports whether the AI classifier will be attempted.
func (s *Service) AIEnabled() bool {
	return s.ai.Enabled()
}

// Model returns the configured model id, or "" when AI is off.
func (s *Service) Model() string {
	if !s.AIEnabled() {
		return ""
	}
	return s.ai.Model()
}

// RuleSet returns the active rule set.
func (s *Service) RuleSet() *compliance.RuleSet {
	return s.rules.Current()
}

// Check classifies req. It always returns a verdict; upstream failures
// degrade to the rule classifier.
func (s *Service) Check(ctx context.Context, req compliance.ActivationPlanRequest) Result {
	timer := util.StartTimer()
	ctx, span := otel.Tracer("dealos-proof/checker").Start(ctx, "compliance.check", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	rs := s.rules.Current()
	fallback := compliance.NewRuleClassifier(rs)
	var primary compliance.Classifier
	if s.ai.Enabled() {
		primary = s.ai.WithRuleSet(rs)
	}

	outcome, err := compliance.OrElse(primary, fallback).Resolve(ctx, req)
	if err != nil {
		// The rule classifier is total; this only guards against a broken fallback.
		logrus.WithError(err).Error("rule classifier failed")
		outcome = compliance.Outcome{Verdict: fallback.Evaluate(req), Classifier: fallback.Name(), FallbackErr: err}
	}

	result := Result{
		Verdict:          outcome.Verdict,
		Classifier:       outcome.Classifier,
		Jurisdiction:     rs.Jurisdiction,
		ProcessingTimeMs: timer.ElapsedMs(),
	}
	if outcome.FallbackErr != nil {
		result.FallbackReason = compliance.FailureReason(outcome.FallbackErr)
	}

	span.SetAttributes(
		attribute.String("compliance.status", string(result.Verdict.ComplianceStatus)),
		attribute.String("compliance.classifier", result.Classifier),
		attribute.Bool("compliance.ai_powered", result.Verdict.AIPowered),
		attribute.String("compliance.jurisdiction", result.Jurisdiction),
	)
	s.metrics.ObserveCheck(result.Classifier, string(result.Verdict.ComplianceStatus), result.FallbackReason)

	logrus.WithFields(logrus.Fields{
		"status":          result.Verdict.ComplianceStatus,
		"classifier":      result.Classifier,
		"ai_powered":      result.Verdict.AIPowered,
		"fallback_reason": result.FallbackReason,
		"duration_ms":     result.ProcessingTimeMs,
	}).Debug("compliance check completed")
	return result
}
