package compliance

import (
	"context"
	"fmt"
	"strings"

	"dealos-proof/backend/internal/match"
)

// RuleClassifier is the offline keyword classifier. It is total and
// deterministic: the same plan text always yields the same verdict.
type RuleClassifier struct {
	rules *RuleSet
}

// NewRuleClassifier builds a classifier over rs, or the embedded default
// when rs is nil.
func NewRuleClassifier(rs *RuleSet) *RuleClassifier {
	if rs == nil {
		rs = DefaultRuleSet()
	}
	return &RuleClassifier{rules: rs}
}

// Name implements Classifier.
func (r *RuleClassifier) Name() string { return "rules" }

// Classify implements Classifier and never returns an error.
func (r *RuleClassifier) Classify(_ context.Context, req ActivationPlanRequest) (Verdict, error) {
	return r.Evaluate(req), nil
}

// Evaluate runs the keyword checks. Severity only ever escalates.
func (r *RuleClassifier) Evaluate(req ActivationPlanRequest) Verdict {
	rs := r.rules
	profile := match.NormalizePlan(req.Title, req.Description)
	sponsored := req.ActivationType == rs.Sponsorship.ActivationType

	status := StatusCompliant
	reasoning := make([]string, 0, 3)

	if hits := profile.Matches(rs.TiedHouse.Phrases); len(hits) > 0 {
		reasoning = append(reasoning, rs.TiedHouse.Finding)
		status = status.Escalate(StatusBlocked)
	}
	if hits := profile.Matches(rs.BannedPromotions.Phrases); len(hits) > 0 {
		reasoning = append(reasoning, formatFinding(rs.BannedPromotions.Finding, hits))
		status = status.Escalate(StatusBlocked)
	}
	if sponsored {
		reasoning = append(reasoning, rs.Sponsorship.Finding)
		status = status.Escalate(StatusConditional)
	}
	if len(reasoning) == 0 {
		reasoning = append(reasoning, rs.PassedFinding)
	}

	forms := []Form{}
	checklist := make([]string, 0, len(rs.Checklist)+1)
	if sponsored {
		forms = append(forms, rs.Sponsorship.Form)
		checklist = append(checklist, rs.Sponsorship.ChecklistItem)
	}
	checklist = append(checklist, rs.Checklist...)

	alternatives := []string{}
	if status == StatusBlocked {
		alternatives = append(alternatives, rs.LegalAlternatives...)
	}

	return Verdict{
		ComplianceStatus:   status,
		Reasoning:          reasoning,
		RequiredPermits:    append([]string{}, rs.RequiredPermits...),
		RequiredForms:      forms,
		SuggestedChecklist: checklist,
		LegalAlternatives:  alternatives,
		AIPowered:          false,
	}
}

func formatFinding(finding string, hits []string) string {
	quoted := make([]string, len(hits))
	for i, hit := range hits {
		quoted[i] = fmt.Sprintf("%q", hit)
	}
	joined := strings.Join(quoted, ", ")
	if strings.Contains(finding, "%s") {
		return fmt.Sprintf(finding, joined)
	}
	return finding + " Matched: " + joined + "."
}
