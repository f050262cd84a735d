package compliance

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the tri-state compliance outcome of a single evaluation.
type Status string

const (
	StatusCompliant   Status = "compliant"
	StatusConditional Status = "conditional"
	StatusBlocked     Status = "blocked"
)

// SponsoredEventType is the activation type that requires prior approval.
const SponsoredEventType = "sponsored_event"

// Severity orders statuses so that blocked > conditional > compliant.
func (s Status) Severity() int {
	switch s {
	case StatusBlocked:
		return 2
	case StatusConditional:
		return 1
	default:
		return 0
	}
}

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusCompliant, StatusConditional, StatusBlocked:
		return true
	}
	return false
}

// Escalate returns the more severe of s and other.
func (s Status) Escalate(other Status) Status {
	if other.Severity() > s.Severity() {
		return other
	}
	return s
}

// ParseStatus normalizes a raw status string.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown compliance status %q", raw)
	}
	return status, nil
}

// ActivationPlanRequest describes a proposed activation to be checked.
type ActivationPlanRequest struct {
	Title          string `json:"title"`
	ActivationType string `json:"activation_type"`
	VenueName      string `json:"venue_name"`
	City           string `json:"city"`
	ProposedDate   string `json:"proposed_date"`
	Description    string `json:"description"`
}

// IsSponsoredEvent reports whether the plan is a sponsorship.
func (r ActivationPlanRequest) IsSponsoredEvent() bool {
	return r.ActivationType == SponsoredEventType
}

// Form identifies a piece of regulatory paperwork.
type Form struct {
	Name string `json:"name" yaml:"name"`
	URL  string `json:"url" yaml:"url"`
}

// Verdict is the structured result of a compliance check.
type Verdict struct {
	ComplianceStatus   Status   `json:"compliance_status"`
	Reasoning          []string `json:"reasoning"`
	RequiredPermits    []string `json:"required_permits"`
	RequiredForms      []Form   `json:"required_forms"`
	SuggestedChecklist []string `json:"suggested_checklist"`
	LegalAlternatives  []string `json:"legal_alternatives"`
	AIPowered          bool     `json:"ai_powered"`
}

// Normalize replaces nil slices with empty ones and drops alternatives from
// verdicts that are not blocked.
func (v *Verdict) Normalize() {
	if v.Reasoning == nil {
		v.Reasoning = []string{}
	}
	if v.RequiredPermits == nil {
		v.RequiredPermits = []string{}
	}
	if v.RequiredForms == nil {
		v.RequiredForms = []Form{}
	}
	if v.SuggestedChecklist == nil {
		v.SuggestedChecklist = []string{}
	}
	if v.LegalAlternatives == nil || v.ComplianceStatus != StatusBlocked {
		v.LegalAlternatives = []string{}
	}
}

// MarshalJSON always renders empty lists as [] rather than null.
func (v Verdict) MarshalJSON() ([]byte, error) {
	type alias Verdict
	v.Normalize()
	return json.Marshal(alias(v))
}
