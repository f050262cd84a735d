package ai

import (
	"fmt"
	"strings"

	"dealos-proof/backend/internal/compliance"
)

const roleStatement = "You are a beverage alcohol compliance specialist. You review proposed brand activations at licensed venues and decide whether they comply with the regulations below."

const formatInstructions = `Reply with a single JSON object and nothing else. Use exactly these keys:
{
  "compliance_status": "compliant" | "conditional" | "blocked",
  "reasoning": ["finding", ...],
  "required_permits": ["permit (cost)", ...],
  "required_forms": [{"name": "form name", "url": "https://..."}],
  "suggested_checklist": ["step", ...],
  "legal_alternatives": ["alternative", ...]
}
Rules for the reply:
- "blocked" when any part of the plan violates the regulations; "conditional" when it is allowed only after an approval or permit step; otherwise "compliant".
- "reasoning" must contain at least one finding and cite the rule it relies on.
- Order "suggested_checklist" so prerequisites come first.
- Fill "legal_alternatives" only when the status is "blocked"; otherwise return an empty list.`

func buildSystemPrompt(reference string) string {
	builder := &strings.Builder{}
	builder.WriteString(roleStatement)
	builder.WriteString("\n\n")
	builder.WriteString(strings.TrimSpace(reference))
	builder.WriteString("\n\n")
	builder.WriteString(formatInstructions)
	return builder.String()
}

func buildUserPrompt(req compliance.ActivationPlanRequest, defaultLocation string) string {
	city := strings.TrimSpace(req.City)
	if city == "" {
		city = defaultLocation
	}
	builder := &strings.Builder{}
	builder.WriteString("Review this proposed activation for compliance.\n\n")
	fmt.Fprintf(builder, "Title: %s\n", strings.TrimSpace(req.Title))
	fmt.Fprintf(builder, "Activation type: %s\n", strings.TrimSpace(req.ActivationType))
	fmt.Fprintf(builder, "Venue: %s\n", strings.TrimSpace(req.VenueName))
	fmt.Fprintf(builder, "City: %s\n", city)
	fmt.Fprintf(builder, "Proposed date: %s\n", strings.TrimSpace(req.ProposedDate))
	fmt.Fprintf(builder, "Description: %s\n\n", strings.TrimSpace(req.Description))
	if req.IsSponsoredEvent() {
		builder.WriteString("This activation is a sponsored event.\n\n")
	}
	builder.WriteString("Return only the JSON object described in your instructions.")
	return builder.String()
}
