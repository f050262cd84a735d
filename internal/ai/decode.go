package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"dealos-proof/backend/internal/compliance"
)

const verdictSchemaURL = "https://proof.schemas.local/compliance/verdict.schema.json"

const verdictSchemaText = `{
  "type": "object",
  "required": ["compliance_status", "reasoning"],
  "properties": {
    "compliance_status": {"type": "string", "enum": ["compliant", "conditional", "blocked"]},
    "reasoning": {"type": "array", "minItems": 1, "items": {"type": "string", "minLength": 1}},
    "required_permits": {"type": ["array", "null"], "items": {"type": "string"}},
    "required_forms": {
      "type": ["array", "null"],
      "items": {
        "type": "object",
        "required": ["name"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "url": {"type": "string"}
        }
      }
    },
    "suggested_checklist": {"type": ["array", "null"], "items": {"type": "string"}},
    "legal_alternatives": {"type": ["array", "null"], "items": {"type": "string"}}
  }
}`

var verdictSchema = mustCompileVerdictSchema()

func mustCompileVerdictSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(verdictSchemaURL, strings.NewReader(verdictSchemaText)); err != nil {
		panic(fmt.Sprintf("load verdict schema: %v", err))
	}
	schema, err := c.Compile(verdictSchemaURL)
	if err != nil {
		panic(fmt.Sprintf("compile verdict schema: %v", err))
	}
	return schema
}

// DecodeVerdict extracts the JSON object from a model reply and decodes it
// strictly into a verdict. Any shape mismatch is reported as a parse failure.
func DecodeVerdict(reply string) (compliance.Verdict, error) {
	raw, ok := ExtractJSONObject(reply)
	if !ok {
		return compliance.Verdict{}, parseFailure(fmt.Errorf("no json object in reply"))
	}

	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return compliance.Verdict{}, parseFailure(fmt.Errorf("unmarshal reply: %w", err))
	}
	if err := verdictSchema.Validate(doc); err != nil {
		return compliance.Verdict{}, parseFailure(fmt.Errorf("validate reply: %w", err))
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return compliance.Verdict{}, parseFailure(fmt.Errorf("decode reply: %w", err))
	}
	status, err := compliance.ParseStatus(payload.ComplianceStatus)
	if err != nil {
		return compliance.Verdict{}, parseFailure(err)
	}

	verdict := compliance.Verdict{
		ComplianceStatus:   status,
		Reasoning:          trimAll(payload.Reasoning),
		RequiredPermits:    trimAll(payload.RequiredPermits),
		SuggestedChecklist: trimAll(payload.SuggestedChecklist),
		LegalAlternatives:  trimAll(payload.LegalAlternatives),
	}
	for _, form := range payload.RequiredForms {
		verdict.RequiredForms = append(verdict.RequiredForms, compliance.Form{
			Name: strings.TrimSpace(form.Name),
			URL:  strings.TrimSpace(form.URL),
		})
	}
	if len(verdict.Reasoning) == 0 {
		return compliance.Verdict{}, parseFailure(fmt.Errorf("reply has no reasoning"))
	}
	verdict.Normalize()
	return verdict, nil
}

func parseFailure(err error) error {
	return &compliance.UpstreamError{Kind: compliance.FailureParse, Err: err}
}

func trimAll(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
