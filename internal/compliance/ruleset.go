package compliance

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"dealos-proof/backend/internal/match"
)

//go:embed rulesets/virginia.yaml
var virginiaRuleSet []byte

// PhraseRule is a list of trigger phrases and the finding emitted on a match.
type PhraseRule struct {
	Finding string   `yaml:"finding"`
	Phrases []string `yaml:"phrases"`
}

// SponsorshipRule describes the approval requirement for sponsored events.
type SponsorshipRule struct {
	ActivationType string `yaml:"activation_type"`
	Finding        string `yaml:"finding"`
	Form           Form   `yaml:"form"`
	ChecklistItem  string `yaml:"checklist_item"`
}

// RuleSet is a jurisdiction's keyword rules plus the regulatory reference
// text handed to the AI classifier. A loaded RuleSet is never mutated.
type RuleSet struct {
	Jurisdiction      string          `yaml:"jurisdiction"`
	Name              string          `yaml:"name"`
	DefaultLocation   string          `yaml:"default_location"`
	Reference         string          `yaml:"reference"`
	TiedHouse         PhraseRule      `yaml:"tied_house"`
	BannedPromotions  PhraseRule      `yaml:"banned_promotions"`
	Sponsorship       SponsorshipRule `yaml:"sponsorship"`
	PassedFinding     string          `yaml:"passed_finding"`
	RequiredPermits   []string        `yaml:"required_permits"`
	Checklist         []string        `yaml:"checklist"`
	LegalAlternatives []string        `yaml:"legal_alternatives"`

	// Source records where the rule set was loaded from.
	Source string `yaml:"-"`
}

// DefaultRuleSet returns the embedded Virginia ABC rule set.
func DefaultRuleSet() *RuleSet {
	rs, err := ParseRuleSet(virginiaRuleSet)
	if err != nil {
		panic(fmt.Sprintf("embedded rule set invalid: %v", err))
	}
	rs.Source = "embedded:virginia"
	return rs
}

// LoadRuleSet reads and validates a YAML rule set from disk.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}
	rs, err := ParseRuleSet(data)
	if err != nil {
		return nil, fmt.Errorf("rule set %s: %w", path, err)
	}
	rs.Source = path
	return rs, nil
}

// ParseRuleSet decodes and validates a YAML rule set.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("parse rule set: %w", err)
	}
	rs.TiedHouse.Phrases = normalizePhrases(rs.TiedHouse.Phrases)
	rs.BannedPromotions.Phrases = normalizePhrases(rs.BannedPromotions.Phrases)
	rs.Sponsorship.ActivationType = strings.TrimSpace(rs.Sponsorship.ActivationType)
	if rs.Sponsorship.ActivationType == "" {
		rs.Sponsorship.ActivationType = SponsoredEventType
	}
	if strings.TrimSpace(rs.DefaultLocation) == "" {
		rs.DefaultLocation = rs.Name
	}
	if err := rs.validate(); err != nil {
		return nil, err
	}
	return &rs, nil
}

func (rs *RuleSet) validate() error {
	var errs []error
	if strings.TrimSpace(rs.Jurisdiction) == "" {
		errs = append(errs, errors.New("jurisdiction is required"))
	}
	if strings.TrimSpace(rs.Reference) == "" {
		errs = append(errs, errors.New("reference is required"))
	}
	if rs.TiedHouse.Finding == "" || len(rs.TiedHouse.Phrases) == 0 {
		errs = append(errs, errors.New("tied_house needs a finding and phrases"))
	}
	if rs.BannedPromotions.Finding == "" || len(rs.BannedPromotions.Phrases) == 0 {
		errs = append(errs, errors.New("banned_promotions needs a finding and phrases"))
	}
	if rs.Sponsorship.Finding == "" || rs.Sponsorship.Form.Name == "" || rs.Sponsorship.ChecklistItem == "" {
		errs = append(errs, errors.New("sponsorship needs a finding, form and checklist_item"))
	}
	if strings.TrimSpace(rs.PassedFinding) == "" {
		errs = append(errs, errors.New("passed_finding is required"))
	}
	if len(rs.RequiredPermits) == 0 {
		errs = append(errs, errors.New("required_permits must not be empty"))
	}
	if len(rs.Checklist) == 0 {
		errs = append(errs, errors.New("checklist must not be empty"))
	}
	if len(rs.LegalAlternatives) == 0 {
		errs = append(errs, errors.New("legal_alternatives must not be empty"))
	}
	return errors.Join(errs...)
}

func normalizePhrases(phrases []string) []string {
	out := make([]string, 0, len(phrases))
	seen := make(map[string]struct{}, len(phrases))
	for _, phrase := range phrases {
		phrase = match.NormalizeText(phrase)
		if phrase == "" {
			continue
		}
		if _, ok := seen[phrase]; ok {
			continue
		}
		seen[phrase] = struct{}{}
		out = append(out, phrase)
	}
	return out
}
