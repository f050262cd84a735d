package checker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"dealos-proof/backend/internal/compliance"
	"dealos-proof/backend/internal/store"
)

// PlanFromCampaign rebuilds the activation plan stored on a campaign.
func PlanFromCampaign(c *store.Campaign) compliance.ActivationPlanRequest {
	return compliance.ActivationPlanRequest{
		Title:          c.Title,
		ActivationType: c.ActivationType,
		VenueName:      c.VenueName,
		City:           c.City,
		ProposedDate:   c.ProposedDate,
		Description:    c.Description,
	}
}

// NewCheckRecord turns a result into a history row for campaign.
func NewCheckRecord(campaign *store.Campaign, req compliance.ActivationPlanRequest, result Result) (*store.ComplianceCheck, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	verdictJSON, err := json.Marshal(result.Verdict)
	if err != nil {
		return nil, fmt.Errorf("encode verdict: %w", err)
	}
	return &store.ComplianceCheck{
		ID:               uuid.NewString(),
		CampaignID:       campaign.ID,
		Jurisdiction:     result.Jurisdiction,
		ComplianceStatus: string(result.Verdict.ComplianceStatus),
		AIPowered:        result.Verdict.AIPowered,
		Classifier:       result.Classifier,
		FallbackReason:   result.FallbackReason,
		Request:          datatypes.JSON(reqJSON),
		Verdict:          datatypes.JSON(verdictJSON),
		ProcessingTimeMs: result.ProcessingTimeMs,
	}, nil
}

// CheckCampaign runs a compliance check on the campaign's stored plan and
// records the outcome. With persist false the check row is built but not
// written.
func (s *Service) CheckCampaign(ctx context.Context, db *store.Database, campaign *store.Campaign, persist bool) (*store.ComplianceCheck, Result, error) {
	req := PlanFromCampaign(campaign)
	result := s.Check(ctx, req)
	check, err := NewCheckRecord(campaign, req, result)
	if err != nil {
		return nil, result, err
	}
	if !persist {
		return check, result, nil
	}
	if err := db.RecordCheck(campaign, check); err != nil {
		return nil, result, fmt.Errorf("record check for campaign %d: %w", campaign.ID, err)
	}
	return check, result, nil
}
