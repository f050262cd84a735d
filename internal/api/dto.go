package api

import (
	"encoding/json"
	"strings"
	"time"

	"dealos-proof/backend/internal/compliance"
	"dealos-proof/backend/internal/store"
)

// CampaignRequest is the payload for creating a campaign.
type CampaignRequest struct {
	BrandName      string `json:"brand_name"`
	Title          string `json:"title" binding:"required"`
	ActivationType string `json:"activation_type"`
	VenueName      string `json:"venue_name"`
	City           string `json:"city"`
	ProposedDate   string `json:"proposed_date"`
	Description    string `json:"description" binding:"required"`
}

// Model converts the request into a store row.
func (r CampaignRequest) Model() *store.Campaign {
	return &store.Campaign{
		BrandName:      strings.TrimSpace(r.BrandName),
		Title:          strings.TrimSpace(r.Title),
		ActivationType: strings.TrimSpace(r.ActivationType),
		VenueName:      strings.TrimSpace(r.VenueName),
		City:           strings.TrimSpace(r.City),
		ProposedDate:   strings.TrimSpace(r.ProposedDate),
		Description:    strings.TrimSpace(r.Description),
	}
}

// CampaignDTO is the API representation of a campaign.
type CampaignDTO struct {
	ID               uint                `json:"id"`
	BrandName        string              `json:"brand_name"`
	Title            string              `json:"title"`
	ActivationType   string              `json:"activation_type"`
	VenueName        string              `json:"venue_name"`
	City             string              `json:"city"`
	ProposedDate     string              `json:"proposed_date"`
	Description      string              `json:"description"`
	ComplianceStatus string              `json:"compliance_status,omitempty"`
	AIPowered        bool                `json:"ai_powered"`
	Verdict          *compliance.Verdict `json:"verdict,omitempty"`
	CheckedAt        *time.Time          `json:"checked_at,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// CampaignsResponse holds a page of campaigns and the total count.
type CampaignsResponse struct {
	Items []CampaignDTO `json:"items"`
	Total int64         `json:"total"`
}

// CheckDTO is the API representation of a stored compliance check.
type CheckDTO struct {
	ID               string             `json:"id"`
	CampaignID       uint               `json:"campaign_id"`
	Jurisdiction     string             `json:"jurisdiction"`
	ComplianceStatus string             `json:"compliance_status"`
	AIPowered        bool               `json:"ai_powered"`
	Classifier       string             `json:"classifier"`
	FallbackReason   string             `json:"fallback_reason,omitempty"`
	ProcessingTimeMs int64              `json:"processing_time_ms"`
	Verdict          compliance.Verdict `json:"verdict"`
	CreatedAt        time.Time          `json:"created_at"`
}

// ChecksResponse lists a campaign's check history.
type ChecksResponse struct {
	Items []CheckDTO `json:"items"`
}

// CampaignFromModel converts a store row to its DTO.
func CampaignFromModel(c store.Campaign) CampaignDTO {
	dto := CampaignDTO{
		ID:               c.ID,
		BrandName:        c.BrandName,
		Title:            c.Title,
		ActivationType:   c.ActivationType,
		VenueName:        c.VenueName,
		City:             c.City,
		ProposedDate:     c.ProposedDate,
		Description:      c.Description,
		ComplianceStatus: c.ComplianceStatus,
		AIPowered:        c.AIPowered,
		CheckedAt:        c.CheckedAt,
		CreatedAt:        c.CreatedAt,
		UpdatedAt:        c.UpdatedAt,
	}
	var verdict compliance.Verdict
	if ok, err := c.DecodeVerdict(&verdict); err == nil && ok {
		dto.Verdict = &verdict
	}
	return dto
}

// CheckFromModel converts a history row to its DTO.
func CheckFromModel(c store.ComplianceCheck) CheckDTO {
	dto := CheckDTO{
		ID:               c.ID,
		CampaignID:       c.CampaignID,
		Jurisdiction:     c.Jurisdiction,
		ComplianceStatus: c.ComplianceStatus,
		AIPowered:        c.AIPowered,
		Classifier:       c.Classifier,
		FallbackReason:   c.FallbackReason,
		ProcessingTimeMs: c.ProcessingTimeMs,
		CreatedAt:        c.CreatedAt,
	}
	if len(c.Verdict) > 0 {
		_ = json.Unmarshal(c.Verdict, &dto.Verdict)
	}
	dto.Verdict.Normalize()
	return dto
}
