package store

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// Campaign is an activation plan owned by a brand or agency, with its most
// recent compliance verdict.
type Campaign struct {
	ID               uint   `gorm:"primaryKey"`
	BrandName        string `gorm:"size:128;index"`
	Title            string `gorm:"size:256;not null"`
	ActivationType   string `gorm:"size:64;index"`
	VenueName        string `gorm:"size:256"`
	City             string `gorm:"size:128"`
	ProposedDate     string `gorm:"size:32"`
	Description      string `gorm:"type:text"`
	ComplianceStatus string `gorm:"size:32;index"`
	Verdict          datatypes.JSON
	AIPowered        bool
	CheckedAt        *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ComplianceCheck is one entry of a campaign's check history. Rows are kept
// for the record-retention window and then pruned.
type ComplianceCheck struct {
	ID               string `gorm:"primaryKey;size:36"`
	CampaignID       uint   `gorm:"index"`
	Jurisdiction     string `gorm:"size:16"`
	ComplianceStatus string `gorm:"size:32;index"`
	AIPowered        bool
	Classifier       string `gorm:"size:64"`
	FallbackReason   string `gorm:"size:32"`
	Request          datatypes.JSON
	Verdict          datatypes.JSON
	ProcessingTimeMs int64
	CreatedAt        time.Time `gorm:"index"`
}

// SetVerdict stores v as JSON.
func (c *Campaign) SetVerdict(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.Verdict = datatypes.JSON(payload)
	return nil
}

// DecodeVerdict unmarshals the stored verdict into out. It reports false when
// the campaign has never been checked.
func (c *Campaign) DecodeVerdict(out any) (bool, error) {
	if len(c.Verdict) == 0 {
		return false, nil
	}
	if err := json.Unmarshal(c.Verdict, out); err != nil {
		return false, err
	}
	return true, nil
}
