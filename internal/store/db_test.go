package store

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "proof.db"), true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestOpenRequiresDSN(t *testing.T) {
	_, err := Open("  ", true)
	assert.Error(t, err)
}

func TestCampaignLifecycle(t *testing.T) {
	db := openTestDB(t)
	assert.Equal(t, "sqlite", db.Dialect())

	first := &Campaign{Title: " Friday Tasting ", Description: "pay the venue"}
	second := &Campaign{Title: "Routine Tasting", Description: "staff pours"}
	require.NoError(t, db.CreateCampaign(first))
	require.NoError(t, db.CreateCampaign(second))
	assert.Equal(t, "Friday Tasting", first.Title)

	got, err := db.GetCampaign(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "pay the venue", got.Description)

	_, err = db.GetCampaign(9999)
	assert.True(t, errors.Is(err, ErrNotFound))

	rows, total, err := db.ListCampaigns(CampaignQuery{Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, rows, 1)
	assert.Equal(t, second.ID, rows[0].ID, "newest first")

	count, err := db.CountCampaigns()
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRecordCheck(t *testing.T) {
	db := openTestDB(t)
	campaign := &Campaign{Title: "Friday Tasting", Description: "pay the venue"}
	require.NoError(t, db.CreateCampaign(campaign))

	older := &ComplianceCheck{
		ID:               "00000000-0000-0000-0000-000000000001",
		ComplianceStatus: "compliant",
		Verdict:          datatypes.JSON(`{"compliance_status":"compliant"}`),
		CreatedAt:        time.Now().UTC().Add(-time.Hour),
	}
	newer := &ComplianceCheck{
		ID:               "00000000-0000-0000-0000-000000000002",
		ComplianceStatus: "blocked",
		Classifier:       "rules",
		FallbackReason:   "not_configured",
		Verdict:          datatypes.JSON(`{"compliance_status":"blocked"}`),
	}
	require.NoError(t, db.RecordCheck(campaign, older))
	require.NoError(t, db.RecordCheck(campaign, newer))
	assert.Equal(t, campaign.ID, newer.CampaignID)
	assert.False(t, newer.CreatedAt.IsZero())

	stored, err := db.GetCampaign(campaign.ID)
	require.NoError(t, err)
	assert.Equal(t, "blocked", stored.ComplianceStatus)
	require.NotNil(t, stored.CheckedAt)

	var verdict map[string]any
	ok, err := stored.DecodeVerdict(&verdict)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "blocked", verdict["compliance_status"])

	checks, err := db.ListChecks(campaign.ID, 10)
	require.NoError(t, err)
	require.Len(t, checks, 2)
	assert.Equal(t, newer.ID, checks[0].ID)

	blocked, total, err := db.ListCampaigns(CampaignQuery{Status: "BLOCKED"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, blocked, 1)

	unchecked, total, err := db.ListCampaigns(CampaignQuery{Unchecked: true})
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
	assert.Empty(t, unchecked)
}

func TestRecordCheckRequiresPersistedCampaign(t *testing.T) {
	db := openTestDB(t)
	assert.Error(t, db.RecordCheck(&Campaign{}, &ComplianceCheck{ID: "x"}))
	assert.Error(t, db.RecordCheck(nil, nil))
}

func TestPruneChecks(t *testing.T) {
	db := openTestDB(t)
	campaign := &Campaign{Title: "t", Description: "d"}
	require.NoError(t, db.CreateCampaign(campaign))

	now := time.Now().UTC()
	for i, age := range []time.Duration{3 * 365 * 24 * time.Hour, 400 * 24 * time.Hour, time.Hour} {
		check := &ComplianceCheck{
			ID:               "check-" + string(rune('a'+i)),
			ComplianceStatus: "compliant",
			CreatedAt:        now.Add(-age),
		}
		require.NoError(t, db.RecordCheck(campaign, check))
	}

	removed, err := db.PruneChecks(now.Add(-2 * 365 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	remaining, err := db.ListChecks(campaign.ID, 0)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestCampaignDecodeVerdictUnchecked(t *testing.T) {
	var c Campaign
	var out map[string]any
	ok, err := c.DecodeVerdict(&out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.SetVerdict(map[string]string{"compliance_status": "compliant"}))
	ok, err = c.DecodeVerdict(&out)
	require.NoError(t, err)
	assert.True(t, ok)
}
