package store

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = gorm.ErrRecordNotFound

// Database wraps the GORM DB handle and exposes repository helpers.
type Database struct {
	gorm    *gorm.DB
	dialect string
	mu      sync.Mutex
}

// Open connects to Postgres when dsn is a postgres URL and otherwise treats
// dsn as a SQLite file path.
func Open(dsn string, silent bool) (*Database, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("database dsn required")
	}
	cfg := &gorm.Config{}
	if silent {
		cfg.Logger = logger.Default.LogMode(logger.Silent)
	}

	dialect := "sqlite"
	var dialector gorm.Dialector
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialect = "postgres"
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", dialect, err)
	}
	if err := db.AutoMigrate(&Campaign{}, &ComplianceCheck{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	if dialect == "sqlite" {
		if err := db.Exec("PRAGMA journal_mode=WAL").Error; err != nil {
			logrus.WithError(err).Warn("enable WAL mode")
		}
		if err := db.Exec("PRAGMA synchronous=NORMAL").Error; err != nil {
			logrus.WithError(err).Warn("set synchronous pragma")
		}
	}
	if err := applyIndexes(db); err != nil {
		return nil, fmt.Errorf("apply indexes: %w", err)
	}
	return &Database{gorm: db, dialect: dialect}, nil
}

// Dialect reports "sqlite" or "postgres".
func (d *Database) Dialect() string {
	return d.dialect
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	if d == nil {
		return nil
	}
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateCampaign inserts a new campaign.
func (d *Database) CreateCampaign(c *Campaign) error {
	if c == nil {
		return errors.New("campaign is nil")
	}
	c.Title = strings.TrimSpace(c.Title)
	c.ActivationType = strings.TrimSpace(c.ActivationType)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Create(c).Error
}

// GetCampaign retrieves a campaign by ID.
func (d *Database) GetCampaign(id uint) (*Campaign, error) {
	var campaign Campaign
	if err := d.gorm.First(&campaign, id).Error; err != nil {
		return nil, err
	}
	return &campaign, nil
}

// CampaignQuery encapsulates filters and pagination for listing campaigns.
type CampaignQuery struct {
	Status    string
	Unchecked bool
	Offset    int
	Limit     int
}

// ListCampaigns returns campaigns newest first, applying optional filters.
func (d *Database) ListCampaigns(opts CampaignQuery) ([]Campaign, int64, error) {
	base := d.gorm.Model(&Campaign{})
	if status := strings.ToLower(strings.TrimSpace(opts.Status)); status != "" {
		base = base.Where("compliance_status = ?", status)
	}
	if opts.Unchecked {
		base = base.Where("checked_at IS NULL")
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query := base.Order("created_at DESC, id DESC").Offset(opts.Offset)
	if opts.Limit > 0 {
		query = query.Limit(opts.Limit)
	}
	var rows []Campaign
	if err := query.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// RecordCheck stores the verdict on the campaign and appends the history row
// in one transaction.
func (d *Database) RecordCheck(campaign *Campaign, check *ComplianceCheck) error {
	if campaign == nil || check == nil {
		return errors.New("campaign and check are required")
	}
	if campaign.ID == 0 {
		return errors.New("campaign must be persisted before recording checks")
	}
	check.CampaignID = campaign.ID
	if check.CreatedAt.IsZero() {
		check.CreatedAt = time.Now().UTC()
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gorm.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(check).Error; err != nil {
			return fmt.Errorf("insert check: %w", err)
		}
		checkedAt := check.CreatedAt
		campaign.ComplianceStatus = check.ComplianceStatus
		campaign.AIPowered = check.AIPowered
		campaign.Verdict = check.Verdict
		campaign.CheckedAt = &checkedAt
		return tx.Model(&Campaign{}).Where("id = ?", campaign.ID).Updates(map[string]any{
			"compliance_status": campaign.ComplianceStatus,
			"ai_powered":        campaign.AIPowered,
			"verdict":           campaign.Verdict,
			"checked_at":        campaign.CheckedAt,
		}).Error
	})
}

// ListChecks returns a campaign's check history, newest first.
func (d *Database) ListChecks(campaignID uint, limit int) ([]ComplianceCheck, error) {
	query := d.gorm.Model(&ComplianceCheck{}).
		Where("campaign_id = ?", campaignID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []ComplianceCheck
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// PruneChecks deletes history rows created before cutoff and returns how many
// were removed.
func (d *Database) PruneChecks(cutoff time.Time) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	res := d.gorm.Where("created_at < ?", cutoff).Delete(&ComplianceCheck{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// CountCampaigns returns the number of stored campaigns.
func (d *Database) CountCampaigns() (int64, error) {
	var count int64
	if err := d.gorm.Model(&Campaign{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func applyIndexes(db *gorm.DB) error {
	stmts := []string{
		"CREATE INDEX IF NOT EXISTS idx_campaigns_status_created ON campaigns(compliance_status, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_compliance_checks_campaign_created ON compliance_checks(campaign_id, created_at)",
	}
	for _, stmt := range stmts {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	return nil
}
