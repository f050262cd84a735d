package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"dealos-proof/backend/internal/ai"
	"dealos-proof/backend/internal/checker"
	"dealos-proof/backend/internal/compliance"
	"dealos-proof/backend/internal/store"
)

const pageSize = 500

type recheckRow struct {
	CampaignID       uint      `json:"campaign_id"`
	Title            string    `json:"title"`
	PreviousStatus   string    `json:"previous_status,omitempty"`
	ComplianceStatus string    `json:"compliance_status"`
	Classifier       string    `json:"classifier"`
	FallbackReason   string    `json:"fallback_reason,omitempty"`
	AIPowered        bool      `json:"ai_powered"`
	CheckID          string    `json:"check_id"`
	CheckedAt        time.Time `json:"checked_at"`
}

func main() {
	var (
		dbPath      = flag.String("db", filepath.FromSlash("data/proof.db"), "SQLite path or postgres:// URL")
		rulesetPath = flag.String("ruleset", "", "Path to a YAML jurisdiction rule set (defaults to the embedded Virginia set)")
		status      = flag.String("status", "", "Only re-check campaigns whose stored status matches")
		unchecked   = flag.Bool("unchecked", false, "Only check campaigns that have never been checked")
		concurrency = flag.Int("concurrency", 4, "Number of campaigns checked in parallel")
		useAI       = flag.Bool("ai", false, "Use the AI classifier when ANTHROPIC_API_KEY is set")
		dryRun      = flag.Bool("dry-run", false, "Classify without persisting results")
		outputPath  = flag.String("output", "", "Optional path to write a JSON array of results")
		prune       = flag.Duration("prune", 0, "Delete check history older than this duration before re-checking")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := store.Open(*dbPath, true)
	if err != nil {
		logrus.Fatalf("open database: %v", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logrus.WithError(cerr).Warn("close database")
		}
	}()

	if *prune > 0 {
		removed, err := db.PruneChecks(time.Now().UTC().Add(-*prune))
		if err != nil {
			logrus.Fatalf("prune check history: %v", err)
		}
		logrus.WithField("removed", removed).Info("pruned compliance check history")
	}

	rules, err := compliance.NewRuleBook(*rulesetPath)
	if err != nil {
		logrus.Fatalf("load rule set: %v", err)
	}

	var client *ai.Client
	if *useAI {
		client, err = ai.NewClient(ai.ConfigFromEnv())
		if errors.Is(err, ai.ErrDisabled) {
			logrus.Warn("-ai requested but ANTHROPIC_API_KEY is not set; using rule-based checks")
			client = nil
		} else if err != nil {
			logrus.Fatalf("ai client: %v", err)
		}
	}
	service := checker.NewService(rules, client, nil)

	campaigns, err := loadCampaigns(db, store.CampaignQuery{Status: *status, Unchecked: *unchecked})
	if err != nil {
		logrus.Fatalf("list campaigns: %v", err)
	}
	logrus.WithFields(logrus.Fields{
		"campaigns":    len(campaigns),
		"status":       *status,
		"jurisdiction": rules.Current().Jurisdiction,
		"ai":           service.AIEnabled(),
		"dry_run":      *dryRun,
	}).Info("re-checking campaigns")

	limit := *concurrency
	if limit <= 0 {
		limit = 1
	}

	var (
		mu      sync.Mutex
		results = make([]recheckRow, 0, len(campaigns))
		changed int
	)
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(limit)
	for i := range campaigns {
		campaign := &campaigns[i]
		previous := campaign.ComplianceStatus
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			check, _, err := service.CheckCampaign(gctx, db, campaign, !*dryRun)
			if err != nil {
				return err
			}
			row := recheckRow{
				CampaignID:       campaign.ID,
				Title:            campaign.Title,
				PreviousStatus:   previous,
				ComplianceStatus: check.ComplianceStatus,
				Classifier:       check.Classifier,
				FallbackReason:   check.FallbackReason,
				AIPowered:        check.AIPowered,
				CheckID:          check.ID,
				CheckedAt:        time.Now().UTC(),
			}
			mu.Lock()
			results = append(results, row)
			if previous != row.ComplianceStatus {
				changed++
			}
			mu.Unlock()
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		logrus.Fatalf("re-check campaigns: %v", err)
	}

	logrus.WithFields(logrus.Fields{
		"checked": len(results),
		"changed": changed,
	}).Info("re-check complete")

	if *outputPath != "" {
		if err := writeResults(*outputPath, results); err != nil {
			logrus.Fatalf("write results: %v", err)
		}
		logrus.WithField("path", *outputPath).Info("re-check results written to file")
	}
}

func loadCampaigns(db *store.Database, query store.CampaignQuery) ([]store.Campaign, error) {
	var out []store.Campaign
	query.Limit = pageSize
	for offset := 0; ; offset += pageSize {
		query.Offset = offset
		rows, total, err := db.ListCampaigns(query)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
		if len(rows) < pageSize || int64(len(out)) >= total {
			return out, nil
		}
	}
}

func writeResults(path string, rows []recheckRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		if !os.IsExist(err) {
			return err
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rows)
}
