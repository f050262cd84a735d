package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"dealos-proof/backend/internal/ai"
	"dealos-proof/backend/internal/checker"
	"dealos-proof/backend/internal/compliance"
	"dealos-proof/backend/internal/observability"
	"dealos-proof/backend/internal/store"
)

const defaultCheckRetention = 2 * 365 * 24 * time.Hour

// Config defines server dependencies.
type Config struct {
	DatabaseURL    string
	SilentDB       bool
	AllowedOrigins []string
	AIConfig       ai.Config
	DisableAI      bool
	RuleSetPath    string
	CheckRetention time.Duration
	ServiceName    string
}

// Server wires HTTP handlers with persistence and the compliance checker.
type Server struct {
	db             *store.Database
	rules          *compliance.RuleBook
	checker        *checker.Service
	metrics        *observability.Metrics
	notifier       *CheckNotifier
	allowedOrigins []string
	serviceName    string
}

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("database url required")
	}
	db, err := store.Open(cfg.DatabaseURL, cfg.SilentDB)
	if err != nil {
		return nil, err
	}

	rules, err := compliance.NewRuleBook(cfg.RuleSetPath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("rule set: %w", err)
	}
	rs := rules.Current()
	logrus.WithFields(logrus.Fields{
		"jurisdiction": rs.Jurisdiction,
		"source":       rs.Source,
	}).Info("compliance rule set loaded")

	metrics := observability.NewMetrics()

	var client *ai.Client
	if cfg.DisableAI {
		logrus.Info("AI classifier disabled via configuration")
	} else {
		aiCfg := cfg.AIConfig
		aiCfg.ObserveLatency = metrics.ObserveUpstream
		client, err = ai.NewClient(aiCfg)
		switch {
		case errors.Is(err, ai.ErrDisabled):
			logrus.Info("AI classifier disabled - no API key configured; using rule-based checks")
			client = nil
		case err != nil:
			_ = db.Close()
			return nil, fmt.Errorf("ai client: %w", err)
		default:
			logrus.WithField("model", client.Model()).Info("AI classifier enabled")
		}
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "proof-backend"
	}

	server := &Server{
		db:             db,
		rules:          rules,
		checker:        checker.NewService(rules, client, metrics),
		metrics:        metrics,
		notifier:       NewCheckNotifier(),
		allowedOrigins: cfg.AllowedOrigins,
		serviceName:    serviceName,
	}

	retention := cfg.CheckRetention
	if retention <= 0 {
		retention = defaultCheckRetention
	}
	if removed, err := db.PruneChecks(time.Now().UTC().Add(-retention)); err != nil {
		logrus.WithError(err).Warn("prune compliance check history")
	} else if removed > 0 {
		logrus.WithField("removed", removed).Info("pruned expired compliance checks")
	}

	return server, nil
}

// WatchRules reloads the rule set file on change until ctx is done.
func (s *Server) WatchRules(ctx context.Context) error {
	return s.rules.Watch(ctx)
}

// Close releases the database handle.
func (s *Server) Close() error {
	return s.db.Close()
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestID())
	r.Use(otelgin.Middleware(s.serviceName))
	r.Use(requestLogger())
	r.Use(s.observeRequests())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept", requestIDHeader}
	corsCfg.ExposeHeaders = []string{requestIDHeader}
	corsCfg.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	api := r.Group("/api")
	{
		api.POST("/compliance-check", s.handleComplianceCheck)
		api.GET("/compliance/stream", s.handleComplianceStream)
		api.POST("/campaigns", s.handleCreateCampaign)
		api.GET("/campaigns", s.handleListCampaigns)
		api.GET("/campaigns/:id", s.handleGetCampaign)
		api.POST("/campaigns/:id/compliance-check", s.handleCheckCampaign)
		api.GET("/campaigns/:id/checks", s.handleListChecks)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	rs := s.checker.RuleSet()
	c.JSON(http.StatusOK, gin.H{
		"jurisdiction":   rs.Jurisdiction,
		"ai_enabled":     s.checker.AIEnabled(),
		"model":          s.checker.Model(),
		"ruleset_source": rs.Source,
	})
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseUintParam(value string) (uint, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, errors.New("identifier is required")
	}
	parsed, err := strconv.ParseUint(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier: %w", err)
	}
	if parsed == 0 {
		return 0, errors.New("identifier must be greater than zero")
	}
	return uint(parsed), nil
}

func parsePositiveInt(value string, fallback int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(value)); err == nil && v > 0 {
		return v
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
