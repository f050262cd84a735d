package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dealos-proof/backend/internal/compliance"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	defaultBaseURL   = "https://api.anthropic.com"
	defaultMaxTokens = 2000
	defaultTimeout   = 60 * time.Second
	apiVersion       = "2023-06-01"
	maxBodyBytes     = 1 << 20
	maxLoggedBody    = 2048
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = compliance.ErrNotConfigured

// Config holds Anthropic messages API configuration.
type Config struct {
	APIKey    string
	Model     string
	BaseURL   string
	MaxTokens int
	Timeout   time.Duration

	// ObserveLatency, when set, receives the duration of every upstream call.
	ObserveLatency func(time.Duration)
}

// Client classifies activation plans by delegating to the messages API.
type Client struct {
	httpClient      *http.Client
	apiKey          string
	model           string
	baseURL         string
	maxTokens       int
	reference       string
	defaultLocation string
	observeLatency  func(time.Duration)
}

// NewClient constructs a Client. It returns ErrDisabled when no key is set.
// The client starts with the embedded default rule set's reference text.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	rs := compliance.DefaultRuleSet()
	return &Client{
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		apiKey:          strings.TrimSpace(cfg.APIKey),
		model:           cfg.Model,
		baseURL:         cfg.BaseURL,
		maxTokens:       cfg.MaxTokens,
		reference:       rs.Reference,
		defaultLocation: rs.DefaultLocation,
		observeLatency:  cfg.ObserveLatency,
	}, nil
}

// WithRuleSet returns a copy of c primed with rs's reference text.
func (c *Client) WithRuleSet(rs *compliance.RuleSet) *Client {
	if c == nil || rs == nil {
		return c
	}
	clone := *c
	clone.reference = rs.Reference
	clone.defaultLocation = rs.DefaultLocation
	return &clone
}

// Enabled reports whether the client can make outbound calls.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Model returns the configured model id.
func (c *Client) Model() string {
	if c == nil {
		return ""
	}
	return c.model
}

// Name implements compliance.Classifier.
func (c *Client) Name() string { return "anthropic" }

// Classify implements compliance.Classifier. It makes exactly one request.
func (c *Client) Classify(ctx context.Context, req compliance.ActivationPlanRequest) (compliance.Verdict, error) {
	if !c.Enabled() {
		return compliance.Verdict{}, ErrDisabled
	}

	ctx, span := otel.Tracer("dealos-proof/ai").Start(ctx, "anthropic.messages", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("ai.model", c.model),
		attribute.String("activation.type", req.ActivationType),
	)

	reply, err := c.complete(ctx, buildSystemPrompt(c.reference), buildUserPrompt(req, c.defaultLocation))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, compliance.FailureReason(err))
		return compliance.Verdict{}, err
	}

	verdict, err := DecodeVerdict(reply)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse")
		logrus.WithError(err).WithField("reply", truncate(reply, maxLoggedBody)).Warn("anthropic reply not usable")
		return compliance.Verdict{}, err
	}
	verdict.AIPowered = true
	span.SetAttributes(attribute.String("compliance.status", string(verdict.ComplianceStatus)))
	return verdict, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	payload := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: user}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if c.observeLatency != nil {
		c.observeLatency(time.Since(start))
	}
	if err != nil {
		logrus.WithError(err).Warn("anthropic request failed")
		return "", &compliance.UpstreamError{Kind: compliance.FailureTransport, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", &compliance.UpstreamError{Kind: compliance.FailureTransport, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logrus.WithFields(logrus.Fields{
			"status": resp.StatusCode,
			"body":   truncate(string(raw), maxLoggedBody),
		}).Warn("anthropic returned non-success status")
		return "", &compliance.UpstreamError{Kind: compliance.FailureStatus, StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var decoded messagesResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &compliance.UpstreamError{Kind: compliance.FailureParse, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if len(decoded.Content) == 0 || strings.TrimSpace(decoded.Content[0].Text) == "" {
		return "", &compliance.UpstreamError{Kind: compliance.FailureParse, StatusCode: resp.StatusCode, Err: errors.New("empty content")}
	}
	return decoded.Content[0].Text, nil
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}
