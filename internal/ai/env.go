package ai

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigFromEnv reads the ANTHROPIC_* variables shared by the server and the
// batch re-check command. Unparseable limits are ignored so the defaults apply.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		Model:   os.Getenv("ANTHROPIC_MODEL"),
		BaseURL: os.Getenv("ANTHROPIC_BASE_URL"),
	}
	if raw := strings.TrimSpace(os.Getenv("ANTHROPIC_MAX_TOKENS")); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			cfg.MaxTokens = v
		}
	}
	if raw := strings.TrimSpace(os.Getenv("ANTHROPIC_TIMEOUT")); raw != "" {
		if d, err := time.ParseDuration(raw); err == nil {
			cfg.Timeout = d
		}
	}
	return cfg
}
