package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"dealos-proof/backend/internal/ai"
	"dealos-proof/backend/internal/api"
	"dealos-proof/backend/internal/observability"
)

func main() {
	configureLogging()

	baseDir, err := os.Getwd()
	if err != nil {
		logrus.Fatalf("determine working directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aiCfg := ai.ConfigFromEnv()

	tracingCfg := observability.TracingConfig{
		Enabled:     envBool("OTEL_ENABLED"),
		ServiceName: "proof-backend",
		Environment: os.Getenv("APP_ENV"),
		Endpoint:    strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		Insecure:    envBool("OTEL_EXPORTER_OTLP_INSECURE"),
		SampleRatio: 1,
	}
	if ratio := os.Getenv("OTEL_SAMPLER_RATIO"); ratio != "" {
		if v, err := strconv.ParseFloat(ratio, 64); err == nil {
			tracingCfg.SampleRatio = v
		}
	}
	shutdownTracing := observability.InitTracing(ctx, tracingCfg)
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logrus.WithError(err).Warn("shutdown tracing")
		}
	}()

	cfg := api.Config{
		DatabaseURL: filepath.Join(baseDir, "data", "proof.db"),
		AllowedOrigins: []string{
			"http://localhost:3000",
			"http://127.0.0.1:3000",
			"http://localhost:5173",
		},
		AIConfig:    aiCfg,
		DisableAI:   envBool("DISABLE_AI"),
		RuleSetPath: strings.TrimSpace(os.Getenv("RULESET_PATH")),
		ServiceName: tracingCfg.ServiceName,
	}
	if override := strings.TrimSpace(os.Getenv("DATABASE_URL")); override != "" {
		cfg.DatabaseURL = override
	}
	if !strings.HasPrefix(cfg.DatabaseURL, "postgres") {
		if err := os.MkdirAll(filepath.Dir(cfg.DatabaseURL), 0o755); err != nil {
			logrus.Fatalf("create data directory: %v", err)
		}
	}
	if origins := strings.TrimSpace(os.Getenv("ALLOWED_ORIGINS")); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	if retention := os.Getenv("CHECK_RETENTION"); retention != "" {
		if d, err := time.ParseDuration(retention); err == nil {
			cfg.CheckRetention = d
		}
	}

	server, err := api.NewServer(cfg)
	if err != nil {
		logrus.Fatalf("create server: %v", err)
	}
	defer func() {
		if err := server.Close(); err != nil {
			logrus.WithError(err).Warn("close database")
		}
	}()

	if err := server.WatchRules(ctx); err != nil {
		logrus.WithError(err).Warn("rule set hot reload unavailable")
	}

	router, err := server.Router()
	if err != nil {
		logrus.Fatalf("configure router: %v", err)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "2000"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("graceful shutdown")
		}
	}()

	logrus.Infof("starting proof compliance backend on :%s", port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logrus.Fatalf("server exited: %v", err)
	}
	logrus.Info("server stopped")
}

func configureLogging() {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("LOG_FORMAT")), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if raw := strings.TrimSpace(os.Getenv("LOG_LEVEL")); raw != "" {
		level, err := logrus.ParseLevel(raw)
		if err != nil {
			logrus.WithError(err).Warn("invalid LOG_LEVEL; keeping info")
			return
		}
		logrus.SetLevel(level)
	}
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
