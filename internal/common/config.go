package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPPort              int
	MetricsPort           int
	DatabaseURL           string
	KafkaBrokers          []string
	SubmissionEventsTopic string
	OTLPEndpoint          string
	TraceSampleRatio      float64
	ServiceName           string

	RateLimitMax    int
	RateLimitWindow time.Duration
	DispatchTimeout time.Duration

	SendGridEndpoint string
	SendGridAPIKey   string
	SheetsEndpoint   string
	SheetsToken      string
	ChatWebhookHost  string
}

func LoadConfig(service string) (*Config, error) {
	cfg := &Config{ServiceName: service}

	httpPort, err := getEnvInt("HTTP_PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.HTTPPort = httpPort

	metricsPort, err := getEnvInt("METRICS_PORT", httpPort+1000)
	if err != nil {
		return nil, err
	}
	cfg.MetricsPort = metricsPort

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	cfg.OTLPEndpoint = os.Getenv("OTLP_ENDPOINT")

	sampleRatio, err := getEnvFloat("TRACE_SAMPLE_RATIO", 1.0)
	if err != nil {
		return nil, err
	}
	if sampleRatio < 0 || sampleRatio > 1 {
		return nil, fmt.Errorf("invalid value for TRACE_SAMPLE_RATIO: %v not in [0, 1]", sampleRatio)
	}
	cfg.TraceSampleRatio = sampleRatio

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	cfg.SubmissionEventsTopic = getEnv("SUBMISSION_EVENTS_TOPIC", "submission.events")

	rateMax, err := getEnvInt("RATE_LIMIT_MAX", 60)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitMax = rateMax

	window, err := getEnvDuration("RATE_LIMIT_WINDOW", time.Minute)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitWindow = window

	dispatchTimeout, err := getEnvDuration("DISPATCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.DispatchTimeout = dispatchTimeout

	cfg.SendGridEndpoint = getEnv("SENDGRID_ENDPOINT", "https://api.sendgrid.com/v3")
	cfg.SendGridAPIKey = os.Getenv("SENDGRID_API_KEY")
	cfg.SheetsEndpoint = getEnv("SHEETS_ENDPOINT", "https://sheets.googleapis.com/v4")
	cfg.SheetsToken = os.Getenv("SHEETS_TOKEN")
	cfg.ChatWebhookHost = getEnv("CHAT_WEBHOOK_HOST", "hooks.slack.com")

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return parsed, nil
	}
	return fallback, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	if v := os.Getenv(key); v != "" {
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return parsed, nil
	}
	return fallback, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	if v := os.Getenv(key); v != "" {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("invalid value for %s: %w", key, err)
		}
		return parsed, nil
	}
	return fallback, nil
}
