package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	APIPort  string
	LogLevel string

	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIGenModel   string
	OpenAIEmbedModel string

	SupabaseURL        string
	SupabaseServiceKey string

	PostgresDSN string

	NATSURL     string
	NATSSubject string

	TokenizerEncoding string

	MatchThreshold     float64
	MatchCount         int
	MinContentLength   int
	ContextTokenBudget int
	MaxReferences      int

	CallTimeoutSeconds int

	APIRateLimitRPS   int
	APIRateLimitBurst int

	AuditExportLimit int

	WorkerMetricsPort string
}

// Load builds the configuration from the environment, then overlays the
// optional YAML file named by ASKEMA_CONFIG_FILE. File values win over env.
func Load() (Config, error) {
	cfg := Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		OpenAIAPIKey:     mustEnv("OPENAI_KEY", ""),
		OpenAIBaseURL:    mustEnv("OPENAI_BASE_URL", ""),
		OpenAIGenModel:   mustEnv("OPENAI_GEN_MODEL", "gpt-3.5-turbo"),
		OpenAIEmbedModel: mustEnv("OPENAI_EMBED_MODEL", "text-embedding-ada-002"),

		SupabaseURL:        mustEnv("SUPABASE_URL", ""),
		SupabaseServiceKey: mustEnv("SUPABASE_SERVICE_ROLE_KEY", ""),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:     mustEnv("NATS_URL", ""),
		NATSSubject: mustEnv("NATS_SUBJECT", "audit.queries"),

		TokenizerEncoding: mustEnv("TOKENIZER_ENCODING", "cl100k_base"),

		MatchThreshold:     mustEnvFloat("MATCH_THRESHOLD", 0.78),
		MatchCount:         mustEnvInt("MATCH_COUNT", 10),
		MinContentLength:   mustEnvInt("MIN_CONTENT_LENGTH", 50),
		ContextTokenBudget: mustEnvInt("CONTEXT_TOKEN_BUDGET", 1500),
		MaxReferences:      mustEnvInt("MAX_REFERENCES", 3),

		CallTimeoutSeconds: mustEnvInt("CALL_TIMEOUT_SECONDS", 8),

		APIRateLimitRPS:   mustEnvInt("API_RATE_LIMIT_RPS", 10),
		APIRateLimitBurst: mustEnvInt("API_RATE_LIMIT_BURST", 20),

		AuditExportLimit: mustEnvInt("AUDIT_EXPORT_LIMIT", 1000),

		WorkerMetricsPort: mustEnv("WORKER_METRICS_PORT", "9090"),
	}

	if path := os.Getenv("ASKEMA_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	return cfg, nil
}

// fileOverlay mirrors Config with pointer fields so only keys present in the
// file override the environment.
type fileOverlay struct {
	APIPort            *string  `yaml:"api_port"`
	LogLevel           *string  `yaml:"log_level"`
	OpenAIAPIKey       *string  `yaml:"openai_key"`
	OpenAIBaseURL      *string  `yaml:"openai_base_url"`
	OpenAIGenModel     *string  `yaml:"openai_gen_model"`
	OpenAIEmbedModel   *string  `yaml:"openai_embed_model"`
	SupabaseURL        *string  `yaml:"supabase_url"`
	SupabaseServiceKey *string  `yaml:"supabase_service_role_key"`
	PostgresDSN        *string  `yaml:"postgres_dsn"`
	NATSURL            *string  `yaml:"nats_url"`
	NATSSubject        *string  `yaml:"nats_subject"`
	TokenizerEncoding  *string  `yaml:"tokenizer_encoding"`
	MatchThreshold     *float64 `yaml:"match_threshold"`
	MatchCount         *int     `yaml:"match_count"`
	MinContentLength   *int     `yaml:"min_content_length"`
	ContextTokenBudget *int     `yaml:"context_token_budget"`
	MaxReferences      *int     `yaml:"max_references"`
	CallTimeoutSeconds *int     `yaml:"call_timeout_seconds"`
	APIRateLimitRPS    *int     `yaml:"api_rate_limit_rps"`
	APIRateLimitBurst  *int     `yaml:"api_rate_limit_burst"`
	AuditExportLimit   *int     `yaml:"audit_export_limit"`
	WorkerMetricsPort  *string  `yaml:"worker_metrics_port"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var overlay fileOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}

	applyString(&c.APIPort, overlay.APIPort)
	applyString(&c.LogLevel, overlay.LogLevel)
	applyString(&c.OpenAIAPIKey, overlay.OpenAIAPIKey)
	applyString(&c.OpenAIBaseURL, overlay.OpenAIBaseURL)
	applyString(&c.OpenAIGenModel, overlay.OpenAIGenModel)
	applyString(&c.OpenAIEmbedModel, overlay.OpenAIEmbedModel)
	applyString(&c.SupabaseURL, overlay.SupabaseURL)
	applyString(&c.SupabaseServiceKey, overlay.SupabaseServiceKey)
	applyString(&c.PostgresDSN, overlay.PostgresDSN)
	applyString(&c.NATSURL, overlay.NATSURL)
	applyString(&c.NATSSubject, overlay.NATSSubject)
	applyString(&c.TokenizerEncoding, overlay.TokenizerEncoding)
	applyFloat(&c.MatchThreshold, overlay.MatchThreshold)
	applyInt(&c.MatchCount, overlay.MatchCount)
	applyInt(&c.MinContentLength, overlay.MinContentLength)
	applyInt(&c.ContextTokenBudget, overlay.ContextTokenBudget)
	applyInt(&c.MaxReferences, overlay.MaxReferences)
	applyInt(&c.CallTimeoutSeconds, overlay.CallTimeoutSeconds)
	applyInt(&c.APIRateLimitRPS, overlay.APIRateLimitRPS)
	applyInt(&c.APIRateLimitBurst, overlay.APIRateLimitBurst)
	applyInt(&c.AuditExportLimit, overlay.AuditExportLimit)
	applyString(&c.WorkerMetricsPort, overlay.WorkerMetricsPort)
	return nil
}

// ValidateAPI reports the credentials the API process cannot start without.
func (c Config) ValidateAPI() error {
	var missing []string
	if c.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_KEY")
	}
	if c.SupabaseURL == "" {
		missing = append(missing, "SUPABASE_URL")
	}
	if c.SupabaseServiceKey == "" {
		missing = append(missing, "SUPABASE_SERVICE_ROLE_KEY")
	}
	if c.PostgresDSN == "" {
		missing = append(missing, "POSTGRES_DSN")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}

// ValidateWorker reports what the audit worker cannot start without.
func (c Config) ValidateWorker() error {
	var missing []string
	if c.PostgresDSN == "" {
		missing = append(missing, "POSTGRES_DSN")
	}
	if c.NATSURL == "" {
		missing = append(missing, "NATS_URL")
	}
	if len(missing) > 0 {
		return errors.New("missing required configuration: " + strings.Join(missing, ", "))
	}
	return nil
}

func applyString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func applyInt(dst *int, src *int) {
	if src != nil {
		*dst = *src
	}
}

func applyFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}
