// Package config loads the daemon configuration from a YAML file with
// environment variable overrides for deployment secrets.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage backend selection.
const (
	BackendMemory = "memory"
	BackendDB     = "db"
)

// Scoring strategy selection.
const (
	StrategyRules = "rules"
	StrategyModel = "model"
)

// Config is the full daemon configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Log       LogConfig       `yaml:"log"`
	Storage   StorageConfig   `yaml:"storage"`
	LND       LNDConfig       `yaml:"lnd"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	Graph     GraphConfig     `yaml:"graph"`
	AI        AIConfig        `yaml:"ai"`
	Collector CollectorConfig `yaml:"collector"`
	Scoring   ScoringConfig   `yaml:"scoring"`
	Ledger    LedgerConfig    `yaml:"ledger"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

type LogConfig struct {
	Level    string `yaml:"level" validate:"oneof=debug info warn error"`
	Encoding string `yaml:"encoding" validate:"oneof=json console"`
}

type StorageConfig struct {
	// Backend selects memory for development or db for Postgres plus
	// ClickHouse persistence.
	Backend       string `yaml:"backend" validate:"oneof=memory db"`
	PostgresDSN   string `yaml:"postgres_dsn" validate:"required_if=Backend db"`
	ClickhouseDSN string `yaml:"clickhouse_dsn" validate:"required_if=Backend db"`
}

type LNDConfig struct {
	RESTURL  string `yaml:"rest_url" validate:"required,url"`
	Macaroon string `yaml:"macaroon"`
	// EventsWSURL is the optional channel-event feed; empty disables the
	// event-driven refresh.
	EventsWSURL string `yaml:"events_ws_url" validate:"omitempty,url"`
}

type AnalyticsConfig struct {
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
	APIKey  string `yaml:"api_key"`
}

type GraphConfig struct {
	BaseURL string `yaml:"base_url" validate:"omitempty,url"`
}

type AIConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint" validate:"required_if=Enabled true,omitempty,url"`
	APIKey   string `yaml:"api_key" validate:"required_if=Enabled true"`
	Model    string `yaml:"model"`
}

type CollectorConfig struct {
	// CollectSpec and EvaluateSpec are cron expressions with a seconds
	// field.
	CollectSpec  string `yaml:"collect_spec" validate:"required"`
	EvaluateSpec string `yaml:"evaluate_spec" validate:"required"`
}

type ScoringConfig struct {
	Strategy         string  `yaml:"strategy" validate:"oneof=rules model"`
	FeeTrend         float64 `yaml:"fee_trend_threshold" validate:"gt=0"`
	BalanceSkew      float64 `yaml:"balance_skew_threshold" validate:"gt=0,lt=0.5"`
	FlexibilityFloor float64 `yaml:"flexibility_floor" validate:"gt=0"`
	// ModelParamsPath points to the trained model weights, required for
	// the model strategy.
	ModelParamsPath string `yaml:"model_params_path" validate:"required_if=Strategy model"`
}

type LedgerConfig struct {
	Cooldown time.Duration `yaml:"cooldown" validate:"gt=0"`
}

// Default returns the standard configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080"},
		Log:    LogConfig{Level: "info", Encoding: "json"},
		Storage: StorageConfig{
			Backend: BackendMemory,
		},
		LND: LNDConfig{
			RESTURL: "https://127.0.0.1:8080",
		},
		Collector: CollectorConfig{
			CollectSpec:  "0 0 * * * *",   // hourly
			EvaluateSpec: "0 */5 * * * *", // every 5 minutes
		},
		Scoring: ScoringConfig{
			Strategy:         StrategyRules,
			FeeTrend:         0.10,
			BalanceSkew:      0.20,
			FlexibilityFloor: 10.0,
		},
		Ledger: LedgerConfig{Cooldown: 24 * time.Hour},
	}
}

// Load builds the configuration from defaults, the optional YAML file at
// path, then environment overrides. A .env file in the working directory is
// loaded first when present.
func Load(path string) (*Config, error) {
	// Missing .env is the normal case outside development.
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration's struct tags.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// applyEnv overrides secrets and endpoints from the environment so they
// never need to live in the YAML file.
func applyEnv(cfg *Config) {
	setString(&cfg.Server.Addr, "LIGHTDASH_ADDR")
	setString(&cfg.Log.Level, "LIGHTDASH_LOG_LEVEL")
	setString(&cfg.Storage.Backend, "LIGHTDASH_STORAGE_BACKEND")
	setString(&cfg.Storage.PostgresDSN, "LIGHTDASH_POSTGRES_DSN")
	setString(&cfg.Storage.ClickhouseDSN, "LIGHTDASH_CLICKHOUSE_DSN")
	setString(&cfg.LND.RESTURL, "LIGHTDASH_LND_REST_URL")
	setString(&cfg.LND.Macaroon, "LIGHTDASH_LND_MACAROON")
	setString(&cfg.LND.EventsWSURL, "LIGHTDASH_LND_EVENTS_WS_URL")
	setString(&cfg.Analytics.BaseURL, "LIGHTDASH_ANALYTICS_URL")
	setString(&cfg.Analytics.APIKey, "LIGHTDASH_ANALYTICS_API_KEY")
	setString(&cfg.Graph.BaseURL, "LIGHTDASH_GRAPH_URL")
	setString(&cfg.AI.Endpoint, "LIGHTDASH_AI_ENDPOINT")
	setString(&cfg.AI.APIKey, "LIGHTDASH_AI_API_KEY")
	setString(&cfg.AI.Model, "LIGHTDASH_AI_MODEL")

	if v := os.Getenv("LIGHTDASH_AI_ENABLED"); v != "" {
		cfg.AI.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LIGHTDASH_LEDGER_COOLDOWN"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Ledger.Cooldown = d
		}
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
