package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/soundprediction/ontoscore/pkg/predictor"
	"github.com/soundprediction/ontoscore/pkg/scoring"
	"github.com/soundprediction/ontoscore/pkg/types"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Database configuration
	Database DatabaseConfig `mapstructure:"database"`

	// Taxonomy configuration
	Taxonomy TaxonomyConfig `mapstructure:"taxonomy"`

	// Scoring configuration
	Scoring ScoringConfig `mapstructure:"scoring"`

	// Detection configuration
	Detection DetectionConfig `mapstructure:"detection"`

	// Cache configuration
	Cache CacheConfig `mapstructure:"cache"`

	// Predictor configuration
	Predictor PredictorConfig `mapstructure:"predictor"`

	// Ingest configuration
	Ingest IngestConfig `mapstructure:"ingest"`

	// Telemetry configuration
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Alert configuration
	Alert AlertConfig `mapstructure:"alert"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // memory, badger, neo4j
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// TaxonomyConfig holds relationship taxonomy configuration
type TaxonomyConfig struct {
	// TablePath optionally points at a YAML file overriding the built-in
	// base weights.
	TablePath string `mapstructure:"table_path"`
}

// ScoringConfig holds risk scoring configuration
type ScoringConfig struct {
	Weights            map[string]float64              `mapstructure:"weights"`
	Curves             map[string][]scoring.Breakpoint `mapstructure:"curves"`
	WarningThreshold   float64                         `mapstructure:"warning_threshold"`
	IssuanceWindowDays int                             `mapstructure:"issuance_window_days"`
	BatchConcurrency   int                             `mapstructure:"batch_concurrency"`
}

// DetectionConfig holds pattern detection configuration
type DetectionConfig struct {
	MaxHops    int `mapstructure:"max_hops"`
	MaxVisited int `mapstructure:"max_visited"`
}

// CacheConfig holds neighborhood cache configuration
type CacheConfig struct {
	NeighborhoodTTL time.Duration `mapstructure:"neighborhood_ttl"`
}

// PredictorConfig holds external predictor configuration
type PredictorConfig struct {
	Enabled bool             `mapstructure:"enabled"`
	Client  predictor.Config `mapstructure:"client"`
}

// IngestConfig holds ingestion configuration
type IngestConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

// TelemetryConfig holds telemetry configuration
type TelemetryConfig struct {
	ParquetPath string `mapstructure:"parquet_path"`
}

// AlertConfig holds email alerting configuration. When enabled, score
// results at or above MinLevel trigger an email.
type AlertConfig struct {
	Enabled  bool     `mapstructure:"enabled"`
	SMTPHost string   `mapstructure:"smtp_host"`
	SMTPPort int      `mapstructure:"smtp_port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
	MinLevel string   `mapstructure:"min_level"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	setDefaults()

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Log defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	// Server defaults
	viper.SetDefault("server.host", "localhost")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.mode", "debug")

	// Database defaults
	viper.SetDefault("database.driver", "memory")
	viper.SetDefault("database.uri", "./ontoscore_db")
	viper.SetDefault("database.username", "")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.database", "")

	// Scoring defaults
	viper.SetDefault("scoring.warning_threshold", 0.7)
	viper.SetDefault("scoring.issuance_window_days", 365)
	viper.SetDefault("scoring.batch_concurrency", 8)

	// Detection defaults
	viper.SetDefault("detection.max_hops", 3)
	viper.SetDefault("detection.max_visited", 500)

	// Cache defaults
	viper.SetDefault("cache.neighborhood_ttl", "30s")

	// Predictor defaults
	viper.SetDefault("predictor.enabled", false)
	viper.SetDefault("predictor.client.timeout", "5s")
	viper.SetDefault("predictor.client.max_retries", 2)
	viper.SetDefault("predictor.client.retry_delay", "200ms")

	// Ingest defaults
	viper.SetDefault("ingest.concurrency", 8)

	// Alert defaults
	viper.SetDefault("alert.enabled", false)
	viper.SetDefault("alert.smtp_port", 587)
	viper.SetDefault("alert.min_level", "high")

	// Telemetry defaults
	home, err := os.UserHomeDir()
	if err == nil {
		viper.SetDefault("telemetry.parquet_path", fmt.Sprintf("%s/.ontoscore/telemetry", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	// Database settings
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.Database.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.Database.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.Database.Password = pass
	}
	if dbDriver := os.Getenv("DB_DRIVER"); dbDriver != "" {
		config.Database.Driver = dbDriver
	}
	if dbURI := os.Getenv("DB_URI"); dbURI != "" {
		config.Database.URI = dbURI
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		viper.Set("server.port", port)
	}

	// Predictor settings
	if baseURL := os.Getenv("PREDICTOR_URL"); baseURL != "" {
		config.Predictor.Enabled = true
		config.Predictor.Client.BaseURL = baseURL
	}

	// Telemetry settings
	if path := os.Getenv("TELEMETRY_PARQUET_PATH"); path != "" {
		config.Telemetry.ParquetPath = path
	}
}

// EngineConfig materializes the scoring section on top of the shipped
// defaults. Absent keys keep their defaults; present keys replace them.
func (c *ScoringConfig) EngineConfig() *scoring.Config {
	cfg := scoring.DefaultConfig()
	for name, weight := range c.Weights {
		cfg.Weights[types.ComponentName(name)] = weight
	}
	for key, points := range c.Curves {
		cfg.Curves[key] = scoring.Curve(points)
	}
	if c.WarningThreshold > 0 {
		cfg.WarningThreshold = c.WarningThreshold
	}
	if c.IssuanceWindowDays > 0 {
		cfg.IssuanceWindow = time.Duration(c.IssuanceWindowDays) * 24 * time.Hour
	}
	return cfg
}
