// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (VOYAGO_ prefix, runtime override)
//  2. Config file (~/.voyago/config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - AI: model name, orchestrator round/retry bounds
//   - Flights: Duffel API token, base URL, supplier timeout, result policy
//   - Storage: PostgreSQL connection
//   - Server: listen address, CORS, rate limiting
//
// Security: sensitive fields (API keys, postgres password) are masked in
// MarshalJSON. Validation uses sentinel errors for errors.Is checks.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the Google AI API key is missing.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrMissingDuffelToken indicates the flight provider token is missing.
	ErrMissingDuffelToken = errors.New("missing Duffel token")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxRounds indicates the orchestrator round cap is out of range.
	ErrInvalidMaxRounds = errors.New("invalid max rounds")

	// ErrInvalidPostgresHost indicates the PostgreSQL host is invalid.
	ErrInvalidPostgresHost = errors.New("invalid PostgreSQL host")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidPostgresDBName indicates the PostgreSQL database name is invalid.
	ErrInvalidPostgresDBName = errors.New("invalid PostgreSQL database name")

	// ErrInvalidPostgresSSLMode indicates the PostgreSQL SSL mode is invalid.
	ErrInvalidPostgresSSLMode = errors.New("invalid PostgreSQL SSL mode")

	// ErrInvalidFlightResultLimit indicates the flight result cap is out of range.
	ErrInvalidFlightResultLimit = errors.New("invalid flight result limit")
)

// Defaults for the orchestrator and flight search policy.
const (
	// DefaultMaxRounds bounds the model/tool rounds within one turn.
	DefaultMaxRounds = 5

	// DefaultMaxRetries bounds whole-call retries on transient model failure.
	DefaultMaxRetries = 3

	// DefaultMaxFlightResults is the number of normalized offers returned
	// to the conversation per search.
	DefaultMaxFlightResults = 7

	// DefaultExcludedCarrier is filtered out of flight search results.
	// Duffel Airways is the provider's synthetic test carrier.
	DefaultExcludedCarrier = "Duffel Airways"

	// DefaultSupplierTimeout is passed to the flight provider as the
	// maximum time suppliers may take to answer an offer request.
	DefaultSupplierTimeout = 5 * time.Second
)

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON.
type Config struct {
	// AI configuration
	ModelName  string `mapstructure:"model_name" json:"model_name"`
	MaxRounds  int    `mapstructure:"max_rounds" json:"max_rounds"`
	MaxRetries int    `mapstructure:"max_retries" json:"max_retries"`

	// Flight provider configuration
	DuffelToken       string        `mapstructure:"duffel_token" json:"duffel_token"` // SENSITIVE: masked in MarshalJSON
	DuffelBaseURL     string        `mapstructure:"duffel_base_url" json:"duffel_base_url"`
	SupplierTimeout   time.Duration `mapstructure:"supplier_timeout" json:"supplier_timeout"`
	MaxFlightResults  int           `mapstructure:"max_flight_results" json:"max_flight_results"`
	ExcludedCarrier   string        `mapstructure:"excluded_carrier" json:"excluded_carrier"`

	// Storage configuration
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Server configuration
	ListenAddr  string   `mapstructure:"listen_addr" json:"listen_addr"`
	CORSOrigins []string `mapstructure:"cors_origins" json:"cors_origins"`
	TrustProxy  bool     `mapstructure:"trust_proxy" json:"trust_proxy"`
	RateBurst   int      `mapstructure:"rate_burst" json:"rate_burst"`

	// Tracing configuration (optional; empty endpoint disables export)
	OTLPEndpoint string `mapstructure:"otlp_endpoint" json:"otlp_endpoint"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Config file: ~/.voyago/config.yaml (optional)
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".voyago"))
	}
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("VOYAGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// Missing file is fine; env vars and defaults apply.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// The Duffel token is secret-only; never sourced from the config file.
	if tok := os.Getenv("DUFFEL_TOKEN"); tok != "" {
		cfg.DuffelToken = tok
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model_name", "googleai/gemini-2.0-flash")
	v.SetDefault("max_rounds", DefaultMaxRounds)
	v.SetDefault("max_retries", DefaultMaxRetries)

	v.SetDefault("duffel_base_url", "https://api.duffel.com")
	v.SetDefault("supplier_timeout", DefaultSupplierTimeout)
	v.SetDefault("max_flight_results", DefaultMaxFlightResults)
	v.SetDefault("excluded_carrier", DefaultExcludedCarrier)

	v.SetDefault("postgres_host", "localhost")
	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "voyago")
	v.SetDefault("postgres_db_name", "voyago")
	v.SetDefault("postgres_ssl_mode", "prefer")

	v.SetDefault("listen_addr", ":8080")
	v.SetDefault("rate_burst", 60)
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if c.MaxRounds < 1 || c.MaxRounds > 20 {
		return fmt.Errorf("%w: %d (must be 1-20)", ErrInvalidMaxRounds, c.MaxRounds)
	}
	if c.MaxFlightResults < 1 || c.MaxFlightResults > 50 {
		return fmt.Errorf("%w: %d (must be 1-50)", ErrInvalidFlightResultLimit, c.MaxFlightResults)
	}
	if c.PostgresHost == "" {
		return fmt.Errorf("%w: host is empty", ErrInvalidPostgresHost)
	}
	if c.PostgresPort < 1 || c.PostgresPort > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPostgresPort, c.PostgresPort)
	}
	if c.PostgresDBName == "" {
		return fmt.Errorf("%w: database name is empty", ErrInvalidPostgresDBName)
	}
	switch c.PostgresSSLMode {
	case "disable", "allow", "prefer", "require", "verify-ca", "verify-full":
	default:
		return fmt.Errorf("%w: %q", ErrInvalidPostgresSSLMode, c.PostgresSSLMode)
	}
	return nil
}

// PostgresURL returns the connection string in URL format (for migrations).
func (c *Config) PostgresURL() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.PostgresUser, c.PostgresPassword),
		Host:   fmt.Sprintf("%s:%d", c.PostgresHost, c.PostgresPort),
		Path:   c.PostgresDBName,
	}
	q := u.Query()
	q.Set("sslmode", c.PostgresSSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// PostgresConnectionString returns the keyword/value connection string (for pgx).
func (c *Config) PostgresConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword,
		c.PostgresDBName, c.PostgresSSLMode)
}

// MarshalJSON masks sensitive fields so Config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	masked := alias(c)
	if masked.DuffelToken != "" {
		masked.DuffelToken = "***"
	}
	if masked.PostgresPassword != "" {
		masked.PostgresPassword = "***"
	}
	return json.Marshal(masked)
}
