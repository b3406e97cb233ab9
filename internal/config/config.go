// Package config loads and validates the roster service configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the TR_ prefix (e.g., TR_GRAPH_TIMEOUT
// overrides graph.timeout in the YAML).
//
// The Entra app registration values can also be supplied through the bare
// CLIENT_ID, TENANT_ID, CLIENT_SECRET and ENTRA_ISSUER variables. Those are the
// names the hosting platform's app settings already use, so a deployment can
// move over without renaming secrets.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// MaxGraphBatchSize is the number of sub-requests Microsoft Graph accepts in a
// single $batch call.
const MaxGraphBatchSize = 20

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Graph     GraphConfig     `mapstructure:"graph"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Roster    RosterConfig    `mapstructure:"roster"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// GraphConfig holds Microsoft Graph client configuration
type GraphConfig struct {
	// BaseURL is the versioned Graph root, e.g. https://graph.microsoft.com/v1.0
	BaseURL string `mapstructure:"base_url"`
	// MaxBatchSize caps the sub-requests sent in one $batch call (Graph allows 20)
	MaxBatchSize int `mapstructure:"max_batch_size"`
	// Timeout bounds every outbound Graph HTTP call
	Timeout time.Duration `mapstructure:"timeout"`
	// Scopes requested for application and on-behalf-of tokens
	Scopes []string `mapstructure:"scopes"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	AzureAD AzureADConfig `mapstructure:"azure_ad"`
	// RequireValidToken rejects roster requests whose bearer token fails
	// Entra ID validation before any directory call is made.
	RequireValidToken bool `mapstructure:"require_valid_token"`
}

// AzureADConfig holds the Entra ID app registration used for Graph access
type AzureADConfig struct {
	TenantID     string `mapstructure:"tenant_id"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	// Issuer is the expected iss claim; defaults to the tenant's v2.0 issuer
	Issuer string `mapstructure:"issuer"`
	// JWKSURL is where token signing keys are fetched from
	JWKSURL string `mapstructure:"jwks_url"`
}

// GetIssuer returns the configured issuer or the tenant's v2.0 issuer.
func (a *AzureADConfig) GetIssuer() string {
	if a.Issuer != "" {
		return a.Issuer
	}
	if a.TenantID == "" {
		return ""
	}
	return fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", a.TenantID)
}

// RosterConfig holds team roster behaviour
type RosterConfig struct {
	// PhotoURLTemplate is a fmt template receiving the user principal name
	PhotoURLTemplate string `mapstructure:"photo_url_template"`
	// TeamName overrides the team name in the GetTeamDetails envelope
	TeamName string `mapstructure:"team_name"`
	// IncludePeers adds the "people I work with" set when the request does not say
	IncludePeers bool `mapstructure:"include_peers"`
	// PeerLimit caps how many people-API entries are considered
	PeerLimit int `mapstructure:"peer_limit"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CORS         CORSConfig         `mapstructure:"cors"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled           bool        `mapstructure:"enabled"`
	RequestsPerMinute int         `mapstructure:"requests_per_minute"`
	Burst             int         `mapstructure:"burst"`
	Redis             RedisConfig `mapstructure:"redis"`
}

// RedisConfig configures the shared rate limit store. When disabled the
// limiter keeps its buckets in process memory.
type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName string        `mapstructure:"service_name"`
	Metrics     MetricsConfig `mapstructure:"metrics"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	PrometheusPort int  `mapstructure:"prometheus_port"`
}

// envAliases lists the unprefixed variables accepted in addition to the TR_ form.
var envAliases = map[string]string{
	"auth.azure_ad.tenant_id":     "TENANT_ID",
	"auth.azure_ad.client_id":     "CLIENT_ID",
	"auth.azure_ad.client_secret": "CLIENT_SECRET",
	"auth.azure_ad.issuer":        "ENTRA_ISSUER",
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.read_timeout",
		"server.write_timeout",

		// Graph
		"graph.base_url",
		"graph.max_batch_size",
		"graph.timeout",
		"graph.scopes",

		// Auth
		"auth.azure_ad.tenant_id",
		"auth.azure_ad.client_id",
		"auth.azure_ad.client_secret",
		"auth.azure_ad.issuer",
		"auth.azure_ad.jwks_url",
		"auth.require_valid_token",

		// Roster
		"roster.photo_url_template",
		"roster.team_name",
		"roster.include_peers",
		"roster.peer_limit",

		// Security
		"security.cors.allowed_origins",
		"security.cors.allowed_methods",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.rate_limiting.redis.enabled",
		"security.rate_limiting.redis.addr",
		"security.rate_limiting.redis.password",
		"security.rate_limiting.redis.db",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Logging
		"logging.level",
		"logging.format",

		// Telemetry
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.prometheus_port",
	}
	for _, key := range keys {
		envNames := []string{"TR_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}
		if alias, ok := envAliases[key]; ok {
			envNames = append(envNames, alias)
		}
		if err := v.BindEnv(append([]string{key}, envNames...)...); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// newViper builds a viper instance with defaults, file lookup and env binding.
func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/team-roster")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("TR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}
	return v, nil
}

// decode unmarshals and validates the current viper state.
func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Auth.AzureAD.ClientSecret = os.ExpandEnv(cfg.Auth.AzureAD.ClientSecret)
	cfg.Security.RateLimiting.Redis.Password = os.ExpandEnv(cfg.Security.RateLimiting.Redis.Password)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}
	return decode(v)
}

// Watch re-reads the config file whenever it changes on disk and hands the
// new configuration to onChange. Invalid edits are logged and skipped so a
// typo never replaces a working configuration. Watch is a no-op when no
// config file was found.
func Watch(configPath string, onChange func(*Config)) error {
	v, err := newViper(configPath)
	if err != nil {
		return err
	}
	if v.ConfigFileUsed() == "" {
		return nil
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := decode(v)
		if err != nil {
			slog.Warn("ignoring config change", "file", e.Name, "error", err)
			return
		}
		slog.Info("config reloaded", "file", e.Name, "op", e.Op.String())
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "60s")

	// Graph defaults
	v.SetDefault("graph.base_url", "https://graph.microsoft.com/v1.0")
	v.SetDefault("graph.max_batch_size", MaxGraphBatchSize)
	v.SetDefault("graph.timeout", "30s")
	v.SetDefault("graph.scopes", []string{"https://graph.microsoft.com/.default"})

	// Auth defaults
	v.SetDefault("auth.azure_ad.jwks_url", "https://login.microsoftonline.com/common/discovery/v2.0/keys")
	v.SetDefault("auth.require_valid_token", false)

	// Roster defaults
	v.SetDefault("roster.photo_url_template", "/_layouts/15/userphoto.aspx?size=L&username=%s")
	v.SetDefault("roster.team_name", "")
	v.SetDefault("roster.include_peers", false)
	v.SetDefault("roster.peer_limit", 10)

	// Security defaults
	v.SetDefault("security.cors.allowed_origins", []string{"*"})
	v.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 120)
	v.SetDefault("security.rate_limiting.burst", 20)
	v.SetDefault("security.rate_limiting.redis.enabled", false)
	v.SetDefault("security.rate_limiting.redis.db", 0)
	v.SetDefault("security.tls.enabled", false)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "team-roster")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.prometheus_port", 9090)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Graph.BaseURL == "" {
		return fmt.Errorf("graph.base_url is required")
	}
	if c.Graph.MaxBatchSize < 1 || c.Graph.MaxBatchSize > MaxGraphBatchSize {
		return fmt.Errorf("graph.max_batch_size must be between 1 and %d, got %d", MaxGraphBatchSize, c.Graph.MaxBatchSize)
	}
	if c.Graph.Timeout < 0 {
		return fmt.Errorf("graph.timeout must not be negative")
	}

	// The app credential backs the application context and the on-behalf-of
	// exchange, so all three values travel together.
	if c.Auth.AzureAD.TenantID == "" {
		return fmt.Errorf("auth.azure_ad.tenant_id is required")
	}
	if c.Auth.AzureAD.ClientID == "" {
		return fmt.Errorf("auth.azure_ad.client_id is required")
	}
	if c.Auth.AzureAD.ClientSecret == "" {
		return fmt.Errorf("auth.azure_ad.client_secret is required")
	}

	if t := c.Roster.PhotoURLTemplate; t != "" && (strings.Count(t, "%s") != 1 || strings.Count(t, "%") != 1) {
		return fmt.Errorf("roster.photo_url_template must contain exactly one %%s verb, got %q", t)
	}

	if c.Roster.PeerLimit < 0 {
		return fmt.Errorf("roster.peer_limit must not be negative")
	}

	if c.Security.RateLimiting.Enabled {
		if c.Security.RateLimiting.RequestsPerMinute < 1 {
			return fmt.Errorf("security.rate_limiting.requests_per_minute must be positive")
		}
		if c.Security.RateLimiting.Redis.Enabled && c.Security.RateLimiting.Redis.Addr == "" {
			return fmt.Errorf("security.rate_limiting.redis.addr is required when redis rate limiting is enabled")
		}
	}

	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}

// GetAddress returns the server address in host:port format
func (c *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
