package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Farlink Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site      SiteConfig      `yaml:"site"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Presence  PresenceConfig  `yaml:"presence"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Journal   JournalConfig   `yaml:"journal"`
	Retention RetentionConfig `yaml:"retention"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// SiteConfig identifies this Farlink deployment.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings for the device store.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket transport settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
	SendBufferSize int    `yaml:"send_buffer_size"`
}

// PresenceConfig controls presence derivation and the health monitor loop.
// Thresholds and the tick interval are in seconds.
type PresenceConfig struct {
	IdleThreshold    int `yaml:"idle_threshold"`
	OfflineThreshold int `yaml:"offline_threshold"`
	TickInterval     int `yaml:"tick_interval"`
}

// ReconnectConfig controls the server-side reconnection scheduler.
// The initial delay doubles on every attempt (exponential backoff).
type ReconnectConfig struct {
	MaxAttempts  int `yaml:"max_attempts"`
	InitialDelay int `yaml:"initial_delay"` // seconds
}

// JournalConfig controls the file-based health journal.
type JournalConfig struct {
	Dir           string `yaml:"dir"`
	SummaryCap    int    `yaml:"summary_cap"`    // ring buffer entries per day
	RetentionDays int    `yaml:"retention_days"` // journal files older than this are pruned
}

// RetentionConfig controls the device retention cleanup pass.
type RetentionConfig struct {
	Enabled     bool `yaml:"enabled"`
	HorizonDays int  `yaml:"horizon_days"` // devices unseen this long are removed
}

// MQTTConfig contains settings for the optional MQTT presence bridge.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains settings for optional status telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT     JWTConfig    `yaml:"jwt"`
	APIKeys APIKeyConfig `yaml:"api_keys"`
}

// JWTConfig contains dashboard bearer token settings.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// APIKeyConfig contains device API key settings.
// Keys are stored as SHA-256 hex digests mapped to the device identity
// they authenticate. Raw keys never appear in config or logs.
type APIKeyConfig struct {
	// KeyHashes maps hex(sha256(raw key)) -> device identity.
	KeyHashes map[string]string `yaml:"key_hashes"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FARLINK_SECTION_KEY
// For example: FARLINK_DATABASE_PATH, FARLINK_JWT_SECRET
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "farlink-001",
			Name: "Farlink Core",
		},
		Database: DatabaseConfig{
			Path:        "data/farlink.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8090,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 65536,
			PingInterval:   30,
			PongTimeout:    10,
			SendBufferSize: 256,
		},
		Presence: PresenceConfig{
			IdleThreshold:    60,
			OfflineThreshold: 300,
			TickInterval:     60,
		},
		Reconnect: ReconnectConfig{
			MaxAttempts:  5,
			InitialDelay: 2,
		},
		Journal: JournalConfig{
			Dir:           "data/journal",
			SummaryCap:    1440,
			RetentionDays: 30,
		},
		Retention: RetentionConfig{
			Enabled:     false,
			HorizonDays: 90,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "farlink-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 15,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FARLINK_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FARLINK_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FARLINK_JOURNAL_DIR"); v != "" {
		cfg.Journal.Dir = v
	}
	if v := os.Getenv("FARLINK_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("FARLINK_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FARLINK_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FARLINK_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("FARLINK_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("FARLINK_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}
	if c.Journal.Dir == "" {
		errs = append(errs, "journal.dir is required")
	}
	if c.Journal.SummaryCap < 1 {
		errs = append(errs, "journal.summary_cap must be at least 1")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Presence thresholds must be ordered or derivation is ambiguous.
	if c.Presence.IdleThreshold < 1 {
		errs = append(errs, "presence.idle_threshold must be at least 1 second")
	}
	if c.Presence.OfflineThreshold <= c.Presence.IdleThreshold {
		errs = append(errs, "presence.offline_threshold must exceed presence.idle_threshold")
	}
	if c.Presence.TickInterval < 1 {
		errs = append(errs, "presence.tick_interval must be at least 1 second")
	}

	if c.Reconnect.MaxAttempts < 1 {
		errs = append(errs, "reconnect.max_attempts must be at least 1")
	}
	if c.Reconnect.InitialDelay < 1 {
		errs = append(errs, "reconnect.initial_delay must be at least 1 second")
	}

	if c.MQTT.Enabled && (c.MQTT.QoS < 0 || c.MQTT.QoS > 2) {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Security validation - JWT secret is REQUIRED.
	// Dashboards authenticate with bearer tokens; a weak or empty secret
	// would allow attackers to forge tokens and take control of devices.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set FARLINK_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// IdleThreshold returns the presence idle threshold as a Duration.
func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.Presence.IdleThreshold) * time.Second
}

// OfflineThreshold returns the presence offline threshold as a Duration.
func (c *Config) OfflineThreshold() time.Duration {
	return time.Duration(c.Presence.OfflineThreshold) * time.Second
}

// TickInterval returns the health monitor tick interval as a Duration.
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.Presence.TickInterval) * time.Second
}
