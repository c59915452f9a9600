package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the bluewidget daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Logging     LoggingConfig     `yaml:"logging"`
	Bluez       BluezConfig       `yaml:"bluez"`
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Settings    SettingsConfig    `yaml:"settings"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Database    DatabaseConfig    `yaml:"database"`
	Audit       AuditConfig       `yaml:"audit"`
	Security    SecurityConfig    `yaml:"security"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// Output is stdout, stderr, or file. The terminal UI forces file or
	// discard so log lines do not corrupt the screen.
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// BluezConfig contains BlueZ D-Bus gateway settings.
type BluezConfig struct {
	// Adapter is the adapter name (hci0). Empty selects the first adapter.
	Adapter string `yaml:"adapter"`

	// CallTimeout bounds every D-Bus call, in milliseconds.
	CallTimeout int `yaml:"call_timeout"`

	// Breaker trips after this many consecutive transport failures.
	BreakerFailures int `yaml:"breaker_failures"`

	// BreakerTimeout is how long the breaker stays open, in seconds.
	BreakerTimeout int `yaml:"breaker_timeout"`
}

// CoordinatorConfig contains worker and queue settings for the coordinator.
type CoordinatorConfig struct {
	CommandQueueSize    int  `yaml:"command_queue_size"`
	ReportQueueSize     int  `yaml:"report_queue_size"`
	RefreshAfterCommand bool `yaml:"refresh_after_command"`
	// PreferredDevice overrides the name pinned to the top of the list.
	PreferredDevice string `yaml:"preferred_device"`
}

// SettingsConfig locates the per-user JSON settings file.
type SettingsConfig struct {
	// Path overrides the platform default location when set.
	Path string `yaml:"path"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Panel    PanelConfig      `yaml:"panel"`
}

// PanelConfig controls the browser widget served at "/".
type PanelConfig struct {
	Enabled bool `yaml:"enabled"`

	// Dir serves assets from disk instead of the embedded copy.
	Dir string `yaml:"dir"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
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

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// AuditConfig controls the SQLite command audit trail.
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
	// RetentionDays prunes older entries on startup. 0 keeps everything.
	RetentionDays int `yaml:"retention_days"`
}

// SecurityConfig contains API security settings.
type SecurityConfig struct {
	JWT       JWTConfig       `yaml:"jwt"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// JWTConfig contains bearer token settings. An empty secret disables auth.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// RateLimitConfig contains per-client rate limiting settings.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	Burst             int  `yaml:"burst"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults), skipped when the file does not exist
//  3. Environment variables (override file values)
//
// The widget must start with no configuration at all, so a missing file is
// not an error. A file that exists but cannot be parsed is.
//
// Environment variables follow the pattern: BLUEWIDGET_SECTION_KEY
// For example: BLUEWIDGET_BLUEZ_ADAPTER, BLUEWIDGET_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file (may be empty)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // Config path is operator supplied
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// Defaults only.
		case err != nil:
			return nil, fmt.Errorf("reading config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
// Every optional integration (API, MQTT, InfluxDB, audit) starts disabled.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Bluez: BluezConfig{
			Adapter:         "hci0",
			CallTimeout:     3000,
			BreakerFailures: 5,
			BreakerTimeout:  15,
		},
		Coordinator: CoordinatorConfig{
			CommandQueueSize:    32,
			ReportQueueSize:     32,
			RefreshAfterCommand: true,
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8737,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
			Panel: PanelConfig{Enabled: true},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "bluewidget",
			},
			QoS:         1,
			TopicPrefix: "bluewidget",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:           "http://127.0.0.1:8086",
			Org:           "bluewidget",
			Bucket:        "bluewidget",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Database: DatabaseConfig{
			Path:        "./data/bluewidget.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Audit: AuditConfig{
			RetentionDays: 30,
		},
		Security: SecurityConfig{
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             20,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BLUEWIDGET_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("BLUEWIDGET_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// BlueZ
	if v := os.Getenv("BLUEWIDGET_BLUEZ_ADAPTER"); v != "" {
		cfg.Bluez.Adapter = v
	}
	if v, ok := envInt("BLUEWIDGET_BLUEZ_CALL_TIMEOUT"); ok {
		cfg.Bluez.CallTimeout = v
	}

	// Coordinator
	if v := os.Getenv("BLUEWIDGET_PREFERRED_DEVICE"); v != "" {
		cfg.Coordinator.PreferredDevice = v
	}

	// Settings
	if v := os.Getenv("BLUEWIDGET_SETTINGS_PATH"); v != "" {
		cfg.Settings.Path = v
	}

	// API
	if v := os.Getenv("BLUEWIDGET_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v, ok := envInt("BLUEWIDGET_API_PORT"); ok {
		cfg.API.Port = v
	}

	// MQTT
	if v := os.Getenv("BLUEWIDGET_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BLUEWIDGET_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BLUEWIDGET_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("BLUEWIDGET_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Database
	if v := os.Getenv("BLUEWIDGET_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// Security
	if v := os.Getenv("BLUEWIDGET_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// envInt reads an integer environment variable. Unparseable values are ignored.
func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bluez.CallTimeout <= 0 {
		errs = append(errs, "bluez.call_timeout must be positive")
	}
	if c.Bluez.BreakerFailures < 1 {
		errs = append(errs, "bluez.breaker_failures must be at least 1")
	}

	if c.Coordinator.CommandQueueSize < 1 {
		errs = append(errs, "coordinator.command_queue_size must be at least 1")
	}
	if c.Coordinator.ReportQueueSize < 1 {
		errs = append(errs, "coordinator.report_queue_size must be at least 1")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required")
		}
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if c.Audit.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when audit is enabled")
	}

	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetCallTimeout returns the BlueZ per-call timeout as a Duration.
func (c *Config) GetCallTimeout() time.Duration {
	return time.Duration(c.Bluez.CallTimeout) * time.Millisecond
}

// GetBreakerTimeout returns the open-breaker cool-down as a Duration.
func (c *Config) GetBreakerTimeout() time.Duration {
	return time.Duration(c.Bluez.BreakerTimeout) * time.Second
}
