package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultRoomName is the name given to the fallback room every smart home owns.
const DefaultRoomName = "Somewhere else"

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// Config is the root configuration structure for the pet tracker core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
	Schema   SchemaConfig   `yaml:"schema"`
	Notifier NotifierConfig `yaml:"notifier"`
	Protocol ProtocolConfig `yaml:"protocol"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker MQTTBrokerConfig `yaml:"broker"`
	Auth   MQTTAuthConfig   `yaml:"auth"`
	QoS    int              `yaml:"qos"`

	// TopicBase is the first topic level of every device topic.
	TopicBase string `yaml:"topic_base"`

	// ReconnectInterval is the fixed retry period (seconds) of the reconnect supervisor.
	ReconnectInterval int `yaml:"reconnect_interval"`
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	CORS      CORSConfig       `yaml:"cors"`
	Auth      AuthConfig       `yaml:"auth"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
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

// AuthConfig contains API bearer token settings.
type AuthConfig struct {
	// JWTSecret signs and verifies API tokens. Empty disables authentication.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the lifetime (minutes) of tokens issued by the token command.
	TokenTTL int `yaml:"token_ttl"`
}

// WebSocketConfig contains live event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SchemaConfig controls where entity schemas are loaded from.
type SchemaConfig struct {
	// Dir overrides the embedded schemas with <type>.yaml files from disk when set.
	Dir string `yaml:"dir"`
}

// NotifierConfig contains user notification settings.
type NotifierConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig contains Telegram Bot API settings.
type TelegramConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Token         string  `yaml:"token"`
	BaseURL       string  `yaml:"base_url"`
	RatePerMinute float64 `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
}

// ProtocolConfig tunes the telemetry reaction layer.
type ProtocolConfig struct {
	// DedupWindow is how long (seconds) a passing-by message is remembered
	// so broker redeliveries are dropped.
	DedupWindow int `yaml:"dedup_window"`

	// DefaultRoomName is the name of the fallback room created with every smart home.
	DefaultRoomName string `yaml:"default_room_name"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: PETTRACKER_SECTION_KEY
// For example: PETTRACKER_DATABASE_PATH, PETTRACKER_MQTT_HOST
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

// Default returns the built-in configuration with environment overrides applied.
// Used when no config file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/pettracker.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "pettracker-core",
			},
			QoS:               1,
			TopicBase:         "pettracker",
			ReconnectInterval: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Auth: AuthConfig{
				TokenTTL: 60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 8192,
				PingInterval:   30,
				PongTimeout:    10,
			},
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Notifier: NotifierConfig{
			Telegram: TelegramConfig{
				BaseURL:       "https://api.telegram.org",
				RatePerMinute: 20,
				Burst:         3,
			},
		},
		Protocol: ProtocolConfig{
			DedupWindow:     30,
			DefaultRoomName: DefaultRoomName,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PETTRACKER_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("PETTRACKER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("PETTRACKER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("PETTRACKER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("PETTRACKER_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("PETTRACKER_JWT_SECRET"); v != "" {
		cfg.API.Auth.JWTSecret = v
	}

	if v := os.Getenv("PETTRACKER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Bot tokens never belong in the config file.
	if v := os.Getenv("PETTRACKER_TELEGRAM_TOKEN"); v != "" {
		cfg.Notifier.Telegram.Token = v
	}
}

// Validate checks the configuration for errors.
// Every problem found is reported, joined into a single error.
func (c *Config) Validate() error {
	var errs []error

	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, errors.New("mqtt.qos must be 0, 1, or 2"))
	}
	if c.MQTT.TopicBase == "" || strings.ContainsAny(c.MQTT.TopicBase, "/+#") {
		errs = append(errs, errors.New("mqtt.topic_base must be a single non-empty topic level"))
	}
	if c.MQTT.ReconnectInterval < 1 {
		errs = append(errs, errors.New("mqtt.reconnect_interval must be at least 1 second"))
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, errors.New("api.port must be between 1 and 65535"))
	}

	if c.API.Auth.JWTSecret != "" && len(c.API.Auth.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLength))
	}
	if c.API.Auth.TokenTTL < 1 {
		errs = append(errs, errors.New("api.auth.token_ttl must be at least 1 minute"))
	}
	if c.API.WebSocket.PingInterval < 1 || c.API.WebSocket.PongTimeout < 1 {
		errs = append(errs, errors.New("api.websocket ping_interval and pong_timeout must be positive"))
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, errors.New("influxdb.url and influxdb.bucket are required when influxdb is enabled"))
	}

	if c.Notifier.Telegram.Enabled {
		if c.Notifier.Telegram.Token == "" {
			errs = append(errs, errors.New("notifier.telegram.token is required (set PETTRACKER_TELEGRAM_TOKEN)"))
		}
		if c.Notifier.Telegram.RatePerMinute <= 0 {
			errs = append(errs, errors.New("notifier.telegram.rate_per_minute must be positive"))
		}
	}

	if c.Protocol.DedupWindow < 0 {
		errs = append(errs, errors.New("protocol.dedup_window cannot be negative"))
	}
	if strings.TrimSpace(c.Protocol.DefaultRoomName) == "" {
		errs = append(errs, errors.New("protocol.default_room_name is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %w", errors.Join(errs...))
	}

	return nil
}

// ReconnectInterval returns the MQTT supervisor retry period as a Duration.
func (c *Config) ReconnectInterval() time.Duration {
	return time.Duration(c.MQTT.ReconnectInterval) * time.Second
}

// DedupWindow returns the telemetry de-duplication window as a Duration.
func (c *Config) DedupWindow() time.Duration {
	return time.Duration(c.Protocol.DedupWindow) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// TokenTTL returns the lifetime of issued API tokens as a Duration.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.API.Auth.TokenTTL) * time.Minute
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
