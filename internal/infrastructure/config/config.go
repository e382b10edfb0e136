package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the exposure exporter.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Platform  PlatformConfig  `yaml:"platform"`
	Exposure  ExposureConfig  `yaml:"exposure"`
	Export    ExportConfig    `yaml:"export"`
	Events    EventsConfig    `yaml:"events"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// PlatformConfig locates the home-automation platform's files.
type PlatformConfig struct {
	// ConfigDir is the directory holding the platform's configuration.yaml.
	ConfigDir string `yaml:"config_dir"`

	// StorageDir holds the registry JSON documents.
	// Default: "{config_dir}/.storage"
	StorageDir string `yaml:"storage_dir"`

	// Assistant is the assistant key used in exposure settings.
	// Default: "cloud.google_assistant"
	Assistant string `yaml:"assistant"`
}

// ExposureConfig contains the global exposure rules.
type ExposureConfig struct {
	// ReadPlatformConfig reads expose_by_default and exposed_domains from the
	// platform's configuration.yaml section named by PlatformSection.
	// The values below are used when the section is absent.
	ReadPlatformConfig bool   `yaml:"read_platform_config"`
	PlatformSection    string `yaml:"platform_section"`

	ExposeByDefault bool     `yaml:"expose_by_default"`
	ExposedDomains  []string `yaml:"exposed_domains"`

	// NeverExposed lists entity IDs that are never exported.
	NeverExposed []string `yaml:"never_exposed"`
}

// ExportConfig contains output and trigger settings.
type ExportConfig struct {
	// OutputFile is the path of the generated YAML.
	// Default: "{config_dir}/exposed.yaml"
	OutputFile string `yaml:"output_file"`

	// Debounce is the quiet period after the last registry change.
	Debounce time.Duration `yaml:"debounce"`

	// OnStartup runs a manual export once the service is up.
	OnStartup bool `yaml:"on_startup"`

	Notification NotificationConfig `yaml:"notification"`
}

// NotificationConfig configures the notification posted after automatic exports.
type NotificationConfig struct {
	Enabled bool   `yaml:"enabled"`
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

// EventsConfig selects the registry change event sources.
type EventsConfig struct {
	MQTT EventsMQTTConfig `yaml:"mqtt"`

	// WatchStorage watches StorageDir for registry file writes.
	WatchStorage bool `yaml:"watch_storage"`
}

// EventsMQTTConfig configures the platform's MQTT event stream subscription.
type EventsMQTTConfig struct {
	Enabled bool   `yaml:"enabled"`
	Topic   string `yaml:"topic"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
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

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
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

// APITimeoutConfig contains HTTP timeout settings.
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
	PingInterval   int `yaml:"ping_interval"` // seconds
	PongTimeout    int `yaml:"pong_timeout"`  // seconds
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains API token settings.
// An empty secret disables API authentication.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
}

// Default values that other packages refer to.
const (
	DefaultAssistant       = "cloud.google_assistant"
	DefaultPlatformSection = "google_assistant"
	DefaultDebounce        = 30 * time.Second
	DefaultNotificationID  = "ga_autoexpose_export"
	DefaultOutputFileName  = "exposed.yaml"
	DefaultStorageDirName  = ".storage"
	ConfigurationFileName  = "configuration.yaml"
)

// minJWTSecretLength is the shortest accepted API signing secret.
const minJWTSecretLength = 32

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: AUTOEXPOSE_SECTION_KEY
// For example: AUTOEXPOSE_PLATFORM_CONFIG_DIR, AUTOEXPOSE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
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
		Platform: PlatformConfig{
			ConfigDir: "/config",
			Assistant: DefaultAssistant,
		},
		Exposure: ExposureConfig{
			ReadPlatformConfig: true,
			PlatformSection:    DefaultPlatformSection,
			NeverExposed:       []string{"group.all_locks"},
		},
		Export: ExportConfig{
			Debounce: DefaultDebounce,
			Notification: NotificationConfig{
				Enabled: true,
				ID:      DefaultNotificationID,
				Title:   "Google Assistant exposed entities updated",
				Message: "The list of entities exposed to Google Assistant changed and " +
					"exposed.yaml was regenerated. Restart Home Assistant to apply the new configuration.",
			},
		},
		Events: EventsConfig{
			MQTT: EventsMQTTConfig{
				Enabled: true,
				Topic:   "homeassistant/eventstream",
			},
			WatchStorage: true,
		},
		Database: DatabaseConfig{
			Path:        "./data/autoexpose.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "autoexpose",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8099,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: AUTOEXPOSE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Platform
	if v := os.Getenv("AUTOEXPOSE_PLATFORM_CONFIG_DIR"); v != "" {
		cfg.Platform.ConfigDir = v
	}
	if v := os.Getenv("AUTOEXPOSE_PLATFORM_STORAGE_DIR"); v != "" {
		cfg.Platform.StorageDir = v
	}

	// Export
	if v := os.Getenv("AUTOEXPOSE_EXPORT_OUTPUT_FILE"); v != "" {
		cfg.Export.OutputFile = v
	}

	// Database
	if v := os.Getenv("AUTOEXPOSE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("AUTOEXPOSE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("AUTOEXPOSE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("AUTOEXPOSE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("AUTOEXPOSE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	// InfluxDB
	if v := os.Getenv("AUTOEXPOSE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security
	if v := os.Getenv("AUTOEXPOSE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Platform.ConfigDir == "" {
		errs = append(errs, "platform.config_dir is required")
	}
	if c.Platform.Assistant == "" {
		errs = append(errs, "platform.assistant is required")
	}

	if c.Exposure.ReadPlatformConfig && c.Exposure.PlatformSection == "" {
		errs = append(errs, "exposure.platform_section is required when read_platform_config is set")
	}

	if c.Export.Debounce <= 0 {
		errs = append(errs, "export.debounce must be positive")
	}
	if c.Export.Notification.Enabled && c.Export.Notification.ID == "" {
		errs = append(errs, "export.notification.id is required when notifications are enabled")
	}

	if c.Events.MQTT.Enabled && !c.MQTT.Enabled {
		errs = append(errs, "events.mqtt requires mqtt.enabled")
	}
	if c.Events.MQTT.Enabled && c.Events.MQTT.Topic == "" {
		errs = append(errs, "events.mqtt.topic is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// StorageDir returns the platform storage directory, defaulting to
// {config_dir}/.storage.
func (c *Config) StorageDir() string {
	if c.Platform.StorageDir != "" {
		return c.Platform.StorageDir
	}
	return filepath.Join(c.Platform.ConfigDir, DefaultStorageDirName)
}

// OutputFile returns the export path, defaulting to {config_dir}/exposed.yaml.
func (c *Config) OutputFile() string {
	if c.Export.OutputFile != "" {
		return c.Export.OutputFile
	}
	return filepath.Join(c.Platform.ConfigDir, DefaultOutputFileName)
}

// ConfigurationFile returns the path of the platform's configuration.yaml.
func (c *Config) ConfigurationFile() string {
	return filepath.Join(c.Platform.ConfigDir, ConfigurationFileName)
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
