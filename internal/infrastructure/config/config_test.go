package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
platform:
  config_dir: "/srv/homeassistant"
exposure:
  read_platform_config: false
  expose_by_default: true
  exposed_domains: ["light", "switch"]
export:
  debounce: 45s
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  port: 8099
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Platform.ConfigDir != "/srv/homeassistant" {
		t.Errorf("Platform.ConfigDir = %q, want %q", cfg.Platform.ConfigDir, "/srv/homeassistant")
	}
	if !cfg.Exposure.ExposeByDefault {
		t.Error("Exposure.ExposeByDefault = false, want true")
	}
	if len(cfg.Exposure.ExposedDomains) != 2 {
		t.Errorf("len(Exposure.ExposedDomains) = %d, want 2", len(cfg.Exposure.ExposedDomains))
	}
	if cfg.Export.Debounce != 45*time.Second {
		t.Errorf("Export.Debounce = %v, want 45s", cfg.Export.Debounce)
	}
	if cfg.Platform.Assistant != DefaultAssistant {
		t.Errorf("Platform.Assistant = %q, want default %q", cfg.Platform.Assistant, DefaultAssistant)
	}
	if got, want := cfg.OutputFile(), "/srv/homeassistant/exposed.yaml"; got != want {
		t.Errorf("OutputFile() = %q, want %q", got, want)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
platform:
  config_dir: ""
`
	_, err := Load(writeConfig(t, content))
	if err == nil {
		t.Fatal("Load() expected validation error for empty platform.config_dir, got nil")
	}
	if !strings.Contains(err.Error(), "platform.config_dir") {
		t.Errorf("error = %v, want mention of platform.config_dir", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing config dir",
			mutate:  func(c *Config) { c.Platform.ConfigDir = "" },
			wantErr: true,
		},
		{
			name:    "missing assistant",
			mutate:  func(c *Config) { c.Platform.Assistant = "" },
			wantErr: true,
		},
		{
			name:    "zero debounce",
			mutate:  func(c *Config) { c.Export.Debounce = 0 },
			wantErr: true,
		},
		{
			name:    "notification without id",
			mutate:  func(c *Config) { c.Export.Notification.ID = "" },
			wantErr: true,
		},
		{
			name:    "notification disabled without id",
			mutate:  func(c *Config) { c.Export.Notification = NotificationConfig{} },
			wantErr: false,
		},
		{
			name:    "mqtt events without mqtt",
			mutate:  func(c *Config) { c.MQTT.Enabled = false },
			wantErr: true,
		},
		{
			name: "mqtt disabled with events disabled",
			mutate: func(c *Config) {
				c.MQTT.Enabled = false
				c.Events.MQTT.Enabled = false
			},
			wantErr: false,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "invalid port low",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: true,
		},
		{
			name:    "invalid port high",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantErr: true,
		},
		{
			name: "port ignored when api disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
			wantErr: false,
		},
		{
			name:    "JWT secret too short",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: true,
		},
		{
			name:    "JWT secret long enough",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "test-secret-key-at-least-32-chars!" },
			wantErr: false,
		},
		{
			name:    "influxdb without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_DerivedPaths(t *testing.T) {
	cfg := defaultConfig()
	cfg.Platform.ConfigDir = "/config"

	if got := cfg.StorageDir(); got != "/config/.storage" {
		t.Errorf("StorageDir() = %q, want %q", got, "/config/.storage")
	}
	if got := cfg.ConfigurationFile(); got != "/config/configuration.yaml" {
		t.Errorf("ConfigurationFile() = %q, want %q", got, "/config/configuration.yaml")
	}
	if got := cfg.OutputFile(); got != "/config/exposed.yaml" {
		t.Errorf("OutputFile() = %q, want %q", got, "/config/exposed.yaml")
	}

	cfg.Platform.StorageDir = "/elsewhere/.storage"
	cfg.Export.OutputFile = "/out/exposed.yaml"

	if got := cfg.StorageDir(); got != "/elsewhere/.storage" {
		t.Errorf("StorageDir() = %q, want override", got)
	}
	if got := cfg.OutputFile(); got != "/out/exposed.yaml" {
		t.Errorf("OutputFile() = %q, want override", got)
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 45,
				Idle:  60,
			},
		},
	}

	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %v, want 30", got)
	}

	if got := cfg.GetWriteTimeout().Seconds(); got != 45 {
		t.Errorf("GetWriteTimeout() = %v, want 45", got)
	}

	if got := cfg.GetIdleTimeout().Seconds(); got != 60 {
		t.Errorf("GetIdleTimeout() = %v, want 60", got)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("AUTOEXPOSE_PLATFORM_CONFIG_DIR", "/ha/config")
	t.Setenv("AUTOEXPOSE_PLATFORM_STORAGE_DIR", "/ha/storage")
	t.Setenv("AUTOEXPOSE_EXPORT_OUTPUT_FILE", "/ha/out.yaml")
	t.Setenv("AUTOEXPOSE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("AUTOEXPOSE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("AUTOEXPOSE_MQTT_USERNAME", "testuser")
	t.Setenv("AUTOEXPOSE_MQTT_PASSWORD", "testpass")
	t.Setenv("AUTOEXPOSE_API_HOST", "192.168.1.1")
	t.Setenv("AUTOEXPOSE_INFLUXDB_TOKEN", "secret-token")
	t.Setenv("AUTOEXPOSE_JWT_SECRET", "jwt-secret")

	applyEnvOverrides(cfg)

	checks := []struct {
		field string
		got   string
		want  string
	}{
		{"Platform.ConfigDir", cfg.Platform.ConfigDir, "/ha/config"},
		{"Platform.StorageDir", cfg.Platform.StorageDir, "/ha/storage"},
		{"Export.OutputFile", cfg.Export.OutputFile, "/ha/out.yaml"},
		{"Database.Path", cfg.Database.Path, "/custom/path.db"},
		{"MQTT.Broker.Host", cfg.MQTT.Broker.Host, "mqtt.example.com"},
		{"MQTT.Auth.Username", cfg.MQTT.Auth.Username, "testuser"},
		{"MQTT.Auth.Password", cfg.MQTT.Auth.Password, "testpass"},
		{"API.Host", cfg.API.Host, "192.168.1.1"},
		{"InfluxDB.Token", cfg.InfluxDB.Token, "secret-token"},
		{"Security.JWT.Secret", cfg.Security.JWT.Secret, "jwt-secret"},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %q, want %q", c.field, c.got, c.want)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Export.Debounce != DefaultDebounce {
		t.Errorf("defaultConfig Export.Debounce = %v, want %v", cfg.Export.Debounce, DefaultDebounce)
	}

	if len(cfg.Exposure.NeverExposed) != 1 || cfg.Exposure.NeverExposed[0] != "group.all_locks" {
		t.Errorf("defaultConfig Exposure.NeverExposed = %v, want [group.all_locks]", cfg.Exposure.NeverExposed)
	}

	if cfg.Export.Notification.ID != DefaultNotificationID {
		t.Errorf("defaultConfig notification id = %q, want %q", cfg.Export.Notification.ID, DefaultNotificationID)
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}
}
