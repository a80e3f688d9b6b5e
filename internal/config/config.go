// Package config loads the KMS host's configuration from a YAML file
// and KMSD_*-prefixed environment variables over built-in defaults,
// validates it, and builds the plain structs the core packages consume
// (server.Config, dispatch.Config, identity.ServerIdentity). This is
// the "configuration (consumed)" collaborator spec.md §6 names — the
// core never imports viper, mapstructure, or the validator directly.
//
// Grounded on the teacher's pkg/config.Config: a single struct composed
// of per-concern sub-configs, loaded with viper + mapstructure decode
// hooks and checked with go-playground/validator `validate` tags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is the top-level KMS host configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging" validate:"required"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Crypto    CryptoConfig    `mapstructure:"crypto"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
}

// LoggingConfig controls internal/logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=text json"`
	Output string `mapstructure:"output" validate:"required"`
}

// TelemetryConfig controls internal/telemetry's OTLP tracing.
type TelemetryConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	Endpoint   string  `mapstructure:"endpoint"`
	Insecure   bool    `mapstructure:"insecure"`
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1"`
}

// MetricsConfig controls the Prometheus HTTP exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address" validate:"omitempty,hostname_port"`
}

// ServerConfig carries the server-loop knobs (spec.md §4.7, §6).
type ServerConfig struct {
	Addresses       []string      `mapstructure:"addresses"`
	MaxConnections  int           `mapstructure:"max_connections" validate:"min=0"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

// CryptoConfig carries the EPID/HWID and activation-interval knobs of
// spec.md §4.5-§4.6.
type CryptoConfig struct {
	EpidOverride              string `mapstructure:"epid_override"`
	HwidOverrideHex           string `mapstructure:"hwid_override_hex" validate:"omitempty,len=16,hexadecimal"`
	ReportedClientCount       uint32 `mapstructure:"reported_client_count"`
	MaxClients                uint32 `mapstructure:"max_clients"`
	ActivationIntervalMinutes uint32 `mapstructure:"activation_interval_minutes"`
	RenewalIntervalMinutes    uint32 `mapstructure:"renewal_interval_minutes"`
}

// DatabaseConfig selects and configures the ClientStore backend
// (spec.md §6's persistence interface).
type DatabaseConfig struct {
	// Driver is "memory" (default) or "sqlite".
	Driver string `mapstructure:"driver" validate:"omitempty,oneof=memory sqlite"`
	// Path is the SQLite database file path, used only when Driver is
	// "sqlite".
	Path string `mapstructure:"path"`
}

const envPrefix = "KMSD"

// Load reads configuration from defaults, the config file (configPath
// if non-empty, otherwise kmsd.yaml searched in "." and then the default
// config directory), and environment variables (KMSD_* prefix, e.g.
// KMSD_SERVER_ADDRESSES), in that order of increasing precedence, then
// validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	} else {
		v.SetConfigName("kmsd")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(defaultConfigDir())
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("config: read config file: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate runs go-playground/validator's struct tags over cfg.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config: invalid configuration: %w", err)
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		return fmt.Errorf("config: invalid configuration: database.path is required when database.driver is sqlite")
	}
	return nil
}

// Default returns the configuration the server runs with when neither
// the config file nor an environment variable overrides a field.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "INFO", Format: "text", Output: "stdout"},
		Telemetry: TelemetryConfig{
			Enabled:    false,
			Endpoint:   "localhost:4317",
			Insecure:   true,
			SampleRate: 1.0,
		},
		Metrics: MetricsConfig{Enabled: false, Address: ":9090"},
		Server: ServerConfig{
			Addresses:       []string{":1688"},
			MaxConnections:  0,
			ReadTimeout:     10 * time.Second,
			IdleTimeout:     30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Crypto: CryptoConfig{
			ReportedClientCount:       50,
			MaxClients:                100,
			ActivationIntervalMinutes: 120,
			RenewalIntervalMinutes:    10080,
		},
		Database: DatabaseConfig{Driver: "memory"},
	}
}

// setDefaults registers every field of Default() as a viper default, so
// Unmarshal fills in fields untouched by the config file or environment
// rather than decoding them as Go zero values (Viper resolves a bound
// key to its environment value, then config value, then this default,
// in that order, so registering defaults here is what makes that
// precedence chain meaningful instead of just zeroing everything).
func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.output", d.Logging.Output)
	v.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	v.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	v.SetDefault("telemetry.insecure", d.Telemetry.Insecure)
	v.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.address", d.Metrics.Address)
	v.SetDefault("server.addresses", d.Server.Addresses)
	v.SetDefault("server.max_connections", d.Server.MaxConnections)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("crypto.epid_override", d.Crypto.EpidOverride)
	v.SetDefault("crypto.hwid_override_hex", d.Crypto.HwidOverrideHex)
	v.SetDefault("crypto.reported_client_count", d.Crypto.ReportedClientCount)
	v.SetDefault("crypto.max_clients", d.Crypto.MaxClients)
	v.SetDefault("crypto.activation_interval_minutes", d.Crypto.ActivationIntervalMinutes)
	v.SetDefault("crypto.renewal_interval_minutes", d.Crypto.RenewalIntervalMinutes)
	v.SetDefault("database.driver", d.Database.Driver)
	v.SetDefault("database.path", d.Database.Path)
}

// bindEnvKeys explicitly registers every overridable key with viper.
// AutomaticEnv alone only resolves a key once viper already knows about
// it; BindEnv makes each key resolvable from KMSD_* even on a run with
// no config file present, where the key would otherwise only come from
// setDefaults.
func bindEnvKeys(v *viper.Viper) {
	for _, key := range []string{
		"logging.level", "logging.format", "logging.output",
		"telemetry.enabled", "telemetry.endpoint", "telemetry.insecure", "telemetry.sample_rate",
		"metrics.enabled", "metrics.address",
		"server.addresses", "server.max_connections", "server.read_timeout", "server.idle_timeout", "server.shutdown_timeout",
		"crypto.epid_override", "crypto.hwid_override_hex", "crypto.reported_client_count",
		"crypto.max_clients", "crypto.activation_interval_minutes", "crypto.renewal_interval_minutes",
		"database.driver", "database.path",
	} {
		_ = v.BindEnv(key)
	}
}

func defaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "kmsd")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "kmsd")
}
