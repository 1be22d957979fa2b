// Package config loads service configuration from defaults, an optional
// YAML file and environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/pushrelay/pushrelay/internal/database"
)

// EnvConfigFile names the environment variable holding the YAML file path.
const EnvConfigFile = "RELAY_CONFIG_FILE"

// Store drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

// Push providers.
const (
	ProviderFCM = "fcm"
	ProviderLog = "log"
)

// Config is the complete service configuration.
type Config struct {
	Port     string `yaml:"port"`
	Env      string `yaml:"env"`
	LogLevel string `yaml:"logLevel"`
	// RequireTLS rejects requests forwarded over plain HTTP.
	RequireTLS bool            `yaml:"requireTls"`
	Store      StoreConfig     `yaml:"store"`
	Push       PushConfig      `yaml:"push"`
	RateLimit  RateLimitConfig `yaml:"rateLimit"`
	Telemetry  TelemetryConfig `yaml:"telemetry"`
	PubSub     PubSubConfig    `yaml:"pubsub"`
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	Driver   string                `yaml:"driver"`
	Postgres database.Config       `yaml:"postgres"`
	SQLite   database.SQLiteConfig `yaml:"sqlite"`
}

// PushConfig configures the push dispatcher and channel.
type PushConfig struct {
	Provider      string        `yaml:"provider"`
	Title         string        `yaml:"title"`
	Timeout       time.Duration `yaml:"timeout"`
	RatePerSecond float64       `yaml:"ratePerSecond"`
	Burst         int           `yaml:"burst"`
	FCM           FCMConfig     `yaml:"fcm"`
}

// FCMConfig configures the Firebase Cloud Messaging channel.
type FCMConfig struct {
	ProjectID       string `yaml:"projectId"`
	CredentialsFile string `yaml:"credentialsFile"`
	BaseURL         string `yaml:"baseUrl"`
}

// RateLimitConfig configures inbound per-client request limits.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SampleRatio  float64 `yaml:"sampleRatio"`
}

// PubSubConfig configures the asynchronous send worker.
type PubSubConfig struct {
	ProjectID      string `yaml:"projectId"`
	Subscription   string `yaml:"subscription"`
	MaxOutstanding int    `yaml:"maxOutstanding"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Port:     "8080",
		Env:      "development",
		LogLevel: "info",
		Store: StoreConfig{
			Driver:   DriverSQLite,
			Postgres: database.DefaultConfig(),
			SQLite: database.SQLiteConfig{
				Path:        "data/pushrelay.db",
				BusyTimeout: 5 * time.Second,
			},
		},
		Push: PushConfig{
			Provider:      ProviderLog,
			Timeout:       10 * time.Second,
			RatePerSecond: 50,
			Burst:         10,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 120,
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: "localhost:4317",
			SampleRatio:  1,
		},
		PubSub: PubSubConfig{
			MaxOutstanding: 10,
		},
	}
}

// Load builds the configuration. An empty path falls back to the file
// named by RELAY_CONFIG_FILE; no file at all is fine.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = os.Getenv(EnvConfigFile)
	}
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	setString(&c.Port, "APP_PORT")
	setString(&c.Env, "APP_ENV")
	setString(&c.LogLevel, "LOG_LEVEL")

	setString(&c.Store.Driver, "STORE_DRIVER")
	setString(&c.Store.SQLite.Path, "SQLITE_PATH")
	pg := &c.Store.Postgres
	setString(&pg.Host, "DB_HOST")
	errs = append(errs, setInt(&pg.Port, "DB_PORT"))
	setString(&pg.User, "DB_USER")
	setString(&pg.Password, "DB_PASSWORD")
	setString(&pg.Database, "DB_NAME")
	setString(&pg.SSLMode, "DB_SSL_MODE")
	errs = append(errs,
		setInt(&pg.MaxOpenConns, "DB_MAX_OPEN_CONNS"),
		setInt(&pg.MaxIdleConns, "DB_MAX_IDLE_CONNS"),
		setDuration(&pg.ConnMaxLifetime, "DB_CONN_MAX_LIFETIME"),
	)

	setString(&c.Push.Provider, "PUSH_PROVIDER")
	setString(&c.Push.Title, "PUSH_TITLE")
	errs = append(errs,
		setDuration(&c.Push.Timeout, "PUSH_TIMEOUT"),
		setFloat(&c.Push.RatePerSecond, "PUSH_RATE"),
		setInt(&c.Push.Burst, "PUSH_BURST"),
	)
	setString(&c.Push.FCM.ProjectID, "FCM_PROJECT_ID")
	setString(&c.Push.FCM.CredentialsFile, "FCM_CREDENTIALS_FILE")

	errs = append(errs,
		setBool(&c.RequireTLS, "REQUIRE_TLS"),
		setBool(&c.RateLimit.Enabled, "RATE_LIMIT_ENABLED"),
		setInt(&c.RateLimit.RequestsPerMinute, "RATE_LIMIT_PER_MINUTE"),
		setBool(&c.Telemetry.Enabled, "OTEL_ENABLED"),
		setFloat(&c.Telemetry.SampleRatio, "OTEL_SAMPLE_RATIO"),
	)
	setString(&c.Telemetry.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	setString(&c.PubSub.ProjectID, "PUBSUB_PROJECT_ID")
	setString(&c.PubSub.Subscription, "PUBSUB_SUBSCRIPTION")
	errs = append(errs, setInt(&c.PubSub.MaxOutstanding, "PUBSUB_MAX_OUTSTANDING"))

	return errors.Join(errs...)
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Driver {
	case DriverPostgres, DriverMemory:
	case DriverSQLite:
		if strings.TrimSpace(c.Store.SQLite.Path) == "" {
			errs = append(errs, errors.New("store.sqlite.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store driver %q", c.Store.Driver))
	}

	switch c.Push.Provider {
	case ProviderLog:
	case ProviderFCM:
		if c.Push.FCM.ProjectID == "" || c.Push.FCM.CredentialsFile == "" {
			errs = append(errs, errors.New("push.fcm.projectId and push.fcm.credentialsFile are required for the fcm provider"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown push provider %q", c.Push.Provider))
	}

	if c.Push.Timeout <= 0 {
		errs = append(errs, errors.New("push.timeout must be positive"))
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		errs = append(errs, errors.New("rateLimit.requestsPerMinute must be positive"))
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		errs = append(errs, errors.New("telemetry.sampleRatio must be between 0 and 1"))
	}

	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setFloat(dst *float64, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func setBool(dst *bool, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
