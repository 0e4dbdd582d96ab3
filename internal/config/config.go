package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"minute/internal/database"
	"minute/internal/events"
	"minute/internal/logging"
	"minute/internal/telemetry"
)

// EnvPrefix prefixes every environment override, e.g. MINUTE_SERVER_PORT.
const EnvPrefix = "MINUTE_"

// Config represents the application configuration.
type Config struct {
	Server   ServerConfig     `yaml:"server"`
	Metrics  MetricsConfig    `yaml:"metrics"`
	Database database.Config  `yaml:"database"`
	Log      logging.Config   `yaml:"log"`
	Kafka    events.Config    `yaml:"kafka"`
	Tracing  telemetry.Config `yaml:"tracing"`
	Admin    AdminConfig      `yaml:"admin"`
	// Seed fills an empty database with demo data at startup.
	Seed bool `yaml:"seed"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

type AdminConfig struct {
	// AllowReset exposes POST /admin/reset-db.
	AllowReset bool `yaml:"allow_reset"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Database: database.Config{
			Driver: database.DriverSQLite,
			DSN:    "minute.db",
		},
		Log: logging.Config{
			Level: "info",
		},
		Kafka: events.Config{
			Topic: "minute.orders",
		},
		Tracing: telemetry.Config{
			ServiceName: "minute",
		},
	}
}

// Load reads path over the defaults and then applies environment overrides.
// A missing file is not an error when path is empty. The result is not
// validated so callers can apply flag overrides first.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type lookupFunc func(key string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	integer("SERVER_PORT", &c.Server.Port)
	boolean("METRICS_ENABLED", &c.Metrics.Enabled)
	integer("METRICS_PORT", &c.Metrics.Port)
	str("METRICS_PATH", &c.Metrics.Path)
	str("DATABASE_DRIVER", &c.Database.Driver)
	str("DATABASE_DSN", &c.Database.DSN)
	boolean("DATABASE_LOG_QUERIES", &c.Database.LogQueries)
	str("LOG_LEVEL", &c.Log.Level)
	boolean("LOG_DEVELOPMENT", &c.Log.Development)
	if v, ok := lookup(EnvPrefix + "KAFKA_BROKERS"); ok {
		c.Kafka.Brokers = splitList(v)
	}
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("TRACING_ENDPOINT", &c.Tracing.Endpoint)
	boolean("TRACING_INSECURE", &c.Tracing.Insecure)
	boolean("ADMIN_ALLOW_RESET", &c.Admin.AllowReset)
	boolean("SEED", &c.Seed)

	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Metrics.Enabled {
		if c.Metrics.Port <= 0 || c.Metrics.Port > 65535 {
			errs = append(errs, fmt.Errorf("metrics.port %d out of range", c.Metrics.Port))
		}
		if c.Metrics.Port == c.Server.Port {
			errs = append(errs, errors.New("metrics.port must differ from server.port"))
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			errs = append(errs, fmt.Errorf("metrics.path %q must start with /", c.Metrics.Path))
		}
	}
	switch c.Database.Driver {
	case database.DriverSQLite, "sqlite":
	case database.DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", c.Database.Driver))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		errs = append(errs, errors.New("kafka.topic is required when brokers are set"))
	}
	return errors.Join(errs...)
}
