package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ServiceName    = "catering"
	ServiceVersion = "1.0.0"
	TracesPath     = "/v1/traces"
	LogsPath       = "/v1/logs"
	ExportTimeout  = 10 * time.Second
	MaxQueueSize   = 2048
)

// Config is the full service configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Business  BusinessConfig  `yaml:"business"`
	Auth      AuthConfig      `yaml:"auth"`
	Redis     RedisConfig     `yaml:"redis"`
	Notify    NotifyConfig    `yaml:"notify"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Port        int `yaml:"port"`
	MetricsPort int `yaml:"metrics_port"`
}

type DatabaseConfig struct {
	Driver       string `yaml:"driver"`
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	Seed         bool   `yaml:"seed"`
}

// BusinessConfig controls operating-day boundaries
type BusinessConfig struct {
	Timezone        string        `yaml:"timezone"`
	ArchiveInterval time.Duration `yaml:"archive_interval"`
}

// Location resolves the configured timezone, falling back to UTC
func (b BusinessConfig) Location() *time.Location {
	loc, err := time.LoadLocation(b.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RedisConfig is optional; an empty Addr disables the availability cache
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type NotifyConfig struct {
	Driver       string   `yaml:"driver"`
	AMQPURL      string   `yaml:"amqp_url"`
	Exchange     string   `yaml:"exchange"`
	KafkaBrokers []string `yaml:"kafka_brokers"`
	KafkaTopic   string   `yaml:"kafka_topic"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	AuthHeader   string `yaml:"auth_header"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Port: 8080, MetricsPort: 9090},
		Database: DatabaseConfig{Driver: "sqlite3", DSN: "catering.db", MaxOpenConns: 10},
		Business: BusinessConfig{Timezone: "Europe/Bucharest", ArchiveInterval: 5 * time.Minute},
		Redis:    RedisConfig{TTL: 30 * time.Second},
		Notify: NotifyConfig{
			Driver:     "none",
			Exchange:   "catering.events",
			KafkaTopic: "catering-events",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path (a missing file is not an error),
// then a .env file, then CATERING_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	_ = godotenv.Load()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := os.LookupEnv(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = n
		}
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		if v, ok := os.LookupEnv(key); ok {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	str("CATERING_DB_DRIVER", &c.Database.Driver)
	str("CATERING_DB_DSN", &c.Database.DSN)
	str("CATERING_TIMEZONE", &c.Business.Timezone)
	str("CATERING_JWT_SECRET", &c.Auth.JWTSecret)
	str("CATERING_REDIS_ADDR", &c.Redis.Addr)
	str("CATERING_REDIS_PASSWORD", &c.Redis.Password)
	str("CATERING_NOTIFY_DRIVER", &c.Notify.Driver)
	str("CATERING_AMQP_URL", &c.Notify.AMQPURL)
	str("CATERING_KAFKA_TOPIC", &c.Notify.KafkaTopic)
	str("CATERING_OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
	str("CATERING_OTLP_AUTH_HEADER", &c.Telemetry.AuthHeader)
	str("CATERING_LOG_LEVEL", &c.Log.Level)
	if v, ok := os.LookupEnv("CATERING_KAFKA_BROKERS"); ok {
		c.Notify.KafkaBrokers = strings.Split(v, ",")
	}

	for key, dst := range map[string]*int{
		"CATERING_PORT":         &c.Server.Port,
		"CATERING_METRICS_PORT": &c.Server.MetricsPort,
		"CATERING_REDIS_DB":     &c.Redis.DB,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}
	if err := dur("CATERING_ARCHIVE_INTERVAL", &c.Business.ArchiveInterval); err != nil {
		return err
	}
	return dur("CATERING_REDIS_TTL", &c.Redis.TTL)
}

// Validate checks the values the server cannot start without
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite3", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Notify.Driver {
	case "", "none", "amqp", "kafka":
	default:
		return fmt.Errorf("unsupported notify driver %q", c.Notify.Driver)
	}
	if c.Notify.Driver == "kafka" && len(c.Notify.KafkaBrokers) == 0 {
		return errors.New("kafka notify driver needs at least one broker")
	}
	if c.Business.ArchiveInterval <= 0 {
		return errors.New("business.archive_interval must be positive")
	}
	if _, err := time.LoadLocation(c.Business.Timezone); err != nil {
		return fmt.Errorf("business.timezone: %w", err)
	}
	return nil
}
