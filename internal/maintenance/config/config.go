// Package config loads the service configuration from a YAML file, letting
// environment variables (and a local .env file) override individual keys.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gartstein/maintenance/internal/maintenance/db"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is unset.
var DefaultPath = filepath.Join("internal", "maintenance", "config", "config.yaml")

// Config struct for YAML configuration
type Config struct {
	GRPCPort      int           `yaml:"GRPC_PORT"`
	HTTPPort      int           `yaml:"HTTP_PORT"`
	DBHost        string        `yaml:"DB_HOST"`
	DBPort        int           `yaml:"DB_PORT"`
	DBUser        string        `yaml:"DB_USER"`
	DBPassword    string        `yaml:"DB_PASSWORD"`
	DBName        string        `yaml:"DB_NAME"`
	DBSSLMode     string        `yaml:"DB_SSLMODE"`
	KafkaBrokers  []string      `yaml:"KAFKA_BROKERS"`
	ConsumerGroup string        `yaml:"CONSUMER_GROUP"`
	JWTSecret     string        `yaml:"JWT_SECRET"`
	Topic         string        `yaml:"TOPIC"`
	RedisAddress  string        `yaml:"REDIS_ADDRESS"`
	RedisPassword string        `yaml:"REDIS_PASSWORD"`
	MetricsPrefix string        `yaml:"METRICS_PREFIX"`
	CacheTTL      time.Duration `yaml:"CACHE_TTL"`
	AuthPort      int           `yaml:"AUTH_PORT"`
}

func defaults() Config {
	return Config{
		GRPCPort:      50051,
		HTTPPort:      8080,
		DBPort:        5432,
		DBSSLMode:     "disable",
		ConsumerGroup: "maintenance-scrap-reconciler",
		Topic:         "maintenance.events",
		MetricsPrefix: "maintenance",
		CacheTTL:      30 * time.Second,
		AuthPort:      8081,
	}
}

// Load reads .env if present, then the YAML file at CONFIG_PATH (or
// DefaultPath), then applies environment overrides. A missing YAML file is
// not an error; the defaults and environment are used instead.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = DefaultPath
	}
	return LoadFile(path)
}

// LoadFile reads the YAML file at path and applies environment overrides.
func LoadFile(path string) (*Config, error) {
	cfg := defaults()

	file, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(file, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, err
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("DB_HOST", &c.DBHost)
	str("DB_USER", &c.DBUser)
	str("DB_PASSWORD", &c.DBPassword)
	str("DB_NAME", &c.DBName)
	str("DB_SSLMODE", &c.DBSSLMode)
	str("CONSUMER_GROUP", &c.ConsumerGroup)
	str("JWT_SECRET", &c.JWTSecret)
	str("TOPIC", &c.Topic)
	str("REDIS_ADDRESS", &c.RedisAddress)
	str("REDIS_PASSWORD", &c.RedisPassword)
	str("METRICS_PREFIX", &c.MetricsPrefix)

	for key, dst := range map[string]*int{
		"GRPC_PORT": &c.GRPCPort,
		"HTTP_PORT": &c.HTTPPort,
		"DB_PORT":   &c.DBPort,
		"AUTH_PORT": &c.AuthPort,
	} {
		if err := num(key, dst); err != nil {
			return err
		}
	}

	if v, ok := lookup("KAFKA_BROKERS"); ok {
		c.KafkaBrokers = nil
		for _, broker := range strings.Split(v, ",") {
			if broker = strings.TrimSpace(broker); broker != "" {
				c.KafkaBrokers = append(c.KafkaBrokers, broker)
			}
		}
	}
	if v, ok := lookup("CACHE_TTL"); ok {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CACHE_TTL: %w", err)
		}
		c.CacheTTL = ttl
	}
	return nil
}

// Database returns the store connection settings.
func (c *Config) Database() *db.Config {
	return &db.Config{
		Host:     c.DBHost,
		Port:     c.DBPort,
		User:     c.DBUser,
		Password: c.DBPassword,
		DBName:   c.DBName,
		SSLMode:  c.DBSSLMode,
	}
}
