package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// MemoryDatabase selects the in-memory storage instead of SQLite.
const MemoryDatabase = ":memory:"

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8081"},
		Database: DatabaseConfig{URL: "tanks.db"},
		Log:      LogConfig{Level: "info"},
	}
}

// LoadConfig reads the YAML file at path (skipped when empty), then applies
// the TANKS_* environment overrides, including those from a .env file.
func LoadConfig(path string) (*Config, error) {
	config := Default()

	if path != "" {
		file, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func applyEnv(c *Config) {
	if v := os.Getenv("TANKS_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TANKS_DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("TANKS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) Validate() error {
	if len(c.Database.URL) < 3 {
		return fmt.Errorf("database url %q is too short", c.Database.URL)
	}
	if c.Server.Addr == "" {
		return errors.New("server addr must not be empty")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Log.Level)
	}
	return nil
}
