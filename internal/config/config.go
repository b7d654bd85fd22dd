// Package config provides configuration management.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"orderfinance/internal/costing"
	"orderfinance/internal/logging"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config is the main application configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  logging.Config `yaml:"logging"`
	Engine   EngineConfig   `yaml:"engine"`
	Progress ProgressConfig `yaml:"progress"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         string   `yaml:"port"`
	AllowOrigins []string `yaml:"allow_origins"`
	JWTSecret    string   `yaml:"jwt_secret"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DSN builds the postgres connection string
func (d DatabaseConfig) DSN() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.Name + "?sslmode=" + d.SSLMode
}

// RedisConfig contains the progress store connection. An empty Addr keeps progress in memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// HostedChannelConfig describes a sub-channel routed through a host provider
type HostedChannelConfig struct {
	HostProvider     string   `yaml:"host_provider"`
	Origin           string   `yaml:"origin"`
	SalesChannelTags []string `yaml:"sales_channel_tags"`
	FixedFee         string   `yaml:"fixed_fee"`
	FixedFeeName     string   `yaml:"fixed_fee_name"`
}

// EngineConfig contains cost engine settings
type EngineConfig struct {
	HostedChannels []HostedChannelConfig `yaml:"hosted_channels"`
}

// ProgressConfig contains job progress settings
type ProgressConfig struct {
	// CompletedGrace is how long a completed job stays visible to pollers
	CompletedGrace time.Duration `yaml:"completed_grace"`
}

// Default returns a default configuration
func Default() *Config {
	var hosted []HostedChannelConfig
	for _, hc := range costing.DefaultConfig().HostedChannels {
		hosted = append(hosted, HostedChannelConfig{
			HostProvider:     hc.HostProvider,
			Origin:           hc.Origin,
			SalesChannelTags: hc.SalesChannelTags,
			FixedFee:         hc.FixedFee.StringFixed(2),
			FixedFeeName:     hc.FixedFeeName,
		})
	}
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			AllowOrigins: []string{"http://localhost:5173", "http://127.0.0.1:5173"},
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     "5432",
			User:     "postgres",
			Password: "postgres",
			Name:     "postgres",
			SSLMode:  "disable",
		},
		Logging:  logging.DefaultConfig(),
		Engine:   EngineConfig{HostedChannels: hosted},
		Progress: ProgressConfig{CompletedGrace: 10 * time.Minute},
	}
}

// Load reads an optional YAML file, then applies environment overrides (configs/.env is loaded
// first when present). An empty path or a missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	_ = godotenv.Load("configs/.env")
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if _, err := cfg.Engine.Costing(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")
	setString(&c.Server.Port, "PORT")
	setString(&c.Server.JWTSecret, "JWT_SECRET")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setString(&c.Redis.Password, "REDIS_PASSWORD")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")

	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.Redis.DB = db
	}
	if v := os.Getenv("PROGRESS_COMPLETED_GRACE"); v != "" {
		grace, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid PROGRESS_COMPLETED_GRACE %q: %w", v, err)
		}
		c.Progress.CompletedGrace = grace
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Costing converts the engine section into the engine's own configuration.
func (e EngineConfig) Costing() (costing.Config, error) {
	cfg := costing.Config{}
	for _, hc := range e.HostedChannels {
		fee := decimal.Zero
		if hc.FixedFee != "" {
			parsed, err := decimal.NewFromString(hc.FixedFee)
			if err != nil {
				return costing.Config{}, fmt.Errorf("invalid fixed_fee %q for host %s: %w", hc.FixedFee, hc.HostProvider, err)
			}
			if parsed.IsNegative() {
				return costing.Config{}, fmt.Errorf("fixed_fee %q for host %s must not be negative", hc.FixedFee, hc.HostProvider)
			}
			fee = parsed
		}
		cfg.HostedChannels = append(cfg.HostedChannels, costing.HostedChannel{
			HostProvider:     hc.HostProvider,
			Origin:           hc.Origin,
			SalesChannelTags: hc.SalesChannelTags,
			FixedFee:         fee,
			FixedFeeName:     hc.FixedFeeName,
		})
	}
	return cfg, nil
}
