package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStateKey is the document key the auction state is stored under.
const DefaultStateKey = "cpl-auction-state-v1"

// Environment variables that override secrets from the YAML file.
const (
	EnvDiscordToken     = "AUCTION_DISCORD_TOKEN"
	EnvDatabasePassword = "AUCTION_DATABASE_PASSWORD"
)

// Config represents the application configuration.
type Config struct {
	Discord        DiscordConfig        `yaml:"discord"`
	Database       DatabaseConfig       `yaml:"database"`
	Server         ServerConfig         `yaml:"server"`
	Telemetry      TelemetryConfig      `yaml:"telemetry"`
	LeaderElection LeaderElectionConfig `yaml:"leader_election"`
	Auth           AuthConfig           `yaml:"auth"`
	Auction        AuctionConfig        `yaml:"auction"`
}

// DiscordConfig holds Discord bot settings.
type DiscordConfig struct {
	Token   string `yaml:"token"`
	GuildID string `yaml:"guild_id"`
}

// DatabaseConfig holds store connection settings.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // "sqlx", "sqlite" or "memory"
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	// Path is the database file used by the sqlite driver.
	Path string `yaml:"path"`
}

// DSN returns the Postgres connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// TelemetryConfig holds OpenTelemetry settings.
type TelemetryConfig struct {
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version"`
	OTLPEndpoint   string `yaml:"otlp_endpoint"`
	Insecure       bool   `yaml:"insecure"`
	LogLevel       string `yaml:"log_level"`
}

// LeaderElectionConfig holds Kubernetes leader election settings.
type LeaderElectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Identity       string        `yaml:"identity"` // empty means POD_NAME or the hostname
	LeaseName      string        `yaml:"lease_name"`
	LeaseNamespace string        `yaml:"lease_namespace"`
	LeaseDuration  time.Duration `yaml:"lease_duration"`
	RenewDeadline  time.Duration `yaml:"renew_deadline"`
	RetryPeriod    time.Duration `yaml:"retry_period"`
}

// AuthConfig lists the Discord identities allowed to run the auction.
type AuthConfig struct {
	AdminUserIDs []string `yaml:"admin_user_ids"`
	AdminRoleIDs []string `yaml:"admin_role_ids"`
}

// AuctionConfig holds ledger settings.
type AuctionConfig struct {
	StateKey string `yaml:"state_key"`
	// Seed fixes the random draw sequence. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`
}

// Load reads a YAML configuration file from the given path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the configuration used when a key is absent from the file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:  "sqlite",
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
			Path:    "auction.db",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "auctionbot",
			ServiceVersion: "0.1.0",
			LogLevel:       "info",
		},
		LeaderElection: LeaderElectionConfig{
			Enabled:        false,
			LeaseName:      "auctionbot-leader",
			LeaseNamespace: "default",
			LeaseDuration:  15 * time.Second,
			RenewDeadline:  10 * time.Second,
			RetryPeriod:    2 * time.Second,
		},
		Auction: AuctionConfig{
			StateKey: DefaultStateKey,
		},
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvDiscordToken); v != "" {
		c.Discord.Token = v
	}
	if v := os.Getenv(EnvDatabasePassword); v != "" {
		c.Database.Password = v
	}
}

// validate checks configuration invariants.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlx", "memory":
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("sqlite driver requires database.path")
		}
	default:
		return fmt.Errorf("unsupported database driver %q: must be \"sqlx\", \"sqlite\" or \"memory\"", c.Database.Driver)
	}
	if c.Auction.StateKey == "" {
		return fmt.Errorf("auction.state_key must not be empty")
	}
	switch c.Telemetry.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.Telemetry.LogLevel)
	}
	return nil
}
