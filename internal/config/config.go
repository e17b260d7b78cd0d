package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Mailing  MailingConfig  `yaml:"mailing"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port"`
	Host                string   `yaml:"host"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
	ShutdownTimeoutSecs int      `yaml:"shutdown_timeout_seconds"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// On ECS/container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("AWS_EXECUTION_ENV") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// ShutdownTimeout returns the graceful shutdown window as a duration
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSecs) * time.Second
}

// DatabaseConfig holds the PostgreSQL connection settings. The URL is handed
// to the store explicitly; nothing else reads it from the environment.
type DatabaseConfig struct {
	URL                 string `yaml:"url"`
	MaxOpenConns        int    `yaml:"max_open_conns"`
	MaxIdleConns        int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMins int    `yaml:"conn_max_lifetime_minutes"`
	StatementTimeoutMs  int    `yaml:"statement_timeout_ms"`
}

// ConnMaxLifetime returns the connection lifetime as a duration
func (c DatabaseConfig) ConnMaxLifetime() time.Duration {
	return time.Duration(c.ConnMaxLifetimeMins) * time.Minute
}

// DSN returns the connection URL with a connect timeout and statement
// timeout appended when they are not already present.
func (c DatabaseConfig) DSN() string {
	dsn := c.URL
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.Contains(dsn, "connect_timeout") {
		dsn += sep + "connect_timeout=5"
		sep = "&"
	}
	if c.StatementTimeoutMs > 0 && !strings.Contains(dsn, "statement_timeout") {
		dsn += sep + "options=-c%20statement_timeout%3D" + strconv.Itoa(c.StatementTimeoutMs)
	}
	return dsn
}

// RedisConfig holds the optional Redis connection used for the broadcast
// delivery signal. An empty URL selects the Postgres NOTIFY fallback.
type RedisConfig struct {
	URL string `yaml:"url"`
}

// MailingConfig holds broadcast and contact policy settings
type MailingConfig struct {
	DefaultFrom      string `yaml:"default_from"`
	NotifyChannel    string `yaml:"notify_channel"`
	SignupSubscribed bool   `yaml:"signup_subscribed"`
	SearchLimit      int    `yaml:"search_limit"`
	// LinkHosts lists the hosts tracked links may redirect to. Empty
	// disables redirects.
	LinkHosts []string `yaml:"link_hosts"`
	// RequireConsent rejects signups without consent to processing.
	// Defaults to true when unset.
	RequireConsent *bool `yaml:"require_consent"`
}

// ConsentRequired reports whether signups must carry explicit consent.
func (c MailingConfig) ConsentRequired() bool {
	return c.RequireConsent == nil || *c.RequireConsent
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether email addresses should be masked in logs. It
// defaults to true when unset.
func (c LogConfig) Redact() bool {
	return c.RedactPII == nil || *c.RedactPII
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// Default returns a configuration populated only with defaults. The server
// falls back to it when no config file exists.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}
	if cfg.Server.ShutdownTimeoutSecs == 0 {
		cfg.Server.ShutdownTimeoutSecs = 15
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 20
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetimeMins == 0 {
		cfg.Database.ConnMaxLifetimeMins = 30
	}
	if cfg.Mailing.DefaultFrom == "" {
		cfg.Mailing.DefaultFrom = "noreply@tailwind.dev"
	}
	if cfg.Mailing.NotifyChannel == "" {
		cfg.Mailing.NotifyChannel = "broadcasts"
	}
	if cfg.Mailing.SearchLimit == 0 {
		cfg.Mailing.SearchLimit = 50
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration from file and overrides with environment variables.
// A missing config file is not an error; defaults plus environment apply.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if os.IsNotExist(err) {
		cfg, err = Default(), nil
	}
	if err != nil {
		return nil, err
	}

	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	} else if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("DEFAULT_FROM"); v != "" {
		cfg.Mailing.DefaultFrom = v
	}
	if v := os.Getenv("NOTIFY_CHANNEL"); v != "" {
		cfg.Mailing.NotifyChannel = v
	}
	if v := os.Getenv("LINK_HOSTS"); v != "" {
		cfg.Mailing.LinkHosts = nil
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.Mailing.LinkHosts = append(cfg.Mailing.LinkHosts, h)
			}
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	return cfg, nil
}
