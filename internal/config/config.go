// Package config loads service configuration from the environment.
//
// Values come from process environment variables. A .env.local and a .env file in the working
// directory are loaded first when present; variables already set in the environment win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"

	"github.com/alphagov/transition-mappings/internal/db"
	"github.com/alphagov/transition-mappings/internal/logger"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	Database  db.Config
	Auth      AuthConfig
	Redirects RedirectConfig
	Worker    WorkerConfig
	Whitehall WhitehallConfig
	Log       logger.Config
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"30s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout     time.Duration `env:"IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// AuthConfig holds JWT settings
type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET" envDefault:"changeme"`
	TokenDuration time.Duration `env:"JWT_DURATION" envDefault:"24h"`
}

// RedirectConfig holds the allow-list for redirect targets.
// An entry matches the host itself and any subdomain of it.
type RedirectConfig struct {
	AllowedHosts []string `env:"REDIRECT_ALLOWED_HOSTS" envSeparator:"," envDefault:"gov.uk"`
	SupportEmail string   `env:"SUPPORT_EMAIL" envDefault:"transition-dev@digital.cabinet-office.gov.uk"`
}

// WorkerConfig holds the async batch processing pool settings
type WorkerConfig struct {
	Workers   int `env:"BATCH_WORKERS" envDefault:"2"`
	QueueSize int `env:"BATCH_QUEUE_SIZE" envDefault:"100"`
}

// WhitehallConfig holds settings for the Whitehall mappings import
type WhitehallConfig struct {
	URL      string        `env:"WHITEHALL_MAPPINGS_URL" envDefault:"https://whitehall-admin.production.alphagov.co.uk/government/mappings.csv"`
	Username string        `env:"WHITEHALL_USERNAME"`
	Password string        `env:"WHITEHALL_PASSWORD"`
	TmpDir   string        `env:"WHITEHALL_TMP_DIR" envDefault:"tmp"`
	Timeout  time.Duration `env:"WHITEHALL_TIMEOUT" envDefault:"10m"`
}

// Load reads .env files and parses the environment into a Config
func Load() (*Config, error) {
	for _, file := range []string{".env.local", ".env"} {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	hosts := c.Redirects.AllowedHosts[:0]
	for _, h := range c.Redirects.AllowedHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts = append(hosts, h)
		}
	}
	c.Redirects.AllowedHosts = hosts
	c.Database.Driver = strings.ToLower(c.Database.Driver)
}
