package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/alphagov/transition-mappings/internal/config"
	"github.com/alphagov/transition-mappings/internal/db"
	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/service"
)

// SeedConfig holds seed configuration
type SeedConfig struct {
	Username    string
	Password    string
	Force       bool
	Site        string
	Hosts       string
	QueryParams string
}

// NewSeedConfig creates a new seed configuration from flags
func NewSeedConfig() *SeedConfig {
	username := flag.String("username", "admin", "Admin username")
	password := flag.String("password", "adminpass", "Admin password")
	force := flag.Bool("force", false, "Force recreation of admin user")
	site := flag.String("site", "", "Abbreviation of a site to create")
	hosts := flag.String("hosts", "", "Comma separated hostnames of the site")
	queryParams := flag.String("query-params", "", "Colon separated significant query keys of the site")

	flag.Parse()

	return &SeedConfig{
		Username:    *username,
		Password:    *password,
		Force:       *force,
		Site:        *site,
		Hosts:       *hosts,
		QueryParams: *queryParams,
	}
}

func main() {
	seed := NewSeedConfig()
	if err := seed.validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}

	if err := run(context.Background(), cfg, seed, log); err != nil {
		log.Error("Database seeding failed", logger.Error(err))
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}

func (s *SeedConfig) validate() error {
	switch {
	case s.Username == "":
		return fmt.Errorf("username cannot be empty")
	case len(s.Password) < 6:
		return fmt.Errorf("password must be at least 6 characters long")
	case s.Site != "" && strings.TrimSpace(s.Hosts) == "":
		return fmt.Errorf("a site needs at least one host")
	}
	return nil
}

func run(ctx context.Context, cfg *config.Config, seed *SeedConfig, log logger.Logger) error {
	log.Info("Starting database seeding")
	dbConn, err := db.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := seedAdmin(ctx, dbConn, seed, log); err != nil {
		return err
	}
	if seed.Site != "" {
		site, err := service.CreateSite(ctx, dbConn, seed.Site, seed.QueryParams, strings.Split(seed.Hosts, ","))
		if err != nil {
			return err
		}
		log.Info("Created site",
			logger.String("abbr", site.Abbr),
			logger.Uint("id", site.ID),
			logger.Int("hosts", len(site.Hosts)))
	}

	log.Info("Database seeding completed successfully")
	return nil
}

func seedAdmin(ctx context.Context, dbConn *gorm.DB, seed *SeedConfig, log logger.Logger) error {
	existing, err := service.GetUserByUsername(ctx, dbConn, seed.Username)
	switch {
	case err == nil:
		if !seed.Force {
			log.Info("Admin user already exists, use -force to recreate", logger.String("username", seed.Username))
			return nil
		}
		log.Info("Recreating admin user", logger.String("username", seed.Username))
		if err := dbConn.WithContext(ctx).Delete(existing).Error; err != nil {
			return fmt.Errorf("failed to delete existing user: %w", err)
		}
	case !errors.Is(err, service.ErrNotFound):
		return err
	}

	user, err := service.CreateUser(ctx, dbConn, seed.Username, seed.Password)
	if err != nil {
		return err
	}
	log.Info("Created admin user", logger.String("username", user.Username), logger.Uint("id", user.ID))
	return nil
}
