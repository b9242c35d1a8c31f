package service

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/alphagov/transition-mappings/internal/db"
)

// CreateSite stores a site with its hosts. queryParams is a colon separated list of
// significant query keys.
func CreateSite(ctx context.Context, dbConn *gorm.DB, abbr, queryParams string, hostnames []string) (*db.Site, error) {
	abbr = strings.TrimSpace(abbr)
	if abbr == "" {
		return nil, fmt.Errorf("site abbreviation cannot be empty")
	}

	site := db.Site{Abbr: abbr, QueryParams: queryParams}
	for _, hostname := range hostnames {
		if hostname = strings.ToLower(strings.TrimSpace(hostname)); hostname != "" {
			site.Hosts = append(site.Hosts, db.Host{Hostname: hostname})
		}
	}
	if err := dbConn.WithContext(ctx).Create(&site).Error; err != nil {
		return nil, fmt.Errorf("failed to create site %s: %w", abbr, err)
	}
	return &site, nil
}

// GetSiteByAbbr retrieves a site and its hosts by abbreviation
func GetSiteByAbbr(ctx context.Context, dbConn *gorm.DB, abbr string) (*db.Site, error) {
	var site db.Site
	err := dbConn.WithContext(ctx).Preload("Hosts").Where("abbr = ?", abbr).First(&site).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &site, nil
}

// SitesByHostname loads every site keyed by each of its lower-cased hostnames
func SitesByHostname(ctx context.Context, dbConn *gorm.DB) (map[string]*db.Site, error) {
	var sites []db.Site
	if err := dbConn.WithContext(ctx).Preload("Hosts").Find(&sites).Error; err != nil {
		return nil, fmt.Errorf("failed to load sites: %w", err)
	}

	byHost := make(map[string]*db.Site)
	for i := range sites {
		for _, h := range sites[i].Hosts {
			byHost[strings.ToLower(h.Hostname)] = &sites[i]
		}
	}
	return byHost, nil
}
