package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/alphagov/transition-mappings/internal/c14n"
	"github.com/alphagov/transition-mappings/internal/db"
)

// RecordHostPath stores a path observed on one of the site's hosts and links it to the
// mapping for its canonical path when one exists. Recording the same URL twice returns
// the existing row.
func RecordHostPath(ctx context.Context, dbConn *gorm.DB, site *db.Site, rawURL string) (*db.HostPath, error) {
	hostname, ok := c14n.Host(rawURL)
	if !ok || hostname == "" {
		return nil, fmt.Errorf("%q is not an absolute URL", rawURL)
	}
	var host *db.Host
	for i := range site.Hosts {
		if site.Hosts[i].Hostname == hostname {
			host = &site.Hosts[i]
		}
	}
	if host == nil {
		return nil, fmt.Errorf("host %s is not part of site %s", hostname, site.Abbr)
	}

	path := c14n.Path(rawURL)
	pathHash, c14nHash := c14n.HostPathHashes(path, site.SignificantParams())

	var hostPath db.HostPath
	err := dbConn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where(db.HostPath{HostID: host.ID, PathHash: pathHash}).
			Attrs(db.HostPath{Path: path, C14nPathHash: c14nHash}).
			FirstOrCreate(&hostPath).Error
		if err != nil {
			return err
		}

		var mapping db.Mapping
		err = tx.Where("site_id = ? AND path_hash = ?", site.ID, c14nHash).Limit(1).Find(&mapping).Error
		if err != nil || mapping.ID == 0 {
			return err
		}
		id := mapping.ID
		hostPath.MappingID = &id
		return tx.Model(&hostPath).Update("mapping_id", id).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record host path %s: %w", rawURL, err)
	}
	return &hostPath, nil
}
