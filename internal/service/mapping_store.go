package service

import (
	"context"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alphagov/transition-mappings/internal/batch"
	"github.com/alphagov/transition-mappings/internal/db"
)

// hashChunkSize bounds the number of placeholders in a single IN clause
const hashChunkSize = 500

// MappingStore persists mappings and batch entries with gorm
type MappingStore struct {
	db *gorm.DB
}

// NewMappingStore creates a store over dbConn
func NewMappingStore(dbConn *gorm.DB) *MappingStore {
	return &MappingStore{db: dbConn}
}

// FindMappingsByPathHash returns the mappings of a site whose path hash is in hashes
func (s *MappingStore) FindMappingsByPathHash(ctx context.Context, siteID uint, hashes []string) ([]db.Mapping, error) {
	var mappings []db.Mapping
	for start := 0; start < len(hashes); start += hashChunkSize {
		end := min(start+hashChunkSize, len(hashes))
		var chunk []db.Mapping
		err := s.db.WithContext(ctx).
			Where("site_id = ? AND path_hash IN ?", siteID, hashes[start:end]).
			Find(&chunk).Error
		if err != nil {
			return nil, fmt.Errorf("failed to find mappings: %w", err)
		}
		mappings = append(mappings, chunk...)
	}
	return mappings, nil
}

// CreateMapping inserts m and links the host paths that canonicalize to it.
// batch.ErrMappingConflict is returned when the site already has a mapping for the path.
func (s *MappingStore) CreateMapping(ctx context.Context, m *db.Mapping) error {
	if m.TagList == nil {
		m.TagList = datatypes.JSONSlice[string]{}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(m)
		if result.Error != nil {
			return fmt.Errorf("failed to create mapping for %s: %w", m.Path, result.Error)
		}
		if result.RowsAffected == 0 {
			m.ID = 0
			return batch.ErrMappingConflict
		}
		return linkHostPaths(tx, m)
	})
}

// UpdateMapping writes the mutable fields of m
func (s *MappingStore) UpdateMapping(ctx context.Context, m *db.Mapping) error {
	if m.TagList == nil {
		m.TagList = datatypes.JSONSlice[string]{}
	}
	err := s.db.WithContext(ctx).Model(m).
		Select("type", "http_status", "new_url", "unresolved", "tag_list").
		Updates(m).Error
	if err != nil {
		return fmt.Errorf("failed to update mapping %d: %w", m.ID, err)
	}
	return nil
}

// CreateEntry inserts a batch entry
func (s *MappingStore) CreateEntry(ctx context.Context, e *db.MappingsBatchEntry) error {
	return s.db.WithContext(ctx).Create(e).Error
}

// UpdateEntry writes the processing outcome of a batch entry
func (s *MappingStore) UpdateEntry(ctx context.Context, e *db.MappingsBatchEntry) error {
	err := s.db.WithContext(ctx).Model(e).Select("processed", "mapping_id").Updates(e).Error
	if err != nil {
		return fmt.Errorf("failed to update entry %d: %w", e.ID, err)
	}
	return nil
}

// Entries returns the entries of a batch in creation order
func (s *MappingStore) Entries(ctx context.Context, batchID uint) ([]db.MappingsBatchEntry, error) {
	var entries []db.MappingsBatchEntry
	err := s.db.WithContext(ctx).Where("mappings_batch_id = ?", batchID).Order("id").Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load entries of batch %d: %w", batchID, err)
	}
	return entries, nil
}

// UpdateBatchState sets the state of a batch
func (s *MappingStore) UpdateBatchState(ctx context.Context, batchID uint, state db.BatchState) error {
	return s.db.WithContext(ctx).Model(&db.MappingsBatch{}).Where("id = ?", batchID).Update("state", state).Error
}

// GetMapping retrieves a mapping by site and canonical path
func (s *MappingStore) GetMapping(ctx context.Context, siteID uint, path string) (*db.Mapping, error) {
	var mapping db.Mapping
	err := s.db.WithContext(ctx).Where("site_id = ? AND path = ?", siteID, path).First(&mapping).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &mapping, nil
}

func linkHostPaths(tx *gorm.DB, m *db.Mapping) error {
	hostIDs := tx.Model(&db.Host{}).Select("id").Where("site_id = ?", m.SiteID)
	err := tx.Model(&db.HostPath{}).
		Where("c14n_path_hash = ? AND host_id IN (?)", m.PathHash, hostIDs).
		Update("mapping_id", m.ID).Error
	if err != nil {
		return fmt.Errorf("failed to link host paths to mapping %d: %w", m.ID, err)
	}
	return nil
}

// MappingHistory writes a version row for every recorded change
type MappingHistory struct {
	db *gorm.DB
}

// NewMappingHistory creates a history over dbConn
func NewMappingHistory(dbConn *gorm.DB) *MappingHistory {
	return &MappingHistory{db: dbConn}
}

// Record stores change as a Version of its mapping
func (h *MappingHistory) Record(ctx context.Context, change batch.Change) error {
	changeset, err := json.Marshal(change.Changeset)
	if err != nil {
		return fmt.Errorf("failed to marshal changeset: %w", err)
	}

	version := db.Version{
		ItemType:  "Mapping",
		ItemID:    change.Mapping.ID,
		Event:     change.Event,
		Changeset: datatypes.JSON(changeset),
	}
	if change.UserID != 0 {
		userID := change.UserID
		version.UserID = &userID
	}
	if err := h.db.WithContext(ctx).Create(&version).Error; err != nil {
		return fmt.Errorf("failed to record %s of mapping %d: %w", change.Event, change.Mapping.ID, err)
	}
	return nil
}

// Versions returns the recorded versions of a mapping, oldest first
func (h *MappingHistory) Versions(ctx context.Context, mappingID uint) ([]db.Version, error) {
	var versions []db.Version
	err := h.db.WithContext(ctx).
		Where("item_type = ? AND item_id = ?", "Mapping", mappingID).
		Order("id").Find(&versions).Error
	return versions, err
}
