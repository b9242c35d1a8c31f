package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alphagov/transition-mappings/internal/batch"
	"github.com/alphagov/transition-mappings/internal/db"
	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/metrics"
)

// UniformParams describes a batch applying one type and new URL to many paths
type UniformParams struct {
	Paths          []string
	Type           string
	HTTPStatus     string
	NewURL         string
	Tags           []string
	UpdateExisting bool
}

// ImportParams describes a batch built from CSV lines
type ImportParams struct {
	RawCSV         string
	Tags           []string
	UpdateExisting bool
}

// BatchService creates, processes and deletes mappings batches
type BatchService struct {
	db        *gorm.DB
	validator *batch.Validator
	processor *batch.Processor
	log       logger.Logger
}

// NewBatchService creates a batch service
func NewBatchService(dbConn *gorm.DB, validator *batch.Validator, log logger.Logger) *BatchService {
	return &BatchService{
		db:        dbConn,
		validator: validator,
		processor: batch.NewProcessor(NewMappingStore(dbConn), NewMappingHistory(dbConn), log),
		log:       log,
	}
}

// CreateUniform validates and stores a uniform batch with its entries.
// Validation failures are returned as batch.Errors.
func (s *BatchService) CreateUniform(ctx context.Context, user *db.User, site *db.Site, p UniformParams) (*batch.Batch, error) {
	b := batch.NewUniform(&db.MappingsBatch{
		UserID:         user.ID,
		User:           user,
		SiteID:         site.ID,
		Site:           site,
		Type:           p.Type,
		HTTPStatus:     p.HTTPStatus,
		NewURL:         p.NewURL,
		TagList:        p.Tags,
		UpdateExisting: p.UpdateExisting,
	}, p.Paths)
	return b, s.create(ctx, b)
}

// CreateImport validates and stores a per-row batch with its entries.
// Validation failures are returned as batch.Errors.
func (s *BatchService) CreateImport(ctx context.Context, user *db.User, site *db.Site, p ImportParams) (*batch.Batch, error) {
	b := batch.NewImport(&db.MappingsBatch{
		UserID:         user.ID,
		User:           user,
		SiteID:         site.ID,
		Site:           site,
		TagList:        p.Tags,
		UpdateExisting: p.UpdateExisting,
	}, p.RawCSV)
	return b, s.create(ctx, b)
}

func (s *BatchService) create(ctx context.Context, b *batch.Batch) error {
	batch.Normalize(b)
	if errs := s.validator.Validate(b); !errs.Empty() {
		return errs
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(b.MappingsBatch).Error; err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}
		return batch.CreateEntries(ctx, NewMappingStore(tx), b)
	})
	if err != nil {
		return err
	}

	metrics.BatchesCreated.WithLabelValues(string(b.Kind)).Inc()
	s.log.Info("Batch created",
		logger.Uint("batch_id", b.ID),
		logger.Uint("site_id", b.SiteID),
		logger.String("kind", string(b.Kind)),
		logger.Int("entries", len(b.Entries)))
	return nil
}

// Get retrieves a batch with its entries
func (s *BatchService) Get(ctx context.Context, id uint) (*db.MappingsBatch, error) {
	var record db.MappingsBatch
	err := s.db.WithContext(ctx).
		Preload("Entries", func(tx *gorm.DB) *gorm.DB { return tx.Order("id") }).
		First(&record, id).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &record, nil
}

// ProcessBatch applies a stored batch to the mappings of its site
func (s *BatchService) ProcessBatch(ctx context.Context, id uint) error {
	_, err := s.Process(ctx, id)
	return err
}

// Process applies a stored batch and returns it with its processed entries
func (s *BatchService) Process(ctx context.Context, id uint) (*db.MappingsBatch, error) {
	var record db.MappingsBatch
	if err := s.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return nil, notFound(err)
	}
	if err := s.processor.Process(ctx, &record); err != nil {
		return &record, fmt.Errorf("failed to process batch %d: %w", id, err)
	}
	return &record, nil
}

// Delete removes a batch and its entries. Mappings it produced are kept.
func (s *BatchService) Delete(ctx context.Context, id uint) error {
	var record db.MappingsBatch
	if err := s.db.WithContext(ctx).First(&record, id).Error; err != nil {
		return notFound(err)
	}
	if err := s.db.WithContext(ctx).Select("Entries").Delete(&record).Error; err != nil {
		return fmt.Errorf("failed to delete batch %d: %w", id, err)
	}
	s.log.Info("Batch deleted", logger.Uint("batch_id", id))
	return nil
}
