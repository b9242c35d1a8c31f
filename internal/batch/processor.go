package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/alphagov/transition-mappings/internal/c14n"
	"github.com/alphagov/transition-mappings/internal/db"
	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/metrics"
)

// ErrMappingConflict is returned by CreateMapping when another writer created a
// mapping for the same site and path hash first
var ErrMappingConflict = errors.New("mapping already exists for path")

// Repository is the storage the engine reads and writes through
type Repository interface {
	FindMappingsByPathHash(ctx context.Context, siteID uint, hashes []string) ([]db.Mapping, error)
	CreateMapping(ctx context.Context, mapping *db.Mapping) error
	UpdateMapping(ctx context.Context, mapping *db.Mapping) error
	CreateEntry(ctx context.Context, entry *db.MappingsBatchEntry) error
	UpdateEntry(ctx context.Context, entry *db.MappingsBatchEntry) error
	Entries(ctx context.Context, batchID uint) ([]db.MappingsBatchEntry, error)
	UpdateBatchState(ctx context.Context, batchID uint, state db.BatchState) error
}

// History events
const (
	EventCreate = "create"
	EventUpdate = "update"
)

// Change describes one committed write to a mapping.
// Changeset maps a field to its old and new values and never includes the tag list.
type Change struct {
	Mapping   *db.Mapping
	Event     string
	UserID    uint
	Changeset map[string][2]any
}

// History records changes made while processing
type History interface {
	Record(ctx context.Context, change Change) error
}

// CreateEntries stores one entry per resolved row of b, linked to the existing mapping
// for its path when there is one.
func CreateEntries(ctx context.Context, repo Repository, b *Batch) error {
	rows, err := b.Rows()
	if err != nil {
		return err
	}

	hashes := make([]string, 0, len(rows))
	for _, row := range rows {
		hashes = append(hashes, c14n.Hash(row.Path))
	}
	existing, err := repo.FindMappingsByPathHash(ctx, b.SiteID, hashes)
	if err != nil {
		return fmt.Errorf("failed to find existing mappings: %w", err)
	}
	byHash := indexByHash(existing)

	b.Entries = make([]db.MappingsBatchEntry, 0, len(rows))
	for i, row := range rows {
		entry := db.MappingsBatchEntry{
			MappingsBatchID: b.ID,
			Path:            row.Path,
			Type:            row.Type,
		}
		if b.PerRow() {
			entry.NewURL = row.NewURL
		} else if b.Type == db.TypeRedirect {
			entry.NewURL = b.NewURL
		}
		if m, ok := byHash[hashes[i]]; ok {
			id := m.ID
			entry.MappingID = &id
		}
		if err := repo.CreateEntry(ctx, &entry); err != nil {
			return fmt.Errorf("failed to create entry for %s: %w", row.Path, err)
		}
		b.Entries = append(b.Entries, entry)
	}
	return nil
}

// Processor commits the entries of a batch to mappings
type Processor struct {
	repo    Repository
	history History
	log     logger.Logger
}

// NewProcessor creates a processor. history may be nil.
func NewProcessor(repo Repository, history History, log logger.Logger) *Processor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Processor{repo: repo, history: history, log: log}
}

// Process applies every entry of b and moves it to succeeded, or to failed when any
// write returns an error. The error is returned unchanged. Writes already made are kept.
func (p *Processor) Process(ctx context.Context, b *db.MappingsBatch) (err error) {
	log := p.log.With(logger.Uint("batch_id", b.ID), logger.Uint("site_id", b.SiteID))

	defer func() {
		state := db.StateSucceeded
		if err != nil {
			state = db.StateFailed
		}
		// the state is recorded even when ctx was cancelled mid-batch
		if stateErr := p.repo.UpdateBatchState(context.WithoutCancel(ctx), b.ID, state); stateErr != nil {
			log.Error("Failed to record batch state", logger.String("state", string(state)), logger.Error(stateErr))
			if err == nil {
				err = stateErr
				state = db.StateFailed
			}
		}
		b.State = state
		metrics.BatchesProcessed.WithLabelValues(string(state)).Inc()
		if err != nil {
			log.Error("Batch processing failed", logger.Error(err))
		}
	}()

	entries, err := p.repo.Entries(ctx, b.ID)
	if err != nil {
		return err
	}
	hashes := make([]string, 0, len(entries))
	for _, e := range entries {
		hashes = append(hashes, c14n.Hash(e.Path))
	}
	existing, err := p.repo.FindMappingsByPathHash(ctx, b.SiteID, hashes)
	if err != nil {
		return err
	}
	byHash := indexByHash(existing)

	var created, updated, skipped int
	for i := range entries {
		entry := &entries[i]
		outcome, err := p.apply(ctx, b, entry, byHash[hashes[i]], hashes[i])
		if err != nil {
			return err
		}
		if err := p.repo.UpdateEntry(ctx, entry); err != nil {
			return err
		}
		metrics.EntriesProcessed.WithLabelValues(outcome).Inc()
		switch outcome {
		case metrics.OutcomeCreated:
			created++
		case metrics.OutcomeUpdated:
			updated++
		default:
			skipped++
		}
	}
	b.Entries = entries

	log.Info("Batch processed",
		logger.Int("created", created),
		logger.Int("updated", updated),
		logger.Int("skipped", skipped))
	return nil
}

func (p *Processor) apply(ctx context.Context, b *db.MappingsBatch, entry *db.MappingsBatchEntry, existing *db.Mapping, hash string) (string, error) {
	if existing == nil {
		m := newMapping(b, entry, hash)
		err := p.repo.CreateMapping(ctx, m)
		switch {
		case err == nil:
			entry.Processed = true
			entry.MappingID = &m.ID
			return metrics.OutcomeCreated, p.record(ctx, b, m, EventCreate, creationChangeset(m))
		case errors.Is(err, ErrMappingConflict):
			// lost a race with another batch; treat its mapping as pre-existing
			found, findErr := p.repo.FindMappingsByPathHash(ctx, b.SiteID, []string{hash})
			if findErr != nil {
				return "", findErr
			}
			if len(found) == 0 {
				return "", err
			}
			existing = &found[0]
		default:
			return "", err
		}
	}

	id := existing.ID
	entry.MappingID = &id
	if !b.UpdateExisting {
		entry.Processed = false
		return metrics.OutcomeSkipped, nil
	}

	before := *existing
	m := existing
	m.Type, m.Unresolved = mappingType(entry.Type)
	m.HTTPStatus = entryHTTPStatus(b, entry)
	m.NewURL = entryNewURL(m.Type, entry)
	m.TagList = unionTags(m.TagList, b.TagList)
	if err := p.repo.UpdateMapping(ctx, m); err != nil {
		return "", err
	}
	entry.Processed = true
	return metrics.OutcomeUpdated, p.record(ctx, b, m, EventUpdate, updateChangeset(&before, m))
}

func (p *Processor) record(ctx context.Context, b *db.MappingsBatch, m *db.Mapping, event string, changeset map[string][2]any) error {
	if p.history == nil || len(changeset) == 0 {
		return nil
	}
	return p.history.Record(ctx, Change{Mapping: m, Event: event, UserID: b.UserID, Changeset: changeset})
}

func newMapping(b *db.MappingsBatch, entry *db.MappingsBatchEntry, hash string) *db.Mapping {
	mappingType, unresolved := mappingType(entry.Type)
	return &db.Mapping{
		SiteID:     b.SiteID,
		Path:       entry.Path,
		PathHash:   hash,
		Type:       mappingType,
		HTTPStatus: entryHTTPStatus(b, entry),
		NewURL:     entryNewURL(mappingType, entry),
		Unresolved: unresolved,
		TagList:    append([]string{}, b.TagList...),
	}
}

// mappingType stores unresolved entries as archives with the unresolved flag
func mappingType(entryType string) (string, bool) {
	if entryType == db.TypeUnresolved {
		return db.TypeArchive, true
	}
	return entryType, false
}

func entryHTTPStatus(b *db.MappingsBatch, entry *db.MappingsBatchEntry) string {
	if b.Kind != db.KindPerRow && b.HTTPStatus != "" {
		return b.HTTPStatus
	}
	t, _ := mappingType(entry.Type)
	return HTTPStatusFor(t)
}

func entryNewURL(mappingType string, entry *db.MappingsBatchEntry) string {
	if mappingType != db.TypeRedirect {
		return ""
	}
	return entry.NewURL
}

// unionTags keeps the existing order and appends tags not already present
func unionTags(existing, added []string) []string {
	seen := make(map[string]bool, len(existing)+len(added))
	out := make([]string, 0, len(existing)+len(added))
	for _, list := range [][]string{existing, added} {
		for _, tag := range list {
			if !seen[tag] {
				seen[tag] = true
				out = append(out, tag)
			}
		}
	}
	return out
}

func creationChangeset(m *db.Mapping) map[string][2]any {
	changes := map[string][2]any{
		"path":        {nil, m.Path},
		"type":        {nil, m.Type},
		"http_status": {nil, m.HTTPStatus},
	}
	if m.NewURL != "" {
		changes["new_url"] = [2]any{nil, m.NewURL}
	}
	if m.Unresolved {
		changes["unresolved"] = [2]any{false, true}
	}
	return changes
}

func updateChangeset(before, after *db.Mapping) map[string][2]any {
	changes := map[string][2]any{}
	if before.Type != after.Type {
		changes["type"] = [2]any{before.Type, after.Type}
	}
	if before.HTTPStatus != after.HTTPStatus {
		changes["http_status"] = [2]any{before.HTTPStatus, after.HTTPStatus}
	}
	if before.NewURL != after.NewURL {
		changes["new_url"] = [2]any{before.NewURL, after.NewURL}
	}
	if before.Unresolved != after.Unresolved {
		changes["unresolved"] = [2]any{before.Unresolved, after.Unresolved}
	}
	return changes
}

func indexByHash(mappings []db.Mapping) map[string]*db.Mapping {
	byHash := make(map[string]*db.Mapping, len(mappings))
	for i := range mappings {
		byHash[mappings[i].PathHash] = &mappings[i]
	}
	return byHash
}
