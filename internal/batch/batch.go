// Package batch turns lists of old URLs into mappings for a site.
//
// A batch is either uniform, where every path shares the batch's type and new URL, or
// per-row, where each line of an imported CSV carries its own target. Both kinds resolve to
// one Row per canonical path, are validated, stored with one entry per row and finally
// processed into mappings.
package batch

import (
	"sync"

	"github.com/alphagov/transition-mappings/internal/db"
)

// Batch wraps a batch record with the input it was built from.
// Paths is used by uniform batches and RawCSV by per-row batches. Neither is persisted.
type Batch struct {
	*db.MappingsBatch
	Paths  []string
	RawCSV string

	once    sync.Once
	rows    []Row
	rowsErr error
}

// NewUniform builds a batch applying one type and new URL to every path
func NewUniform(record *db.MappingsBatch, paths []string) *Batch {
	record.Kind = db.KindUniform
	return &Batch{MappingsBatch: record, Paths: paths}
}

// NewImport builds a batch whose entries come from the lines of a CSV
func NewImport(record *db.MappingsBatch, rawCSV string) *Batch {
	record.Kind = db.KindPerRow
	record.Type = ""
	record.NewURL = ""
	return &Batch{MappingsBatch: record, RawCSV: rawCSV}
}

// PerRow reports whether entries take their type and new URL from their own row
func (b *Batch) PerRow() bool {
	return b.Kind == db.KindPerRow
}

// Rows returns the deduplicated rows of the batch. They are resolved once per Batch
// value; build a new Batch to resolve again.
func (b *Batch) Rows() ([]Row, error) {
	b.once.Do(func() {
		if b.PerRow() {
			b.rows, b.rowsErr = Resolve(b.RawCSV, b.Site)
			return
		}
		b.rows = resolvePaths(b.Paths, b.Site, b.Type)
	})
	return b.rows, b.rowsErr
}

// OldURLs returns the values the rows were read from
func (b *Batch) OldURLs() []string {
	if !b.PerRow() {
		return b.Paths
	}
	rows, _ := b.Rows()
	urls := make([]string, 0, len(rows))
	for _, row := range rows {
		urls = append(urls, row.OldValue)
	}
	return urls
}

// NewURLs returns the redirect targets that will be written by the batch
func (b *Batch) NewURLs() []string {
	if !b.PerRow() {
		if b.Type == db.TypeRedirect {
			return []string{b.NewURL}
		}
		return nil
	}
	rows, _ := b.Rows()
	var urls []string
	for _, row := range rows {
		if row.Redirect() {
			urls = append(urls, row.NewURL)
		}
	}
	return urls
}

// CanonicalPaths returns the canonical path of every resolved row
func (b *Batch) CanonicalPaths() []string {
	rows, _ := b.Rows()
	paths := make([]string, 0, len(rows))
	for _, row := range rows {
		paths = append(paths, row.Path)
	}
	return paths
}

// HTTPStatusFor returns the status a mapping of the given type is served with
func HTTPStatusFor(mappingType string) string {
	if mappingType == db.TypeRedirect {
		return db.StatusMovedPermanently
	}
	return db.StatusGone
}
