// Package whitehall imports the mappings Whitehall publishes for the pages it replaced.
//
// The export is one CSV covering every site. Rows are grouped by the host of their old
// URL and each site receives a single per-row batch which is then processed.
package whitehall

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/alphagov/transition-mappings/internal/batch"
	"github.com/alphagov/transition-mappings/internal/c14n"
	"github.com/alphagov/transition-mappings/internal/db"
	"github.com/alphagov/transition-mappings/internal/fetch"
	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/service"
)

// RobotUsername owns every batch created by an import
const RobotUsername = "whitehall-urls-robot"

// SiteResult describes the batch created for one site
type SiteResult struct {
	Abbr    string
	BatchID uint
	Rows    int
	State   db.BatchState
	Errors  batch.Errors
}

// Result summarizes an import
type Result struct {
	Sites []SiteResult
	// Skipped counts rows whose old URL is not on a known host
	Skipped int
}

// Failed counts sites whose batch was rejected or failed to process
func (r *Result) Failed() int {
	failed := 0
	for _, s := range r.Sites {
		if s.State != db.StateSucceeded {
			failed++
		}
	}
	return failed
}

// Importer turns a Whitehall export into processed batches
type Importer struct {
	db      *gorm.DB
	batches *service.BatchService
	log     logger.Logger
}

// NewImporter creates an importer
func NewImporter(dbConn *gorm.DB, batches *service.BatchService, log logger.Logger) *Importer {
	return &Importer{db: dbConn, batches: batches, log: log}
}

// ImportFile imports the export stored at filename
func (i *Importer) ImportFile(ctx context.Context, filename string, updateExisting bool) (*Result, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", filename, err)
	}
	defer f.Close()

	r, err := fetch.UTF8Reader(f)
	if err != nil {
		return nil, err
	}
	return i.Import(ctx, r, updateExisting)
}

type siteRows struct {
	site *db.Site
	buf  bytes.Buffer
	w    *csv.Writer
	rows int
}

// Import reads an export from r. A site whose batch is rejected or fails does not stop
// the others; the returned result records the outcome per site.
func (i *Importer) Import(ctx context.Context, r io.Reader, updateExisting bool) (*Result, error) {
	user, err := service.RobotUser(ctx, i.db, RobotUsername)
	if err != nil {
		return nil, err
	}
	sites, err := service.SitesByHostname(ctx, i.db)
	if err != nil {
		return nil, err
	}

	groups, order, skipped, err := groupBySite(r, sites)
	if err != nil {
		return nil, err
	}
	result := &Result{Skipped: skipped}

	for _, siteID := range order {
		g := groups[siteID]
		res := SiteResult{Abbr: g.site.Abbr, Rows: g.rows, State: db.StateFailed}
		log := i.log.With(logger.String("site", g.site.Abbr))

		b, err := i.batches.CreateImport(ctx, user, g.site, service.ImportParams{
			RawCSV:         g.buf.String(),
			UpdateExisting: updateExisting,
		})
		var errs batch.Errors
		switch {
		case errors.As(err, &errs):
			log.Warn("Import rejected", logger.String("errors", errs.Error()))
			res.Errors = errs
			result.Sites = append(result.Sites, res)
			continue
		case err != nil:
			return result, err
		}
		res.BatchID = b.ID

		if err := i.batches.ProcessBatch(ctx, b.ID); err != nil {
			log.Error("Import failed to process", logger.Uint("batch_id", b.ID), logger.Error(err))
		} else {
			res.State = db.StateSucceeded
		}
		result.Sites = append(result.Sites, res)
	}

	i.log.Info("Whitehall import finished",
		logger.Int("sites", len(result.Sites)),
		logger.Int("failed", result.Failed()),
		logger.Int("skipped", result.Skipped))
	return result, nil
}

// groupBySite splits records by the site owning the host of their old URL
func groupBySite(r io.Reader, sites map[string]*db.Site) (map[uint]*siteRows, []uint, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	groups := make(map[uint]*siteRows)
	var order []uint
	skipped := 0
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, 0, fmt.Errorf("failed to read export: %w", err)
		}
		if line == 1 && !strings.Contains(strings.ToLower(record[0]), "://") {
			continue
		}

		host, ok := c14n.Host(record[0])
		site := sites[host]
		if !ok || site == nil {
			skipped++
			continue
		}

		g, found := groups[site.ID]
		if !found {
			g = &siteRows{site: site}
			g.w = csv.NewWriter(&g.buf)
			groups[site.ID] = g
			order = append(order, site.ID)
		}
		if err := g.w.Write(record); err != nil {
			return nil, nil, 0, err
		}
		g.rows++
	}

	for _, g := range groups {
		g.w.Flush()
		if err := g.w.Error(); err != nil {
			return nil, nil, 0, err
		}
	}
	return groups, order, skipped, nil
}
