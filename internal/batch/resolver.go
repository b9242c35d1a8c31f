package batch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alphagov/transition-mappings/internal/c14n"
	"github.com/alphagov/transition-mappings/internal/db"
)

// Resolve parses raw CSV text into one winning row per canonical path.
// Non-data and homepage rows are skipped. Rows come back in order of the first
// appearance of their path. Blank input yields no rows and no error.
func Resolve(rawCSV string, site *db.Site) ([]Row, error) {
	if strings.TrimSpace(rawCSV) == "" {
		return nil, nil
	}

	r := csv.NewReader(strings.NewReader(rawCSV))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.ReuseRecord = true

	var d deduper
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		line, _ := r.FieldPos(0)
		row := NewRow(site, line, record)
		if !row.DataRow() {
			continue
		}
		d.add(row)
	}
	return d.rows(), nil
}

// resolvePaths turns the paths of a uniform batch into rows of the batch type
func resolvePaths(paths []string, site *db.Site, rowType string) []Row {
	var d deduper
	for i, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d.add(Row{
			LineNumber: i + 1,
			OldValue:   p,
			Path:       c14n.Canonicalize(p, site.SignificantParams()),
			Type:       rowType,
		})
	}
	return d.rows()
}

type deduper struct {
	order  []string
	byPath map[string]Row
}

func (d *deduper) add(row Row) {
	if row.Homepage() {
		return
	}
	if d.byPath == nil {
		d.byPath = make(map[string]Row)
	}
	current, ok := d.byPath[row.Path]
	if !ok {
		d.order = append(d.order, row.Path)
	}
	if !ok || row.Beats(current) {
		d.byPath[row.Path] = row
	}
}

func (d *deduper) rows() []Row {
	rows := make([]Row, 0, len(d.order))
	for _, path := range d.order {
		rows = append(rows, d.byPath[path])
	}
	return rows
}
