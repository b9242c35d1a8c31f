package batch

import (
	"net/url"
	"strings"

	"github.com/alphagov/transition-mappings/internal/c14n"
	"github.com/alphagov/transition-mappings/internal/db"
)

// archiveMarker in the new URL column asks for an archive mapping
const archiveMarker = "TNA"

// Row is one parsed CSV line, classified for import.
type Row struct {
	LineNumber int
	OldValue   string
	NewValue   string
	// Path is the canonical form of OldValue for the row's site
	Path   string
	Type   string
	NewURL string
}

// NewRow classifies a CSV record found at the 1-based lineNumber.
// Expected columns are old path or URL, new URL and an optional type hint.
func NewRow(site *db.Site, lineNumber int, record []string) Row {
	row := Row{LineNumber: lineNumber}
	if len(record) > 0 {
		row.OldValue = strings.TrimSpace(record[0])
	}
	if len(record) > 1 {
		row.NewValue = strings.TrimSpace(record[1])
	}
	var hint string
	if len(record) > 2 {
		hint = strings.ToLower(strings.TrimSpace(record[2]))
	}

	if row.DataRow() {
		row.Path = c14n.Canonicalize(row.OldValue, site.SignificantParams())
	}

	switch {
	case hint == db.TypeArchive || strings.EqualFold(row.NewValue, archiveMarker):
		row.Type = db.TypeArchive
	case row.NewValue == "":
		row.Type = db.TypeUnresolved
	case IsRedirectURL(row.NewValue):
		row.Type = db.TypeRedirect
		row.NewURL = row.NewValue
	default:
		// a target we cannot use degrades the row rather than failing the import
		row.Type = db.TypeUnresolved
	}
	return row
}

// DataRow is false for blank lines and headers
func (r Row) DataRow() bool {
	return strings.HasPrefix(r.OldValue, "/") || strings.HasPrefix(strings.ToLower(r.OldValue), "http")
}

// Homepage reports whether the row points at the site root, which is never mapped
func (r Row) Homepage() bool {
	return r.Path == c14n.Root
}

func (r Row) Redirect() bool {
	return r.Type == db.TypeRedirect
}

// Compare orders two rows for the same path. Redirects beat archives, archives beat
// unresolved rows, and between rows of the same type the later line wins.
func (r Row) Compare(other Row) int {
	if d := typeRank(r.Type) - typeRank(other.Type); d != 0 {
		return d
	}
	return r.LineNumber - other.LineNumber
}

// Beats reports whether r should replace other as the row for their shared path
func (r Row) Beats(other Row) bool {
	return r.Compare(other) > 0
}

func typeRank(t string) int {
	switch t {
	case db.TypeRedirect:
		return 2
	case db.TypeArchive:
		return 1
	default:
		return 0
	}
}

// IsRedirectURL reports whether s is an absolute http(s) URL with a dotted host
func IsRedirectURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	host := u.Hostname()
	return host != "" && strings.Contains(host, ".") && !strings.HasPrefix(host, ".") && !strings.HasSuffix(host, ".")
}
