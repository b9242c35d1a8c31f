package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alphagov/transition-mappings/internal/db"
)

func testSite() *db.Site {
	return &db.Site{
		ID:          1,
		Abbr:        "test",
		QueryParams: "significant",
		Hosts:       []db.Host{{ID: 1, SiteID: 1, Hostname: "a.com"}, {ID: 2, SiteID: 1, Hostname: "www.a.com"}},
	}
}

func TestNewRow(t *testing.T) {
	site := testSite()

	tests := []struct {
		name     string
		record   []string
		dataRow  bool
		homepage bool
		path     string
		rowType  string
		newURL   string
	}{
		{"redirect", []string{"/Old?significant=1&x=2", "https://www.gov.uk/new"}, true, false, "/old?significant=1", db.TypeRedirect, "https://www.gov.uk/new"},
		{"blank new url", []string{"/old", ""}, true, false, "/old", db.TypeUnresolved, ""},
		{"missing new url column", []string{"/old"}, true, false, "/old", db.TypeUnresolved, ""},
		{"malformed new url", []string{"/old", "not a url"}, true, false, "/old", db.TypeUnresolved, ""},
		{"new url without scheme", []string{"/old", "www.gov.uk/new"}, true, false, "/old", db.TypeUnresolved, ""},
		{"archive marker", []string{"/old", "tna"}, true, false, "/old", db.TypeArchive, ""},
		{"archive hint", []string{"/old", "", "Archive"}, true, false, "/old", db.TypeArchive, ""},
		{"absolute old url", []string{"http://a.com/Old", "https://www.gov.uk"}, true, false, "/old", db.TypeRedirect, "https://www.gov.uk"},
		{"header", []string{"Old URL", "New URL"}, false, false, "", db.TypeUnresolved, ""},
		{"empty", []string{""}, false, false, "", db.TypeUnresolved, ""},
		{"homepage", []string{"http://a.com/", "https://www.gov.uk"}, true, true, "/", db.TypeRedirect, "https://www.gov.uk"},
		{"homepage with insignificant query", []string{"/?foo=bar", ""}, true, true, "/", db.TypeUnresolved, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := NewRow(site, 3, tt.record)
			assert.Equal(t, 3, row.LineNumber)
			assert.Equal(t, tt.dataRow, row.DataRow())
			assert.Equal(t, tt.homepage, row.Homepage())
			assert.Equal(t, tt.path, row.Path)
			assert.Equal(t, tt.rowType, row.Type)
			assert.Equal(t, tt.rowType == db.TypeRedirect, row.Redirect())
			assert.Equal(t, tt.newURL, row.NewURL)
		})
	}
}

func TestRowOrdering(t *testing.T) {
	site := testSite()
	unresolved := NewRow(site, 2, []string{"/a", ""})
	redirect := NewRow(site, 5, []string{"/a", "https://www.gov.uk"})
	archive := NewRow(site, 9, []string{"/a", "TNA"})

	t.Run("redirect beats unresolved regardless of line order", func(t *testing.T) {
		assert.True(t, redirect.Beats(unresolved))
		assert.False(t, unresolved.Beats(redirect))

		earlyRedirect := NewRow(site, 1, []string{"/a", "https://www.gov.uk"})
		lateUnresolved := NewRow(site, 8, []string{"/a", ""})
		assert.True(t, earlyRedirect.Beats(lateUnresolved))
	})

	t.Run("redirect beats archive, archive beats unresolved", func(t *testing.T) {
		assert.True(t, redirect.Beats(archive))
		assert.True(t, archive.Beats(unresolved))
	})

	t.Run("later line wins between equal types", func(t *testing.T) {
		first := NewRow(site, 2, []string{"/a", "https://www.gov.uk/first"})
		second := NewRow(site, 7, []string{"/a", "https://www.gov.uk/second"})
		assert.True(t, second.Beats(first))
		assert.False(t, first.Beats(second))
		assert.Zero(t, first.Compare(first))
	})
}

func TestIsRedirectURL(t *testing.T) {
	assert.True(t, IsRedirectURL("https://www.gov.uk"))
	assert.True(t, IsRedirectURL("http://gov.uk/a?b=c"))
	assert.False(t, IsRedirectURL(""))
	assert.False(t, IsRedirectURL("https://newurl"))
	assert.False(t, IsRedirectURL("ftp://www.gov.uk"))
	assert.False(t, IsRedirectURL("www.gov.uk"))
	assert.False(t, IsRedirectURL("https://www.gov.uk/a b"))
}
