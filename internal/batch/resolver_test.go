package batch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphagov/transition-mappings/internal/db"
)

func TestResolve(t *testing.T) {
	site := testSite()

	csv := `Old URL,New URL
/redirect-me,https://www.gov.uk/new
/archive-me,TNA
/i-dont-know-what-i-am,
/REDIRECT-ME?insignificant=1,
/,https://www.gov.uk
http://a.com/archive-me,https://www.gov.uk/archived-then-redirected
`
	rows, err := Resolve(csv, site)
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "/redirect-me", rows[0].Path)
	assert.Equal(t, db.TypeRedirect, rows[0].Type)
	assert.Equal(t, "https://www.gov.uk/new", rows[0].NewURL)
	assert.Equal(t, 2, rows[0].LineNumber)

	assert.Equal(t, "/archive-me", rows[1].Path)
	assert.Equal(t, db.TypeRedirect, rows[1].Type)
	assert.Equal(t, 7, rows[1].LineNumber)

	assert.Equal(t, "/i-dont-know-what-i-am", rows[2].Path)
	assert.Equal(t, db.TypeUnresolved, rows[2].Type)
}

func TestResolveLastOneWins(t *testing.T) {
	csv := "/a,https://www.gov.uk/one\n/b,\n/a,https://www.gov.uk/two\n"
	rows, err := Resolve(csv, testSite())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "https://www.gov.uk/two", rows[0].NewURL)
	assert.Equal(t, 3, rows[0].LineNumber)
}

func TestResolveLineNumbersSkipBlankLines(t *testing.T) {
	rows, err := Resolve("\n\n/a,\n", testSite())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 3, rows[0].LineNumber)
}

func TestResolveHomepageOnly(t *testing.T) {
	rows, err := Resolve("/,https://www.gov.uk\nhttp://a.com,\n", testSite())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestResolveBlank(t *testing.T) {
	for _, raw := range []string{"", "   ", "\n\n"} {
		rows, err := Resolve(raw, testSite())
		assert.NoError(t, err)
		assert.Empty(t, rows)
	}
}

func TestResolveQuotedFields(t *testing.T) {
	rows, err := Resolve(`"/a?significant=1,2","https://www.gov.uk/x"`, testSite())
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/a?significant=1,2", rows[0].Path)
}

func TestBatchRowsAreMemoized(t *testing.T) {
	b := NewImport(&db.MappingsBatch{Site: testSite()}, "/a,\n")
	first, err := b.Rows()
	require.NoError(t, err)

	b.RawCSV = "/a,\n/b,\n"
	second, err := b.Rows()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Len(t, second, 1)
}

func TestUniformRows(t *testing.T) {
	b := NewUniform(&db.MappingsBatch{Site: testSite(), Type: db.TypeArchive}, []string{"/a?insignificant", "/a", "/b?significant", "", "/"})
	rows, err := b.Rows()
	require.NoError(t, err)
	assert.Equal(t, []string{"/a", "/b?significant"}, b.CanonicalPaths())
	assert.Len(t, rows, 2)
}
