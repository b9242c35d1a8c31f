package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphagov/transition-mappings/internal/config"
	"github.com/alphagov/transition-mappings/internal/db"
	"github.com/alphagov/transition-mappings/internal/logger"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: db.Config{
			Driver:  db.DriverSQLite,
			Path:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
			MaxOpen: 1,
			MaxIdle: 1,
		},
		Redirects: config.RedirectConfig{AllowedHosts: []string{"gov.uk"}},
		Log:       logger.Config{Level: "error", OutputPaths: []string{"stderr"}},
	}
}

func TestRequiresFilenameOrCredentials(t *testing.T) {
	cmd := newCommand(testConfig())
	cmd.SetArgs([]string{})
	cmd.SetOut(new(nopWriter))
	cmd.SetErr(new(nopWriter))

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--filename")
}

func TestImportsLocalFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "mappings.csv")
	require.NoError(t, os.WriteFile(filename, []byte("Old URL,New URL\nhttp://unknown.gov.uk/a,https://www.gov.uk/a\n"), 0o600))

	cmd := newCommand(testConfig())
	cmd.SetArgs([]string{"--filename", filename})
	assert.NoError(t, cmd.ExecuteContext(context.Background()))
}

type nopWriter struct{}

func (*nopWriter) Write(p []byte) (int, error) { return len(p), nil }
