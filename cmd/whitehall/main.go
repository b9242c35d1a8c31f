// Command whitehall imports the mappings Whitehall publishes for the pages it replaced.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alphagov/transition-mappings/internal/batch"
	"github.com/alphagov/transition-mappings/internal/config"
	"github.com/alphagov/transition-mappings/internal/db"
	"github.com/alphagov/transition-mappings/internal/fetch"
	"github.com/alphagov/transition-mappings/internal/logger"
	"github.com/alphagov/transition-mappings/internal/service"
	"github.com/alphagov/transition-mappings/internal/whitehall"
)

type options struct {
	filename       string
	username       string
	password       string
	updateExisting bool
}

func newCommand(cfg *config.Config) *cobra.Command {
	opts := options{
		username: cfg.Whitehall.Username,
		password: cfg.Whitehall.Password,
	}

	cmd := &cobra.Command{
		Use:   "whitehall",
		Short: "Import Whitehall mappings",
		Long: `Imports the Whitehall mappings export, creating and processing one batch per site.

Either read a local export with --filename, or download it with --username and --password.

Examples:
  whitehall --filename tmp/mappings.csv
  whitehall --username robot --password secret --update-existing`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.filename == "" && opts.username == "" && opts.password == "" {
				return fmt.Errorf("either --filename or --username and --password must be provided")
			}
			return run(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.filename, "filename", "f", "", "Local Whitehall export to import")
	cmd.Flags().StringVarP(&opts.username, "username", "u", opts.username, "Basic auth username for the export download")
	cmd.Flags().StringVarP(&opts.password, "password", "p", opts.password, "Basic auth password for the export download")
	cmd.Flags().BoolVar(&opts.updateExisting, "update-existing", false, "Overwrite mappings that already exist")
	return cmd
}

func run(ctx context.Context, cfg *config.Config, opts options) error {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return err
	}
	defer log.Sync()

	dbConn, err := db.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	filename := opts.filename
	if filename == "" {
		filename = filepath.Join(cfg.Whitehall.TmpDir, fmt.Sprintf("%d-whitehall_mappings.csv", time.Now().Unix()))
		downloader := fetch.NewDownloader(opts.username, opts.password, cfg.Whitehall.Timeout, log)
		if err := downloader.Download(ctx, cfg.Whitehall.URL, filename); err != nil {
			return err
		}
	}

	validator := batch.NewValidator(cfg.Redirects.AllowedHosts, cfg.Redirects.SupportEmail)
	importer := whitehall.NewImporter(dbConn, service.NewBatchService(dbConn, validator, log), log)
	result, err := importer.ImportFile(ctx, filename, opts.updateExisting)
	if err != nil {
		return err
	}

	for _, site := range result.Sites {
		fmt.Printf("%-20s batch=%-6d rows=%-6d %s\n", site.Abbr, site.BatchID, site.Rows, site.State)
	}
	fmt.Printf("skipped %d rows on unknown hosts\n", result.Skipped)
	if failed := result.Failed(); failed > 0 {
		return fmt.Errorf("%d of %d sites failed to import", failed, len(result.Sites))
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = newCommand(cfg).ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
