// Package fetch downloads remote files to disk.
package fetch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/alphagov/transition-mappings/internal/logger"
)

// Downloader fetches files over HTTP with basic authentication
type Downloader struct {
	client *resty.Client
	log    logger.Logger
}

// NewDownloader creates a downloader. Empty credentials send no Authorization header.
func NewDownloader(username, password string, timeout time.Duration, log logger.Logger) *Downloader {
	client := resty.New().SetTimeout(timeout)
	if username != "" || password != "" {
		client.SetBasicAuth(username, password)
	}
	return &Downloader{client: client, log: log}
}

// Download writes the body of url, decoded to UTF-8, to dest. The body is streamed to a
// temporary file beside dest which is renamed into place once complete, so dest never
// holds a partial download.
func (d *Downloader) Download(ctx context.Context, url, dest string) error {
	d.log.Info("Downloading", logger.String("url", url), logger.String("dest", dest))

	resp, err := d.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.IsError() {
		return fmt.Errorf("failed to fetch %s: HTTP %d", url, resp.StatusCode())
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", dest, err)
	}
	tmp := filepath.Join(filepath.Dir(dest), "."+uuid.NewString()+".part")
	if err := writeUTF8(tmp, body); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move download into place: %w", err)
	}
	return nil
}

func writeUTF8(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	decoded, err := UTF8Reader(r)
	if err != nil {
		f.Close()
		return err
	}
	n, err := io.Copy(f, decoded)
	if err != nil {
		f.Close()
		return fmt.Errorf("failed to write download after %d bytes: %w", n, err)
	}
	return f.Close()
}
