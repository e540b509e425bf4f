package fetch

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
)

// Downloader fetches a single resource over HTTP to a local path.
type Downloader struct {
	client *http.Client
}

// NewDownloader creates a downloader with a default HTTP client.
func NewDownloader() *Downloader {
	return &Downloader{client: &http.Client{}}
}

// Fetch downloads url into destPath. The body lands in a temp file first
// and is renamed into place so a failed download never leaves a partial
// file behind.
func (d *Downloader) Fetch(url, destPath string) error {
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	resp, err := d.client.Get(url)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("downloading %s: HTTP %d", url, resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	_, err = io.Copy(out, resp.Body)
	out.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming file: %w", err)
	}

	return nil
}
