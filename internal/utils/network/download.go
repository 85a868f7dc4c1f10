package network

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/omada-community/omada-bootstrap/internal/utils/logger"
)

// Client is the HTTP client used for all transfers. Tests may replace it
// with one backed by httptest.
var Client = NewSecureHTTPClient()

// DownloadFile fetches url into destPath, following redirects and showing
// a byte-level progress bar on stderr. A partially written file is removed
// when the transfer fails.
func DownloadFile(url, destPath string) error {
	log := logger.Logger()
	log.Infof("Downloading %s to %s", url, destPath)

	resp, err := Client.Get(url)
	if err != nil {
		return fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to fetch %s: bad status: %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", destPath, err)
	}

	bar := progressbar.NewOptions64(resp.ContentLength,
		progressbar.OptionSetDescription(fmt.Sprintf("downloading %s", filepath.Base(destPath))),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionClearOnFinish(),
	)

	if _, err := io.Copy(io.MultiWriter(out, bar), resp.Body); err != nil {
		out.Close()
		os.Remove(destPath)
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	bar.Finish()

	// A Close failure means the kernel could not flush everything, leaving
	// a truncated archive behind.
	if err := out.Close(); err != nil {
		os.Remove(destPath)
		return fmt.Errorf("failed to write %s: %w", destPath, err)
	}
	return nil
}
