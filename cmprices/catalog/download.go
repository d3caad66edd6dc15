package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/klauspost/compress/gzip"
)

// Archive kind suffixes, matching the publisher's download names.
const (
	KindPriceGuide = "price_guide_1"
	KindProducts   = "products_singles_1"
)

// Uploader pushes archived snapshots to remote storage. Optional.
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

// Downloader fetches snapshot payloads and archives the raw bytes so the
// retry driver can replay them later.
type Downloader struct {
	client     *http.Client
	archiveDir string
	uploader   Uploader
}

func NewDownloader(archiveDir string, uploader Uploader) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: config.DownloadTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout:   config.NetworkDialTimeout,
					KeepAlive: config.NetworkKeepAlive,
				}).DialContext,
			},
		},
		archiveDir: archiveDir,
		uploader:   uploader,
	}
}

// Fetch downloads one snapshot and returns the raw bytes exactly as served,
// ready for fingerprinting.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download snapshot: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d downloading %s", resp.StatusCode, url)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot body: %w", err)
	}

	slog.Info("Snapshot downloaded",
		slog.String("type", "ingest"),
		slog.String("url", url),
		slog.Int("bytes", len(raw)),
		slog.Duration("took", time.Since(start)),
	)

	return raw, nil
}

// Archive compresses the raw snapshot into the archive directory, named
// <date>_<md5 prefix>_<kind>.json.gz, and uploads it when an uploader is
// configured. Returns the local path.
func (d *Downloader) Archive(ctx context.Context, raw []byte, kind string, catalogDate time.Time) (string, error) {
	if d.archiveDir == "" {
		return "", nil
	}
	if err := os.MkdirAll(d.archiveDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create archive dir: %w", err)
	}

	md5sum := Fingerprint(raw)
	name := fmt.Sprintf("%s_%s_%s.json.gz", catalogDate.Format("2006-01-02"), md5sum[:8], kind)
	path := filepath.Join(d.archiveDir, name)

	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}

	gz := gzip.NewWriter(f)
	if _, err := gz.Write(raw); err != nil {
		gz.Close()
		f.Close()
		return "", fmt.Errorf("failed to write archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		f.Close()
		return "", fmt.Errorf("failed to flush archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive: %w", err)
	}

	if d.uploader != nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return path, fmt.Errorf("failed to re-read archive for upload: %w", err)
		}
		if err := d.uploader.Upload(ctx, name, data, "application/gzip"); err != nil {
			// Local archive succeeded, remote copy is best effort
			slog.Warn("Archive upload failed",
				slog.String("type", "ingest"),
				slog.String("file", name),
				slog.Any("error", err))
		}
	}

	slog.Info("Snapshot archived",
		slog.String("type", "ingest"),
		slog.String("file", name))

	return path, nil
}
