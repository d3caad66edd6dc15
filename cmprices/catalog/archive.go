package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/config"
	"github.com/klauspost/compress/gzip"
)

type FileStatus string

const (
	StatusProcessed FileStatus = "processed"
	StatusFailed    FileStatus = "failed"
	StatusSkipped   FileStatus = "skipped"
)

// FileResult is the per-file outcome of an archive run.
type FileResult struct {
	File      string
	Status    FileStatus
	NewPrices int
	Attempts  int
	Err       error
}

// ArchiveResult aggregates an archive directory run.
type ArchiveResult struct {
	Processed      int
	Failed         int
	Skipped        int
	TotalNewPrices int
	Files          []FileResult
}

// ProcessOptions controls an archive run. A zero FromDate disables the date
// filter.
type ProcessOptions struct {
	Dir      string
	FromDate time.Time
	Force    bool
}

// ArchiveProcessor replays archived price guide snapshots with per-file
// bounded retries. A failing file never aborts the run.
type ArchiveProcessor struct {
	ingestor   *PriceIngestor
	maxRetries int
	retryDelay time.Duration
}

func NewArchiveProcessor(ingestor *PriceIngestor, maxRetries int, retryDelay time.Duration) *ArchiveProcessor {
	if maxRetries <= 0 {
		maxRetries = config.MaxRetries
	}
	if retryDelay <= 0 {
		retryDelay = config.RetryDelay
	}
	return &ArchiveProcessor{
		ingestor:   ingestor,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

// ProcessDirectory ingests every archived snapshot in opts.Dir matching
// 202*json.gz, sorted by filename, optionally filtered to files whose
// filename date prefix is on or after opts.FromDate.
func (a *ArchiveProcessor) ProcessDirectory(ctx context.Context, opts ProcessOptions) (*ArchiveResult, error) {
	if _, err := os.Stat(opts.Dir); err != nil {
		return nil, fmt.Errorf("catalog directory does not exist: %s: %w", opts.Dir, err)
	}

	files, err := filepath.Glob(filepath.Join(opts.Dir, "202*json.gz"))
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog files: %w", err)
	}
	if len(files) == 0 {
		slog.Warn("No catalog files found",
			slog.String("type", "ingest"),
			slog.String("dir", opts.Dir))
		return &ArchiveResult{}, nil
	}

	if !opts.FromDate.IsZero() {
		files = filterByDate(files, opts.FromDate)
		slog.Info("Filtered catalog files by date",
			slog.String("type", "ingest"),
			slog.Int("remaining", len(files)),
			slog.Time("from_date", opts.FromDate))
	}

	result := &ArchiveResult{}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		fileResult := a.processFile(ctx, file, opts.Force)
		result.Files = append(result.Files, fileResult)

		switch fileResult.Status {
		case StatusProcessed:
			result.Processed++
			result.TotalNewPrices += fileResult.NewPrices
		case StatusFailed:
			result.Failed++
		case StatusSkipped:
			result.Skipped++
		}
	}

	slog.Info("Archive processing complete",
		slog.String("type", "ingest"),
		slog.Int("processed", result.Processed),
		slog.Int("failed", result.Failed),
		slog.Int("skipped", result.Skipped),
		slog.Int("total_new_prices", result.TotalNewPrices),
	)

	return result, nil
}

// processFile runs bounded retries for one archive file. Each attempt
// decompresses the file fresh so no partial state leaks between attempts.
func (a *ArchiveProcessor) processFile(ctx context.Context, path string, force bool) FileResult {
	name := filepath.Base(path)
	result := FileResult{File: name, Status: StatusFailed}

	for attempt := 1; attempt <= a.maxRetries; attempt++ {
		result.Attempts = attempt

		slog.Info("Processing catalog file",
			slog.String("type", "ingest"),
			slog.String("file", name),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", a.maxRetries))

		raw, err := readGzipped(path)
		if err == nil {
			var ingest *PriceIngestResult
			ingest, err = a.ingestor.Ingest(ctx, raw, force)
			if err == nil {
				result.Status = StatusProcessed
				result.NewPrices = ingest.Created
				result.Err = nil
				return result
			}
			if errors.Is(err, ErrAlreadyProcessed) {
				result.Status = StatusSkipped
				result.Err = nil
				return result
			}
		}

		result.Err = err
		slog.Warn("Catalog file attempt failed",
			slog.String("type", "ingest"),
			slog.String("file", name),
			slog.Int("attempt", attempt),
			slog.Any("error", err))

		if attempt < a.maxRetries {
			select {
			case <-time.After(a.retryDelay):
			case <-ctx.Done():
				result.Err = ctx.Err()
				return result
			}
		}
	}

	slog.Error("All attempts failed for catalog file",
		slog.String("type", "error"),
		slog.String("file", name),
		slog.Int("attempts", result.Attempts),
		slog.Any("error", result.Err))

	return result
}

func readGzipped(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress %s: %w", path, err)
	}
	defer gz.Close()

	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return raw, nil
}

// filterByDate keeps files whose 10-char filename date prefix is on or after
// the cutoff. Unparsable prefixes are kept rather than silently dropped.
func filterByDate(files []string, fromDate time.Time) []string {
	cutoff := fromDate.Truncate(24 * time.Hour)

	var filtered []string
	for _, file := range files {
		name := filepath.Base(file)
		if len(name) < config.ArchiveDatePrefixLen {
			filtered = append(filtered, file)
			continue
		}

		fileDate, err := time.Parse("2006-01-02", name[:config.ArchiveDatePrefixLen])
		if err != nil {
			slog.Warn("Could not parse date from filename",
				slog.String("type", "ingest"),
				slog.String("file", name))
			filtered = append(filtered, file)
			continue
		}

		if !fileDate.Before(cutoff) {
			filtered = append(filtered, file)
		}
	}
	return filtered
}
