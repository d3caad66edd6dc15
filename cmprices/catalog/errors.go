package catalog

import (
	"errors"
	"fmt"
	"time"
)

// ErrAlreadyProcessed gates re-ingestion of a snapshot whose fingerprint is
// already in the ledger. Match with errors.Is.
var ErrAlreadyProcessed = errors.New("catalog already processed")

// ErrUnsupportedVersion marks a price guide whose schema version is not 1.
var ErrUnsupportedVersion = errors.New("unsupported catalog version")

// AlreadyProcessedError carries the catalog date recorded when the snapshot
// was first ingested.
type AlreadyProcessedError struct {
	CatalogDate time.Time
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("catalog already processed on %s", e.CatalogDate.Format("2006-01-02"))
}

func (e *AlreadyProcessedError) Is(target error) bool {
	return target == ErrAlreadyProcessed
}

// ParseError marks a snapshot that cannot be ingested at all: malformed JSON,
// a missing required field, or a version mismatch. The retry driver treats it
// the same as any other per-file failure.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("catalog parse failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("catalog parse failed: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
