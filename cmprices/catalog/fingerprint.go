package catalog

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ellavondegurechaff/cmprices/cmprices/database/models"
	"github.com/ellavondegurechaff/cmprices/cmprices/database/repositories"
)

// Fingerprint hashes the raw snapshot bytes exactly as received. The parsed
// structure never enters the hash.
func Fingerprint(raw []byte) string {
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])
}

// Deduplicator gates ingestion on the catalog ledger. A fingerprint that is
// already recorded for the same catalog type means the snapshot content was
// ingested before.
type Deduplicator struct {
	catalogs repositories.CatalogRepository
}

func NewDeduplicator(catalogs repositories.CatalogRepository) *Deduplicator {
	return &Deduplicator{catalogs: catalogs}
}

// Check looks up the fingerprint in the ledger. Without force, a match stops
// ingestion with ErrAlreadyProcessed carrying the prior catalog date. With
// force, ingestion proceeds but the caller must not record a second ledger
// row; the returned flag reports whether a row already exists.
func (d *Deduplicator) Check(ctx context.Context, md5sum string, catalogType models.CatalogType, force bool) (exists bool, err error) {
	existing, err := d.catalogs.GetByFingerprint(ctx, md5sum, catalogType)
	if err != nil {
		return false, fmt.Errorf("failed to check catalog ledger: %w", err)
	}
	if existing == nil {
		return false, nil
	}
	if !force {
		return true, &AlreadyProcessedError{CatalogDate: existing.CatalogDate}
	}
	return true, nil
}

// Record appends the ledger row for a newly ingested snapshot. Called exactly
// once per distinct content, after the snapshot's writes have landed.
func (d *Deduplicator) Record(ctx context.Context, md5sum string, catalogType models.CatalogType, catalogDate time.Time) error {
	entry := &models.Catalog{
		CatalogDate: catalogDate,
		CatalogType: catalogType,
		MD5Sum:      md5sum,
		Active:      true,
	}
	if err := d.catalogs.Create(ctx, entry); err != nil {
		return fmt.Errorf("failed to record catalog ledger entry: %w", err)
	}
	return nil
}
