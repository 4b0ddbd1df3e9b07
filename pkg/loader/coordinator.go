package loader

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"k8s.io/klog"
)

// LoadWarehouse runs the whole load stage for one batch inside a single
// database transaction: dimension upserts, key resolution, fact
// enrichment, incremental fact insert. Only a fully successful run
// commits; any failure rolls every write back so the warehouse is left
// exactly as it was. A half-loaded star schema is worse than no load at
// all, downstream joins would silently undercount.
//
// The transaction handle is owned here exclusively and passed down to
// each step; resolution strictly precedes enrichment, which strictly
// precedes fact loading.
func LoadWarehouse(ctx context.Context, db *bun.DB, batch *Batch, batchSize int) (*Result, error) {
	if batch == nil || len(batch.Facts) == 0 {
		return nil, errors.New("batch has no fact records")
	}

	result := &Result{}

	err := db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		inserted, err := upsertDimensions(ctx, tx, batch)
		if err != nil {
			return wrapStorage(PhaseDimensions, err)
		}
		result.DimensionsInserted = inserted

		mappings, err := resolveMappings(ctx, tx, batch)
		if err != nil {
			return wrapStorage(PhaseResolve, err)
		}

		enriched, err := enrichFacts(batch.Facts, mappings)
		if err != nil {
			// integrity failures are never storage errors
			return err
		}

		result.FactsInserted, result.FactsSkipped, err = loadFacts(ctx, tx, enriched, batchSize)
		if err != nil {
			return wrapStorage(PhaseFacts, err)
		}

		return nil
	})
	if err != nil {
		klog.Errorf("Load rolled back: %v\n", err)
		return nil, err
	}

	klog.Infof("Load committed: %d facts inserted, %d skipped\n", result.FactsInserted, result.FactsSkipped)

	return result, nil
}

// wrapStorage tags driver failures with the phase they happened in.
// Typed config and integrity errors pass through untouched so callers
// can branch on kind with errors.As.
func wrapStorage(phase Phase, err error) error {
	var configErr *ConfigError
	var integrityErr *IntegrityError

	if errors.As(err, &configErr) || errors.As(err, &integrityErr) {
		return err
	}

	return &StorageError{Phase: phase, Err: err}
}
