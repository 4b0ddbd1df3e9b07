package loader

import (
	"context"

	"github.com/uptrace/bun"
	"k8s.io/klog"

	"github.com/andresbrocco/finance-etl/pkg/warehouse"
)

// existingTransactionIDs returns which of the batch's transaction ids are
// already persisted, with a single membership query.
func existingTransactionIDs(ctx context.Context, idb bun.IDB, facts []warehouse.FactTransaction) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(facts) == 0 {
		return existing, nil
	}

	ids := make([]string, 0, len(facts))
	for _, fact := range facts {
		ids = append(ids, fact.TransactionID)
	}

	var found []string
	err := idb.NewSelect().
		Model((*warehouse.FactTransaction)(nil)).
		Column("transaction_id").
		Where("transaction_id IN (?)", bun.In(ids)).
		Scan(ctx, &found)
	if err != nil {
		return nil, err
	}

	for _, id := range found {
		existing[id] = struct{}{}
	}

	return existing, nil
}

// partitionFacts splits enriched facts into rows to insert and rows whose
// transaction id is already persisted. A duplicate is a counted skip, not
// an error, so re-running a batch is always safe.
func partitionFacts(facts []warehouse.FactTransaction, existing map[string]struct{}) (newFacts []warehouse.FactTransaction, skipped int) {
	newFacts = make([]warehouse.FactTransaction, 0, len(facts))

	for _, fact := range facts {
		if _, ok := existing[fact.TransactionID]; ok {
			skipped++
			continue
		}
		newFacts = append(newFacts, fact)
	}

	return newFacts, skipped
}

// loadFacts inserts enriched fact rows that aren't already persisted,
// in batches of batchSize to bound statement size. The batch size only
// affects round trips, never the persisted set; non-positive values are
// treated as 1.
func loadFacts(ctx context.Context, idb bun.IDB, facts []warehouse.FactTransaction, batchSize int) (inserted, skipped int, err error) {
	if len(facts) == 0 {
		klog.Warning("No fact records to load")
		return 0, 0, nil
	}

	if batchSize < 1 {
		batchSize = 1
	}

	existing, err := existingTransactionIDs(ctx, idb, facts)
	if err != nil {
		return 0, 0, err
	}

	newFacts, skipped := partitionFacts(facts, existing)
	if len(newFacts) == 0 {
		klog.Infof("No new transactions to insert (all %d already exist)\n", skipped)
		return 0, skipped, nil
	}

	for i := 0; i < len(newFacts); i += batchSize {
		endIndex := min(len(newFacts), i+batchSize)

		records := newFacts[i:endIndex]
		res, err := idb.NewInsert().
			Model(&records).
			On("CONFLICT (transaction_id) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return inserted, skipped, err
		}

		n, err := res.RowsAffected()
		if err != nil {
			return inserted, skipped, err
		}
		inserted += int(n)
	}

	klog.Infof("Inserted %d new transactions, skipped %d existing\n", inserted, skipped)

	return inserted, skipped, nil
}
