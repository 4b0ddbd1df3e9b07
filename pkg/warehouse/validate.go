package warehouse

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
)

type TableCount struct {
	TableName   string
	RecordCount int
}

type AmountStats struct {
	TotalTransactions int
	MinAmount         float64
	MaxAmount         float64
	AvgAmount         float64
	MedianAmount      float64
}

// ValidationReport summarizes the structural health of the star schema:
// row counts per table, fact rows referencing a missing dimension row,
// and repeated transaction ids.
type ValidationReport struct {
	RecordCounts          []TableCount
	OrphanedFacts         int
	DuplicateTransactions int
	Amounts               AmountStats
}

// Passed reports whether the warehouse holds its integrity guarantees:
// every fact resolves to a dimension row and transaction ids are unique.
func (r *ValidationReport) Passed() bool {
	return r.OrphanedFacts == 0 && r.DuplicateTransactions == 0
}

const recordCountsQuery = `
SELECT 'dim_category' AS table_name, COUNT(*) AS record_count FROM dim_category
UNION ALL
SELECT 'dim_date', COUNT(*) FROM dim_date
UNION ALL
SELECT 'dim_merchant', COUNT(*) FROM dim_merchant
UNION ALL
SELECT 'dim_payment_method', COUNT(*) FROM dim_payment_method
UNION ALL
SELECT 'dim_user', COUNT(*) FROM dim_user
UNION ALL
SELECT 'fact_transactions', COUNT(*) FROM fact_transactions
ORDER BY table_name`

const orphanedFactsQuery = `
SELECT COUNT(*)
FROM fact_transactions f
WHERE NOT EXISTS (SELECT 1 FROM dim_date d WHERE d.date_key = f.date_key)
   OR NOT EXISTS (SELECT 1 FROM dim_category c WHERE c.category_key = f.category_key)
   OR NOT EXISTS (SELECT 1 FROM dim_merchant m WHERE m.merchant_key = f.merchant_key)
   OR NOT EXISTS (SELECT 1 FROM dim_payment_method pm WHERE pm.payment_method_key = f.payment_method_key)
   OR NOT EXISTS (SELECT 1 FROM dim_user u WHERE u.user_key = f.user_key)`

const duplicateTransactionsQuery = `
SELECT COUNT(*)
FROM (
	SELECT transaction_id
	FROM fact_transactions
	GROUP BY transaction_id
	HAVING COUNT(*) > 1
) AS duplicated`

const amountStatsQuery = `
SELECT
	COUNT(*) AS total_transactions,
	COALESCE(MIN(amount), 0) AS min_amount,
	COALESCE(MAX(amount), 0) AS max_amount,
	COALESCE(AVG(amount), 0) AS avg_amount,
	COALESCE(PERCENTILE_CONT(0.5) WITHIN GROUP (ORDER BY amount), 0) AS median_amount
FROM fact_transactions`

// Validate runs the structural validation queries against the warehouse
// and collects the results into one report.
func Validate(ctx context.Context, db *bun.DB) (*ValidationReport, error) {
	report := &ValidationReport{}

	if err := db.NewRaw(recordCountsQuery).Scan(ctx, &report.RecordCounts); err != nil {
		return nil, fmt.Errorf("counting warehouse rows: %w", err)
	}

	if err := db.NewRaw(orphanedFactsQuery).Scan(ctx, &report.OrphanedFacts); err != nil {
		return nil, fmt.Errorf("checking orphaned facts: %w", err)
	}

	if err := db.NewRaw(duplicateTransactionsQuery).Scan(ctx, &report.DuplicateTransactions); err != nil {
		return nil, fmt.Errorf("checking duplicate transaction ids: %w", err)
	}

	if err := db.NewRaw(amountStatsQuery).Scan(ctx, &report.Amounts); err != nil {
		return nil, fmt.Errorf("profiling amounts: %w", err)
	}

	return report, nil
}
