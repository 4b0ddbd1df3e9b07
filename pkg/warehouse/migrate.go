package warehouse

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"k8s.io/klog"
)

// indexes on every fact foreign key plus the natural keys keep key
// resolution lookups and duplicate checks sub-linear. Natural keys
// already get an index from their unique constraint.
var indexStatements = []string{
	`CREATE INDEX IF NOT EXISTS idx_fact_transactions_date_key ON fact_transactions (date_key)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_transactions_category_key ON fact_transactions (category_key)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_transactions_merchant_key ON fact_transactions (merchant_key)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_transactions_payment_method_key ON fact_transactions (payment_method_key)`,
	`CREATE INDEX IF NOT EXISTS idx_fact_transactions_user_key ON fact_transactions (user_key)`,
}

// Migrate creates the star schema tables and indexes if they don't exist.
func Migrate(ctx context.Context, db *bun.DB) error {
	models := []interface{}{
		(*DimDate)(nil),
		(*DimCategory)(nil),
		(*DimMerchant)(nil),
		(*DimPaymentMethod)(nil),
		(*DimUser)(nil),
		(*FactTransaction)(nil),
	}

	for _, model := range models {
		_, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		if err != nil {
			return fmt.Errorf("error creating table: %w", err)
		}
	}

	for _, stmt := range indexStatements {
		_, err := db.ExecContext(ctx, stmt)
		if err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// ProvisionDates populates dim_date for every day of the calendar range
// [startYear, endYear]. Re-running is a no-op for days already present,
// so extending the range only appends the new days.
func ProvisionDates(ctx context.Context, db *bun.DB, startYear, endYear, batchSize int) (int, error) {
	if endYear < startYear {
		return 0, fmt.Errorf("invalid date range: %d-%d", startYear, endYear)
	}

	if batchSize < 1 {
		batchSize = 1
	}

	start := time.Date(startYear, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(endYear, time.December, 31, 0, 0, 0, 0, time.UTC)

	rows := make([]DimDate, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		rows = append(rows, NewDimDate(d))
	}

	inserted := 0

	for i := 0; i < len(rows); i += batchSize {
		endIndex := min(len(rows), i+batchSize)

		batch := rows[i:endIndex]
		res, err := db.NewInsert().
			Model(&batch).
			On("CONFLICT (date_key) DO NOTHING").
			Exec(ctx)
		if err != nil {
			return inserted, fmt.Errorf("error writing dim_date: %w", err)
		}

		n, err := res.RowsAffected()
		if err != nil {
			return inserted, err
		}
		inserted += int(n)
	}

	klog.Infof("Provisioned dim_date for %d-%d: %d days, %d new\n", startYear, endYear, len(rows), inserted)

	return inserted, nil
}
