package loader

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/andresbrocco/finance-etl/pkg/warehouse"
)

// These tests need a throwaway postgres database, pointed to by
// FINANCE_ETL_TEST_DATABASE_URL. They drop and recreate the warehouse
// tables on every run.
func testDB(t *testing.T) *bun.DB {
	t.Helper()

	dsn := os.Getenv("FINANCE_ETL_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("FINANCE_ETL_TEST_DATABASE_URL not set")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	require.NoError(t, db.Ping())

	ctx := context.Background()

	models := []interface{}{
		(*warehouse.FactTransaction)(nil),
		(*warehouse.DimDate)(nil),
		(*warehouse.DimCategory)(nil),
		(*warehouse.DimMerchant)(nil),
		(*warehouse.DimPaymentMethod)(nil),
		(*warehouse.DimUser)(nil),
	}
	for _, model := range models {
		_, err := db.NewDropTable().Model(model).IfExists().Cascade().Exec(ctx)
		require.NoError(t, err)
	}

	require.NoError(t, warehouse.Migrate(ctx, db))

	_, err := warehouse.ProvisionDates(ctx, db, 2022, 2026, 1000)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })

	return db
}

func testBatch(ids ...string) *Batch {
	batch := &Batch{
		Categories:     []string{"Dining", "Groceries"},
		Merchants:      []string{"Chipotle", "Whole Foods Market"},
		PaymentMethods: []string{"Cash", "Credit Card"},
		Users:          []int64{7, 9},
		DateKeys:       []int{20230510},
	}

	for i, id := range ids {
		category := "Groceries"
		merchant := "Whole Foods Market"
		if i%2 == 1 {
			category = "Dining"
			merchant = "Chipotle"
		}

		batch.Facts = append(batch.Facts, FactRecord{
			TransactionID: id,
			DateKey:       20230510,
			Category:      category,
			Merchant:      merchant,
			PaymentMethod: "Credit Card",
			UserID:        7,
			Amount:        10.50,
		})
	}

	return batch
}

func TestLoadWarehouseIdempotent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	batch := testBatch("txn-1", "txn-2", "txn-3")

	first, err := LoadWarehouse(ctx, db, batch, 2)
	require.NoError(t, err)
	assert.Equal(t, 3, first.FactsInserted)
	assert.Equal(t, 0, first.FactsSkipped)
	assert.Equal(t, 2, first.DimensionsInserted["dim_category"])
	assert.Equal(t, 2, first.DimensionsInserted["dim_merchant"])

	second, err := LoadWarehouse(ctx, db, batch, 2)
	require.NoError(t, err)
	assert.Equal(t, 0, second.FactsInserted)
	assert.Equal(t, 3, second.FactsSkipped)
	assert.Equal(t, 0, second.DimensionsInserted["dim_category"])

	count, err := db.NewSelect().Model((*warehouse.FactTransaction)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLoadWarehouseIncrementalNewMerchant(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := LoadWarehouse(ctx, db, testBatch("txn-1", "txn-2"), 1000)
	require.NoError(t, err)

	// same users and categories, one new merchant, three new transactions
	batch := testBatch("txn-3", "txn-4", "txn-5")
	batch.Merchants = append(batch.Merchants, "Trader Joes")
	batch.Facts[0].Merchant = "Trader Joes"

	result, err := LoadWarehouse(ctx, db, batch, 1000)
	require.NoError(t, err)

	assert.Equal(t, 1, result.DimensionsInserted["dim_merchant"])
	assert.Equal(t, 0, result.DimensionsInserted["dim_category"])
	assert.Equal(t, 0, result.DimensionsInserted["dim_user"])
	assert.Equal(t, 3, result.FactsInserted)
	assert.Equal(t, 0, result.FactsSkipped)
}

func TestLoadWarehouseKeyStability(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := LoadWarehouse(ctx, db, testBatch("txn-1"), 1000)
	require.NoError(t, err)

	var before warehouse.DimMerchant
	require.NoError(t, db.NewSelect().Model(&before).Where("merchant_name = ?", "Whole Foods Market").Scan(ctx))

	_, err = LoadWarehouse(ctx, db, testBatch("txn-2"), 1000)
	require.NoError(t, err)

	var after warehouse.DimMerchant
	require.NoError(t, db.NewSelect().Model(&after).Where("merchant_name = ?", "Whole Foods Market").Scan(ctx))

	assert.Equal(t, before.MerchantKey, after.MerchantKey)
}

func TestLoadWarehouseRollbackOnOutOfRangeDate(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	batch := testBatch("txn-1")
	// new merchant upserted before resolution fails
	batch.Merchants = append(batch.Merchants, "Future Store")
	batch.DateKeys = append(batch.DateKeys, 20270101)
	batch.Facts = append(batch.Facts, FactRecord{
		TransactionID: "txn-2027",
		DateKey:       20270101,
		Category:      "Groceries",
		Merchant:      "Future Store",
		PaymentMethod: "Credit Card",
		UserID:        7,
		Amount:        5,
	})

	_, err := LoadWarehouse(ctx, db, batch, 1000)
	require.Error(t, err)

	var configErr *ConfigError
	assert.True(t, errors.As(err, &configErr))

	// everything rolled back, including the dimension upserts
	facts, err := db.NewSelect().Model((*warehouse.FactTransaction)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, facts)

	merchants, err := db.NewSelect().Model((*warehouse.DimMerchant)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, merchants)
}

func TestLoadWarehouseRollbackMidBatchFailure(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	// cap amounts so only the last insert batch violates a constraint,
	// after earlier batches already inserted inside the transaction
	_, err := db.ExecContext(ctx, `ALTER TABLE fact_transactions ADD CONSTRAINT chk_amount_cap CHECK (amount <= 100)`)
	require.NoError(t, err)

	batch := testBatch("txn-1", "txn-2", "txn-3", "txn-4", "txn-5")
	batch.Facts[4].Amount = 500

	_, err = LoadWarehouse(ctx, db, batch, 2)
	require.Error(t, err)

	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.Equal(t, PhaseFacts, storageErr.Phase)

	// the successful earlier fact batches and the dimension upserts are
	// all rolled back with the failed batch
	facts, err := db.NewSelect().Model((*warehouse.FactTransaction)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, facts)

	for _, model := range []interface{}{
		(*warehouse.DimCategory)(nil),
		(*warehouse.DimMerchant)(nil),
		(*warehouse.DimUser)(nil),
	} {
		count, err := db.NewSelect().Model(model).Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	}
}

func TestLoadWarehouseNonPositiveBatchSize(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	result, err := LoadWarehouse(ctx, db, testBatch("txn-1", "txn-2"), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, result.FactsInserted)

	inserted, err := warehouse.ProvisionDates(ctx, db, 2022, 2022, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, inserted)
}

func TestValidateAfterLoad(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := LoadWarehouse(ctx, db, testBatch("txn-1", "txn-2", "txn-3"), 1000)
	require.NoError(t, err)

	report, err := warehouse.Validate(ctx, db)
	require.NoError(t, err)

	assert.True(t, report.Passed())
	assert.Equal(t, 0, report.OrphanedFacts)
	assert.Equal(t, 0, report.DuplicateTransactions)
	assert.Equal(t, 3, report.Amounts.TotalTransactions)

	counts := map[string]int{}
	for _, count := range report.RecordCounts {
		counts[count.TableName] = count.RecordCount
	}
	assert.Equal(t, 3, counts["fact_transactions"])
	assert.Equal(t, 2, counts["dim_category"])
	assert.Equal(t, 2, counts["dim_merchant"])
}

func TestLoadWarehouseReferentialIntegrity(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()

	_, err := LoadWarehouse(ctx, db, testBatch("txn-1", "txn-2", "txn-3"), 1000)
	require.NoError(t, err)

	orphans, err := db.NewSelect().
		Model((*warehouse.FactTransaction)(nil)).
		Where("category_key NOT IN (SELECT category_key FROM dim_category)").
		WhereOr("merchant_key NOT IN (SELECT merchant_key FROM dim_merchant)").
		WhereOr("payment_method_key NOT IN (SELECT payment_method_key FROM dim_payment_method)").
		WhereOr("user_key NOT IN (SELECT user_key FROM dim_user)").
		WhereOr("date_key NOT IN (SELECT date_key FROM dim_date)").
		Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, orphans)
}

func TestLoadWarehouseEmptyBatch(t *testing.T) {
	db := testDB(t)

	_, err := LoadWarehouse(context.Background(), db, &Batch{}, 1000)
	assert.Error(t, err)
}
