package loader

import (
	"context"
	"fmt"
	"sort"

	"github.com/uptrace/bun"
	"k8s.io/klog"

	"github.com/andresbrocco/finance-etl/pkg/warehouse"
)

// upsertDimensions inserts dimension rows for natural keys not seen
// before. ON CONFLICT DO NOTHING makes repeated and concurrent runs safe:
// existing keys are left untouched and their surrogate keys never change.
// Returns the number of rows inserted per dimension.
func upsertDimensions(ctx context.Context, idb bun.IDB, batch *Batch) (map[string]int, error) {
	inserted := map[string]int{
		"dim_category":       0,
		"dim_merchant":       0,
		"dim_payment_method": 0,
		"dim_user":           0,
	}

	if len(batch.Categories) > 0 {
		rows := make([]warehouse.DimCategory, 0, len(batch.Categories))
		for _, name := range batch.Categories {
			rows = append(rows, warehouse.DimCategory{CategoryName: name})
		}

		n, err := insertIgnoring(ctx, idb, &rows, "category_name")
		if err != nil {
			return nil, fmt.Errorf("error writing dim_category: %w", err)
		}
		inserted["dim_category"] = n
	}

	if len(batch.Merchants) > 0 {
		rows := make([]warehouse.DimMerchant, 0, len(batch.Merchants))
		for _, name := range batch.Merchants {
			rows = append(rows, warehouse.DimMerchant{MerchantName: name})
		}

		n, err := insertIgnoring(ctx, idb, &rows, "merchant_name")
		if err != nil {
			return nil, fmt.Errorf("error writing dim_merchant: %w", err)
		}
		inserted["dim_merchant"] = n
	}

	if len(batch.PaymentMethods) > 0 {
		rows := make([]warehouse.DimPaymentMethod, 0, len(batch.PaymentMethods))
		for _, name := range batch.PaymentMethods {
			rows = append(rows, warehouse.DimPaymentMethod{PaymentMethodName: name})
		}

		n, err := insertIgnoring(ctx, idb, &rows, "payment_method_name")
		if err != nil {
			return nil, fmt.Errorf("error writing dim_payment_method: %w", err)
		}
		inserted["dim_payment_method"] = n
	}

	if len(batch.Users) > 0 {
		rows := make([]warehouse.DimUser, 0, len(batch.Users))
		for _, id := range batch.Users {
			rows = append(rows, warehouse.DimUser{UserID: id})
		}

		n, err := insertIgnoring(ctx, idb, &rows, "user_id")
		if err != nil {
			return nil, fmt.Errorf("error writing dim_user: %w", err)
		}
		inserted["dim_user"] = n
	}

	for name, n := range inserted {
		if n > 0 {
			klog.Infof("Inserted %d new rows into %s\n", n, name)
		}
	}

	return inserted, nil
}

func insertIgnoring(ctx context.Context, idb bun.IDB, rows interface{}, conflictColumn string) (int, error) {
	res, err := idb.NewInsert().
		Model(rows).
		On(fmt.Sprintf("CONFLICT (%s) DO NOTHING", conflictColumn)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	n, err := res.RowsAffected()
	return int(n), err
}

// resolveMappings re-queries the complete natural to surrogate key map
// for every dimension after the upserts, so pre-existing keys resolve
// too. One query per dimension, never per fact row.
func resolveMappings(ctx context.Context, idb bun.IDB, batch *Batch) (*Mappings, error) {
	mappings := &Mappings{
		Categories:     make(map[string]int64),
		Merchants:      make(map[string]int64),
		PaymentMethods: make(map[string]int64),
		Users:          make(map[int64]int64),
		DateKeys:       make(map[int]struct{}),
	}

	var categories []warehouse.DimCategory
	if err := idb.NewSelect().Model(&categories).Scan(ctx); err != nil {
		return nil, fmt.Errorf("error reading dim_category: %w", err)
	}
	for _, row := range categories {
		mappings.Categories[row.CategoryName] = row.CategoryKey
	}

	var merchants []warehouse.DimMerchant
	if err := idb.NewSelect().Model(&merchants).Scan(ctx); err != nil {
		return nil, fmt.Errorf("error reading dim_merchant: %w", err)
	}
	for _, row := range merchants {
		mappings.Merchants[row.MerchantName] = row.MerchantKey
	}

	var paymentMethods []warehouse.DimPaymentMethod
	if err := idb.NewSelect().Model(&paymentMethods).Scan(ctx); err != nil {
		return nil, fmt.Errorf("error reading dim_payment_method: %w", err)
	}
	for _, row := range paymentMethods {
		mappings.PaymentMethods[row.PaymentMethodName] = row.PaymentMethodKey
	}

	var users []warehouse.DimUser
	if err := idb.NewSelect().Model(&users).Scan(ctx); err != nil {
		return nil, fmt.Errorf("error reading dim_user: %w", err)
	}
	for _, row := range users {
		mappings.Users[row.UserID] = row.UserKey
	}

	dateKeys, err := resolveDateKeys(ctx, idb, batch.DateKeys)
	if err != nil {
		return nil, err
	}
	mappings.DateKeys = dateKeys

	klog.Infof("Resolved key mappings: %d categories, %d merchants, %d payment methods, %d users, %d dates\n",
		len(mappings.Categories), len(mappings.Merchants), len(mappings.PaymentMethods), len(mappings.Users), len(mappings.DateKeys))

	return mappings, nil
}

// resolveDateKeys checks batch dates against the pre-provisioned date
// dimension. Date keys are never assigned dynamically, a missing one
// means the provisioned calendar range doesn't cover the batch and the
// operator has to re-provision, so it's a ConfigError rather than a
// data-quality failure.
func resolveDateKeys(ctx context.Context, idb bun.IDB, batchKeys []int) (map[int]struct{}, error) {
	found := make(map[int]struct{}, len(batchKeys))
	if len(batchKeys) == 0 {
		return found, nil
	}

	var keys []int
	err := idb.NewSelect().
		Model((*warehouse.DimDate)(nil)).
		Column("date_key").
		Where("date_key IN (?)", bun.In(batchKeys)).
		Scan(ctx, &keys)
	if err != nil {
		return nil, fmt.Errorf("error reading dim_date: %w", err)
	}

	for _, key := range keys {
		found[key] = struct{}{}
	}

	var missing []int
	for _, key := range batchKeys {
		if _, ok := found[key]; !ok {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		sort.Ints(missing)
		return nil, &ConfigError{
			Dimension: "date",
			Detail:    fmt.Sprintf("%d date keys outside provisioned range, first missing %d", len(missing), missing[0]),
		}
	}

	return found, nil
}
