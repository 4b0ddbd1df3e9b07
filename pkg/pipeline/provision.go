package pipeline

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"
	"k8s.io/klog"

	"github.com/andresbrocco/finance-etl/pkg/config"
	"github.com/andresbrocco/finance-etl/pkg/postgresutils"
	"github.com/andresbrocco/finance-etl/pkg/warehouse"
)

// ProvisionRunner creates the star schema and pre-populates the date
// dimension for the configured calendar range. It has to run before the
// first ETL run and again whenever the range is extended.
type ProvisionRunner struct {
	db *bun.DB
}

func NewProvisionRunner() (*ProvisionRunner, error) {
	db, err := postgresutils.CreatePostgresClient(config.CurrentWarehouseConfig().SQL.WarehouseDatabase)
	if err != nil {
		return nil, fmt.Errorf("Error connecting to postgres DB: %s", err)
	}

	return &ProvisionRunner{db: db}, nil
}

func (r *ProvisionRunner) Run() error {
	ctx := context.Background()

	err := warehouse.Migrate(ctx, r.db)
	if err != nil {
		return err
	}

	startYear, endYear := dateRange()

	inserted, err := warehouse.ProvisionDates(ctx, r.db, startYear, endYear, config.CurrentWarehouseConfig().BatchSize())
	if err != nil {
		return err
	}

	klog.Infof("Warehouse provisioned, %d new date rows\n", inserted)

	return nil
}

func (r *ProvisionRunner) Close() error {
	return r.db.Close()
}

func dateRange() (int, int) {
	conf := config.CurrentWarehouseConfig()

	startYear := conf.DateRange.StartYear
	if startYear == 0 {
		startYear = 2022
	}

	endYear := conf.DateRange.EndYear
	if endYear == 0 {
		endYear = 2026
	}

	return startYear, endYear
}
