package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"k8s.io/klog"

	"github.com/andresbrocco/finance-etl/pkg/config"
	"github.com/andresbrocco/finance-etl/pkg/extract"
	"github.com/andresbrocco/finance-etl/pkg/influxutils"
	"github.com/andresbrocco/finance-etl/pkg/loader"
	"github.com/andresbrocco/finance-etl/pkg/postgresutils"
	"github.com/andresbrocco/finance-etl/pkg/transform"
)

// ETLRunner runs one extract, transform, load cycle against the
// warehouse for the configured transactions CSV. In dry-run mode the
// load stage is skipped and nothing is written.
type ETLRunner struct {
	db      *bun.DB
	csvFile string
	dryRun  bool
}

func NewETLRunner(csvFile string, dryRun bool) (*ETLRunner, error) {
	if csvFile == "" {
		csvFile = config.CurrentWarehouseConfig().CSV.TransactionsFile
	}
	if csvFile == "" {
		return nil, fmt.Errorf("no transactions csv file configured")
	}

	db, err := postgresutils.CreatePostgresClient(config.CurrentWarehouseConfig().SQL.WarehouseDatabase)
	if err != nil {
		return nil, fmt.Errorf("Error connecting to postgres DB: %s", err)
	}

	klog.Infof("Connected to postgres database %v\n", config.CurrentWarehouseConfig().SQL.WarehouseDatabase)

	return &ETLRunner{db: db, csvFile: csvFile, dryRun: dryRun}, nil
}

func (r *ETLRunner) Run() error {
	started := time.Now()
	ctx := context.Background()

	if err := r.checkPrerequisites(ctx); err != nil {
		return fmt.Errorf("prerequisite check failed: %w", err)
	}

	raw, err := extract.Transactions(r.csvFile)
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	batch, issues, err := transform.Transactions(raw)
	if err != nil {
		return fmt.Errorf("transform failed: %w", err)
	}

	if r.dryRun {
		klog.Infof("Dry run: %d raw rows, %d valid, %d data quality issues, skipping load\n", len(raw), len(batch.Facts), len(issues))
		return nil
	}

	result, err := loader.LoadWarehouse(ctx, r.db, batch, config.CurrentWarehouseConfig().BatchSize())
	if err != nil {
		// the warehouse is untouched at this point, the run can be
		// retried with the same batch once the cause is fixed
		return fmt.Errorf("load failed, warehouse unchanged: %w", err)
	}

	logSummary(len(raw), len(batch.Facts), issues, result)

	r.reportRun(result, time.Since(started))

	return nil
}

func (r *ETLRunner) Close() error {
	return r.db.Close()
}

var requiredTables = []string{
	"dim_category",
	"dim_date",
	"dim_merchant",
	"dim_payment_method",
	"dim_user",
	"fact_transactions",
}

// checkPrerequisites verifies the source file is readable, the database
// answers, and the star schema exists before any stage runs. Failing
// here is cheaper and clearer than failing halfway through a load.
func (r *ETLRunner) checkPrerequisites(ctx context.Context) error {
	if _, err := os.Stat(r.csvFile); err != nil {
		return fmt.Errorf("transactions file not readable: %w", err)
	}

	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres not reachable: %w", err)
	}

	var existing []string
	err := r.db.NewSelect().
		TableExpr("information_schema.tables").
		Column("table_name").
		Where("table_schema = 'public'").
		Scan(ctx, &existing)
	if err != nil {
		return fmt.Errorf("listing warehouse tables: %w", err)
	}

	if missing := missingTables(existing); len(missing) > 0 {
		return fmt.Errorf("warehouse tables missing (%s), run the provision task first", strings.Join(missing, ", "))
	}

	return nil
}

func missingTables(existing []string) []string {
	present := make(map[string]struct{}, len(existing))
	for _, name := range existing {
		present[name] = struct{}{}
	}

	var missing []string
	for _, name := range requiredTables {
		if _, ok := present[name]; !ok {
			missing = append(missing, name)
		}
	}

	return missing
}

func logSummary(rawCount, validCount int, issues []string, result *loader.Result) {
	klog.Infof("Pipeline summary: %d raw rows, %d valid, %d data quality issues\n", rawCount, validCount, len(issues))

	for name, count := range result.DimensionsInserted {
		if count > 0 {
			klog.Infof("  %s: %d new rows\n", name, count)
		}
	}

	klog.Infof("  facts inserted: %d, skipped: %d\n", result.FactsInserted, result.FactsSkipped)
}

// reportRun posts run counters to influx when an endpoint is configured.
// Metrics are best effort, a failed write never fails a committed run.
func (r *ETLRunner) reportRun(result *loader.Result, duration time.Duration) {
	secrets := config.CurrentInfluxSecrets()
	if secrets.InfluxEndpoint == "" {
		return
	}

	database := config.CurrentWarehouseConfig().Influx.Database
	if database == "" {
		database = "finance_etl"
	}

	influxClient, err := influxutils.CreateInfluxClient(secrets)
	if err != nil {
		klog.Warningf("Failed to create influx client: %v\n", err)
		return
	}
	defer influxClient.Close()

	if err := influxutils.EnsureDatabase(influxClient, database); err != nil {
		klog.Warningf("Failed to ensure influx database: %v\n", err)
		return
	}

	if err := influxutils.WriteRunSummary(influxClient, database, result, duration); err != nil {
		klog.Warningf("Failed to write run summary to influx: %v\n", err)
	}
}
