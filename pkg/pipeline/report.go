package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/uptrace/bun"
	"k8s.io/klog"

	"github.com/andresbrocco/finance-etl/pkg/config"
	"github.com/andresbrocco/finance-etl/pkg/postgresutils"
	"github.com/andresbrocco/finance-etl/pkg/warehouse"
)

type reportQuery struct {
	description string
	query       string
}

var sampleQueries = []reportQuery{
	{
		description: "Top 5 spending categories",
		query: `
SELECT
	c.category_name,
	COUNT(*) AS transaction_count,
	SUM(f.amount) AS total_spending,
	ROUND(AVG(f.amount), 2) AS avg_transaction,
	ROUND(SUM(f.amount) * 100.0 / (SELECT SUM(amount) FROM fact_transactions), 2) AS percentage_of_total
FROM fact_transactions f
JOIN dim_category c ON f.category_key = c.category_key
GROUP BY c.category_name
ORDER BY total_spending DESC
LIMIT 5`,
	},
	{
		description: "Monthly spending, most recent 6 months",
		query: `
SELECT
	d.year,
	d.month_name,
	COUNT(*) AS transaction_count,
	SUM(f.amount) AS total_spending,
	ROUND(AVG(f.amount), 2) AS avg_transaction
FROM fact_transactions f
JOIN dim_date d ON f.date_key = d.date_key
GROUP BY d.year, d.month, d.month_name
ORDER BY d.year DESC, d.month DESC
LIMIT 6`,
	},
	{
		description: "Top 10 merchants by spending",
		query: `
SELECT
	m.merchant_name,
	c.category_name,
	COUNT(*) AS transaction_count,
	SUM(f.amount) AS total_spent
FROM fact_transactions f
JOIN dim_merchant m ON f.merchant_key = m.merchant_key
JOIN dim_category c ON f.category_key = c.category_key
GROUP BY m.merchant_name, c.category_name
ORDER BY total_spent DESC
LIMIT 10`,
	},
}

// ReportRunner executes read-only queries against the warehouse: either
// the sample analytics queries, or the validation report that checks row
// counts, orphaned facts and duplicate transaction ids.
type ReportRunner struct {
	db         *bun.DB
	validation bool
}

func NewReportRunner(validation bool) (*ReportRunner, error) {
	db, err := postgresutils.CreatePostgresClient(config.CurrentWarehouseConfig().SQL.WarehouseDatabase)
	if err != nil {
		return nil, fmt.Errorf("Error connecting to postgres DB: %s", err)
	}

	return &ReportRunner{db: db, validation: validation}, nil
}

func (r *ReportRunner) Run() error {
	ctx := context.Background()

	if r.validation {
		return r.runValidation(ctx)
	}

	for _, sample := range sampleQueries {
		var rows []map[string]interface{}
		if err := r.db.NewRaw(sample.query).Scan(ctx, &rows); err != nil {
			return fmt.Errorf("query %q failed: %w", sample.description, err)
		}
		printRows(sample.description, rows)
	}

	return nil
}

func (r *ReportRunner) Close() error {
	return r.db.Close()
}

func (r *ReportRunner) runValidation(ctx context.Context) error {
	report, err := warehouse.Validate(ctx, r.db)
	if err != nil {
		return err
	}

	fmt.Println("Warehouse validation report")
	for _, count := range report.RecordCounts {
		fmt.Printf("  %s: %d rows\n", count.TableName, count.RecordCount)
	}
	fmt.Printf("  orphaned facts: %d\n", report.OrphanedFacts)
	fmt.Printf("  duplicate transaction_ids: %d\n", report.DuplicateTransactions)
	fmt.Printf("  amounts: min %.2f, max %.2f, avg %.2f, median %.2f over %d transactions\n",
		report.Amounts.MinAmount, report.Amounts.MaxAmount, report.Amounts.AvgAmount,
		report.Amounts.MedianAmount, report.Amounts.TotalTransactions)

	if !report.Passed() {
		return fmt.Errorf("warehouse validation failed: %d orphaned facts, %d duplicate transaction_ids",
			report.OrphanedFacts, report.DuplicateTransactions)
	}

	klog.Infoln("Warehouse validation passed")

	return nil
}

func printRows(description string, rows []map[string]interface{}) {
	fmt.Printf("\n%s\n", description)

	if len(rows) == 0 {
		fmt.Println("  no results")
		return
	}

	columns := make([]string, 0, len(rows[0]))
	for column := range rows[0] {
		columns = append(columns, column)
	}
	sort.Strings(columns)

	for _, row := range rows {
		parts := make([]string, 0, len(columns))
		for _, column := range columns {
			parts = append(parts, fmt.Sprintf("%s=%v", column, row[column]))
		}
		fmt.Printf("  %s\n", strings.Join(parts, "  "))
	}

	fmt.Printf("  rows: %d\n", len(rows))
}
