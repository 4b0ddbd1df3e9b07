package extract

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"k8s.io/klog"
)

var requiredColumns = []string{
	"transaction_id", "date", "category", "amount", "merchant", "payment_method", "user_id",
}

// RawTransaction is one CSV row, untyped. The transform stage owns
// parsing and validation.
type RawTransaction struct {
	TransactionID string
	Date          string
	Category      string
	Amount        string
	Merchant      string
	PaymentMethod string
	UserID        string
}

// Transactions reads the transactions CSV and returns its rows. The
// header is matched case-insensitively and may carry extra columns;
// missing required columns fail extraction.
func Transactions(csvFile string) ([]RawTransaction, error) {
	f, err := os.Open(csvFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s csv file %w", csvFile, err)
	}
	defer f.Close()

	reader := csv.NewReader(bufio.NewReader(f))
	// rows may have trailing columns we don't care about
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv file %s is empty", csvFile)
	} else if err != nil {
		return nil, fmt.Errorf("failed to parse %s csv header %w", csvFile, err)
	}

	headerMap := generateHeaderMap(header)

	if missing := missingColumns(headerMap); len(missing) > 0 {
		return nil, fmt.Errorf("csv file %s missing required columns: %s", csvFile, strings.Join(missing, ", "))
	}

	var transactions []RawTransaction

	for {
		line, err := reader.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to parse %s csv row %w", csvFile, err)
		}

		transactions = append(transactions, RawTransaction{
			TransactionID: getKey(line, headerMap, "transaction_id"),
			Date:          getKey(line, headerMap, "date"),
			Category:      getKey(line, headerMap, "category"),
			Amount:        getKey(line, headerMap, "amount"),
			Merchant:      getKey(line, headerMap, "merchant"),
			PaymentMethod: getKey(line, headerMap, "payment_method"),
			UserID:        getKey(line, headerMap, "user_id"),
		})
	}

	if len(transactions) == 0 {
		return nil, fmt.Errorf("csv file %s has no data rows", csvFile)
	}

	klog.Infof("Extracted %d transactions from %s\n", len(transactions), csvFile)

	return transactions, nil
}

// generateHeaderMap creates a map of lower cased header name to column index
func generateHeaderMap(record []string) map[string]int {
	m := make(map[string]int)
	for i, r := range record {
		m[strings.ToLower(strings.TrimSpace(r))] = i
	}
	return m
}

func missingColumns(headerMap map[string]int) []string {
	var missing []string
	for _, column := range requiredColumns {
		if _, ok := headerMap[column]; !ok {
			missing = append(missing, column)
		}
	}
	return missing
}

func getKey(record []string, headerMap map[string]int, column string) string {
	if i, ok := headerMap[column]; ok && i < len(record) {
		return record[i]
	}
	return ""
}
