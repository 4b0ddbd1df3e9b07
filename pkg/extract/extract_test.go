package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "transactions.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestExtractTransactions(t *testing.T) {
	path := writeCSV(t, "transaction_id,date,category,amount,merchant,payment_method,user_id\n"+
		"txn-1,2023-05-10,Groceries,42.50,Whole Foods Market,Credit Card,7\n"+
		"txn-2,2023-05-11,Dining,18.25,Chipotle,Cash,9\n")

	rows, err := Transactions(path)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, "txn-1", rows[0].TransactionID)
	assert.Equal(t, "2023-05-10", rows[0].Date)
	assert.Equal(t, "Groceries", rows[0].Category)
	assert.Equal(t, "42.50", rows[0].Amount)
	assert.Equal(t, "Chipotle", rows[1].Merchant)
	assert.Equal(t, "Cash", rows[1].PaymentMethod)
	assert.Equal(t, "9", rows[1].UserID)
}

func TestExtractHeaderCaseInsensitive(t *testing.T) {
	path := writeCSV(t, "Transaction_ID,Date,Category,Amount,Merchant,Payment_Method,User_ID\n"+
		"txn-1,2023-05-10,Groceries,42.50,Whole Foods Market,Credit Card,7\n")

	rows, err := Transactions(path)
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "txn-1", rows[0].TransactionID)
}

func TestExtractIgnoresExtraColumns(t *testing.T) {
	path := writeCSV(t, "transaction_id,date,category,amount,merchant,payment_method,user_id,notes\n"+
		"txn-1,2023-05-10,Groceries,42.50,Whole Foods Market,Credit Card,7,something\n")

	rows, err := Transactions(path)
	require.NoError(t, err)
	require.Len(t, rows, 1)
}

func TestExtractMissingColumns(t *testing.T) {
	path := writeCSV(t, "transaction_id,date,amount\n"+
		"txn-1,2023-05-10,42.50\n")

	_, err := Transactions(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required columns")
	assert.Contains(t, err.Error(), "category")
}

func TestExtractEmptyFile(t *testing.T) {
	path := writeCSV(t, "")

	_, err := Transactions(path)
	assert.Error(t, err)
}

func TestExtractHeaderOnly(t *testing.T) {
	path := writeCSV(t, "transaction_id,date,category,amount,merchant,payment_method,user_id\n")

	_, err := Transactions(path)
	assert.Error(t, err)
}

func TestExtractMissingFile(t *testing.T) {
	_, err := Transactions(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
