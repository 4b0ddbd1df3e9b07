package transform

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"k8s.io/klog"

	"github.com/andresbrocco/finance-etl/pkg/extract"
	"github.com/andresbrocco/finance-etl/pkg/loader"
	"github.com/andresbrocco/finance-etl/pkg/warehouse"
)

// Business rules the warehouse relies on. Categories and payment methods
// are fixed enumerations, anything else is filtered out before load.
var AllowedCategories = []string{
	"Groceries", "Dining", "Transportation", "Entertainment",
	"Utilities", "Shopping", "Healthcare", "Travel",
}

var AllowedPaymentMethods = []string{
	"Credit Card", "Debit Card", "Cash", "Digital Wallet",
}

const (
	MinAmount = 0.01
	MaxAmount = 10000.00
)

var minValidDate = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

// Transactions cleans and validates raw CSV rows and builds the
// normalized batch the load stage consumes: validated fact records plus
// the distinct natural keys per dimension. Rows violating a business
// rule are filtered, not fatal; the returned issues describe what was
// dropped and why.
func Transactions(raw []extract.RawTransaction) (*loader.Batch, []string, error) {
	if len(raw) == 0 {
		return nil, nil, fmt.Errorf("no transactions to transform")
	}

	cleaned, duplicates := cleanTransactions(raw)

	var issues []string
	if duplicates > 0 {
		issues = append(issues, fmt.Sprintf("removed %d duplicate transaction_ids (kept first occurrence)", duplicates))
	}

	counts := map[string]int{}
	batch := &loader.Batch{}

	categories := map[string]struct{}{}
	merchants := map[string]struct{}{}
	paymentMethods := map[string]struct{}{}
	users := map[int64]struct{}{}
	dateKeys := map[int]struct{}{}

	for _, row := range cleaned {
		fact, reason := validateTransaction(row)
		if reason != "" {
			counts[reason]++
			continue
		}

		batch.Facts = append(batch.Facts, fact)
		categories[fact.Category] = struct{}{}
		merchants[fact.Merchant] = struct{}{}
		paymentMethods[fact.PaymentMethod] = struct{}{}
		users[fact.UserID] = struct{}{}
		dateKeys[fact.DateKey] = struct{}{}
	}

	for reason, n := range counts {
		issues = append(issues, fmt.Sprintf("filtered %d transactions: %s", n, reason))
	}
	sort.Strings(issues)

	for _, issue := range issues {
		klog.Warningf("%s\n", issue)
	}

	if len(batch.Facts) == 0 {
		return nil, issues, fmt.Errorf("no valid transactions remaining after validation")
	}

	batch.Categories = sortedStrings(categories)
	batch.Merchants = sortedStrings(merchants)
	batch.PaymentMethods = sortedStrings(paymentMethods)
	batch.Users = sortedInts(users)
	batch.DateKeys = sortedDateKeys(dateKeys)

	klog.Infof("Transformed %d raw rows into %d valid fact records\n", len(raw), len(batch.Facts))

	return batch, issues, nil
}

// cleanTransactions trims and standardizes text columns and drops repeat
// transaction_ids within the batch, keeping the first occurrence.
func cleanTransactions(raw []extract.RawTransaction) ([]extract.RawTransaction, int) {
	seen := make(map[string]struct{}, len(raw))
	cleaned := make([]extract.RawTransaction, 0, len(raw))
	duplicates := 0

	for _, row := range raw {
		row.TransactionID = strings.TrimSpace(row.TransactionID)
		row.Date = strings.TrimSpace(row.Date)
		row.Category = StandardizeName(row.Category)
		row.Amount = strings.TrimSpace(row.Amount)
		row.Merchant = StandardizeName(row.Merchant)
		row.PaymentMethod = StandardizeName(row.PaymentMethod)
		row.UserID = strings.TrimSpace(row.UserID)

		if _, ok := seen[row.TransactionID]; ok && row.TransactionID != "" {
			duplicates++
			continue
		}
		seen[row.TransactionID] = struct{}{}

		cleaned = append(cleaned, row)
	}

	return cleaned, duplicates
}

func validateTransaction(row extract.RawTransaction) (loader.FactRecord, string) {
	if row.TransactionID == "" {
		return loader.FactRecord{}, "missing transaction_id"
	}

	amount, err := strconv.ParseFloat(row.Amount, 64)
	if err != nil {
		return loader.FactRecord{}, "non-numeric amount"
	}
	amount = math.Round(amount*100) / 100
	if amount < MinAmount {
		return loader.FactRecord{}, "amount below minimum"
	}
	if amount > MaxAmount {
		return loader.FactRecord{}, fmt.Sprintf("amount above $%.2f", MaxAmount)
	}

	date, err := time.Parse("2006-01-02", row.Date)
	if err != nil {
		return loader.FactRecord{}, "unparseable date"
	}
	if date.Before(minValidDate) {
		return loader.FactRecord{}, "date before 2020-01-01"
	}
	if date.After(time.Now()) {
		return loader.FactRecord{}, "date in the future"
	}

	if !stringInSlice(row.Category, AllowedCategories) {
		return loader.FactRecord{}, "category not in allowed list"
	}

	if !stringInSlice(row.PaymentMethod, AllowedPaymentMethods) {
		return loader.FactRecord{}, "payment method not in allowed list"
	}

	if row.Merchant == "" {
		return loader.FactRecord{}, "missing merchant"
	}

	userID, err := strconv.ParseInt(row.UserID, 10, 64)
	if err != nil {
		return loader.FactRecord{}, "non-integer user_id"
	}

	return loader.FactRecord{
		TransactionID: row.TransactionID,
		DateKey:       warehouse.DateKey(date),
		Category:      row.Category,
		Merchant:      row.Merchant,
		PaymentMethod: row.PaymentMethod,
		UserID:        userID,
		Amount:        amount,
	}, ""
}

// StandardizeName trims, collapses repeated whitespace and title cases a
// natural key so "  walmart   SUPERCENTER " and "Walmart Supercenter"
// resolve to the same dimension row.
func StandardizeName(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		first, size := utf8.DecodeRuneInString(word)
		words[i] = string(unicode.ToUpper(first)) + strings.ToLower(word[size:])
	}
	return strings.Join(words, " ")
}

func stringInSlice(a string, list []string) bool {
	for _, b := range list {
		if b == a {
			return true
		}
	}

	return false
}

func sortedStrings(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func sortedInts(set map[int64]struct{}) []int64 {
	out := make([]int64, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

func sortedDateKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for i := range set {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
