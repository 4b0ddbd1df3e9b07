package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Generates a synthetic transactions CSV for exercising the pipeline.
// Deterministic for a given seed.

var categoryWeights = map[string]int{
	"Groceries":      25,
	"Dining":         20,
	"Transportation": 15,
	"Shopping":       15,
	"Utilities":      10,
	"Entertainment":  8,
	"Healthcare":     4,
	"Travel":         3,
}

var amountRanges = map[string][2]float64{
	"Groceries":      {10, 200},
	"Dining":         {15, 150},
	"Transportation": {5, 100},
	"Shopping":       {20, 500},
	"Utilities":      {50, 300},
	"Entertainment":  {10, 200},
	"Healthcare":     {30, 800},
	"Travel":         {100, 2000},
}

var paymentMethods = []string{"Credit Card", "Debit Card", "Cash", "Digital Wallet"}
var paymentMethodWeights = []float64{0.7, 0.15, 0.1, 0.05}

func main() {
	out := flag.String("out", "./data/transactions.csv", "output csv file")
	count := flag.Int("count", 10000, "number of transactions")
	users := flag.Int("users", 100, "number of distinct users")
	yearsBack := flag.Int("years-back", 2, "date range length in years")
	seed := flag.Int64("seed", 42, "random seed")

	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	endDate := time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)
	startDate := endDate.AddDate(-*yearsBack, 0, 0)

	f, err := os.Create(*out)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	defer writer.Flush()

	writer.Write([]string{"transaction_id", "date", "category", "amount", "merchant", "payment_method", "user_id"})

	for i := 0; i < *count; i++ {
		category := weightedCategory(rng)
		bounds := amountRanges[category]
		amount := bounds[0] + rng.Float64()*(bounds[1]-bounds[0])

		days := int(endDate.Sub(startDate).Hours() / 24)
		date := startDate.AddDate(0, 0, rng.Intn(days+1))

		writer.Write([]string{
			uuid.New().String(),
			date.Format("2006-01-02"),
			category,
			strconv.FormatFloat(amount, 'f', 2, 64),
			merchantFor(rng, category),
			weightedPaymentMethod(rng),
			strconv.Itoa(rng.Intn(*users) + 1),
		})
	}

	fmt.Printf("Wrote %d transactions to %s\n", *count, *out)
}

func weightedCategory(rng *rand.Rand) string {
	names := make([]string, 0, len(categoryWeights))
	for name := range categoryWeights {
		names = append(names, name)
	}
	sort.Strings(names)

	total := 0
	for _, name := range names {
		total += categoryWeights[name]
	}

	pick := rng.Intn(total)
	for _, name := range names {
		pick -= categoryWeights[name]
		if pick < 0 {
			return name
		}
	}

	return names[len(names)-1]
}

func weightedPaymentMethod(rng *rand.Rand) string {
	pick := rng.Float64()
	for i, weight := range paymentMethodWeights {
		pick -= weight
		if pick < 0 {
			return paymentMethods[i]
		}
	}
	return paymentMethods[len(paymentMethods)-1]
}

var merchantPools = map[string][]string{
	"Groceries":      {"Whole Foods Market", "Trader Joes", "Safeway", "Costco Wholesale"},
	"Dining":         {"Chipotle", "Olive Garden", "Local Bistro", "Panda Express"},
	"Transportation": {"Shell", "Chevron", "Uber", "City Transit"},
	"Shopping":       {"Amazon", "Target", "Best Buy", "Walmart Supercenter"},
	"Utilities":      {"Pacific Power", "City Water", "Comcast", "Verizon"},
	"Entertainment":  {"Netflix", "AMC Theatres", "Spotify", "Steam"},
	"Healthcare":     {"CVS Pharmacy", "Walgreens", "City Medical Center", "Dental Care"},
	"Travel":         {"Delta Airlines", "Marriott", "Airbnb", "Hertz"},
}

func merchantFor(rng *rand.Rand, category string) string {
	pool := merchantPools[category]
	return pool[rng.Intn(len(pool))]
}
