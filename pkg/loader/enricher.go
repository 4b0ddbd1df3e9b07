package loader

import (
	"strconv"
	"time"

	"k8s.io/klog"

	"github.com/andresbrocco/finance-etl/pkg/warehouse"
)

// enrichFacts rewrites every fact record's natural keys into surrogate
// foreign keys using the resolved mappings. A natural key with no mapping
// fails the whole batch: a fact row with a dangling dimension reference
// would break every downstream join, so dropping or nulling it is worse
// than stopping the run.
func enrichFacts(facts []FactRecord, mappings *Mappings) ([]warehouse.FactTransaction, error) {
	enriched := make([]warehouse.FactTransaction, 0, len(facts))
	now := time.Now()

	for _, fact := range facts {
		categoryKey, ok := mappings.Categories[fact.Category]
		if !ok {
			return nil, &IntegrityError{Dimension: "category", Value: fact.Category, TransactionID: fact.TransactionID}
		}

		merchantKey, ok := mappings.Merchants[fact.Merchant]
		if !ok {
			return nil, &IntegrityError{Dimension: "merchant", Value: fact.Merchant, TransactionID: fact.TransactionID}
		}

		paymentMethodKey, ok := mappings.PaymentMethods[fact.PaymentMethod]
		if !ok {
			return nil, &IntegrityError{Dimension: "payment_method", Value: fact.PaymentMethod, TransactionID: fact.TransactionID}
		}

		userKey, ok := mappings.Users[fact.UserID]
		if !ok {
			return nil, &IntegrityError{Dimension: "user", Value: formatUserID(fact.UserID), TransactionID: fact.TransactionID}
		}

		if _, ok := mappings.DateKeys[fact.DateKey]; !ok {
			return nil, &IntegrityError{Dimension: "date", Value: formatDateKey(fact.DateKey), TransactionID: fact.TransactionID}
		}

		enriched = append(enriched, warehouse.FactTransaction{
			TransactionID:    fact.TransactionID,
			DateKey:          fact.DateKey,
			CategoryKey:      categoryKey,
			MerchantKey:      merchantKey,
			PaymentMethodKey: paymentMethodKey,
			UserKey:          userKey,
			Amount:           fact.Amount,
			CreatedAt:        now,
			UpdatedAt:        now,
		})
	}

	klog.Infof("Enriched %d fact records with surrogate keys\n", len(enriched))

	return enriched, nil
}

func formatUserID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func formatDateKey(key int) string {
	return strconv.Itoa(key)
}
