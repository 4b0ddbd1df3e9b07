package loader

// Batch is the normalized output of the transform stage for one run: the
// fact records plus the distinct natural keys observed per dimension.
type Batch struct {
	Facts []FactRecord

	Categories     []string
	Merchants      []string
	PaymentMethods []string
	Users          []int64
	DateKeys       []int
}

// FactRecord is a validated transaction still keyed by natural keys.
type FactRecord struct {
	TransactionID string
	DateKey       int
	Category      string
	Merchant      string
	PaymentMethod string
	UserID        int64
	Amount        float64
}

// Mappings holds the natural to surrogate key maps resolved for a batch.
// Dates carry membership only, their surrogate key is the date_key itself.
type Mappings struct {
	Categories     map[string]int64
	Merchants      map[string]int64
	PaymentMethods map[string]int64
	Users          map[int64]int64
	DateKeys       map[int]struct{}
}

// Result summarizes one committed load.
type Result struct {
	DimensionsInserted map[string]int
	FactsInserted      int
	FactsSkipped       int
}
