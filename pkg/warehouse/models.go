package warehouse

import (
	"time"

	"github.com/uptrace/bun"
)

// Dimension and fact models for the star schema. Surrogate keys are
// postgres identity columns, natural keys carry a unique constraint so
// insert-or-ignore upserts can never duplicate a dimension row.

type DimDate struct {
	bun.BaseModel `bun:"table:dim_date"`
	DateKey       int       `bun:",pk"`
	Date          time.Time `bun:"type:date"`
	Year          int
	Quarter       int
	Month         int
	MonthName     string
	Day           int
	DayOfWeek     int
	DayName       string
	WeekOfYear    int
	IsWeekend     bool
}

type DimCategory struct {
	bun.BaseModel `bun:"table:dim_category"`
	CategoryKey   int64  `bun:",pk,autoincrement"`
	CategoryName  string `bun:",unique,notnull"`
}

type DimMerchant struct {
	bun.BaseModel `bun:"table:dim_merchant"`
	MerchantKey   int64  `bun:",pk,autoincrement"`
	MerchantName  string `bun:",unique,notnull"`
}

type DimPaymentMethod struct {
	bun.BaseModel     `bun:"table:dim_payment_method"`
	PaymentMethodKey  int64  `bun:",pk,autoincrement"`
	PaymentMethodName string `bun:",unique,notnull"`
}

type DimUser struct {
	bun.BaseModel `bun:"table:dim_user"`
	UserKey       int64 `bun:",pk,autoincrement"`
	UserID        int64 `bun:",unique,notnull"`
}

type FactTransaction struct {
	bun.BaseModel    `bun:"table:fact_transactions"`
	TransactionKey   int64  `bun:",pk,autoincrement"`
	TransactionID    string `bun:",unique,notnull"`
	DateKey          int    `bun:",notnull"`
	CategoryKey      int64  `bun:",notnull"`
	MerchantKey      int64  `bun:",notnull"`
	PaymentMethodKey int64  `bun:",notnull"`
	UserKey          int64  `bun:",notnull"`
	Amount           float64   `bun:"type:numeric(12,2),notnull"`
	CreatedAt        time.Time `bun:",nullzero,notnull,default:current_timestamp"`
	// reserved for future correction flows, the pipeline never updates facts
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp"`
}
