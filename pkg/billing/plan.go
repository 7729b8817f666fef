package billing

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Plan is a read-mostly catalog entry owned by a company. Gateway-side
// product and price objects are provisioned lazily on first checkout.
type Plan struct {
	ID                uuid.UUID
	CompanyID         uuid.UUID
	Name              string
	Description       string
	Price             Money // integer minor units, never decimals
	Interval          Interval
	ExternalProductID string // empty until first checkout
	ExternalPriceID   string // empty until first checkout
	Active            bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Free reports whether the plan has a zero price and therefore activates
// without any gateway involvement.
func (p Plan) Free() bool {
	return p.Price.Amount == 0
}

// PriceCents converts a decimal currency amount into integer minor units.
// Rounding is half away from zero so 49.005 becomes 4901, matching what the
// gateway will charge.
func PriceCents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
