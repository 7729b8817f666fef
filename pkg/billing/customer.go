package billing

import (
	"time"

	"github.com/google/uuid"
)

// Customer is a company's end customer, the party that actually holds the
// subscription. At most one Customer exists per (company, email) pair.
type Customer struct {
	ID         uuid.UUID
	CompanyID  uuid.UUID
	Email      string
	Name       string
	ExternalID string // gateway customer id, empty until first checkout
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
