package billing

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusPending       Status = "PENDING"
	StatusActive        Status = "ACTIVE"
	StatusTrialing      Status = "TRIALING"
	StatusPastDue       Status = "PAST_DUE"
	StatusPaymentFailed Status = "PAYMENT_FAILED"
	StatusCanceled      Status = "CANCELED"
	StatusExpired       Status = "EXPIRED"
)

// Terminal reports whether the status admits no further transitions.
// Events targeting a terminal subscription are logged and ignored.
func (s Status) Terminal() bool {
	return s == StatusCanceled || s == StatusExpired
}

// Open reports whether the status counts against the one-open-subscription-per-company
// rule. PAYMENT_FAILED is deliberately excluded: a company whose charge failed may
// start a fresh checkout.
func (s Status) Open() bool {
	switch s {
	case StatusActive, StatusTrialing, StatusPastDue, StatusPending:
		return true
	}
	return false
}

// OpenStatuses is the set used for "current subscription" lookups.
var OpenStatuses = []Status{StatusActive, StatusTrialing, StatusPastDue, StatusPending}

// MapGatewayStatus maps a gateway subscription status to the internal Status.
// The table is total: unmapped provider states resolve to PENDING so that new
// provider vocabulary never breaks reconciliation. Callers log the fallback.
func MapGatewayStatus(external string) (Status, bool) {
	switch external {
	case "active":
		return StatusActive, true
	case "trialing":
		return StatusTrialing, true
	case "past_due":
		return StatusPastDue, true
	case "canceled":
		return StatusCanceled, true
	case "incomplete":
		return StatusPending, true
	case "incomplete_expired":
		return StatusExpired, true
	case "unpaid":
		return StatusPaymentFailed, true
	case "paused":
		return StatusPending, true
	}
	return StatusPending, false
}

// InvoiceStatus represents the state of a billing invoice record.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "DRAFT"
	InvoiceOpen          InvoiceStatus = "OPEN"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceVoid          InvoiceStatus = "VOID"
	InvoiceUncollectible InvoiceStatus = "UNCOLLECTIBLE"
)

// Interval represents the billing frequency of a plan.
type Interval string

const (
	IntervalDaily     Interval = "DAILY"
	IntervalWeekly    Interval = "WEEKLY"
	IntervalMonthly   Interval = "MONTHLY"
	IntervalQuarterly Interval = "QUARTERLY"
	IntervalBiannual  Interval = "BIANNUAL"
	IntervalYearly    Interval = "YEARLY"
)

// GatewayInterval maps the internal interval to the gateway's recurring price
// vocabulary (unit + count). Unknown intervals default to monthly.
func (i Interval) GatewayInterval() (unit string, count int64) {
	switch i {
	case IntervalDaily:
		return "day", 1
	case IntervalWeekly:
		return "week", 1
	case IntervalMonthly:
		return "month", 1
	case IntervalQuarterly:
		return "month", 3
	case IntervalBiannual:
		return "month", 6
	case IntervalYearly:
		return "year", 1
	}
	return "month", 1
}

// Money represents a monetary amount in the smallest currency unit.
// For example, R$49.00 BRL is Amount: 4900, Currency: "BRL".
type Money struct {
	Amount   int64  // amount in minor units (cents)
	Currency string // ISO 4217 currency code
}
