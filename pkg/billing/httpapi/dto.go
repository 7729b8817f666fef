package httpapi

import (
	"time"

	"github.com/dmitrymomot/billingkit/pkg/billing"
)

type subscriptionResponse struct {
	ID                 string     `json:"id"`
	CompanyID          string     `json:"company_id"`
	PlanID             string     `json:"plan_id"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start"`
	CurrentPeriodEnd   *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	CreatedAt          time.Time  `json:"created_at"`
}

func toSubscriptionResponse(sub *billing.Subscription) *subscriptionResponse {
	if sub == nil {
		return nil
	}
	return &subscriptionResponse{
		ID:                 sub.ID.String(),
		CompanyID:          sub.CompanyID.String(),
		PlanID:             sub.PlanID.String(),
		Status:             string(sub.Status),
		CurrentPeriodStart: sub.CurrentPeriodStart,
		CurrentPeriodEnd:   sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:  sub.CancelAtPeriodEnd,
		CreatedAt:          sub.CreatedAt,
	}
}

type planResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Interval    string `json:"interval"`
}

func toPlanResponses(plans []billing.Plan) []planResponse {
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{
			ID:          p.ID.String(),
			Name:        p.Name,
			Description: p.Description,
			Amount:      p.Price.Amount,
			Currency:    p.Price.Currency,
			Interval:    string(p.Interval),
		})
	}
	return out
}

type invoiceResponse struct {
	ID             string     `json:"id"`
	SubscriptionID string     `json:"subscription_id"`
	Amount         int64      `json:"amount"`
	Currency       string     `json:"currency"`
	Status         string     `json:"status"`
	DueDate        *time.Time `json:"due_date"`
	PaidAt         *time.Time `json:"paid_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

func toInvoiceResponses(invoices []billing.Invoice) []invoiceResponse {
	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, invoiceResponse{
			ID:             inv.ID.String(),
			SubscriptionID: inv.SubscriptionID.String(),
			Amount:         inv.Amount,
			Currency:       inv.Currency,
			Status:         string(inv.Status),
			DueDate:        inv.DueDate,
			PaidAt:         inv.PaidAt,
			CreatedAt:      inv.CreatedAt,
		})
	}
	return out
}

type checkoutResponse struct {
	SubscriptionID    string     `json:"subscription_id"`
	CheckoutSessionID string     `json:"checkout_session_id,omitempty"`
	RedirectURL       string     `json:"redirect_url"`
	ExpiresAt         *time.Time `json:"expires_at,omitempty"`
}

func toCheckoutResponse(res *billing.CheckoutResult) checkoutResponse {
	out := checkoutResponse{
		SubscriptionID:    res.SubscriptionID.String(),
		CheckoutSessionID: res.CheckoutSessionID,
		RedirectURL:       res.RedirectURL,
	}
	if !res.ExpiresAt.IsZero() {
		expires := res.ExpiresAt
		out.ExpiresAt = &expires
	}
	return out
}

type checkoutStatusResponse struct {
	SessionID     string                `json:"session_id"`
	Status        string                `json:"status"`
	PaymentStatus string                `json:"payment_status"`
	AmountTotal   int64                 `json:"amount_total"`
	Currency      string                `json:"currency"`
	URL           string                `json:"url,omitempty"`
	ExpiresAt     *time.Time            `json:"expires_at,omitempty"`
	Subscription  *subscriptionResponse `json:"subscription"`
}

func toCheckoutStatusResponse(st *billing.CheckoutStatus) checkoutStatusResponse {
	out := checkoutStatusResponse{
		SessionID:     st.SessionID,
		Status:        st.Status,
		PaymentStatus: st.PaymentStatus,
		AmountTotal:   st.AmountTotal,
		Currency:      st.Currency,
		URL:           st.URL,
		Subscription:  toSubscriptionResponse(st.Subscription),
	}
	if !st.ExpiresAt.IsZero() {
		expires := st.ExpiresAt
		out.ExpiresAt = &expires
	}
	return out
}
