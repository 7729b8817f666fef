package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/price"
	"github.com/stripe/stripe-go/v82/product"
	stripesub "github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds Stripe credentials and request policy. An empty
// SecretKey means the gateway is not configured.
type StripeConfig struct {
	SecretKey      string        `env:"STRIPE_SECRET_KEY"`
	WebhookSecret  string        `env:"STRIPE_WEBHOOK_SECRET"`
	RequestTimeout time.Duration `env:"STRIPE_REQUEST_TIMEOUT" envDefault:"30s"`
	MaxRetries     int64         `env:"STRIPE_MAX_RETRIES" envDefault:"2"`
}

// Configured reports whether Stripe credentials are present.
func (c StripeConfig) Configured() bool {
	return c.SecretKey != ""
}

// StripeGateway implements Gateway on top of the Stripe SDK. The SDK backend
// is configured with a bounded request timeout and a small retry budget;
// Stripe retries only network and 5xx failures, never application 4xx
// rejections.
type StripeGateway struct {
	webhookSecret string
}

var _ Gateway = (*StripeGateway)(nil)

// NewStripeGateway configures the Stripe SDK and returns the gateway.
func NewStripeGateway(cfg StripeConfig) (*StripeGateway, error) {
	if cfg.SecretKey == "" {
		return nil, ErrBillingNotConfigured
	}
	if cfg.WebhookSecret == "" {
		return nil, errors.Join(ErrBillingNotConfigured, errors.New("stripe webhook secret is required"))
	}

	stripe.Key = cfg.SecretKey
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		MaxNetworkRetries: stripe.Int64(cfg.MaxRetries),
		HTTPClient:        &http.Client{Timeout: cfg.RequestTimeout},
	}))

	return &StripeGateway{webhookSecret: cfg.WebhookSecret}, nil
}

// CreateCustomer registers a Stripe customer and returns its id.
func (g *StripeGateway) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	c, err := customer.New(params)
	if err != nil {
		return "", providerError("create customer", err)
	}
	return c.ID, nil
}

// CreateProduct creates a Stripe product for a plan.
func (g *StripeGateway) CreateProduct(ctx context.Context, name, description string, metadata map[string]string) (string, error) {
	params := &stripe.ProductParams{
		Name: stripe.String(name),
	}
	params.Context = ctx
	if description != "" {
		params.Description = stripe.String(description)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	p, err := product.New(params)
	if err != nil {
		return "", providerError("create product", err)
	}
	return p.ID, nil
}

// CreatePrice creates a recurring Stripe price in the plan's interval.
func (g *StripeGateway) CreatePrice(ctx context.Context, productID string, money Money, interval Interval, metadata map[string]string) (string, error) {
	unit, count := interval.GatewayInterval()

	params := &stripe.PriceParams{
		Product:    stripe.String(productID),
		UnitAmount: stripe.Int64(money.Amount),
		Currency:   stripe.String(strings.ToLower(money.Currency)),
		Recurring: &stripe.PriceRecurringParams{
			Interval:      stripe.String(unit),
			IntervalCount: stripe.Int64(count),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	p, err := price.New(params)
	if err != nil {
		return "", providerError("create price", err)
	}
	return p.ID, nil
}

// CreateCheckoutSession opens a hosted subscription checkout. Metadata is
// attached to both the session and the subscription Stripe will create, so
// webhook handlers can recover context without a local lookup.
func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Customer: stripe.String(req.CustomerID),
		Mode:     stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(req.SuccessURL),
		CancelURL:           stripe.String(req.CancelURL),
		AllowPromotionCodes: stripe.Bool(true),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: req.Metadata,
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, providerError("create checkout session", err)
	}
	return mapCheckoutSession(sess), nil
}

// GetCheckoutSession retrieves the provider-side session state.
func (g *StripeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := checkoutsession.Get(sessionID, params)
	if err != nil {
		return nil, providerError("get checkout session", err)
	}
	return mapCheckoutSession(sess), nil
}

// CancelSubscription cancels at period end via subscription update, or
// immediately via the cancel endpoint.
func (g *StripeGateway) CancelSubscription(ctx context.Context, externalSubscriptionID string, atPeriodEnd bool) error {
	if atPeriodEnd {
		params := &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		}
		params.Context = ctx
		if _, err := stripesub.Update(externalSubscriptionID, params); err != nil {
			return providerError("cancel subscription at period end", err)
		}
		return nil
	}

	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx
	if _, err := stripesub.Cancel(externalSubscriptionID, params); err != nil {
		return providerError("cancel subscription", err)
	}
	return nil
}

// VerifyAndParseWebhook checks the Stripe-Signature header against the
// webhook secret and decodes the payload into a typed Event. API version
// mismatches are tolerated: webhook payload shapes are decoded explicitly
// below rather than through SDK structs.
func (g *StripeGateway) VerifyAndParseWebhook(payload []byte, signature string) (Event, error) {
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return Event{}, errors.Join(ErrInvalidSignature, err)
	}
	return mapStripeEvent(stripeEvent)
}

func mapCheckoutSession(sess *stripe.CheckoutSession) *CheckoutSession {
	out := &CheckoutSession{
		ID:            sess.ID,
		URL:           sess.URL,
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
		AmountTotal:   sess.AmountTotal,
		Currency:      strings.ToUpper(string(sess.Currency)),
	}
	if sess.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	if sess.Subscription != nil {
		out.SubscriptionID = sess.Subscription.ID
	}
	if sess.CustomerDetails != nil {
		out.CustomerEmail = sess.CustomerDetails.Email
	}
	return out
}

// mapStripeEvent decodes the raw event object into the matching Event
// variant. Decoding is field-selective on purpose: only the identifiers and
// amounts reconciliation needs are read, so unrelated payload changes across
// Stripe API versions do not break parsing.
func mapStripeEvent(ev stripe.Event) (Event, error) {
	out := Event{Type: string(ev.Type), ID: ev.ID}

	switch string(ev.Type) {
	case "checkout.session.completed":
		var sess checkoutSessionPayload
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Data = CheckoutCompleted{
			SessionID:      sess.ID,
			SubscriptionID: sess.Subscription,
			InvoiceID:      sess.Invoice,
			AmountTotal:    sess.AmountTotal,
			Currency:       strings.ToUpper(sess.Currency),
		}

	case "checkout.session.expired":
		var sess checkoutSessionPayload
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.Data = CheckoutExpired{SessionID: sess.ID}

	case "invoice.paid", "invoice.payment_succeeded":
		var inv invoicePayload
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return Event{}, fmt.Errorf("decode invoice: %w", err)
		}
		out.Data = InvoicePaidEvent{
			SubscriptionID: inv.subscriptionID(),
			InvoiceID:      inv.ID,
			AmountPaid:     inv.AmountPaid,
			Currency:       strings.ToUpper(inv.Currency),
			DueDate:        unixPtr(inv.DueDate),
			PaidAt:         unixPtr(inv.StatusTransitions.PaidAt),
		}

	case "invoice.payment_failed":
		var inv invoicePayload
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return Event{}, fmt.Errorf("decode invoice: %w", err)
		}
		out.Data = InvoiceFailedEvent{
			SubscriptionID: inv.subscriptionID(),
			InvoiceID:      inv.ID,
			AmountDue:      inv.AmountDue,
			Currency:       strings.ToUpper(inv.Currency),
			DueDate:        unixPtr(inv.DueDate),
		}

	case "invoice.payment_action_required":
		var inv invoicePayload
		if err := json.Unmarshal(ev.Data.Raw, &inv); err != nil {
			return Event{}, fmt.Errorf("decode invoice: %w", err)
		}
		out.Data = InvoiceActionRequired{
			SubscriptionID: inv.subscriptionID(),
			InvoiceID:      inv.ID,
		}

	case "customer.subscription.created", "customer.subscription.updated":
		var sub subscriptionPayload
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("decode subscription: %w", err)
		}
		out.Data = SubscriptionUpdated{
			SubscriptionID:    sub.ID,
			Status:            sub.Status,
			PeriodStart:       unixPtr(sub.periodStart()),
			PeriodEnd:         unixPtr(sub.periodEnd()),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		}

	case "customer.subscription.deleted":
		var sub subscriptionPayload
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("decode subscription: %w", err)
		}
		out.Data = SubscriptionDeleted{SubscriptionID: sub.ID}

	default:
		out.Data = UnknownEvent{}
	}

	return out, nil
}

type checkoutSessionPayload struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
	Invoice      string `json:"invoice"`
	AmountTotal  int64  `json:"amount_total"`
	Currency     string `json:"currency"`
}

type invoicePayload struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
	Parent       *struct {
		SubscriptionDetails *struct {
			Subscription string `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
	AmountPaid        int64  `json:"amount_paid"`
	AmountDue         int64  `json:"amount_due"`
	Currency          string `json:"currency"`
	DueDate           int64  `json:"due_date"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}

// subscriptionID supports both payload generations: the legacy top-level
// subscription field and the parent.subscription_details nesting newer API
// versions use.
func (p invoicePayload) subscriptionID() string {
	if p.Subscription != "" {
		return p.Subscription
	}
	if p.Parent != nil && p.Parent.SubscriptionDetails != nil {
		return p.Parent.SubscriptionDetails.Subscription
	}
	return ""
}

type subscriptionPayload struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	CancelAtPeriodEnd  bool   `json:"cancel_at_period_end"`
	CurrentPeriodStart int64  `json:"current_period_start"`
	CurrentPeriodEnd   int64  `json:"current_period_end"`
	Items              struct {
		Data []struct {
			CurrentPeriodStart int64 `json:"current_period_start"`
			CurrentPeriodEnd   int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

// periodStart falls back to the first subscription item, where newer API
// versions moved the period fields.
func (p subscriptionPayload) periodStart() int64 {
	if p.CurrentPeriodStart > 0 {
		return p.CurrentPeriodStart
	}
	if len(p.Items.Data) > 0 {
		return p.Items.Data[0].CurrentPeriodStart
	}
	return 0
}

func (p subscriptionPayload) periodEnd() int64 {
	if p.CurrentPeriodEnd > 0 {
		return p.CurrentPeriodEnd
	}
	if len(p.Items.Data) > 0 {
		return p.Items.Data[0].CurrentPeriodEnd
	}
	return 0
}

func unixPtr(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

func providerError(op string, err error) error {
	return errors.Join(ErrPaymentProvider, fmt.Errorf("stripe: %s: %w", op, err))
}
