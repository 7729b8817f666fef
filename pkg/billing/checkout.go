package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// CheckoutResult is returned from CreateCheckout. For paid plans RedirectURL
// points at the gateway-hosted checkout; for free plans it is the success URL
// since no payment is collected.
type CheckoutResult struct {
	SubscriptionID    uuid.UUID
	CheckoutSessionID string
	RedirectURL       string
	ExpiresAt         time.Time
}

// CheckoutStatus joins the gateway's view of a checkout session with the
// local subscription it belongs to.
type CheckoutStatus struct {
	SessionID      string
	Status         string
	PaymentStatus  string
	SubscriptionID string // gateway subscription id, empty until completion
	AmountTotal    int64
	Currency       string
	ExpiresAt      time.Time
	URL            string
	Subscription   *Subscription // nil when no local row matches
}

// CreateCheckout starts a subscription purchase for the identified company
// user. It provisions gateway-side customer, product, and price objects
// lazily, opens a hosted checkout session, and records a PENDING subscription.
// Every provisioning step persists the returned gateway id before moving on,
// so a crash mid-flow resumes with the stored ids instead of creating
// duplicates. The subscription row is written last: a gateway failure leaves
// no partial subscription behind.
func (s *Service) CreateCheckout(ctx context.Context, ident Identity, planID uuid.UUID, successURL, cancelURL string) (*CheckoutResult, error) {
	if ident.CompanyID == uuid.Nil || ident.Email == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("company id and email are required"))
	}
	if planID == uuid.Nil {
		return nil, errors.Join(ErrInvalidInput, errors.New("plan id is required"))
	}

	plan, err := s.store.Plans().ByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.Active {
		return nil, ErrPlanInactive
	}

	// One open subscription per company. Checked before any side effect.
	if _, err := s.store.Subscriptions().OpenByCompany(ctx, ident.CompanyID); err == nil {
		return nil, ErrSubscriptionExists
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	customer, err := s.ensureCustomer(ctx, ident)
	if err != nil {
		return nil, err
	}

	if plan.Free() {
		return s.activateFreePlan(ctx, ident.CompanyID, plan, customer, successURL)
	}

	if s.gateway == nil {
		return nil, ErrBillingNotConfigured
	}

	externalCustomerID, err := s.ensureExternalCustomer(ctx, customer)
	if err != nil {
		return nil, err
	}

	externalPriceID, err := s.ensureExternalPrice(ctx, plan)
	if err != nil {
		return nil, err
	}

	if successURL == "" {
		successURL = s.successURL
	}
	if cancelURL == "" {
		cancelURL = s.cancelURL
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		CustomerID: externalCustomerID,
		PriceID:    externalPriceID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Metadata: map[string]string{
			"companyId":  ident.CompanyID.String(),
			"planId":     plan.ID.String(),
			"customerId": customer.ID.String(),
		},
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	sub := &Subscription{
		ID:                 uuid.New(),
		CompanyID:          ident.CompanyID,
		PlanID:             plan.ID,
		CustomerID:         customer.ID,
		Status:             StatusPending,
		ExternalCustomerID: externalCustomerID,
		ExternalPriceID:    externalPriceID,
		CheckoutSessionID:  session.ID,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Subscriptions().Create(ctx, sub); err != nil {
		return nil, err
	}

	s.log.InfoContext(ctx, "checkout session created",
		"subscription_id", sub.ID,
		"checkout_session_id", session.ID,
		"company_id", ident.CompanyID,
		"plan_id", plan.ID)

	return &CheckoutResult{
		SubscriptionID:    sub.ID,
		CheckoutSessionID: session.ID,
		RedirectURL:       session.URL,
		ExpiresAt:         session.ExpiresAt,
	}, nil
}

// GetCheckoutStatus polls the gateway for the session state and resolves the
// matching local subscription by session id or, once completed, by the
// gateway subscription id.
func (s *Service) GetCheckoutStatus(ctx context.Context, checkoutSessionID string) (*CheckoutStatus, error) {
	if checkoutSessionID == "" {
		return nil, errors.Join(ErrInvalidInput, errors.New("checkout session id is required"))
	}
	if s.gateway == nil {
		return nil, ErrBillingNotConfigured
	}

	session, err := s.gateway.GetCheckoutSession(ctx, checkoutSessionID)
	if err != nil {
		return nil, err
	}

	sub, err := s.store.Subscriptions().ByCheckoutSessionID(ctx, checkoutSessionID)
	if errors.Is(err, ErrSubscriptionNotFound) && session.SubscriptionID != "" {
		sub, err = s.store.Subscriptions().ByExternalID(ctx, session.SubscriptionID)
	}
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, err
	}

	return &CheckoutStatus{
		SessionID:      session.ID,
		Status:         session.Status,
		PaymentStatus:  session.PaymentStatus,
		SubscriptionID: session.SubscriptionID,
		AmountTotal:    session.AmountTotal,
		Currency:       session.Currency,
		ExpiresAt:      session.ExpiresAt,
		URL:            session.URL,
		Subscription:   sub,
	}, nil
}

// ensureCustomer finds or creates the Customer row for (company, email).
func (s *Service) ensureCustomer(ctx context.Context, ident Identity) (*Customer, error) {
	customer, err := s.store.Customers().ByEmail(ctx, ident.CompanyID, ident.Email)
	if err == nil {
		return customer, nil
	}
	if !errors.Is(err, ErrCustomerNotFound) {
		return nil, err
	}

	now := s.now()
	customer = &Customer{
		ID:        uuid.New(),
		CompanyID: ident.CompanyID,
		Email:     ident.Email,
		Name:      ident.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Customers().Create(ctx, customer); err != nil {
		return nil, err
	}
	return customer, nil
}

// ensureExternalCustomer returns the gateway customer id, creating and
// persisting it on first use.
func (s *Service) ensureExternalCustomer(ctx context.Context, customer *Customer) (string, error) {
	if customer.ExternalID != "" {
		return customer.ExternalID, nil
	}

	externalID, err := s.gateway.CreateCustomer(ctx, customer.Email, customer.Name, map[string]string{
		"customerId": customer.ID.String(),
		"companyId":  customer.CompanyID.String(),
	})
	if err != nil {
		return "", err
	}

	// Persisted before any further gateway call; a crash past this point
	// reuses the stored id instead of creating a duplicate.
	if err := s.store.Customers().SetExternalID(ctx, customer.ID, externalID); err != nil {
		return "", err
	}
	customer.ExternalID = externalID
	return externalID, nil
}

// ensureExternalPrice returns the gateway price id for the plan, creating the
// product and recurring price on first checkout and persisting both ids.
func (s *Service) ensureExternalPrice(ctx context.Context, plan *Plan) (string, error) {
	if plan.ExternalPriceID != "" {
		return plan.ExternalPriceID, nil
	}

	s.log.WarnContext(ctx, "plan has no gateway price, provisioning",
		"plan_id", plan.ID)

	metadata := map[string]string{
		"planId":    plan.ID.String(),
		"companyId": plan.CompanyID.String(),
	}

	productID, err := s.gateway.CreateProduct(ctx, plan.Name, plan.Description, metadata)
	if err != nil {
		return "", err
	}

	priceID, err := s.gateway.CreatePrice(ctx, productID, plan.Price, plan.Interval, metadata)
	if err != nil {
		return "", err
	}

	if err := s.store.Plans().SetExternalIDs(ctx, plan.ID, productID, priceID); err != nil {
		return "", err
	}
	plan.ExternalProductID = productID
	plan.ExternalPriceID = priceID
	return priceID, nil
}

// activateFreePlan records an immediately ACTIVE subscription; zero-price
// plans never touch the gateway.
func (s *Service) activateFreePlan(ctx context.Context, companyID uuid.UUID, plan *Plan, customer *Customer, successURL string) (*CheckoutResult, error) {
	now := s.now()
	end := PeriodEnd(plan.Interval, now)
	sub := &Subscription{
		ID:                 uuid.New(),
		CompanyID:          companyID,
		PlanID:             plan.ID,
		CustomerID:         customer.ID,
		Status:             StatusActive,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.store.Subscriptions().Create(ctx, sub); err != nil {
		return nil, err
	}

	if successURL == "" {
		successURL = s.successURL
	}

	return &CheckoutResult{
		SubscriptionID: sub.ID,
		RedirectURL:    successURL,
	}, nil
}
