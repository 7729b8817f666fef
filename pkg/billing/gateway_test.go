package billing_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrymomot/billingkit/pkg/billing"
)

// fakeGateway is a scriptable in-process Gateway used across the service
// tests. It hands out sequential ids and records cancellation calls.
type fakeGateway struct {
	mu sync.Mutex

	customers int
	products  int
	prices    int
	sessions  int

	createCustomerErr error
	createSessionErr  error
	cancelErr         error

	canceled []cancelCall

	checkoutSession *billing.CheckoutSession // returned by GetCheckoutSession
	event           billing.Event
	verifyErr       error
}

type cancelCall struct {
	externalSubscriptionID string
	atPeriodEnd            bool
}

func (g *fakeGateway) CreateCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createCustomerErr != nil {
		return "", g.createCustomerErr
	}
	g.customers++
	return fmt.Sprintf("cus_%03d", g.customers), nil
}

func (g *fakeGateway) CreateProduct(ctx context.Context, name, description string, metadata map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.products++
	return fmt.Sprintf("prod_%03d", g.products), nil
}

func (g *fakeGateway) CreatePrice(ctx context.Context, productID string, price billing.Money, interval billing.Interval, metadata map[string]string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prices++
	return fmt.Sprintf("price_%03d", g.prices), nil
}

func (g *fakeGateway) CreateCheckoutSession(ctx context.Context, req billing.CheckoutSessionRequest) (*billing.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createSessionErr != nil {
		return nil, g.createSessionErr
	}
	g.sessions++
	id := fmt.Sprintf("cs_%03d", g.sessions)
	return &billing.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.test/" + id,
		ExpiresAt:     time.Now().UTC().Add(24 * time.Hour),
		Status:        "open",
		PaymentStatus: "unpaid",
	}, nil
}

func (g *fakeGateway) GetCheckoutSession(ctx context.Context, sessionID string) (*billing.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.checkoutSession != nil {
		return g.checkoutSession, nil
	}
	return &billing.CheckoutSession{ID: sessionID, Status: "open", PaymentStatus: "unpaid"}, nil
}

func (g *fakeGateway) CancelSubscription(ctx context.Context, externalSubscriptionID string, atPeriodEnd bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.canceled = append(g.canceled, cancelCall{externalSubscriptionID, atPeriodEnd})
	return nil
}

func (g *fakeGateway) VerifyAndParseWebhook(payload []byte, signature string) (billing.Event, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return billing.Event{}, g.verifyErr
	}
	return g.event, nil
}
