package billing

import (
	"log/slog"
	"time"
)

// ServiceOption configures optional Service settings.
type ServiceOption func(*Service)

// WithGateway attaches a payment gateway. Without one the service runs in
// free-plan-only mode and rejects paid checkouts with ErrBillingNotConfigured.
func WithGateway(gw Gateway) ServiceOption {
	return func(s *Service) { s.gateway = gw }
}

// WithLogger sets the structured logger. Nil loggers are ignored.
func WithLogger(log *slog.Logger) ServiceOption {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock overrides the time source, used by tests to pin period math.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithCheckoutURLs sets the redirect targets used when a checkout request
// does not carry its own.
func WithCheckoutURLs(successURL, cancelURL string) ServiceOption {
	return func(s *Service) {
		s.successURL = successURL
		s.cancelURL = cancelURL
	}
}
