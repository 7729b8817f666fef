package logger

import "log/slog"

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Event records an application event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// CompanyID records the tenant identifier under the key "company_id".
// If id is nil, it returns an empty Attr.
func CompanyID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("company_id", id)
}

// SubscriptionID records the subscription identifier under the key
// "subscription_id". If id is nil, it returns an empty Attr.
func SubscriptionID(id any) slog.Attr {
	if id == nil {
		return slog.Attr{}
	}
	return slog.Any("subscription_id", id)
}
