package httpapi

import (
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/billing"
)

// errUnauthenticated marks requests with missing or malformed identity.
var errUnauthenticated = errors.New("unauthenticated request")

// IdentityResolver extracts the authenticated company user from a request.
type IdentityResolver func(*http.Request) (billing.Identity, error)

// HeaderIdentity resolves identity from trusted proxy headers. It is the
// default resolver and assumes the service runs behind an auth gateway that
// strips these headers from external traffic.
func HeaderIdentity(r *http.Request) (billing.Identity, error) {
	companyID, err := uuid.Parse(r.Header.Get("X-Company-ID"))
	if err != nil || companyID == uuid.Nil {
		return billing.Identity{}, errUnauthenticated
	}

	email := r.Header.Get("X-Customer-Email")
	if email == "" {
		return billing.Identity{}, errUnauthenticated
	}

	return billing.Identity{
		CompanyID: companyID,
		Email:     email,
		Name:      r.Header.Get("X-Customer-Name"),
	}, nil
}
