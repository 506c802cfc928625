package jwt

import "estate-inquiries-backend/internal/model"

type Role int

// Session is the verified identity every core operation trusts. It is
// decoded once at the HTTP boundary; the core performs no authentication of
// its own.
type Session struct {
	UserID   string     `json:"id"`
	Role     model.Role `json:"role"`
	AgencyID string     `json:"agencyId,omitempty"`
	Email    string     `json:"email,omitempty"`
}
