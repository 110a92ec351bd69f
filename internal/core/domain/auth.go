package domain

import "time"

// TokenClaims are the bearer token claims that bind a caller to a tenant scope.
type TokenClaims struct {
	Subject        string    `json:"sub"`
	TeamID         string    `json:"team_id"`
	OrganizationID string    `json:"organization_id"`
	ExpiresAt      time.Time `json:"exp"`
}

// Scope returns the tenant scope carried by the token.
func (c *TokenClaims) Scope() Scope {
	return Scope{TeamID: c.TeamID, OrganizationID: c.OrganizationID}
}

// Permits reports whether the token may act on scope. Empty token fields
// are wildcards.
func (c *TokenClaims) Permits(scope Scope) bool {
	if c.TeamID != "" && c.TeamID != scope.TeamID {
		return false
	}
	if c.OrganizationID != "" && c.OrganizationID != scope.OrganizationID {
		return false
	}
	return true
}
