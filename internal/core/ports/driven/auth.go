package driven

import "github.com/lapis-labs/lapis-backend/internal/core/domain"

// AuthAdapter handles bearer token cryptographic operations.
type AuthAdapter interface {
	GenerateToken(claims *domain.TokenClaims) (string, error)
	ParseToken(token string) (*domain.TokenClaims, error)
}
