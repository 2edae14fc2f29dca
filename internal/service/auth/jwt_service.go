package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService verifies access tokens issued by the external identity
// provider. This service does not mint tokens for clients; GenerateToken
// exists for tests and local development where no provider is running.
type JWTService interface {
	// GenerateToken creates a signed JWT access token for the given learner.
	// Returns the token string or an error if token generation fails.
	GenerateToken(ctx context.Context, learnerID uuid.UUID) (string, error)

	// ValidateToken validates the provided access token string and extracts the claims.
	// Returns the claims containing learner information if the token is valid,
	// or an error if validation fails (expired, invalid signature, etc.).
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the custom claims structure for the JWT tokens.
// It extends standard JWT registered claims with application-specific fields.
type Claims struct {
	// LearnerID is the unique identifier of the learner the token was issued for.
	LearnerID uuid.UUID `json:"uid,omitempty"`

	// TokenType indicates the purpose of the token. Only "access" tokens are
	// accepted by this service.
	TokenType string `json:"type,omitempty"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
