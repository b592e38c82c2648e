package auth

import "cadence/internal/domain/models"

// JWTVerifier validates bearer tokens. The abstraction keeps the middleware
// agnostic to how keys are fetched, which also makes it trivial to stub in
// tests.
type JWTVerifier interface {
	// VerifyToken validates a JWT token string and returns the parsed claims.
	// Returns an error if the token is invalid, expired, or has an invalid
	// signature.
	VerifyToken(tokenString string) (*models.AccessClaims, error)

	// Close releases any resources held by the verifier.
	Close() error
}
