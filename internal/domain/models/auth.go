package models

import "github.com/golang-jwt/jwt/v5"

// AccessClaims represents the JWT claims issued by the identity provider.
type AccessClaims struct {
	jwt.RegisteredClaims
	Email       string                 `json:"email"`
	AppMetadata map[string]interface{} `json:"app_metadata"`
	Role        string                 `json:"role"`
	SessionID   string                 `json:"session_id"`
}

// GetUserID returns the user ID from the JWT subject claim.
func (c *AccessClaims) GetUserID() string {
	return c.Subject
}
