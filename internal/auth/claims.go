package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for the ops API.
// Tokens identify support-team operators, never end users; end-user actions
// arrive through the platform gateway, not this API.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}
