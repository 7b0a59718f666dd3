package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

// TokenTypeService is the only token type this service issues. It identifies a
// telephony node calling the internal API.
const TokenTypeService TokenType = "service"

// Claims are the only supported JWT claims shape for this service.
// The node id is carried in the registered Subject claim.
type Claims struct {
	jwt.RegisteredClaims

	TokenType TokenType `json:"token_type"`
}

func (c Claims) NodeID() string { return c.Subject }
