package models

import "github.com/golang-jwt/jwt/v5"

// UserClaims are the JWT claims the gateway issues. The ledger only needs
// the actor identity and role; user management lives outside this service.
type UserClaims struct {
	UserID uint   `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}
