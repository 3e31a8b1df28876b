package auth

import (
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/smartpark-backend/pkg/enums"
)

// UserMetadata is the free-form metadata block the identity provider attaches
// at sign-up. Only role and full_name are read.
type UserMetadata struct {
	Role     string `json:"role,omitempty"`
	FullName string `json:"full_name,omitempty"`
}

// AccessTokenClaims represents the provider-issued JWT presented by clients.
type AccessTokenClaims struct {
	Email        string       `json:"email"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserID returns the provider subject.
func (c *AccessTokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// Role resolves the metadata role, falling back to the plain user role when
// the value is missing or unknown.
func (c *AccessTokenClaims) Role() enums.UserRole {
	if c == nil {
		return enums.UserRoleUser
	}
	role, err := enums.ParseUserRole(strings.ToLower(strings.TrimSpace(c.UserMetadata.Role)))
	if err != nil {
		return enums.UserRoleUser
	}
	return role
}
