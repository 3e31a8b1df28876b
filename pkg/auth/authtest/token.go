// Package authtest mints provider-style tokens for tests. The service itself
// never issues tokens.
package authtest

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/smartpark-backend/pkg/auth"
	"github.com/angelmondragon/smartpark-backend/pkg/config"
)

// Identity describes the subject of a minted token.
type Identity struct {
	UserID   string
	Email    string
	Role     string
	FullName string
}

// Mint signs an HS256 token for the identity valid for ttl.
func Mint(t testing.TB, cfg config.AuthConfig, id Identity, ttl time.Duration) string {
	t.Helper()

	now := time.Now()
	claims := auth.AccessTokenClaims{
		Email: id.Email,
		UserMetadata: auth.UserMetadata{
			Role:     id.Role,
			FullName: id.FullName,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID,
			Issuer:    cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if cfg.Audience != "" {
		claims.Audience = jwt.ClaimStrings{cfg.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
