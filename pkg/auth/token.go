package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/smartpark-backend/pkg/config"
)

var jwtSigningMethod = jwt.SigningMethodHS256

// ParseAccessToken validates the provider JWT and returns typed claims.
// Issuer and audience are only enforced when configured.
func ParseAccessToken(cfg config.AuthConfig, tokenString string) (*AccessTokenClaims, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt secret is required")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwtSigningMethod.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer := strings.TrimSpace(cfg.Issuer); issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience := strings.TrimSpace(cfg.Audience); audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	claims := &AccessTokenClaims{}
	_, err := jwt.ParseWithClaims(
		tokenString,
		claims,
		func(token *jwt.Token) (interface{}, error) {
			if token.Method != jwtSigningMethod {
				return nil, fmt.Errorf("unexpected signing method %s", token.Header["alg"])
			}
			return []byte(cfg.JWTSecret), nil
		},
		opts...,
	)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(claims.Subject) == "" {
		return nil, fmt.Errorf("token subject is required")
	}
	if strings.TrimSpace(claims.Email) == "" {
		return nil, fmt.Errorf("token email is required")
	}

	return claims, nil
}
