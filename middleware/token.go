package middleware

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
)

// TokenClaims is the payload of locally issued HS256 tokens.
type TokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken signs a token for subject with role. It is meant for local
// development and tests when no Auth0 tenant is configured.
func IssueToken(cfg *config.Config, subject string, role workflow.Role, ttl time.Duration) (string, error) {
	if cfg.JWTSecret == "" {
		return "", errors.New("JWT_SECRET is not set")
	}
	if !role.IsValid() {
		return "", errors.Errorf("unknown role %q", role)
	}

	now := time.Now()
	claims := TokenClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.JWTIssuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{cfg.Audience()},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	return signed, errors.Wrap(err, "sign token")
}
