package testutil

import (
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/middleware"
)

// MockValidatedClaims creates validated claims carrying a role
func MockValidatedClaims(subject, role string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  "procurement-api",
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{Role: role},
	}
}

// MockAuth stands in for token validation: it stores the subject, token and
// claims exactly as the real middleware does.
func MockAuth(auth0ID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", "mock-token")
		c.Set("validated_claims", MockValidatedClaims(auth0ID, role))
		c.Next()
	}
}
