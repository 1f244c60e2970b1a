package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2"
	"github.com/auth0/go-jwt-middleware/v2/jwks"
	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/procurement-api/config"
	"github.com/kendall-kelly/procurement-api/workflow"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// CustomClaims contains custom data we want from the token.
type CustomClaims struct {
	Scope string `json:"scope"`
	Role  string `json:"role"`
}

// Validate rejects tokens that name a role the system does not know.
func (c CustomClaims) Validate(ctx context.Context) error {
	if c.Role != "" {
		if _, ok := workflow.ParseRole(c.Role); !ok {
			return fmt.Errorf("unknown role %q, expected one of %v", c.Role, workflow.Roles())
		}
	}
	return nil
}

// EnsureValidToken checks the bearer token. With an Auth0 domain configured
// tokens are RS256 signed and verified against the tenant's JWKS; otherwise
// they are HS256 tokens signed with JWT_SECRET.
func EnsureValidToken(cfg *config.Config) (gin.HandlerFunc, error) {
	jwtValidator, err := newValidator(cfg)
	if err != nil {
		return nil, err
	}

	errorHandler := func(w http.ResponseWriter, r *http.Request, err error) {
		config.L().Warn("rejected token", zap.String("path", r.URL.Path), zap.Error(err))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		if _, writeErr := w.Write([]byte(`{"success":false,"error":{"code":"INVALID_TOKEN","message":"Failed to validate JWT."}}`)); writeErr != nil {
			config.L().Warn("failed to write error response", zap.Error(writeErr))
		}
	}

	checker := jwtmiddleware.New(
		jwtValidator.ValidateToken,
		jwtmiddleware.WithErrorHandler(errorHandler),
	)

	return func(c *gin.Context) {
		passed := false
		var handler http.HandlerFunc = func(w http.ResponseWriter, r *http.Request) {
			passed = true
			token := r.Context().Value(jwtmiddleware.ContextKey{}).(*validator.ValidatedClaims)

			c.Set("user_id", token.RegisteredClaims.Subject)
			c.Set("validated_claims", token)
			if raw, err := jwtmiddleware.AuthHeaderTokenExtractor(r); err == nil {
				c.Set("access_token", raw)
			}
			c.Request = r
			c.Next()
		}

		checker.CheckJWT(handler).ServeHTTP(c.Writer, c.Request)
		if !passed {
			c.Abort()
		}
	}, nil
}

func newValidator(cfg *config.Config) (*validator.Validator, error) {
	customClaims := validator.WithCustomClaims(func() validator.CustomClaims {
		return &CustomClaims{}
	})
	skew := validator.WithAllowedClockSkew(time.Minute)

	if cfg.UsesAuth0() {
		issuerURL, err := url.Parse("https://" + cfg.Auth0Domain + "/")
		if err != nil {
			return nil, errors.Wrap(err, "parse issuer url")
		}
		provider := jwks.NewCachingProvider(issuerURL, 5*time.Minute)
		v, err := validator.New(provider.KeyFunc, validator.RS256, issuerURL.String(),
			[]string{cfg.Auth0Audience}, customClaims, skew)
		return v, errors.Wrap(err, "set up the jwt validator")
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required when AUTH0_DOMAIN is not set")
	}
	secret := []byte(cfg.JWTSecret)
	keyFunc := func(context.Context) (interface{}, error) { return secret, nil }
	v, err := validator.New(keyFunc, validator.HS256, cfg.JWTIssuer, []string{cfg.Audience()}, customClaims, skew)
	return v, errors.Wrap(err, "set up the jwt validator")
}

// GetUserID extracts the token subject from the Gin context
func GetUserID(c *gin.Context) (string, error) {
	userID, exists := c.Get("user_id")
	if !exists {
		return "", &AuthError{Code: "MISSING_USER_ID", Message: "User ID not found in context"}
	}

	userIDStr, ok := userID.(string)
	if !ok || userIDStr == "" {
		return "", &AuthError{Code: "INVALID_USER_ID", Message: "User ID is not a string"}
	}

	return userIDStr, nil
}

// GetAccessToken returns the raw bearer token of the request
func GetAccessToken(c *gin.Context) (string, error) {
	token := c.GetString("access_token")
	if token == "" {
		return "", &AuthError{Code: "MISSING_TOKEN", Message: "Access token not found"}
	}
	return token, nil
}

// GetClaims extracts the validated JWT claims from the Gin context
func GetClaims(c *gin.Context) (*validator.ValidatedClaims, error) {
	claims, exists := c.Get("validated_claims")
	if !exists {
		return nil, &AuthError{Code: "MISSING_CLAIMS", Message: "Claims not found in context"}
	}

	validatedClaims, ok := claims.(*validator.ValidatedClaims)
	if !ok {
		return nil, &AuthError{Code: "INVALID_CLAIMS", Message: "Claims are not in the expected format"}
	}

	return validatedClaims, nil
}

// GetTokenRole returns the role carried in the token's custom claims
func GetTokenRole(c *gin.Context) (workflow.Role, error) {
	claims, err := GetClaims(c)
	if err != nil {
		return "", err
	}
	custom, ok := claims.CustomClaims.(*CustomClaims)
	if !ok || strings.TrimSpace(custom.Role) == "" {
		return "", &AuthError{Code: "MISSING_ROLE", Message: "Token does not carry a role"}
	}
	role, ok := workflow.ParseRole(custom.Role)
	if !ok {
		return "", &AuthError{Code: "INVALID_ROLE", Message: "Token carries an unknown role"}
	}
	return role, nil
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}
