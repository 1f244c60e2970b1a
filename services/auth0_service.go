package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kendall-kelly/procurement-api/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// UserInfo is the profile registration needs from the identity provider.
type UserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Auth0Service resolves access tokens through the tenant's /userinfo endpoint.
type Auth0Service struct {
	endpoint   string
	httpClient *http.Client
}

func NewAuth0Service(cfg *config.Config) *Auth0Service {
	endpoint := "https://" + cfg.Auth0Domain + "/userinfo"
	// test servers hand out a full URL
	if strings.HasPrefix(cfg.Auth0Domain, "http://") || strings.HasPrefix(cfg.Auth0Domain, "https://") {
		endpoint = strings.TrimSuffix(cfg.Auth0Domain, "/") + "/userinfo"
	}
	return &Auth0Service{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// GetUserInfo fetches the profile behind accessToken. A profile without an
// email cannot be registered and is reported as an error.
func (s *Auth0Service) GetUserInfo(ctx context.Context, accessToken string) (*UserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build userinfo request")
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "call userinfo")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			config.L().Debug("closing userinfo response", zap.Error(closeErr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, errors.Errorf("userinfo returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var info UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, errors.Wrap(err, "decode userinfo")
	}
	if info.Email == "" {
		return nil, errors.New("userinfo profile has no email")
	}
	return &info, nil
}
