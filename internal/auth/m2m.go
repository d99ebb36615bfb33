package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"ms-checkout/internal/logger"
	"ms-checkout/internal/models"
)

// M2MTokenSource fetches machine-to-machine tokens from Keycloak using the
// client-credentials grant, caching them in Redis until shortly before
// expiry. The catalog client uses it for every outbound lookup.
type M2MTokenSource struct {
	cfg    models.AuthConfig
	client *http.Client
	cache  *RedisTokenCache
	log    *logger.Logger
}

func NewM2MTokenSource(cfg models.AuthConfig, client *http.Client, cache *RedisTokenCache, log *logger.Logger) *M2MTokenSource {
	return &M2MTokenSource{cfg: cfg, client: client, cache: cache, log: log}
}

// Token returns a valid access token, refreshing through Keycloak when the
// cached one is missing or about to expire.
func (s *M2MTokenSource) Token(ctx context.Context) (string, error) {
	if s.cache != nil {
		cached, err := s.cache.GetToken(ctx)
		if err == nil && cached.IsValid() {
			return cached.Token, nil
		}
	}

	token, expiresIn, err := s.fetch(ctx)
	if err != nil {
		return "", err
	}

	if s.cache != nil {
		if err := s.cache.SetToken(ctx, token, expiresIn); err != nil {
			s.log.Warn("AUTH", fmt.Sprintf("Failed to cache M2M token: %v", err))
		}
	}

	return token, nil
}

func (s *M2MTokenSource) fetch(ctx context.Context) (string, int, error) {
	tokenURL := fmt.Sprintf("%s/realms/%s/protocol/openid-connect/token", s.cfg.KeycloakURL, s.cfg.KeycloakRealm)

	data := url.Values{}
	data.Set("grant_type", "client_credentials")
	data.Set("client_id", s.cfg.ClientID)
	data.Set("client_secret", s.cfg.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", 0, err
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error("AUTH", fmt.Sprintf("Token request to Keycloak failed: %v", err))
		return "", 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		s.log.Error("AUTH", fmt.Sprintf("Keycloak token response %s: %s", resp.Status, string(body)))
		return "", 0, fmt.Errorf("failed to get token, status: %s", resp.Status)
	}

	var tokenResp models.M2MTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", 0, fmt.Errorf("failed to decode token response: %w", err)
	}

	return tokenResp.AccessToken, tokenResp.ExpiresIn, nil
}
