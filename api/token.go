package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storefront/domain"
)

// TokenClient talks to the credential endpoints directly, without the
// authenticated pipeline. The session manager's renew function is
// wired to Refresh; routing it through the pipeline would recurse into
// renewal.
type TokenClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func (c *TokenClient) Login(ctx context.Context, email, password string) (domain.Credential, error) {
	return c.requestToken(ctx, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
}

func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (domain.Credential, error) {
	return c.requestToken(ctx, "/auth/refresh-token", map[string]string{
		"refresh_token": refreshToken,
	})
}

func (c *TokenClient) requestToken(ctx context.Context, path string, payload map[string]string) (domain.Credential, error) {
	if c.BaseURL == "" {
		return domain.Credential{}, fmt.Errorf("token endpoint base url missing")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.Credential{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return domain.Credential{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return domain.Credential{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return domain.Credential{}, fmt.Errorf("token request failed with status %d", resp.StatusCode)
	}
	var tokenResp tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return domain.Credential{}, err
	}
	if tokenResp.AccessToken == "" {
		return domain.Credential{}, fmt.Errorf("token response missing access_token")
	}
	return domain.Credential{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
	}, nil
}
