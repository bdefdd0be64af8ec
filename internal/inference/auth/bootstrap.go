// Package auth implements the lazy, once-per-process auth bootstrap: sign
// in with credentials for a bearer token, then exchange that token for an
// API key.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/leoho0722/gpu-delegater/internal/gpudispatch"
)

// Credentials are the sign-in credentials posted to webuiURL + "/auths/signin".
type Credentials struct {
	Email    string
	Password string
}

// Bootstrapper performs the two-call auth sequence exactly once per process,
// guarded by sync.Once; concurrent first callers observe the same final
// values.
type Bootstrapper struct {
	httpClient *http.Client
	webUIURL   string
	creds      Credentials

	once    sync.Once
	token   string
	apiKey  string
	initErr error
}

func NewBootstrapper(httpClient *http.Client, webUIURL string, creds Credentials) *Bootstrapper {
	return &Bootstrapper{httpClient: httpClient, webUIURL: webUIURL, creds: creds}
}

// APIKey returns the bootstrapped API key, performing the bootstrap on first
// call. A failure on the token call is fatal (AuthFailed); a failure on the
// API-key call falls back to using the bearer token itself as the API key.
func (b *Bootstrapper) APIKey(ctx context.Context) (string, error) {
	b.once.Do(func() {
		b.token, b.initErr = b.signin(ctx)
		if b.initErr != nil {
			return
		}
		apiKey, err := b.generateAPIKey(ctx, b.token)
		if err != nil {
			b.apiKey = b.token
			return
		}
		b.apiKey = apiKey
	})
	if b.initErr != nil {
		return "", gpudispatch.AuthFailed(b.initErr)
	}
	return b.apiKey, nil
}

type signinResponse struct {
	Token string `json:"token"`
}

func (b *Bootstrapper) signin(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{
		"email":    b.creds.Email,
		"password": b.creds.Password,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal signin credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.webUIURL+"/auths/signin", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("signin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("signin failed: status %d", resp.StatusCode)
	}

	var out signinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode signin response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("signin response had no token")
	}
	return out.Token, nil
}

type apiKeyResponse struct {
	APIKey string `json:"api_key"`
}

func (b *Bootstrapper) generateAPIKey(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.webUIURL+"/auths/api_key", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("api_key request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("api_key request failed: status %d", resp.StatusCode)
	}

	var out apiKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode api_key response: %w", err)
	}
	if out.APIKey == "" {
		return "", fmt.Errorf("api_key response had no key")
	}
	return out.APIKey, nil
}
