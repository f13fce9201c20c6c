package githubapi

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultAPIURL is the public GitHub REST endpoint.
const DefaultAPIURL = "https://api.github.com"

// AppTokenSource mints installation tokens for a GitHub App.
type AppTokenSource struct {
	appID  string
	key    *rsa.PrivateKey
	apiURL string
	http   *http.Client
	now    func() time.Time

	mu     sync.Mutex
	tokens map[int64]cachedToken
}

type cachedToken struct {
	token  string
	expiry time.Time
}

// NewAppTokenSource parses the app's PEM private key. apiURL defaults to DefaultAPIURL.
func NewAppTokenSource(appID string, pemKey []byte, apiURL string, httpClient *http.Client) (*AppTokenSource, error) {
	if strings.TrimSpace(appID) == "" {
		return nil, fmt.Errorf("github app id is empty")
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("parse github app private key: %w", err)
	}
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &AppTokenSource{
		appID:  appID,
		key:    key,
		apiURL: strings.TrimSuffix(apiURL, "/"),
		http:   httpClient,
		now:    time.Now,
		tokens: make(map[int64]cachedToken),
	}, nil
}

// InstallationToken returns a cached or freshly minted token for the installation.
func (s *AppTokenSource) InstallationToken(ctx context.Context, installationID int64) (string, error) {
	if installationID <= 0 {
		return "", fmt.Errorf("installation id must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.tokens[installationID]; ok && s.now().Before(cached.expiry.Add(-5*time.Minute)) {
		return cached.token, nil
	}

	appJWT, err := s.appJWT()
	if err != nil {
		return "", err
	}
	tok, err := s.exchange(ctx, appJWT, installationID)
	if err != nil {
		return "", err
	}
	s.tokens[installationID] = tok
	return tok.token, nil
}

func (s *AppTokenSource) appJWT() (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-60 * time.Second)),
		ExpiresAt: jwt.NewNumericDate(now.Add(10 * time.Minute)),
		Issuer:    s.appID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign github app jwt: %w", err)
	}
	return signed, nil
}

func (s *AppTokenSource) exchange(ctx context.Context, appJWT string, installationID int64) (cachedToken, error) {
	url := fmt.Sprintf("%s/app/installations/%d/access_tokens", s.apiURL, installationID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return cachedToken{}, err
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.http.Do(req)
	if err != nil {
		return cachedToken{}, fmt.Errorf("request installation token: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return cachedToken{}, fmt.Errorf("read installation token response: %w", err)
	}
	if resp.StatusCode != http.StatusCreated {
		return cachedToken{}, fmt.Errorf("installation token request failed: %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var tok installationToken
	if err := json.Unmarshal(body, &tok); err != nil {
		return cachedToken{}, fmt.Errorf("decode installation token: %w", err)
	}
	expiry, err := time.Parse(time.RFC3339, tok.ExpiresAt)
	if err != nil {
		expiry = s.now().Add(time.Hour)
	}
	return cachedToken{token: tok.Token, expiry: expiry}, nil
}
