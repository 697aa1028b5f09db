package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"AIAssist/internal/backend"
	"AIAssist/internal/cache"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// TokenTTL caps how long a fetched token is reused
	TokenTTL = 2 * time.Minute
	// TokenMaxRetries is the number of retries for transient token failures
	TokenMaxRetries = 3
	// TokenRetryInitialInterval is the first backoff interval
	TokenRetryInitialInterval = 250 * time.Millisecond
	// TokenRetryMaxElapsedTime bounds the total time spent retrying
	TokenRetryMaxElapsedTime = 10 * time.Second
)

// TokenProvider supplies the token attached to stream requests
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
	// Invalidate drops any cached token so the next call fetches a fresh one
	Invalidate()
}

// StaticToken is a TokenProvider that always returns the same token
type StaticToken string

func (t StaticToken) Token(context.Context) (string, error) { return string(t), nil }

func (t StaticToken) Invalidate() {}

// JWTTokenSource fetches short-lived tokens from the service's JWT endpoint
type JWTTokenSource struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
	cache      *cache.TokenCache
	logger     *slog.Logger
}

// NewJWTTokenSource creates a token source for endpoint
func NewJWTTokenSource(endpoint, apiKey string, httpClient *http.Client, logger *slog.Logger) (*JWTTokenSource, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if endpoint == "" {
		return nil, fmt.Errorf("token endpoint cannot be empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &JWTTokenSource{
		endpoint:   endpoint,
		apiKey:     apiKey,
		httpClient: httpClient,
		cache:      cache.NewTokenCache(TokenTTL),
		logger:     logger,
	}, nil
}

// Token returns a cached token or fetches a new one
func (s *JWTTokenSource) Token(ctx context.Context) (string, error) {
	if cached, ok := s.cache.Load(s.endpoint); ok {
		return cached.Token, nil
	}

	var resp backend.TokenResponse
	operation := func() error {
		var err error
		resp, err = s.fetch(ctx)
		return err
	}
	notify := func(err error, next time.Duration) {
		s.logger.Warn("token request failed, retrying", "error", err, "backoff", next)
	}

	if err := backoff.RetryNotify(operation, newTokenBackoff(ctx), notify); err != nil {
		return "", fmt.Errorf("failed to request token: %w", err)
	}

	s.cache.Store(s.endpoint, cache.CachedToken{
		Token:     resp.Token,
		BlogID:    resp.BlogID.String(),
		ExpiresAt: tokenExpiry(resp.Token),
	})
	s.logger.Info("fetched service token", "blog_id", resp.BlogID.String())
	return resp.Token, nil
}

// Invalidate drops the cached token
func (s *JWTTokenSource) Invalidate() {
	s.cache.Delete(s.endpoint)
}

// fetch performs one token request. Client errors are permanent.
func (s *JWTTokenSource) fetch(ctx context.Context) (backend.TokenResponse, error) {
	var tokenResp backend.TokenResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, nil)
	if err != nil {
		return tokenResp, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return tokenResp, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return tokenResp, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := newAPIError(resp.StatusCode, body)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return tokenResp, backoff.Permanent(apiErr)
		}
		return tokenResp, apiErr
	}

	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return tokenResp, backoff.Permanent(fmt.Errorf("failed to unmarshal response: %w", err))
	}
	if tokenResp.Token == "" {
		return tokenResp, backoff.Permanent(errors.New("empty token in response"))
	}
	return tokenResp, nil
}

func newTokenBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = TokenRetryInitialInterval
	b.MaxElapsedTime = TokenRetryMaxElapsedTime
	b.RandomizationFactor = 0.5
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, TokenMaxRetries), ctx)
}

// tokenExpiry reads the exp claim without verifying the signature; the
// service verifies it. Opaque tokens yield the zero time.
func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}

// newAPIError builds an APIError, preferring the message in a JSON error body
func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var errResp backend.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil {
		apiErr.Code = errResp.Code
		apiErr.Message = errResp.Message
	}
	return apiErr
}
