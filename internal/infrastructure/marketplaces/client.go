package marketplaces

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/resell/backend/internal/domain/marketplace"
	"github.com/resell/backend/internal/infrastructure/config"
)

// ClientConfig holds connection settings for one marketplace API
type ClientConfig struct {
	BaseURL        string
	APIKey         string
	APISecret      string
	Timeout        time.Duration
	RatePerSecond  float64
	RateBurst      int
	MaxRespBodyLen int64
}

var (
	ErrConfigMissingBaseURL = errors.New("marketplaces: base URL is required")
	ErrConfigMissingAPIKey  = errors.New("marketplaces: API key is required")
)

// Validate validates the client configuration and fills defaults
func (c *ClientConfig) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.APIKey == "" {
		return ErrConfigMissingAPIKey
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.RatePerSecond <= 0 {
		c.RatePerSecond = 5
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 10
	}
	if c.MaxRespBodyLen <= 0 {
		c.MaxRespBodyLen = 1 << 20
	}
	return nil
}

// ClientConfigFromApp maps the application's marketplace section onto a
// client configuration
func ClientConfigFromApp(mc config.MarketplaceConfig) ClientConfig {
	return ClientConfig{
		BaseURL:        mc.BaseURL,
		APIKey:         mc.APIKey,
		APISecret:      mc.APISecret,
		Timeout:        mc.Timeout,
		RatePerSecond:  mc.RatePerSecond,
		RateBurst:      mc.RateBurst,
		MaxRespBodyLen: mc.MaxRespBodyLen,
	}
}

// apiClient is the HTTP client shared by all marketplace adapters. It rate
// limits outgoing calls, bounds response bodies, and maps HTTP failures onto
// the domain's adapter errors so the sync engine can branch on them.
type apiClient struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
}

func newAPIClient(cfg ClientConfig) (*apiClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &apiClient{
		config:     cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.RateBurst),
	}, nil
}

// doJSON performs one JSON request against the marketplace API. A nil body
// sends no payload. The response body is returned raw for the adapter to
// decode into its own wire types.
func (c *apiClient) doJSON(ctx context.Context, method, path string, body any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrRateLimited, err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marketplaces: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("marketplaces: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Key", c.config.APIKey)
	if c.config.APISecret != "" {
		timestamp := fmt.Sprintf("%d", time.Now().Unix())
		req.Header.Set("X-Timestamp", timestamp)
		req.Header.Set("X-Signature", c.sign(method, path, timestamp))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", marketplace.ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxRespBodyLen))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", marketplace.ErrInvalidResponse, err)
	}

	if err := mapStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	return respBody, nil
}

// sign computes an HMAC-SHA256 request signature over method, path and
// timestamp, keyed by the API secret
func (c *apiClient) sign(method, path, timestamp string) string {
	h := hmac.New(sha256.New, []byte(c.config.APISecret))
	h.Write([]byte(method + path + timestamp))
	return hex.EncodeToString(h.Sum(nil))
}

func mapStatus(status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: HTTP %d", marketplace.ErrAuthFailed, status)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: HTTP %d", marketplace.ErrListingNotFound, status)
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: HTTP %d", marketplace.ErrRateLimited, status)
	default:
		return fmt.Errorf("%w: HTTP %d", marketplace.ErrRequestFailed, status)
	}
}
