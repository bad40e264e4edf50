// Package zerodha reads equity and mutual fund holdings from the Kite Connect API.
package zerodha

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/username/brokerbridge/src/brokers/upstream"
)

const (
	Slug        = "zerodha"
	kiteVersion = "3"
)

var ErrNotConfigured = errors.New("zerodha api key not configured")

type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string
	http      *http.Client
}

func NewClient(baseURL, apiKey, apiSecret string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		apiKey:    apiKey,
		apiSecret: apiSecret,
		http:      upstream.NewHTTPClient(timeout),
	}
}

func (c *Client) Slug() string { return Slug }

// ExchangeRequestToken turns the request token from the Kite login redirect
// into an access token.
func (c *Client) ExchangeRequestToken(ctx context.Context, requestToken string) (string, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return "", ErrNotConfigured
	}
	sum := sha256.Sum256([]byte(c.apiKey + requestToken + c.apiSecret))
	form := url.Values{
		"api_key":       {c.apiKey},
		"request_token": {requestToken},
		"checksum":      {hex.EncodeToString(sum[:])},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/session/token", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Kite-Version", kiteVersion)

	doc, err := upstream.Do(c.http, "zerodha session token", req)
	if err != nil {
		return "", err
	}
	token, err := upstream.String("$.data.access_token", doc)
	if err != nil {
		return "", fmt.Errorf("zerodha session token: %w: %v", upstream.ErrUpstreamUnavailable, err)
	}
	return token, nil
}

func (c *Client) get(ctx context.Context, op, path, accessToken string) (any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("token %s:%s", c.apiKey, accessToken))
	req.Header.Set("X-Kite-Version", kiteVersion)
	doc, err := upstream.Do(c.http, op, req)
	if err != nil {
		return nil, err
	}
	data, err := upstream.Lookup("$.data", doc)
	if err != nil {
		// an answer without data is an empty portfolio
		return []any{}, nil
	}
	return data, nil
}

// FetchHoldings returns [equityHoldings, mutualFundHoldings] as one nested list.
func (c *Client) FetchHoldings(ctx context.Context, accessToken string) (any, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	equity, err := c.get(ctx, "zerodha holdings", "/portfolio/holdings", accessToken)
	if err != nil {
		return nil, err
	}
	funds, err := c.get(ctx, "zerodha mf holdings", "/mf/holdings", accessToken)
	if err != nil {
		return nil, err
	}
	return []any{equity, funds}, nil
}
