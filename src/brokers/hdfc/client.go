// Package hdfc talks to the HDFC Securities InvestRight API: the OTP login
// flow and the portfolio holdings endpoint.
package hdfc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/username/brokerbridge/src/brokers/upstream"
	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/models"
)

const (
	Slug = "hdfc"

	DefaultLoginTimeout    = 20 * time.Second
	DefaultHoldingsTimeout = 25 * time.Second
)

var ErrNotConfigured = errors.New("hdfc api key/secret not configured")

type Client struct {
	baseURL   string
	apiKey    string
	apiSecret string

	http            *http.Client
	holdingsTimeout time.Duration
}

// NewClient builds a client. holdingsTimeout bounds the holdings call; the
// login calls use DefaultLoginTimeout unless it is larger.
func NewClient(baseURL, apiKey, apiSecret string, holdingsTimeout time.Duration) *Client {
	if holdingsTimeout <= 0 {
		holdingsTimeout = DefaultHoldingsTimeout
	}
	loginTimeout := DefaultLoginTimeout
	if holdingsTimeout < loginTimeout {
		loginTimeout = holdingsTimeout
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		apiKey:          apiKey,
		apiSecret:       apiSecret,
		http:            upstream.NewHTTPClient(loginTimeout),
		holdingsTimeout: holdingsTimeout,
	}
}

func (c *Client) Slug() string { return Slug }

func (c *Client) endpoint(path string, params url.Values) string {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

func (c *Client) postJSON(ctx context.Context, op, path string, params url.Values, payload any) (any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path, params), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return upstream.Do(c.http, op, req)
}

// TokenID starts a login and returns the token id the later steps refer to.
func (c *Client) TokenID(ctx context.Context) (string, error) {
	if c.apiKey == "" {
		return "", ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/login", url.Values{"api_key": {c.apiKey}}), nil)
	if err != nil {
		return "", err
	}
	doc, err := upstream.Do(c.http, "hdfc token id", req)
	if err != nil {
		return "", err
	}
	tokenID, err := upstream.String("$.tokenId", doc)
	if err != nil {
		return "", fmt.Errorf("hdfc token id: %w: %v", upstream.ErrUpstreamUnavailable, err)
	}
	return tokenID, nil
}

// ValidateLogin submits the user's credentials. The answer carries the
// second factor question.
func (c *Client) ValidateLogin(ctx context.Context, tokenID, username, password string) (any, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	params := url.Values{"api_key": {c.apiKey}, "token_id": {tokenID}}
	doc, err := c.postJSON(ctx, "hdfc login validate", "/login/validate", params,
		map[string]string{"username": username, "password": password})
	if err != nil {
		return nil, err
	}
	twofa, _ := upstream.Lookup("$.twofa", doc)
	return twofa, nil
}

// ValidateOTP answers the second factor.
func (c *Client) ValidateOTP(ctx context.Context, tokenID, otp string) (*models.LoginGrant, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}
	params := url.Values{"api_key": {c.apiKey}, "token_id": {tokenID}}
	doc, err := c.postJSON(ctx, "hdfc twofa validate", "/twofa/validate", params, map[string]string{"answer": otp})
	if err != nil {
		return nil, err
	}

	grant := &models.LoginGrant{
		RequestToken: upstream.OptionalString("$.requestToken", doc),
		CallbackURL:  upstream.OptionalString("$.callbackUrl", doc),
	}
	if v, err := upstream.Lookup("$.authorised", doc); err == nil {
		grant.Authorised, _ = v.(bool)
	}
	return grant, nil
}

// AccessToken exchanges a request token for an access token.
func (c *Client) AccessToken(ctx context.Context, requestToken string) (string, error) {
	if c.apiKey == "" || c.apiSecret == "" {
		return "", ErrNotConfigured
	}
	params := url.Values{"api_key": {c.apiKey}, "request_token": {requestToken}}
	doc, err := c.postJSON(ctx, "hdfc access token", "/access-token", params, map[string]string{"apiSecret": c.apiSecret})
	if err != nil {
		return "", err
	}
	token, err := upstream.String("$.accessToken", doc)
	if err != nil {
		return "", fmt.Errorf("hdfc access token: %w: %v", upstream.ErrUpstreamUnavailable, err)
	}
	return token, nil
}

// Holdings fetches the portfolio with a bearer token, which may be either a
// request token or an access token.
func (c *Client) Holdings(ctx context.Context, bearer string) (any, error) {
	client := &http.Client{
		Jar:     c.http.Jar,
		Timeout: c.holdingsTimeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: bearer, TokenType: "Bearer"}),
			Base:   c.http.Transport,
		},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/portfolio/holdings", nil), nil)
	if err != nil {
		return nil, err
	}
	return upstream.Do(client, "hdfc holdings", req)
}

// FetchHoldings satisfies brokers.HoldingsSource.
func (c *Client) FetchHoldings(ctx context.Context, accessToken string) (any, error) {
	return c.Holdings(ctx, accessToken)
}

// HoldingsWithFallback tries the request token as a bearer first and, when
// that yields nothing, exchanges it for an access token and retries. It
// returns the token that worked.
func (c *Client) HoldingsWithFallback(ctx context.Context, requestToken string) (any, string, error) {
	doc, err := c.Holdings(ctx, requestToken)
	if err == nil && hasData(doc) {
		return doc, requestToken, nil
	}
	if err != nil {
		logger.L.Debug("Direct request token holdings fetch failed, exchanging for access token", "error", err)
	}

	accessToken, exErr := c.AccessToken(ctx, requestToken)
	if exErr != nil {
		return nil, "", exErr
	}
	doc, err = c.Holdings(ctx, accessToken)
	if err != nil {
		return nil, "", err
	}
	return doc, accessToken, nil
}

// StartLogin runs the first two login steps.
func (c *Client) StartLogin(ctx context.Context, username, password string) (*models.LoginChallenge, error) {
	tokenID, err := c.TokenID(ctx)
	if err != nil {
		return nil, err
	}
	twofa, err := c.ValidateLogin(ctx, tokenID, username, password)
	if err != nil {
		return nil, err
	}
	return &models.LoginChallenge{TokenID: tokenID, TwoFA: twofa}, nil
}

// CompleteLogin validates the OTP and fetches holdings with the resulting
// grant. It returns the holdings document and the bearer token to keep.
func (c *Client) CompleteLogin(ctx context.Context, challenge *models.LoginChallenge, otp string) (any, string, error) {
	grant, err := c.ValidateOTP(ctx, challenge.TokenID, otp)
	if err != nil {
		return nil, "", err
	}
	if !grant.Authorised || grant.RequestToken == "" {
		return nil, "", upstream.ErrOTPRejected
	}
	return c.HoldingsWithFallback(ctx, grant.RequestToken)
}

// hasData reports whether a holdings document carries anything at all.
func hasData(doc any) bool {
	switch v := doc.(type) {
	case nil:
		return false
	case map[string]any:
		if d, ok := v["data"]; ok {
			return hasData(d)
		}
		return len(v) > 0
	case []any:
		return len(v) > 0
	}
	return true
}
