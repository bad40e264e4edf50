// Package brokers wires the per-broker API clients behind one interface.
package brokers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/username/brokerbridge/src/brokers/hdfc"
	"github.com/username/brokerbridge/src/brokers/upstream"
	"github.com/username/brokerbridge/src/brokers/zerodha"
	"github.com/username/brokerbridge/src/config"
	"github.com/username/brokerbridge/src/models"
)

var (
	ErrUnknownBroker       = errors.New("unknown broker")
	ErrUpstreamUnavailable = upstream.ErrUpstreamUnavailable
	ErrOTPRejected         = upstream.ErrOTPRejected
)

// HoldingsSource fetches a raw holdings payload with a broker access token.
type HoldingsSource interface {
	Slug() string
	FetchHoldings(ctx context.Context, accessToken string) (any, error)
}

// OTPLogin is implemented by brokers whose login is username, password and a
// one time password.
type OTPLogin interface {
	StartLogin(ctx context.Context, username, password string) (*models.LoginChallenge, error)
	// CompleteLogin returns the holdings payload and the token to keep for later syncs.
	CompleteLogin(ctx context.Context, challenge *models.LoginChallenge, otp string) (any, string, error)
}

// TokenExchanger is implemented by brokers that redirect back with a request
// token to be swapped for an access token.
type TokenExchanger interface {
	ExchangeRequestToken(ctx context.Context, requestToken string) (string, error)
}

// Slugs lists the supported brokers.
var Slugs = []string{hdfc.Slug, zerodha.Slug}

// GetSource builds the client for a broker slug.
func GetSource(slug string, cfg *config.AppConfig) (HoldingsSource, error) {
	switch strings.ToLower(strings.TrimSpace(slug)) {
	case hdfc.Slug:
		return hdfc.NewClient(cfg.HDFCBaseURL, cfg.HDFCAPIKey, cfg.HDFCAPISecret, cfg.BrokerTimeout), nil
	case zerodha.Slug:
		return zerodha.NewClient(cfg.ZerodhaBaseURL, cfg.ZerodhaAPIKey, cfg.ZerodhaSecret, cfg.BrokerTimeout), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBroker, slug)
	}
}

// Registry holds one client per configured broker.
type Registry struct {
	sources map[string]HoldingsSource
}

// NewRegistry builds a registry from explicit sources.
func NewRegistry(sources ...HoldingsSource) *Registry {
	r := &Registry{sources: make(map[string]HoldingsSource, len(sources))}
	for _, s := range sources {
		r.sources[s.Slug()] = s
	}
	return r
}

// NewRegistryFromConfig builds a registry with every supported broker.
func NewRegistryFromConfig(cfg *config.AppConfig) (*Registry, error) {
	r := NewRegistry()
	for _, slug := range Slugs {
		s, err := GetSource(slug, cfg)
		if err != nil {
			return nil, err
		}
		r.sources[slug] = s
	}
	return r, nil
}

// Get returns the client for slug.
func (r *Registry) Get(slug string) (HoldingsSource, error) {
	s, ok := r.sources[strings.ToLower(strings.TrimSpace(slug))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownBroker, slug)
	}
	return s, nil
}
