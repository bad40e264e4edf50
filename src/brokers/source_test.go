package brokers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/brokerbridge/src/config"
)

type stubSource struct{ slug string }

func (s stubSource) Slug() string { return s.slug }
func (s stubSource) FetchHoldings(context.Context, string) (any, error) {
	return []any{}, nil
}

func TestGetSource(t *testing.T) {
	cfg := &config.AppConfig{HDFCBaseURL: "http://hdfc", ZerodhaBaseURL: "http://kite"}

	s, err := GetSource("HDFC", cfg)
	require.NoError(t, err)
	assert.Equal(t, "hdfc", s.Slug())
	_, isOTP := s.(OTPLogin)
	assert.True(t, isOTP)

	s, err = GetSource("zerodha", cfg)
	require.NoError(t, err)
	_, isExchanger := s.(TokenExchanger)
	assert.True(t, isExchanger)

	_, err = GetSource("groww", cfg)
	assert.ErrorIs(t, err, ErrUnknownBroker)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(stubSource{"fake"})
	s, err := r.Get(" Fake ")
	require.NoError(t, err)
	assert.Equal(t, "fake", s.Slug())

	_, err = r.Get("hdfc")
	assert.ErrorIs(t, err, ErrUnknownBroker)

	r, err = NewRegistryFromConfig(&config.AppConfig{})
	require.NoError(t, err)
	for _, slug := range Slugs {
		_, err := r.Get(slug)
		assert.NoError(t, err)
	}
}
