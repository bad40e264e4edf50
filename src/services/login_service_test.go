package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/brokerbridge/src/brokers"
	"github.com/username/brokerbridge/src/models"
	"github.com/username/brokerbridge/src/security"
)

type fakeOTPBroker struct {
	lastBearer  string
	completions int
}

func (f *fakeOTPBroker) Slug() string { return "hdfc" }

func (f *fakeOTPBroker) FetchHoldings(_ context.Context, token string) (any, error) {
	f.lastBearer = token
	return []any{map[string]any{"symbol": "TCS", "quantity": 1}}, nil
}

func (f *fakeOTPBroker) StartLogin(_ context.Context, username, _ string) (*models.LoginChallenge, error) {
	return &models.LoginChallenge{TokenID: "tok-" + username, TwoFA: "Enter OTP"}, nil
}

func (f *fakeOTPBroker) CompleteLogin(_ context.Context, c *models.LoginChallenge, otp string) (any, string, error) {
	f.completions++
	if otp != "123456" {
		return nil, "", brokers.ErrOTPRejected
	}
	return map[string]any{"data": []any{}}, "acc-for-" + c.TokenID, nil
}

type fakeExchangeBroker struct{}

func (fakeExchangeBroker) Slug() string { return "zerodha" }
func (fakeExchangeBroker) FetchHoldings(context.Context, string) (any, error) {
	return []any{}, nil
}
func (fakeExchangeBroker) ExchangeRequestToken(_ context.Context, rt string) (string, error) {
	return "acc-" + rt, nil
}

func newLoginService(t *testing.T) (LoginService, *fakeOTPBroker) {
	t.Helper()
	sealer, err := security.NewTokenSealer("0123456789abcdef0123456789abcdef")
	require.NoError(t, err)
	otp := &fakeOTPBroker{}
	return NewLoginService(brokers.NewRegistry(otp, fakeExchangeBroker{}), sealer, time.Minute, time.Hour), otp
}

func TestLoginService_OTPFlow(t *testing.T) {
	ctx := context.Background()
	svc, broker := newLoginService(t)

	started, err := svc.StartLogin(ctx, "u1", "HDFC", "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "hdfc", started.Broker)
	assert.Equal(t, "Enter OTP", started.TwoFA)
	require.NotEmpty(t, started.LoginID)

	_, err = svc.CompleteLogin(ctx, "someone-else", "hdfc", started.LoginID, "123456")
	assert.ErrorIs(t, err, ErrLoginNotFound)

	_, err = svc.CompleteLogin(ctx, "u1", "zerodha", started.LoginID, "123456")
	assert.ErrorIs(t, err, ErrLoginNotFound, "login belongs to another broker")
	assert.Zero(t, broker.completions, "mismatched requests never reach the broker")

	_, err = svc.CompleteLogin(ctx, "u1", "hdfc", started.LoginID, "000000")
	assert.ErrorIs(t, err, ErrOTPRejected)

	raw, err := svc.CompleteLogin(ctx, "u1", " HDFC ", started.LoginID, "123456")
	require.NoError(t, err)
	assert.NotNil(t, raw)
	assert.Equal(t, 2, broker.completions)

	_, err = svc.CompleteLogin(ctx, "u1", "hdfc", started.LoginID, "123456")
	assert.ErrorIs(t, err, ErrLoginNotFound, "a login completes once")

	status, err := svc.Status("u1", "hdfc")
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Nil(t, status.LastSync)

	_, err = svc.FetchHoldings(ctx, "u1", "hdfc", "")
	require.NoError(t, err)
	assert.Equal(t, "acc-for-tok-alice", broker.lastBearer)

	svc.MarkSynced("u1", "hdfc", fixedNow)
	status, err = svc.Status("u1", "hdfc")
	require.NoError(t, err)
	require.NotNil(t, status.LastSync)
	assert.Equal(t, fixedNow, *status.LastSync)
}

func TestLoginService_NotConnected(t *testing.T) {
	svc, broker := newLoginService(t)

	_, err := svc.FetchHoldings(context.Background(), "u2", "hdfc", "")
	assert.ErrorIs(t, err, ErrNotConnected)

	_, err = svc.FetchHoldings(context.Background(), "u2", "hdfc", "explicit")
	require.NoError(t, err)
	assert.Equal(t, "explicit", broker.lastBearer)

	status, err := svc.Status("u2", "hdfc")
	require.NoError(t, err)
	assert.True(t, status.Connected, "explicit token becomes the session")
}

func TestLoginService_RequestTokenExchange(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLoginService(t)

	require.NoError(t, svc.ExchangeRequestToken(ctx, "u1", "zerodha", "rt"))
	status, err := svc.Status("u1", "zerodha")
	require.NoError(t, err)
	assert.True(t, status.Connected)

	err = svc.ExchangeRequestToken(ctx, "u1", "hdfc", "rt")
	assert.ErrorIs(t, err, ErrUnsupportedFlow)

	_, err = svc.StartLogin(ctx, "u1", "zerodha", "a", "b")
	assert.ErrorIs(t, err, ErrUnsupportedFlow)

	_, err = svc.Status("u1", "groww")
	assert.ErrorIs(t, err, ErrUnknownBroker)
}
