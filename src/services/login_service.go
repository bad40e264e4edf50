package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/username/brokerbridge/src/brokers"
	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/models"
	"github.com/username/brokerbridge/src/security"
)

const (
	ckPendingLogin  = "login_%s"
	ckBrokerSession = "session_%s_%s"
	ckLastSync      = "synced_%s_%s"
)

type pendingLogin struct {
	userID    string
	slug      string
	challenge *models.LoginChallenge
}

type loginServiceImpl struct {
	sources    SourceLookup
	sealer     *security.TokenSealer
	pending    *cache.Cache
	sessions   *cache.Cache
	loginTTL   time.Duration
	sessionTTL time.Duration
}

// NewLoginService keeps pending logins for loginTTL and connected broker
// sessions for sessionTTL, both in memory.
func NewLoginService(sources SourceLookup, sealer *security.TokenSealer, loginTTL, sessionTTL time.Duration) LoginService {
	return &loginServiceImpl{
		sources:    sources,
		sealer:     sealer,
		pending:    cache.New(loginTTL, CacheCleanupInterval),
		sessions:   cache.New(sessionTTL, CacheCleanupInterval),
		loginTTL:   loginTTL,
		sessionTTL: sessionTTL,
	}
}

func normalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func (s *loginServiceImpl) StartLogin(ctx context.Context, userID, slug, username, password string) (*LoginStarted, error) {
	slug = normalizeSlug(slug)
	source, err := s.sources.Get(slug)
	if err != nil {
		return nil, err
	}
	otp, ok := source.(brokers.OTPLogin)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no OTP login", ErrUnsupportedFlow, slug)
	}

	challenge, err := otp.StartLogin(ctx, username, password)
	if err != nil {
		logger.L.Warn("Broker login failed", "userID", userID, "broker", slug, "error", err)
		return nil, err
	}

	loginID := uuid.NewString()
	s.pending.Set(fmt.Sprintf(ckPendingLogin, loginID), &pendingLogin{userID: userID, slug: slug, challenge: challenge}, s.loginTTL)
	logger.L.Info("Broker login started, awaiting OTP", "userID", userID, "broker", slug, "loginID", loginID)

	return &LoginStarted{
		LoginID:   loginID,
		Broker:    slug,
		TwoFA:     challenge.TwoFA,
		ExpiresAt: time.Now().Add(s.loginTTL).UTC(),
	}, nil
}

func (s *loginServiceImpl) CompleteLogin(ctx context.Context, userID, slug, loginID, otp string) (any, error) {
	key := fmt.Sprintf(ckPendingLogin, loginID)
	cached, found := s.pending.Get(key)
	if !found {
		return nil, ErrLoginNotFound
	}
	p := cached.(*pendingLogin)
	if p.userID != userID || p.slug != normalizeSlug(slug) {
		// do not reveal that the login exists; the OTP is not spent
		logger.L.Warn("OTP does not match the pending login", "userID", userID, "broker", slug, "loginID", loginID)
		return nil, ErrLoginNotFound
	}

	source, err := s.sources.Get(p.slug)
	if err != nil {
		return nil, err
	}
	otpLogin, ok := source.(brokers.OTPLogin)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no OTP login", ErrUnsupportedFlow, p.slug)
	}

	raw, token, err := otpLogin.CompleteLogin(ctx, p.challenge, otp)
	if err != nil {
		logger.L.Warn("Broker OTP step failed", "userID", userID, "broker", p.slug, "error", err)
		return nil, err
	}
	s.pending.Delete(key)

	if token != "" {
		if err := s.Connect(userID, p.slug, token); err != nil {
			logger.L.Error("Failed to keep broker session", "userID", userID, "broker", p.slug, "error", err)
		}
	}
	return raw, nil
}

func (s *loginServiceImpl) ExchangeRequestToken(ctx context.Context, userID, slug, requestToken string) error {
	slug = normalizeSlug(slug)
	source, err := s.sources.Get(slug)
	if err != nil {
		return err
	}
	ex, ok := source.(brokers.TokenExchanger)
	if !ok {
		return fmt.Errorf("%w: %s has no request token exchange", ErrUnsupportedFlow, slug)
	}
	token, err := ex.ExchangeRequestToken(ctx, requestToken)
	if err != nil {
		return err
	}
	return s.Connect(userID, slug, token)
}

// Connect keeps accessToken, sealed, as the user's session with the broker.
func (s *loginServiceImpl) Connect(userID, slug, accessToken string) error {
	slug = normalizeSlug(slug)
	if _, err := s.sources.Get(slug); err != nil {
		return err
	}
	sealed, err := s.sealer.Seal(accessToken)
	if err != nil {
		return err
	}
	s.sessions.Set(fmt.Sprintf(ckBrokerSession, userID, slug), sealed, s.sessionTTL)
	logger.L.Info("Broker session connected", "userID", userID, "broker", slug)
	return nil
}

func (s *loginServiceImpl) accessToken(userID, slug string) (string, bool) {
	cached, found := s.sessions.Get(fmt.Sprintf(ckBrokerSession, userID, slug))
	if !found {
		return "", false
	}
	token, err := s.sealer.Open(cached.(string))
	if err != nil {
		logger.L.Error("Stored broker session could not be opened", "userID", userID, "broker", slug, "error", err)
		return "", false
	}
	return token, true
}

// FetchHoldings pulls a fresh payload. An explicit accessToken wins over the
// stored session and replaces it once the fetch succeeds.
func (s *loginServiceImpl) FetchHoldings(ctx context.Context, userID, slug, accessToken string) (any, error) {
	slug = normalizeSlug(slug)
	source, err := s.sources.Get(slug)
	if err != nil {
		return nil, err
	}

	token := strings.TrimSpace(accessToken)
	if token == "" {
		var ok bool
		if token, ok = s.accessToken(userID, slug); !ok {
			return nil, ErrNotConnected
		}
	}

	raw, err := source.FetchHoldings(ctx, token)
	if err != nil {
		return nil, err
	}
	if accessToken != "" {
		if err := s.Connect(userID, slug, token); err != nil {
			logger.L.Error("Failed to keep broker session", "userID", userID, "broker", slug, "error", err)
		}
	}
	return raw, nil
}

func (s *loginServiceImpl) MarkSynced(userID, slug string, at time.Time) {
	s.sessions.Set(fmt.Sprintf(ckLastSync, userID, normalizeSlug(slug)), at.UTC(), cache.NoExpiration)
}

func (s *loginServiceImpl) Status(userID, slug string) (models.BrokerStatus, error) {
	slug = normalizeSlug(slug)
	if _, err := s.sources.Get(slug); err != nil {
		return models.BrokerStatus{}, err
	}
	_, connected := s.accessToken(userID, slug)
	status := models.BrokerStatus{Broker: slug, Connected: connected}
	if cached, found := s.sessions.Get(fmt.Sprintf(ckLastSync, userID, slug)); found {
		t := cached.(time.Time)
		status.LastSync = &t
	}
	return status, nil
}
