package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/models"
)

const (
	ckEquityHoldings     = "holdings_equity_user_%s_member_%s"
	ckMutualFundHoldings = "holdings_mf_user_%s_member_%s"
	ckUserPrefix         = "user_%s_"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type holdingsServiceImpl struct {
	reader HoldingReader
	cache  *cache.Cache
	ttl    time.Duration
}

func NewHoldingsService(reader HoldingReader, c *cache.Cache, ttl time.Duration) HoldingsService {
	if ttl <= 0 {
		ttl = DefaultCacheExpiration
	}
	return &holdingsServiceImpl{reader: reader, cache: c, ttl: ttl}
}

func (s *holdingsServiceImpl) GetEquityHoldings(ctx context.Context, userID, memberID string) ([]models.EquityRecord, error) {
	key := fmt.Sprintf(ckEquityHoldings, userID, memberID)
	if cached, found := s.cache.Get(key); found {
		logger.L.Debug("Cache hit for equity holdings", "userID", userID)
		return cached.([]models.EquityRecord), nil
	}
	records, err := s.reader.ListEquity(ctx, userID, memberID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	s.cache.Set(key, records, s.ttl)
	return records, nil
}

func (s *holdingsServiceImpl) GetMutualFundHoldings(ctx context.Context, userID, memberID string) ([]models.MutualFundRecord, error) {
	key := fmt.Sprintf(ckMutualFundHoldings, userID, memberID)
	if cached, found := s.cache.Get(key); found {
		logger.L.Debug("Cache hit for mutual fund holdings", "userID", userID)
		return cached.([]models.MutualFundRecord), nil
	}
	records, err := s.reader.ListMutualFunds(ctx, userID, memberID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	s.cache.Set(key, records, s.ttl)
	return records, nil
}

func (s *holdingsServiceImpl) GetLatestImportDate(ctx context.Context, userID, platform string) (time.Time, bool, error) {
	t, ok, err := s.reader.LatestImportDate(ctx, userID, platform)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return t, ok, nil
}

// InvalidateUserCache clears every cached read for a user, whatever the member filter.
func (s *holdingsServiceImpl) InvalidateUserCache(userID string) {
	marker := fmt.Sprintf(ckUserPrefix, userID)
	for key := range s.cache.Items() {
		if strings.Contains(key, marker) {
			s.cache.Delete(key)
		}
	}
	logger.L.Info("Invalidated holdings caches for user", "userID", userID)
}
