package services

import (
	"context"
	"time"

	"github.com/username/brokerbridge/src/brokers"
	"github.com/username/brokerbridge/src/models"
)

// HoldingStore is the storage the import writes through.
type HoldingStore interface {
	DeleteEquity(ctx context.Context, filter models.ScopeFilter) (int64, error)
	DeleteMutualFunds(ctx context.Context, filter models.ScopeFilter) (int64, error)
	InsertEquity(ctx context.Context, records []models.EquityRecord) error
	InsertMutualFunds(ctx context.Context, records []models.MutualFundRecord) error
}

// HoldingReader is the read side of the store.
type HoldingReader interface {
	ListEquity(ctx context.Context, userID, memberID string) ([]models.EquityRecord, error)
	ListMutualFunds(ctx context.Context, userID, memberID string) ([]models.MutualFundRecord, error)
	LatestImportDate(ctx context.Context, userID, platform string) (time.Time, bool, error)
}

// CacheInvalidator drops cached reads for a user.
type CacheInvalidator interface {
	InvalidateUserCache(userID string)
}

// ImportService turns a raw broker payload into stored canonical holdings.
type ImportService interface {
	ImportHoldings(ctx context.Context, raw any, scope models.ImportScope) (*models.ImportResult, error)
}

// HoldingsService serves stored holdings, cached per user.
type HoldingsService interface {
	CacheInvalidator
	GetEquityHoldings(ctx context.Context, userID, memberID string) ([]models.EquityRecord, error)
	GetMutualFundHoldings(ctx context.Context, userID, memberID string) ([]models.MutualFundRecord, error)
	GetLatestImportDate(ctx context.Context, userID, platform string) (time.Time, bool, error)
}

// SourceLookup resolves a broker slug to its client.
type SourceLookup interface {
	Get(slug string) (brokers.HoldingsSource, error)
}

// LoginStarted is handed to the caller after the first login step.
type LoginStarted struct {
	LoginID   string    `json:"loginId"`
	Broker    string    `json:"broker"`
	TwoFA     any       `json:"twofa,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// LoginService tracks broker logins and the sessions they produce.
type LoginService interface {
	StartLogin(ctx context.Context, userID, slug, username, password string) (*LoginStarted, error)
	// CompleteLogin answers the OTP and returns the holdings payload. The login
	// must have been started by userID against the broker slug.
	CompleteLogin(ctx context.Context, userID, slug, loginID, otp string) (any, error)
	ExchangeRequestToken(ctx context.Context, userID, slug, requestToken string) error
	Connect(userID, slug, accessToken string) error
	FetchHoldings(ctx context.Context, userID, slug, accessToken string) (any, error)
	MarkSynced(userID, slug string, at time.Time)
	Status(userID, slug string) (models.BrokerStatus, error)
}
