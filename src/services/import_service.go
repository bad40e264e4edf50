package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/models"
	"github.com/username/brokerbridge/src/parsers"
	"github.com/username/brokerbridge/src/processors"
	"github.com/username/brokerbridge/src/utils"
)

const (
	StepDeleteEquity      = "delete_equity"
	StepDeleteMutualFunds = "delete_mutual_funds"
	StepInsertEquity      = "insert_equity"
	StepInsertMutualFunds = "insert_mutual_funds"

	DefaultStoreTimeout = 10 * time.Second
)

type importServiceImpl struct {
	store        HoldingStore
	processor    processors.HoldingProcessor
	invalidator  CacheInvalidator
	storeTimeout time.Duration
	now          func() time.Time
	newBatchID   func() string
}

// ImportOption tweaks an ImportService.
type ImportOption func(*importServiceImpl)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ImportOption {
	return func(s *importServiceImpl) { s.now = now }
}

// WithCacheInvalidator is told about every user whose holdings changed.
func WithCacheInvalidator(c CacheInvalidator) ImportOption {
	return func(s *importServiceImpl) { s.invalidator = c }
}

func NewImportService(store HoldingStore, processor processors.HoldingProcessor, storeTimeout time.Duration, opts ...ImportOption) ImportService {
	if storeTimeout <= 0 {
		storeTimeout = DefaultStoreTimeout
	}
	s := &importServiceImpl{
		store:        store,
		processor:    processor,
		storeTimeout: storeTimeout,
		now:          time.Now,
		newBatchID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ImportHoldings replaces the scope's stored holdings with the ones in raw.
//
// Entries that cannot be classified or built are skipped, never fatal. Delete
// failures are logged and the import carries on; the previous rows may then
// linger next to the new ones. An insert failure aborts with an *ImportError.
// Delete and insert are not atomic: an insert failure after a successful
// delete leaves the scope partially replaced.
func (s *importServiceImpl) ImportHoldings(ctx context.Context, raw any, scope models.ImportScope) (*models.ImportResult, error) {
	startTime := time.Now()
	if err := scope.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScope, err)
	}
	log := logger.FromContext(ctx).With("userID", scope.UserID, "broker", scope.BrokerPlatform)

	importedAt := s.now()
	importDate := processors.ImportDay(importedAt)
	batchID := s.newBatchID()

	entries := parsers.Normalize(raw)
	equities, funds, skipped := s.buildRecords(log, entries, scope, importDate, batchID)
	log.Info("Holdings classified", "entries", len(entries), "equity", len(equities), "mutualFunds", len(funds), "skipped", skipped)

	s.deleteScope(ctx, log, StepDeleteEquity, scope.EquityFilter(), s.store.DeleteEquity)
	s.deleteScope(ctx, log, StepDeleteMutualFunds, scope.MutualFundFilter(), s.store.DeleteMutualFunds)

	if len(equities) > 0 {
		if err := s.withTimeout(ctx, func(ctx context.Context) error { return s.store.InsertEquity(ctx, equities) }); err != nil {
			log.Error("Failed to insert equity holdings", "count", len(equities), "error", err)
			return nil, &ImportError{Step: StepInsertEquity, Kind: KindUpstreamUnavailable, Err: err}
		}
	}
	if len(funds) > 0 {
		if err := s.withTimeout(ctx, func(ctx context.Context) error { return s.store.InsertMutualFunds(ctx, funds) }); err != nil {
			log.Error("Failed to insert mutual fund holdings", "count", len(funds), "error", err)
			return nil, &ImportError{Step: StepInsertMutualFunds, Kind: KindUpstreamUnavailable, Err: err}
		}
	}

	if s.invalidator != nil {
		s.invalidator.InvalidateUserCache(scope.UserID)
	}

	result := &models.ImportResult{
		EquityCount:     len(equities),
		MutualFundCount: len(funds),
		Skipped:         skipped,
		BatchID:         batchID,
		ImportDate:      utils.FormatDate(importDate),
		InvestedTotal:   decimal.Zero,
		CurrentTotal:    decimal.Zero,
		CompletedAt:     s.now().UTC(),
	}
	for _, e := range equities {
		result.InvestedTotal = result.InvestedTotal.Add(e.InvestedAmount)
		result.CurrentTotal = result.CurrentTotal.Add(e.CurrentValue)
	}
	for _, f := range funds {
		result.InvestedTotal = result.InvestedTotal.Add(f.InvestedAmount)
		result.CurrentTotal = result.CurrentTotal.Add(f.CurrentValue)
	}

	log.Info("ImportHoldings END", "equity", result.EquityCount, "mutualFunds", result.MutualFundCount,
		"batchID", batchID, "duration", time.Since(startTime))
	return result, nil
}

func (s *importServiceImpl) buildRecords(log *slog.Logger, entries []models.RawHoldingEntry,
	scope models.ImportScope, importDate time.Time, batchID string,
) ([]models.EquityRecord, []models.MutualFundRecord, int) {
	equities := make([]models.EquityRecord, 0)
	funds := make([]models.MutualFundRecord, 0)
	var skipped int
	var errs []error

	for i, entry := range entries {
		c := parsers.Explain(entry)
		h, err := s.processor.Build(entry, c.Kind, importDate)
		if err != nil {
			skipped++
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			log.Warn("Skipping holding entry", "index", i, "kind", c.Kind.String(), "reason", c.Rule, "error", err)
			continue
		}
		switch h.Kind {
		case models.KindEquity:
			equities = append(equities, models.EquityRecord{
				UserID:         scope.UserID,
				MemberID:       scope.EquityMemberID,
				BrokerPlatform: scope.BrokerPlatform,
				ImportBatch:    batchID,
				EquityHolding:  *h.Equity,
			})
		case models.KindMutualFund:
			funds = append(funds, models.MutualFundRecord{
				UserID:            scope.UserID,
				MemberID:          scope.MutualFundMemberID,
				BrokerPlatform:    scope.BrokerPlatform,
				ImportBatch:       batchID,
				MutualFundHolding: *h.MutualFund,
			})
		}
	}
	if len(errs) > 0 {
		log.Debug("Skipped holding entries", "errors", errors.Join(errs...).Error())
	}
	return equities, funds, skipped
}

func (s *importServiceImpl) deleteScope(ctx context.Context, log *slog.Logger, step string,
	filter models.ScopeFilter, del func(context.Context, models.ScopeFilter) (int64, error),
) {
	err := s.withTimeout(ctx, func(ctx context.Context) error {
		_, err := del(ctx, filter)
		return err
	})
	if err != nil {
		log.Warn("Failed to delete previous holdings, continuing", "step", step, "memberID", filter.MemberID, "error", err)
	}
}

func (s *importServiceImpl) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	return fn(ctx)
}
