package models

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ImportScope identifies which previously imported records a new import supersedes.
type ImportScope struct {
	UserID             string `json:"user_id"`
	BrokerPlatform     string `json:"broker_platform"`
	EquityMemberID     string `json:"equity_member_id"`
	MutualFundMemberID string `json:"mutual_fund_member_id"`
}

// Validate reports every missing scope field at once.
func (s ImportScope) Validate() error {
	var errs []error
	if strings.TrimSpace(s.UserID) == "" {
		errs = append(errs, errors.New("user id is required"))
	}
	if strings.TrimSpace(s.BrokerPlatform) == "" {
		errs = append(errs, errors.New("broker platform is required"))
	}
	if strings.TrimSpace(s.EquityMemberID) == "" {
		errs = append(errs, errors.New("equity member id is required"))
	}
	if strings.TrimSpace(s.MutualFundMemberID) == "" {
		errs = append(errs, errors.New("mutual fund member id is required"))
	}
	return errors.Join(errs...)
}

// EquityFilter returns the delete filter for the equity half of the scope.
func (s ImportScope) EquityFilter() ScopeFilter {
	return ScopeFilter{UserID: s.UserID, BrokerPlatform: s.BrokerPlatform, MemberID: s.EquityMemberID}
}

// MutualFundFilter returns the delete filter for the mutual fund half of the scope.
func (s ImportScope) MutualFundFilter() ScopeFilter {
	return ScopeFilter{UserID: s.UserID, BrokerPlatform: s.BrokerPlatform, MemberID: s.MutualFundMemberID}
}

// ScopeFilter selects stored records of one category.
type ScopeFilter struct {
	UserID         string
	BrokerPlatform string
	MemberID       string
}

// ImportResult is the outcome of one import. Counts are the number of records inserted.
type ImportResult struct {
	EquityCount     int             `json:"equity"`
	MutualFundCount int             `json:"mutualFunds"`
	Skipped         int             `json:"skipped"`
	BatchID         string          `json:"batchId"`
	ImportDate      string          `json:"importDate"`
	InvestedTotal   decimal.Decimal `json:"investedTotal"`
	CurrentTotal    decimal.Decimal `json:"currentTotal"`
	CompletedAt     time.Time       `json:"completedAt"`
}
