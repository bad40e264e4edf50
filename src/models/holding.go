package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// RawHoldingEntry is one holding as received from a broker. There is no fixed
// key set; the same concept can appear under several names.
type RawHoldingEntry map[string]any

// HoldingKind is the classification of a raw entry.
type HoldingKind int

const (
	KindUnrecognized HoldingKind = iota
	KindEquity
	KindMutualFund
)

func (k HoldingKind) String() string {
	switch k {
	case KindEquity:
		return "equity"
	case KindMutualFund:
		return "mutualFund"
	default:
		return "unrecognized"
	}
}

// EquityHolding is a normalized stock position.
type EquityHolding struct {
	Symbol         string          `json:"symbol"`
	CompanyName    string          `json:"company_name"`
	ISIN           string          `json:"isin,omitempty"`
	Sector         string          `json:"sector,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	AveragePrice   decimal.Decimal `json:"average_price"`
	CurrentPrice   decimal.Decimal `json:"current_price"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	CurrentValue   decimal.Decimal `json:"current_value"`
	ImportDate     time.Time       `json:"import_date"`
	Raw            json.RawMessage `json:"raw,omitempty"` // source entry, kept for audit
}

// MutualFundHolding is a normalized mutual fund position.
type MutualFundHolding struct {
	SchemeName     string          `json:"scheme_name"`
	SchemeCode     string          `json:"scheme_code,omitempty"`
	FolioNumber    string          `json:"folio_number,omitempty"`
	FundHouse      string          `json:"fund_house,omitempty"`
	Units          decimal.Decimal `json:"units"`
	AverageNAV     decimal.Decimal `json:"average_nav"`
	CurrentNAV     decimal.Decimal `json:"current_nav"`
	InvestedAmount decimal.Decimal `json:"invested_amount"`
	CurrentValue   decimal.Decimal `json:"current_value"`
	ImportDate     time.Time       `json:"import_date"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// CanonicalHolding is a tagged union: exactly one of Equity or MutualFund is
// set, matching Kind.
type CanonicalHolding struct {
	Kind       HoldingKind
	Equity     *EquityHolding
	MutualFund *MutualFundHolding
}

// NewEquity wraps h as a canonical holding.
func NewEquity(h EquityHolding) CanonicalHolding {
	return CanonicalHolding{Kind: KindEquity, Equity: &h}
}

// NewMutualFund wraps h as a canonical holding.
func NewMutualFund(h MutualFundHolding) CanonicalHolding {
	return CanonicalHolding{Kind: KindMutualFund, MutualFund: &h}
}

// EquityRecord is an equity holding bound to its import scope, as stored.
type EquityRecord struct {
	ID             int64  `json:"id,omitempty"`
	UserID         string `json:"user_id"`
	MemberID       string `json:"member_id"`
	BrokerPlatform string `json:"broker_platform"`
	ImportBatch    string `json:"import_batch"`
	EquityHolding
}

// MutualFundRecord is a mutual fund holding bound to its import scope, as stored.
type MutualFundRecord struct {
	ID             int64  `json:"id,omitempty"`
	UserID         string `json:"user_id"`
	MemberID       string `json:"member_id"`
	BrokerPlatform string `json:"broker_platform"`
	ImportBatch    string `json:"import_batch"`
	MutualFundHolding
}
