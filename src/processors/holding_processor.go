package processors

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/models"
	"github.com/username/brokerbridge/src/parsers"
)

var (
	ErrUnrecognizedHolding = errors.New("holding is neither equity nor mutual fund")
	ErrMissingIdentity     = errors.New("holding has no symbol, isin or name")
)

// holdingProcessorImpl implements the HoldingProcessor interface.
type holdingProcessorImpl struct {
	includeRaw bool
}

// NewHoldingProcessor creates a HoldingProcessor. With includeRaw the source
// entry is kept on the record as JSON.
func NewHoldingProcessor(includeRaw bool) HoldingProcessor {
	return &holdingProcessorImpl{includeRaw: includeRaw}
}

// ImportDay truncates t to its UTC calendar day.
func ImportDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (p *holdingProcessorImpl) Build(entry models.RawHoldingEntry, kind models.HoldingKind, importDate time.Time) (models.CanonicalHolding, error) {
	day := ImportDay(importDate)
	switch kind {
	case models.KindEquity:
		h, err := p.buildEquity(entry, day)
		if err != nil {
			return models.CanonicalHolding{}, err
		}
		return models.NewEquity(h), nil
	case models.KindMutualFund:
		h, err := p.buildMutualFund(entry, day)
		if err != nil {
			return models.CanonicalHolding{}, err
		}
		return models.NewMutualFund(h), nil
	default:
		return models.CanonicalHolding{}, ErrUnrecognizedHolding
	}
}

func (p *holdingProcessorImpl) buildEquity(entry models.RawHoldingEntry, day time.Time) (models.EquityHolding, error) {
	isin := parsers.Text(entry, parsers.FieldISIN)
	company := parsers.Text(entry, parsers.FieldCompanyName)

	// HDFC rows often carry only an ISIN and a company name
	symbol := parsers.Text(entry, parsers.FieldSymbol)
	if symbol == "" {
		symbol = isin
	}
	if symbol == "" {
		symbol = company
	}
	if symbol == "" {
		return models.EquityHolding{}, ErrMissingIdentity
	}
	if company == "" {
		company = symbol
	}

	a := amounts{entry: entry, label: symbol}
	qty := a.number(parsers.FieldQuantity)
	current := a.number(parsers.FieldCurrentPrice)
	avg, avgFound := a.optional(parsers.FieldAveragePrice)
	if !avgFound {
		avg = current
	}

	h := models.EquityHolding{
		Symbol:         symbol,
		CompanyName:    company,
		ISIN:           isin,
		Sector:         parsers.Text(entry, parsers.FieldSector),
		Quantity:       qty,
		AveragePrice:   avg,
		CurrentPrice:   current,
		InvestedAmount: a.invested(qty, avg),
		CurrentValue:   qty.Mul(current),
		ImportDate:     day,
	}
	if p.includeRaw {
		h.Raw = rawCopy(entry)
	}
	return h, nil
}

func (p *holdingProcessorImpl) buildMutualFund(entry models.RawHoldingEntry, day time.Time) (models.MutualFundHolding, error) {
	name := parsers.Text(entry, parsers.FieldSchemeName)
	if name == "" {
		name = parsers.Text(entry, parsers.FieldSymbol)
	}
	if name == "" {
		name = parsers.Text(entry, parsers.FieldISIN)
	}
	if name == "" {
		return models.MutualFundHolding{}, ErrMissingIdentity
	}

	a := amounts{entry: entry, label: name}
	units := a.number(parsers.FieldQuantity)
	nav := a.number(parsers.FieldCurrentNAV)
	avg, avgFound := a.optional(parsers.FieldAveragePrice)
	if !avgFound {
		avg = nav
	}

	h := models.MutualFundHolding{
		SchemeName:     name,
		SchemeCode:     parsers.Text(entry, parsers.FieldSchemeCode),
		FolioNumber:    parsers.Text(entry, parsers.FieldFolioNumber),
		FundHouse:      parsers.Text(entry, parsers.FieldFundHouse),
		Units:          units,
		AverageNAV:     avg,
		CurrentNAV:     nav,
		InvestedAmount: a.invested(units, avg),
		CurrentValue:   units.Mul(nav),
		ImportDate:     day,
	}
	if p.includeRaw {
		h.Raw = rawCopy(entry)
	}
	return h, nil
}

// amounts reads numeric fields of one entry. Unparsable values become zero and
// negative values are clamped to zero; both are logged.
type amounts struct {
	entry models.RawHoldingEntry
	label string
}

func (a amounts) number(f parsers.Field) decimal.Decimal {
	d, _ := a.optional(f)
	return d
}

// optional is number plus whether any key of f was present.
func (a amounts) optional(f parsers.Field) (decimal.Decimal, bool) {
	d, found, err := parsers.Number(a.entry, f)
	if err != nil {
		logger.L.Warn("Unparsable numeric field, using zero", "holding", a.label, "error", err)
		return decimal.Zero, found
	}
	if d.IsNegative() {
		logger.L.Warn("Negative numeric field clamped to zero", "holding", a.label, "field", f.Name, "value", d.String())
		return decimal.Zero, found
	}
	return d, found
}

// invested prefers a non-zero explicit investment value over qty × avg.
func (a amounts) invested(qty, avg decimal.Decimal) decimal.Decimal {
	if v := a.number(parsers.FieldInvested); !v.IsZero() {
		return v
	}
	return qty.Mul(avg)
}

func rawCopy(entry models.RawHoldingEntry) json.RawMessage {
	b, err := json.Marshal(entry)
	if err != nil {
		logger.L.Debug("Could not keep raw holding copy", "error", err)
		return nil
	}
	return b
}
