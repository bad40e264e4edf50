package parsers

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/brokerbridge/src/models"
	"github.com/username/brokerbridge/src/security/validation"
)

// Field is one logical concept and the source keys that may carry it, in
// priority order. The first key with a present value wins.
type Field struct {
	Name string
	Keys []string
}

var (
	FieldSymbol       = Field{"symbol", []string{"symbol", "tradingsymbol", "trading_symbol", "security_id", "ticker"}}
	FieldCompanyName  = Field{"company_name", []string{"company_name", "companyname", "company", "name"}}
	FieldISIN         = Field{"isin", []string{"isin", "isin_code"}}
	FieldSector       = Field{"sector", []string{"sector_name", "sector", "industry"}}
	FieldQuantity     = Field{"quantity", []string{"quantity", "units", "qty"}}
	FieldAveragePrice = Field{"average_price", []string{"average_price", "averageprice", "avg_price", "averagenav", "average_nav", "avg_nav"}}
	FieldCurrentPrice = Field{"current_price", []string{"close_price", "closeprice", "last_price", "lastprice", "ltp", "current_price"}}
	FieldCurrentNAV   = Field{"current_nav", []string{"nav", "current_nav", "close_price", "closeprice", "last_price", "lastprice"}}
	FieldInvested     = Field{"invested_amount", []string{"investment_value", "invested_amount", "invested_value", "investedvalue"}}

	FieldSchemeName  = Field{"scheme_name", []string{"scheme_name", "schemename", "fund", "fund_name", "company_name", "name"}}
	FieldSchemeCode  = Field{"scheme_code", []string{"scheme_code", "schemecode", "amfi_code"}}
	FieldFolioNumber = Field{"folio_number", []string{"folio_number", "folionumber", "folio", "folio_no"}}
	FieldFundHouse   = Field{"fund_house", []string{"fund_house", "fundhouse", "amc", "amc_name"}}

	FieldAssetType    = Field{"asset_type", []string{"asset_class", "asset_type", "instrument_type", "holding_type", "type"}}
	FieldSIPIndicator = Field{"sip_indicator", []string{"sip_indicator", "sip", "is_sip"}}

	// FieldFundSignal holds keys that only ever appear on mutual fund entries.
	// Generic names (company_name, name) are deliberately absent.
	FieldFundSignal = Field{"fund_signal", []string{
		"fund_house", "fundhouse", "amc", "amc_name",
		"scheme_name", "schemename", "fund", "fund_name",
		"scheme_code", "schemecode", "amfi_code",
		"folio_number", "folionumber", "folio", "folio_no",
		"nav", "current_nav", "averagenav", "average_nav", "avg_nav",
	}}
)

// ErrNotNumeric is returned by Number when a present value cannot be read as a decimal.
var ErrNotNumeric = errors.New("value is not numeric")

// Lookup returns the first key of f that carries a present value. Keys are
// matched exactly first, then case-insensitively. Among case variants of one
// key the lexically smallest entry key wins.
func Lookup(entry models.RawHoldingEntry, f Field) (key string, value any, ok bool) {
	var sorted []string
	for _, k := range f.Keys {
		if v, found := entry[k]; found && isPresent(v) {
			return k, v, true
		}
		if sorted == nil {
			sorted = slices.Sorted(maps.Keys(entry))
		}
		for _, ek := range sorted {
			if v := entry[ek]; strings.EqualFold(ek, k) && isPresent(v) {
				return ek, v, true
			}
		}
	}
	return "", nil, false
}

// Has reports whether any key of f carries a present value.
func Has(entry models.RawHoldingEntry, f Field) bool {
	_, _, ok := Lookup(entry, f)
	return ok
}

// Text returns the first present value of f as a cleaned string, or "".
func Text(entry models.RawHoldingEntry, f Field) string {
	_, v, ok := Lookup(entry, f)
	if !ok {
		return ""
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool, map[string]any, []any:
		return ""
	default:
		s = fmt.Sprint(t)
	}
	return strings.TrimSpace(validation.StripUnprintable(s))
}

// Number returns the first present value of f as a decimal. found is false
// when no key is present; err is ErrNotNumeric when the value is present but
// unreadable. The decimal is zero in both cases.
func Number(entry models.RawHoldingEntry, f Field) (d decimal.Decimal, found bool, err error) {
	key, v, ok := Lookup(entry, f)
	if !ok {
		return decimal.Zero, false, nil
	}
	d, ok = ToDecimal(v)
	if !ok {
		return decimal.Zero, true, fmt.Errorf("%s (%s=%v): %w", f.Name, key, v, ErrNotNumeric)
	}
	return d, true, nil
}

// ToDecimal converts JSON-ish scalars to a decimal. Strings may carry
// thousands separators and a rupee prefix.
func ToDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case decimal.Decimal:
		return t, true
	case json.Number:
		return parseDecimalString(t.String())
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case float32:
		f := float64(t)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt32(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case string:
		return parseDecimalString(t)
	default:
		return decimal.Zero, false
	}
}

var numericNoise = strings.NewReplacer(",", "", "₹", "", "Rs.", "", "INR", "", " ", "", "\u00a0", "")

func parseDecimalString(s string) (decimal.Decimal, bool) {
	s = numericNoise.Replace(strings.TrimSpace(s))
	if s == "" || s == "-" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// Affirmative reports whether v is a yes-like flag value (Y, YES, TRUE, 1).
func Affirmative(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		switch strings.ToUpper(strings.TrimSpace(t)) {
		case "Y", "YES", "TRUE", "1":
			return true
		}
	case json.Number, float64, int, int64:
		d, ok := ToDecimal(t)
		return ok && d.Equal(decimal.NewFromInt(1))
	}
	return false
}

func isPresent(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	}
	return true
}
