package parsers

import (
	"strings"

	"github.com/username/brokerbridge/src/models"
)

// mutualFundISINPrefix marks ISINs issued to Indian mutual fund schemes.
const mutualFundISINPrefix = "INF"

var mutualFundTypeValues = map[string]bool{
	"MF":          true,
	"MUTUAL FUND": true,
	"MUTUALFUND":  true,
	"FUND":        true,
}

// Classification is a kind plus the rule that decided it.
type Classification struct {
	Kind models.HoldingKind
	Rule string
}

// Classify decides whether entry is an equity or a mutual fund position.
// See Explain for the rules.
func Classify(entry models.RawHoldingEntry) models.HoldingKind {
	return Explain(entry).Kind
}

// Explain decides whether entry is an equity or a mutual fund position.
// Broker payloads do not tag entries reliably, so the decision is heuristic;
// the first matching rule wins:
//
//  1. an explicit mutual fund type, an affirmative SIP flag, or any
//     fund-only field (fund house, scheme, folio, NAV) -> mutual fund
//  2. a security identifier (tradable symbol, ISIN or company name) and a
//     quantity -> equity, unless the ISIN carries the INF prefix, in which
//     case -> mutual fund
//  3. an INF ISIN without an identifier and quantity -> mutual fund
//  4. anything else -> unrecognized
func Explain(entry models.RawHoldingEntry) Classification {
	if len(entry) == 0 {
		return Classification{models.KindUnrecognized, "empty entry"}
	}

	if isMutualFundType(entry) {
		return Classification{models.KindMutualFund, "explicit mutual fund type"}
	}
	if _, v, ok := Lookup(entry, FieldSIPIndicator); ok && Affirmative(v) {
		return Classification{models.KindMutualFund, "sip indicator"}
	}
	if key, _, ok := Lookup(entry, FieldFundSignal); ok {
		return Classification{models.KindMutualFund, "fund field " + key}
	}

	inf := hasMutualFundISIN(entry)
	if hasSecurityIdentity(entry) && Has(entry, FieldQuantity) {
		if inf {
			return Classification{models.KindMutualFund, "identifier with INF isin"}
		}
		return Classification{models.KindEquity, "identifier and quantity"}
	}

	if inf {
		return Classification{models.KindMutualFund, "INF isin without quantity"}
	}

	return Classification{models.KindUnrecognized, "no identifier/quantity or fund fields"}
}

func hasSecurityIdentity(entry models.RawHoldingEntry) bool {
	return Has(entry, FieldSymbol) || Has(entry, FieldISIN) || Has(entry, FieldCompanyName)
}

func isMutualFundType(entry models.RawHoldingEntry) bool {
	t := Text(entry, FieldAssetType)
	if t == "" {
		return false
	}
	t = strings.ToUpper(strings.NewReplacer("_", " ", "-", " ").Replace(t))
	return mutualFundTypeValues[strings.Join(strings.Fields(t), " ")]
}

func hasMutualFundISIN(entry models.RawHoldingEntry) bool {
	return strings.HasPrefix(strings.ToUpper(Text(entry, FieldISIN)), mutualFundISINPrefix)
}
