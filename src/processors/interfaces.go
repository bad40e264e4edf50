package processors

import (
	"time"

	"github.com/username/brokerbridge/src/models"
)

// HoldingProcessor turns one classified raw entry into a canonical holding.
type HoldingProcessor interface {
	Build(entry models.RawHoldingEntry, kind models.HoldingKind, importDate time.Time) (models.CanonicalHolding, error)
}
