package parsers

import (
	"fmt"

	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/models"
)

// wrapperKeys are the envelope fields brokers put the holdings list under,
// in lookup order.
var wrapperKeys = []string{"data", "holdings"}

// maxNestingDepth bounds recursion so hostile payloads cannot blow the stack.
const maxNestingDepth = 32

// Normalize flattens a raw holdings payload into an ordered list of entries.
//
// Accepted shapes are an envelope mapping ({"data": ...} or {"holdings": ...}),
// a flat list of mappings, or lists nested to any depth. Nested lists are
// flattened depth-first in encounter order. Elements that are neither a
// mapping nor a list are dropped with a warning. Normalize never fails: the
// worst case is an empty, non-nil slice.
func Normalize(raw any) []models.RawHoldingEntry {
	n := normalizer{out: make([]models.RawHoldingEntry, 0)}
	n.root(raw, 0)
	return n.out
}

type normalizer struct {
	out []models.RawHoldingEntry
}

func (n *normalizer) root(raw any, depth int) {
	if depth > maxNestingDepth {
		logger.L.Warn("Holdings payload nested too deeply, ignoring remainder", "depth", depth)
		return
	}
	switch v := raw.(type) {
	case nil:
		return
	case map[string]any:
		n.envelope(v, depth)
	case models.RawHoldingEntry:
		n.envelope(v, depth)
	default:
		if !n.sequence(raw, depth) {
			logger.L.Warn("Unsupported holdings payload shape, returning no entries", "type", fmt.Sprintf("%T", raw))
		}
	}
}

// envelope descends into the first wrapper key holding a list or mapping.
func (n *normalizer) envelope(m map[string]any, depth int) {
	for _, key := range wrapperKeys {
		inner, ok := m[key]
		if !ok || inner == nil {
			continue
		}
		switch inner.(type) {
		case map[string]any, models.RawHoldingEntry, []any, []map[string]any, []models.RawHoldingEntry:
			n.root(inner, depth+1)
			return
		}
	}
	if len(m) > 0 {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		logger.L.Warn("Holdings mapping has no recognizable list field, returning no entries", "keys", keys)
	}
}

// sequence appends the entries of a list value. It reports false when raw is
// not a list at all.
func (n *normalizer) sequence(raw any, depth int) bool {
	switch v := raw.(type) {
	case []any:
		for i, item := range v {
			n.item(item, depth, i)
		}
	case []map[string]any:
		for _, item := range v {
			if item != nil {
				n.out = append(n.out, models.RawHoldingEntry(item))
			}
		}
	case []models.RawHoldingEntry:
		for _, item := range v {
			if item != nil {
				n.out = append(n.out, item)
			}
		}
	default:
		return false
	}
	return true
}

func (n *normalizer) item(item any, depth, index int) {
	switch v := item.(type) {
	case map[string]any:
		n.out = append(n.out, models.RawHoldingEntry(v))
	case models.RawHoldingEntry:
		n.out = append(n.out, v)
	default:
		if depth+1 > maxNestingDepth {
			logger.L.Warn("Holdings payload nested too deeply, skipping element", "depth", depth+1, "index", index)
			return
		}
		if !n.sequence(item, depth+1) {
			logger.L.Warn("Skipping holdings element that is neither a mapping nor a list",
				"type", fmt.Sprintf("%T", item), "depth", depth, "index", index)
		}
	}
}
