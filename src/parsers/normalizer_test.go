package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/brokerbridge/src/models"
)

func symbols(entries []models.RawHoldingEntry) []any {
	out := make([]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, e["symbol"])
	}
	return out
}

func TestNormalize_ShapesAreEquivalent(t *testing.T) {
	a := map[string]any{"symbol": "A"}
	b := map[string]any{"symbol": "B"}
	c := map[string]any{"symbol": "C"}

	shapes := map[string]any{
		"flat list":            []any{a, b, c},
		"data envelope":        map[string]any{"data": []any{a, b, c}},
		"holdings envelope":    map[string]any{"holdings": []any{a, b, c}},
		"nested lists":         []any{[]any{a, b}, []any{c}},
		"enveloped nested":     map[string]any{"data": []any{[]any{a}, []any{b, c}}},
		"deeply nested":        []any{[]any{[]any{a}}, b, []any{[]any{[]any{c}}}},
		"envelope in envelope": map[string]any{"data": map[string]any{"holdings": []any{a, b, c}}},
		"typed slice":          []map[string]any{a, b, c},
	}

	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			got := Normalize(raw)
			assert.Equal(t, []any{"A", "B", "C"}, symbols(got))
		})
	}
}

func TestNormalize_EmptyInputs(t *testing.T) {
	for name, raw := range map[string]any{
		"nil":           nil,
		"empty list":    []any{},
		"empty mapping": map[string]any{},
		"empty data":    map[string]any{"data": []any{}},
		"scalar":        "holdings",
		"number":        42.0,
	} {
		t.Run(name, func(t *testing.T) {
			got := Normalize(raw)
			require.NotNil(t, got)
			assert.Empty(t, got)
		})
	}
}

func TestNormalize_DataWinsOverHoldings(t *testing.T) {
	raw := map[string]any{
		"data":     []any{map[string]any{"symbol": "FROM_DATA"}},
		"holdings": []any{map[string]any{"symbol": "FROM_HOLDINGS"}},
	}
	assert.Equal(t, []any{"FROM_DATA"}, symbols(Normalize(raw)))
}

func TestNormalize_FallsThroughNonListWrapper(t *testing.T) {
	raw := map[string]any{
		"data":     "not a list",
		"holdings": []any{map[string]any{"symbol": "X"}},
	}
	assert.Equal(t, []any{"X"}, symbols(Normalize(raw)))
}

func TestNormalize_MappingWithoutWrapperIsEmpty(t *testing.T) {
	got := Normalize(map[string]any{"symbol": "TCS", "quantity": 1})
	assert.Empty(t, got)
}

func TestNormalize_SkipsScalarsAtAnyDepth(t *testing.T) {
	raw := []any{
		"junk",
		map[string]any{"symbol": "A"},
		[]any{1.5, nil, map[string]any{"symbol": "B"}, []any{true, map[string]any{"symbol": "C"}}},
	}
	assert.Equal(t, []any{"A", "B", "C"}, symbols(Normalize(raw)))
}

func TestNormalize_DepthLimit(t *testing.T) {
	var raw any = []any{map[string]any{"symbol": "DEEP"}}
	for i := 0; i < maxNestingDepth+5; i++ {
		raw = []any{raw}
	}
	raw = []any{map[string]any{"symbol": "TOP"}, raw}

	got := Normalize(raw)
	assert.Equal(t, []any{"TOP"}, symbols(got))
}
