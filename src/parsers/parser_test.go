package parsers

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	v, err := DecodePayload([]byte(`{"data":[{"symbol":"TCS","quantity":5,"average_price":3000.10}]}`))
	require.NoError(t, err)

	entries := Normalize(v)
	require.Len(t, entries, 1)
	assert.Equal(t, json.Number("3000.10"), entries[0]["average_price"])

	v, err = DecodePayload([]byte("  \n"))
	assert.NoError(t, err)
	assert.Nil(t, v)

	_, err = DecodePayload([]byte(`{"data": [`))
	assert.ErrorIs(t, err, ErrInvalidPayload)
}
