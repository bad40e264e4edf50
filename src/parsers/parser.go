package parsers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrInvalidPayload is returned when a holdings body is not valid JSON.
var ErrInvalidPayload = errors.New("invalid holdings payload")

// DecodePayload decodes a raw broker response body. Numbers are kept as
// json.Number so amounts survive without float rounding. An empty body
// decodes to nil.
func DecodePayload(body []byte) (any, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	return DecodePayloadFrom(bytes.NewReader(body))
}

// DecodePayloadFrom is DecodePayload over a reader.
func DecodePayloadFrom(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return v, nil
}
