package validation

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateClientContentType(t *testing.T) {
	assert.NoError(t, ValidateClientContentType("application/json"))
	assert.NoError(t, ValidateClientContentType("Application/JSON; charset=utf-8"))
	assert.Error(t, ValidateClientContentType("text/csv"))
	assert.Error(t, ValidateClientContentType("image/png"))
}

func TestValidateFileContentByMagicBytes(t *testing.T) {
	f := bytes.NewReader([]byte("\n  {\"data\": []}"))
	ct, err := ValidateFileContentByMagicBytes(f)
	require.NoError(t, err)
	assert.Equal(t, "text/plain", ct)

	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "\n  {\"data\": []}", string(rest), "reader must be rewound")

	_, err = ValidateFileContentByMagicBytes(bytes.NewReader([]byte("\x89PNG\r\n\x1a\n0000")))
	assert.Error(t, err)

	_, err = ValidateFileContentByMagicBytes(bytes.NewReader([]byte("symbol,quantity\nTCS,5\n")))
	assert.Error(t, err)

	_, err = ValidateFileContentByMagicBytes(nil)
	assert.Error(t, err)
}

func TestSanitizers(t *testing.T) {
	assert.Equal(t, "abc", StripUnprintable("a\x00b\x1bc"))
	assert.Equal(t, "user-1", CleanIdentifier("  user-1\u200b "))
	assert.Equal(t, "****5678", MaskSecret("12345678"))
	assert.Equal(t, "***", MaskSecret("abc"))
}
