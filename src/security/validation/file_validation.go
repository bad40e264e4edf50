package validation

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/brokerbridge/src/logger"
)

// AllowedClientContentTypes is a map for quick lookup of allowed client-declared MIME types
// for holdings snapshot uploads.
var AllowedClientContentTypes = map[string]bool{
	"application/json":         true,
	"text/json":                true,
	"text/plain":               true, // curl and some browsers send this for .json
	"application/octet-stream": true, // Fallback, but be more cautious
	"text/csv":                 false,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": false,
}

// ValidateClientContentType checks the Content-Type header provided by the client.
func ValidateClientContentType(contentType string) error {
	ct := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if allowed, exists := AllowedClientContentTypes[ct]; !exists || !allowed {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType)
		return fmt.Errorf("client-declared file type '%s' is not allowed for holdings upload", contentType)
	}
	return nil
}

// ValidateFileContentByMagicBytes checks the actual file content signature (magic bytes).
// It returns the detected content type and an error if validation fails.
func ValidateFileContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 512) // Read first 512 bytes for MIME detection
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	// Reset the read pointer so the decoder sees the whole file.
	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	detectedContentType := http.DetectContentType(buffer[:n])
	detectedContentType = strings.ToLower(strings.Split(detectedContentType, ";")[0])

	// JSON has no signature of its own; it sniffs as text/plain.
	allowedDetectedTypes := map[string]bool{
		"text/plain":               true,
		"application/json":         true,
		"application/octet-stream": true,
	}

	if !allowedDetectedTypes[detectedContentType] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("detected file content type '%s' is not consistent with a JSON file", detectedContentType)
	}

	trimmed := bytes.TrimLeft(buffer[:n], " \t\r\n\xef\xbb\xbf")
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		logger.L.Warn("Upload does not start like a JSON document", "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("file does not look like a JSON holdings snapshot")
	}

	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detectedContentType)
	return detectedContentType, nil
}
