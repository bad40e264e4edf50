// Package upstream holds the HTTP plumbing shared by the broker clients.
package upstream

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"golang.org/x/net/publicsuffix"

	"github.com/username/brokerbridge/src/logger"
	"github.com/username/brokerbridge/src/parsers"
)

var (
	// ErrUpstreamUnavailable covers broker and storage failures: transport
	// errors, timeouts and non-2xx answers.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrOTPRejected         = errors.New("otp rejected by broker")
)

const (
	UserAgent    = "brokerbridge/1.0"
	maxErrorBody = 512
)

// NewHTTPClient returns a client with a cookie jar, as broker login flows
// rely on session cookies between calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: timeout,
	}
}

// StatusError is a non-2xx broker answer.
type StatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d - %s", e.Op, e.Status, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUpstreamUnavailable }

// Do sends req and returns the decoded JSON body of a 2xx answer. Transport
// failures and other statuses are reported as ErrUpstreamUnavailable.
func Do(client *http.Client, op string, req *http.Request) (any, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", UserAgent)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.L.Warn("Broker call failed", "op", op, "status", resp.StatusCode)
		return nil, &StatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	v, err := parsers.DecodePayloadFrom(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrUpstreamUnavailable, err)
	}
	return v, nil
}

// Lookup evaluates a JSONPath expression against a decoded body.
func Lookup(path string, doc any) (any, error) {
	return jsonpath.Get(path, doc)
}

// String is Lookup for a required, non-empty string value. Wildcard paths
// yielding a single match are unwrapped.
func String(path string, doc any) (string, error) {
	v, err := Lookup(path, doc)
	if err != nil {
		return "", fmt.Errorf("%s missing: %w", path, err)
	}
	if list, ok := v.([]any); ok && len(list) == 1 {
		v = list[0]
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s missing or not a string: %v", path, v)
	}
	return s, nil
}

// OptionalString is String that yields "" instead of an error.
func OptionalString(path string, doc any) string {
	s, _ := String(path, doc)
	return s
}
