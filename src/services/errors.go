package services

import (
	"errors"
	"fmt"

	"github.com/username/brokerbridge/src/brokers"
	"github.com/username/brokerbridge/src/config"
	"github.com/username/brokerbridge/src/parsers"
	"github.com/username/brokerbridge/src/processors"
)

var (
	ErrUpstreamUnavailable = brokers.ErrUpstreamUnavailable
	ErrOTPRejected         = brokers.ErrOTPRejected
	ErrUnknownBroker       = brokers.ErrUnknownBroker
	ErrInvalidPayload      = parsers.ErrInvalidPayload

	ErrInvalidScope    = errors.New("invalid import scope")
	ErrLoginNotFound   = errors.New("login not found or expired")
	ErrNotConnected    = errors.New("no broker session, log in first")
	ErrUnsupportedFlow = errors.New("broker does not support this login flow")
)

// ErrorKind is the stable, client facing name of a failure class.
type ErrorKind string

const (
	KindUpstreamUnavailable   ErrorKind = "upstream_unavailable"
	KindMalformedPayloadEntry ErrorKind = "malformed_payload_entry"
	KindInvalidScope          ErrorKind = "invalid_scope"
	KindInvalidPayload        ErrorKind = "invalid_payload"
	KindLoginNotFound         ErrorKind = "login_not_found"
	KindOTPRejected           ErrorKind = "otp_rejected"
	KindUnknownBroker         ErrorKind = "unknown_broker"
	KindNotConnected          ErrorKind = "not_connected"
	KindUnsupported           ErrorKind = "unsupported"
	KindInternal              ErrorKind = "internal"
)

// ImportError is a failed import step.
type ImportError struct {
	Step string
	Kind ErrorKind
	Err  error
}

func (e *ImportError) Error() string {
	return fmt.Sprintf("import step %s failed (%s): %v", e.Step, e.Kind, e.Err)
}

func (e *ImportError) Unwrap() error { return e.Err }

// Is matches ErrUpstreamUnavailable by kind.
func (e *ImportError) Is(target error) bool {
	return target == ErrUpstreamUnavailable && e.Kind == KindUpstreamUnavailable
}

// KindOf classifies err for API responses.
func KindOf(err error) ErrorKind {
	var ie *ImportError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ie):
		return ie.Kind
	case errors.Is(err, ErrInvalidScope):
		return KindInvalidScope
	case errors.Is(err, ErrInvalidPayload):
		return KindInvalidPayload
	case errors.Is(err, ErrLoginNotFound):
		return KindLoginNotFound
	case errors.Is(err, ErrOTPRejected):
		return KindOTPRejected
	case errors.Is(err, ErrUnknownBroker), errors.Is(err, config.ErrUnknownBrokerMapping):
		return KindUnknownBroker
	case errors.Is(err, ErrNotConnected):
		return KindNotConnected
	case errors.Is(err, ErrUnsupportedFlow):
		return KindUnsupported
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	case errors.Is(err, processors.ErrUnrecognizedHolding), errors.Is(err, processors.ErrMissingIdentity):
		return KindMalformedPayloadEntry
	default:
		return KindInternal
	}
}
