package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCapabilityUnavailable means the device cannot provide its position.
	ErrCapabilityUnavailable = errors.New("geolocation capability unavailable")

	// ErrStaleResponse marks a response discarded because a newer request of
	// the same type was issued while it was in flight.
	ErrStaleResponse = errors.New("response superseded by a newer request")
)

// TransportError wraps a network failure or an undecodable response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ServiceError is a well-formed response whose status is not "success".
// Message is empty when the service gave no reason.
type ServiceError struct {
	Op         string
	Status     string
	Message    string
	StatusCode int
}

func (e *ServiceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: service returned status %q", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: service returned status %q: %s", e.Op, e.Status, e.Message)
}

// ValidationError rejects user input before any request is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ServiceMessage returns the service-provided message carried by err, if any.
func ServiceMessage(err error) (string, bool) {
	var se *ServiceError
	if errors.As(err, &se) && strings.TrimSpace(se.Message) != "" {
		return se.Message, true
	}
	return "", false
}

// UserMessage returns the service-provided message for a ServiceError, or fallback.
func UserMessage(err error, fallback string) string {
	if msg, ok := ServiceMessage(err); ok {
		return msg
	}
	return fallback
}

// IsTransport reports whether err is a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
