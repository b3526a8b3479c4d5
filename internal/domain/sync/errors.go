package sync

import (
	"errors"
	"fmt"
)

var (
	// Upstream client errors
	ErrUpstreamUnavailable = errors.New("sync: upstream temporarily unavailable")
	ErrUpstreamRateLimited = errors.New("sync: upstream rate limited")
	ErrUnauthorized        = errors.New("sync: upstream authentication failed")
	ErrNotFound            = errors.New("sync: upstream resource not found")
	ErrInvalidResponse     = errors.New("sync: invalid upstream response")

	// Tenant configuration errors
	ErrTenantDisabled      = errors.New("sync: tenant sync disabled")
	ErrMissingCredentials  = errors.New("sync: missing upstream credentials")
	ErrInvalidTenantConfig = errors.New("sync: invalid tenant sync config")

	// Store errors
	ErrRawRecordNotFound = errors.New("sync: raw record not found")
	ErrLogEntryNotFound  = errors.New("sync: execution log entry not found")
	ErrTerminalState     = errors.New("sync: execution log entry already terminal")

	// Run errors
	ErrRunCancelled     = errors.New("sync: run cancelled")
	ErrOutsideWindow    = errors.New("sync: outside business hours window")
	ErrRetriesExhausted = errors.New("sync: retry budget exhausted")
	ErrChildEntry       = errors.New("sync: child step entries are retried through their parent run")
)

// ErrorClass categorizes errors for retry policy decisions.
type ErrorClass string

const (
	// ErrorClassTransient covers timeouts, 429s and 5xx responses; retried with backoff.
	ErrorClassTransient ErrorClass = "TRANSIENT"
	// ErrorClassAuth covers 401/403 and missing credentials; never retried.
	ErrorClassAuth ErrorClass = "AUTH"
	// ErrorClassValidation covers malformed raw payloads; isolated per record.
	ErrorClassValidation ErrorClass = "VALIDATION"
	// ErrorClassIntegrity covers uniqueness/reference violations on normalized writes.
	ErrorClassIntegrity ErrorClass = "INTEGRITY"
	// ErrorClassUnknown is the fallback; treated as transient for records, fatal for runs.
	ErrorClassUnknown ErrorClass = "UNKNOWN"
)

// Classify maps an error to its class for retry and aggregation decisions.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ErrorClassUnknown
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrMissingCredentials):
		return ErrorClassAuth
	case errors.Is(err, ErrUpstreamRateLimited), errors.Is(err, ErrUpstreamUnavailable):
		return ErrorClassTransient
	default:
		var ve *ValidationError
		if errors.As(err, &ve) {
			return ErrorClassValidation
		}
		var ie *IntegrityError
		if errors.As(err, &ie) {
			return ErrorClassIntegrity
		}
		return ErrorClassUnknown
	}
}

// Retryable returns true if the error class allows automatic retry.
func (c ErrorClass) Retryable() bool {
	return c == ErrorClassTransient || c == ErrorClassUnknown
}

// ValidationError reports a malformed raw payload. It carries the offending
// record's external id so batch processing can isolate the failure.
type ValidationError struct {
	ExternalID string
	Field      string
	Reason     string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sync: validation failed for %q: %s %s", e.ExternalID, e.Field, e.Reason)
}

// IntegrityError reports a uniqueness or reference violation on a normalized
// write, tagged with the offending external id.
type IntegrityError struct {
	ExternalID string
	Cause      error
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("sync: integrity violation for %q: %v", e.ExternalID, e.Cause)
}

func (e *IntegrityError) Unwrap() error {
	return e.Cause
}
