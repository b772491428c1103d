// Package common defines shared constants and sentinel errors used across
// the publish3 backend. Callers should use errors.Is to match these values;
// concrete failures wrap them with fmt.Errorf("...: %w", ...).
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Auth errors (invalid or malformed bearer token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrValidation marks malformed client input. Nothing has been written
	// when it is returned.
	ErrValidation = errors.New("validation error")

	// ErrConfiguration marks unusable settings (signing key, missing URLs).
	// Never retried automatically.
	ErrConfiguration = errors.New("configuration error")

	// ErrNetwork marks transport level failures against the ledger or the
	// custodian. The caller may retry the whole request.
	ErrNetwork = errors.New("network error")

	// ErrSigning marks a refusal from the custodial signing service.
	ErrSigning = errors.New("signing error")

	// ErrSerialization marks canonical-encoding or hex decoding failures.
	ErrSerialization = errors.New("serialization error")

	// ErrExecutionFailed is returned when a transaction was committed but the
	// ledger reports it as unsuccessful.
	ErrExecutionFailed = errors.New("transaction execution failed")

	// ErrFinalityTimeout is returned when a submitted transaction did not reach
	// a terminal state in time. It is a network-class error: the transaction
	// may still be committed later.
	ErrFinalityTimeout = errors.New("finality timeout")
)

// IsRetryable reports whether err belongs to the network class.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrFinalityTimeout)
}
