package common

import (
	"github.com/ValentinKolb/dRPC/lib/promise"
	"github.com/pkg/errors"
)

var (
	// ErrTransactionFailure is the uniform remote failure. Every failed two-way call that did not
	// time out reports an error for which errors.Is(err, ErrTransactionFailure) holds.
	ErrTransactionFailure = errors.New("binder transaction failure")

	// ErrTimeout is reported by two-way calls whose reply did not arrive in time
	ErrTimeout = promise.ErrTimeout

	// ErrInvalidURI is returned for endpoint or object URIs that cannot be parsed
	ErrInvalidURI = errors.New("invalid uri")

	// ErrUnknownNode is returned when a node id has no configured endpoint
	ErrUnknownNode = errors.New("unknown node")
)

// TransactionFailure wraps cause so that it is reported as ErrTransactionFailure to callers
func TransactionFailure(cause error, format string, args ...interface{}) error {
	if cause == nil {
		return errors.Wrapf(ErrTransactionFailure, format, args...)
	}
	return &transactionError{cause: errors.Wrapf(cause, format, args...)}
}

// transactionError keeps the local cause for logging while matching ErrTransactionFailure
type transactionError struct {
	cause error
}

func (e *transactionError) Error() string {
	return ErrTransactionFailure.Error() + ": " + e.cause.Error()
}

func (e *transactionError) Is(target error) bool {
	return target == ErrTransactionFailure
}

func (e *transactionError) Unwrap() error {
	return e.cause
}
