package recovery

import (
	"context"
	"errors"
)

// FailureCategory groups errors by how the indexer reacts to them.
type FailureCategory int

const (
	// CategoryTransient failures are retried without losing data: RPC
	// timeouts, unavailable receipts, persistence hiccups.
	CategoryTransient FailureCategory = iota

	// CategoryValidation failures reject one document. The event is
	// consumed, since retrying would reproduce the same rejection.
	CategoryValidation

	// CategoryFatal failures stop the indexer of one chain.
	CategoryFatal
)

func (c FailureCategory) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryValidation:
		return "validation"
	case CategoryFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var (
	// ErrValidation is wrapped by every document rejection.
	ErrValidation = errors.New("validation failed")

	// ErrFatal is wrapped by chain configuration errors.
	ErrFatal = errors.New("fatal chain error")
)

// Classifier maps an error to a failure category.
type Classifier func(err error) FailureCategory

// Classify is the default Classifier.
func Classify(err error) FailureCategory {
	switch {
	case err == nil:
		return CategoryTransient
	case errors.Is(err, ErrValidation):
		return CategoryValidation
	case errors.Is(err, ErrFatal), errors.Is(err, context.Canceled):
		return CategoryFatal
	default:
		return CategoryTransient
	}
}
