package emitter

import (
	"context"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

// Emitter defines the interface for publishing indexer notifications
type Emitter interface {
	// Emit sends a single notification
	Emit(ctx context.Context, n domain.Notification) error

	// Close closes the emitter
	Close() error
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Emit(context.Context, domain.Notification) error { return nil }
func (Nop) Close() error                                    { return nil }
