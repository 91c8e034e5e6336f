package emitter

import (
	"context"
	"log/slog"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

// LogSink logs every notification read from ch until ch is closed or ctx
// is done.
func LogSink(ctx context.Context, ch <-chan domain.Notification, log *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ch:
			if !ok {
				return
			}
			log.Info("Notification", "kind", n.Kind, "chain", n.ChainID.Name(), "payload", n.Payload)
		}
	}
}
