package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
)

// Registry dispatches events to the processor of their kind.
type Registry struct {
	chainID    domain.ChainID
	processors map[domain.EventKind]Processor
	log        *slog.Logger
}

// NewRegistry builds the processor table of one chain.
func NewRegistry(deps Deps) *Registry {
	b := newBase(deps)

	metadata := &MetadataProcessor{base: b}
	orders := &OrderProcessor{base: b}
	pricing := &PricingProcessor{base: b}

	return &Registry{
		chainID: deps.ChainID,
		log:     b.log,
		processors: map[domain.EventKind]Processor{
			domain.EventMetadataCreated:      metadata,
			domain.EventMetadataUpdated:      metadata,
			domain.EventMetadataState:        &StateProcessor{base: b},
			domain.EventOrderStarted:         orders,
			domain.EventOrderReused:          orders,
			domain.EventDispenserCreated:     pricing,
			domain.EventDispenserActivated:   pricing,
			domain.EventDispenserDeactivated: pricing,
			domain.EventExchangeCreated:      pricing,
			domain.EventExchangeActivated:    pricing,
			domain.EventExchangeDeactivated:  pricing,
			domain.EventExchangeRateChanged:  pricing,
		},
	}
}

// Process runs the processor of ev.Kind. Panics are recovered into
// rejections.
func (r *Registry) Process(ctx context.Context, ev domain.Event) (res *Result, err error) {
	p, ok := r.processors[ev.Kind]
	if !ok {
		return nil, reject("no processor for event kind %q", ev.Kind)
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("Processor panicked", "event", ev.Kind, "tx", ev.Record.TxHash, "panic", rec)
			res, err = nil, reject("processor %s panicked: %v", ev.Kind, rec)
		}
		metrics.EventsProcessed.WithLabelValues(r.chainID.Name(), string(ev.Kind), outcome(err)).Inc()
	}()

	res, err = p.Process(ctx, ev)
	if err != nil {
		if IsRejected(err) {
			r.log.Info("Event rejected", "event", ev.Kind, "tx", ev.Record.TxHash, "block", ev.Record.BlockNumber, "reason", err)
		} else {
			r.log.Warn("Event processing failed", "event", ev.Kind, "tx", ev.Record.TxHash, "block", ev.Record.BlockNumber, "error", err)
		}
		return nil, fmt.Errorf("%s at block %d: %w", ev.Kind, ev.Record.BlockNumber, err)
	}
	return res, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsRejected(err):
		return "rejected"
	default:
		return "error"
	}
}
