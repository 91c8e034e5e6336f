package processor

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
)

// StateProcessor handles METADATA_STATE. Revoking or deprecating an active
// asset replaces its document with a tombstone.
type StateProcessor struct {
	base
}

func (p *StateProcessor) Process(ctx context.Context, ev domain.Event) (*Result, error) {
	nft := common.HexToAddress(ev.Record.Address).Hex()
	did := DID(nft, p.ChainID)

	res, err := p.process(ctx, ev, nft, did)
	p.recordState(ctx, did, nft, ev.Record.TxHash, err)
	return res, err
}

func (p *StateProcessor) process(ctx context.Context, ev domain.Event, nft, did string) (*Result, error) {
	args, err := decodeArgs(ev)
	if err != nil {
		return nil, err
	}
	raw, err := argAs[uint8](args, "state")
	if err != nil {
		return nil, err
	}
	state := domain.NFTState(raw)

	doc, err := p.retrieve(ctx, did)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, reject("no document %s to change state of", did)
	}

	previous, _ := doc.NFTState()
	if previous == domain.NFTStateActive && (state == domain.NFTStateRevoked || state == domain.NFTStateDeprecated) {
		tomb := domain.NewTombstone(did, p.ChainID, nft, state)
		if err := p.replace(ctx, did, tomb); err != nil {
			return nil, err
		}
		metrics.DocumentsWritten.WithLabelValues(p.ChainID.Name(), "tombstone").Inc()
		p.log.Info("Asset retired", "did", did, "state", state)
		return &Result{DID: did, TxID: ev.Record.TxHash, Block: ev.Record.BlockNumber, Document: tomb}, nil
	}

	if err := doc.Set("indexedMetadata.nft.state", state); err != nil {
		return nil, err
	}
	if err := p.update(ctx, doc); err != nil {
		return nil, err
	}
	metrics.DocumentsWritten.WithLabelValues(p.ChainID.Name(), "update").Inc()
	return &Result{DID: did, TxID: ev.Record.TxHash, Block: ev.Record.BlockNumber, Document: doc}, nil
}
