package processor

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// OrderProcessor handles ORDER_STARTED and ORDER_REUSED, emitted by
// datatoken contracts.
type OrderProcessor struct {
	base
}

func (p *OrderProcessor) Process(ctx context.Context, ev domain.Event) (*Result, error) {
	datatoken := common.HexToAddress(ev.Record.Address).Hex()

	nftAddr, err := p.Contracts.ERC721Address(ctx, datatoken)
	if err != nil {
		return nil, callFailed("resolve nft of datatoken "+datatoken, err)
	}
	nft := common.HexToAddress(nftAddr).Hex()
	did := DID(nft, p.ChainID)

	res, err := p.process(ctx, ev, datatoken, nft, did)
	p.recordState(ctx, did, nft, ev.Record.TxHash, err)
	return res, err
}

func (p *OrderProcessor) process(ctx context.Context, ev domain.Event, datatoken, nft, did string) (*Result, error) {
	txID := ev.Record.TxHash
	if _, err := p.Orders.Get(ctx, txID); err == nil {
		return nil, replayed(txID)
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("lookup order %s: %w", txID, err)
	}

	args, err := decodeArgs(ev)
	if err != nil {
		return nil, err
	}
	timestamp, err := args.timestamp("timestamp")
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		ID:               txID,
		ChainID:          p.ChainID,
		Timestamp:        timestamp,
		DatatokenAddress: datatoken,
		NFTAddress:       nft,
		DID:              did,
	}
	switch ev.Kind {
	case domain.EventOrderStarted:
		order.Type = domain.OrderTypeStart
		if order.Consumer, err = args.address("consumer"); err != nil {
			return nil, err
		}
		if order.Payer, err = args.address("payer"); err != nil {
			return nil, err
		}
	case domain.EventOrderReused:
		order.Type = domain.OrderTypeReuse
		if order.Payer, err = args.address("caller"); err != nil {
			return nil, err
		}
		if order.StartOrderID, err = args.hash("orderTxId"); err != nil {
			return nil, err
		}
		start, err := p.Orders.Get(ctx, order.StartOrderID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, reject("start order %s not found", order.StartOrderID)
		}
		if err != nil {
			return nil, fmt.Errorf("lookup start order %s: %w", order.StartOrderID, err)
		}
		order.Consumer = start.Consumer
	default:
		return nil, reject("unexpected order event %q", ev.Kind)
	}

	doc, err := p.retrieve(ctx, did)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, reject("no document %s for order %s", did, txID)
	}

	im, err := doc.IndexedMetadata()
	if err != nil {
		return nil, reject("%v", err)
	}
	if i := findStat(im.Stats, datatoken); i >= 0 {
		im.Stats[i].Orders++
	} else {
		stat, err := p.newStat(ctx, doc, datatoken, 1)
		if err != nil {
			return nil, err
		}
		im.Stats = append(im.Stats, stat)
	}
	if err := doc.Set("indexedMetadata.stats", im.Stats); err != nil {
		return nil, err
	}

	if err := p.Orders.CreateWithDocument(ctx, order, doc); err != nil {
		return nil, fmt.Errorf("create order %s: %w", txID, err)
	}
	metrics.DocumentsWritten.WithLabelValues(p.ChainID.Name(), "order").Inc()

	return &Result{DID: did, TxID: txID, Block: ev.Record.BlockNumber, Document: doc}, nil
}
