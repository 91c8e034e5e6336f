package processor

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
)

// PricingProcessor handles dispenser and fixed rate exchange events by
// recomputing the prices of the affected datatoken from chain state.
type PricingProcessor struct {
	base
}

func isDispenserEvent(kind domain.EventKind) bool {
	switch kind {
	case domain.EventDispenserCreated, domain.EventDispenserActivated, domain.EventDispenserDeactivated:
		return true
	}
	return false
}

func (p *PricingProcessor) Process(ctx context.Context, ev domain.Event) (*Result, error) {
	contract := common.HexToAddress(ev.Record.Address).Hex()

	if err := p.checkRouter(ctx, ev.Kind, contract); err != nil {
		return nil, err
	}

	datatoken, err := p.datatoken(ctx, ev, contract)
	if err != nil {
		return nil, err
	}

	nftAddr, err := p.Contracts.ERC721Address(ctx, datatoken)
	if err != nil {
		return nil, callFailed("resolve nft of datatoken "+datatoken, err)
	}
	nft := common.HexToAddress(nftAddr).Hex()
	did := DID(nft, p.ChainID)

	res, err := p.process(ctx, ev, datatoken, did)
	p.recordState(ctx, did, nft, ev.Record.TxHash, err)
	return res, err
}

func (p *PricingProcessor) checkRouter(ctx context.Context, kind domain.EventKind, contract string) error {
	router := p.Config.RouterAddress
	if router == "" {
		return nil
	}
	var (
		ok  bool
		err error
	)
	if isDispenserEvent(kind) {
		ok, err = p.Contracts.IsDispenserContract(ctx, router, contract)
	} else {
		ok, err = p.Contracts.IsFixedRateContract(ctx, router, contract)
	}
	if err != nil {
		return callFailed("router check", err)
	}
	if !ok {
		return reject("%s is not a pricing contract known to router %s", contract, router)
	}
	return nil
}

func (p *PricingProcessor) datatoken(ctx context.Context, ev domain.Event, contract string) (string, error) {
	args, err := decodeArgs(ev)
	if err != nil {
		return "", err
	}
	switch {
	case isDispenserEvent(ev.Kind):
		return args.address("datatokenAddress")
	case ev.Kind == domain.EventExchangeCreated:
		return args.address("datatoken")
	default:
		exchangeID, err := args.bytes32("exchangeId")
		if err != nil {
			return "", err
		}
		dt, _, err := p.Contracts.Exchange(ctx, contract, exchangeID)
		if err != nil {
			return "", callFailed("read exchange", err)
		}
		return common.HexToAddress(dt).Hex(), nil
	}
}

func (p *PricingProcessor) process(ctx context.Context, ev domain.Event, datatoken, did string) (*Result, error) {
	doc, err := p.retrieve(ctx, did)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, reject("no document %s for datatoken %s", did, datatoken)
	}

	im, err := doc.IndexedMetadata()
	if err != nil {
		return nil, reject("%v", err)
	}
	if i := findStat(im.Stats, datatoken); i >= 0 {
		im.Stats[i].Prices = p.prices(ctx, datatoken)
	} else {
		stat, err := p.newStat(ctx, doc, datatoken, 0)
		if err != nil {
			return nil, err
		}
		im.Stats = append(im.Stats, stat)
	}
	if err := doc.Set("indexedMetadata.stats", im.Stats); err != nil {
		return nil, err
	}
	if err := p.update(ctx, doc); err != nil {
		return nil, err
	}
	metrics.DocumentsWritten.WithLabelValues(p.ChainID.Name(), "pricing").Inc()

	return &Result{DID: did, TxID: ev.Record.TxHash, Block: ev.Record.BlockNumber, Document: doc}, nil
}
