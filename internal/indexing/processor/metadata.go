package processor

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
	"github.com/vietddude/ocean-indexer/internal/infra/storage"
)

// flagEncrypted marks a payload that must be decrypted before use.
const flagEncrypted = 0x02

// MetadataProcessor handles METADATA_CREATED and METADATA_UPDATED.
type MetadataProcessor struct {
	base
}

// metadataEvent is a decoded MetadataCreated/MetadataUpdated log.
type metadataEvent struct {
	kind         domain.EventKind
	nft          string
	owner        string
	decryptorURL string
	flags        []byte
	data         []byte
	metadataHash string
	timestamp    int64
	block        uint64
	record       domain.EventRecord
}

func (e *metadataEvent) encrypted() bool {
	return len(e.flags) > 0 && e.flags[0]&flagEncrypted != 0
}

func (p *MetadataProcessor) Process(ctx context.Context, ev domain.Event) (*Result, error) {
	nft := common.HexToAddress(ev.Record.Address).Hex()
	did := DID(nft, p.ChainID)

	res, err := p.process(ctx, ev, nft, did)
	p.recordState(ctx, did, nft, ev.Record.TxHash, err)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (p *MetadataProcessor) process(ctx context.Context, ev domain.Event, nft, did string) (*Result, error) {
	if err := p.checkFactory(ctx, nft); err != nil {
		return nil, err
	}

	me, err := p.decode(ev, nft)
	if err != nil {
		return nil, err
	}

	doc, err := p.resolveDocument(ctx, me)
	if err != nil {
		return nil, err
	}
	if err := doc.Delete("indexedMetadata"); err != nil {
		return nil, reject("strip indexed metadata: %v", err)
	}
	if doc.ID() != did {
		return nil, reject("document id %q does not match %s", doc.ID(), did)
	}

	if !me.encrypted() {
		sum, err := Checksum(doc.Bytes())
		if err != nil {
			return nil, reject("checksum: %v", err)
		}
		if !strings.EqualFold(sum, me.metadataHash) {
			return nil, reject("checksum mismatch: computed %s, on chain %s", sum, me.metadataHash)
		}
	}

	if err := p.checkPublisher(ctx, me.owner); err != nil {
		return nil, err
	}

	previous, err := p.retrieve(ctx, did)
	if err != nil {
		return nil, err
	}
	if err := checkOrdering(me, previous); err != nil {
		return nil, err
	}

	if err := p.enrich(ctx, doc, me, previous); err != nil {
		return nil, err
	}

	action := PolicyActionNewDDO
	if me.kind == domain.EventMetadataUpdated {
		action = PolicyActionUpdateDDO
	}
	if err := p.Policy.Check(ctx, PolicyRequest{
		Action:   action,
		Document: doc,
		ChainID:  p.ChainID,
		TxID:     me.record.TxHash,
		Event:    me.record,
	}); err != nil {
		return nil, err
	}

	if p.Purgatory.IsBannedAsset(did) || p.Purgatory.IsBannedAccount(me.owner) {
		p.log.Info("Asset is in purgatory", "did", did, "owner", me.owner)
		if err := doc.Set("indexedMetadata.purgatory.state", true); err != nil {
			return nil, err
		}
	}

	if err := p.persist(ctx, did, doc, me.kind); err != nil {
		return nil, err
	}

	return &Result{DID: did, TxID: me.record.TxHash, Block: me.block, Document: doc}, nil
}

func (p *MetadataProcessor) checkFactory(ctx context.Context, nft string) error {
	if p.Config.FactoryAddress == "" {
		return reject("no ERC721 factory configured for chain %s", p.ChainID)
	}
	ok, err := p.Contracts.IsDeployedByFactory(ctx, p.Config.FactoryAddress, nft)
	if err != nil {
		return callFailed("factory check", err)
	}
	if !ok {
		return reject("nft %s was not deployed by factory %s", nft, p.Config.FactoryAddress)
	}
	return nil
}

func (p *MetadataProcessor) decode(ev domain.Event, nft string) (*metadataEvent, error) {
	args, err := decodeArgs(ev)
	if err != nil {
		return nil, err
	}

	ownerArg := "createdBy"
	if ev.Kind == domain.EventMetadataUpdated {
		ownerArg = "updatedBy"
	}

	me := &metadataEvent{kind: ev.Kind, nft: nft, record: ev.Record, block: ev.Record.BlockNumber}
	if me.owner, err = args.address(ownerArg); err != nil {
		return nil, err
	}
	if me.decryptorURL, err = argAs[string](args, "decryptorUrl"); err != nil {
		return nil, err
	}
	if me.flags, err = argAs[[]byte](args, "flags"); err != nil {
		return nil, err
	}
	if me.data, err = argAs[[]byte](args, "data"); err != nil {
		return nil, err
	}
	if me.metadataHash, err = args.hash("metaDataHash"); err != nil {
		return nil, err
	}
	if me.timestamp, err = args.timestamp("timestamp"); err != nil {
		return nil, err
	}
	if me.block == 0 {
		n, err := argAs[*big.Int](args, "blockNumber")
		if err == nil && n != nil && n.IsUint64() {
			me.block = n.Uint64()
		}
	}
	return me, nil
}

// resolveDocument returns the plaintext document of the event.
func (p *MetadataProcessor) resolveDocument(ctx context.Context, me *metadataEvent) (*domain.DDO, error) {
	var plain []byte
	if me.encrypted() {
		if p.Decrypter == nil {
			return nil, reject("document is encrypted and no decrypter is configured")
		}
		var err error
		plain, err = p.Decrypter.Decrypt(ctx, DecryptRequest{
			DecryptorURL: me.decryptorURL,
			ChainID:      p.ChainID,
			TxID:         me.record.TxHash,
			NFTAddress:   me.nft,
			Payload:      me.data,
			MetadataHash: me.metadataHash,
		})
		if err != nil {
			return nil, err
		}
	} else {
		plain = me.data
		if s := string(plain); strings.HasPrefix(s, "0x") {
			decoded, err := hex.DecodeString(s[2:])
			if err != nil {
				return nil, reject("payload is not valid hex: %v", err)
			}
			plain = decoded
		}
	}

	doc, err := domain.ParseDDO(plain)
	if err != nil {
		return nil, reject("payload: %v", err)
	}
	return doc, nil
}

func (p *MetadataProcessor) checkPublisher(ctx context.Context, owner string) error {
	if len(p.Config.AuthorizedPublishers) > 0 {
		allowed := false
		for _, a := range p.Config.AuthorizedPublishers {
			if strings.EqualFold(a, owner) {
				allowed = true
				break
			}
		}
		if !allowed {
			return reject("publisher %s is not authorized", owner)
		}
	}

	if len(p.Config.AccessLists) == 0 {
		return nil
	}
	var callErr error
	for _, list := range p.Config.AccessLists {
		ok, err := p.Contracts.HasAccess(ctx, list, owner)
		if err != nil {
			p.log.Warn("Access list check failed", "access_list", list, "owner", owner, "error", err)
			if callErr == nil {
				callErr = callFailed("access list "+list, err)
			}
			continue
		}
		if ok {
			return nil
		}
	}
	if callErr != nil {
		return callErr
	}
	return reject("publisher %s is not on any access list", owner)
}

func checkOrdering(me *metadataEvent, previous *domain.DDO) error {
	switch me.kind {
	case domain.EventMetadataCreated:
		if previous == nil {
			return nil
		}
		if strings.EqualFold(previous.Get("indexedMetadata.event.txid").String(), me.record.TxHash) {
			return replayed(me.record.TxHash)
		}
		if state, ok := previous.NFTState(); ok && state == domain.NFTStateActive {
			return reject("an active document %s already exists", previous.ID())
		}
	case domain.EventMetadataUpdated:
		if previous == nil {
			return reject("cannot update missing document")
		}
		if strings.EqualFold(previous.Get("indexedMetadata.event.txid").String(), me.record.TxHash) {
			return replayed(me.record.TxHash)
		}
		if stored := previous.Get("indexedMetadata.event.block"); stored.Exists() && stored.Uint() >= me.block {
			return reject("stale update: stored block %d, event block %d", stored.Uint(), me.block)
		}
	}
	return nil
}

// enrich fills the chain-derived fields of doc.
func (p *MetadataProcessor) enrich(ctx context.Context, doc *domain.DDO, me *metadataEvent, previous *domain.DDO) error {
	if err := doc.Set("chainId", p.ChainID); err != nil {
		return err
	}
	if err := doc.Set("nftAddress", me.nft); err != nil {
		return err
	}

	var carried []domain.ServiceStats
	if previous != nil {
		if im, err := previous.IndexedMetadata(); err == nil {
			carried = im.Stats
		}
	}

	datatokens := []domain.Datatoken{}
	stats := []domain.ServiceStats{}
	for i, svc := range doc.Services() {
		dt := domain.Datatoken{Address: svc.DatatokenAddress, ServiceID: svc.ID}
		if svc.DatatokenAddress == "" || common.HexToAddress(svc.DatatokenAddress) == (common.Address{}) {
			dt.Name = fmt.Sprintf("Datatoken%d", i)
			dt.Symbol = fmt.Sprintf("DT%d", i)
			datatokens = append(datatokens, dt)
			continue
		}
		name, symbol, err := p.Contracts.TokenInfo(ctx, svc.DatatokenAddress)
		if err != nil {
			return callFailed("read datatoken "+svc.DatatokenAddress, err)
		}
		dt.Name, dt.Symbol = name, symbol
		datatokens = append(datatokens, dt)

		orders := 0
		if j := findStat(carried, svc.DatatokenAddress); j >= 0 {
			orders = carried[j].Orders
		}
		stats = append(stats, domain.ServiceStats{
			DatatokenAddress: svc.DatatokenAddress,
			Name:             name,
			Symbol:           symbol,
			ServiceID:        svc.ID,
			Orders:           orders,
			Prices:           p.prices(ctx, svc.DatatokenAddress),
		})
	}
	if err := doc.Set("datatokens", datatokens); err != nil {
		return err
	}

	nftInfo, err := p.Contracts.NFTInfo(ctx, me.nft)
	if err != nil {
		return callFailed("read nft "+me.nft, err)
	}
	nftInfo.Owner = me.owner
	nftInfo.Created = formatDatetime(me.timestamp)
	if previous != nil {
		if created := previous.Get("indexedMetadata.nft.created").String(); created != "" {
			nftInfo.Created = created
		}
	}

	return doc.SetIndexedMetadata(domain.IndexedMetadata{
		Event: &domain.EventInfo{
			TxID:     me.record.TxHash,
			From:     me.owner,
			Contract: me.nft,
			Block:    me.block,
			Datetime: formatDatetime(me.timestamp),
		},
		NFT:       nftInfo,
		Purgatory: &domain.PurgatoryInfo{State: false},
		Stats:     stats,
	})
}

func (p *MetadataProcessor) persist(ctx context.Context, did string, doc *domain.DDO, kind domain.EventKind) error {
	chain := p.ChainID.Name()
	if kind == domain.EventMetadataCreated {
		if err := p.replace(ctx, did, doc); err != nil {
			return err
		}
		metrics.DocumentsWritten.WithLabelValues(chain, "create").Inc()
		return nil
	}

	err := p.DDOs.Update(ctx, doc)
	if errors.Is(err, storage.ErrNotFound) {
		err = p.DDOs.Create(ctx, doc)
	}
	if err != nil {
		return fmt.Errorf("persist %s: %w", did, err)
	}
	metrics.DocumentsWritten.WithLabelValues(chain, "update").Inc()
	return nil
}
