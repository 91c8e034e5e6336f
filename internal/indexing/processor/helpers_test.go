package processor

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/classifier"
	"github.com/vietddude/ocean-indexer/internal/infra/storage/memory"
)

const (
	testChain     = domain.ChainIDDevelopment
	testFactory   = "0x00000000000000000000000000000000000000fa"
	testNFT       = "0x00000000000000000000000000000000000000a1"
	testDatatoken = "0x00000000000000000000000000000000000000d1"
	testOwner     = "0x00000000000000000000000000000000000000b0"
	testTimestamp = 1700000000
)

var errRPC = errors.New("connection reset")

// fakeContracts is a hand-written ContractReader backed by maps.
type fakeContracts struct {
	deployed   map[string]bool
	nftOf      map[string]string
	prices     map[string][]domain.Price
	exchanges  map[[32]byte]string
	access     map[string]bool
	dispensers map[string]bool
	fixedRates map[string]bool
	err        error
	accessErr  error
	priceCalls int
}

func newFakeContracts() *fakeContracts {
	return &fakeContracts{
		deployed:   map[string]bool{strings.ToLower(testNFT): true},
		nftOf:      map[string]string{strings.ToLower(testDatatoken): testNFT},
		prices:     map[string][]domain.Price{},
		exchanges:  map[[32]byte]string{},
		access:     map[string]bool{},
		dispensers: map[string]bool{},
		fixedRates: map[string]bool{},
	}
}

func (f *fakeContracts) IsDeployedByFactory(ctx context.Context, factory, nft string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.deployed[strings.ToLower(nft)], nil
}

func (f *fakeContracts) NFTInfo(ctx context.Context, nft string) (*domain.NFTInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.NFTInfo{Address: nft, Name: "Data NFT", Symbol: "DN", State: domain.NFTStateActive, TokenURI: "ipfs://nft"}, nil
}

func (f *fakeContracts) TokenInfo(ctx context.Context, token string) (string, string, error) {
	if f.err != nil {
		return "", "", f.err
	}
	return "Datatoken One", "DT1", nil
}

func (f *fakeContracts) ERC721Address(ctx context.Context, datatoken string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	nft, ok := f.nftOf[strings.ToLower(datatoken)]
	if !ok {
		return "", errors.New("execution reverted")
	}
	return nft, nil
}

func (f *fakeContracts) DatatokenPrices(ctx context.Context, datatoken string) ([]domain.Price, error) {
	f.priceCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.prices[strings.ToLower(datatoken)], nil
}

func (f *fakeContracts) Exchange(ctx context.Context, fre string, exchangeID [32]byte) (string, *big.Int, error) {
	dt, ok := f.exchanges[exchangeID]
	if !ok {
		return "", nil, errors.New("execution reverted: exchange not found")
	}
	return dt, big.NewInt(1), nil
}

func (f *fakeContracts) IsDispenserContract(ctx context.Context, router, addr string) (bool, error) {
	return f.dispensers[strings.ToLower(addr)], nil
}

func (f *fakeContracts) IsFixedRateContract(ctx context.Context, router, addr string) (bool, error) {
	return f.fixedRates[strings.ToLower(addr)], nil
}

func (f *fakeContracts) HasAccess(ctx context.Context, accessList, account string) (bool, error) {
	if f.accessErr != nil {
		return false, f.accessErr
	}
	return f.access[strings.ToLower(accessList)+"/"+strings.ToLower(account)], nil
}

// fixture wires a registry to in-memory storage.
type fixture struct {
	store     *memory.MemoryStorage
	ddos      *memory.DDORepo
	states    *memory.DDOStateRepo
	orders    *memory.OrderRepo
	contracts *fakeContracts
	deps      Deps
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewMemoryStorage()
	f := &fixture{
		store:     store,
		ddos:      memory.NewDDORepo(store),
		states:    memory.NewDDOStateRepo(store),
		orders:    memory.NewOrderRepo(store),
		contracts: newFakeContracts(),
	}
	f.deps = Deps{
		ChainID:   testChain,
		Config:    Config{FactoryAddress: testFactory},
		Contracts: f.contracts,
		DDOs:      f.ddos,
		States:    f.states,
		Orders:    f.orders,
	}
	return f
}

func (f *fixture) registry() *Registry {
	return NewRegistry(f.deps)
}

func testDID() string {
	return DID(testNFT, testChain)
}

// testDocument returns a minimal asset document for testNFT.
func testDocument(t *testing.T, id string) []byte {
	t.Helper()
	doc := map[string]any{
		"@context": []string{"https://w3id.org/did/v1"},
		"id":       id,
		"version":  "4.1.0",
		"metadata": map[string]any{"name": "Weather data", "type": "dataset"},
		"services": []map[string]any{
			{"id": "svc-1", "type": "access", "datatokenAddress": testDatatoken},
		},
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	return raw
}

func checksumOf(t *testing.T, doc []byte) [32]byte {
	t.Helper()
	sum, err := Checksum(doc)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	return common.HexToHash(sum)
}

type metadataLog struct {
	kind   domain.EventKind
	doc    []byte
	hash   [32]byte
	flags  []byte
	url    string
	txHash string
	block  uint64
}

func encodeMetadata(t *testing.T, l metadataLog) domain.Event {
	t.Helper()
	if l.kind == "" {
		l.kind = domain.EventMetadataCreated
	}
	if l.flags == nil {
		l.flags = []byte{0}
	}
	rec, err := classifier.Encode(l.kind,
		[]common.Hash{common.BytesToHash(common.HexToAddress(testOwner).Bytes())},
		uint8(0), l.url, l.flags, l.doc, l.hash, big.NewInt(testTimestamp), new(big.Int).SetUint64(l.block),
	)
	if err != nil {
		t.Fatalf("encode %s: %v", l.kind, err)
	}
	rec.Address = testNFT
	rec.TxHash = l.txHash
	rec.BlockNumber = l.block
	return domain.Event{Kind: l.kind, ChainID: testChain, Record: rec}
}

// createdEvent is a valid unencrypted METADATA_CREATED at block.
func createdEvent(t *testing.T, txHash string, block uint64) domain.Event {
	t.Helper()
	doc := testDocument(t, testDID())
	return encodeMetadata(t, metadataLog{doc: doc, hash: checksumOf(t, doc), txHash: txHash, block: block})
}

func updatedEvent(t *testing.T, txHash string, block uint64) domain.Event {
	t.Helper()
	doc := testDocument(t, testDID())
	return encodeMetadata(t, metadataLog{
		kind: domain.EventMetadataUpdated, doc: doc, hash: checksumOf(t, doc), txHash: txHash, block: block,
	})
}

func (f *fixture) stored(t *testing.T) *domain.DDO {
	t.Helper()
	doc, err := f.ddos.Retrieve(context.Background(), testDID())
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	return doc
}

func (f *fixture) state(t *testing.T) *domain.DDOState {
	t.Helper()
	st, err := f.states.Get(context.Background(), testDID())
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	return st
}

func (f *fixture) count(t *testing.T) int64 {
	t.Helper()
	n, err := f.ddos.CountByChain(context.Background(), testChain)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
