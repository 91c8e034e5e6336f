package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/ocean-indexer/internal/core/checkpoint"
	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/classifier"
	"github.com/vietddude/ocean-indexer/internal/indexing/processor"
	"github.com/vietddude/ocean-indexer/internal/indexing/throttle"
	"github.com/vietddude/ocean-indexer/internal/infra/chain"
	"github.com/vietddude/ocean-indexer/internal/infra/storage/memory"
)

const (
	testChain   = domain.ChainID(11155111)
	testNFT     = "0x00000000000000000000000000000000000000a1"
	testFactory = "0x00000000000000000000000000000000000000fa"
	testOwner   = "0x00000000000000000000000000000000000000b0"
)

var errRPC = errors.New("connection refused")

type logRange struct{ from, to uint64 }

// fakeClient serves logs from a block-keyed map.
type fakeClient struct {
	mu        sync.Mutex
	height    uint64
	logs      map[uint64][]domain.EventRecord
	receipts  map[string]*chain.Receipt
	rcptErrs  map[string]error
	failLogs  int
	failNext  error
	requested []logRange
}

func newFakeClient(height uint64) *fakeClient {
	return &fakeClient{
		height:   height,
		logs:     make(map[uint64][]domain.EventRecord),
		receipts: make(map[string]*chain.Receipt),
		rcptErrs: make(map[string]error),
	}
}

func (c *fakeClient) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext != nil {
		err := c.failNext
		c.failNext = nil
		return 0, err
	}
	return c.height, nil
}

func (c *fakeClient) FilterLogs(ctx context.Context, from, to uint64, topics []string) ([]domain.EventRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requested = append(c.requested, logRange{from, to})
	if c.failLogs > 0 {
		c.failLogs--
		return nil, errRPC
	}
	var out []domain.EventRecord
	for b := from; b <= to; b++ {
		out = append(out, c.logs[b]...)
	}
	return out, nil
}

func (c *fakeClient) TransactionReceipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.rcptErrs[txHash]; err != nil {
		return nil, err
	}
	return c.receipts[txHash], nil
}

func (c *fakeClient) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	return nil, errors.New("not supported")
}

func (c *fakeClient) GetChainID() domain.ChainID { return testChain }

func (c *fakeClient) lastRange() logRange {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requested) == 0 {
		return logRange{}
	}
	return c.requested[len(c.requested)-1]
}

// recordingProcessor returns a canned outcome per transaction hash.
type recordingProcessor struct {
	mu     sync.Mutex
	errs   map[string]error
	seen   []string
	panics bool
}

func (p *recordingProcessor) Process(ctx context.Context, ev domain.Event) (*processor.Result, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, ev.Record.TxHash)
	if err := p.errs[ev.Record.TxHash]; err != nil {
		return nil, err
	}
	return &processor.Result{DID: "did:op:" + ev.Record.TxHash, TxID: ev.Record.TxHash, Block: ev.Record.BlockNumber}, nil
}

func (p *recordingProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

// captureEmitter keeps every notification.
type captureEmitter struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (e *captureEmitter) Emit(ctx context.Context, n domain.Notification) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sent = append(e.sent, n)
	return nil
}

func (e *captureEmitter) Close() error { return nil }

func (e *captureEmitter) of(kind domain.NotificationKind) []domain.Notification {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []domain.Notification
	for _, n := range e.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

type harness struct {
	client      *fakeClient
	store       *memory.MemoryStorage
	checkpoints *checkpoint.Manager
	ddos        *memory.DDORepo
	states      *memory.DDOStateRepo
	emitter     *captureEmitter
	cfg         Config
}

func newHarness(height uint64, proc EventProcessor) *harness {
	store := memory.NewMemoryStorage()
	deploy := uint64(0)
	h := &harness{
		client:      newFakeClient(height),
		store:       store,
		checkpoints: checkpoint.NewManager(memory.NewCheckpointRepo(store)),
		ddos:        memory.NewDDORepo(store),
		states:      memory.NewDDOStateRepo(store),
		emitter:     &captureEmitter{},
	}
	h.cfg = Config{
		ChainID:      testChain,
		Client:       h.client,
		Checkpoints:  h.checkpoints,
		Documents:    h.ddos,
		Processor:    proc,
		Emitter:      h.emitter,
		DeployBlock:  &deploy,
		PollInterval: time.Millisecond,
		Chunk:        throttle.ChunkConfig{NominalSize: 10, RecoverAfter: 3},
	}
	return h
}

// indexer builds a chain indexer with a resolved start block.
func (h *harness) indexer(t *testing.T) *ChainIndexer {
	t.Helper()
	c := NewChainIndexer(h.cfg)
	if err := c.resolveStart(context.Background()); err != nil {
		t.Fatalf("resolveStart: %v", err)
	}
	return c
}

func (h *harness) setCheckpoint(t *testing.T, block uint64) {
	t.Helper()
	if _, err := h.checkpoints.Set(context.Background(), testChain, block, true); err != nil {
		t.Fatalf("set checkpoint: %v", err)
	}
}

func (h *harness) checkpoint(t *testing.T) uint64 {
	t.Helper()
	block, ok, err := h.checkpoints.Get(context.Background(), testChain)
	if err != nil || !ok {
		t.Fatalf("get checkpoint: ok=%v err=%v", ok, err)
	}
	return block
}

// orderLog is a classifiable ORDER_STARTED log. Its content is only read
// by fake processors.
func orderLog(t *testing.T, txHash string, block uint64) domain.EventRecord {
	t.Helper()
	addr := common.BytesToHash(common.HexToAddress(testOwner).Bytes())
	rec, err := classifier.Encode(domain.EventOrderStarted, []common.Hash{addr, addr},
		common.HexToAddress(testOwner), big.NewInt(1), big.NewInt(0), big.NewInt(1700000000), new(big.Int).SetUint64(block),
	)
	if err != nil {
		t.Fatalf("encode order: %v", err)
	}
	rec.TxHash = txHash
	rec.BlockNumber = block
	return rec
}

func unknownLog(txHash string, block uint64) domain.EventRecord {
	return domain.EventRecord{
		TxHash:      txHash,
		BlockNumber: block,
		Topics:      []string{common.HexToHash("0xdeadbeef").Hex()},
	}
}

// stubContracts answers the contract reads a METADATA_CREATED needs.
type stubContracts struct{}

func (stubContracts) IsDeployedByFactory(ctx context.Context, factory, nft string) (bool, error) {
	return strings.EqualFold(nft, testNFT), nil
}

func (stubContracts) NFTInfo(ctx context.Context, nft string) (*domain.NFTInfo, error) {
	return &domain.NFTInfo{Address: nft, Name: "Data NFT", Symbol: "DN", State: domain.NFTStateActive}, nil
}

func (stubContracts) TokenInfo(ctx context.Context, token string) (string, string, error) {
	return "Datatoken", "DT", nil
}

func (stubContracts) ERC721Address(ctx context.Context, datatoken string) (string, error) {
	return testNFT, nil
}

func (stubContracts) DatatokenPrices(ctx context.Context, datatoken string) ([]domain.Price, error) {
	return nil, nil
}

func (stubContracts) Exchange(ctx context.Context, fre string, id [32]byte) (string, *big.Int, error) {
	return "", nil, errors.New("execution reverted")
}

func (stubContracts) IsDispenserContract(ctx context.Context, router, addr string) (bool, error) {
	return false, nil
}

func (stubContracts) IsFixedRateContract(ctx context.Context, router, addr string) (bool, error) {
	return false, nil
}

func (stubContracts) HasAccess(ctx context.Context, list, account string) (bool, error) {
	return false, nil
}

// newRegistryHarness wires the real processors to the harness storage.
func newRegistryHarness(height uint64) *harness {
	h := newHarness(height, nil)
	h.cfg.Processor = processor.NewRegistry(processor.Deps{
		ChainID:   testChain,
		Config:    processor.Config{FactoryAddress: testFactory},
		Contracts: stubContracts{},
		DDOs:      h.ddos,
		States:    h.states,
		Orders:    memory.NewOrderRepo(h.store),
	})
	return h
}

func testDID() string {
	return processor.DID(testNFT, testChain)
}

// createdLog encodes a METADATA_CREATED for testNFT. A zero hash uses the
// document's real checksum.
func createdLog(t *testing.T, txHash string, block uint64, hash [32]byte) domain.EventRecord {
	t.Helper()
	doc, err := json.Marshal(map[string]any{
		"@context": []string{"https://w3id.org/did/v1"},
		"id":       testDID(),
		"version":  "4.1.0",
		"metadata": map[string]any{"name": "Weather data", "type": "dataset"},
		"services": []map[string]any{},
	})
	if err != nil {
		t.Fatalf("marshal document: %v", err)
	}
	if hash == ([32]byte{}) {
		sum, err := processor.Checksum(doc)
		if err != nil {
			t.Fatalf("checksum: %v", err)
		}
		hash = common.HexToHash(sum)
	}

	rec, err := classifier.Encode(domain.EventMetadataCreated,
		[]common.Hash{common.BytesToHash(common.HexToAddress(testOwner).Bytes())},
		uint8(0), "", []byte{0}, doc, hash, big.NewInt(1700000000), new(big.Int).SetUint64(block),
	)
	if err != nil {
		t.Fatalf("encode metadata: %v", err)
	}
	rec.Address = testNFT
	rec.TxHash = txHash
	rec.BlockNumber = block
	return rec
}
