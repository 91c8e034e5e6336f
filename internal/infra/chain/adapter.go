package chain

import (
	"context"
	"errors"
	"math/big"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

// ErrInvalidRequest marks a call every endpoint would refuse: malformed
// params, unknown method, or a reverted call. Retrying it cannot succeed.
var ErrInvalidRequest = errors.New("invalid rpc request")

// Client defines the chain-level RPC boundary used by the indexer.
type Client interface {
	// BlockNumber returns the latest block number on the chain.
	BlockNumber(ctx context.Context) (uint64, error)

	// FilterLogs returns the logs in [fromBlock, toBlock] whose topic0 is
	// one of topics.
	FilterLogs(ctx context.Context, fromBlock, toBlock uint64, topics []string) ([]domain.EventRecord, error)

	// TransactionReceipt returns the receipt of a mined transaction, or
	// nil when the transaction is unknown or still pending.
	TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error)

	// CallContract executes a read-only call against the latest state.
	CallContract(ctx context.Context, to string, data []byte) ([]byte, error)

	// GetChainID returns the chain identifier.
	GetChainID() domain.ChainID
}

// Receipt is the subset of a transaction receipt the indexer consumes.
type Receipt struct {
	TxHash      string
	BlockNumber uint64
	Status      uint64
	Logs        []domain.EventRecord
}

// ContractReader exposes the Ocean contract reads used to enrich documents.
type ContractReader interface {
	// IsDeployedByFactory reports whether nft was created by factory.
	IsDeployedByFactory(ctx context.Context, factory, nft string) (bool, error)

	// NFTInfo reads name, symbol, state and token URI of a data NFT.
	NFTInfo(ctx context.Context, nft string) (*domain.NFTInfo, error)

	// TokenInfo reads the name and symbol of an ERC20 datatoken.
	TokenInfo(ctx context.Context, token string) (name, symbol string, err error)

	// ERC721Address returns the data NFT that owns a datatoken.
	ERC721Address(ctx context.Context, datatoken string) (string, error)

	// DatatokenPrices lists the active dispensers and fixed rate exchanges
	// of a datatoken.
	DatatokenPrices(ctx context.Context, datatoken string) ([]domain.Price, error)

	// Exchange returns the datatoken and rate of a fixed rate exchange.
	Exchange(ctx context.Context, fre string, exchangeID [32]byte) (datatoken string, rate *big.Int, err error)

	// IsDispenserContract checks the router's dispenser registry.
	IsDispenserContract(ctx context.Context, router, addr string) (bool, error)

	// IsFixedRateContract checks the router's fixed rate registry.
	IsFixedRateContract(ctx context.Context, router, addr string) (bool, error)

	// HasAccess reports whether account holds an access list token.
	HasAccess(ctx context.Context, accessList, account string) (bool, error)
}
