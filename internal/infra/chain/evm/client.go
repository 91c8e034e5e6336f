package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/indexing/metrics"
	"github.com/vietddude/ocean-indexer/internal/infra/chain"
)

type endpoint struct {
	name string
	rpc  *rpc.Client
	eth  *ethclient.Client
}

// Client implements chain.Client over one or more JSON-RPC endpoints.
// Calls go to the last endpoint that answered; throttled or failing
// endpoints are skipped in order until one succeeds.
type Client struct {
	chainID   domain.ChainID
	endpoints []*endpoint
	active    atomic.Int32
	timeout   time.Duration
	log       *slog.Logger
}

var _ chain.Client = (*Client)(nil)

// Dial connects to every url. Endpoints that cannot be dialed are skipped;
// Dial fails only when none is usable.
func Dial(ctx context.Context, chainID domain.ChainID, urls []string, timeout time.Duration) (*Client, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("chain %d: no rpc endpoints configured", chainID)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Client{
		chainID: chainID,
		timeout: timeout,
		log:     slog.Default().With("chain", chainID.Name()),
	}
	for _, u := range urls {
		rc, err := rpc.DialContext(ctx, u)
		if err != nil {
			c.log.Warn("Failed to dial rpc endpoint", "endpoint", endpointName(u), "error", err)
			continue
		}
		c.endpoints = append(c.endpoints, &endpoint{
			name: endpointName(u),
			rpc:  rc,
			eth:  ethclient.NewClient(rc),
		})
	}
	if len(c.endpoints) == 0 {
		return nil, fmt.Errorf("chain %d: %w", chainID, ErrAllEndpointsFailed)
	}
	return c, nil
}

// endpointName strips credentials and paths (API keys) from a url for logs
// and metric labels.
func endpointName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "rpc"
	}
	return u.Host
}

func (c *Client) GetChainID() domain.ChainID { return c.chainID }

// Close releases every endpoint connection.
func (c *Client) Close() {
	for _, ep := range c.endpoints {
		ep.rpc.Close()
	}
}

// do runs fn against the endpoints starting from the active one.
func (c *Client) do(ctx context.Context, method string, fn func(ctx context.Context, eth *ethclient.Client) error) error {
	chainName := c.chainID.Name()
	start := int(c.active.Load())
	var lastErr error

	for i := range c.endpoints {
		idx := (start + i) % len(c.endpoints)
		ep := c.endpoints[idx]

		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		began := time.Now()
		err := fn(callCtx, ep.eth)
		cancel()

		metrics.RPCCallsTotal.WithLabelValues(chainName, ep.name, method).Inc()
		metrics.RPCLatency.WithLabelValues(chainName, ep.name, method).Observe(time.Since(began).Seconds())

		if err == nil {
			if idx != start {
				c.active.Store(int32(idx))
				c.log.Info("Switched rpc endpoint", "endpoint", ep.name)
			}
			return nil
		}
		if errors.Is(err, ethereum.NotFound) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		action := ClassifyError(err)
		if action == ActionFatal {
			metrics.RPCErrorsTotal.WithLabelValues(chainName, ep.name, action.String()).Inc()
			return fmt.Errorf("%s: %w: %w", method, chain.ErrInvalidRequest, err)
		}
		if IsRangeTooLarge(err) {
			metrics.RPCErrorsTotal.WithLabelValues(chainName, ep.name, ActionFatal.String()).Inc()
			return fmt.Errorf("%s: %w", method, err)
		}
		metrics.RPCErrorsTotal.WithLabelValues(chainName, ep.name, action.String()).Inc()

		c.log.Debug("RPC call failed", "endpoint", ep.name, "method", method, "action", action, "error", err)
		lastErr = err
	}

	return fmt.Errorf("%s: %w: %w", method, ErrAllEndpointsFailed, lastErr)
}

func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	var height uint64
	err := c.do(ctx, "eth_blockNumber", func(ctx context.Context, eth *ethclient.Client) error {
		n, err := eth.BlockNumber(ctx)
		height = n
		return err
	})
	if err != nil {
		return 0, err
	}
	metrics.ChainLatestBlock.WithLabelValues(c.chainID.Name()).Set(float64(height))
	return height, nil
}

func (c *Client) FilterLogs(ctx context.Context, fromBlock, toBlock uint64, topics []string) ([]domain.EventRecord, error) {
	hashes := make([]common.Hash, 0, len(topics))
	for _, t := range topics {
		hashes = append(hashes, common.HexToHash(t))
	}
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Topics:    [][]common.Hash{hashes},
	}

	var logs []types.Log
	err := c.do(ctx, "eth_getLogs", func(ctx context.Context, eth *ethclient.Client) error {
		l, err := eth.FilterLogs(ctx, query)
		logs = l
		return err
	})
	if err != nil {
		return nil, err
	}

	records := make([]domain.EventRecord, 0, len(logs))
	for i := range logs {
		if logs[i].Removed {
			continue
		}
		records = append(records, toRecord(&logs[i]))
	}
	return records, nil
}

func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*chain.Receipt, error) {
	var receipt *types.Receipt
	err := c.do(ctx, "eth_getTransactionReceipt", func(ctx context.Context, eth *ethclient.Client) error {
		r, err := eth.TransactionReceipt(ctx, common.HexToHash(txHash))
		receipt = r
		return err
	})
	if errors.Is(err, ethereum.NotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	out := &chain.Receipt{
		TxHash: receipt.TxHash.Hex(),
		Status: receipt.Status,
		Logs:   make([]domain.EventRecord, 0, len(receipt.Logs)),
	}
	if receipt.BlockNumber != nil {
		out.BlockNumber = receipt.BlockNumber.Uint64()
	}
	for _, l := range receipt.Logs {
		out.Logs = append(out.Logs, toRecord(l))
	}
	return out, nil
}

func (c *Client) CallContract(ctx context.Context, to string, data []byte) ([]byte, error) {
	addr := common.HexToAddress(to)
	msg := ethereum.CallMsg{To: &addr, Data: data}

	var out []byte
	err := c.do(ctx, "eth_call", func(ctx context.Context, eth *ethclient.Client) error {
		res, err := eth.CallContract(ctx, msg, nil)
		out = res
		return err
	})
	return out, err
}

func toRecord(l *types.Log) domain.EventRecord {
	topics := make([]string, len(l.Topics))
	for i, t := range l.Topics {
		topics[i] = t.Hex()
	}
	return domain.EventRecord{
		TxHash:      l.TxHash.Hex(),
		BlockNumber: l.BlockNumber,
		LogIndex:    l.Index,
		Address:     l.Address.Hex(),
		Topics:      topics,
		Data:        l.Data,
	}
}
