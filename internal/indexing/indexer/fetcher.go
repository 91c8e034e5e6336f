package indexer

import (
	"context"
	"fmt"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	"github.com/vietddude/ocean-indexer/internal/infra/chain"
)

// BlockRangeFetcher reads the network height and the Ocean logs of a block
// range. It has no side effects besides the RPC calls.
type BlockRangeFetcher struct {
	client chain.Client
	topics []string
}

func NewBlockRangeFetcher(client chain.Client, topics []string) *BlockRangeFetcher {
	return &BlockRangeFetcher{client: client, topics: topics}
}

// Height returns the latest block number.
func (f *BlockRangeFetcher) Height(ctx context.Context) (uint64, error) {
	h, err := f.client.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("get network height: %w", err)
	}
	return h, nil
}

// FetchLogs returns the logs of the count blocks after lastIndexed.
func (f *BlockRangeFetcher) FetchLogs(ctx context.Context, lastIndexed, count uint64) ([]domain.EventRecord, error) {
	if count == 0 {
		return nil, nil
	}
	from, to := lastIndexed+1, lastIndexed+count
	logs, err := f.client.FilterLogs(ctx, from, to, f.topics)
	if err != nil {
		return nil, fmt.Errorf("get logs %d-%d: %w", from, to, err)
	}
	return logs, nil
}
