package processor

import (
	"context"
	"strings"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

// findStat returns the index of the stats entry of datatoken, or -1.
func findStat(stats []domain.ServiceStats, datatoken string) int {
	for i := range stats {
		if strings.EqualFold(stats[i].DatatokenAddress, datatoken) {
			return i
		}
	}
	return -1
}

// newStat builds a stats entry for datatoken from chain state. Pricing read
// failures are logged and yield no prices.
func (b *base) newStat(ctx context.Context, doc *domain.DDO, datatoken string, orders int) (domain.ServiceStats, error) {
	serviceID, ok := doc.ServiceIDByDatatoken(datatoken)
	if !ok {
		return domain.ServiceStats{}, reject("no service of %s uses datatoken %s", doc.ID(), datatoken)
	}
	name, symbol, err := b.Contracts.TokenInfo(ctx, datatoken)
	if err != nil {
		return domain.ServiceStats{}, callFailed("read datatoken "+datatoken, err)
	}
	return domain.ServiceStats{
		DatatokenAddress: datatoken,
		Name:             name,
		Symbol:           symbol,
		ServiceID:        serviceID,
		Orders:           orders,
		Prices:           b.prices(ctx, datatoken),
	}, nil
}

func (b *base) prices(ctx context.Context, datatoken string) []domain.Price {
	prices, err := b.Contracts.DatatokenPrices(ctx, datatoken)
	if err != nil {
		b.log.Warn("Failed to read datatoken prices", "datatoken", datatoken, "error", err)
		return []domain.Price{}
	}
	if prices == nil {
		return []domain.Price{}
	}
	return prices
}
