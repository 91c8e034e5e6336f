package domain

// OrderType distinguishes fresh orders from reused ones.
type OrderType string

const (
	OrderTypeStart OrderType = "startOrder"
	OrderTypeReuse OrderType = "reuseOrder"
)

// Order is an order record keyed by its transaction hash.
type Order struct {
	ID               string    `json:"id" db:"id"`
	Type             OrderType `json:"type" db:"type"`
	ChainID          ChainID   `json:"chainId" db:"chain_id"`
	Timestamp        int64     `json:"timestamp" db:"timestamp"`
	Consumer         string    `json:"consumer" db:"consumer"`
	Payer            string    `json:"payer" db:"payer"`
	DatatokenAddress string    `json:"datatokenAddress" db:"datatoken_address"`
	NFTAddress       string    `json:"nftAddress" db:"nft_address"`
	DID              string    `json:"did" db:"did"`
	StartOrderID     string    `json:"startOrderId,omitempty" db:"start_order_id"`
}
