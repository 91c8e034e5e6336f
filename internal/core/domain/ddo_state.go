package domain

// DDOState records the outcome of the latest processing attempt for a
// document, so rejected events stay observable.
type DDOState struct {
	DID        string  `json:"did" db:"did"`
	ChainID    ChainID `json:"chainId" db:"chain_id"`
	NFTAddress string  `json:"nft" db:"nft_address"`
	TxID       string  `json:"txId" db:"tx_id"`
	Valid      bool    `json:"valid" db:"valid"`
	Error      string  `json:"error" db:"error"`
}
