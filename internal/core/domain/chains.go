package domain

import (
	"errors"
	"strconv"
)

// ErrUnknownChain is returned for a chain no indexer is configured for.
var ErrUnknownChain = errors.New("unknown chain")

// ChainID is the EIP-155 numeric chain identifier.
type ChainID uint64

const (
	ChainIDEthereum ChainID = 1
	ChainIDOptimism ChainID = 10
	ChainIDPolygon  ChainID = 137
	ChainIDSepolia  ChainID = 11155111
	ChainIDOasis    ChainID = 23294

	// ChainIDDevelopment is the local barge chain. It has no deployment
	// block and is always crawled from genesis.
	ChainIDDevelopment ChainID = 8996
)

// ChainIDToName maps well-known chains to a human-readable name used as a
// metrics label and in logs.
var ChainIDToName = map[ChainID]string{
	ChainIDEthereum:    "ETHEREUM_MAINNET",
	ChainIDOptimism:    "OPTIMISM_MAINNET",
	ChainIDPolygon:     "POLYGON_MAINNET",
	ChainIDSepolia:     "SEPOLIA",
	ChainIDOasis:       "OASIS_SAPPHIRE",
	ChainIDDevelopment: "DEVELOPMENT",
}

func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// Name returns the known name of the chain, or its decimal id.
func (c ChainID) Name() string {
	if name, ok := ChainIDToName[c]; ok {
		return name
	}
	return c.String()
}

// ParseChainID parses a decimal chain id.
func ParseChainID(s string) (ChainID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return ChainID(v), nil
}
