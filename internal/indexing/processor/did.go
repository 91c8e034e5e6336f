package processor

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

// DID derives the document identifier of a data NFT.
func DID(nftAddress string, chainID domain.ChainID) string {
	sum := sha256.Sum256([]byte(common.HexToAddress(nftAddress).Hex() + strconv.FormatUint(uint64(chainID), 10)))
	return "did:op:" + hex.EncodeToString(sum[:])
}

// Checksum is the metadata hash published on chain for an unencrypted
// document: sha256 over the 0x-prefixed hex of its compact JSON.
func Checksum(document []byte) (string, error) {
	compact, err := compactJSON(document)
	if err != nil {
		return "", err
	}
	return hash256("0x" + hex.EncodeToString(compact)), nil
}

// ContentHash is the hash a decryptor's plaintext must match.
func ContentHash(document []byte) (string, error) {
	compact, err := compactJSON(document)
	if err != nil {
		return "", err
	}
	return hash256(string(compact)), nil
}

func hash256(s string) string {
	sum := sha256.Sum256([]byte(s))
	return "0x" + hex.EncodeToString(sum[:])
}

func compactJSON(document []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, document); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
