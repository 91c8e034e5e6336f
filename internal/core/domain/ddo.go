package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// NFTState is the on-chain metadata state of a data NFT.
type NFTState int

const (
	NFTStateActive           NFTState = 0
	NFTStateEndOfLife        NFTState = 1
	NFTStateDeprecated       NFTState = 2
	NFTStateRevoked          NFTState = 3
	NFTStateOrderingDisabled NFTState = 4
	NFTStateUnlisted         NFTState = 5
)

// VersionDeprecated marks a tombstone document.
const VersionDeprecated = "deprecated"

// ErrInvalidDocument is returned when a payload is not a JSON object.
var ErrInvalidDocument = errors.New("document is not a JSON object")

// DDO is an asset metadata document. The document is kept as raw JSON so
// fields the indexer does not know about survive a round trip; known paths
// are read and written in place.
type DDO struct {
	raw []byte
}

// IndexedMetadata holds the fields the indexer derives from the chain.
type IndexedMetadata struct {
	Event     *EventInfo     `json:"event,omitempty"`
	NFT       *NFTInfo       `json:"nft,omitempty"`
	Purgatory *PurgatoryInfo `json:"purgatory,omitempty"`
	Stats     []ServiceStats `json:"stats,omitempty"`
}

// EventInfo describes the transaction that last wrote the document.
type EventInfo struct {
	TxID     string `json:"txid"`
	From     string `json:"from"`
	Contract string `json:"contract"`
	Block    uint64 `json:"block"`
	Datetime string `json:"datetime"`
}

// NFTInfo is the on-chain state of the data NFT.
type NFTInfo struct {
	Address  string   `json:"address"`
	Name     string   `json:"name"`
	Symbol   string   `json:"symbol"`
	State    NFTState `json:"state"`
	TokenURI string   `json:"tokenURI"`
	Owner    string   `json:"owner"`
	Created  string   `json:"created,omitempty"`
}

// PurgatoryInfo flags banned assets.
type PurgatoryInfo struct {
	State bool `json:"state"`
}

// ServiceStats aggregates orders and prices of one service datatoken.
type ServiceStats struct {
	DatatokenAddress string  `json:"datatokenAddress"`
	Name             string  `json:"name"`
	Symbol           string  `json:"symbol"`
	ServiceID        string  `json:"serviceId"`
	Orders           int     `json:"orders"`
	Prices           []Price `json:"prices"`
}

// Price is one active pricing schema of a datatoken.
type Price struct {
	Type       string `json:"type"`
	Price      string `json:"price"`
	Contract   string `json:"contract"`
	Token      string `json:"token,omitempty"`
	ExchangeID string `json:"exchangeId,omitempty"`
}

const (
	PriceTypeDispenser = "dispenser"
	PriceTypeFixedRate = "fixedrate"
)

// Datatoken is an entry of the document's datatokens list.
type Datatoken struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	ServiceID string `json:"serviceId"`
}

// Service is the subset of a service entry the indexer reads.
type Service struct {
	ID               string
	DatatokenAddress string
}

// ParseDDO validates data as a JSON object and wraps it.
func ParseDDO(data []byte) (*DDO, error) {
	if !gjson.ValidBytes(data) {
		return nil, ErrInvalidDocument
	}
	if !gjson.ParseBytes(data).IsObject() {
		return nil, ErrInvalidDocument
	}
	raw := make([]byte, len(data))
	copy(raw, data)
	return &DDO{raw: raw}, nil
}

// NewTombstone builds the minimal document that replaces a revoked or
// deprecated asset.
func NewTombstone(id string, chainID ChainID, nftAddress string, state NFTState) *DDO {
	raw, _ := json.Marshal(map[string]any{
		"id":         id,
		"version":    VersionDeprecated,
		"chainId":    chainID,
		"nftAddress": nftAddress,
		"indexedMetadata": map[string]any{
			"nft": map[string]any{"state": state},
		},
	})
	return &DDO{raw: raw}
}

// Bytes returns the raw JSON document.
func (d *DDO) Bytes() []byte { return d.raw }

// Clone returns a deep copy.
func (d *DDO) Clone() *DDO {
	raw := make([]byte, len(d.raw))
	copy(raw, d.raw)
	return &DDO{raw: raw}
}

func (d *DDO) Get(path string) gjson.Result { return gjson.GetBytes(d.raw, path) }

func (d *DDO) ID() string         { return d.Get("id").String() }
func (d *DDO) Version() string    { return d.Get("version").String() }
func (d *DDO) NFTAddress() string { return d.Get("nftAddress").String() }
func (d *DDO) ChainID() ChainID   { return ChainID(d.Get("chainId").Uint()) }

// IsTombstone reports whether the document is a deprecated placeholder.
func (d *DDO) IsTombstone() bool { return d.Version() == VersionDeprecated }

// Services lists the services with their datatoken addresses.
func (d *DDO) Services() []Service {
	var out []Service
	d.Get("services").ForEach(func(_, s gjson.Result) bool {
		out = append(out, Service{
			ID:               s.Get("id").String(),
			DatatokenAddress: s.Get("datatokenAddress").String(),
		})
		return true
	})
	return out
}

// ServiceIDByDatatoken returns the id of the service paid with datatoken.
func (d *DDO) ServiceIDByDatatoken(datatoken string) (string, bool) {
	for _, s := range d.Services() {
		if strings.EqualFold(s.DatatokenAddress, datatoken) {
			return s.ID, true
		}
	}
	return "", false
}

// Set writes value at path.
func (d *DDO) Set(path string, value any) error {
	raw, err := sjson.SetBytes(d.raw, path, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	d.raw = raw
	return nil
}

// Delete removes path. Missing paths are not an error.
func (d *DDO) Delete(path string) error {
	raw, err := sjson.DeleteBytes(d.raw, path)
	if err != nil {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	d.raw = raw
	return nil
}

// IndexedMetadata decodes the indexer-derived section. A missing section
// yields the zero value.
func (d *DDO) IndexedMetadata() (IndexedMetadata, error) {
	var im IndexedMetadata
	r := d.Get("indexedMetadata")
	if !r.Exists() || r.Type == gjson.Null {
		return im, nil
	}
	if err := json.Unmarshal([]byte(r.Raw), &im); err != nil {
		return im, fmt.Errorf("decode indexedMetadata: %w", err)
	}
	return im, nil
}

// SetIndexedMetadata replaces the indexer-derived section.
func (d *DDO) SetIndexedMetadata(im IndexedMetadata) error {
	return d.Set("indexedMetadata", im)
}

// NFTState returns the stored NFT state, if any.
func (d *DDO) NFTState() (NFTState, bool) {
	r := d.Get("indexedMetadata.nft.state")
	if !r.Exists() {
		return 0, false
	}
	return NFTState(r.Int()), true
}

// MarshalJSON implements json.Marshaler.
func (d *DDO) MarshalJSON() ([]byte, error) {
	if d == nil || len(d.raw) == 0 {
		return []byte("null"), nil
	}
	return d.raw, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *DDO) UnmarshalJSON(data []byte) error {
	parsed, err := ParseDDO(data)
	if err != nil {
		return err
	}
	d.raw = parsed.raw
	return nil
}
