package classifier

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

func TestClassify_KnownSignatures(t *testing.T) {
	c := New()

	tests := []struct {
		signature string
		want      domain.EventKind
	}{
		{"MetadataCreated(address,uint8,string,bytes,bytes,bytes32,uint256,uint256)", domain.EventMetadataCreated},
		{"MetadataUpdated(address,uint8,string,bytes,bytes,bytes32,uint256,uint256)", domain.EventMetadataUpdated},
		{"MetadataState(address,uint8,uint256,uint256)", domain.EventMetadataState},
		{"OrderStarted(address,address,uint256,uint256,uint256,address,uint256)", domain.EventOrderStarted},
		{"OrderReused(bytes32,address,uint256,uint256)", domain.EventOrderReused},
		{"DispenserCreated(address,address,uint256,uint256,address)", domain.EventDispenserCreated},
		{"DispenserActivated(address)", domain.EventDispenserActivated},
		{"DispenserDeactivated(address)", domain.EventDispenserDeactivated},
		{"ExchangeCreated(bytes32,address,address,address,uint256)", domain.EventExchangeCreated},
		{"ExchangeActivated(bytes32,address)", domain.EventExchangeActivated},
		{"ExchangeDeactivated(bytes32,address)", domain.EventExchangeDeactivated},
		{"ExchangeRateChanged(bytes32,address,uint256)", domain.EventExchangeRateChanged},
	}

	for _, tt := range tests {
		topic := crypto.Keccak256Hash([]byte(tt.signature)).Hex()
		kind, ok := c.Classify(domain.EventRecord{Topics: []string{topic}})
		if !ok || kind != tt.want {
			t.Errorf("Classify(%s) = %q, %v; want %q", tt.signature, kind, ok, tt.want)
		}
	}
	assert.Len(t, c.Topics(), len(tests))
}

func TestClassify_UnknownSignature(t *testing.T) {
	c := New()

	transfer := crypto.Keccak256Hash([]byte("Transfer(address,address,uint256)")).Hex()
	kind, ok := c.Classify(domain.EventRecord{Topics: []string{transfer}})
	assert.False(t, ok)
	assert.Equal(t, domain.EventUnknown, kind)

	kind, ok = c.Classify(domain.EventRecord{})
	assert.False(t, ok)
	assert.Equal(t, domain.EventUnknown, kind)
}

func TestClassifyAll_SkipsUnknown(t *testing.T) {
	c := New()

	known, err := Encode(domain.EventDispenserActivated, []common.Hash{common.HexToHash("0x01")})
	require.NoError(t, err)
	unknown := domain.EventRecord{Topics: []string{crypto.Keccak256Hash([]byte("Foo()")).Hex()}}

	events := c.ClassifyAll(domain.ChainIDDevelopment, []domain.EventRecord{unknown, known, unknown})
	require.Len(t, events, 1)
	assert.Equal(t, domain.EventDispenserActivated, events[0].Kind)
	assert.Equal(t, domain.ChainIDDevelopment, events[0].ChainID)
}

func TestDecode_MetadataCreated(t *testing.T) {
	owner := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	hash := [32]byte{1, 2, 3}

	rec, err := Encode(domain.EventMetadataCreated,
		[]common.Hash{common.BytesToHash(owner.Bytes())},
		uint8(0), "http://provider", []byte{0x02}, []byte(`{"id":"x"}`), hash, big.NewInt(1700000000), big.NewInt(102),
	)
	require.NoError(t, err)

	args, err := Decode(domain.Event{Kind: domain.EventMetadataCreated, Record: rec})
	require.NoError(t, err)

	assert.Equal(t, owner, args["createdBy"])
	assert.Equal(t, uint8(0), args["state"])
	assert.Equal(t, "http://provider", args["decryptorUrl"])
	assert.Equal(t, []byte{0x02}, args["flags"])
	assert.Equal(t, []byte(`{"id":"x"}`), args["data"])
	assert.Equal(t, hash, args["metaDataHash"])
	assert.Equal(t, int64(102), args["blockNumber"].(*big.Int).Int64())
}

func TestDecode_IndexedOnly(t *testing.T) {
	exchangeID := common.HexToHash("0xabcdef")
	owner := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	rec, err := Encode(domain.EventExchangeActivated,
		[]common.Hash{exchangeID, common.BytesToHash(owner.Bytes())})
	require.NoError(t, err)

	args, err := Decode(domain.Event{Kind: domain.EventExchangeActivated, Record: rec})
	require.NoError(t, err)
	assert.Equal(t, [32]byte(exchangeID), args["exchangeId"])
	assert.Equal(t, owner, args["exchangeOwner"])
}

func TestDecode_MissingTopics(t *testing.T) {
	rec, err := Encode(domain.EventDispenserActivated, nil)
	require.NoError(t, err)

	_, err = Decode(domain.Event{Kind: domain.EventDispenserActivated, Record: rec})
	assert.Error(t, err)
}
