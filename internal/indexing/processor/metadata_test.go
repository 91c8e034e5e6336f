package processor

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

func TestMetadataCreated_PersistsDocument(t *testing.T) {
	f := newFixture(t)
	f.contracts.prices[strings.ToLower(testDatatoken)] = []domain.Price{
		{Type: domain.PriceTypeDispenser, Price: "0", Contract: "0x00000000000000000000000000000000000000c1"},
	}

	res, err := f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.NoError(t, err)
	assert.Equal(t, testDID(), res.DID)
	assert.Equal(t, uint64(102), res.Block)

	doc := f.stored(t)
	im, err := doc.IndexedMetadata()
	require.NoError(t, err)

	assert.Equal(t, uint64(102), im.Event.Block)
	assert.Equal(t, "0xaaa", im.Event.TxID)
	assert.Equal(t, common.HexToAddress(testOwner).Hex(), im.Event.From)
	assert.Equal(t, "2023-11-14T22:13:20.000Z", im.Event.Datetime)
	assert.Equal(t, common.HexToAddress(testOwner).Hex(), im.NFT.Owner)
	assert.Equal(t, domain.NFTStateActive, im.NFT.State)
	assert.False(t, im.Purgatory.State)

	require.Len(t, im.Stats, 1)
	assert.Equal(t, "svc-1", im.Stats[0].ServiceID)
	assert.Equal(t, 0, im.Stats[0].Orders)
	require.Len(t, im.Stats[0].Prices, 1)
	assert.Equal(t, domain.PriceTypeDispenser, im.Stats[0].Prices[0].Type)

	assert.Equal(t, testChain, doc.ChainID())
	assert.Equal(t, common.HexToAddress(testNFT).Hex(), doc.NFTAddress())
	assert.Equal(t, "DT1", doc.Get("datatokens.0.symbol").String())

	st := f.state(t)
	assert.True(t, st.Valid)
	assert.Equal(t, "0xaaa", st.TxID)
}

func TestMetadataCreated_ReplayKeepsValidState(t *testing.T) {
	f := newFixture(t)
	reg := f.registry()
	ev := createdEvent(t, "0xaaa", 102)

	_, err := reg.Process(context.Background(), ev)
	require.NoError(t, err)

	_, err = reg.Process(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, IsRejected(err))

	assert.Equal(t, int64(1), f.count(t))
	st := f.state(t)
	assert.True(t, st.Valid)
	assert.Empty(t, st.Error)
	assert.Equal(t, "0xaaa", st.TxID)
}

func TestMetadataCreated_ActiveDocumentRejected(t *testing.T) {
	f := newFixture(t)
	reg := f.registry()

	_, err := reg.Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.NoError(t, err)

	_, err = reg.Process(context.Background(), createdEvent(t, "0xbbb", 103))
	require.Error(t, err)
	assert.True(t, IsRejected(err))

	assert.Equal(t, int64(1), f.count(t))
	st := f.state(t)
	assert.False(t, st.Valid)
	assert.Contains(t, st.Error, "already exists")
}

func TestMetadataCreated_ChecksumMismatch(t *testing.T) {
	f := newFixture(t)
	doc := testDocument(t, testDID())
	ev := encodeMetadata(t, metadataLog{doc: doc, hash: [32]byte{0xde, 0xad}, txHash: "0xbbb", block: 102})

	_, err := f.registry().Process(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, IsRejected(err))

	assert.Equal(t, int64(0), f.count(t))
	st := f.state(t)
	assert.False(t, st.Valid)
	assert.Contains(t, st.Error, "checksum mismatch")
}

func TestMetadataCreated_IDMismatch(t *testing.T) {
	f := newFixture(t)
	doc := testDocument(t, "did:op:0000")
	ev := encodeMetadata(t, metadataLog{doc: doc, hash: checksumOf(t, doc), txHash: "0xccc", block: 102})

	_, err := f.registry().Process(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Contains(t, f.state(t).Error, "does not match")
	assert.Equal(t, int64(0), f.count(t))
}

func TestMetadataCreated_NotDeployedByFactory(t *testing.T) {
	f := newFixture(t)
	f.contracts.deployed = map[string]bool{}

	_, err := f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Contains(t, f.state(t).Error, "not deployed by factory")
}

func TestMetadataCreated_RPCFailureIsTransient(t *testing.T) {
	f := newFixture(t)
	f.contracts.err = errRPC

	_, err := f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.Error(t, err)
	assert.False(t, IsRejected(err))
	assert.ErrorIs(t, err, errRPC)
}

func TestMetadataCreated_HexPayload(t *testing.T) {
	f := newFixture(t)
	doc := testDocument(t, testDID())
	hexDoc := []byte("0x" + common.Bytes2Hex(doc))
	ev := encodeMetadata(t, metadataLog{doc: hexDoc, hash: checksumOf(t, doc), txHash: "0xaaa", block: 102})

	_, err := f.registry().Process(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.count(t))
}

func TestMetadataCreated_StripsIncomingIndexedMetadata(t *testing.T) {
	f := newFixture(t)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(testDocument(t, testDID()), &doc))
	doc["indexedMetadata"] = map[string]any{"purgatory": map[string]any{"state": true}}
	withMeta, err := json.Marshal(doc)
	require.NoError(t, err)

	delete(doc, "indexedMetadata")
	plain, err := json.Marshal(doc)
	require.NoError(t, err)

	ev := encodeMetadata(t, metadataLog{doc: withMeta, hash: checksumOf(t, plain), txHash: "0xaaa", block: 102})
	_, err = f.registry().Process(context.Background(), ev)
	require.NoError(t, err)
	assert.False(t, f.stored(t).Get("indexedMetadata.purgatory.state").Bool())
}

func TestMetadataUpdated_StaleRejected(t *testing.T) {
	f := newFixture(t)
	reg := f.registry()

	_, err := reg.Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.NoError(t, err)
	before := f.stored(t).Bytes()

	tests := []struct {
		name   string
		txHash string
		block  uint64
	}{
		{"same block", "0xbbb", 102},
		{"older block", "0xccc", 101},
		{"same transaction", "0xaaa", 110},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reg.Process(context.Background(), updatedEvent(t, tt.txHash, tt.block))
			require.Error(t, err)
			assert.True(t, IsRejected(err))
			assert.JSONEq(t, string(before), string(f.stored(t).Bytes()))
		})
	}
}

func TestMetadataUpdated_NewerBlockReplaces(t *testing.T) {
	f := newFixture(t)
	reg := f.registry()

	_, err := reg.Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.NoError(t, err)

	doc := f.stored(t)
	require.NoError(t, doc.Set("indexedMetadata.stats.0.orders", 7))
	require.NoError(t, f.ddos.Update(context.Background(), doc))

	_, err = reg.Process(context.Background(), updatedEvent(t, "0xbbb", 150))
	require.NoError(t, err)

	im, err := f.stored(t).IndexedMetadata()
	require.NoError(t, err)
	assert.Equal(t, uint64(150), im.Event.Block)
	assert.Equal(t, "0xbbb", im.Event.TxID)
	require.Len(t, im.Stats, 1)
	assert.Equal(t, 7, im.Stats[0].Orders)
}

func TestMetadataUpdated_MissingDocument(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry().Process(context.Background(), updatedEvent(t, "0xbbb", 150))
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Equal(t, int64(0), f.count(t))
}

func TestMetadata_AuthorizedPublishers(t *testing.T) {
	f := newFixture(t)
	f.deps.Config.AuthorizedPublishers = []string{"0x00000000000000000000000000000000000000ff"}

	_, err := f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.Error(t, err)
	assert.True(t, IsRejected(err))

	f.deps.Config.AuthorizedPublishers = []string{strings.ToUpper(testOwner)}
	_, err = f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.NoError(t, err)
}

func TestMetadata_AccessLists(t *testing.T) {
	f := newFixture(t)
	list := "0x00000000000000000000000000000000000000e1"
	f.deps.Config.AccessLists = []string{list}

	_, err := f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.Error(t, err)
	assert.True(t, IsRejected(err))

	f.contracts.access[list+"/"+testOwner] = true
	_, err = f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.NoError(t, err)
}

func TestMetadata_AccessListRPCFailureIsTransient(t *testing.T) {
	f := newFixture(t)
	f.deps.Config.AccessLists = []string{"0x00000000000000000000000000000000000000e1"}
	f.contracts.accessErr = errRPC

	_, err := f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.Error(t, err)
	assert.False(t, IsRejected(err))
	assert.ErrorIs(t, err, errRPC)
	assert.Equal(t, int64(0), f.count(t))

	f.contracts.accessErr = errors.New("execution reverted")
	_, err = f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.Error(t, err)
	assert.True(t, IsRejected(err))
}

func TestMetadata_PolicyServer(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("publisher blocked"))
	}))
	defer srv.Close()

	f := newFixture(t)
	f.deps.Policy = NewPolicyServer(srv.URL, srv.Client())

	_, err := f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Contains(t, err.Error(), "publisher blocked")
	assert.Equal(t, int64(0), f.count(t))

	assert.Equal(t, PolicyActionNewDDO, got["action"])
	assert.Equal(t, "0xaaa", got["txId"])
	assert.Equal(t, float64(testChain), got["chainId"])
	assert.Equal(t, testDID(), got["rawDDO"].(map[string]any)["id"])
}

func TestMetadata_PolicyServerUnreachableIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	f := newFixture(t)
	f.deps.Policy = NewPolicyServer(url, nil)

	_, err := f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.Error(t, err)
	assert.False(t, IsRejected(err))
}

type bannedList struct {
	assets   map[string]bool
	accounts map[string]bool
}

func (b bannedList) IsBannedAsset(did string) bool { return b.assets[did] }
func (b bannedList) IsBannedAccount(address string) bool {
	return b.accounts[strings.ToLower(address)]
}

func TestMetadata_PurgatoryFlagsDocument(t *testing.T) {
	f := newFixture(t)
	f.deps.Purgatory = bannedList{accounts: map[string]bool{testOwner: true}}

	_, err := f.registry().Process(context.Background(), createdEvent(t, "0xaaa", 102))
	require.NoError(t, err)
	assert.True(t, f.stored(t).Get("indexedMetadata.purgatory.state").Bool())
}

func TestMetadata_EncryptedPayload(t *testing.T) {
	f := newFixture(t)
	doc := testDocument(t, testDID())
	hash, err := ContentHash(doc)
	require.NoError(t, err)

	var seen DecryptRequest
	f.deps.Decrypter = DecrypterFunc(func(ctx context.Context, req DecryptRequest) ([]byte, error) {
		seen = req
		return doc, nil
	})

	ev := encodeMetadata(t, metadataLog{
		doc: []byte("ciphertext"), hash: common.HexToHash(hash), flags: []byte{flagEncrypted},
		url: "https://provider.example", txHash: "0xaaa", block: 102,
	})
	_, err = f.registry().Process(context.Background(), ev)
	require.NoError(t, err)

	assert.Equal(t, "https://provider.example", seen.DecryptorURL)
	assert.Equal(t, []byte("ciphertext"), seen.Payload)
	assert.Equal(t, hash, seen.MetadataHash)
	assert.Equal(t, int64(1), f.count(t))
}

func TestMetadata_EncryptedWithoutDecrypter(t *testing.T) {
	f := newFixture(t)
	ev := encodeMetadata(t, metadataLog{
		doc: []byte("ciphertext"), flags: []byte{flagEncrypted}, url: "https://provider.example", txHash: "0xaaa", block: 102,
	})

	_, err := f.registry().Process(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, IsRejected(err))
}

func TestMetadata_ZeroAddressService(t *testing.T) {
	f := newFixture(t)
	doc := map[string]any{
		"id":       testDID(),
		"version":  "4.1.0",
		"services": []map[string]any{{"id": "compute", "datatokenAddress": common.Address{}.Hex()}},
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	ev := encodeMetadata(t, metadataLog{doc: raw, hash: checksumOf(t, raw), txHash: "0xaaa", block: 102})
	_, err = f.registry().Process(context.Background(), ev)
	require.NoError(t, err)

	stored := f.stored(t)
	assert.Equal(t, "Datatoken0", stored.Get("datatokens.0.name").String())
	assert.Equal(t, "DT0", stored.Get("datatokens.0.symbol").String())
	assert.False(t, stored.Get("indexedMetadata.stats.0").Exists())
}
