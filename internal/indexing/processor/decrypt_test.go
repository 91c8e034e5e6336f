package processor

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSigner(t *testing.T) *KeySigner {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer, err := NewKeySigner("0x" + hex.EncodeToString(crypto.FromECDSA(key)))
	require.NoError(t, err)
	return signer
}

func recoverSigner(t *testing.T, message, signature string) string {
	t.Helper()
	sig, err := hexutil.Decode(signature)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	sig[64] -= 27
	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	require.NoError(t, err)
	return crypto.PubkeyToAddress(*pub).Hex()
}

func TestKeySigner_SignMessage(t *testing.T) {
	signer := newTestSigner(t)

	sig, err := signer.SignMessage("hello")
	require.NoError(t, err)
	raw, err := hexutil.Decode(sig)
	require.NoError(t, err)
	assert.Contains(t, []byte{27, 28}, raw[64])
	assert.Equal(t, signer.Address(), recoverSigner(t, "hello", sig))
}

func TestNewKeySigner_Invalid(t *testing.T) {
	_, err := NewKeySigner("not-a-key")
	assert.Error(t, err)
}

// fakeProvider serves the nonce and decrypt endpoints of a provider.
type fakeProvider struct {
	t        *testing.T
	signer   *KeySigner
	document []byte
	failures int32
	status   int
	calls    atomic.Int32
	payload  decryptPayload
}

func (p *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/api/services/nonce":
		assert.Equal(p.t, p.signer.Address(), r.URL.Query().Get("userAddress"))
		_, _ = w.Write([]byte(`{"nonce":4}`))
	case "/api/services/decrypt":
		n := p.calls.Add(1)
		if p.status != 0 {
			w.WriteHeader(p.status)
			_, _ = w.Write([]byte("denied"))
			return
		}
		if n <= p.failures {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&p.payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write(p.document)
	default:
		http.NotFound(w, r)
	}
}

func decryptRequest(t *testing.T, url string, doc []byte) DecryptRequest {
	t.Helper()
	hash, err := ContentHash(doc)
	require.NoError(t, err)
	return DecryptRequest{
		DecryptorURL: url,
		ChainID:      testChain,
		TxID:         "0xaaa",
		NFTAddress:   testNFT,
		Payload:      []byte("ciphertext"),
		MetadataHash: hash,
	}
}

func TestHTTPDecrypter_SignsRequest(t *testing.T) {
	signer := newTestSigner(t)
	doc := testDocument(t, testDID())
	provider := &fakeProvider{t: t, signer: signer, document: doc}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	d := NewHTTPDecrypter(signer, srv.Client())
	got, err := d.Decrypt(context.Background(), decryptRequest(t, srv.URL, doc))
	require.NoError(t, err)
	assert.Equal(t, doc, got)

	p := provider.payload
	assert.Equal(t, "0xaaa", p.TransactionID)
	assert.Equal(t, testChain, p.ChainID)
	assert.Equal(t, signer.Address(), p.DecrypterAddress)
	assert.Equal(t, testNFT, p.DataNftAddress)
	assert.Equal(t, "5", p.Nonce)
	assert.Equal(t, signer.Address(), recoverSigner(t, "0xaaa"+signer.Address()+"8996"+"5", p.Signature))
}

func TestHTTPDecrypter_RetriesServerErrors(t *testing.T) {
	signer := newTestSigner(t)
	doc := testDocument(t, testDID())
	provider := &fakeProvider{t: t, signer: signer, document: doc, failures: 2}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	d := NewHTTPDecrypter(signer, srv.Client()).WithMaxElapsed(10 * time.Second)
	_, err := d.Decrypt(context.Background(), decryptRequest(t, srv.URL, doc))
	require.NoError(t, err)
	assert.Equal(t, int32(3), provider.calls.Load())
}

func TestHTTPDecrypter_ForbiddenIsTerminal(t *testing.T) {
	signer := newTestSigner(t)
	doc := testDocument(t, testDID())
	provider := &fakeProvider{t: t, signer: signer, document: doc, status: http.StatusForbidden}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	d := NewHTTPDecrypter(signer, srv.Client())
	_, err := d.Decrypt(context.Background(), decryptRequest(t, srv.URL, doc))
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Equal(t, int32(1), provider.calls.Load())
}

func TestHTTPDecrypter_HashMismatch(t *testing.T) {
	signer := newTestSigner(t)
	doc := testDocument(t, testDID())
	provider := &fakeProvider{t: t, signer: signer, document: []byte(`{"id":"other"}`)}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	d := NewHTTPDecrypter(signer, srv.Client())
	_, err := d.Decrypt(context.Background(), decryptRequest(t, srv.URL, doc))
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Contains(t, err.Error(), "does not match")
}

func TestHTTPDecrypter_UnreachableIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	d := NewHTTPDecrypter(newTestSigner(t), nil).WithMaxElapsed(time.Second)
	_, err := d.Decrypt(context.Background(), decryptRequest(t, url, testDocument(t, testDID())))
	require.Error(t, err)
	assert.True(t, IsRejected(err))
}

func TestHTTPDecrypter_ServerErrorsExhaustedIsRejected(t *testing.T) {
	signer := newTestSigner(t)
	doc := testDocument(t, testDID())
	provider := &fakeProvider{t: t, signer: signer, document: doc, status: http.StatusBadGateway}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	d := NewHTTPDecrypter(signer, srv.Client()).WithMaxElapsed(300 * time.Millisecond)
	_, err := d.Decrypt(context.Background(), decryptRequest(t, srv.URL, doc))
	require.Error(t, err)
	assert.True(t, IsRejected(err))
	assert.Contains(t, err.Error(), "502")
	assert.GreaterOrEqual(t, provider.calls.Load(), int32(1))
}

func TestHTTPDecrypter_CanceledIsNotRejected(t *testing.T) {
	signer := newTestSigner(t)
	doc := testDocument(t, testDID())
	provider := &fakeProvider{t: t, signer: signer, document: doc, status: http.StatusBadGateway}
	srv := httptest.NewServer(provider)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := NewHTTPDecrypter(signer, srv.Client())
	_, err := d.Decrypt(ctx, decryptRequest(t, srv.URL, doc))
	require.Error(t, err)
	assert.False(t, IsRejected(err))
}

func TestDecryptors_Routing(t *testing.T) {
	var used string
	named := func(name string) Decrypter {
		return DecrypterFunc(func(context.Context, DecryptRequest) ([]byte, error) {
			used = name
			return nil, nil
		})
	}
	d := &Decryptors{NodeID: "16Uiu2local", HTTP: named("http"), Local: named("local"), Peer: named("peer")}

	tests := []struct {
		decryptor string
		want      string
	}{
		{"https://provider.example", "http"},
		{"http://localhost:8030", "http"},
		{"16Uiu2local", "local"},
		{"16Uiu2remote", "peer"},
	}
	for _, tt := range tests {
		_, err := d.Decrypt(context.Background(), DecryptRequest{DecryptorURL: tt.decryptor})
		require.NoError(t, err)
		if used != tt.want {
			t.Errorf("decryptor %q routed to %q, want %q", tt.decryptor, used, tt.want)
		}
	}

	_, err := (&Decryptors{}).Decrypt(context.Background(), DecryptRequest{DecryptorURL: "16Uiu2remote"})
	assert.True(t, IsRejected(err))
}
