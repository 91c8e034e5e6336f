package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tidwall/gjson"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

const maxDecryptResponse = 10 << 20

// DecryptRequest identifies an encrypted document published on chain.
type DecryptRequest struct {
	DecryptorURL string
	ChainID      domain.ChainID
	TxID         string
	NFTAddress   string
	Payload      []byte
	MetadataHash string
}

// Decrypter turns an encrypted metadata payload into the document JSON.
type Decrypter interface {
	Decrypt(ctx context.Context, req DecryptRequest) ([]byte, error)
}

// DecrypterFunc adapts a function to Decrypter.
type DecrypterFunc func(ctx context.Context, req DecryptRequest) ([]byte, error)

func (f DecrypterFunc) Decrypt(ctx context.Context, req DecryptRequest) ([]byte, error) {
	return f(ctx, req)
}

// Decryptors picks a decrypter from the decryptor named in the event: an
// HTTP provider URL, this node's id, or another node's id.
type Decryptors struct {
	NodeID string
	HTTP   Decrypter
	Local  Decrypter
	Peer   Decrypter
}

func (d *Decryptors) Decrypt(ctx context.Context, req DecryptRequest) ([]byte, error) {
	var target Decrypter
	switch {
	case isHTTPURL(req.DecryptorURL):
		target = d.HTTP
	case d.NodeID != "" && req.DecryptorURL == d.NodeID:
		target = d.Local
	default:
		target = d.Peer
	}
	if target == nil {
		return nil, reject("no decrypter available for %q", req.DecryptorURL)
	}
	return target.Decrypt(ctx, req)
}

func isHTTPURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// HTTPDecrypter asks a provider's decrypt endpoint for the plaintext, with a
// fresh nonce and a signature from this node on every attempt.
type HTTPDecrypter struct {
	client     *http.Client
	signer     Signer
	maxElapsed time.Duration
	log        *slog.Logger
}

// NewHTTPDecrypter creates a provider client. A nil client uses a 30s
// timeout client.
func NewHTTPDecrypter(signer Signer, client *http.Client) *HTTPDecrypter {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPDecrypter{
		client:     client,
		signer:     signer,
		maxElapsed: 2 * time.Minute,
		log:        slog.Default(),
	}
}

// WithMaxElapsed bounds the total retry time of one Decrypt call.
func (d *HTTPDecrypter) WithMaxElapsed(max time.Duration) *HTTPDecrypter {
	d.maxElapsed = max
	return d
}

type decryptPayload struct {
	TransactionID    string         `json:"transactionId"`
	ChainID          domain.ChainID `json:"chainId"`
	DecrypterAddress string         `json:"decrypterAddress"`
	DataNftAddress   string         `json:"dataNftAddress"`
	Signature        string         `json:"signature"`
	Nonce            string         `json:"nonce"`
}

func (d *HTTPDecrypter) Decrypt(ctx context.Context, req DecryptRequest) ([]byte, error) {
	if d.signer == nil {
		return nil, reject("no signer configured for provider decryption")
	}
	base := strings.TrimRight(req.DecryptorURL, "/")
	address := d.signer.Address()
	subject := req.TxID
	if subject == "" {
		subject = req.NFTAddress
	}

	var document []byte
	attempt := func() error {
		nonce := d.nonce(ctx, base, address)
		signature, err := d.signer.SignMessage(subject + address + strconv.FormatUint(uint64(req.ChainID), 10) + nonce)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("sign decrypt request: %w", err))
		}

		body, _ := json.Marshal(decryptPayload{
			TransactionID:    req.TxID,
			ChainID:          req.ChainID,
			DecrypterAddress: address,
			DataNftAddress:   req.NFTAddress,
			Signature:        signature,
			Nonce:            nonce,
		})
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/services/decrypt", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(reject("invalid decryptor url %q: %v", req.DecryptorURL, err))
		}
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := d.client.Do(httpReq)
		if err != nil {
			d.log.Warn("Decrypt request failed, retrying", "decryptor", base, "error", err)
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(io.LimitReader(resp.Body, maxDecryptResponse))
		if err != nil {
			return err
		}

		switch {
		case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden:
			return backoff.Permanent(reject("provider refused decryption: %s: %s", resp.Status, strings.TrimSpace(string(data))))
		case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
			document = data
			return nil
		default:
			d.log.Warn("Decrypt request returned error status, retrying", "decryptor", base, "status", resp.StatusCode)
			return fmt.Errorf("provider returned %s", resp.Status)
		}
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 500 * time.Millisecond
	policy.MaxElapsedTime = d.maxElapsed
	if err := backoff.Retry(attempt, backoff.WithContext(policy, ctx)); err != nil {
		if IsRejected(err) {
			return nil, err
		}
		// A canceled context leaves the event retryable; an exhausted
		// provider rejects it.
		if ctx.Err() != nil {
			return nil, fmt.Errorf("decrypt via %s: %w", base, ctx.Err())
		}
		return nil, reject("decrypt via %s: %v", base, err)
	}

	hash, err := ContentHash(document)
	if err != nil {
		return nil, reject("provider returned invalid document: %v", err)
	}
	if !strings.EqualFold(hash, req.MetadataHash) {
		return nil, reject("decrypted document hash %s does not match metadata hash %s", hash, req.MetadataHash)
	}
	return document, nil
}

// nonce returns the provider's next nonce for address, falling back to the
// current unix time in milliseconds.
func (d *HTTPDecrypter) nonce(ctx context.Context, base, address string) string {
	fallback := strconv.FormatInt(time.Now().UnixMilli(), 10)

	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/services/nonce?userAddress="+url.QueryEscape(address), nil)
	if err != nil {
		return fallback
	}
	resp, err := d.client.Do(req)
	if err != nil {
		d.log.Debug("Nonce request failed, using timestamp", "decryptor", base, "error", err)
		return fallback
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fallback
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fallback
	}
	n := gjson.GetBytes(data, "nonce")
	if !n.Exists() {
		return fallback
	}
	current, err := strconv.ParseInt(n.String(), 10, 64)
	if err != nil {
		return fallback
	}
	return strconv.FormatInt(current+1, 10)
}
