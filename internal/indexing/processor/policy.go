package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

const (
	PolicyActionNewDDO    = "newDDO"
	PolicyActionUpdateDDO = "updateDDO"
)

// PolicyRequest is the context a policy server decides on.
type PolicyRequest struct {
	Action   string
	Document *domain.DDO
	ChainID  domain.ChainID
	TxID     string
	Event    domain.EventRecord
}

// PolicyChecker gates documents before they are stored. A nil error allows
// the document.
type PolicyChecker interface {
	Check(ctx context.Context, req PolicyRequest) error
}

// AllowAll accepts every document.
type AllowAll struct{}

func (AllowAll) Check(context.Context, PolicyRequest) error { return nil }

// PolicyServer asks an external HTTP service for a decision.
type PolicyServer struct {
	url    string
	client *http.Client
}

// NewPolicyServer creates a checker for url. An empty url allows everything.
func NewPolicyServer(url string, client *http.Client) *PolicyServer {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &PolicyServer{url: url, client: client}
}

type policyEvent struct {
	TxHash      string   `json:"transactionHash"`
	BlockNumber uint64   `json:"blockNumber"`
	LogIndex    uint     `json:"logIndex"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
}

type policyPayload struct {
	Action   string         `json:"action"`
	RawDDO   *domain.DDO    `json:"rawDDO"`
	ChainID  domain.ChainID `json:"chainId"`
	TxID     string         `json:"txId"`
	EventRaw policyEvent    `json:"eventRaw"`
}

func (p *PolicyServer) Check(ctx context.Context, req PolicyRequest) error {
	if p.url == "" {
		return nil
	}
	body, err := json.Marshal(policyPayload{
		Action:  req.Action,
		RawDDO:  req.Document,
		ChainID: req.ChainID,
		TxID:    req.TxID,
		EventRaw: policyEvent{
			TxHash:      req.Event.TxHash,
			BlockNumber: req.Event.BlockNumber,
			LogIndex:    req.Event.LogIndex,
			Address:     req.Event.Address,
			Topics:      req.Event.Topics,
			Data:        fmt.Sprintf("0x%x", req.Event.Data),
		},
	})
	if err != nil {
		return fmt.Errorf("encode policy request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build policy request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("policy server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		return reject("policy server denied %s: %s", req.Action, strings.TrimSpace(string(msg)))
	}
	return nil
}
