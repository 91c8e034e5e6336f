package processor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"
)

// PurgatoryChecker reports banned assets and accounts.
type PurgatoryChecker interface {
	IsBannedAsset(did string) bool
	IsBannedAccount(address string) bool
}

// NoPurgatory bans nothing.
type NoPurgatory struct{}

func (NoPurgatory) IsBannedAsset(string) bool   { return false }
func (NoPurgatory) IsBannedAccount(string) bool { return false }

// Purgatory holds the asset and account ban lists, refreshed from JSON
// array endpoints.
type Purgatory struct {
	assetsURL   string
	accountsURL string
	client      *http.Client
	log         *slog.Logger

	mu       sync.RWMutex
	assets   map[string]struct{}
	accounts map[string]struct{}
}

// NewPurgatory creates a ban list reader. Either URL may be empty.
func NewPurgatory(assetsURL, accountsURL string, client *http.Client, log *slog.Logger) *Purgatory {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Purgatory{
		assetsURL:   assetsURL,
		accountsURL: accountsURL,
		client:      client,
		log:         log,
		assets:      make(map[string]struct{}),
		accounts:    make(map[string]struct{}),
	}
}

// Enabled reports whether any list is configured.
func (p *Purgatory) Enabled() bool {
	return p.assetsURL != "" || p.accountsURL != ""
}

func (p *Purgatory) IsBannedAsset(did string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.assets[did]
	return ok
}

func (p *Purgatory) IsBannedAccount(address string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.accounts[strings.ToLower(address)]
	return ok
}

// Refresh reloads both lists. A list that fails to load keeps its previous
// content.
func (p *Purgatory) Refresh(ctx context.Context) error {
	var errs []string
	if p.assetsURL != "" {
		assets, err := p.fetch(ctx, p.assetsURL, "did", false)
		if err != nil {
			errs = append(errs, err.Error())
		} else {
			p.mu.Lock()
			p.assets = assets
			p.mu.Unlock()
		}
	}
	if p.accountsURL != "" {
		accounts, err := p.fetch(ctx, p.accountsURL, "address", true)
		if err != nil {
			errs = append(errs, err.Error())
		} else {
			p.mu.Lock()
			p.accounts = accounts
			p.mu.Unlock()
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("purgatory refresh: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Run refreshes the lists every interval until ctx is cancelled.
func (p *Purgatory) Run(ctx context.Context, interval time.Duration) {
	if !p.Enabled() {
		return
	}
	if err := p.Refresh(ctx); err != nil {
		p.log.Warn("Failed to load purgatory lists", "error", err)
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.log.Warn("Failed to refresh purgatory lists", "error", err)
			}
		}
	}
}

func (p *Purgatory) fetch(ctx context.Context, url, field string, lower bool) (map[string]struct{}, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned %s", url, resp.Status)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return nil, err
	}
	list := gjson.ParseBytes(data)
	if !list.IsArray() {
		return nil, fmt.Errorf("%s did not return a JSON array", url)
	}

	out := make(map[string]struct{})
	list.ForEach(func(_, entry gjson.Result) bool {
		v := entry.Get(field).String()
		if v == "" {
			return true
		}
		if lower {
			v = strings.ToLower(v)
		}
		out[v] = struct{}{}
		return true
	})
	return out, nil
}
