package config

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v2"
)

const (
	defaultPort              = 8080
	defaultInterval          = 30 * time.Second
	defaultChunkSize         = 100
	defaultRecoverAfter      = 3
	defaultPurgatoryInterval = time.Hour
	defaultHTTPTimeout       = 15 * time.Second
)

// envOverrides are process environment variables that win over the file.
type envOverrides struct {
	IntervalMS           int64    `env:"INDEXER_INTERVAL"`
	AssetPurgatoryURL    string   `env:"ASSET_PURGATORY_URL"`
	AccountPurgatoryURL  string   `env:"ACCOUNT_PURGATORY_URL"`
	PolicyServerURL      string   `env:"POLICY_SERVER_URL"`
	AuthorizedPublishers []string `env:"AUTHORIZED_PUBLISHERS"`
	NodeID               string   `env:"NODE_ID"`
	PrivateKey           string   `env:"PRIVATE_KEY"`
	DatabaseURL          string   `env:"DB_URL"`
	RedisURL             string   `env:"REDIS_URL"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process(context.Background(), &env); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	env.apply(&cfg)

	applyDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (e envOverrides) apply(cfg *AppConfig) {
	if e.IntervalMS > 0 {
		cfg.Indexer.Interval = time.Duration(e.IntervalMS) * time.Millisecond
	}
	setIf(&cfg.Indexer.AssetPurgatoryURL, e.AssetPurgatoryURL)
	setIf(&cfg.Indexer.AccountPurgatory, e.AccountPurgatoryURL)
	setIf(&cfg.Indexer.PolicyServerURL, e.PolicyServerURL)
	setIf(&cfg.Indexer.NodeID, e.NodeID)
	setIf(&cfg.Indexer.PrivateKey, e.PrivateKey)
	setIf(&cfg.Database.URL, e.DatabaseURL)
	setIf(&cfg.Redis.URL, e.RedisURL)
	if len(e.AuthorizedPublishers) > 0 {
		cfg.Indexer.AuthorizedPublishers = e.AuthorizedPublishers
	}
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaultPort
	}
	if cfg.Indexer.Interval == 0 {
		cfg.Indexer.Interval = defaultInterval
	}
	if cfg.Indexer.ChunkSize == 0 {
		cfg.Indexer.ChunkSize = defaultChunkSize
	}
	if cfg.Indexer.RecoverAfter == 0 {
		cfg.Indexer.RecoverAfter = defaultRecoverAfter
	}
	if cfg.Indexer.PurgatoryInterval == 0 {
		cfg.Indexer.PurgatoryInterval = defaultPurgatoryInterval
	}
	if cfg.Indexer.HTTPTimeout == 0 {
		cfg.Indexer.HTTPTimeout = defaultHTTPTimeout
	}

	for i := range cfg.Chains {
		if cfg.Chains[i].ChunkSize == 0 {
			cfg.Chains[i].ChunkSize = cfg.Indexer.ChunkSize
		}
		if cfg.Chains[i].RPCTimeout == 0 {
			cfg.Chains[i].RPCTimeout = 30 * time.Second
		}
	}
}

// Validate reports configuration that cannot run.
func (c *AppConfig) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("no chains configured")
	}
	seen := make(map[uint64]bool)
	for _, ch := range c.Chains {
		if ch.ChainID == 0 {
			return fmt.Errorf("chain without id")
		}
		if seen[uint64(ch.ChainID)] {
			return fmt.Errorf("chain %d configured twice", ch.ChainID)
		}
		seen[uint64(ch.ChainID)] = true
		if len(ch.RPCs) == 0 {
			return fmt.Errorf("chain %d: no rpcs", ch.ChainID)
		}
		if strings.TrimSpace(ch.FactoryAddress) == "" {
			return fmt.Errorf("chain %d: factory_address is required", ch.ChainID)
		}
	}
	return nil
}
