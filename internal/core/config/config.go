package config

import (
	"time"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
	redisclient "github.com/vietddude/ocean-indexer/internal/infra/redis"
	"github.com/vietddude/ocean-indexer/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Indexer  IndexerConfig      `yaml:"indexer"`
	Chains   []ChainConfig      `yaml:"chains"`
	Redis    redisclient.Config `yaml:"redis"` // empty url keeps reindex queues in memory
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"` // empty url keeps documents in memory
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // optional rotated log file
}

// IndexerConfig holds settings shared by every chain.
type IndexerConfig struct {
	Interval          time.Duration `yaml:"interval"`
	ChunkSize         int           `yaml:"chunk_size"`
	RecoverAfter      int           `yaml:"recover_after"`
	NodeID            string        `yaml:"node_id"`
	PrivateKey        string        `yaml:"private_key"`
	PolicyServerURL   string        `yaml:"policy_server_url"`
	AssetPurgatoryURL string        `yaml:"asset_purgatory_url"`
	AccountPurgatory  string        `yaml:"account_purgatory_url"`
	PurgatoryInterval time.Duration `yaml:"purgatory_interval"`
	HTTPTimeout       time.Duration `yaml:"http_timeout"`

	// AuthorizedPublishers restricts document owners on every chain.
	AuthorizedPublishers []string `yaml:"authorized_publishers"`
}

// ChainConfig holds settings for a specific chain.
type ChainConfig struct {
	ChainID        domain.ChainID `yaml:"id"`
	RPCs           []string       `yaml:"rpcs"`
	RPCTimeout     time.Duration  `yaml:"rpc_timeout"`
	DeployBlock    *uint64        `yaml:"deploy_block"` // unset means unknown
	StartBlock     uint64         `yaml:"start_block"`
	ChunkSize      int            `yaml:"chunk_size"` // 0 uses indexer.chunk_size
	FactoryAddress string         `yaml:"factory_address"`
	RouterAddress  string         `yaml:"router_address"`
	AccessLists    []string       `yaml:"access_lists"`
}

// Chain returns the configuration of chainID.
func (c *AppConfig) Chain(chainID domain.ChainID) (ChainConfig, bool) {
	for _, ch := range c.Chains {
		if ch.ChainID == chainID {
			return ch, true
		}
	}
	return ChainConfig{}, false
}
