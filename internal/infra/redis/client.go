package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/ocean-indexer/internal/core/domain"
)

// Client wraps Redis operations for the durable reindex queues.
type Client struct {
	rdb *redis.Client
}

// Config holds Redis connection configuration.
type Config struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
}

// NewClient creates a new Redis client.
func NewClient(cfg Config) (*Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func queueKey(chainID domain.ChainID) string {
	return fmt.Sprintf("reindex_queue:%d", chainID)
}

// ReindexQueue is a FIFO of reindex tasks stored as a Redis list: LPUSH on
// push, RPOP on pop.
type ReindexQueue struct {
	rdb *redis.Client
	key string
}

// ReindexQueue returns the queue of a chain.
func (c *Client) ReindexQueue(chainID domain.ChainID) *ReindexQueue {
	return &ReindexQueue{rdb: c.rdb, key: queueKey(chainID)}
}

func (q *ReindexQueue) Push(ctx context.Context, task domain.ReindexTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	if err := q.rdb.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("lpush failed: %w", err)
	}
	return nil
}

func (q *ReindexQueue) Pop(ctx context.Context) (*domain.ReindexTask, error) {
	data, err := q.rdb.RPop(ctx, q.key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("rpop failed: %w", err)
	}
	var task domain.ReindexTask
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("invalid task %q: %w", data, err)
	}
	return &task, nil
}

func (q *ReindexQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.key).Result()
}
