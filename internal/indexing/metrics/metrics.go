package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BlocksProcessed tracks total blocks scanned per chain
	BlocksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocean_indexer_blocks_processed_total",
			Help: "Total number of blocks scanned",
		},
		[]string{"chain"},
	)

	// EventsProcessed tracks classified events by kind and outcome
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocean_indexer_events_processed_total",
			Help: "Total number of contract events handed to processors",
		},
		[]string{"chain", "event", "result"},
	)

	// UnknownEvents tracks logs whose signature is not in the event table
	UnknownEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocean_indexer_unknown_events_total",
			Help: "Total number of logs skipped because their signature is unknown",
		},
		[]string{"chain"},
	)

	// DocumentsWritten tracks document writes by operation
	DocumentsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocean_indexer_documents_written_total",
			Help: "Total number of documents created or updated",
		},
		[]string{"chain", "op"},
	)

	// RPCCallsTotal tracks RPC calls per chain and provider
	RPCCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocean_indexer_rpc_calls_total",
			Help: "Total number of RPC calls",
		},
		[]string{"chain", "provider", "method"},
	)

	// RPCErrorsTotal tracks RPC errors per chain and provider
	RPCErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocean_indexer_rpc_errors_total",
			Help: "Total number of RPC errors",
		},
		[]string{"chain", "provider", "error_type"},
	)

	// RPCLatency tracks RPC call latency
	RPCLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocean_indexer_rpc_latency_seconds",
			Help:    "RPC call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"chain", "provider", "method"},
	)

	// ChainLatestBlock tracks the latest block height of the chain
	ChainLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ocean_indexer_chain_latest_block",
			Help: "Latest block height of the chain",
		},
		[]string{"chain"},
	)

	// IndexerLatestBlock tracks the checkpoint of each chain
	IndexerLatestBlock = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ocean_indexer_indexer_latest_block",
			Help: "Latest block height indexed",
		},
		[]string{"chain"},
	)

	// ChunkSize tracks the current adaptive chunk size
	ChunkSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ocean_indexer_chunk_size",
			Help: "Current number of blocks requested per log fetch",
		},
		[]string{"chain"},
	)

	// FetchFailures tracks log fetch failures that shrank the chunk size
	FetchFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocean_indexer_fetch_failures_total",
			Help: "Total number of failed block range fetches",
		},
		[]string{"chain"},
	)

	// ReindexQueueLength tracks pending transaction reindex tasks
	ReindexQueueLength = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ocean_indexer_reindex_queue_length",
			Help: "Number of queued transaction reindex tasks",
		},
		[]string{"chain"},
	)

	// ChainReindexTotal tracks chain reindex outcomes
	ChainReindexTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocean_indexer_chain_reindex_total",
			Help: "Total number of chain reindex requests applied",
		},
		[]string{"chain", "result"},
	)

	// NotificationsDropped tracks notifications lost to slow subscribers
	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocean_indexer_notifications_dropped_total",
			Help: "Total number of notifications dropped because a subscriber was full",
		},
		[]string{"kind"},
	)

	// DBConnectionPoolUsage tracks the percentage of open connections
	DBConnectionPoolUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocean_indexer_db_connection_pool_usage_percent",
			Help: "Open database connections as a percentage of the pool size",
		},
	)
)
