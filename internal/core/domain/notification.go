package domain

// NotificationKind is the type of an outbound indexer notification.
type NotificationKind string

const (
	NotifyCrawlingStarted NotificationKind = "CRAWLING_STARTED"
	NotifyReindexChain    NotificationKind = "REINDEX_CHAIN"
	NotifyReindexQueuePop NotificationKind = "REINDEX_QUEUE_POP"
)

// NotificationForEvent returns the per-event-kind notification emitted when a
// document is indexed for that kind.
func NotificationForEvent(kind EventKind) NotificationKind {
	return NotificationKind(kind)
}

// Notification is published by chain indexers to subscribers.
type Notification struct {
	Kind    NotificationKind `json:"kind"`
	ChainID ChainID          `json:"chainId"`
	Payload any              `json:"payload,omitempty"`
}

// CrawlingStarted is the payload of NotifyCrawlingStarted.
type CrawlingStarted struct {
	StartBlock    uint64 `json:"startBlock"`
	NetworkHeight uint64 `json:"networkHeight"`
}

// ReindexChainResult is the payload of NotifyReindexChain.
type ReindexChainResult struct {
	Block   uint64 `json:"block"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// ReindexQueuePop is the payload of NotifyReindexQueuePop.
type ReindexQueuePop struct {
	JobID   string `json:"jobId"`
	TxID    string `json:"txId"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// DocumentIndexed is the payload of per-event-kind notifications.
type DocumentIndexed struct {
	DID   string `json:"did"`
	TxID  string `json:"txId"`
	Block uint64 `json:"block"`
}
