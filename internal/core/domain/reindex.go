package domain

import "time"

// ReindexTask asks a chain indexer to reprocess one transaction.
type ReindexTask struct {
	JobID      string  `json:"jobId"`
	TxID       string  `json:"txId"`
	ChainID    ChainID `json:"chainId"`
	EventIndex *int    `json:"eventIndex,omitempty"`
}

// JobStatus is the admin-facing state of a reindex job.
type JobStatus string

const (
	JobQueued JobStatus = "queued"
	JobDone   JobStatus = "done"
	JobFailed JobStatus = "failed"
)

// Job tracks an admin reindex request until the chain loop handled it.
type Job struct {
	ID        string    `json:"jobId"`
	ChainID   ChainID   `json:"chainId"`
	TxID      string    `json:"txId"`
	Status    JobStatus `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
