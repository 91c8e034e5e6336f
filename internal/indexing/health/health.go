// Package health provides system health monitoring and the admin HTTP API.
package health

import "github.com/vietddude/ocean-indexer/internal/core/domain"

// SystemStatus represents the overall health state of the system or a component.
type SystemStatus string

const (
	StatusHealthy  SystemStatus = "healthy"
	StatusDegraded SystemStatus = "degraded"
	StatusCritical SystemStatus = "critical"
)

// ChainHealth contains health metrics for a specific chain.
type ChainHealth struct {
	ChainID      domain.ChainID `json:"chain_id"`
	Network      string         `json:"network"`
	Status       SystemStatus   `json:"status"`
	Indexing     bool           `json:"indexing"`
	BlockLag     uint64         `json:"block_lag"`
	ReindexQueue int64          `json:"reindex_queue"`
	LastError    string         `json:"last_error,omitempty"`
}

// HealthReport contains the full system health report.
type HealthReport struct {
	SystemStatus SystemStatus           `json:"system_status"`
	Chains       map[string]ChainHealth `json:"chains"`
}

// Aggregate returns the worst status of the report.
func Aggregate(chains map[string]ChainHealth) SystemStatus {
	status := StatusHealthy
	for _, chain := range chains {
		if chain.Status == StatusCritical {
			return StatusCritical
		}
		if chain.Status == StatusDegraded {
			status = StatusDegraded
		}
	}
	return status
}
