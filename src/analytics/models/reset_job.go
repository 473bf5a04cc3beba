package models

import (
	"time"

	"github.com/google/uuid"
)

// ResetScope selects what a reset clears. Cursors, checkpoint, counters and
// ETA are always cleared. Hard implies every flag.
type ResetScope struct {
	Hard                  bool `json:"hard" schema:"hard"`
	ResetAccount          bool `json:"reset_account" schema:"reset_account"`
	ClearOrders           bool `json:"clear_orders" schema:"clear_orders"`
	ClearOpenPositions    bool `json:"clear_open_positions" schema:"clear_open_positions"`
	ClearAnalyticsResults bool `json:"clear_analytics_results" schema:"clear_analytics_results"`
	TruncateLogs          bool `json:"truncate_logs" schema:"truncate_logs"`
}

func (s ResetScope) Normalize() ResetScope {
	if s.Hard {
		return ResetScope{
			Hard:                  true,
			ResetAccount:          true,
			ClearOrders:           true,
			ClearOpenPositions:    true,
			ClearAnalyticsResults: true,
			TruncateLogs:          true,
		}
	}

	return s
}

type ResetJobStatus string

const (
	ResetJobPending   ResetJobStatus = "pending"
	ResetJobCompleted ResetJobStatus = "completed"
	ResetJobFailed    ResetJobStatus = "failed"
)

type ResetJob struct {
	ID            uuid.UUID        `json:"id"`
	Scope         ResetScope       `json:"scope"`
	Status        ResetJobStatus   `json:"status"`
	DeletedCounts map[string]int64 `json:"deleted_counts,omitempty"`
	Error         string           `json:"error,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	FinishedAt    *time.Time       `json:"finished_at,omitempty"`
}

func (j *ResetJob) Clone() *ResetJob {
	cp := *j
	if j.DeletedCounts != nil {
		cp.DeletedCounts = make(map[string]int64, len(j.DeletedCounts))
		for k, v := range j.DeletedCounts {
			cp.DeletedCounts[k] = v
		}
	}

	return &cp
}
