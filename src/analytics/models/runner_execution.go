package models

import "time"

type ExecutionStatus string

const (
	ExecutionStarted          ExecutionStatus = "started"
	ExecutionSkippedNotInTime ExecutionStatus = "skipped_not_in_time"
	ExecutionSkippedNoData    ExecutionStatus = "skipped_no_data"
	ExecutionSkippedNoFunds   ExecutionStatus = "skipped_no_funds"
	ExecutionSkippedExcluded  ExecutionStatus = "skipped_excluded"
	ExecutionNoAction         ExecutionStatus = "no_action"
	ExecutionTradeExecuted    ExecutionStatus = "trade_executed"
	ExecutionExitExecuted     ExecutionStatus = "exit_executed"
	ExecutionOrderFailed      ExecutionStatus = "order_place_failed"
	ExecutionError            ExecutionStatus = "error"
)

// RunnerExecution logs what a runner did on one bar.
type RunnerExecution struct {
	ID        uint            `json:"id" gorm:"primaryKey"`
	RunnerID  uint            `json:"runner_id" gorm:"column:runner_id;index"`
	Symbol    string          `json:"symbol" gorm:"column:symbol"`
	Timeframe Timeframe       `json:"timeframe" gorm:"column:timeframe"`
	SimEpoch  int64           `json:"sim_epoch" gorm:"column:sim_epoch"`
	Status    ExecutionStatus `json:"status" gorm:"column:status;index"`
	Message   string          `json:"message,omitempty" gorm:"column:message"`
	CreatedAt time.Time       `json:"created_at"`
}

func (e *RunnerExecution) TableName() string {
	return "runner_executions"
}
