package models

type SimulationState string

const (
	SimulationStateIdle      SimulationState = "idle"
	SimulationStateRunning   SimulationState = "running"
	SimulationStateStopped   SimulationState = "stopped"
	SimulationStateCompleted SimulationState = "completed"
)

// TickCounters accumulate per-run outcomes across ticks.
type TickCounters struct {
	Processed       int64 `json:"processed"`
	Buys            int64 `json:"buys"`
	Sells           int64 `json:"sells"`
	NoAction        int64 `json:"no_action"`
	SkippedNoData   int64 `json:"skipped_no_data"`
	SkippedNoBudget int64 `json:"skipped_no_budget"`
	SkippedExcluded int64 `json:"skipped_excluded"`
	Errors          int64 `json:"errors"`
}

type TimeframeProgress struct {
	Timeframe       Timeframe `json:"timeframe"`
	ProgressPercent float64   `json:"progress_percent"`
	SimTimeEpoch    int64     `json:"sim_time_epoch"`
	TicksDone       int64     `json:"ticks_done"`
	TicksTotal      int64     `json:"ticks_total"`
}

// ProgressSnapshot is the read-only view served to pollers. It is replaced,
// never mutated, after every tick and state transition.
type ProgressSnapshot struct {
	State               SimulationState     `json:"state"`
	ProgressPercent     float64             `json:"progress_percent"`
	Timeframes          []TimeframeProgress `json:"timeframes"`
	EtaSeconds          *int64              `json:"eta_seconds"`
	EstimatedFinishTime *int64              `json:"estimated_finish_time,omitempty"`
	TotalBuys           int64               `json:"total_buys"`
	TotalSells          int64               `json:"total_sells"`
	CurrentRunner       string              `json:"current_runner,omitempty"`
	Counters            TickCounters        `json:"counters"`
	LastError           string              `json:"last_error,omitempty"`
	Fatal               bool                `json:"fatal"`
	GeneratedAtEpoch    int64               `json:"generated_at"`
	SnapshotAgeSeconds  int64               `json:"snapshot_age_seconds"`
}

// ControlResponse is returned by start, stop and force-tick.
type ControlResponse struct {
	State           SimulationState `json:"state"`
	ProgressPercent float64         `json:"progress_percent"`
	EtaSeconds      *int64          `json:"eta_seconds"`
	TotalBuys       int64           `json:"total_buys"`
	TotalSells      int64           `json:"total_sells"`
	Message         string          `json:"message,omitempty"`
}

func NewControlResponse(s *ProgressSnapshot, message string) *ControlResponse {
	return &ControlResponse{
		State:           s.State,
		ProgressPercent: s.ProgressPercent,
		EtaSeconds:      s.EtaSeconds,
		TotalBuys:       s.TotalBuys,
		TotalSells:      s.TotalSells,
		Message:         message,
	}
}
