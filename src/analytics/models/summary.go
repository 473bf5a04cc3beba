package models

import (
	"fmt"
	"strings"
)

type GroupByField string

const (
	GroupByYear      GroupByField = "year"
	GroupByStrategy  GroupByField = "strategy"
	GroupByTimeframe GroupByField = "timeframe"
)

func ParseGroupBy(s string) ([]GroupByField, error) {
	var out []GroupByField
	seen := make(map[GroupByField]bool)
	for _, part := range strings.Split(s, ",") {
		f := GroupByField(strings.ToLower(strings.TrimSpace(part)))
		if f == "" {
			continue
		}

		switch f {
		case GroupByYear, GroupByStrategy, GroupByTimeframe:
		default:
			return nil, fmt.Errorf("unknown group_by field %q", part)
		}

		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}

	return out, nil
}

// ResultFilter narrows result records. Zero values match everything.
type ResultFilter struct {
	Strategy  string `schema:"strategy"`
	Timeframe string `schema:"timeframe"`
	Year      int    `schema:"year"`
	RunnerID  uint   `schema:"runner_id"`
}

func (f ResultFilter) Matches(r *ResultRecord) bool {
	if f.Strategy != "" && r.Strategy != f.Strategy {
		return false
	}

	if f.Timeframe != "" && string(r.Timeframe) != f.Timeframe {
		return false
	}

	if f.Year != 0 && r.CloseYear() != f.Year {
		return false
	}

	if f.RunnerID != 0 && r.RunnerID != f.RunnerID {
		return false
	}

	return true
}

type SummaryBucket struct {
	Year            int     `json:"year,omitempty" csv:"year"`
	Strategy        string  `json:"strategy,omitempty" csv:"strategy"`
	Timeframe       string  `json:"timeframe,omitempty" csv:"timeframe"`
	Trades          int     `json:"trades" csv:"trades"`
	Wins            int     `json:"wins" csv:"wins"`
	WinRate         float64 `json:"win_rate" csv:"win_rate"`
	WeightedPnlPct  float64 `json:"weighted_pnl_pct" csv:"weighted_pnl_pct"`
	AvgPnlPct       float64 `json:"avg_pnl_pct" csv:"avg_pnl_pct"`
	TotalPnl        float64 `json:"total_pnl" csv:"total_pnl"`
	TotalNotional   float64 `json:"total_notional" csv:"total_notional"`
	AvgDurationDays float64 `json:"avg_duration_days" csv:"avg_duration_days"`
}

// StrategyMetrics are per-strategy KPIs. ProfitFactor is nil when there
// were no losing trades.
type StrategyMetrics struct {
	Strategy         string   `json:"strategy"`
	Trades           int      `json:"trades"`
	CompoundedPnlPct float64  `json:"compounded_pnl_pct"`
	ProfitFactor     *float64 `json:"profit_factor"`
	MaxDrawdownPct   float64  `json:"max_drawdown_pct"`
	SharpeRatio      float64  `json:"sharpe_ratio"`
}
