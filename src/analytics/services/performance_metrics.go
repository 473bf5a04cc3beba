package services

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

const tradingDaysPerYear = 252

// ComputeStrategyMetrics derives per-strategy KPIs from closed trades taken
// in close order.
func ComputeStrategyMetrics(records []*models.ResultRecord) ([]*models.StrategyMetrics, error) {
	byStrategy := make(map[string][]*models.ResultRecord)
	for _, r := range records {
		byStrategy[r.Strategy] = append(byStrategy[r.Strategy], r)
	}

	keys := make([]string, 0, len(byStrategy))
	for k := range byStrategy {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*models.StrategyMetrics, 0, len(keys))
	for _, k := range keys {
		m, err := strategyMetrics(k, byStrategy[k])
		if err != nil {
			return nil, fmt.Errorf("strategy %s: %w", k, err)
		}
		out = append(out, m)
	}

	return out, nil
}

func strategyMetrics(strategy string, records []*models.ResultRecord) (*models.StrategyMetrics, error) {
	sorted := append([]*models.ResultRecord(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CloseEpoch != sorted[j].CloseEpoch {
			return sorted[i].CloseEpoch < sorted[j].CloseEpoch
		}
		return sorted[i].RunnerID < sorted[j].RunnerID
	})

	m := &models.StrategyMetrics{Strategy: strategy, Trades: len(sorted)}
	if len(sorted) == 0 {
		return m, nil
	}

	returns := make([]float64, 0, len(sorted))
	equity, peak := 1.0, 1.0
	var grossProfit, grossLoss, maxDrawdown float64
	for _, r := range sorted {
		ret := r.PnlPercent.InexactFloat64() / 100
		returns = append(returns, ret)

		equity *= 1 + ret
		if equity > peak {
			peak = equity
		}
		if dd := (peak - equity) / peak; dd > maxDrawdown {
			maxDrawdown = dd
		}

		pnl := r.PnlAmount.InexactFloat64()
		if pnl > 0 {
			grossProfit += pnl
		} else {
			grossLoss += -pnl
		}
	}

	m.CompoundedPnlPct = (equity - 1) * 100
	m.MaxDrawdownPct = maxDrawdown * 100
	if grossLoss > 0 {
		pf := grossProfit / grossLoss
		m.ProfitFactor = &pf
	}

	if len(returns) > 1 {
		mean, err := stats.Mean(returns)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate mean: %w", err)
		}

		sd, err := stats.StandardDeviationSample(returns)
		if err != nil {
			return nil, fmt.Errorf("failed to calculate the standard deviation: %w", err)
		}

		if sd > 0 {
			m.SharpeRatio = mean / sd * math.Sqrt(tradingDaysPerYear)
		}
	}

	return m, nil
}
