package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

type bucketKey struct {
	year      int
	strategy  string
	timeframe string
}

type bucketSums struct {
	trades      int
	wins        int
	pnl         decimal.Decimal
	notional    decimal.Decimal
	pnlPercent  decimal.Decimal
	durationSec int64
}

type Aggregator struct {
	db models.IDatabaseService
}

func NewAggregator(db models.IDatabaseService) *Aggregator {
	return &Aggregator{db: db}
}

func (a *Aggregator) Summary(ctx context.Context, groupBy []models.GroupByField, filter models.ResultFilter) ([]*models.SummaryBucket, error) {
	records, err := a.db.FetchResultRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("Aggregator.Summary: failed to fetch result records: %w", err)
	}

	return Summarize(records, groupBy), nil
}

func (a *Aggregator) Metrics(ctx context.Context, filter models.ResultFilter) ([]*models.StrategyMetrics, error) {
	records, err := a.db.FetchResultRecords(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("Aggregator.Metrics: failed to fetch result records: %w", err)
	}

	return ComputeStrategyMetrics(records)
}

// Summarize groups closed trades by the cross product of the requested
// fields. Sums are exact, so the output does not depend on record order.
func Summarize(records []*models.ResultRecord, groupBy []models.GroupByField) []*models.SummaryBucket {
	byYear, byStrategy, byTimeframe := false, false, false
	for _, f := range groupBy {
		switch f {
		case models.GroupByYear:
			byYear = true
		case models.GroupByStrategy:
			byStrategy = true
		case models.GroupByTimeframe:
			byTimeframe = true
		}
	}

	sums := make(map[bucketKey]*bucketSums)
	for _, r := range records {
		var key bucketKey
		if byYear {
			key.year = r.CloseYear()
		}
		if byStrategy {
			key.strategy = r.Strategy
		}
		if byTimeframe {
			key.timeframe = string(r.Timeframe)
		}

		s, ok := sums[key]
		if !ok {
			s = &bucketSums{}
			sums[key] = s
		}

		s.trades++
		if r.IsWin() {
			s.wins++
		}
		s.pnl = s.pnl.Add(r.PnlAmount)
		s.notional = s.notional.Add(r.Notional)
		s.pnlPercent = s.pnlPercent.Add(r.PnlPercent)
		s.durationSec += r.CloseEpoch - r.OpenEpoch
	}

	out := make([]*models.SummaryBucket, 0, len(sums))
	for key, s := range sums {
		n := decimal.NewFromInt(int64(s.trades))
		bucket := &models.SummaryBucket{
			Year:            key.year,
			Strategy:        key.strategy,
			Timeframe:       key.timeframe,
			Trades:          s.trades,
			Wins:            s.wins,
			WinRate:         float64(s.wins) / float64(s.trades),
			AvgPnlPct:       s.pnlPercent.Div(n).InexactFloat64(),
			TotalPnl:        s.pnl.InexactFloat64(),
			TotalNotional:   s.notional.InexactFloat64(),
			AvgDurationDays: float64(s.durationSec) / float64(s.trades) / 86400,
		}

		if s.notional.IsPositive() {
			bucket.WeightedPnlPct = s.pnl.Div(s.notional).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}

		out = append(out, bucket)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		if out[i].Strategy != out[j].Strategy {
			return out[i].Strategy < out[j].Strategy
		}
		return out[i].Timeframe < out[j].Timeframe
	})

	return out
}
