package models

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RenderSummary writes buckets as a text table.
func RenderSummary(w io.Writer, buckets []SummaryBucket) {
	p := message.NewPrinter(language.English)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Year", "Strategy", "Timeframe", "Trades", "Win rate", "Weighted P&L", "Avg P&L", "Total P&L", "Avg days"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetAutoFormatHeaders(false)

	for _, b := range buckets {
		year := ""
		if b.Year != 0 {
			year = strconv.Itoa(b.Year)
		}

		table.Append([]string{
			year,
			b.Strategy,
			b.Timeframe,
			p.Sprintf("%d", b.Trades),
			fmt.Sprintf("%.1f%%", b.WinRate*100),
			fmt.Sprintf("%.2f%%", b.WeightedPnlPct),
			fmt.Sprintf("%.2f%%", b.AvgPnlPct),
			fmt.Sprintf("$%s", p.Sprintf("%.2f", b.TotalPnl)),
			fmt.Sprintf("%.1f", b.AvgDurationDays),
		})
	}

	table.Render()
}

// RenderMetrics writes per-strategy metrics as a text table.
func RenderMetrics(w io.Writer, metrics []StrategyMetrics) {
	p := message.NewPrinter(language.English)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Strategy", "Trades", "Compounded", "Profit factor", "Max drawdown", "Sharpe"})
	table.SetAutoFormatHeaders(false)

	for _, m := range metrics {
		pf := "n/a"
		if m.ProfitFactor != nil {
			pf = fmt.Sprintf("%.2f", *m.ProfitFactor)
		}

		table.Append([]string{
			m.Strategy,
			p.Sprintf("%d", m.Trades),
			fmt.Sprintf("%.2f%%", m.CompoundedPnlPct),
			pf,
			fmt.Sprintf("%.2f%%", m.MaxDrawdownPct),
			fmt.Sprintf("%.2f", m.SharpeRatio),
		})
	}

	table.Render()
}
