package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	log "github.com/sirupsen/logrus"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

type ClickHouseOptions struct {
	Addr     string
	Database string
	Username string
	Password string
	Table    string
}

// ClickHouseBarFeed reads bars from a ClickHouse candles table keyed by
// (symbol, interval, open_time_ms) with Float64 OHLCV columns.
type ClickHouseBarFeed struct {
	conn  clickhouse.Conn
	table string
}

func NewClickHouseBarFeed(ctx context.Context, opts ClickHouseOptions) (*ClickHouseBarFeed, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{opts.Addr},
		Auth: clickhouse.Auth{
			Database: opts.Database,
			Username: opts.Username,
			Password: opts.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}

	table := opts.Table
	if table == "" {
		table = "candles"
	}

	log.Infof("connected to clickhouse at %s (%s.%s)", opts.Addr, opts.Database, table)

	return &ClickHouseBarFeed{
		conn:  conn,
		table: table,
	}, nil
}

func (f *ClickHouseBarFeed) FetchBars(ctx context.Context, tf models.Timeframe, epoch int64, symbols []string) (map[string]*models.Bar, error) {
	out := make(map[string]*models.Bar, len(symbols))
	if len(symbols) == 0 {
		return out, nil
	}

	rows, err := f.conn.Query(ctx, fetchBarsQuery(f.table), string(tf), uint64(epoch)*1000, symbols)
	if err != nil {
		return nil, fmt.Errorf("clickhouse fetch %s bars at %d: %w", tf, epoch, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			symbol                 string
			open, high, low, close float64
			volume                 float64
		)

		if err := rows.Scan(&symbol, &open, &high, &low, &close, &volume); err != nil {
			return nil, fmt.Errorf("clickhouse scan bar: %w", err)
		}

		out[symbol] = &models.Bar{
			Symbol:    symbol,
			Timeframe: tf,
			Epoch:     epoch,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     close,
			Volume:    volume,
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse rows: %w", err)
	}

	return out, nil
}

// BarStats counts candles per interval.
func (f *ClickHouseBarFeed) BarStats(ctx context.Context) (*BarStats, error) {
	rows, err := f.conn.Query(ctx, barStatsQuery(f.table))
	if err != nil {
		return nil, fmt.Errorf("clickhouse bar stats: %w", err)
	}
	defer rows.Close()

	var counts []timeframeCount
	for rows.Next() {
		var (
			interval string
			count    uint64
			minMs    uint64
			maxMs    uint64
		)

		if err := rows.Scan(&interval, &count, &minMs, &maxMs); err != nil {
			return nil, fmt.Errorf("clickhouse scan bar stats: %w", err)
		}

		counts = append(counts, timeframeCount{
			Timeframe: models.Timeframe(interval),
			Count:     int64(count),
			MinEpoch:  int64(minMs / 1000),
			MaxEpoch:  int64(maxMs / 1000),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("clickhouse rows: %w", err)
	}

	stats := summarizeCounts(counts)

	var symbols []string
	if err := f.conn.QueryRow(ctx, fmt.Sprintf("SELECT arraySort(groupUniqArray(symbol)) FROM %s", f.table)).Scan(&symbols); err != nil {
		return nil, fmt.Errorf("clickhouse list symbols: %w", err)
	}

	stats.Symbols = symbols
	return stats, nil
}

func (f *ClickHouseBarFeed) Close() error {
	return f.conn.Close()
}

func fetchBarsQuery(table string) string {
	return strings.Join([]string{
		"SELECT symbol, open, high, low, close, volume",
		"FROM " + table + " FINAL",
		"WHERE interval = ? AND open_time_ms = ? AND symbol IN (?)",
	}, " ")
}

func barStatsQuery(table string) string {
	return fmt.Sprintf("SELECT interval, count() AS c, min(open_time_ms), max(open_time_ms) FROM %s FINAL GROUP BY interval", table)
}
