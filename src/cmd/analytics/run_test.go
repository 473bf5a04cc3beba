package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/analytics/services"
)

func writeBarsCSV(t *testing.T) string {
	t.Helper()

	day0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Unix()
	lines := []string{"symbol,timeframe,epoch,open,high,low,close,volume"}
	lines = append(lines, fmt.Sprintf("AAPL,1d,%d,100,110,90,100,1000", day0))

	closes := []float64{100, 99, 104, 106, 101, 98}
	for i, c := range closes {
		lines = append(lines, fmt.Sprintf("AAPL,5m,%d,%.2f,%.2f,%.2f,%.2f,10", day0+int64(i)*300, c, c+0.5, c-0.5, c))
	}

	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func TestRun(t *testing.T) {
	cfg := services.DefaultConfig()
	cfg.Timeframes = []string{"5m"}
	cfg.StartDate = "2024-01-01"
	cfg.EndDate = "2024-01-01"
	cfg.Runners = []*models.Runner{
		{
			Name:       "aapl-5m",
			Stock:      "AAPL",
			Strategy:   "below_above",
			Timeframe:  models.Timeframe5m,
			Budget:     decimal.NewFromInt(10000),
			Parameters: map[string]float64{"below": 100, "above": 105},
			Active:     true,
		},
	}

	out := filepath.Join(t.TempDir(), "trades.csv")
	require.NoError(t, run(cfg, RunArgs{
		Bars:      []string{writeBarsCSV(t)},
		CsvOutput: out,
		GroupBy:   "strategy",
	}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	rows := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, rows, 2)
	assert.True(t, strings.HasPrefix(rows[0], "id,runner_id,symbol,strategy"), rows[0])
	assert.Contains(t, rows[1], "below_above")
}

func TestSeedRunners(t *testing.T) {
	db := models.NewMockDatabase(models.NewBarRepository(), 1)
	runner := &models.Runner{
		Name:       "seeded",
		Stock:      "AAPL",
		Strategy:   "below_above",
		Timeframe:  models.Timeframe1d,
		Budget:     decimal.NewFromInt(1000),
		Parameters: map[string]float64{"below": 1, "above": 2},
		Active:     true,
	}

	require.NoError(t, seedRunners(context.Background(), db, []*models.Runner{runner}))
	require.NoError(t, seedRunners(context.Background(), db, []*models.Runner{runner.Clone()}))

	runners, err := db.LoadRunners(context.Background())
	require.NoError(t, err)
	assert.Len(t, runners, 1)

	t.Run("invalid runner", func(t *testing.T) {
		bad := &models.Runner{Name: "bad"}
		assert.ErrorIs(t, seedRunners(context.Background(), db, []*models.Runner{bad}), models.ErrInvalidRunner)
	})
}

func TestSetupLogging(t *testing.T) {
	defer log.SetLevel(log.GetLevel())

	require.NoError(t, setupLogging("debug"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())
	assert.Error(t, setupLogging("loud"))
}

func TestExampleConfig(t *testing.T) {
	cfg, err := services.LoadConfig("analytics.example.yaml")
	require.NoError(t, err)

	require.Len(t, cfg.Runners, 2)
	for _, r := range cfg.Runners {
		assert.NoError(t, r.Validate(), r.Name)
	}

	assert.True(t, cfg.Runners[0].Budget.Equal(decimal.NewFromInt(10000)))
	assert.Equal(t, "candles", cfg.ClickHouse.Table)
}
