package services

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

func TestLoadConfig(t *testing.T) {
	t.Run("yaml over defaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "analytics.yaml")
		data := `
tick_interval: 250ms
timeframes: [5m, 1d]
start_date: "2024-01-01"
end_date: "2024-01-02"
eta:
  alpha: 0.2
runners:
  - name: aapl
    stock: AAPL
    strategy: below_above
    timeframe: 5m
    budget: "10000"
    parameters: {below: 100, above: 110}
    exit_strategy:
      - {kind: stop_loss, percent: -5}
`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		require.Equal(t, 250*time.Millisecond, cfg.TickInterval)
		require.Equal(t, 0.2, cfg.Eta.Alpha)
		require.Equal(t, 30*time.Second, cfg.Eta.MinPublishInterval)

		tfs, err := cfg.ParseTimeframes()
		require.NoError(t, err)
		require.Equal(t, []models.Timeframe{models.Timeframe5m, models.Timeframe1d}, tfs)

		rng, err := cfg.DateRange()
		require.NoError(t, err)
		require.Equal(t, int64(2*86400), rng.EndEpoch-rng.StartEpoch)

		require.Len(t, cfg.Runners, 1)
		require.Equal(t, "10000", cfg.Runners[0].Budget.String())
		require.Equal(t, models.ExitStopLoss, cfg.Runners[0].ExitStrategy[0].Kind)
	})

	t.Run("environment overrides", func(t *testing.T) {
		cfg := DefaultConfig()
		env := map[string]string{
			"SIM_TICK_INTERVAL":    "0s",
			"SIM_COMMISSION_RATIO": "0.002",
			"HTTP_PORT":            "9090",
		}

		require.NoError(t, cfg.ApplyEnv(func(k string) (string, bool) {
			v, ok := env[k]
			return v, ok
		}))

		require.Equal(t, time.Duration(0), cfg.TickInterval)
		require.Equal(t, 0.002, cfg.CommissionRatio)
		require.Equal(t, 9090, cfg.HTTP.Port)
		require.NoError(t, cfg.Validate())
	})

	t.Run("invalid values", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Timeframes = []string{"5x"}
		require.ErrorIs(t, cfg.Validate(), models.ErrInvalidTimeframe)

		cfg = DefaultConfig()
		cfg.StartDate = "2024-01-01"
		require.Error(t, cfg.Validate())
	})
}
