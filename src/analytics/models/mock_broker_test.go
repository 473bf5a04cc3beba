package models

import (
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func newTestRunner(id uint, budget int64) *Runner {
	return &Runner{
		ID:        id,
		Name:      "aapl-below-above",
		Stock:     "AAPL",
		Strategy:  "below_above",
		Timeframe: Timeframe5m,
		Budget:    decimal.NewFromInt(budget),
		ExitStrategy: []ExitRule{
			{Kind: ExitStopLoss, Percent: -5},
			{Kind: ExitTakeProfit, Percent: 3},
		},
		Active: true,
	}
}

func TestMockBrokerPlaceOrder(t *testing.T) {
	ratio := decimal.RequireFromString("0.001")

	t.Run("second buy on the same symbol is rejected", func(t *testing.T) {
		broker := NewMockBroker(ratio)
		runner := newTestRunner(1, 10000)
		broker.RegisterRunner(runner)

		_, err := broker.PlaceOrder(runner, OrderRequest{Side: OrderSideBuy, Symbol: "AAPL", Quantity: 10, Price: 100, Epoch: testStart})
		require.NoError(t, err)

		_, err = broker.PlaceOrder(runner, OrderRequest{Side: OrderSideBuy, Symbol: "AAPL", Quantity: 1, Price: 100, Epoch: testStart})
		require.ErrorIs(t, err, ErrPositionExists)
		require.Len(t, broker.Positions(), 1)
	})

	t.Run("buy larger than available cash", func(t *testing.T) {
		broker := NewMockBroker(ratio)
		runner := newTestRunner(1, 1000)
		broker.RegisterRunner(runner)

		_, err := broker.PlaceOrder(runner, OrderRequest{Side: OrderSideBuy, Symbol: "AAPL", Notional: decimal.NewFromInt(1000), Price: 100})
		require.ErrorIs(t, err, ErrInsufficientBudget)
		require.Empty(t, broker.Positions())
	})

	t.Run("sell without a position", func(t *testing.T) {
		broker := NewMockBroker(ratio)
		runner := newTestRunner(1, 1000)
		broker.RegisterRunner(runner)

		_, err := broker.PlaceOrder(runner, OrderRequest{Side: OrderSideSell, Symbol: "AAPL", Price: 100})
		require.ErrorIs(t, err, ErrNoPosition)
	})

	t.Run("full budget buy then sell is net of both commissions", func(t *testing.T) {
		broker := NewMockBroker(ratio)
		runner := newTestRunner(1, 10000)
		broker.RegisterRunner(runner)

		exec, err := broker.PlaceOrder(runner, OrderRequest{Side: OrderSideBuy, Symbol: "AAPL", Price: 100, Epoch: testStart})
		require.NoError(t, err)
		require.Nil(t, exec.Result)

		ledger, _ := broker.Ledger(1)
		require.True(t, ledger.Available().GreaterThanOrEqual(decimal.Zero))
		require.True(t, ledger.Available().LessThan(decimal.NewFromInt(1)))

		exec, err = broker.PlaceOrder(runner, OrderRequest{Side: OrderSideSell, Symbol: "AAPL", Price: 110, Epoch: testStart + 600})
		require.NoError(t, err)
		require.NotNil(t, exec.Result)

		res := exec.Result
		exitNotional := decimal.NewFromFloat(110).Mul(decimal.NewFromFloat(res.Quantity))
		expected := exitNotional.Sub(res.Notional).Sub(res.Commission)
		require.True(t, expected.Equal(res.PnlAmount))
		require.Equal(t, ExitReasonSignal, res.ExitReason)
		require.InDelta(t, 9.79, res.PnlPercent.InexactFloat64(), 0.01)
		require.NoError(t, broker.CheckInvariants())
	})
}

func TestMockBrokerSettleBar(t *testing.T) {
	ratio := decimal.RequireFromString("0.001")
	broker := NewMockBroker(ratio)
	runner := newTestRunner(7, 10000)
	broker.RegisterRunner(runner)

	_, err := broker.PlaceOrder(runner, OrderRequest{Side: OrderSideBuy, Symbol: "AAPL", Price: 100, Epoch: testStart + 300})
	require.NoError(t, err)

	_, closed := broker.SettleBar(7, &Bar{Symbol: "AAPL", Timeframe: Timeframe5m, Epoch: testStart + 300, Open: 100, High: 101, Low: 98, Close: 99})
	require.False(t, closed)

	exec, closed := broker.SettleBar(7, &Bar{Symbol: "AAPL", Timeframe: Timeframe5m, Epoch: testStart + 600, Open: 98, High: 98, Low: 94, Close: 95})
	require.True(t, closed)
	require.Equal(t, string(ExitStopLoss), exec.Result.ExitReason)
	require.InDelta(t, 95, exec.Result.ExitPrice, 1e-9)
	require.InDelta(t, -5.195, exec.Result.PnlPercent.InexactFloat64(), 0.01)

	_, closed = broker.SettleBar(7, &Bar{Symbol: "AAPL", Timeframe: Timeframe5m, Epoch: testStart + 900, Open: 90, High: 90, Low: 80, Close: 85})
	require.False(t, closed)
}

func TestMockBrokerCloseAll(t *testing.T) {
	t.Run("concurrent close all records each position once", func(t *testing.T) {
		broker := NewMockBroker(decimal.Zero)
		for id := uint(1); id <= 20; id++ {
			r := newTestRunner(id, 1000)
			broker.RegisterRunner(r)
			_, err := broker.PlaceOrder(r, OrderRequest{Side: OrderSideBuy, Symbol: "AAPL", Quantity: 1, Price: 100})
			require.NoError(t, err)
		}

		var wg sync.WaitGroup
		results := make(chan *Execution, 100)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for _, exec := range broker.CloseAll(testStart) {
					results <- exec
				}
			}()
		}

		wg.Wait()
		close(results)

		seen := make(map[uint]bool)
		for exec := range results {
			require.False(t, seen[exec.Result.RunnerID])
			seen[exec.Result.RunnerID] = true
			require.Equal(t, ExitReasonForced, exec.Result.ExitReason)
		}

		require.Len(t, seen, 20)
		require.Empty(t, broker.Positions())
	})

	t.Run("remove runner with an open position", func(t *testing.T) {
		broker := NewMockBroker(decimal.Zero)
		r := newTestRunner(1, 1000)
		broker.RegisterRunner(r)
		_, err := broker.PlaceOrder(r, OrderRequest{Side: OrderSideBuy, Symbol: "AAPL", Quantity: 1, Price: 100})
		require.NoError(t, err)

		require.ErrorIs(t, broker.RemoveRunner(1), ErrOpenPosition)
		require.Len(t, broker.CloseRunner(1, testStart), 1)
		require.NoError(t, broker.RemoveRunner(1))
	})
}

func TestMockBrokerRestore(t *testing.T) {
	broker := NewMockBroker(decimal.Zero)
	r := newTestRunner(1, 1000)
	broker.RegisterRunner(r)
	_, err := broker.PlaceOrder(r, OrderRequest{Side: OrderSideBuy, Symbol: "AAPL", Quantity: 2, Price: 100})
	require.NoError(t, err)

	state := broker.State()

	restored := NewMockBroker(decimal.Zero)
	restored.Restore(state)
	require.Equal(t, broker.Positions(), restored.Positions())

	ledger, ok := restored.Ledger(1)
	require.True(t, ledger.Available().Equal(decimal.NewFromInt(800)))
	require.True(t, ok)

	counts := restored.Reset(BrokerResetOptions{ClearOpenPositions: true, ResetAccount: true, ClearOrders: true})
	require.Equal(t, int64(1), counts["positions"])
	ledger, _ = restored.Ledger(1)
	require.True(t, ledger.Available().Equal(decimal.NewFromInt(1000)))
}
