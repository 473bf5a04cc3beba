package strategies

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

func feed(t *testing.T, s Strategy, position *models.Position, values ...float64) []Decision {
	var out []Decision
	for _, v := range values {
		d, err := s.OnBar(&models.Bar{Open: v, High: v, Low: v, Close: v}, position)
		require.NoError(t, err)
		out = append(out, d)
	}

	return out
}

func TestRegistry(t *testing.T) {
	reg := NewDefaultRegistry()

	t.Run("aliases resolve to canonical keys", func(t *testing.T) {
		key, err := reg.Resolve("Buy-Below-Sell-Above")
		require.NoError(t, err)
		require.Equal(t, BelowAboveKey, key)

		key, err = reg.Resolve("rsi")
		require.NoError(t, err)
		require.Equal(t, RsiReversionKey, key)
	})

	t.Run("unknown strategy", func(t *testing.T) {
		_, err := reg.New("martingale", nil)
		require.ErrorIs(t, err, models.ErrUnknownStrategy)
	})

	t.Run("invalid parameters", func(t *testing.T) {
		_, err := reg.New(BelowAboveKey, map[string]float64{"below": 100})
		require.ErrorIs(t, err, models.ErrInvalidRunner)

		_, err = reg.New(SmaCrossoverKey, map[string]float64{"fast": 30, "slow": 10})
		require.ErrorIs(t, err, models.ErrInvalidRunner)
	})

	t.Run("keys are sorted", func(t *testing.T) {
		require.Equal(t, []string{BelowAboveKey, BollingerReversionKey, RsiReversionKey, SmaCrossoverKey}, reg.Keys())
	})
}

func TestBelowAbove(t *testing.T) {
	s, err := NewBelowAbove(map[string]float64{"below": 100, "above": 110})
	require.NoError(t, err)

	d := feed(t, s, nil, 105, 100)
	require.Equal(t, SignalHold, d[0].Signal)
	require.Equal(t, SignalBuy, d[1].Signal)

	pos := &models.Position{Symbol: "AAPL"}
	d = feed(t, s, pos, 105, 111)
	require.Equal(t, SignalHold, d[0].Signal)
	require.Equal(t, SignalSell, d[1].Signal)
}

func TestSmaCrossover(t *testing.T) {
	s, err := NewSmaCrossover(map[string]float64{"fast": 2, "slow": 3})
	require.NoError(t, err)

	d := feed(t, s, nil, 10, 9, 8, 7, 12)
	require.Equal(t, SignalHold, d[3].Signal)
	require.Equal(t, SignalBuy, d[4].Signal)
}

func TestRsiReversion(t *testing.T) {
	s, err := NewRsiReversion(map[string]float64{"period": 2})
	require.NoError(t, err)

	d := feed(t, s, nil, 10, 9, 5)
	require.Equal(t, SignalHold, d[1].Signal)
	require.Equal(t, SignalBuy, d[2].Signal)

	s, err = NewRsiReversion(map[string]float64{"period": 2})
	require.NoError(t, err)
	d = feed(t, s, &models.Position{}, 10, 11, 15)
	require.Equal(t, SignalSell, d[2].Signal)
}

func TestBollingerReversion(t *testing.T) {
	s, err := NewBollingerReversion(map[string]float64{"period": 5, "k": 1})
	require.NoError(t, err)

	d := feed(t, s, nil, 100, 101, 100, 101, 100, 90)
	require.Equal(t, SignalHold, d[4].Signal)
	require.Equal(t, SignalBuy, d[5].Signal)
}
