package strategies

import (
	"fmt"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/indicators"
)

const RsiReversionKey = "rsi_reversion"

type RsiReversion struct {
	rsi        *indicators.Rsi
	oversold   float64
	overbought float64
}

func (s *RsiReversion) Name() string {
	return RsiReversionKey
}

func (s *RsiReversion) OnBar(bar *models.Bar, position *models.Position) (Decision, error) {
	ready, value := s.rsi.Update(bar)
	if !ready {
		return Hold("warming up"), nil
	}

	if position == nil && value <= s.oversold {
		return Decision{Signal: SignalBuy, Reason: fmt.Sprintf("rsi %.1f oversold", value)}, nil
	}

	if position != nil && value >= s.overbought {
		return Decision{Signal: SignalSell, Reason: fmt.Sprintf("rsi %.1f overbought", value)}, nil
	}

	return Hold(fmt.Sprintf("rsi %.1f", value)), nil
}

func NewRsiReversion(params map[string]float64) (Strategy, error) {
	period, err := positiveInt(params, "period", 14)
	if err != nil {
		return nil, err
	}

	oversold := param(params, "oversold", 30)
	overbought := param(params, "overbought", 70)
	if oversold <= 0 || overbought >= 100 || oversold >= overbought {
		return nil, fmt.Errorf("%w: need 0 < oversold < overbought < 100", models.ErrInvalidRunner)
	}

	return &RsiReversion{
		rsi:        indicators.NewRsi(period),
		oversold:   oversold,
		overbought: overbought,
	}, nil
}
