package strategies

import (
	"fmt"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/indicators"
)

const BollingerReversionKey = "bollinger_reversion"

// BollingerReversion buys a close under the lower band and exits at the
// moving average.
type BollingerReversion struct {
	bands *indicators.BollingerBands
}

func (s *BollingerReversion) Name() string {
	return BollingerReversionKey
}

func (s *BollingerReversion) OnBar(bar *models.Bar, position *models.Position) (Decision, error) {
	ready, st, err := s.bands.Update(bar)
	if err != nil {
		return Decision{}, err
	}

	if !ready {
		return Hold("warming up"), nil
	}

	if position == nil && bar.Close < st.Lower {
		return Decision{Signal: SignalBuy, Reason: fmt.Sprintf("close %.2f under lower band %.2f", bar.Close, st.Lower)}, nil
	}

	if position != nil && bar.Close >= st.MovingAverage {
		return Decision{Signal: SignalSell, Reason: fmt.Sprintf("close %.2f reached mean %.2f", bar.Close, st.MovingAverage)}, nil
	}

	return Hold("inside bands"), nil
}

func NewBollingerReversion(params map[string]float64) (Strategy, error) {
	period, err := positiveInt(params, "period", 20)
	if err != nil {
		return nil, err
	}

	k := param(params, "k", 2)
	if k <= 0 {
		return nil, fmt.Errorf("%w: parameter \"k\" must be positive", models.ErrInvalidRunner)
	}

	return &BollingerReversion{
		bands: indicators.NewBollingerBands(period, k),
	}, nil
}
