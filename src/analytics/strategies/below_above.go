package strategies

import (
	"fmt"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

const BelowAboveKey = "below_above"

// BelowAbove buys when the close is at or below "below" and sells when it
// is at or above "above".
type BelowAbove struct {
	below float64
	above float64
}

func (s *BelowAbove) Name() string {
	return BelowAboveKey
}

func (s *BelowAbove) OnBar(bar *models.Bar, position *models.Position) (Decision, error) {
	if position == nil {
		if bar.Close <= s.below {
			return Decision{Signal: SignalBuy, Reason: fmt.Sprintf("close %.2f <= %.2f", bar.Close, s.below)}, nil
		}
		return Hold("above buy level"), nil
	}

	if bar.Close >= s.above {
		return Decision{Signal: SignalSell, Reason: fmt.Sprintf("close %.2f >= %.2f", bar.Close, s.above)}, nil
	}

	return Hold("below sell level"), nil
}

func NewBelowAbove(params map[string]float64) (Strategy, error) {
	below, err := requireParam(params, "below")
	if err != nil {
		return nil, err
	}

	above, err := requireParam(params, "above")
	if err != nil {
		return nil, err
	}

	if below <= 0 || above <= below {
		return nil, fmt.Errorf("%w: need 0 < below < above", models.ErrInvalidRunner)
	}

	return &BelowAbove{below: below, above: above}, nil
}
