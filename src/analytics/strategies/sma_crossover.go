package strategies

import (
	"fmt"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/indicators"
)

const SmaCrossoverKey = "sma_crossover"

type SmaCrossover struct {
	fast     *indicators.Sma
	slow     *indicators.Sma
	prevDiff *float64
}

func (s *SmaCrossover) Name() string {
	return SmaCrossoverKey
}

func (s *SmaCrossover) OnBar(bar *models.Bar, position *models.Position) (Decision, error) {
	fastReady, fast, err := s.fast.Update(bar.Close)
	if err != nil {
		return Decision{}, err
	}

	slowReady, slow, err := s.slow.Update(bar.Close)
	if err != nil {
		return Decision{}, err
	}

	if !fastReady || !slowReady {
		return Hold("warming up"), nil
	}

	diff := fast - slow
	prev := s.prevDiff
	s.prevDiff = &diff
	if prev == nil {
		return Hold("warming up"), nil
	}

	if position == nil && *prev <= 0 && diff > 0 {
		return Decision{Signal: SignalBuy, Reason: "fast crossed above slow"}, nil
	}

	if position != nil && *prev >= 0 && diff < 0 {
		return Decision{Signal: SignalSell, Reason: "fast crossed below slow"}, nil
	}

	return Hold("no crossover"), nil
}

func NewSmaCrossover(params map[string]float64) (Strategy, error) {
	fast, err := positiveInt(params, "fast", 10)
	if err != nil {
		return nil, err
	}

	slow, err := positiveInt(params, "slow", 30)
	if err != nil {
		return nil, err
	}

	if fast >= slow {
		return nil, fmt.Errorf("%w: fast period must be shorter than slow", models.ErrInvalidRunner)
	}

	return &SmaCrossover{
		fast: indicators.NewSma(fast),
		slow: indicators.NewSma(slow),
	}, nil
}
