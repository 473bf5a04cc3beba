package indicators

import (
	"fmt"

	"github.com/montanaflynn/stats"
)

// Sma is a simple moving average over the last Period values.
type Sma struct {
	Period int
	values []float64
}

func (s *Sma) Update(v float64) (bool, float64, error) {
	s.values = append(s.values, v)
	if len(s.values) > s.Period {
		s.values = s.values[1:]
	}

	if len(s.values) < s.Period {
		return false, 0, nil
	}

	mean, err := stats.Mean(s.values)
	if err != nil {
		return false, 0, fmt.Errorf("failed to calculate mean: %w", err)
	}

	return true, mean, nil
}

func NewSma(period int) *Sma {
	return &Sma{
		Period: period,
	}
}
