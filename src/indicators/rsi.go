package indicators

import (
	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

// Rsi is Wilder's relative strength index over closing prices.
type Rsi struct {
	Period    int
	prevClose *float64
	seedGain  float64
	seedLoss  float64
	seeded    int
	avgGain   float64
	avgLoss   float64
}

// Update feeds one bar and reports whether the value is available yet.
func (r *Rsi) Update(b *models.Bar) (bool, float64) {
	if r.prevClose == nil {
		c := b.Close
		r.prevClose = &c
		return false, 0
	}

	delta := b.Close - *r.prevClose
	*r.prevClose = b.Close

	gain, loss := 0.0, 0.0
	if delta > 0 {
		gain = delta
	} else {
		loss = -delta
	}

	period := float64(r.Period)
	if r.seeded < r.Period {
		r.seedGain += gain
		r.seedLoss += loss
		r.seeded++
		if r.seeded < r.Period {
			return false, 0
		}

		r.avgGain = r.seedGain / period
		r.avgLoss = r.seedLoss / period
	} else {
		r.avgGain = (r.avgGain*(period-1) + gain) / period
		r.avgLoss = (r.avgLoss*(period-1) + loss) / period
	}

	if r.avgLoss == 0 {
		if r.avgGain == 0 {
			return true, 50
		}
		return true, 100
	}

	rs := r.avgGain / r.avgLoss
	return true, 100 - (100 / (1 + rs))
}

func NewRsi(period int) *Rsi {
	return &Rsi{
		Period: period,
	}
}
