package strategies

import (
	"fmt"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

type Signal string

const (
	SignalHold Signal = "hold"
	SignalBuy  Signal = "buy"
	SignalSell Signal = "sell"
)

type Decision struct {
	Signal Signal
	Reason string
}

func Hold(reason string) Decision {
	return Decision{Signal: SignalHold, Reason: reason}
}

// Strategy is a per-runner instance; it may keep state across bars.
type Strategy interface {
	Name() string
	OnBar(bar *models.Bar, position *models.Position) (Decision, error)
}

type Factory func(params map[string]float64) (Strategy, error)

func param(params map[string]float64, key string, def float64) float64 {
	if v, ok := params[key]; ok {
		return v
	}

	return def
}

func requireParam(params map[string]float64, key string) (float64, error) {
	v, ok := params[key]
	if !ok {
		return 0, fmt.Errorf("%w: missing parameter %q", models.ErrInvalidRunner, key)
	}

	return v, nil
}

func positiveInt(params map[string]float64, key string, def int) (int, error) {
	v := int(param(params, key, float64(def)))
	if v <= 0 {
		return 0, fmt.Errorf("%w: parameter %q must be positive", models.ErrInvalidRunner, key)
	}

	return v, nil
}
