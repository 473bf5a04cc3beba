package strategies

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

// Registry maps canonical strategy keys and their aliases to factories.
type Registry struct {
	factories map[string]Factory
	aliases   map[string]string
}

func normalizeKey(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
}

func (r *Registry) Register(key string, factory Factory, aliases ...string) {
	key = normalizeKey(key)
	r.factories[key] = factory
	for _, a := range aliases {
		r.aliases[normalizeKey(a)] = key
	}
}

// Resolve returns the canonical key for a name or alias.
func (r *Registry) Resolve(name string) (string, error) {
	key := normalizeKey(name)
	if _, ok := r.factories[key]; ok {
		return key, nil
	}

	if canonical, ok := r.aliases[key]; ok {
		return canonical, nil
	}

	return "", fmt.Errorf("%w: %q", models.ErrUnknownStrategy, name)
}

func (r *Registry) New(name string, params map[string]float64) (Strategy, error) {
	key, err := r.Resolve(name)
	if err != nil {
		return nil, err
	}

	s, err := r.factories[key](params)
	if err != nil {
		return nil, fmt.Errorf("strategy %s: %w", key, err)
	}

	return s, nil
}

func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}

	sort.Strings(keys)
	return keys
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		aliases:   make(map[string]string),
	}
}

// NewDefaultRegistry registers the built-in strategies.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(BelowAboveKey, NewBelowAbove, "buy_below_sell_above", "below_above_strategy")
	r.Register(SmaCrossoverKey, NewSmaCrossover, "sma_cross", "moving_average_crossover")
	r.Register(RsiReversionKey, NewRsiReversion, "rsi", "rsi_mean_reversion")
	r.Register(BollingerReversionKey, NewBollingerReversion, "bollinger", "bollinger_bands")
	return r
}
