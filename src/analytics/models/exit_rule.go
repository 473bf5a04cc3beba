package models

import (
	"fmt"
	"math"
	"sort"
)

type ExitRuleKind string

const (
	ExitStopLoss     ExitRuleKind = "stop_loss"
	ExitTrailingStop ExitRuleKind = "trailing_stop"
	ExitPriceFloor   ExitRuleKind = "price_floor"
	ExitTakeProfit   ExitRuleKind = "take_profit"
	ExitExpiredDate  ExitRuleKind = "expired_date"
)

// Exit reasons that do not come from a rule.
const (
	ExitReasonSignal  = "signal"
	ExitReasonForced  = "forced_close"
	ExitReasonRemoved = "runner_removed"
)

var exitPriority = map[ExitRuleKind]int{
	ExitStopLoss:     0,
	ExitTrailingStop: 1,
	ExitPriceFloor:   2,
	ExitTakeProfit:   3,
	ExitExpiredDate:  4,
}

// ExitRule is one variant of a runner's exit strategy.
//   - stop_loss, trailing_stop, take_profit use Percent (distance from the
//     entry price, or from the high-water mark for trailing_stop)
//   - price_floor uses Price
//   - expired_date uses Epoch, or the runner's time range end when zero
type ExitRule struct {
	Kind    ExitRuleKind `json:"kind" yaml:"kind"`
	Percent float64      `json:"percent,omitempty" yaml:"percent,omitempty"`
	Price   float64      `json:"price,omitempty" yaml:"price,omitempty"`
	Epoch   int64        `json:"epoch,omitempty" yaml:"epoch,omitempty"`
}

func (r ExitRule) Validate() error {
	switch r.Kind {
	case ExitStopLoss, ExitTrailingStop:
		if r.Percent == 0 || math.Abs(r.Percent) >= 100 {
			return fmt.Errorf("%w: %s percent must be in (0, 100)", ErrInvalidRunner, r.Kind)
		}
	case ExitTakeProfit:
		if r.Percent == 0 {
			return fmt.Errorf("%w: take_profit percent must be non-zero", ErrInvalidRunner)
		}
	case ExitPriceFloor:
		if r.Price <= 0 {
			return fmt.Errorf("%w: price_floor price must be positive", ErrInvalidRunner)
		}
	case ExitExpiredDate:
		if r.Epoch < 0 {
			return fmt.Errorf("%w: expired_date epoch must not be negative", ErrInvalidRunner)
		}
	default:
		return fmt.Errorf("%w: unknown exit rule %q", ErrInvalidRunner, r.Kind)
	}

	return nil
}

// SortExitRules orders rules by evaluation priority.
func SortExitRules(rules []ExitRule) []ExitRule {
	out := append([]ExitRule(nil), rules...)
	sort.SliceStable(out, func(i, j int) bool {
		return exitPriority[out[i].Kind] < exitPriority[out[j].Kind]
	})

	return out
}

type ExitSignal struct {
	Reason ExitRuleKind
	Price  float64
}

// EvaluateExits checks the position's exit rules against a bar in priority
// order and returns the first that triggers. Stops fill at their level, or at
// the open when the bar gapped through the level. Expiry fills at the close.
func EvaluateExits(pos Position, bar Bar) (ExitSignal, bool) {
	for _, rule := range SortExitRules(pos.ExitRules) {
		switch rule.Kind {
		case ExitStopLoss:
			level := pos.EntryPrice * (1 - math.Abs(rule.Percent)/100)
			if bar.Low <= level {
				return ExitSignal{Reason: rule.Kind, Price: math.Min(level, bar.Open)}, true
			}
		case ExitTrailingStop:
			level := math.Max(pos.HighWater, pos.EntryPrice) * (1 - math.Abs(rule.Percent)/100)
			if bar.Low <= level {
				return ExitSignal{Reason: rule.Kind, Price: math.Min(level, bar.Open)}, true
			}
		case ExitPriceFloor:
			if bar.Low <= rule.Price {
				return ExitSignal{Reason: rule.Kind, Price: math.Min(rule.Price, bar.Open)}, true
			}
		case ExitTakeProfit:
			level := pos.EntryPrice * (1 + math.Abs(rule.Percent)/100)
			if bar.High >= level {
				return ExitSignal{Reason: rule.Kind, Price: math.Max(level, bar.Open)}, true
			}
		case ExitExpiredDate:
			expiry := rule.Epoch
			if expiry == 0 {
				expiry = pos.ExpiresAt
			}
			if expiry > 0 && bar.EndEpoch() >= expiry {
				return ExitSignal{Reason: rule.Kind, Price: bar.Close}, true
			}
		}
	}

	return ExitSignal{}, false
}
