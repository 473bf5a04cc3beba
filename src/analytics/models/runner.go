package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TimeRange bounds the bars a runner acts on. Zero means unbounded.
type TimeRange struct {
	From int64 `json:"from,omitempty" yaml:"from,omitempty" gorm:"column:time_range_from"`
	To   int64 `json:"to,omitempty" yaml:"to,omitempty" gorm:"column:time_range_to"`
}

func (r TimeRange) Contains(epoch int64) bool {
	if r.From > 0 && epoch < r.From {
		return false
	}

	if r.To > 0 && epoch >= r.To {
		return false
	}

	return true
}

type Runner struct {
	ID           uint               `json:"id" yaml:"id" gorm:"primaryKey"`
	Name         string             `json:"name" yaml:"name" gorm:"column:name"`
	Stock        string             `json:"stock" yaml:"stock" gorm:"column:stock;index"`
	Strategy     string             `json:"strategy" yaml:"strategy" gorm:"column:strategy"`
	Timeframe    Timeframe          `json:"timeframe" yaml:"timeframe" gorm:"column:timeframe"`
	Budget       decimal.Decimal    `json:"budget" yaml:"budget" gorm:"column:budget;type:numeric"`
	Parameters   map[string]float64 `json:"parameters,omitempty" yaml:"parameters,omitempty" gorm:"column:parameters;serializer:json"`
	ExitStrategy []ExitRule         `json:"exit_strategy,omitempty" yaml:"exit_strategy,omitempty" gorm:"column:exit_strategy;serializer:json"`
	TimeRange    TimeRange          `json:"time_range" yaml:"time_range,omitempty" gorm:"embedded"`
	Active       bool               `json:"active" yaml:"active" gorm:"column:active"`
	CreatedAt    time.Time          `json:"created_at" yaml:"-"`
	UpdatedAt    time.Time          `json:"updated_at" yaml:"-"`
}

func (r *Runner) TableName() string {
	return "runners"
}

func (r *Runner) Validate() error {
	if strings.TrimSpace(r.Stock) == "" {
		return fmt.Errorf("%w: stock is required", ErrInvalidRunner)
	}

	if strings.TrimSpace(r.Strategy) == "" {
		return fmt.Errorf("%w: strategy is required", ErrInvalidRunner)
	}

	if _, err := r.Timeframe.StepSeconds(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRunner, err)
	}

	if !r.Budget.IsPositive() {
		return fmt.Errorf("%w: budget must be positive", ErrInvalidRunner)
	}

	if r.TimeRange.From > 0 && r.TimeRange.To > 0 && r.TimeRange.To <= r.TimeRange.From {
		return fmt.Errorf("%w: time range end must be after start", ErrInvalidRunner)
	}

	for _, rule := range r.ExitStrategy {
		if err := rule.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// ExpiryEpoch is the epoch after which an open position is closed by an
// expired_date rule without an explicit epoch.
func (r *Runner) ExpiryEpoch() int64 {
	return r.TimeRange.To
}

func (r *Runner) HasExitRule(kind ExitRuleKind) bool {
	for _, rule := range r.ExitStrategy {
		if rule.Kind == kind {
			return true
		}
	}

	return false
}

func (r *Runner) Clone() *Runner {
	cp := *r
	if r.Parameters != nil {
		cp.Parameters = make(map[string]float64, len(r.Parameters))
		for k, v := range r.Parameters {
			cp.Parameters[k] = v
		}
	}

	cp.ExitStrategy = append([]ExitRule(nil), r.ExitStrategy...)
	return &cp
}
