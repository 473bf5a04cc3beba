package models

import (
	"github.com/shopspring/decimal"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Position is an open long position held by one runner in one symbol.
type Position struct {
	RunnerID        uint            `json:"runner_id"`
	Symbol          string          `json:"symbol"`
	Strategy        string          `json:"strategy"`
	Timeframe       Timeframe       `json:"timeframe"`
	Quantity        float64         `json:"quantity"`
	EntryPrice      float64         `json:"entry_price"`
	EntryEpoch      int64           `json:"entry_epoch"`
	Notional        decimal.Decimal `json:"notional"`
	EntryCommission decimal.Decimal `json:"entry_commission"`
	HighWater       float64         `json:"high_water"`
	LastPrice       float64         `json:"last_price"`
	ExpiresAt       int64           `json:"expires_at,omitempty"`
	ExitRules       []ExitRule      `json:"exit_rules,omitempty"`
}

type OrderRequest struct {
	Side   OrderSide
	Symbol string
	// Quantity takes precedence over Notional. When both are zero a buy
	// commits the runner's entire available cash.
	Quantity float64
	Notional decimal.Decimal
	Price    float64
	Epoch    int64
	Reason   string
}

type Fill struct {
	ID         uint            `json:"id" gorm:"primaryKey"`
	RunnerID   uint            `json:"runner_id" gorm:"column:runner_id;index"`
	Symbol     string          `json:"symbol" gorm:"column:symbol"`
	Side       OrderSide       `json:"side" gorm:"column:side"`
	Quantity   float64         `json:"quantity" gorm:"column:quantity"`
	Price      float64         `json:"price" gorm:"column:price"`
	Epoch      int64           `json:"epoch" gorm:"column:epoch"`
	Commission decimal.Decimal `json:"commission" gorm:"column:commission;type:numeric"`
	Reason     string          `json:"reason" gorm:"column:reason"`
}

func (f *Fill) TableName() string {
	return "fills"
}

// Execution is the outcome of one order: the fill, plus the result record
// when the order closed a position.
type Execution struct {
	Fill   *Fill
	Result *ResultRecord
}
