package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ResultRecord is the immutable record of a closed trade.
type ResultRecord struct {
	ID         uuid.UUID       `json:"id" csv:"id" gorm:"type:uuid;primaryKey"`
	RunnerID   uint            `json:"runner_id" csv:"runner_id" gorm:"column:runner_id;index"`
	Symbol     string          `json:"symbol" csv:"symbol" gorm:"column:symbol"`
	Strategy   string          `json:"strategy" csv:"strategy" gorm:"column:strategy;index"`
	Timeframe  Timeframe       `json:"timeframe" csv:"timeframe" gorm:"column:timeframe;index"`
	OpenEpoch  int64           `json:"open_epoch" csv:"open_epoch" gorm:"column:open_epoch"`
	CloseEpoch int64           `json:"close_epoch" csv:"close_epoch" gorm:"column:close_epoch;index"`
	Quantity   float64         `json:"quantity" csv:"quantity" gorm:"column:quantity"`
	EntryPrice float64         `json:"entry_price" csv:"entry_price" gorm:"column:entry_price"`
	ExitPrice  float64         `json:"exit_price" csv:"exit_price" gorm:"column:exit_price"`
	Notional   decimal.Decimal `json:"notional" csv:"notional" gorm:"column:notional;type:numeric"`
	Commission decimal.Decimal `json:"commission" csv:"commission" gorm:"column:commission;type:numeric"`
	PnlAmount  decimal.Decimal `json:"pnl_amount" csv:"pnl_amount" gorm:"column:pnl_amount;type:numeric"`
	PnlPercent decimal.Decimal `json:"pnl_percent" csv:"pnl_percent" gorm:"column:pnl_percent;type:numeric"`
	ExitReason string          `json:"exit_reason" csv:"exit_reason" gorm:"column:exit_reason"`
}

func (r *ResultRecord) TableName() string {
	return "result_records"
}

func (r *ResultRecord) CloseYear() int {
	return time.Unix(r.CloseEpoch, 0).UTC().Year()
}

func (r *ResultRecord) DurationDays() float64 {
	return float64(r.CloseEpoch-r.OpenEpoch) / 86400
}

func (r *ResultRecord) IsWin() bool {
	return r.PnlAmount.IsPositive()
}
