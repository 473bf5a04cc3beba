package models

import "time"

// Bar is an OHLCV candle keyed by its open time. It covers [Epoch, Epoch+step).
type Bar struct {
	Symbol    string    `json:"symbol" csv:"symbol" gorm:"column:symbol;index:idx_bar_key,unique"`
	Timeframe Timeframe `json:"timeframe" csv:"timeframe" gorm:"column:timeframe;index:idx_bar_key,unique"`
	Epoch     int64     `json:"epoch" csv:"epoch" gorm:"column:epoch;index:idx_bar_key,unique"`
	Open      float64   `json:"open" csv:"open" gorm:"column:open"`
	High      float64   `json:"high" csv:"high" gorm:"column:high"`
	Low       float64   `json:"low" csv:"low" gorm:"column:low"`
	Close     float64   `json:"close" csv:"close" gorm:"column:close"`
	Volume    float64   `json:"volume" csv:"volume" gorm:"column:volume"`
}

func (b *Bar) TableName() string {
	return "bars"
}

func (b *Bar) Time() time.Time {
	return time.Unix(b.Epoch, 0).UTC()
}

// EndEpoch is the epoch at which the bar closes.
func (b *Bar) EndEpoch() int64 {
	step, err := b.Timeframe.StepSeconds()
	if err != nil {
		return b.Epoch
	}

	return b.Epoch + step
}
