package models

type DateRange struct {
	StartEpoch int64 `json:"start_epoch" yaml:"start_epoch"`
	EndEpoch   int64 `json:"end_epoch" yaml:"end_epoch"`
}

func (r DateRange) IsZero() bool {
	return r.StartEpoch == 0 && r.EndEpoch == 0
}

type ImportReadiness struct {
	DailyBarsCount  int64      `json:"daily_bars_count"`
	MinuteBarsCount int64      `json:"minute_bars_count"`
	UsersCount      int64      `json:"users_count"`
	RunnersCount    int64      `json:"runners_count"`
	DateRange       *DateRange `json:"date_range,omitempty"`
	Symbols         []string   `json:"symbols,omitempty"`
	Ready           bool       `json:"ready"`
}

func NewImportReadiness(daily, minute, users, runners int64, rng *DateRange) *ImportReadiness {
	return &ImportReadiness{
		DailyBarsCount:  daily,
		MinuteBarsCount: minute,
		UsersCount:      users,
		RunnersCount:    runners,
		DateRange:       rng,
		Ready:           daily > 0 && minute > 0 && users > 0 && runners > 0,
	}
}
