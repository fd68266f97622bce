package domain

import "time"

// Candle is one OHLCV row in the market_data hypertable.
// Time is the partitioning column; (Time, Symbol, Interval) identifies a row.
type Candle struct {
	Time     time.Time `gorm:"column:time;not null" json:"time"`
	Symbol   string    `gorm:"column:symbol;not null" json:"symbol"`
	Interval string    `gorm:"column:interval;not null" json:"interval"`
	Open     float64   `gorm:"column:open" json:"open"`
	High     float64   `gorm:"column:high" json:"high"`
	Low      float64   `gorm:"column:low" json:"low"`
	Close    float64   `gorm:"column:close" json:"close"`
	Volume   float64   `gorm:"column:volume" json:"volume"`
}

// TableName pins the gorm model to the hypertable created at bootstrap.
func (Candle) TableName() string {
	return "market_data"
}

// CandleQuery bounds a read over the hypertable. Zero From/To mean unbounded.
type CandleQuery struct {
	Symbol   string
	Interval string
	From     time.Time
	To       time.Time
	Limit    int
}
