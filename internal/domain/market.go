package domain

import "time"

// Trend is the short-term price direction derived from consecutive trades.
type Trend string

const (
	TrendUp   Trend = "UP"
	TrendDown Trend = "DOWN"
	TrendFlat Trend = "FLAT"
)

// Tick is one price sample from the market feed.
type Tick struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Trend     Trend     `json:"trend"`
}
