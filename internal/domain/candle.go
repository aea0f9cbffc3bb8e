package domain

import "time"

type Candle struct {
	Time   int64   `json:"time"` // unix seconds
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

func (c Candle) Timestamp() time.Time {
	return time.Unix(c.Time, 0).UTC()
}
