package models

import "time"

// Ticker is a single exchange's 24h ticker snapshot for one symbol.
type Ticker struct {
	Symbol        string
	Exchange      string
	LastPrice     float64
	Bid1Price     float64
	Ask1Price     float64
	Volume24h     float64
	Turnover24h   float64
	Change24hPcnt float64
	High24h       float64
	Low24h        float64
	Timestamp     time.Time
}

// PriceLevel is one side entry of an exchange orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// Orderbook is a depth snapshot from a single exchange.
// Bids are sorted descending by price, asks ascending.
type Orderbook struct {
	Symbol    string
	Exchange  string
	Bids      []PriceLevel
	Asks      []PriceLevel
	Timestamp time.Time
}

// Candle is one OHLCV bar.
type Candle struct {
	Start    time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
	Turnover float64
}

// ExchangeHealth is the rolling health view of one adapter.
type ExchangeHealth struct {
	Exchange     string
	Healthy      bool
	Latency      time.Duration
	ErrorRate    float64
	LastError    string
	CheckedAt    time.Time
	SampleWindow int
}
