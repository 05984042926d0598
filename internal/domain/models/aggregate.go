package models

import "time"

// ExchangeTickerEntry is one exchange's contribution to an aggregated ticker.
type ExchangeTickerEntry struct {
	Ticker       Ticker
	Weight       float64
	ResponseTime time.Duration
}

// PriceRange spans the min/max last price across contributing exchanges.
type PriceRange struct {
	Min        float64
	Max        float64
	SpreadPcnt float64
}

// AggregatedTicker is the volume/trust weighted composite ticker.
type AggregatedTicker struct {
	Symbol         string
	Category       string
	WeightedPrice  float64
	PriceDeviation float64
	TotalVolume    float64
	TotalTurnover  float64
	Range          PriceRange
	Confidence     float64
	Exchanges      map[string]ExchangeTickerEntry
	Timestamp      time.Time
}

// MergedLevel is a composite book level. Same-price levels from different
// exchanges are merged by summing size; Exchanges names every contributor.
type MergedLevel struct {
	Price     float64
	Size      float64
	Exchanges []string
}

// ExchangeBookEntry is one exchange's contribution to the composite book.
type ExchangeBookEntry struct {
	Orderbook    Orderbook
	Weight       float64
	Contribution float64
	ResponseTime time.Duration
}

// DepthMetrics summarizes composite book liquidity.
type DepthMetrics struct {
	TotalBidVolume float64
	TotalAskVolume float64
	WeightedSpread float64
	LiquidityScore float64
}

// CompositeOrderbook is the merged cross-exchange book.
type CompositeOrderbook struct {
	Symbol    string
	Category  string
	Bids      []MergedLevel
	Asks      []MergedLevel
	Exchanges map[string]ExchangeBookEntry
	Depth     DepthMetrics
	Arbitrage []ArbitrageOpportunity
	Timestamp time.Time
}

// ExchangeKlineEntry is one exchange's kline series plus its quality score.
type ExchangeKlineEntry struct {
	Klines      []Candle
	Weight      float64
	DataQuality float64
}

// SyncGap describes holes found while aligning one exchange's series.
type SyncGap struct {
	MissingPeriods int
	DataLag        time.Duration
}

// SynchronizedKlines aligns kline series from all exchanges on a shared
// time axis. Aggregated holds the weighted composite series.
type SynchronizedKlines struct {
	Symbol     string
	Interval   string
	Aggregated []Candle
	Exchanges  map[string]ExchangeKlineEntry
	Gaps       map[string]SyncGap
	Confidence float64
	Timestamp  time.Time
}
