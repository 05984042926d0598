package models

// TickerRequest queries the aggregated ticker for one symbol.
type TickerRequest struct {
	Symbol   string `query:"symbol" validate:"required"`
	Category string `query:"category" validate:"oneof=spot linear" default:"spot"`
}

// OrderbookRequest queries the composite orderbook.
type OrderbookRequest struct {
	Symbol   string `query:"symbol" validate:"required"`
	Category string `query:"category" validate:"oneof=spot linear" default:"spot"`
	Limit    int    `query:"limit" validate:"gte=1,lte=200" default:"50"`
}

// KlinesRequest queries synchronized klines.
type KlinesRequest struct {
	Symbol   string `query:"symbol" validate:"required"`
	Category string `query:"category" validate:"oneof=spot linear" default:"spot"`
	Interval string `query:"interval" validate:"oneof=1 3 5 15 30 60 120 240 360 720 D W M" default:"15"`
	Limit    int    `query:"limit" validate:"gte=1,lte=1000" default:"200"`
}

// SymbolRequest covers divergence and arbitrage queries.
type SymbolRequest struct {
	Symbol   string `query:"symbol" validate:"required"`
	Category string `query:"category" validate:"oneof=spot linear" default:"spot"`
}

// DominanceRequest queries exchange dominance for a timeframe.
type DominanceRequest struct {
	Symbol    string `query:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" validate:"oneof=5m 15m 1h 4h 1d" default:"1h"`
}

// AnalyticsRequest queries the combined analytics bundle.
type AnalyticsRequest struct {
	Symbol    string `query:"symbol" validate:"required"`
	Timeframe string `query:"timeframe" validate:"oneof=5m 15m 1h 4h 1d" default:"1h"`
}

// SignalHistoryRequest reads recorded signals back from storage.
type SignalHistoryRequest struct {
	Symbol string `query:"symbol" validate:"required"`
	Kind   string `query:"kind" validate:"omitempty,oneof=divergence arbitrage"`
	From   string `query:"from" validate:"omitempty"`
	To     string `query:"to" validate:"omitempty"`
	Limit  int    `query:"limit" validate:"gte=1,lte=1000" default:"100"`
}
