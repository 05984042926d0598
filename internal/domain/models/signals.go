package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// DivergenceType classifies a cross-exchange divergence.
type DivergenceType string

const (
	DivergencePrice     DivergenceType = "price"
	DivergenceVolume    DivergenceType = "volume"
	DivergenceStructure DivergenceType = "structure"
)

// RiskLevel grades how risky acting on a signal is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ExchangeDivergence is a detected disagreement between two exchanges.
type ExchangeDivergence struct {
	Type         DivergenceType
	Symbol       string
	LeadExchange string
	LagExchange  string
	Magnitude    float64
	Duration     time.Duration
	Opportunity  string
	PriceTarget  float64
	Confidence   float64
	Risk         RiskLevel
	DetectedAt   time.Time
}

// ArbitrageKind tells which data source produced the opportunity.
type ArbitrageKind string

const (
	ArbitrageTicker      ArbitrageKind = "ticker"
	ArbitrageOrderbook   ArbitrageKind = "orderbook"
	ArbitrageSpatial     ArbitrageKind = "spatial"
	ArbitrageTemporal    ArbitrageKind = "temporal"
	ArbitrageTriangular  ArbitrageKind = "triangular"
	ArbitrageStatistical ArbitrageKind = "statistical"
)

// ArbitrageFees is the fee model applied to an opportunity. Decimal keeps
// the fee subtraction exact so a marginal spread is never rounded into
// profitability.
type ArbitrageFees struct {
	BuyFeePcnt   decimal.Decimal
	SellFeePcnt  decimal.Decimal
	TotalFeePcnt decimal.Decimal
}

// ArbitrageOpportunity is a cross-exchange price gap that survives fees.
type ArbitrageOpportunity struct {
	Kind         ArbitrageKind
	Symbol       string
	BuyExchange  string
	SellExchange string
	BuyPrice     decimal.Decimal
	SellPrice    decimal.Decimal
	SpreadPcnt   decimal.Decimal
	ProfitPcnt   decimal.Decimal
	Volume       float64
	TimeWindow   time.Duration
	Confidence   float64
	Risk         RiskLevel
	Fees         ArbitrageFees
	DetectedAt   time.Time
}

// DominanceEntry scores one exchange's influence for a symbol.
type DominanceEntry struct {
	VolumeShare    float64
	PriceInfluence float64
	LiquidityScore float64
}

// ExchangeDominance ranks exchanges by market influence.
type ExchangeDominance struct {
	Symbol     string
	Timeframe  string
	Exchanges  map[string]DominanceEntry
	Leader     string
	ComputedAt time.Time
}

// CorrelationPair is the pairwise correlation between two exchanges.
type CorrelationPair struct {
	ExchangeA        string
	ExchangeB        string
	PriceCorrelation float64
	VolumeCorrelation float64
	Strength         string
}

// ExchangeCorrelation holds the pairwise correlation matrices. Matrices are
// symmetric with 1.0 on the diagonal, indexed by the Exchanges slice.
type ExchangeCorrelation struct {
	Symbol       string
	Timeframe    string
	Exchanges    []string
	PriceMatrix  [][]float64
	VolumeMatrix [][]float64
	Pairs        []CorrelationPair
	Outliers     []string
	ComputedAt   time.Time
}

// DataQuality grades the aggregate snapshot feeding an analytics bundle.
type DataQuality struct {
	Completeness float64
	Consistency  float64
	Timeliness   float64
	Reliability  float64
	Overall      float64
}

// MultiExchangeAnalytics is the combined analytics bundle. Every component
// is required; a returned bundle is always fully populated.
type MultiExchangeAnalytics struct {
	Symbol      string
	Timeframe   string
	Ticker      *AggregatedTicker
	Orderbook   *CompositeOrderbook
	Klines      *SynchronizedKlines
	Dominance   *ExchangeDominance
	Correlation *ExchangeCorrelation
	Arbitrage   []ArbitrageOpportunity
	Divergences []ExchangeDivergence
	Quality     DataQuality
	GeneratedAt time.Time
}
