package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LiquidationLevel is a price level flagged as likely leveraged-position
// clustering on one exchange.
type LiquidationLevel struct {
	Exchange   string
	Price      float64
	Size       float64
	Side       string
	Strength   float64
	Confidence float64
}

// CascadeImpact estimates the market effect if a cascade fires.
type CascadeImpact struct {
	PriceMovePcnt   float64
	VolumeSpikePcnt float64
	Duration        time.Duration
}

// LiquidationCascade is a predicted chain-liquidation scenario built from
// composite orderbook clustering.
type LiquidationCascade struct {
	Symbol            string
	TriggerPrice      float64
	Direction         string
	Levels            []LiquidationLevel
	TotalSize         float64
	EstimatedDuration time.Duration
	Probability       float64
	Impact            CascadeImpact
	RiskFactors       []string
	ExchangeShares    map[string]float64
	Timestamp         time.Time
}

// TradingSignal is the actionable output attached to an advanced divergence.
type TradingSignal struct {
	Action       string
	Entry        float64
	Target       float64
	SecondTarget float64
	Stop         float64
	RiskReward   float64
	Strength     float64
}

// DivergenceCategory names one of the advanced detectors.
type DivergenceCategory string

const (
	CategoryMomentum          DivergenceCategory = "momentum"
	CategoryVolumeFlow        DivergenceCategory = "volume_flow"
	CategoryLiquidity         DivergenceCategory = "liquidity"
	CategoryInstitutionalFlow DivergenceCategory = "institutional_flow"
	CategoryMarketStructure   DivergenceCategory = "market_structure"
)

// AdvancedDivergence is a detector hit with a resolution estimate and an
// attached trading signal.
type AdvancedDivergence struct {
	Category         DivergenceCategory
	Symbol           string
	LeadExchange     string
	LagExchange      string
	Magnitude        float64
	ExpectedOutcome  string
	ResolutionWindow time.Duration
	Signal           TradingSignal
	Confidence       float64
	Risk             RiskLevel
	DetectedAt       time.Time
}

// ExecutionStep is one leg of an enhanced arbitrage plan.
type ExecutionStep struct {
	Order    int
	Exchange string
	Action   string
	Price    decimal.Decimal
	Volume   float64
}

// EnhancedArbitrage decorates an opportunity with an execution plan and
// execution-risk estimates.
type EnhancedArbitrage struct {
	Opportunity     ArbitrageOpportunity
	Steps           []ExecutionStep
	CompetitionRisk float64
	LatencyRisk     float64
	SlippageRisk    float64
	DetectedAt      time.Time
}

// LeadershipScores grades one exchange across dominance dimensions.
type LeadershipScores struct {
	Price         float64
	Volume        float64
	Liquidity     float64
	Momentum      float64
	Institutional float64
	Innovation    float64
}

// MarketDynamics describes how leadership is shifting.
type MarketDynamics struct {
	RotationFrequency float64
	VolumeTrend       string
	LiquidityTrend    string
	InstitutionalFlow string
}

// LeaderPrediction guesses the next dominant exchange.
type LeaderPrediction struct {
	Exchange   string
	Confidence float64
	Horizon    time.Duration
}

// ExtendedExchangeDominance layers leadership scoring and rotation dynamics
// over the base dominance ranking.
type ExtendedExchangeDominance struct {
	Symbol     string
	Timeframe  string
	Base       *ExchangeDominance
	Leadership map[string]LeadershipScores
	Dynamics   MarketDynamics
	NextLeader LeaderPrediction
	Trends     []string
	ComputedAt time.Time
}

// StructuralLevel is a support/resistance level seen on one exchange.
type StructuralLevel struct {
	Exchange string
	Price    float64
	Kind     string
	Strength float64
	Broken   bool
}

// ConsensusLevel is a structural level multiple exchanges agree on.
type ConsensusLevel struct {
	Price     float64
	Kind      string
	Exchanges []string
	Agreement float64
}

// ManipulationFlag marks a suspicious pattern on one exchange.
type ManipulationFlag struct {
	Exchange string
	Pattern  string
	Severity float64
	Details  string
}

// InstitutionalLevel marks accumulation/distribution or high-volume zones.
type InstitutionalLevel struct {
	Price float64
	Kind  string
	Size  float64
}

// CrossExchangeMarketStructure compares structure across venues.
type CrossExchangeMarketStructure struct {
	Symbol        string
	Timeframe     string
	Levels        []StructuralLevel
	Consensus     []ConsensusLevel
	Manipulation  []ManipulationFlag
	Institutional []InstitutionalLevel
	ComputedAt    time.Time
}
