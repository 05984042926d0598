package analytics

import (
	"math"
	"testing"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, time.Duration) {}
func (noopMetrics) RecordFetchError(string, string)       {}
func (noopMetrics) SetHealthyExchanges(int)               {}
func (noopMetrics) RecordOpportunity(string)              {}
func (noopMetrics) RecordCacheHit(string)                 {}
func (noopMetrics) RecordCacheMiss(string)                {}

func newTestService(t *testing.T) *Service {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return New(nil, Config{}, noopMetrics{}, log)
}

func tickerBundle(prices map[string]float64, volumes map[string]float64) *models.MultiExchangeAnalytics {
	entries := map[string]models.ExchangeTickerEntry{}
	var total float64
	var sum float64
	for name, p := range prices {
		v := volumes[name]
		entries[name] = models.ExchangeTickerEntry{
			Ticker: models.Ticker{Exchange: name, LastPrice: p, Volume24h: v, Turnover24h: p * v},
			Weight: 0.5,
		}
		total += v
		sum += p
	}
	return &models.MultiExchangeAnalytics{
		Symbol: "BTCUSDT",
		Ticker: &models.AggregatedTicker{
			Symbol:        "BTCUSDT",
			WeightedPrice: sum / float64(len(prices)),
			TotalVolume:   total,
			Exchanges:     entries,
		},
	}
}

func TestStatisticalArbitrageGating(t *testing.T) {
	s := newTestService(t)

	bundle := tickerBundle(
		map[string]float64{"binance": 100, "bybit": 101},
		map[string]float64{"binance": 1000, "bybit": 500},
	)
	bundle.Correlation = &models.ExchangeCorrelation{
		Pairs: []models.CorrelationPair{
			{ExchangeA: "binance", ExchangeB: "bybit", PriceCorrelation: 0.3},
		},
	}

	got := s.statisticalArbitrage("BTCUSDT", bundle)
	require.Len(t, got, 1, "weak correlation with 1%% spread must fire")
	assert.Equal(t, models.ArbitrageStatistical, got[0].Opportunity.Kind)
	assert.Equal(t, "binance", got[0].Opportunity.BuyExchange)
	assert.Equal(t, "bybit", got[0].Opportunity.SellExchange)

	// 1% spread minus 0.1% per leg
	profit, _ := got[0].Opportunity.ProfitPcnt.Float64()
	assert.InDelta(t, 0.8, profit, 1e-9)
	totalFee, _ := got[0].Opportunity.Fees.TotalFeePcnt.Float64()
	assert.InDelta(t, 0.2, totalFee, 1e-9)

	// strong average correlation suppresses everything regardless of spread
	bundle.Correlation.Pairs[0].PriceCorrelation = 0.9
	assert.Empty(t, s.statisticalArbitrage("BTCUSDT", bundle))

	// one weak pair inside an otherwise locked market is not enough: the
	// gate reads the average
	locked := tickerBundle(
		map[string]float64{"binance": 100, "bybit": 101, "okx": 100.5},
		map[string]float64{"binance": 1000, "bybit": 500, "okx": 700},
	)
	locked.Correlation = &models.ExchangeCorrelation{
		Pairs: []models.CorrelationPair{
			{ExchangeA: "binance", ExchangeB: "bybit", PriceCorrelation: 0.3},
			{ExchangeA: "binance", ExchangeB: "okx", PriceCorrelation: 0.95},
			{ExchangeA: "bybit", ExchangeB: "okx", PriceCorrelation: 0.95},
		},
	}
	assert.Empty(t, s.statisticalArbitrage("BTCUSDT", locked))

	// weak correlation but narrow spread also suppresses
	narrow := tickerBundle(
		map[string]float64{"binance": 100, "bybit": 100.3},
		map[string]float64{"binance": 1000, "bybit": 500},
	)
	narrow.Correlation = &models.ExchangeCorrelation{
		Pairs: []models.CorrelationPair{
			{ExchangeA: "binance", ExchangeB: "bybit", PriceCorrelation: 0.3},
		},
	}
	assert.Empty(t, s.statisticalArbitrage("BTCUSDT", narrow))
}

func TestSpatialArbitrageExecutionPlan(t *testing.T) {
	s := newTestService(t)

	bundle := tickerBundle(
		map[string]float64{"binance": 100, "bybit": 101},
		map[string]float64{"binance": 1000, "bybit": 500},
	)
	bundle.Arbitrage = []models.ArbitrageOpportunity{{
		Kind:         models.ArbitrageTicker,
		Symbol:       "BTCUSDT",
		BuyExchange:  "binance",
		SellExchange: "bybit",
		BuyPrice:     decimal.NewFromFloat(100),
		SellPrice:    decimal.NewFromFloat(101),
		ProfitPcnt:   decimal.NewFromFloat(0.8),
		TimeWindow:   30 * time.Second,
		Volume:       5,
	}}

	got := s.spatialArbitrage(bundle)
	require.Len(t, got, 1)
	e := got[0]
	assert.Equal(t, models.ArbitrageSpatial, e.Opportunity.Kind)
	require.Len(t, e.Steps, 2)
	assert.Equal(t, "buy", e.Steps[0].Action)
	assert.Equal(t, "binance", e.Steps[0].Exchange)
	assert.Equal(t, "sell", e.Steps[1].Action)
	assert.Equal(t, "bybit", e.Steps[1].Exchange)
	assert.GreaterOrEqual(t, e.CompetitionRisk, 0.0)
	assert.LessOrEqual(t, e.CompetitionRisk, 100.0)
}

func TestCascadeImpactCaps(t *testing.T) {
	s := newTestService(t)

	// two massive bid walls against thin surrounding depth
	bids := []models.PriceLevel{
		{Price: 99.0, Size: 100000},
		{Price: 98.5, Size: 50000},
	}
	for i := 0; i < 20; i++ {
		bids = append(bids, models.PriceLevel{Price: 98.0 - float64(i)*0.1, Size: 1})
	}
	book := &models.CompositeOrderbook{
		Symbol: "BTCUSDT",
		Exchanges: map[string]models.ExchangeBookEntry{
			"binance": {
				Orderbook:    models.Orderbook{Bids: bids, Asks: []models.PriceLevel{{Price: 100.1, Size: 1}}},
				Contribution: 100,
			},
		},
		Depth: models.DepthMetrics{TotalBidVolume: 150020, TotalAskVolume: 1},
	}
	bundle := &models.MultiExchangeAnalytics{
		Symbol: "BTCUSDT",
		Ticker: &models.AggregatedTicker{
			Symbol:        "BTCUSDT",
			WeightedPrice: 100,
			TotalVolume:   200000,
			Range:         models.PriceRange{Min: 99.9, Max: 100.1, SpreadPcnt: 0.2},
			Confidence:    80,
		},
		Quality: models.DataQuality{Consistency: 80},
	}

	got := s.buildCascade("BTCUSDT", bundle, book)
	require.NotNil(t, got)
	assert.Equal(t, "bearish", got.Direction)
	require.Len(t, got.Levels, 2, "only the walls clear the size multiple")
	// a bearish cascade triggers at the lowest flagged long level
	assert.InDelta(t, 98.5, got.TriggerPrice, 1e-9)
	for _, l := range got.Levels {
		assert.Equal(t, 75.0, l.Confidence)
		assert.Equal(t, "binance", l.Exchange)
	}
	assert.InDelta(t, 100.0, got.ExchangeShares["binance"], 1e-9)
	assert.LessOrEqual(t, got.Impact.PriceMovePcnt, 20.0)
	assert.LessOrEqual(t, got.Impact.VolumeSpikePcnt, 500.0)
	assert.LessOrEqual(t, got.Impact.Duration, time.Hour)
	assert.GreaterOrEqual(t, got.Probability, 0.0)
	assert.LessOrEqual(t, got.Probability, 100.0)
}

func TestMonitoringCacheReplacedWhole(t *testing.T) {
	s := newTestService(t)

	first := []models.AdvancedDivergence{{Category: models.CategoryMomentum}, {Category: models.CategoryLiquidity}}
	s.remember("divergence", "BTCUSDT", first)

	second := []models.AdvancedDivergence{{Category: models.CategoryVolumeFlow}}
	s.remember("divergence", "BTCUSDT", second)

	got, ok := s.LastDivergences("BTCUSDT")
	require.True(t, ok)
	require.Len(t, got, 1, "entry must be replaced whole, not appended")
	assert.Equal(t, models.CategoryVolumeFlow, got[0].Category)

	_, ok = s.LastDivergences("ETHUSDT")
	assert.False(t, ok, "symbols must not share monitoring state")
}

func TestBuildSignalDirections(t *testing.T) {
	long := buildSignal(100, 1.0, true)
	assert.Equal(t, "long", long.Action)
	assert.Greater(t, long.Target, long.Entry)
	assert.Less(t, long.Stop, long.Entry)

	short := buildSignal(100, 1.0, false)
	assert.Equal(t, "short", short.Action)
	assert.Less(t, short.Target, short.Entry)
	assert.Greater(t, short.Stop, short.Entry)

	hold := buildSignal(0, 1.0, true)
	assert.Equal(t, "hold", hold.Action)
}

func TestPairwiseDivergenceThreshold(t *testing.T) {
	s := newTestService(t)

	scores := []exchangeScore{
		{exchange: "binance", score: 5.0},
		{exchange: "bybit", score: 1.0},
	}
	got := s.pairwiseDivergences("BTCUSDT", models.CategoryMomentum, scores, 1.0, 100, "test", time.Minute)
	require.Len(t, got, 1)
	assert.Equal(t, "binance", got[0].LeadExchange)
	assert.Equal(t, "bybit", got[0].LagExchange)
	assert.InDelta(t, 4.0, got[0].Magnitude, 1e-9)
	assert.GreaterOrEqual(t, got[0].Confidence, 0.0)
	assert.LessOrEqual(t, got[0].Confidence, 100.0)

	// below threshold stays quiet
	quiet := []exchangeScore{
		{exchange: "binance", score: 1.2},
		{exchange: "bybit", score: 1.0},
	}
	assert.Empty(t, s.pairwiseDivergences("BTCUSDT", models.CategoryMomentum, quiet, 1.0, 100, "test", time.Minute))
}

func klineSeries(start time.Time, closes ...float64) []models.Candle {
	out := make([]models.Candle, len(closes))
	for i, c := range closes {
		out[i] = models.Candle{
			Start: start.Add(time.Duration(i) * time.Hour),
			Open:  c, High: c + 1, Low: c - 1, Close: c, Volume: 10,
		}
	}
	return out
}

func klineBundle(series map[string][]models.Candle) *models.MultiExchangeAnalytics {
	entries := map[string]models.ExchangeKlineEntry{}
	for name, k := range series {
		entries[name] = models.ExchangeKlineEntry{Klines: k, Weight: 0.5, DataQuality: 100}
	}
	return &models.MultiExchangeAnalytics{
		Symbol: "BTCUSDT",
		Ticker: &models.AggregatedTicker{WeightedPrice: 100},
		Klines: &models.SynchronizedKlines{Exchanges: entries},
	}
}

func TestMomentumDivergenceThreshold(t *testing.T) {
	s := newTestService(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	// 2.5% five-period momentum against a flat venue clears the 2% bar
	hot := klineBundle(map[string][]models.Candle{
		"binance": klineSeries(base, 100, 100.5, 101, 102, 102.5),
		"bybit":   klineSeries(base, 100, 100, 100, 100, 100),
	})
	got := s.momentumDivergences("BTCUSDT", hot)
	require.Len(t, got, 1)
	assert.Equal(t, models.CategoryMomentum, got[0].Category)
	assert.Equal(t, "binance", got[0].LeadExchange)
	assert.InDelta(t, 2.5, got[0].Magnitude, 1e-9)

	// 1.5% does not
	mild := klineBundle(map[string][]models.Candle{
		"binance": klineSeries(base, 100, 100.5, 101, 101.2, 101.5),
		"bybit":   klineSeries(base, 100, 100, 100, 100, 100),
	})
	assert.Empty(t, s.momentumDivergences("BTCUSDT", mild))
}

func TestVolumeFlowDivergenceFromMean(t *testing.T) {
	s := newTestService(t)

	// mean volume is 1333: the heavy venue deviates +50%, the others -25%
	bundle := tickerBundle(
		map[string]float64{"binance": 100, "bybit": 100, "okx": 100},
		map[string]float64{"binance": 1000, "bybit": 1000, "okx": 2000},
	)
	got := s.volumeFlowDivergences("BTCUSDT", bundle)
	require.Len(t, got, 1)
	assert.Equal(t, models.CategoryVolumeFlow, got[0].Category)
	assert.Equal(t, "okx", got[0].LeadExchange)
	assert.InDelta(t, 50.0, got[0].Magnitude, 1e-9)
}

func bookBundle(depths map[string][]models.PriceLevel, contributions map[string]float64) *models.MultiExchangeAnalytics {
	entries := map[string]models.ExchangeBookEntry{}
	for name, bids := range depths {
		entries[name] = models.ExchangeBookEntry{
			Orderbook:    models.Orderbook{Exchange: name, Bids: bids},
			Contribution: contributions[name],
		}
	}
	return &models.MultiExchangeAnalytics{
		Symbol:    "BTCUSDT",
		Ticker:    &models.AggregatedTicker{WeightedPrice: 100},
		Orderbook: &models.CompositeOrderbook{Exchanges: entries},
	}
}

func flatLevels(size float64, n int) []models.PriceLevel {
	out := make([]models.PriceLevel, n)
	for i := range out {
		out[i] = models.PriceLevel{Price: 100 - float64(i)*0.1, Size: size}
	}
	return out
}

func TestLiquidityDivergenceFromMean(t *testing.T) {
	s := newTestService(t)

	// total depths 100, 100 and 180: mean 126.7, the deep venue sits +42%
	bundle := bookBundle(map[string][]models.PriceLevel{
		"binance": flatLevels(10, 10),
		"bybit":   flatLevels(10, 10),
		"okx":     flatLevels(18, 10),
	}, map[string]float64{"binance": 30, "bybit": 30, "okx": 40})

	got := s.liquidityDivergences("BTCUSDT", bundle)
	require.Len(t, got, 1)
	assert.Equal(t, models.CategoryLiquidity, got[0].Category)
	assert.Equal(t, "okx", got[0].LeadExchange)
	assert.Greater(t, got[0].Magnitude, 25.0)
}

func TestInstitutionalFlowDivergenceFromFootprint(t *testing.T) {
	s := newTestService(t)

	wall := func(walls int) []models.PriceLevel {
		out := flatLevels(1, 10)
		for i := 0; i < walls; i++ {
			out[i].Size = 100
		}
		return out
	}
	// footprints weighted by contribution: 2*0.5, 0, 1*0.5; okx sits on the
	// mean and anchors as reference
	bundle := bookBundle(map[string][]models.PriceLevel{
		"binance": wall(2),
		"bybit":   wall(0),
		"okx":     wall(1),
	}, map[string]float64{"binance": 50, "bybit": 50, "okx": 50})

	got := s.institutionalFlowDivergences("BTCUSDT", bundle)
	require.Len(t, got, 2)
	leads := map[string]bool{}
	for _, d := range got {
		assert.Equal(t, models.CategoryInstitutionalFlow, d.Category)
		assert.Equal(t, "okx", d.LagExchange)
		assert.GreaterOrEqual(t, d.Magnitude, 40.0)
		leads[d.LeadExchange] = true
	}
	assert.True(t, leads["binance"] && leads["bybit"])
}

func TestMarketStructureBreakDivergence(t *testing.T) {
	s := newTestService(t)
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	flat := make([]float64, 20)
	for i := range flat {
		flat[i] = 100
	}
	// binance closes above its 20-period high, bybit stays inside the range
	bundle := klineBundle(map[string][]models.Candle{
		"binance": klineSeries(base, append(append([]float64{}, flat...), 103)...),
		"bybit":   klineSeries(base, append(append([]float64{}, flat...), 100)...),
	})

	got := s.marketStructureDivergences("BTCUSDT", bundle)
	require.Len(t, got, 1)
	d := got[0]
	assert.Equal(t, models.CategoryMarketStructure, d.Category)
	assert.Equal(t, "binance", d.LeadExchange)
	assert.Equal(t, "bybit", d.LagExchange)
	// 103 against a 101 prior high is a 1.98% break
	assert.InDelta(t, (103.0-101.0)/101.0*100, d.Magnitude, 1e-9)
	assert.Equal(t, "long", d.Signal.Action)

	// both inside the range stays quiet
	quiet := klineBundle(map[string][]models.Candle{
		"binance": klineSeries(base, append(append([]float64{}, flat...), 100)...),
		"bybit":   klineSeries(base, append(append([]float64{}, flat...), 100)...),
	})
	assert.Empty(t, s.marketStructureDivergences("BTCUSDT", quiet))
}

func TestPumpDumpFlags(t *testing.T) {
	s := newTestService(t)

	// one venue printed well over the mean while the market disagrees overall
	bundle := tickerBundle(
		map[string]float64{"binance": 100, "bybit": 100, "okx": 104},
		map[string]float64{"binance": 1000, "bybit": 1000, "okx": 100},
	)
	prices := []float64{100, 100, 104}
	var mean, varsum float64
	for _, p := range prices {
		mean += p
	}
	mean /= 3
	for _, p := range prices {
		varsum += (p - mean) * (p - mean)
	}
	bundle.Ticker.PriceDeviation = math.Sqrt(varsum / 3)

	got := s.pumpDumpFlags(bundle.Ticker)
	require.NotEmpty(t, got)
	flagged := map[string]string{}
	for _, f := range got {
		flagged[f.Exchange] = f.Pattern
	}
	assert.Equal(t, "pump_dump", flagged["okx"])
	assert.Equal(t, "suppression", flagged["binance"])

	// tight aggregate deviation suppresses everything
	calm := tickerBundle(
		map[string]float64{"binance": 100, "bybit": 100.1},
		map[string]float64{"binance": 1000, "bybit": 1000},
	)
	calm.Ticker.PriceDeviation = 0.05
	assert.Empty(t, s.pumpDumpFlags(calm.Ticker))
}

func TestSpoofingFlags(t *testing.T) {
	s := newTestService(t)

	stacked := flatLevels(1, 30)
	for i := 0; i < 6; i++ {
		stacked[i].Size = 50
	}
	bundle := bookBundle(map[string][]models.PriceLevel{
		"binance": stacked,
		"bybit":   flatLevels(1, 30),
	}, map[string]float64{"binance": 50, "bybit": 50})

	got := s.spoofingFlags(bundle.Orderbook)
	require.Len(t, got, 1)
	assert.Equal(t, "binance", got[0].Exchange)
	assert.Equal(t, "spoofing", got[0].Pattern)
}

func TestInstitutionalLevelsFixedOffsets(t *testing.T) {
	ticker := &models.AggregatedTicker{WeightedPrice: 100, TotalVolume: 1000}

	got := institutionalLevels(ticker)
	require.NotEmpty(t, got)
	byKind := map[string][]float64{}
	for _, l := range got {
		byKind[l.Kind] = append(byKind[l.Kind], l.Price)
	}
	assert.Equal(t, []float64{98}, byKind["accumulation"])
	assert.Equal(t, []float64{102}, byKind["distribution"])
	assert.Equal(t, []float64{95}, byKind["support"])
	assert.Equal(t, []float64{105}, byKind["resistance"])
	assert.Len(t, byKind["high_volume_node"], 2)

	assert.Empty(t, institutionalLevels(nil))
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()
	assert.Equal(t, 0.7, cfg.StatArbMaxCorrelation)
	assert.Equal(t, 3.0, cfg.WallSizeMultiple)
	assert.Equal(t, 0.5, cfg.ConsensusTolerance)
	assert.Equal(t, 0.1, cfg.BuyFeePcnt)
	assert.Equal(t, 0.1, cfg.SellFeePcnt)
}
