package usecase

import (
	"context"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	"ExFuse/internal/services/stats"
)

const opAggregatedTicker = "aggregated_ticker"

// GetAggregatedTicker merges tickers from every healthy exchange into a
// weighted composite.
func (a *Aggregator) GetAggregatedTicker(ctx context.Context, symbol, category string) (*models.AggregatedTicker, error) {
	start := time.Now()
	defer func() { a.metrics.RecordOperation(opAggregatedTicker, time.Since(start)) }()

	healthy := a.healthy(ctx)
	if len(healthy) == 0 {
		return nil, models.NewAggregationError(opAggregatedTicker, symbol, models.ErrNoHealthyExchanges)
	}

	results := fanOut(ctx, healthy, a.timeout, func(ctx context.Context, ad repository.ExchangeAdapter) (*models.Ticker, error) {
		return ad.GetTicker(ctx, symbol, category)
	})
	good := keepGood(a, opAggregatedTicker, results)
	if len(good) == 0 {
		return nil, models.NewAggregationError(opAggregatedTicker, symbol, models.ErrNoHealthyExchanges)
	}

	return a.buildAggregatedTicker(symbol, category, good), nil
}

func (a *Aggregator) buildAggregatedTicker(symbol, category string, good []fetched[*models.Ticker]) *models.AggregatedTicker {
	prices := make([]float64, 0, len(good))
	volumes := make([]float64, 0, len(good))
	weights := make([]float64, 0, len(good))
	entries := make(map[string]models.ExchangeTickerEntry, len(good))

	var totalVolume, totalTurnover float64
	for _, g := range good {
		t := g.val
		prices = append(prices, t.LastPrice)
		volumes = append(volumes, t.Volume24h)
		weights = append(weights, a.weight(g.exchange))
		totalVolume += t.Volume24h
		totalTurnover += t.Turnover24h
		entries[g.exchange] = models.ExchangeTickerEntry{
			Ticker:       *t,
			Weight:       a.weight(g.exchange),
			ResponseTime: g.took,
		}
	}

	min, max := stats.MinMax(prices)
	spread := stats.SpreadPercent(min, max)

	return &models.AggregatedTicker{
		Symbol:         symbol,
		Category:       category,
		WeightedPrice:  stats.WeightedMean(prices, weights),
		PriceDeviation: stats.StdDev(prices),
		TotalVolume:    totalVolume,
		TotalTurnover:  totalTurnover,
		Range:          models.PriceRange{Min: min, Max: max, SpreadPcnt: spread},
		Confidence:     tickerConfidence(spread, volumes, weights),
		Exchanges:      entries,
		Timestamp:      time.Now(),
	}
}

// tickerConfidence blends price consistency (50%), volume consistency (30%)
// and weight-distribution balance (20%), each a 0-100 sub-score.
func tickerConfidence(spreadPcnt float64, volumes, weights []float64) float64 {
	priceConsistency := 100 * (1 - stats.Clamp(spreadPcnt/2, 0, 1))
	volumeConsistency := stats.Consistency(volumes)
	weightBalance := stats.Consistency(weights)
	return stats.ClampScore(0.5*priceConsistency + 0.3*volumeConsistency + 0.2*weightBalance)
}
