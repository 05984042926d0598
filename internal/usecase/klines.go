package usecase

import (
	"context"
	"sort"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	"ExFuse/internal/services/stats"
)

const opSynchronizedKlines = "synchronized_klines"

// GetSynchronizedKlines aligns kline series from every healthy exchange on
// a shared time axis. The composite series covers only the timestamps every
// contributing exchange reported; disjoint series yield an empty composite.
func (a *Aggregator) GetSynchronizedKlines(ctx context.Context, symbol, interval string, limit int, category string) (*models.SynchronizedKlines, error) {
	start := time.Now()
	defer func() { a.metrics.RecordOperation(opSynchronizedKlines, time.Since(start)) }()

	healthy := a.healthy(ctx)
	if len(healthy) == 0 {
		return nil, models.NewAggregationError(opSynchronizedKlines, symbol, models.ErrNoHealthyExchanges)
	}

	results := fanOut(ctx, healthy, a.timeout, func(ctx context.Context, ad repository.ExchangeAdapter) ([]models.Candle, error) {
		return ad.GetKlines(ctx, symbol, interval, limit, category)
	})
	good := keepGood(a, opSynchronizedKlines, results)
	if len(good) == 0 {
		return nil, models.NewAggregationError(opSynchronizedKlines, symbol, models.ErrNoHealthyExchanges)
	}

	return a.buildSynchronizedKlines(symbol, interval, limit, good), nil
}

func (a *Aggregator) buildSynchronizedKlines(symbol, interval string, limit int, good []fetched[[]models.Candle]) *models.SynchronizedKlines {
	bySeries := make(map[string]map[int64]models.Candle, len(good))
	union := make(map[int64]struct{})

	for _, g := range good {
		m := make(map[int64]models.Candle, len(g.val))
		for _, c := range g.val {
			ts := c.Start.Unix()
			m[ts] = c
			union[ts] = struct{}{}
		}
		bySeries[g.exchange] = m
	}

	shared := make([]int64, 0, len(union))
	for ts := range union {
		inAll := true
		for _, m := range bySeries {
			if _, ok := m[ts]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, ts)
		}
	}
	sort.Slice(shared, func(i, j int) bool { return shared[i] < shared[j] })

	aggregated := make([]models.Candle, 0, len(shared))
	for _, ts := range shared {
		var opens, highs, lows, closes, weights []float64
		var volume, turnover float64
		for name, m := range bySeries {
			c := m[ts]
			opens = append(opens, c.Open)
			highs = append(highs, c.High)
			lows = append(lows, c.Low)
			closes = append(closes, c.Close)
			weights = append(weights, a.weight(name))
			volume += c.Volume
			turnover += c.Turnover
		}
		_, hi := stats.MinMax(highs)
		lo, _ := stats.MinMax(lows)
		aggregated = append(aggregated, models.Candle{
			Start:    time.Unix(ts, 0),
			Open:     stats.WeightedMean(opens, weights),
			High:     hi,
			Low:      lo,
			Close:    stats.WeightedMean(closes, weights),
			Volume:   volume,
			Turnover: turnover,
		})
	}

	expected := limit
	if expected <= 0 {
		expected = len(union)
	}
	if expected <= 0 {
		expected = 1
	}

	now := time.Now()
	entries := make(map[string]models.ExchangeKlineEntry, len(good))
	gaps := make(map[string]models.SyncGap, len(good))
	var qualityScores, gapScores, lagScores, weights []float64
	for _, g := range good {
		step := seriesStep(g.val)
		gapPeriods := gapPeriods(g.val, step)

		completeness := 0.0
		if expected > 0 {
			completeness = stats.Clamp(float64(len(g.val))/float64(expected), 0, 1) * 100
		}
		continuity := 100 * (1 - stats.Clamp(float64(gapPeriods)/float64(expected), 0, 1))
		quality := 0.7*completeness + 0.3*continuity

		var lag time.Duration
		if n := len(g.val); n > 0 {
			lag = now.Sub(g.val[n-1].Start)
		}
		lagScore := 100 * (1 - stats.Clamp(lag.Seconds()/(5*step.Seconds()), 0, 1))

		w := a.weight(g.exchange)
		qualityScores = append(qualityScores, quality)
		gapScores = append(gapScores, continuity)
		lagScores = append(lagScores, lagScore)
		weights = append(weights, w)

		entries[g.exchange] = models.ExchangeKlineEntry{
			Klines:      g.val,
			Weight:      w,
			DataQuality: quality,
		}
		gaps[g.exchange] = models.SyncGap{
			MissingPeriods: gapPeriods,
			DataLag:        lag,
		}
	}

	// quality 50%, gap penalty 30%, lag penalty 20%; scaled by how much of
	// the union actually survived synchronization so disjoint series score 0
	blend := 0.5*stats.WeightedMean(qualityScores, weights) +
		0.3*stats.WeightedMean(gapScores, weights) +
		0.2*stats.WeightedMean(lagScores, weights)
	coverage := 1.0
	if len(union) > 0 {
		coverage = float64(len(shared)) / float64(len(union))
	}

	return &models.SynchronizedKlines{
		Symbol:     symbol,
		Interval:   interval,
		Aggregated: aggregated,
		Exchanges:  entries,
		Gaps:       gaps,
		Confidence: stats.ClampScore(blend * coverage),
		Timestamp:  now,
	}
}

// seriesStep infers the candle interval as the smallest positive distance
// between consecutive candles.
func seriesStep(candles []models.Candle) time.Duration {
	step := time.Duration(0)
	for i := 1; i < len(candles); i++ {
		d := candles[i].Start.Sub(candles[i-1].Start)
		if d > 0 && (step == 0 || d < step) {
			step = d
		}
	}
	if step == 0 {
		step = time.Minute
	}
	return step
}

// gapPeriods counts candles missing inside a series: any consecutive
// distance over 1.5x the expected interval is a gap.
func gapPeriods(candles []models.Candle, step time.Duration) int {
	var missing int
	for i := 1; i < len(candles); i++ {
		d := candles[i].Start.Sub(candles[i-1].Start)
		if d > step*3/2 {
			missing += int(d/step) - 1
		}
	}
	return missing
}
