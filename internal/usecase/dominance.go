package usecase

import (
	"context"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	svccache "ExFuse/internal/service/cache"
	"ExFuse/internal/services/stats"
)

const opExchangeDominance = "exchange_dominance"

// GetExchangeDominance ranks exchanges by volume share, price influence and
// liquidity. Results are cached per symbol+timeframe for the configured TTL.
func (a *Aggregator) GetExchangeDominance(ctx context.Context, symbol, timeframe string) (*models.ExchangeDominance, error) {
	start := time.Now()
	defer func() { a.metrics.RecordOperation(opExchangeDominance, time.Since(start)) }()

	tf := repository.NormalizeTimeframe(timeframe)
	key := symbol + "|" + string(tf)
	if cached, ok := svccache.GetTyped[*models.ExchangeDominance](a.domCache, key); ok {
		a.metrics.RecordCacheHit("dominance")
		return cached, nil
	}
	a.metrics.RecordCacheMiss("dominance")

	healthy := a.healthy(ctx)
	if len(healthy) == 0 {
		return nil, models.NewAggregationError(opExchangeDominance, symbol, models.ErrNoHealthyExchanges)
	}

	tickers := fanOut(ctx, healthy, a.timeout, func(ctx context.Context, ad repository.ExchangeAdapter) (*models.Ticker, error) {
		return ad.GetTicker(ctx, symbol, "spot")
	})
	books := fanOut(ctx, healthy, a.timeout, func(ctx context.Context, ad repository.ExchangeAdapter) (*models.Orderbook, error) {
		return ad.GetOrderbook(ctx, symbol, "spot", 25)
	})

	goodTickers := keepGood(a, opExchangeDominance, tickers)
	if len(goodTickers) == 0 {
		return nil, models.NewAggregationError(opExchangeDominance, symbol, models.ErrNoHealthyExchanges)
	}
	goodBooks := keepGood(a, opExchangeDominance, books)

	dom := a.buildDominance(symbol, tf, goodTickers, goodBooks)
	a.domCache.Set(key, dom, a.domTTL)
	return dom, nil
}

func (a *Aggregator) buildDominance(symbol string, tf repository.Timeframe, tickers []fetched[*models.Ticker], books []fetched[*models.Orderbook]) *models.ExchangeDominance {
	var totalVolume float64
	for _, t := range tickers {
		totalVolume += t.val.Volume24h
	}

	liquidity := make(map[string]float64, len(books))
	for _, b := range books {
		liquidity[b.exchange] = bookLiquidityScore(b.val)
	}

	entries := make(map[string]models.DominanceEntry, len(tickers))
	var leader string
	var best float64
	for _, t := range tickers {
		share := 0.0
		if totalVolume > 0 {
			share = t.val.Volume24h / totalVolume * 100
		}
		entry := models.DominanceEntry{
			VolumeShare:    share,
			PriceInfluence: stats.ClampScore(a.weight(t.exchange)*100*0.5 + share*0.5),
			LiquidityScore: liquidity[t.exchange],
		}
		entries[t.exchange] = entry

		composite := entry.VolumeShare*0.4 + entry.PriceInfluence*0.4 + entry.LiquidityScore*0.2
		if composite > best {
			best = composite
			leader = t.exchange
		}
	}

	return &models.ExchangeDominance{
		Symbol:     symbol,
		Timeframe:  string(tf),
		Exchanges:  entries,
		Leader:     leader,
		ComputedAt: time.Now(),
	}
}

func bookLiquidityScore(book *models.Orderbook) float64 {
	var bid, ask float64
	for _, l := range book.Bids {
		bid += l.Size
	}
	for _, l := range book.Asks {
		ask += l.Size
	}

	spreadPcnt := 0.0
	if len(book.Bids) > 0 && len(book.Asks) > 0 {
		mid := (book.Bids[0].Price + book.Asks[0].Price) / 2
		if mid > 0 {
			spreadPcnt = (book.Asks[0].Price - book.Bids[0].Price) / mid * 100
		}
	}
	return liquidityScore(bid, ask, spreadPcnt)
}

// correlation builds pairwise Pearson matrices over kline series aligned on
// shared timestamps. Matrices are symmetric with 1.0 on the diagonal.
func (a *Aggregator) correlation(ctx context.Context, symbol string, tf repository.Timeframe) (*models.ExchangeCorrelation, error) {
	healthy := a.healthy(ctx)
	if len(healthy) == 0 {
		return nil, models.NewAggregationError("exchange_correlation", symbol, models.ErrNoHealthyExchanges)
	}

	results := fanOut(ctx, healthy, a.timeout, func(ctx context.Context, ad repository.ExchangeAdapter) ([]models.Candle, error) {
		return ad.GetKlines(ctx, symbol, tf.Interval(), 50, "spot")
	})
	good := keepGood(a, "exchange_correlation", results)
	if len(good) == 0 {
		return nil, models.NewAggregationError("exchange_correlation", symbol, models.ErrNoHealthyExchanges)
	}

	names := make([]string, 0, len(good))
	series := make(map[string]map[int64]models.Candle, len(good))
	for _, g := range good {
		names = append(names, g.exchange)
		m := make(map[int64]models.Candle, len(g.val))
		for _, c := range g.val {
			m[c.Start.Unix()] = c
		}
		series[g.exchange] = m
	}

	n := len(names)
	priceMatrix := identityMatrix(n)
	volumeMatrix := identityMatrix(n)
	var pairs []models.CorrelationPair

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			closesA, closesB, volsA, volsB := alignedSeries(series[names[i]], series[names[j]])
			pc := stats.Pearson(closesA, closesB)
			vc := stats.Pearson(volsA, volsB)

			priceMatrix[i][j], priceMatrix[j][i] = pc, pc
			volumeMatrix[i][j], volumeMatrix[j][i] = vc, vc
			pairs = append(pairs, models.CorrelationPair{
				ExchangeA:         names[i],
				ExchangeB:         names[j],
				PriceCorrelation:  pc,
				VolumeCorrelation: vc,
				Strength:          correlationStrength(pc),
			})
		}
	}

	return &models.ExchangeCorrelation{
		Symbol:       symbol,
		Timeframe:    string(tf),
		Exchanges:    names,
		PriceMatrix:  priceMatrix,
		VolumeMatrix: volumeMatrix,
		Pairs:        pairs,
		Outliers:     correlationOutliers(names, priceMatrix),
		ComputedAt:   time.Now(),
	}, nil
}

func identityMatrix(n int) [][]float64 {
	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
		m[i][i] = 1.0
	}
	return m
}

func alignedSeries(a, b map[int64]models.Candle) (closesA, closesB, volsA, volsB []float64) {
	for ts, ca := range a {
		cb, ok := b[ts]
		if !ok {
			continue
		}
		closesA = append(closesA, ca.Close)
		closesB = append(closesB, cb.Close)
		volsA = append(volsA, ca.Volume)
		volsB = append(volsB, cb.Volume)
	}
	return
}

func correlationStrength(r float64) string {
	abs := r
	if abs < 0 {
		abs = -abs
	}
	switch {
	case abs >= 0.8:
		return "strong"
	case abs >= 0.5:
		return "moderate"
	}
	return "weak"
}

// correlationOutliers flags exchanges whose average correlation with the
// rest of the market is weak.
func correlationOutliers(names []string, matrix [][]float64) []string {
	var out []string
	for i, name := range names {
		if len(names) < 2 {
			break
		}
		var sum float64
		for j := range names {
			if i != j {
				sum += matrix[i][j]
			}
		}
		if sum/float64(len(names)-1) < 0.5 {
			out = append(out, name)
		}
	}
	return out
}
