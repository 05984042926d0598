package usecase

import (
	"context"
	"sync"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	"ExFuse/internal/services/stats"
	"ExFuse/pkg/logger"
)

const opMultiExchangeAnalytics = "multi_exchange_analytics"

// GetMultiExchangeAnalytics builds the combined bundle by running every
// component concurrently. Every component is required: if any sub-call is
// fatal the whole call fails rather than returning a partial bundle.
func (a *Aggregator) GetMultiExchangeAnalytics(ctx context.Context, symbol, timeframe string) (*models.MultiExchangeAnalytics, error) {
	start := time.Now()
	defer func() { a.metrics.RecordOperation(opMultiExchangeAnalytics, time.Since(start)) }()

	tf := repository.NormalizeTimeframe(timeframe)
	out := &models.MultiExchangeAnalytics{
		Symbol:    symbol,
		Timeframe: string(tf),
	}

	components := []string{"ticker", "orderbook", "klines", "dominance", "correlation", "signals"}
	errs := make(map[string]error, len(components))
	var mu sync.Mutex
	var wg sync.WaitGroup

	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := fn()
			mu.Lock()
			errs[name] = err
			mu.Unlock()
		}()
	}

	run("ticker", func() error {
		v, err := a.GetAggregatedTicker(ctx, symbol, "spot")
		if err == nil {
			mu.Lock()
			out.Ticker = v
			mu.Unlock()
		}
		return err
	})
	run("orderbook", func() error {
		v, err := a.GetCompositeOrderbook(ctx, symbol, "spot", 50)
		if err == nil {
			mu.Lock()
			out.Orderbook = v
			mu.Unlock()
		}
		return err
	})
	run("klines", func() error {
		v, err := a.GetSynchronizedKlines(ctx, symbol, tf.Interval(), 50, "spot")
		if err == nil {
			mu.Lock()
			out.Klines = v
			mu.Unlock()
		}
		return err
	})
	run("dominance", func() error {
		v, err := a.GetExchangeDominance(ctx, symbol, string(tf))
		if err == nil {
			mu.Lock()
			out.Dominance = v
			mu.Unlock()
		}
		return err
	})
	run("correlation", func() error {
		v, err := a.correlation(ctx, symbol, tf)
		if err == nil {
			mu.Lock()
			out.Correlation = v
			mu.Unlock()
		}
		return err
	})
	run("signals", func() error {
		divs, derr := a.DetectDivergences(ctx, symbol, "spot")
		opps, aerr := a.IdentifyArbitrage(ctx, symbol, "spot")
		mu.Lock()
		out.Divergences = divs
		out.Arbitrage = opps
		mu.Unlock()
		if derr != nil {
			return derr
		}
		return aerr
	})

	wg.Wait()

	for _, name := range components {
		if err := errs[name]; err != nil {
			a.log.Warn("analytics component failed",
				logger.String("component", name),
				logger.String("symbol", symbol),
				logger.Error(err))
			return nil, models.NewAggregationError(opMultiExchangeAnalytics, symbol, err)
		}
	}

	out.Quality = a.dataQuality(out)
	out.GeneratedAt = time.Now()
	return out, nil
}

// dataQuality summarizes the snapshot feeding the bundle. All components are
// present by the time this runs; the scores grade how degraded they are.
func (a *Aggregator) dataQuality(bundle *models.MultiExchangeAnalytics) models.DataQuality {
	q := models.DataQuality{}

	if n := len(a.adapters); n > 0 {
		q.Completeness = float64(len(bundle.Ticker.Exchanges)) / float64(n) * 100
	}

	q.Consistency = 100 - stats.Clamp(bundle.Ticker.Range.SpreadPcnt*20, 0, 100)

	age := time.Since(bundle.Ticker.Timestamp)
	q.Timeliness = stats.ClampScore(100 - age.Seconds()/a.thr.MaxTickerAge.Seconds()*100)

	if n := len(bundle.Klines.Exchanges); n > 0 {
		complete := 0
		for _, e := range bundle.Klines.Exchanges {
			if e.DataQuality >= a.quality.MinDataCompleteness {
				complete++
			}
		}
		q.Reliability = float64(complete) / float64(n) * 100
	}

	q.Overall = stats.ClampScore((q.Completeness + q.Consistency + q.Timeliness + q.Reliability) / 4)
	return q
}
