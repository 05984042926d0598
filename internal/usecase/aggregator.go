package usecase

import (
	"context"
	"sync"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	"ExFuse/internal/service/cache"
	"ExFuse/pkg/logger"
)

// Thresholds are the aggregation tuning knobs.
type Thresholds struct {
	MinSpreadPcnt        float64
	BuyFeePcnt           float64
	SellFeePcnt          float64
	PriceDivergencePcnt  float64
	VolumeDivergencePcnt float64
	MaxTickerAge         time.Duration
}

// QualityThresholds gate which adapters may contribute to a merge. An
// adapter outside these bounds is excluded before any fetch is attempted.
type QualityThresholds struct {
	MinResponseTime     time.Duration
	MaxErrorRate        float64
	MinDataCompleteness float64
}

// AggregatorConfig wires adapters, trust weights and thresholds.
type AggregatorConfig struct {
	Weights           map[string]float64
	AdapterTimeout    time.Duration
	DominanceCacheTTL time.Duration
	Thresholds        Thresholds
	Quality           QualityThresholds
}

// Aggregator fans out to every healthy exchange adapter and merges the
// responses. Individual adapter failures degrade the result; only a total
// absence of usable sources is fatal.
type Aggregator struct {
	adapters []repository.ExchangeAdapter
	weights  map[string]float64
	timeout  time.Duration
	domTTL   time.Duration
	thr      Thresholds
	quality  QualityThresholds

	domCache *cache.TTLCache
	metrics  repository.Metrics
	log      *logger.Logger
}

func NewAggregator(adapters []repository.ExchangeAdapter, cfg AggregatorConfig, metrics repository.Metrics, log *logger.Logger) *Aggregator {
	if cfg.Quality.MinResponseTime == 0 {
		cfg.Quality.MinResponseTime = 3 * time.Second
	}
	if cfg.Quality.MaxErrorRate == 0 {
		cfg.Quality.MaxErrorRate = 50
	}
	if cfg.Quality.MinDataCompleteness == 0 {
		cfg.Quality.MinDataCompleteness = 80
	}
	if cfg.AdapterTimeout == 0 {
		// one slow adapter must not hold up the fan-in
		cfg.AdapterTimeout = cfg.Quality.MinResponseTime
	}
	if cfg.DominanceCacheTTL == 0 {
		cfg.DominanceCacheTTL = 60 * time.Second
	}
	if cfg.Thresholds.MinSpreadPcnt == 0 {
		cfg.Thresholds.MinSpreadPcnt = 0.1
	}
	if cfg.Thresholds.BuyFeePcnt == 0 {
		cfg.Thresholds.BuyFeePcnt = 0.1
	}
	if cfg.Thresholds.SellFeePcnt == 0 {
		cfg.Thresholds.SellFeePcnt = 0.1
	}
	if cfg.Thresholds.PriceDivergencePcnt == 0 {
		cfg.Thresholds.PriceDivergencePcnt = 0.5
	}
	if cfg.Thresholds.VolumeDivergencePcnt == 0 {
		cfg.Thresholds.VolumeDivergencePcnt = 20
	}
	if cfg.Thresholds.MaxTickerAge == 0 {
		cfg.Thresholds.MaxTickerAge = 30 * time.Second
	}

	return &Aggregator{
		adapters: adapters,
		weights:  cfg.Weights,
		timeout:  cfg.AdapterTimeout,
		domTTL:   cfg.DominanceCacheTTL,
		thr:      cfg.Thresholds,
		quality:  cfg.Quality,
		domCache: cache.NewTTLCache(),
		metrics:  metrics,
		log:      log,
	}
}

func (a *Aggregator) weight(exchange string) float64 {
	if w, ok := a.weights[exchange]; ok && w > 0 {
		return w
	}
	return 1.0 / float64(len(a.adapters))
}

// healthy runs all health checks concurrently and keeps the adapters that
// pass the quality thresholds. The gauge reflects the latest sweep.
func (a *Aggregator) healthy(ctx context.Context) []repository.ExchangeAdapter {
	type check struct {
		adapter repository.ExchangeAdapter
		health  models.ExchangeHealth
	}

	ch := make(chan check, len(a.adapters))
	var wg sync.WaitGroup
	for _, ad := range a.adapters {
		wg.Add(1)
		go func(ad repository.ExchangeAdapter) {
			defer wg.Done()
			ch <- check{adapter: ad, health: ad.HealthCheck(ctx)}
		}(ad)
	}
	wg.Wait()
	close(ch)

	var out []repository.ExchangeAdapter
	for c := range ch {
		h := c.health
		switch {
		case !h.Healthy:
			a.log.Warn("exchange unhealthy",
				logger.String("exchange", h.Exchange),
				logger.String("last_error", h.LastError))
		case h.Latency >= a.quality.MinResponseTime || h.ErrorRate >= a.quality.MaxErrorRate:
			a.log.Debug("exchange outside quality thresholds",
				logger.String("exchange", h.Exchange),
				logger.Duration("latency", h.Latency),
				logger.Float64("error_rate", h.ErrorRate))
		default:
			out = append(out, c.adapter)
		}
	}
	a.metrics.SetHealthyExchanges(len(out))
	return out
}

type fetched[T any] struct {
	exchange string
	val      T
	took     time.Duration
	err      error
}

// fanOut queries every adapter concurrently with a per-adapter timeout and
// returns all outcomes, failed ones included.
func fanOut[T any](ctx context.Context, adapters []repository.ExchangeAdapter, timeout time.Duration,
	fetch func(ctx context.Context, ad repository.ExchangeAdapter) (T, error),
) []fetched[T] {
	ch := make(chan fetched[T], len(adapters))
	var wg sync.WaitGroup
	for _, ad := range adapters {
		wg.Add(1)
		go func(ad repository.ExchangeAdapter) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			val, err := fetch(cctx, ad)
			ch <- fetched[T]{exchange: ad.Name(), val: val, took: time.Since(start), err: err}
		}(ad)
	}
	wg.Wait()
	close(ch)

	out := make([]fetched[T], 0, len(adapters))
	for f := range ch {
		out = append(out, f)
	}
	return out
}

// keepGood splits outcomes, logging and counting the failures.
func keepGood[T any](a *Aggregator, op string, results []fetched[T]) []fetched[T] {
	good := results[:0:0]
	for _, r := range results {
		if r.err != nil {
			a.metrics.RecordFetchError(r.exchange, op)
			a.log.Warn("exchange fetch failed",
				logger.String("exchange", r.exchange),
				logger.String("op", op),
				logger.Error(r.err))
			continue
		}
		good = append(good, r)
	}
	return good
}
