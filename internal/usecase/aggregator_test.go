package usecase

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	"ExFuse/pkg/logger"
)

type fakeAdapter struct {
	name      string
	unhealthy bool
	latency   time.Duration
	errRate   float64

	ticker    *models.Ticker
	tickerErr error
	book      *models.Orderbook
	bookErr   error
	klines    []models.Candle
	klinesErr error

	tickerCalls atomic.Int64
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) GetTicker(ctx context.Context, symbol, category string) (*models.Ticker, error) {
	f.tickerCalls.Add(1)
	if f.tickerErr != nil {
		return nil, f.tickerErr
	}
	t := *f.ticker
	t.Symbol = symbol
	t.Exchange = f.name
	t.Timestamp = time.Now()
	return &t, nil
}

func (f *fakeAdapter) GetOrderbook(ctx context.Context, symbol, category string, limit int) (*models.Orderbook, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	if f.book == nil {
		return &models.Orderbook{Symbol: symbol, Exchange: f.name, Timestamp: time.Now()}, nil
	}
	b := *f.book
	b.Symbol = symbol
	b.Exchange = f.name
	return &b, nil
}

func (f *fakeAdapter) GetKlines(ctx context.Context, symbol, interval string, limit int, category string) ([]models.Candle, error) {
	if f.klinesErr != nil {
		return nil, f.klinesErr
	}
	return f.klines, nil
}

func (f *fakeAdapter) HealthCheck(ctx context.Context) models.ExchangeHealth {
	return models.ExchangeHealth{
		Exchange:  f.name,
		Healthy:   !f.unhealthy,
		Latency:   f.latency,
		ErrorRate: f.errRate,
		CheckedAt: time.Now(),
	}
}

type noopMetrics struct{}

func (noopMetrics) RecordOperation(string, time.Duration) {}
func (noopMetrics) RecordFetchError(string, string)       {}
func (noopMetrics) SetHealthyExchanges(int)               {}
func (noopMetrics) RecordOpportunity(string)              {}
func (noopMetrics) RecordCacheHit(string)                 {}
func (noopMetrics) RecordCacheMiss(string)                {}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestAggregator(t *testing.T, weights map[string]float64, adapters ...repository.ExchangeAdapter) *Aggregator {
	t.Helper()
	return NewAggregator(adapters, AggregatorConfig{Weights: weights}, noopMetrics{}, testLogger(t))
}

func ticker(price, bid, ask, volume float64) *models.Ticker {
	return &models.Ticker{LastPrice: price, Bid1Price: bid, Ask1Price: ask, Volume24h: volume}
}

func TestAggregatedTickerSingleExchange(t *testing.T) {
	a := newTestAggregator(t, nil, &fakeAdapter{name: "bybit", ticker: ticker(65000, 64999, 65001, 100)})

	got, err := a.GetAggregatedTicker(context.Background(), "BTCUSDT", "spot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.WeightedPrice != 65000 {
		t.Fatalf("single source must yield its exact price, got %v", got.WeightedPrice)
	}
	if got.PriceDeviation != 0 {
		t.Fatalf("single source deviation must be 0, got %v", got.PriceDeviation)
	}
	if got.Confidence < 0 || got.Confidence > 100 {
		t.Fatalf("confidence out of range: %v", got.Confidence)
	}
}

func TestAggregatedTickerWeighted(t *testing.T) {
	a := newTestAggregator(t,
		map[string]float64{"binance": 0.6, "bybit": 0.4},
		&fakeAdapter{name: "binance", ticker: ticker(100.0, 99.9, 100.1, 1000)},
		&fakeAdapter{name: "bybit", ticker: ticker(101.0, 100.9, 101.1, 500)},
	)

	got, err := a.GetAggregatedTicker(context.Background(), "BTCUSDT", "spot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got.WeightedPrice-100.4) > 1e-9 {
		t.Fatalf("weighted price: got %v, want 100.4", got.WeightedPrice)
	}
	if got.TotalVolume != 1500 {
		t.Fatalf("total volume: got %v, want 1500", got.TotalVolume)
	}
	if math.Abs(got.Range.SpreadPcnt-1.0) > 1e-9 {
		t.Fatalf("range spread: got %v, want 1.0", got.Range.SpreadPcnt)
	}
	if got.Range.Min != 100.0 || got.Range.Max != 101.0 {
		t.Fatalf("range: got [%v, %v]", got.Range.Min, got.Range.Max)
	}
	if got.WeightedPrice < got.Range.Min || got.WeightedPrice > got.Range.Max {
		t.Fatal("weighted price must stay inside the observed range")
	}
}

func TestAllUnhealthyIsFatalEverywhere(t *testing.T) {
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", unhealthy: true, ticker: ticker(100, 99, 101, 1)},
		&fakeAdapter{name: "bybit", unhealthy: true, ticker: ticker(100, 99, 101, 1)},
	)
	ctx := context.Background()

	calls := []func() error{
		func() error { _, err := a.GetAggregatedTicker(ctx, "BTCUSDT", "spot"); return err },
		func() error { _, err := a.GetCompositeOrderbook(ctx, "BTCUSDT", "spot", 50); return err },
		func() error { _, err := a.GetSynchronizedKlines(ctx, "BTCUSDT", "15", 50, "spot"); return err },
		func() error { _, err := a.DetectDivergences(ctx, "BTCUSDT", "spot"); return err },
		func() error { _, err := a.IdentifyArbitrage(ctx, "BTCUSDT", "spot"); return err },
		func() error { _, err := a.GetExchangeDominance(ctx, "BTCUSDT", "1h"); return err },
		func() error { _, err := a.GetMultiExchangeAnalytics(ctx, "BTCUSDT", "1h"); return err },
	}
	for i, call := range calls {
		err := call()
		if !errors.Is(err, models.ErrNoHealthyExchanges) {
			t.Fatalf("op %d: expected ErrNoHealthyExchanges, got %v", i, err)
		}
		var aggErr *models.AggregationError
		if !errors.As(err, &aggErr) {
			t.Fatalf("op %d: expected AggregationError, got %T", i, err)
		}
		if aggErr.Symbol != "BTCUSDT" {
			t.Fatalf("op %d: error must carry symbol, got %q", i, aggErr.Symbol)
		}
	}
}

func TestDegradedAdapterExcluded(t *testing.T) {
	// healthy flag set, but latency and error rate over the limits
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", latency: 5 * time.Second, ticker: ticker(100, 99, 101, 1)},
		&fakeAdapter{name: "bybit", errRate: 80, ticker: ticker(100, 99, 101, 1)},
	)

	_, err := a.GetAggregatedTicker(context.Background(), "BTCUSDT", "spot")
	if !errors.Is(err, models.ErrNoHealthyExchanges) {
		t.Fatalf("degraded adapters must be excluded, got %v", err)
	}

	// tighter thresholds exclude an adapter the defaults would admit
	b := NewAggregator(
		[]repository.ExchangeAdapter{&fakeAdapter{name: "binance", latency: 500 * time.Millisecond, ticker: ticker(100, 99, 101, 1)}},
		AggregatorConfig{Quality: QualityThresholds{MinResponseTime: 100 * time.Millisecond}},
		noopMetrics{}, testLogger(t),
	)
	_, err = b.GetAggregatedTicker(context.Background(), "BTCUSDT", "spot")
	if !errors.Is(err, models.ErrNoHealthyExchanges) {
		t.Fatalf("latency over the configured bound must exclude, got %v", err)
	}
}

func TestPartialFailureDegradesSoftly(t *testing.T) {
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", tickerErr: errors.New("boom")},
		&fakeAdapter{name: "bybit", ticker: ticker(200, 199, 201, 10)},
	)

	got, err := a.GetAggregatedTicker(context.Background(), "ETHUSDT", "spot")
	if err != nil {
		t.Fatalf("one working source must not error: %v", err)
	}
	if len(got.Exchanges) != 1 {
		t.Fatalf("expected 1 contributor, got %d", len(got.Exchanges))
	}
	if got.WeightedPrice != 200 {
		t.Fatalf("price: got %v", got.WeightedPrice)
	}
}

func TestArbitrageFeeGate(t *testing.T) {
	// 0.5% spread beats the 0.2% fee
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", ticker: ticker(100, 99.95, 100.0, 1000)},
		&fakeAdapter{name: "bybit", ticker: ticker(100.5, 100.5, 100.6, 800)},
	)

	opps, err := a.IdentifyArbitrage(context.Background(), "BTCUSDT", "spot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opps) == 0 {
		t.Fatal("0.5%% spread must survive the fee gate")
	}
	o := opps[0]
	if o.BuyExchange != "binance" || o.SellExchange != "bybit" {
		t.Fatalf("direction wrong: buy %s sell %s", o.BuyExchange, o.SellExchange)
	}
	if !o.ProfitPcnt.IsPositive() {
		t.Fatalf("profit must be positive, got %s", o.ProfitPcnt)
	}

	// 0.15% spread dies to the 0.2% fee
	b := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", ticker: ticker(100, 99.95, 100.0, 1000)},
		&fakeAdapter{name: "bybit", ticker: ticker(100.15, 100.15, 100.2, 800)},
	)
	opps, err = b.IdentifyArbitrage(context.Background(), "BTCUSDT", "spot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(opps) != 0 {
		t.Fatalf("0.15%% spread must not survive fees, got %d opportunities", len(opps))
	}
}

func TestArbitrageDedupPrefersTickerLevel(t *testing.T) {
	book := func(bid, ask float64) *models.Orderbook {
		return &models.Orderbook{
			Bids: []models.PriceLevel{{Price: bid, Size: 5}},
			Asks: []models.PriceLevel{{Price: ask, Size: 5}},
		}
	}
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", ticker: ticker(100, 99.95, 100.0, 1000), book: book(99.95, 100.0)},
		&fakeAdapter{name: "bybit", ticker: ticker(101, 101.0, 101.1, 800), book: book(101.0, 101.1)},
	)

	opps, err := a.IdentifyArbitrage(context.Background(), "BTCUSDT", "spot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	seen := map[string]int{}
	for _, o := range opps {
		seen[o.BuyExchange+"|"+o.SellExchange]++
	}
	for pair, n := range seen {
		if n > 1 {
			t.Fatalf("pair %s reported %d times", pair, n)
		}
	}
	for _, o := range opps {
		if o.BuyExchange == "binance" && o.SellExchange == "bybit" && o.Kind != models.ArbitrageTicker {
			t.Fatalf("ticker-level hit must win dedup, got %s", o.Kind)
		}
	}
}

func TestCompositeOrderbookMergesSamePriceLevels(t *testing.T) {
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", ticker: ticker(100, 99, 101, 1), book: &models.Orderbook{
			Bids: []models.PriceLevel{{Price: 100.0, Size: 1.0}},
			Asks: []models.PriceLevel{{Price: 100.5, Size: 2.0}},
		}},
		&fakeAdapter{name: "bybit", ticker: ticker(100, 99, 101, 1), book: &models.Orderbook{
			Bids: []models.PriceLevel{{Price: 100.0, Size: 2.0}},
			Asks: []models.PriceLevel{{Price: 100.6, Size: 1.0}},
		}},
	)

	got, err := a.GetCompositeOrderbook(context.Background(), "BTCUSDT", "spot", 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Bids) != 1 {
		t.Fatalf("same-price bids must merge, got %d levels", len(got.Bids))
	}
	if got.Bids[0].Size != 3.0 {
		t.Fatalf("merged size: got %v, want 3.0", got.Bids[0].Size)
	}
	if len(got.Bids[0].Exchanges) != 2 {
		t.Fatalf("merged level must name both sources, got %v", got.Bids[0].Exchanges)
	}
	if len(got.Asks) != 2 || got.Asks[0].Price != 100.5 {
		t.Fatalf("asks must stay ascending and unmerged: %+v", got.Asks)
	}
}

func TestSynchronizedKlinesDisjointRanges(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mk := func(start time.Time, n int) []models.Candle {
		out := make([]models.Candle, n)
		for i := range out {
			out[i] = models.Candle{Start: start.Add(time.Duration(i) * time.Minute), Open: 1, High: 2, Low: 1, Close: 1.5, Volume: 10}
		}
		return out
	}
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", ticker: ticker(1, 1, 1, 1), klines: mk(base, 5)},
		&fakeAdapter{name: "bybit", ticker: ticker(1, 1, 1, 1), klines: mk(base.Add(24*time.Hour), 5)},
	)

	got, err := a.GetSynchronizedKlines(context.Background(), "BTCUSDT", "1", 5, "spot")
	if err != nil {
		t.Fatalf("disjoint ranges must not error: %v", err)
	}
	if len(got.Aggregated) != 0 {
		t.Fatalf("disjoint ranges must yield empty composite, got %d", len(got.Aggregated))
	}
	// each series is internally continuous; the disagreement is between them
	if got.Gaps["binance"].MissingPeriods != 0 || got.Gaps["bybit"].MissingPeriods != 0 {
		t.Fatalf("gap accounting wrong: %+v", got.Gaps)
	}
	if got.Confidence != 0 {
		t.Fatalf("zero overlap must zero confidence, got %v", got.Confidence)
	}
}

func TestSynchronizedKlinesWeightedComposite(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	a := newTestAggregator(t,
		map[string]float64{"binance": 0.6, "bybit": 0.4},
		&fakeAdapter{name: "binance", ticker: ticker(1, 1, 1, 1), klines: []models.Candle{
			{Start: base, Open: 100, High: 110, Low: 90, Close: 100, Volume: 10},
		}},
		&fakeAdapter{name: "bybit", ticker: ticker(1, 1, 1, 1), klines: []models.Candle{
			{Start: base, Open: 101, High: 111, Low: 91, Close: 101, Volume: 20},
		}},
	)

	got, err := a.GetSynchronizedKlines(context.Background(), "BTCUSDT", "1", 1, "spot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got.Aggregated) != 1 {
		t.Fatalf("expected 1 shared candle, got %d", len(got.Aggregated))
	}
	c := got.Aggregated[0]
	if math.Abs(c.Close-100.4) > 1e-9 {
		t.Fatalf("weighted close: got %v, want 100.4", c.Close)
	}
	if c.High != 111 {
		t.Fatalf("high must be the true maximum across sources, got %v", c.High)
	}
	if c.Low != 90 {
		t.Fatalf("low must be the true minimum across sources, got %v", c.Low)
	}
	if c.Volume != 30 {
		t.Fatalf("volume must sum: got %v", c.Volume)
	}
}

func TestDominanceCachedPerSymbolTimeframe(t *testing.T) {
	fast := &fakeAdapter{name: "binance", ticker: ticker(100, 99, 101, 900)}
	slow := &fakeAdapter{name: "bybit", ticker: ticker(100, 99, 101, 100)}
	a := newTestAggregator(t, nil, fast, slow)
	ctx := context.Background()

	first, err := a.GetExchangeDominance(ctx, "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Leader != "binance" {
		t.Fatalf("volume leader must win, got %q", first.Leader)
	}

	callsAfterFirst := fast.tickerCalls.Load()
	second, err := a.GetExchangeDominance(ctx, "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fast.tickerCalls.Load() != callsAfterFirst {
		t.Fatal("second call within TTL must be served from cache")
	}
	if second != first {
		t.Fatal("cached result must be the same value")
	}

	if _, err := a.GetExchangeDominance(ctx, "BTCUSDT", "4h"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fast.tickerCalls.Load() == callsAfterFirst {
		t.Fatal("different timeframe must miss the cache")
	}
}

func TestCorrelationMatrixProperties(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	mk := func(closes ...float64) []models.Candle {
		out := make([]models.Candle, len(closes))
		for i, c := range closes {
			out[i] = models.Candle{Start: base.Add(time.Duration(i) * time.Minute), Close: c, Volume: c * 2}
		}
		return out
	}
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", ticker: ticker(1, 1, 1, 1), klines: mk(1, 2, 3, 4, 5)},
		&fakeAdapter{name: "bybit", ticker: ticker(1, 1, 1, 1), klines: mk(2, 4, 6, 8, 10)},
	)

	got, err := a.correlation(context.Background(), "BTCUSDT", repository.TF1h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	n := len(got.Exchanges)
	for i := 0; i < n; i++ {
		if got.PriceMatrix[i][i] != 1.0 {
			t.Fatalf("diagonal must be 1.0, got %v", got.PriceMatrix[i][i])
		}
		for j := 0; j < n; j++ {
			if got.PriceMatrix[i][j] != got.PriceMatrix[j][i] {
				t.Fatal("price matrix must be symmetric")
			}
		}
	}
	if n == 2 && math.Abs(got.PriceMatrix[0][1]-1.0) > 1e-9 {
		t.Fatalf("perfectly correlated series: got %v", got.PriceMatrix[0][1])
	}
}

func TestAnalyticsBundleFatalOnComponentFailure(t *testing.T) {
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", ticker: ticker(100, 99.9, 100.1, 1000), klinesErr: errors.New("klines down")},
		&fakeAdapter{name: "bybit", ticker: ticker(100.2, 100.1, 100.3, 500), klinesErr: errors.New("klines down")},
	)

	got, err := a.GetMultiExchangeAnalytics(context.Background(), "BTCUSDT", "1h")
	if got != nil {
		t.Fatal("a failed component must not yield a partial bundle")
	}
	if !errors.Is(err, models.ErrNoHealthyExchanges) {
		t.Fatalf("expected ErrNoHealthyExchanges, got %v", err)
	}
	var aggErr *models.AggregationError
	if !errors.As(err, &aggErr) {
		t.Fatalf("expected AggregationError, got %T", err)
	}
}

func TestAnalyticsBundleFullyPopulated(t *testing.T) {
	base := time.Now().Add(-5 * time.Minute).Truncate(time.Minute)
	mk := func(closes ...float64) []models.Candle {
		out := make([]models.Candle, len(closes))
		for i, c := range closes {
			out[i] = models.Candle{Start: base.Add(time.Duration(i) * time.Minute), Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 10}
		}
		return out
	}
	book := &models.Orderbook{
		Bids: []models.PriceLevel{{Price: 99.9, Size: 5}},
		Asks: []models.PriceLevel{{Price: 100.1, Size: 5}},
	}
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", ticker: ticker(100, 99.9, 100.1, 1000), book: book, klines: mk(99, 100, 101, 100, 100)},
		&fakeAdapter{name: "bybit", ticker: ticker(100.1, 100.0, 100.2, 500), book: book, klines: mk(99, 100, 101, 100, 100)},
	)

	got, err := a.GetMultiExchangeAnalytics(context.Background(), "BTCUSDT", "1h")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Ticker == nil || got.Orderbook == nil || got.Klines == nil ||
		got.Dominance == nil || got.Correlation == nil {
		t.Fatalf("bundle must be fully populated: %+v", got)
	}
	if got.Quality.Overall < 0 || got.Quality.Overall > 100 {
		t.Fatalf("overall quality out of range: %v", got.Quality.Overall)
	}
}

func TestVolumeDivergenceFromMean(t *testing.T) {
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", ticker: ticker(100, 99.9, 100.1, 100)},
		&fakeAdapter{name: "bybit", ticker: ticker(100, 99.9, 100.1, 100)},
		&fakeAdapter{name: "okx", ticker: ticker(100, 99.9, 100.1, 1000)},
	)

	divs, err := a.DetectDivergences(context.Background(), "BTCUSDT", "spot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var volume []models.ExchangeDivergence
	for _, d := range divs {
		if d.Type == models.DivergenceVolume {
			volume = append(volume, d)
		}
	}
	// mean is 400: the outsized venue deviates 150%, the second small venue
	// 75%, and the reference closest to the mean stays silent
	if len(volume) != 2 {
		t.Fatalf("expected 2 volume divergences, got %d: %+v", len(volume), volume)
	}
	found := false
	for _, d := range volume {
		if d.LeadExchange == "okx" {
			found = true
			if math.Abs(d.Magnitude-150) > 1e-9 {
				t.Fatalf("magnitude must be deviation from the mean, got %v", d.Magnitude)
			}
		}
	}
	if !found {
		t.Fatal("outsized venue must lead a volume divergence")
	}
}

func TestStructureDivergenceOnBookImbalance(t *testing.T) {
	balanced := &models.Orderbook{
		Bids: []models.PriceLevel{{Price: 99.9, Size: 10}},
		Asks: []models.PriceLevel{{Price: 100.1, Size: 10}},
	}
	skewed := &models.Orderbook{
		Bids: []models.PriceLevel{{Price: 99.9, Size: 80}},
		Asks: []models.PriceLevel{{Price: 100.1, Size: 20}},
	}
	a := newTestAggregator(t, nil,
		&fakeAdapter{name: "binance", ticker: ticker(100, 99.9, 100.1, 100), book: balanced},
		&fakeAdapter{name: "bybit", ticker: ticker(100, 99.9, 100.1, 100), book: skewed},
	)

	divs, err := a.DetectDivergences(context.Background(), "BTCUSDT", "spot")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var structure []models.ExchangeDivergence
	for _, d := range divs {
		if d.Type == models.DivergenceStructure {
			structure = append(structure, d)
		}
	}
	if len(structure) != 1 {
		t.Fatalf("expected 1 structure divergence, got %d", len(structure))
	}
	d := structure[0]
	if d.LeadExchange != "bybit" || d.LagExchange != "binance" {
		t.Fatalf("lead/lag wrong: %s/%s", d.LeadExchange, d.LagExchange)
	}
	// (80-20)/(80+20) = 60% imbalance
	if math.Abs(d.Magnitude-60) > 1e-9 {
		t.Fatalf("magnitude: got %v, want 60", d.Magnitude)
	}
	if d.Risk != models.RiskHigh {
		t.Fatalf("structure divergences are always high risk, got %s", d.Risk)
	}
}

func TestArbitrageRiskSpreadTiers(t *testing.T) {
	cases := []struct {
		spread float64
		want   models.RiskLevel
	}{
		{1.5, models.RiskLow},
		{0.8, models.RiskMedium},
		{0.3, models.RiskHigh},
	}
	for _, c := range cases {
		if got := arbitrageRisk(c.spread); got != c.want {
			t.Fatalf("spread %v: got %s, want %s", c.spread, got, c.want)
		}
	}
}

func TestCorrelationOutlierCutoff(t *testing.T) {
	names := []string{"binance", "bybit", "okx"}
	matrix := [][]float64{
		{1.0, 0.9, 0.4},
		{0.9, 1.0, 0.5},
		{0.4, 0.5, 1.0},
	}
	// okx averages 0.45 against the rest, under the 0.5 cutoff
	got := correlationOutliers(names, matrix)
	if len(got) != 1 || got[0] != "okx" {
		t.Fatalf("expected [okx], got %v", got)
	}
}
