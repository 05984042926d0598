package usecase

import (
	"context"
	"math"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	"ExFuse/internal/services/stats"

	"github.com/shopspring/decimal"
)

const (
	opDetectDivergences = "detect_divergences"
	opIdentifyArbitrage = "identify_arbitrage"

	// orderbook imbalance beyond this flags a structure divergence
	structureImbalancePcnt = 30.0
)

var dec100 = decimal.NewFromInt(100)

// DetectDivergences runs the price, volume and orderbook-imbalance checks
// against live tickers and books from every healthy exchange.
func (a *Aggregator) DetectDivergences(ctx context.Context, symbol, category string) ([]models.ExchangeDivergence, error) {
	start := time.Now()
	defer func() { a.metrics.RecordOperation(opDetectDivergences, time.Since(start)) }()

	healthy := a.healthy(ctx)
	if len(healthy) == 0 {
		return nil, models.NewAggregationError(opDetectDivergences, symbol, models.ErrNoHealthyExchanges)
	}

	tickers := fanOut(ctx, healthy, a.timeout, func(ctx context.Context, ad repository.ExchangeAdapter) (*models.Ticker, error) {
		return ad.GetTicker(ctx, symbol, category)
	})
	books := fanOut(ctx, healthy, a.timeout, func(ctx context.Context, ad repository.ExchangeAdapter) (*models.Orderbook, error) {
		return ad.GetOrderbook(ctx, symbol, category, 25)
	})

	goodTickers := keepGood(a, opDetectDivergences, tickers)
	goodBooks := keepGood(a, opDetectDivergences, books)
	if len(goodTickers) == 0 && len(goodBooks) == 0 {
		return nil, models.NewAggregationError(opDetectDivergences, symbol, models.ErrNoHealthyExchanges)
	}

	now := time.Now()
	out := []models.ExchangeDivergence{}
	out = append(out, a.priceDivergences(symbol, goodTickers, now)...)
	out = append(out, a.volumeDivergences(symbol, goodTickers, now)...)
	out = append(out, a.structureDivergences(symbol, goodBooks, now)...)
	return out, nil
}

// priceDivergences flags every exchange pair whose last prices disagree by
// more than the threshold. The higher-volume venue leads.
func (a *Aggregator) priceDivergences(symbol string, good []fetched[*models.Ticker], now time.Time) []models.ExchangeDivergence {
	var out []models.ExchangeDivergence
	for i := 0; i < len(good); i++ {
		for j := i + 1; j < len(good); j++ {
			lead, lag := good[i].val, good[j].val
			if lag.Volume24h > lead.Volume24h {
				lead, lag = lag, lead
			}

			lo := math.Min(lead.LastPrice, lag.LastPrice)
			hi := math.Max(lead.LastPrice, lag.LastPrice)
			magnitude := stats.SpreadPercent(lo, hi)
			if magnitude < a.thr.PriceDivergencePcnt {
				continue
			}

			out = append(out, models.ExchangeDivergence{
				Type:         models.DivergencePrice,
				Symbol:       symbol,
				LeadExchange: lead.Exchange,
				LagExchange:  lag.Exchange,
				Magnitude:    magnitude,
				Opportunity:  "price convergence expected toward the higher-volume venue",
				PriceTarget:  lead.LastPrice,
				Confidence:   stats.ClampScore(magnitude / a.thr.PriceDivergencePcnt * 40),
				Risk:         riskFromMagnitude(magnitude, a.thr.PriceDivergencePcnt),
				DetectedAt:   now,
			})
		}
	}
	return out
}

// volumeDivergences flags venues whose 24h volume strays from the
// cross-exchange mean by more than the threshold. The venue closest to the
// mean stands in for the rest of the market as the lag side.
func (a *Aggregator) volumeDivergences(symbol string, good []fetched[*models.Ticker], now time.Time) []models.ExchangeDivergence {
	if len(good) < 2 {
		return nil
	}
	volumes := make([]float64, len(good))
	for i, g := range good {
		volumes[i] = g.val.Volume24h
	}
	mean := stats.Mean(volumes)
	if mean <= 0 {
		return nil
	}

	reference := good[0].val.Exchange
	refDev := math.Abs(volumes[0] - mean)
	for i, g := range good[1:] {
		if d := math.Abs(volumes[i+1] - mean); d < refDev {
			refDev = d
			reference = g.val.Exchange
		}
	}

	var out []models.ExchangeDivergence
	for i, g := range good {
		magnitude := math.Abs(volumes[i]-mean) / mean * 100
		if magnitude < a.thr.VolumeDivergencePcnt || g.val.Exchange == reference {
			continue
		}
		out = append(out, models.ExchangeDivergence{
			Type:         models.DivergenceVolume,
			Symbol:       symbol,
			LeadExchange: g.val.Exchange,
			LagExchange:  reference,
			Magnitude:    magnitude,
			Opportunity:  "volume migrating between venues",
			Confidence:   stats.ClampScore(magnitude / a.thr.VolumeDivergencePcnt * 35),
			Risk:         riskFromMagnitude(magnitude, a.thr.VolumeDivergencePcnt),
			DetectedAt:   now,
		})
	}
	return out
}

// structureDivergences flags venues whose book imbalance
// (bidVolume-askVolume)/(bidVolume+askVolume) exceeds 30% either way. The
// most balanced venue stands in as the lag side.
func (a *Aggregator) structureDivergences(symbol string, good []fetched[*models.Orderbook], now time.Time) []models.ExchangeDivergence {
	type imbalance struct {
		exchange string
		pcnt     float64
	}
	imbalances := make([]imbalance, 0, len(good))
	for _, g := range good {
		var bid, ask float64
		for _, l := range g.val.Bids {
			bid += l.Size
		}
		for _, l := range g.val.Asks {
			ask += l.Size
		}
		if bid+ask == 0 {
			continue
		}
		imbalances = append(imbalances, imbalance{
			exchange: g.exchange,
			pcnt:     (bid - ask) / (bid + ask) * 100,
		})
	}
	if len(imbalances) == 0 {
		return nil
	}

	reference := imbalances[0]
	for _, im := range imbalances[1:] {
		if math.Abs(im.pcnt) < math.Abs(reference.pcnt) {
			reference = im
		}
	}

	var out []models.ExchangeDivergence
	for _, im := range imbalances {
		magnitude := math.Abs(im.pcnt)
		if magnitude <= structureImbalancePcnt {
			continue
		}
		opportunity := "bid-heavy book, upward pressure"
		if im.pcnt < 0 {
			opportunity = "ask-heavy book, downward pressure"
		}
		out = append(out, models.ExchangeDivergence{
			Type:         models.DivergenceStructure,
			Symbol:       symbol,
			LeadExchange: im.exchange,
			LagExchange:  reference.exchange,
			Magnitude:    magnitude,
			Opportunity:  opportunity,
			Confidence:   stats.ClampScore(magnitude / structureImbalancePcnt * 40),
			Risk:         models.RiskHigh,
			DetectedAt:   now,
		})
	}
	return out
}

func riskFromMagnitude(magnitude, threshold float64) models.RiskLevel {
	switch {
	case magnitude > threshold*4:
		return models.RiskHigh
	case magnitude > threshold*2:
		return models.RiskMedium
	}
	return models.RiskLow
}

// IdentifyArbitrage scans ticker quotes and top-of-book depth for gaps that
// stay profitable after fees. Overlapping hits for the same buy/sell pair
// are deduplicated with the ticker-level hit winning.
func (a *Aggregator) IdentifyArbitrage(ctx context.Context, symbol, category string) ([]models.ArbitrageOpportunity, error) {
	start := time.Now()
	defer func() { a.metrics.RecordOperation(opIdentifyArbitrage, time.Since(start)) }()

	healthy := a.healthy(ctx)
	if len(healthy) == 0 {
		return nil, models.NewAggregationError(opIdentifyArbitrage, symbol, models.ErrNoHealthyExchanges)
	}

	tickers := fanOut(ctx, healthy, a.timeout, func(ctx context.Context, ad repository.ExchangeAdapter) (*models.Ticker, error) {
		return ad.GetTicker(ctx, symbol, category)
	})
	books := fanOut(ctx, healthy, a.timeout, func(ctx context.Context, ad repository.ExchangeAdapter) (*models.Orderbook, error) {
		return ad.GetOrderbook(ctx, symbol, category, 25)
	})

	goodTickers := keepGood(a, opIdentifyArbitrage, tickers)
	goodBooks := keepGood(a, opIdentifyArbitrage, books)
	if len(goodTickers) == 0 && len(goodBooks) == 0 {
		return nil, models.NewAggregationError(opIdentifyArbitrage, symbol, models.ErrNoHealthyExchanges)
	}

	opportunities := a.tickerArbitrage(symbol, goodTickers)
	opportunities = append(opportunities, a.bookArbitrage(symbol, goodBooks)...)

	deduped := dedupOpportunities(opportunities)
	for range deduped {
		a.metrics.RecordOpportunity("arbitrage")
	}
	return deduped, nil
}

func (a *Aggregator) tickerArbitrage(symbol string, good []fetched[*models.Ticker]) []models.ArbitrageOpportunity {
	var out []models.ArbitrageOpportunity
	for _, buy := range good {
		for _, sell := range good {
			if buy.exchange == sell.exchange {
				continue
			}
			buyPrice := buy.val.Ask1Price
			if buyPrice == 0 {
				buyPrice = buy.val.LastPrice
			}
			sellPrice := sell.val.Bid1Price
			if sellPrice == 0 {
				sellPrice = sell.val.LastPrice
			}
			opp, ok := a.makeOpportunity(symbol, models.ArbitrageTicker,
				buy.exchange, sell.exchange, buyPrice, sellPrice,
				minF(buy.val.Volume24h, sell.val.Volume24h))
			if ok {
				out = append(out, opp)
			}
		}
	}
	return out
}

// makeOpportunity applies the fee model in decimal space so marginal
// spreads are never rounded into profit.
func (a *Aggregator) makeOpportunity(symbol string, kind models.ArbitrageKind, buyEx, sellEx string, buyPrice, sellPrice, volume float64) (models.ArbitrageOpportunity, bool) {
	if buyPrice <= 0 || sellPrice <= buyPrice {
		return models.ArbitrageOpportunity{}, false
	}

	buy := decimal.NewFromFloat(buyPrice)
	sell := decimal.NewFromFloat(sellPrice)
	spread := sell.Sub(buy).Div(buy).Mul(dec100)
	if spread.LessThan(decimal.NewFromFloat(a.thr.MinSpreadPcnt)) {
		return models.ArbitrageOpportunity{}, false
	}

	fees := models.ArbitrageFees{
		BuyFeePcnt:  decimal.NewFromFloat(a.thr.BuyFeePcnt),
		SellFeePcnt: decimal.NewFromFloat(a.thr.SellFeePcnt),
	}
	fees.TotalFeePcnt = fees.BuyFeePcnt.Add(fees.SellFeePcnt)

	profit := spread.Sub(fees.TotalFeePcnt)
	if !profit.GreaterThan(decimal.Zero) {
		return models.ArbitrageOpportunity{}, false
	}

	spreadF, _ := spread.Float64()
	window := 30 * time.Second
	if kind == models.ArbitrageOrderbook {
		window = 10 * time.Second
	}

	return models.ArbitrageOpportunity{
		Kind:         kind,
		Symbol:       symbol,
		BuyExchange:  buyEx,
		SellExchange: sellEx,
		BuyPrice:     buy,
		SellPrice:    sell,
		SpreadPcnt:   spread,
		ProfitPcnt:   profit,
		Volume:       volume,
		TimeWindow:   window,
		Confidence:   stats.ClampScore(spreadF * 50),
		Risk:         arbitrageRisk(spreadF),
		Fees:         fees,
		DetectedAt:   time.Now(),
	}, true
}

// arbitrageRisk grades on spread: low above 1%, medium above 0.5%.
func arbitrageRisk(spreadPcnt float64) models.RiskLevel {
	switch {
	case spreadPcnt > 1:
		return models.RiskLow
	case spreadPcnt > 0.5:
		return models.RiskMedium
	}
	return models.RiskHigh
}

// dedupOpportunities keeps the first hit per buy/sell pair; callers order
// ticker-level hits ahead of orderbook-level ones.
func dedupOpportunities(opps []models.ArbitrageOpportunity) []models.ArbitrageOpportunity {
	seen := make(map[string]struct{}, len(opps))
	out := make([]models.ArbitrageOpportunity, 0, len(opps))
	for _, o := range opps {
		key := o.BuyExchange + "|" + o.SellExchange
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, o)
	}
	return out
}
