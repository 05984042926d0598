package usecase

import (
	"context"
	"math"
	"sort"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	"ExFuse/internal/services/stats"
)

const opCompositeOrderbook = "composite_orderbook"

// GetCompositeOrderbook merges depth from every healthy exchange. Levels at
// the same price are combined by summing size and recording every source.
func (a *Aggregator) GetCompositeOrderbook(ctx context.Context, symbol, category string, limit int) (*models.CompositeOrderbook, error) {
	start := time.Now()
	defer func() { a.metrics.RecordOperation(opCompositeOrderbook, time.Since(start)) }()

	healthy := a.healthy(ctx)
	if len(healthy) == 0 {
		return nil, models.NewAggregationError(opCompositeOrderbook, symbol, models.ErrNoHealthyExchanges)
	}

	results := fanOut(ctx, healthy, a.timeout, func(ctx context.Context, ad repository.ExchangeAdapter) (*models.Orderbook, error) {
		return ad.GetOrderbook(ctx, symbol, category, limit)
	})
	good := keepGood(a, opCompositeOrderbook, results)
	if len(good) == 0 {
		return nil, models.NewAggregationError(opCompositeOrderbook, symbol, models.ErrNoHealthyExchanges)
	}

	book := a.buildCompositeOrderbook(symbol, category, limit, good)
	book.Arbitrage = a.bookArbitrage(symbol, good)
	return book, nil
}

func (a *Aggregator) buildCompositeOrderbook(symbol, category string, limit int, good []fetched[*models.Orderbook]) *models.CompositeOrderbook {
	entries := make(map[string]models.ExchangeBookEntry, len(good))
	var totalSize float64
	perExchangeSize := make(map[string]float64, len(good))

	for _, g := range good {
		var size float64
		for _, l := range g.val.Bids {
			size += l.Size
		}
		for _, l := range g.val.Asks {
			size += l.Size
		}
		perExchangeSize[g.exchange] = size
		totalSize += size
		entries[g.exchange] = models.ExchangeBookEntry{
			Orderbook:    *g.val,
			Weight:       a.weight(g.exchange),
			ResponseTime: g.took,
		}
	}
	for name, e := range entries {
		if totalSize > 0 {
			e.Contribution = perExchangeSize[name] / totalSize * 100
		}
		entries[name] = e
	}

	bids := mergeLevels(good, true, limit)
	asks := mergeLevels(good, false, limit)

	return &models.CompositeOrderbook{
		Symbol:    symbol,
		Category:  category,
		Bids:      bids,
		Asks:      asks,
		Exchanges: entries,
		Depth:     a.depthMetrics(good, bids, asks),
		Timestamp: time.Now(),
	}
}

func mergeLevels(good []fetched[*models.Orderbook], bidSide bool, limit int) []models.MergedLevel {
	byPrice := make(map[float64]*models.MergedLevel)
	for _, g := range good {
		levels := g.val.Asks
		if bidSide {
			levels = g.val.Bids
		}
		for _, l := range levels {
			m, ok := byPrice[l.Price]
			if !ok {
				m = &models.MergedLevel{Price: l.Price}
				byPrice[l.Price] = m
			}
			m.Size += l.Size
			m.Exchanges = append(m.Exchanges, g.exchange)
		}
	}

	out := make([]models.MergedLevel, 0, len(byPrice))
	for _, m := range byPrice {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if bidSide {
			return out[i].Price > out[j].Price
		}
		return out[i].Price < out[j].Price
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (a *Aggregator) depthMetrics(good []fetched[*models.Orderbook], bids, asks []models.MergedLevel) models.DepthMetrics {
	var m models.DepthMetrics
	for _, l := range bids {
		m.TotalBidVolume += l.Size
	}
	for _, l := range asks {
		m.TotalAskVolume += l.Size
	}

	var spreads, weights []float64
	for _, g := range good {
		b := g.val
		if len(b.Bids) == 0 || len(b.Asks) == 0 {
			continue
		}
		mid := (b.Bids[0].Price + b.Asks[0].Price) / 2
		if mid <= 0 {
			continue
		}
		spreads = append(spreads, (b.Asks[0].Price-b.Bids[0].Price)/mid*100)
		weights = append(weights, a.weight(g.exchange))
	}
	m.WeightedSpread = stats.WeightedMean(spreads, weights)
	m.LiquidityScore = liquidityScore(m.TotalBidVolume, m.TotalAskVolume, m.WeightedSpread)
	return m
}

// liquidityScore blends log-scaled total volume (40%), bid/ask balance (30%)
// and spread tightness (30%).
func liquidityScore(bidVolume, askVolume, spreadPcnt float64) float64 {
	total := bidVolume + askVolume
	volumeScore := stats.ClampScore(math.Log10(total+1) * 20)
	balance := 100.0
	if total > 0 {
		balance = 100 * (1 - math.Abs(bidVolume-askVolume)/total)
	}
	tightness := 100 * (1 - stats.Clamp(spreadPcnt/1.0, 0, 1))
	return stats.ClampScore(0.4*volumeScore + 0.3*balance + 0.3*tightness)
}

// bookArbitrage compares top-of-book across venues: a bid on one exchange
// crossing an ask on another is an executable gap.
func (a *Aggregator) bookArbitrage(symbol string, good []fetched[*models.Orderbook]) []models.ArbitrageOpportunity {
	var out []models.ArbitrageOpportunity
	for _, buy := range good {
		if len(buy.val.Asks) == 0 {
			continue
		}
		for _, sell := range good {
			if sell.exchange == buy.exchange || len(sell.val.Bids) == 0 {
				continue
			}
			ask := buy.val.Asks[0]
			bid := sell.val.Bids[0]
			opp, ok := a.makeOpportunity(symbol, models.ArbitrageOrderbook,
				buy.exchange, sell.exchange, ask.Price, bid.Price, minF(ask.Size, bid.Size))
			if ok {
				out = append(out, opp)
			}
		}
	}
	return out
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
