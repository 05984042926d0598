package analytics

import (
	"context"
	"fmt"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/services/stats"

	"github.com/shopspring/decimal"
)

// AnalyzeEnhancedArbitrage decorates raw opportunities with execution plans
// and risk estimates, and adds statistical pairs the raw scan cannot see.
// Temporal and triangular analysis are placeholders until the kline replay
// buffer and multi-leg routing land.
func (s *Service) AnalyzeEnhancedArbitrage(ctx context.Context, symbol string) ([]models.EnhancedArbitrage, error) {
	bundle, err := s.agg.GetMultiExchangeAnalytics(ctx, symbol, "1h")
	if err != nil {
		return nil, fmt.Errorf("enhanced arbitrage %s: %w", symbol, err)
	}

	out := []models.EnhancedArbitrage{}
	out = append(out, s.spatialArbitrage(bundle)...)
	out = append(out, s.statisticalArbitrage(symbol, bundle)...)
	out = append(out, s.temporalArbitrage(bundle)...)
	out = append(out, s.triangularArbitrage(bundle)...)

	s.remember("arbitrage", symbol, out)
	for range out {
		s.metrics.RecordOpportunity("enhanced_arbitrage")
	}
	return out, nil
}

// spatialArbitrage wraps every raw opportunity with a two-leg plan.
func (s *Service) spatialArbitrage(b *models.MultiExchangeAnalytics) []models.EnhancedArbitrage {
	out := make([]models.EnhancedArbitrage, 0, len(b.Arbitrage))
	for _, opp := range b.Arbitrage {
		spatial := opp
		spatial.Kind = models.ArbitrageSpatial

		profitF, _ := opp.ProfitPcnt.Float64()
		out = append(out, models.EnhancedArbitrage{
			Opportunity: spatial,
			Steps: []models.ExecutionStep{
				{Order: 1, Exchange: opp.BuyExchange, Action: "buy", Price: opp.BuyPrice, Volume: opp.Volume},
				{Order: 2, Exchange: opp.SellExchange, Action: "sell", Price: opp.SellPrice, Volume: opp.Volume},
			},
			CompetitionRisk: stats.ClampScore(100 - profitF*50),
			LatencyRisk:     stats.ClampScore(opp.TimeWindow.Seconds() * 2),
			SlippageRisk:    slippageRisk(b, opp),
			DetectedAt:      time.Now(),
		})
	}
	return out
}

func slippageRisk(b *models.MultiExchangeAnalytics, opp models.ArbitrageOpportunity) float64 {
	if b.Orderbook == nil {
		return 50
	}
	return stats.ClampScore(100 - b.Orderbook.Depth.LiquidityScore)
}

// statisticalArbitrage fires only when the market as a whole is weakly
// coupled: the gate is the average pairwise price correlation, since a
// single decoupled pair inside an otherwise locked market mean-reverts on
// its own. Spreads are charged both legs' fees before they count as profit.
func (s *Service) statisticalArbitrage(symbol string, b *models.MultiExchangeAnalytics) []models.EnhancedArbitrage {
	if b.Correlation == nil || b.Ticker == nil || len(b.Correlation.Pairs) == 0 {
		return nil
	}

	var corrSum float64
	for _, pair := range b.Correlation.Pairs {
		corrSum += pair.PriceCorrelation
	}
	if corrSum/float64(len(b.Correlation.Pairs)) >= s.cfg.StatArbMaxCorrelation {
		return nil
	}

	buyFee := decimal.NewFromFloat(s.cfg.BuyFeePcnt)
	sellFee := decimal.NewFromFloat(s.cfg.SellFeePcnt)
	totalFee := buyFee.Add(sellFee)

	var out []models.EnhancedArbitrage
	for _, pair := range b.Correlation.Pairs {
		ea, okA := b.Ticker.Exchanges[pair.ExchangeA]
		eb, okB := b.Ticker.Exchanges[pair.ExchangeB]
		if !okA || !okB {
			continue
		}

		buy, sell := ea.Ticker, eb.Ticker
		if buy.LastPrice > sell.LastPrice {
			buy, sell = sell, buy
		}
		spread := stats.SpreadPercent(buy.LastPrice, sell.LastPrice)
		if spread < s.cfg.StatArbMinSpreadPcnt {
			continue
		}

		buyDec := decimal.NewFromFloat(buy.LastPrice)
		sellDec := decimal.NewFromFloat(sell.LastPrice)
		spreadDec := sellDec.Sub(buyDec).Div(buyDec).Mul(decimal.NewFromInt(100))
		profitDec := spreadDec.Sub(totalFee)
		if !profitDec.IsPositive() {
			continue
		}

		out = append(out, models.EnhancedArbitrage{
			Opportunity: models.ArbitrageOpportunity{
				Kind:         models.ArbitrageStatistical,
				Symbol:       symbol,
				BuyExchange:  buy.Exchange,
				SellExchange: sell.Exchange,
				BuyPrice:     buyDec,
				SellPrice:    sellDec,
				SpreadPcnt:   spreadDec,
				ProfitPcnt:   profitDec,
				Volume:       buy.Volume24h,
				TimeWindow:   10 * time.Minute,
				Confidence:   stats.ClampScore((s.cfg.StatArbMaxCorrelation - pair.PriceCorrelation) * 100),
				Risk:         models.RiskHigh,
				Fees:         models.ArbitrageFees{BuyFeePcnt: buyFee, SellFeePcnt: sellFee, TotalFeePcnt: totalFee},
				DetectedAt:   time.Now(),
			},
			Steps: []models.ExecutionStep{
				{Order: 1, Exchange: buy.Exchange, Action: "buy", Price: buyDec},
				{Order: 2, Exchange: sell.Exchange, Action: "sell", Price: sellDec},
			},
			CompetitionRisk: 40,
			LatencyRisk:     30,
			SlippageRisk:    60,
			DetectedAt:      time.Now(),
		})
	}
	return out
}

// temporalArbitrage needs a tick replay buffer to compare lead/lag price
// propagation; it reports nothing until that exists.
func (s *Service) temporalArbitrage(*models.MultiExchangeAnalytics) []models.EnhancedArbitrage {
	return nil
}

// triangularArbitrage needs multi-symbol routing; it reports nothing until
// cross-pair data is wired in.
func (s *Service) triangularArbitrage(*models.MultiExchangeAnalytics) []models.EnhancedArbitrage {
	return nil
}
