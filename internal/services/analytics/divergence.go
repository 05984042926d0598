package analytics

import (
	"context"
	"fmt"
	"math"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/services/stats"
)

const (
	momentumThresholdPcnt      = 2.0
	volumeFlowThresholdPcnt    = 30.0
	liquidityThresholdPcnt     = 25.0
	institutionalThresholdPcnt = 40.0
	structureLookback          = 20
)

// DetectAdvancedDivergences runs the five cross-exchange detectors over a
// single analytics snapshot and replaces the symbol's monitoring entry.
func (s *Service) DetectAdvancedDivergences(ctx context.Context, symbol string) ([]models.AdvancedDivergence, error) {
	bundle, err := s.agg.GetMultiExchangeAnalytics(ctx, symbol, "1h")
	if err != nil {
		return nil, fmt.Errorf("advanced divergences %s: %w", symbol, err)
	}

	out := []models.AdvancedDivergence{}
	out = append(out, s.momentumDivergences(symbol, bundle)...)
	out = append(out, s.volumeFlowDivergences(symbol, bundle)...)
	out = append(out, s.liquidityDivergences(symbol, bundle)...)
	out = append(out, s.institutionalFlowDivergences(symbol, bundle)...)
	out = append(out, s.marketStructureDivergences(symbol, bundle)...)

	s.remember("divergence", symbol, out)
	for range out {
		s.metrics.RecordOpportunity("advanced_divergence")
	}
	return out, nil
}

type exchangeScore struct {
	exchange string
	score    float64
}

// pairwiseDivergences compares a per-exchange score pairwise and emits one
// divergence for each pair over the threshold. The higher score leads.
func (s *Service) pairwiseDivergences(symbol string, category models.DivergenceCategory, scores []exchangeScore, threshold, refPrice float64, outcome string, window time.Duration) []models.AdvancedDivergence {
	var out []models.AdvancedDivergence
	now := time.Now()
	for i := 0; i < len(scores); i++ {
		for j := i + 1; j < len(scores); j++ {
			lead, lag := scores[i], scores[j]
			if lag.score > lead.score {
				lead, lag = lag, lead
			}
			magnitude := lead.score - lag.score
			if magnitude < threshold {
				continue
			}

			out = append(out, models.AdvancedDivergence{
				Category:         category,
				Symbol:           symbol,
				LeadExchange:     lead.exchange,
				LagExchange:      lag.exchange,
				Magnitude:        magnitude,
				ExpectedOutcome:  outcome,
				ResolutionWindow: window,
				Signal:           buildSignal(refPrice, magnitude, lead.score >= 0),
				Confidence:       stats.ClampScore(magnitude / threshold * 35),
				Risk:             divergenceRisk(magnitude, threshold),
				DetectedAt:       now,
			})
		}
	}
	return out
}

// deviationDivergences emits one divergence per venue whose metric deviates
// from the cross-exchange mean beyond the threshold. The deviating venue
// leads; the venue closest to the mean stands in as the lagging reference.
func (s *Service) deviationDivergences(symbol string, category models.DivergenceCategory, metrics []exchangeScore, threshold, refPrice float64, outcome string, window time.Duration) []models.AdvancedDivergence {
	if len(metrics) < 2 {
		return nil
	}
	values := make([]float64, len(metrics))
	for i, m := range metrics {
		values[i] = m.score
	}
	mean := stats.Mean(values)
	if mean == 0 {
		return nil
	}

	reference := metrics[0].exchange
	best := math.MaxFloat64
	for _, m := range metrics {
		if d := math.Abs(m.score - mean); d < best {
			best = d
			reference = m.exchange
		}
	}

	var out []models.AdvancedDivergence
	now := time.Now()
	for _, m := range metrics {
		deviation := (m.score - mean) / mean * 100
		if math.Abs(deviation) < threshold || m.exchange == reference {
			continue
		}
		magnitude := math.Abs(deviation)
		out = append(out, models.AdvancedDivergence{
			Category:         category,
			Symbol:           symbol,
			LeadExchange:     m.exchange,
			LagExchange:      reference,
			Magnitude:        magnitude,
			ExpectedOutcome:  outcome,
			ResolutionWindow: window,
			Signal:           buildSignal(refPrice, magnitude/10, deviation > 0),
			Confidence:       stats.ClampScore(magnitude / threshold * 35),
			Risk:             divergenceRisk(magnitude, threshold),
			DetectedAt:       now,
		})
	}
	return out
}

func divergenceRisk(magnitude, threshold float64) models.RiskLevel {
	switch {
	case magnitude > threshold*3:
		return models.RiskHigh
	case magnitude > threshold*1.5:
		return models.RiskMedium
	}
	return models.RiskLow
}

func buildSignal(price, magnitude float64, bullish bool) models.TradingSignal {
	if price <= 0 {
		return models.TradingSignal{Action: "hold"}
	}
	move := price * stats.Clamp(magnitude, 0.2, 3) / 100
	sig := models.TradingSignal{
		Entry:    price,
		Strength: stats.ClampScore(magnitude * 20),
	}
	if bullish {
		sig.Action = "long"
		sig.Target = price + move
		sig.SecondTarget = price + 2*move
		sig.Stop = price - move/2
	} else {
		sig.Action = "short"
		sig.Target = price - move
		sig.SecondTarget = price - 2*move
		sig.Stop = price + move/2
	}
	sig.RiskReward = 2
	return sig
}

func bundlePrice(b *models.MultiExchangeAnalytics) float64 {
	if b.Ticker != nil {
		return b.Ticker.WeightedPrice
	}
	return 0
}

// momentumDivergences compares short-window close momentum per exchange.
func (s *Service) momentumDivergences(symbol string, b *models.MultiExchangeAnalytics) []models.AdvancedDivergence {
	if b.Klines == nil {
		return nil
	}
	var scores []exchangeScore
	for name, entry := range b.Klines.Exchanges {
		n := len(entry.Klines)
		if n < 5 {
			continue
		}
		scores = append(scores, exchangeScore{
			exchange: name,
			score:    stats.PercentChange(entry.Klines[n-5].Close, entry.Klines[n-1].Close),
		})
	}
	return s.pairwiseDivergences(symbol, models.CategoryMomentum, scores, momentumThresholdPcnt,
		bundlePrice(b), "momentum convergence toward the leading venue", 15*time.Minute)
}

// volumeFlowDivergences flags venues whose 24h volume sits far from the
// cross-exchange mean.
func (s *Service) volumeFlowDivergences(symbol string, b *models.MultiExchangeAnalytics) []models.AdvancedDivergence {
	if b.Ticker == nil {
		return nil
	}
	var metrics []exchangeScore
	for name, entry := range b.Ticker.Exchanges {
		metrics = append(metrics, exchangeScore{exchange: name, score: entry.Ticker.Volume24h})
	}
	return s.deviationDivergences(symbol, models.CategoryVolumeFlow, metrics, volumeFlowThresholdPcnt,
		bundlePrice(b), "volume rotating back toward the cross-exchange mean", 30*time.Minute)
}

// liquidityDivergences flags venues whose total book depth deviates from
// the cross-exchange mean.
func (s *Service) liquidityDivergences(symbol string, b *models.MultiExchangeAnalytics) []models.AdvancedDivergence {
	if b.Orderbook == nil {
		return nil
	}
	var metrics []exchangeScore
	for name, entry := range b.Orderbook.Exchanges {
		var depth float64
		for _, l := range entry.Orderbook.Bids {
			depth += l.Size
		}
		for _, l := range entry.Orderbook.Asks {
			depth += l.Size
		}
		if depth == 0 {
			continue
		}
		metrics = append(metrics, exchangeScore{exchange: name, score: depth})
	}
	return s.deviationDivergences(symbol, models.CategoryLiquidity, metrics, liquidityThresholdPcnt,
		bundlePrice(b), "depth gap closing as liquidity migrates", 10*time.Minute)
}

// institutionalFlowDivergences counts oversized resting orders per venue as
// a large-player footprint, weights it by the venue's share of the composite
// book, and flags footprints far from the cross-exchange mean.
func (s *Service) institutionalFlowDivergences(symbol string, b *models.MultiExchangeAnalytics) []models.AdvancedDivergence {
	if b.Orderbook == nil {
		return nil
	}
	var metrics []exchangeScore
	for name, entry := range b.Orderbook.Exchanges {
		footprint := float64(s.largeOrderCount(entry.Orderbook.Bids) + s.largeOrderCount(entry.Orderbook.Asks))
		metrics = append(metrics, exchangeScore{exchange: name, score: footprint * entry.Contribution / 100})
	}
	return s.deviationDivergences(symbol, models.CategoryInstitutionalFlow, metrics, institutionalThresholdPcnt,
		bundlePrice(b), "institutional flow concentrating on the leading venue", time.Hour)
}

// largeOrderCount counts levels whose size clears the wall multiple of the
// side's mean size.
func (s *Service) largeOrderCount(side []models.PriceLevel) int {
	if len(side) == 0 {
		return 0
	}
	var mean float64
	for _, l := range side {
		mean += l.Size
	}
	mean /= float64(len(side))
	if mean <= 0 {
		return 0
	}
	count := 0
	for _, l := range side {
		if l.Size > mean*s.cfg.WallSizeMultiple {
			count++
		}
	}
	return count
}

type structureBreak struct {
	exchange  string
	brokeUp   bool
	brokeDown bool
	magnitude float64
}

// marketStructureDivergences pairs a venue that has broken its recent range
// against one still inside it.
func (s *Service) marketStructureDivergences(symbol string, b *models.MultiExchangeAnalytics) []models.AdvancedDivergence {
	if b.Klines == nil {
		return nil
	}
	var breaks []structureBreak
	for name, entry := range b.Klines.Exchanges {
		n := len(entry.Klines)
		if n < structureLookback+1 {
			continue
		}
		prior := entry.Klines[n-structureLookback-1 : n-1]
		hi, lo := prior[0].High, prior[0].Low
		for _, c := range prior[1:] {
			hi = math.Max(hi, c.High)
			lo = math.Min(lo, c.Low)
		}
		last := entry.Klines[n-1].Close
		sb := structureBreak{exchange: name}
		switch {
		case last > hi && hi > 0:
			sb.brokeUp = true
			sb.magnitude = (last - hi) / hi * 100
		case last < lo && lo > 0:
			sb.brokeDown = true
			sb.magnitude = (lo - last) / lo * 100
		}
		breaks = append(breaks, sb)
	}

	var out []models.AdvancedDivergence
	now := time.Now()
	price := bundlePrice(b)
	for i := 0; i < len(breaks); i++ {
		for j := i + 1; j < len(breaks); j++ {
			lead, lag := breaks[i], breaks[j]
			if !lead.brokeUp && !lead.brokeDown {
				lead, lag = lag, lead
			}
			broke := lead.brokeUp || lead.brokeDown
			if !broke || lag.brokeUp || lag.brokeDown {
				continue
			}
			out = append(out, models.AdvancedDivergence{
				Category:         models.CategoryMarketStructure,
				Symbol:           symbol,
				LeadExchange:     lead.exchange,
				LagExchange:      lag.exchange,
				Magnitude:        lead.magnitude,
				ExpectedOutcome:  "lagging venue confirming the range break",
				ResolutionWindow: 45 * time.Minute,
				Signal:           buildSignal(price, lead.magnitude, lead.brokeUp),
				Confidence:       stats.ClampScore(50 + lead.magnitude*10),
				Risk:             divergenceRisk(lead.magnitude, 0.5),
				DetectedAt:       now,
			})
		}
	}
	return out
}
