package analytics

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/services/stats"
)

// AnalyzeCrossExchangeMarketStructure compares support/resistance across
// venues, finds the levels they agree on, and flags venues whose prints
// look engineered.
func (s *Service) AnalyzeCrossExchangeMarketStructure(ctx context.Context, symbol, timeframe string) (*models.CrossExchangeMarketStructure, error) {
	bundle, err := s.agg.GetMultiExchangeAnalytics(ctx, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("market structure %s: %w", symbol, err)
	}
	if bundle.Klines == nil {
		return nil, fmt.Errorf("market structure %s: %w", symbol, models.ErrNoUsableData)
	}

	levels := s.structuralLevels(bundle)
	return &models.CrossExchangeMarketStructure{
		Symbol:        symbol,
		Timeframe:     bundle.Timeframe,
		Levels:        levels,
		Consensus:     s.consensusLevels(levels, len(bundle.Klines.Exchanges)),
		Manipulation:  s.manipulationFlags(bundle),
		Institutional: institutionalLevels(bundle.Ticker),
		ComputedAt:    time.Now(),
	}, nil
}

func (s *Service) structuralLevels(b *models.MultiExchangeAnalytics) []models.StructuralLevel {
	var out []models.StructuralLevel
	for name, entry := range b.Klines.Exchanges {
		if len(entry.Klines) < 5 {
			continue
		}
		highs := make([]float64, len(entry.Klines))
		lows := make([]float64, len(entry.Klines))
		for i, c := range entry.Klines {
			highs[i] = c.High
			lows[i] = c.Low
		}
		last := entry.Klines[len(entry.Klines)-1].Close
		support := stats.Percentile(lows, 10)
		resistance := stats.Percentile(highs, 90)

		out = append(out,
			models.StructuralLevel{
				Exchange: name,
				Price:    support,
				Kind:     "support",
				Strength: entry.DataQuality,
				Broken:   last < support,
			},
			models.StructuralLevel{
				Exchange: name,
				Price:    resistance,
				Kind:     "resistance",
				Strength: entry.DataQuality,
				Broken:   last > resistance,
			},
		)
	}
	return out
}

// consensusLevels clusters per-exchange levels of the same kind that sit
// within the price tolerance of each other.
func (s *Service) consensusLevels(levels []models.StructuralLevel, venues int) []models.ConsensusLevel {
	if venues == 0 {
		return nil
	}

	byKind := map[string][]models.StructuralLevel{}
	for _, l := range levels {
		byKind[l.Kind] = append(byKind[l.Kind], l)
	}

	var out []models.ConsensusLevel
	for kind, ls := range byKind {
		sort.Slice(ls, func(i, j int) bool { return ls[i].Price < ls[j].Price })

		i := 0
		for i < len(ls) {
			cluster := []models.StructuralLevel{ls[i]}
			j := i + 1
			for j < len(ls) && withinTolerance(ls[i].Price, ls[j].Price, s.cfg.ConsensusTolerance) {
				cluster = append(cluster, ls[j])
				j++
			}
			if len(cluster) > 1 {
				var sum float64
				var names []string
				for _, c := range cluster {
					sum += c.Price
					names = append(names, c.Exchange)
				}
				out = append(out, models.ConsensusLevel{
					Price:     sum / float64(len(cluster)),
					Kind:      kind,
					Exchanges: names,
					Agreement: stats.ClampScore(float64(len(cluster)) / float64(venues) * 100),
				})
			}
			i = j
		}
	}
	return out
}

func withinTolerance(a, b, tolerancePcnt float64) bool {
	if a == 0 {
		return false
	}
	return math.Abs(b-a)/a*100 <= tolerancePcnt
}

// manipulationFlags marks venues whose prints or books look engineered:
// one venue pushed away from the cross-exchange mean while the market as a
// whole disagrees, and books stacked with abnormally large resting orders.
func (s *Service) manipulationFlags(b *models.MultiExchangeAnalytics) []models.ManipulationFlag {
	var out []models.ManipulationFlag
	out = append(out, s.pumpDumpFlags(b.Ticker)...)
	out = append(out, s.spoofingFlags(b.Orderbook)...)
	return out
}

func (s *Service) pumpDumpFlags(t *models.AggregatedTicker) []models.ManipulationFlag {
	if t == nil || len(t.Exchanges) < 2 {
		return nil
	}
	prices := make([]float64, 0, len(t.Exchanges))
	for _, entry := range t.Exchanges {
		prices = append(prices, entry.Ticker.LastPrice)
	}
	mean := stats.Mean(prices)
	if mean <= 0 {
		return nil
	}
	aggregateDevPcnt := t.PriceDeviation / mean * 100
	if aggregateDevPcnt <= 1 {
		return nil
	}

	var out []models.ManipulationFlag
	for name, entry := range t.Exchanges {
		devPcnt := (entry.Ticker.LastPrice - mean) / mean * 100
		if math.Abs(devPcnt) <= 0.5 {
			continue
		}
		pattern := "pump_dump"
		if devPcnt < 0 {
			pattern = "suppression"
		}
		out = append(out, models.ManipulationFlag{
			Exchange: name,
			Pattern:  pattern,
			Severity: stats.ClampScore(math.Abs(devPcnt) * 40),
			Details:  fmt.Sprintf("price deviates %.2f%% from cross-exchange mean while aggregate deviation is %.2f%%", devPcnt, aggregateDevPcnt),
		})
	}
	return out
}

// spoofingFlags marks books carrying more than five abnormally large
// resting orders on either side.
func (s *Service) spoofingFlags(book *models.CompositeOrderbook) []models.ManipulationFlag {
	if book == nil {
		return nil
	}
	var out []models.ManipulationFlag
	for name, entry := range book.Exchanges {
		for side, levels := range map[string][]models.PriceLevel{"bid": entry.Orderbook.Bids, "ask": entry.Orderbook.Asks} {
			count := s.largeOrderCount(levels)
			if count <= 5 {
				continue
			}
			out = append(out, models.ManipulationFlag{
				Exchange: name,
				Pattern:  "spoofing",
				Severity: stats.ClampScore(float64(count) * 10),
				Details:  fmt.Sprintf("%d oversized resting orders on the %s side", count, side),
			})
		}
	}
	return out
}

// institutionalLevels places zones at fixed offsets around the composite
// price. Placeholder until per-trade footprint data is available; the
// offsets stand in for observed accumulation and distribution bands.
func institutionalLevels(t *models.AggregatedTicker) []models.InstitutionalLevel {
	if t == nil || t.WeightedPrice <= 0 {
		return nil
	}
	p := t.WeightedPrice
	return []models.InstitutionalLevel{
		{Price: p * 0.98, Kind: "accumulation", Size: t.TotalVolume * 0.1},
		{Price: p * 1.02, Kind: "distribution", Size: t.TotalVolume * 0.1},
		{Price: p * 0.995, Kind: "high_volume_node", Size: t.TotalVolume * 0.05},
		{Price: p * 1.005, Kind: "high_volume_node", Size: t.TotalVolume * 0.05},
		{Price: p * 0.95, Kind: "support", Size: t.TotalVolume * 0.2},
		{Price: p * 1.05, Kind: "resistance", Size: t.TotalVolume * 0.2},
	}
}
