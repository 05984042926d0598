package analytics

import (
	"context"
	"fmt"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/services/stats"
)

// liquidation levels start from this confidence; the model has no per-level
// evidence to grade beyond the size cutoff itself
const cascadeLevelConfidence = 75.0

// PredictLiquidationCascade estimates chain-liquidation risk. Oversized
// resting orders per exchange mark where leveraged positions cluster; a
// sweep through them feeds on itself.
func (s *Service) PredictLiquidationCascade(ctx context.Context, symbol string) (*models.LiquidationCascade, error) {
	bundle, err := s.agg.GetMultiExchangeAnalytics(ctx, symbol, "1h")
	if err != nil {
		return nil, fmt.Errorf("cascade %s: %w", symbol, err)
	}
	book, err := s.agg.GetCompositeOrderbook(ctx, symbol, "spot", 200)
	if err != nil {
		return nil, fmt.Errorf("cascade %s: %w", symbol, err)
	}

	cascade := s.buildCascade(symbol, bundle, book)
	s.remember("cascade", symbol, cascade)
	s.metrics.RecordOpportunity("cascade")
	return cascade, nil
}

func (s *Service) buildCascade(symbol string, bundle *models.MultiExchangeAnalytics, book *models.CompositeOrderbook) *models.LiquidationCascade {
	var longLevels, shortLevels []models.LiquidationLevel
	for name, entry := range book.Exchanges {
		longLevels = append(longLevels, s.oversizedLevels(name, entry.Orderbook.Bids, "long")...)
		shortLevels = append(shortLevels, s.oversizedLevels(name, entry.Orderbook.Asks, "short")...)
	}

	var longSize, shortSize float64
	for _, l := range longLevels {
		longSize += l.Size
	}
	for _, l := range shortLevels {
		shortSize += l.Size
	}

	// more long liquidation means a sweep down through the bids
	direction := "bearish"
	levels := longLevels
	totalSize := longSize
	sideVolume := book.Depth.TotalBidVolume
	if shortSize > longSize {
		direction = "bullish"
		levels = shortLevels
		totalSize = shortSize
		sideVolume = book.Depth.TotalAskVolume
	}

	// a bearish cascade triggers at the lowest flagged long level, a bullish
	// one at the highest flagged short level
	var trigger float64
	for i, l := range levels {
		if i == 0 ||
			(direction == "bearish" && l.Price < trigger) ||
			(direction == "bullish" && l.Price > trigger) {
			trigger = l.Price
		}
	}

	normalize(levels)

	sizeScore := 0.0
	if sideVolume > 0 {
		sizeScore = stats.Clamp(totalSize/sideVolume, 0, 1) * 100
	}
	var strengths []float64
	for _, l := range levels {
		strengths = append(strengths, l.Strength)
	}
	// probability: normalized size 40%, average strength 30%, inverse data
	// consistency as the volatility proxy 30%
	probability := stats.ClampScore(
		0.4*sizeScore + 0.3*stats.Mean(strengths) + 0.3*(100-bundle.Quality.Consistency))

	// impact scales with flagged size relative to normal 24h volume
	volumeRatio := 1.0
	if bundle.Ticker != nil && bundle.Ticker.TotalVolume > 0 {
		volumeRatio = stats.Clamp(totalSize/bundle.Ticker.TotalVolume, 0, 1)
	}
	priceMove := stats.Clamp(volumeRatio*100, 0, s.cfg.MaxCascadePriceMovePcnt)
	volumeSpike := stats.Clamp(volumeRatio*2000, 0, s.cfg.MaxCascadeVolumeSpikePcnt)
	duration := time.Duration(stats.Clamp(volumeRatio*36000, 30, s.cfg.MaxCascadeDuration.Seconds())) * time.Second

	var riskFactors []string
	if sizeScore > 40 {
		riskFactors = append(riskFactors, "high liquidity concentration")
	}
	if bundle.Ticker != nil && bundle.Ticker.Range.SpreadPcnt > 0.5 {
		riskFactors = append(riskFactors, "wide cross-exchange spread")
	}
	if bundle.Quality.Consistency < 50 {
		riskFactors = append(riskFactors, "inconsistent source data")
	}

	shares := make(map[string]float64, len(book.Exchanges))
	if totalSize > 0 {
		for _, l := range levels {
			shares[l.Exchange] += l.Size / totalSize * 100
		}
	}

	return &models.LiquidationCascade{
		Symbol:            symbol,
		TriggerPrice:      trigger,
		Direction:         direction,
		Levels:            levels,
		TotalSize:         totalSize,
		EstimatedDuration: duration,
		Probability:       probability,
		Impact: models.CascadeImpact{
			PriceMovePcnt:   priceMove,
			VolumeSpikePcnt: volumeSpike,
			Duration:        duration,
		},
		RiskFactors:    riskFactors,
		ExchangeShares: shares,
		Timestamp:      time.Now(),
	}
}

// oversizedLevels flags one exchange's levels whose size clears the
// configured multiple of the side's mean size.
func (s *Service) oversizedLevels(exchange string, side []models.PriceLevel, kind string) []models.LiquidationLevel {
	if len(side) == 0 {
		return nil
	}
	var mean float64
	for _, l := range side {
		mean += l.Size
	}
	mean /= float64(len(side))
	if mean <= 0 {
		return nil
	}

	var out []models.LiquidationLevel
	for _, l := range side {
		if l.Size < mean*s.cfg.WallSizeMultiple {
			continue
		}
		out = append(out, models.LiquidationLevel{
			Exchange:   exchange,
			Price:      l.Price,
			Size:       l.Size,
			Side:       kind,
			Confidence: cascadeLevelConfidence,
		})
	}
	return out
}

// normalize scales level strength to the largest flagged size.
func normalize(levels []models.LiquidationLevel) {
	var max float64
	for _, l := range levels {
		if l.Size > max {
			max = l.Size
		}
	}
	if max <= 0 {
		return
	}
	for i := range levels {
		levels[i].Strength = levels[i].Size / max * 100
	}
}
