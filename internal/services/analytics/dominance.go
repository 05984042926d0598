package analytics

import (
	"context"
	"fmt"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/services/stats"
)

// AnalyzeExtendedDominance layers leadership scoring and rotation dynamics
// over the base dominance ranking.
func (s *Service) AnalyzeExtendedDominance(ctx context.Context, symbol, timeframe string) (*models.ExtendedExchangeDominance, error) {
	base, err := s.agg.GetExchangeDominance(ctx, symbol, timeframe)
	if err != nil {
		return nil, fmt.Errorf("extended dominance %s: %w", symbol, err)
	}
	ticker, err := s.agg.GetAggregatedTicker(ctx, symbol, "spot")
	if err != nil {
		return nil, fmt.Errorf("extended dominance %s: %w", symbol, err)
	}

	leadership := make(map[string]models.LeadershipScores, len(base.Exchanges))
	for name, entry := range base.Exchanges {
		var momentum float64
		if te, ok := ticker.Exchanges[name]; ok {
			momentum = stats.ClampScore(50 + te.Ticker.Change24hPcnt*5)
		}
		institutional := 0.0
		if te, ok := ticker.Exchanges[name]; ok && te.Ticker.Volume24h > 0 {
			institutional = stats.ClampScore(te.Ticker.Turnover24h / te.Ticker.Volume24h / 1000)
		}
		leadership[name] = models.LeadershipScores{
			Price:         entry.PriceInfluence,
			Volume:        stats.ClampScore(entry.VolumeShare),
			Liquidity:     entry.LiquidityScore,
			Momentum:      momentum,
			Institutional: institutional,
			Innovation:    50,
		}
	}

	dynamics := models.MarketDynamics{
		RotationFrequency: rotationFrequency(base),
		VolumeTrend:       trendLabel(ticker.TotalVolume > 0),
		LiquidityTrend:    "stable",
		InstitutionalFlow: "neutral",
	}

	next := models.LeaderPrediction{
		Exchange:   base.Leader,
		Confidence: leaderConfidence(base),
		Horizon:    4 * time.Hour,
	}
	if challenger, gaining := risingChallenger(base); gaining {
		next.Exchange = challenger
		next.Confidence = stats.ClampScore(next.Confidence * 0.7)
	}

	var trends []string
	if base.Leader != "" {
		trends = append(trends, base.Leader+" holds composite leadership")
	}
	for name, ls := range leadership {
		if ls.Liquidity > 80 {
			trends = append(trends, name+" dominates depth")
		}
	}

	return &models.ExtendedExchangeDominance{
		Symbol:     symbol,
		Timeframe:  base.Timeframe,
		Base:       base,
		Leadership: leadership,
		Dynamics:   dynamics,
		NextLeader: next,
		Trends:     trends,
		ComputedAt: time.Now(),
	}, nil
}

// rotationFrequency approximates leadership churn from how contested the
// top spot is: a near-tie rotates often.
func rotationFrequency(base *models.ExchangeDominance) float64 {
	top, second := topTwoShares(base)
	if top == 0 {
		return 0
	}
	return stats.Clamp(second/top, 0, 1)
}

func leaderConfidence(base *models.ExchangeDominance) float64 {
	top, second := topTwoShares(base)
	if top == 0 {
		return 0
	}
	return stats.ClampScore((top - second) / top * 100)
}

func topTwoShares(base *models.ExchangeDominance) (top, second float64) {
	for _, e := range base.Exchanges {
		if e.VolumeShare > top {
			second = top
			top = e.VolumeShare
		} else if e.VolumeShare > second {
			second = e.VolumeShare
		}
	}
	return top, second
}

// risingChallenger reports a non-leader with higher liquidity than the
// leader, the usual precursor to a volume flip.
func risingChallenger(base *models.ExchangeDominance) (string, bool) {
	leader, ok := base.Exchanges[base.Leader]
	if !ok {
		return "", false
	}
	for name, e := range base.Exchanges {
		if name == base.Leader {
			continue
		}
		if e.LiquidityScore > leader.LiquidityScore*1.2 {
			return name, true
		}
	}
	return "", false
}

func trendLabel(up bool) string {
	if up {
		return "rising"
	}
	return "falling"
}
