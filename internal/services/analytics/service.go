// Package analytics layers the advanced cross-exchange detectors over the
// aggregator. Everything here consumes aggregator output only; no detector
// talks to an exchange directly.
package analytics

import (
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	"ExFuse/internal/domain/service"
	svccache "ExFuse/internal/service/cache"
	"ExFuse/pkg/logger"
)

const monitorTTL = 5 * time.Minute

// Config tunes the advanced detectors.
type Config struct {
	// statistical arbitrage gate
	StatArbMaxCorrelation float64
	StatArbMinSpreadPcnt  float64

	// per-leg fees applied to statistical spreads
	BuyFeePcnt  float64
	SellFeePcnt float64

	// cascade caps
	MaxCascadePriceMovePcnt   float64
	MaxCascadeVolumeSpikePcnt float64
	MaxCascadeDuration        time.Duration

	// a resting order this many times the side's mean size counts as a wall
	WallSizeMultiple   float64
	ConsensusTolerance float64
}

func (c *Config) applyDefaults() {
	if c.StatArbMaxCorrelation == 0 {
		c.StatArbMaxCorrelation = 0.7
	}
	if c.StatArbMinSpreadPcnt == 0 {
		c.StatArbMinSpreadPcnt = 0.5
	}
	if c.BuyFeePcnt == 0 {
		c.BuyFeePcnt = 0.1
	}
	if c.SellFeePcnt == 0 {
		c.SellFeePcnt = 0.1
	}
	if c.MaxCascadePriceMovePcnt == 0 {
		c.MaxCascadePriceMovePcnt = 20
	}
	if c.MaxCascadeVolumeSpikePcnt == 0 {
		c.MaxCascadeVolumeSpikePcnt = 500
	}
	if c.MaxCascadeDuration == 0 {
		c.MaxCascadeDuration = time.Hour
	}
	if c.WallSizeMultiple == 0 {
		c.WallSizeMultiple = 3
	}
	if c.ConsensusTolerance == 0 {
		c.ConsensusTolerance = 0.5
	}
}

// Service implements the advanced multi-exchange analytics.
type Service struct {
	agg     service.Aggregator
	cfg     Config
	metrics repository.Metrics
	log     *logger.Logger

	// per-symbol monitoring state, each entry replaced whole
	monitor *svccache.TTLCache
}

func New(agg service.Aggregator, cfg Config, metrics repository.Metrics, log *logger.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		agg:     agg,
		cfg:     cfg,
		metrics: metrics,
		log:     log,
		monitor: svccache.NewTTLCache(),
	}
}

func (s *Service) remember(kind, symbol string, v any) {
	s.monitor.Set(kind+"|"+symbol, v, monitorTTL)
}

// LastCascade returns the most recent cascade prediction for symbol.
func (s *Service) LastCascade(symbol string) (*models.LiquidationCascade, bool) {
	return svccache.GetTyped[*models.LiquidationCascade](s.monitor, "cascade|"+symbol)
}

// LastDivergences returns the most recent advanced divergence sweep.
func (s *Service) LastDivergences(symbol string) ([]models.AdvancedDivergence, bool) {
	return svccache.GetTyped[[]models.AdvancedDivergence](s.monitor, "divergence|"+symbol)
}

// LastArbitrage returns the most recent enhanced arbitrage sweep.
func (s *Service) LastArbitrage(symbol string) ([]models.EnhancedArbitrage, bool) {
	return svccache.GetTyped[[]models.EnhancedArbitrage](s.monitor, "arbitrage|"+symbol)
}
