package service

import (
	"context"

	"ExFuse/internal/domain/models"
)

// Aggregator exposes the cross-exchange aggregation operations.
type Aggregator interface {
	GetAggregatedTicker(ctx context.Context, symbol, category string) (*models.AggregatedTicker, error)
	GetCompositeOrderbook(ctx context.Context, symbol, category string, limit int) (*models.CompositeOrderbook, error)
	GetSynchronizedKlines(ctx context.Context, symbol, interval string, limit int, category string) (*models.SynchronizedKlines, error)
	DetectDivergences(ctx context.Context, symbol, category string) ([]models.ExchangeDivergence, error)
	IdentifyArbitrage(ctx context.Context, symbol, category string) ([]models.ArbitrageOpportunity, error)
	GetExchangeDominance(ctx context.Context, symbol, timeframe string) (*models.ExchangeDominance, error)
	GetMultiExchangeAnalytics(ctx context.Context, symbol, timeframe string) (*models.MultiExchangeAnalytics, error)
}

// AdvancedAnalytics exposes the advanced cross-exchange detectors. It is
// built on top of Aggregator output only.
type AdvancedAnalytics interface {
	PredictLiquidationCascade(ctx context.Context, symbol string) (*models.LiquidationCascade, error)
	DetectAdvancedDivergences(ctx context.Context, symbol string) ([]models.AdvancedDivergence, error)
	AnalyzeEnhancedArbitrage(ctx context.Context, symbol string) ([]models.EnhancedArbitrage, error)
	AnalyzeExtendedDominance(ctx context.Context, symbol, timeframe string) (*models.ExtendedExchangeDominance, error)
	AnalyzeCrossExchangeMarketStructure(ctx context.Context, symbol, timeframe string) (*models.CrossExchangeMarketStructure, error)
}
