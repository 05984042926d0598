package repository

import (
	"context"
	"time"

	"ExFuse/internal/domain/models"
)

// ExchangeAdapter is the per-exchange data source boundary. Implementations
// return data normalized to the domain models; errors are soft and handled
// by the aggregator unless every adapter fails.
type ExchangeAdapter interface {
	Name() string
	GetTicker(ctx context.Context, symbol, category string) (*models.Ticker, error)
	GetOrderbook(ctx context.Context, symbol, category string, limit int) (*models.Orderbook, error)
	GetKlines(ctx context.Context, symbol, interval string, limit int, category string) ([]models.Candle, error)
	HealthCheck(ctx context.Context) models.ExchangeHealth
}

// Metrics abstracts operational metrics recording.
type Metrics interface {
	RecordOperation(op string, d time.Duration)
	RecordFetchError(exchange, op string)
	SetHealthyExchanges(n int)
	RecordOpportunity(kind string)
	RecordCacheHit(cache string)
	RecordCacheMiss(cache string)
}

// SignalRecord is a detected signal flattened for persistence.
type SignalRecord struct {
	Symbol     string
	Kind       string
	Subtype    string
	Exchanges  string
	Magnitude  float64
	Confidence float64
	Payload    string
	DetectedAt time.Time
}

// SignalStore persists and queries monitor-recorded signals.
type SignalStore interface {
	SaveSignals(ctx context.Context, records []SignalRecord) error
	QuerySignals(ctx context.Context, symbol, kind string, from, to time.Time, limit int) ([]SignalRecord, error)
	Close() error
}

// SignalPublisher pushes detected signals to downstream consumers.
type SignalPublisher interface {
	PublishSignal(ctx context.Context, record SignalRecord) error
	Close() error
}
