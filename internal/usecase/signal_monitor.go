package usecase

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/domain/repository"
	"ExFuse/internal/domain/service"
	"ExFuse/pkg/logger"
)

// MonitorConfig configures the background signal sweep.
type MonitorConfig struct {
	Symbols  []string
	Interval time.Duration
}

// SignalMonitor periodically queries divergences and arbitrage for the
// configured symbols and hands hits to the publisher and the store. The
// aggregator itself never persists anything; this caller opts in.
type SignalMonitor struct {
	agg       service.Aggregator
	store     repository.SignalStore
	publisher repository.SignalPublisher
	cfg       MonitorConfig
	log       *logger.Logger
}

func NewSignalMonitor(agg service.Aggregator, store repository.SignalStore, publisher repository.SignalPublisher, cfg MonitorConfig, log *logger.Logger) *SignalMonitor {
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	return &SignalMonitor{agg: agg, store: store, publisher: publisher, cfg: cfg, log: log}
}

// Run blocks until ctx is cancelled. Sweep failures are logged and the next
// tick tries again.
func (m *SignalMonitor) Run(ctx context.Context) {
	m.log.Info("signal monitor started",
		logger.Strings("symbols", m.cfg.Symbols),
		logger.Duration("interval", m.cfg.Interval))

	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("signal monitor stopped")
			return
		case <-ticker.C:
			for _, symbol := range m.cfg.Symbols {
				m.sweep(ctx, symbol)
			}
		}
	}
}

func (m *SignalMonitor) sweep(ctx context.Context, symbol string) {
	var records []repository.SignalRecord

	divs, err := m.agg.DetectDivergences(ctx, symbol, "spot")
	if err != nil {
		m.log.Warn("monitor divergence sweep failed",
			logger.String("symbol", symbol),
			logger.Error(err))
	}
	for _, d := range divs {
		records = append(records, divergenceRecord(d))
	}

	opps, err := m.agg.IdentifyArbitrage(ctx, symbol, "spot")
	if err != nil {
		m.log.Warn("monitor arbitrage sweep failed",
			logger.String("symbol", symbol),
			logger.Error(err))
	}
	for _, o := range opps {
		records = append(records, arbitrageRecord(o))
	}

	if len(records) == 0 {
		return
	}

	if m.publisher != nil {
		for _, r := range records {
			if err := m.publisher.PublishSignal(ctx, r); err != nil {
				m.log.Warn("signal publish failed",
					logger.String("symbol", r.Symbol),
					logger.String("kind", r.Kind),
					logger.Error(err))
			}
		}
	}
	if m.store != nil {
		if err := m.store.SaveSignals(ctx, records); err != nil {
			m.log.Error("signal store failed",
				logger.String("symbol", symbol),
				logger.Int("count", len(records)),
				logger.Error(err))
			return
		}
	}
	m.log.Info("signals recorded",
		logger.String("symbol", symbol),
		logger.Int("count", len(records)))
}

func divergenceRecord(d models.ExchangeDivergence) repository.SignalRecord {
	payload, _ := json.Marshal(d)
	return repository.SignalRecord{
		Symbol:     d.Symbol,
		Kind:       "divergence",
		Subtype:    string(d.Type),
		Exchanges:  d.LeadExchange + "," + d.LagExchange,
		Magnitude:  d.Magnitude,
		Confidence: d.Confidence,
		Payload:    string(payload),
		DetectedAt: d.DetectedAt,
	}
}

func arbitrageRecord(o models.ArbitrageOpportunity) repository.SignalRecord {
	payload, _ := json.Marshal(o)
	magnitude, _ := o.SpreadPcnt.Float64()
	return repository.SignalRecord{
		Symbol:     o.Symbol,
		Kind:       "arbitrage",
		Subtype:    string(o.Kind),
		Exchanges:  strings.Join([]string{o.BuyExchange, o.SellExchange}, ","),
		Magnitude:  magnitude,
		Confidence: o.Confidence,
		Payload:    string(payload),
		DetectedAt: o.DetectedAt,
	}
}
