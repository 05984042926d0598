package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"ExFuse/internal/domain/repository"
	"ExFuse/internal/domain/service"
	"ExFuse/internal/exchange"
	"ExFuse/internal/handler/api"
	internalrepo "ExFuse/internal/repository"
	"ExFuse/internal/services/analytics"
	"ExFuse/internal/usecase"
	pkgcache "ExFuse/pkg/cache"
	pkgch "ExFuse/pkg/clickhouse"
	"ExFuse/pkg/config"
	xhttp "ExFuse/pkg/http"
	pkgkafka "ExFuse/pkg/kafka"
	applogger "ExFuse/pkg/logger"
	"ExFuse/pkg/metrics"
	"ExFuse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := cfg.Log.Level
	if level == "" {
		level = "info"
	}
	format := cfg.Log.Format
	if format == "" {
		format = "console"
	}
	output := cfg.Log.Output
	if output == "" {
		output = "stdout"
	}
	return applogger.New(&applogger.Config{Level: level, Format: format, Output: output})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client when enabled. Returns
// nil when the signal store is not configured.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := client.InitSchema(ctx, internalrepo.SignalSchema(signalsTable(cfg))); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

func signalsTable(cfg *config.Config) string {
	if cfg.ClickHouse.SignalsTable != "" {
		return cfg.ClickHouse.SignalsTable
	}
	return cfg.ClickHouse.Database + ".signals"
}

// ProvideKafkaProducer creates a Kafka producer when enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}

	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}

	return producer, nil
}

// ProvideSignalStore creates the ClickHouse-backed signal store.
func ProvideSignalStore(chClient *pkgch.Client, cfg *config.Config) repository.SignalStore {
	if chClient == nil {
		return nil
	}
	return internalrepo.NewClickHouseSignalStore(chClient, signalsTable(cfg))
}

// ProvideSignalPublisher creates the Kafka-backed signal publisher.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic)
}

// ProvideBybitStream creates the live ticker stream when configured.
func ProvideBybitStream(cfg *config.Config, log *applogger.Logger) *exchange.BybitStream {
	s := cfg.Exchanges.Bybit.Stream
	if !cfg.Exchanges.Bybit.Enabled || !s.Enabled || len(s.Symbols) == 0 {
		return nil
	}
	url := s.URL
	if url == "" {
		url = "wss://stream.bybit.com/v5/public/spot"
	}
	return exchange.NewBybitStream(url, s.Symbols, 20*time.Second, 5*time.Second, log)
}

// ProvideAdapters builds the enabled exchange adapters.
func ProvideAdapters(cfg *config.Config, stream *exchange.BybitStream, log *applogger.Logger) []repository.ExchangeAdapter {
	var adapters []repository.ExchangeAdapter

	if cfg.Exchanges.Bybit.Enabled {
		b := exchange.NewBybit(exchange.BybitOptions{
			BaseURL:      cfg.Exchanges.Bybit.BaseURL,
			Timeout:      cfg.Exchanges.Bybit.Timeout,
			RateCapacity: cfg.Exchanges.Bybit.RateCapacity,
			RateRefill:   cfg.Exchanges.Bybit.RateRefill,
			TickTTL:      cfg.Exchanges.Bybit.Stream.TickTTL,
		}, log)
		if stream != nil {
			b.AttachStream(stream)
		}
		adapters = append(adapters, b)
	}

	if cfg.Exchanges.Binance.Enabled {
		adapters = append(adapters, exchange.NewBinance(exchange.BinanceOptions{
			BaseURL:      cfg.Exchanges.Binance.BaseURL,
			FuturesURL:   cfg.Exchanges.Binance.FuturesURL,
			Timeout:      cfg.Exchanges.Binance.Timeout,
			RateCapacity: cfg.Exchanges.Binance.RateCapacity,
			RateRefill:   cfg.Exchanges.Binance.RateRefill,
		}, log))
	}

	return adapters
}

// ProvideAggregator creates the cross-exchange aggregator use case.
func ProvideAggregator(adapters []repository.ExchangeAdapter, cfg *config.Config, m repository.Metrics, log *applogger.Logger) service.Aggregator {
	return usecase.NewAggregator(adapters, usecase.AggregatorConfig{
		Weights:           cfg.Weights(),
		AdapterTimeout:    cfg.Aggregator.AdapterTimeout,
		DominanceCacheTTL: cfg.Aggregator.DominanceCacheTTL,
		Thresholds: usecase.Thresholds{
			MinSpreadPcnt:        cfg.Aggregator.MinSpreadPcnt,
			BuyFeePcnt:           cfg.Aggregator.BuyFeePcnt,
			SellFeePcnt:          cfg.Aggregator.SellFeePcnt,
			PriceDivergencePcnt:  cfg.Aggregator.PriceDivergencePcnt,
			VolumeDivergencePcnt: cfg.Aggregator.VolumeDivergencePcnt,
			MaxTickerAge:         cfg.Aggregator.MaxTickerAge,
		},
		Quality: usecase.QualityThresholds{
			MinResponseTime:     cfg.Aggregator.MinResponseTime,
			MaxErrorRate:        cfg.Aggregator.MaxErrorRate,
			MinDataCompleteness: cfg.Aggregator.MinDataCompleteness,
		},
	}, m, log)
}

// ProvideAdvancedAnalytics creates the advanced detector service.
func ProvideAdvancedAnalytics(agg service.Aggregator, cfg *config.Config, m repository.Metrics, log *applogger.Logger) service.AdvancedAnalytics {
	return analytics.New(agg, analytics.Config{
		StatArbMaxCorrelation: cfg.Analytics.StatArbMaxCorrelation,
		StatArbMinSpreadPcnt:  cfg.Analytics.StatArbMinSpreadPcnt,
		BuyFeePcnt:            cfg.Aggregator.BuyFeePcnt,
		SellFeePcnt:           cfg.Aggregator.SellFeePcnt,
		WallSizeMultiple:      cfg.Analytics.WallSizeMultiple,
		ConsensusTolerance:    cfg.Analytics.ConsensusTolerance,
	}, m, log)
}

// ProvideResponseCache builds the layered response cache. Redis is optional;
// without it responses are cached in memory only.
func ProvideResponseCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Memory.Enabled && !cfg.Cache.Redis.Enabled {
		return nil, nil
	}

	if !cfg.Cache.Redis.Enabled {
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(cfg.Cache.Memory.MaxEntries)), nil
	}

	host, portStr, err := net.SplitHostPort(cfg.Cache.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("redis port: %w", err)
	}

	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}

	if cfg.Cache.Memory.Enabled {
		return pkgcache.NewLayeredCache(rc, pkgcache.WithLayeredMemorySize(cfg.Cache.Memory.MaxEntries)), nil
	}
	return rc, nil
}

// ProvideSignalMonitor creates the background sweep when enabled.
func ProvideSignalMonitor(
	agg service.Aggregator,
	store repository.SignalStore,
	publisher repository.SignalPublisher,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.SignalMonitor {
	if !cfg.Monitor.Enabled {
		return nil
	}
	return usecase.NewSignalMonitor(agg, store, publisher, usecase.MonitorConfig{
		Symbols:  cfg.Monitor.Symbols,
		Interval: cfg.Monitor.Interval,
	}, log)
}

// ProvideHandlers builds the HTTP handlers in route registration order.
func ProvideHandlers(
	log *applogger.Logger,
	agg service.Aggregator,
	adv service.AdvancedAnalytics,
	store repository.SignalStore,
	cache pkgcache.Service,
) []xhttp.Handler {
	handlers := []xhttp.Handler{
		api.NewMarketHandler(log, agg, cache),
		api.NewAdvancedHandler(log, adv),
	}
	if store != nil {
		handlers = append(handlers, api.NewHistoryHandler(log, store))
	}
	return handlers
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	handlers []xhttp.Handler,
	stream *exchange.BybitStream,
	monitor *usecase.SignalMonitor,
	chClient *pkgch.Client,
	store repository.SignalStore,
	publisher repository.SignalPublisher,
) *server.App {
	return server.New(cfg, log, handlers, stream, monitor, chClient, store, publisher)
}
