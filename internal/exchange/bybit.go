package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/internal/service/ratelimit"
	xhttp "ExFuse/pkg/http"
	"ExFuse/pkg/logger"
)

// BybitOptions configures the Bybit V5 adapter.
type BybitOptions struct {
	BaseURL      string
	Timeout      time.Duration
	RateCapacity float64
	RateRefill   float64
	TickTTL      time.Duration
}

// Bybit is the V5 market-data adapter. When a live stream is attached,
// GetTicker serves fresh stream ticks without a REST round trip.
type Bybit struct {
	baseURL string
	client  *xhttp.Client
	limiter *ratelimit.Limiter
	health  *healthTracker
	log     *logger.Logger

	stream  *BybitStream
	tickTTL time.Duration

	rateCapacity float64
	rateRefill   float64
}

func NewBybit(opts BybitOptions, log *logger.Logger) *Bybit {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.bybit.com"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateCapacity == 0 {
		opts.RateCapacity = 10
	}
	if opts.RateRefill == 0 {
		opts.RateRefill = 5
	}
	if opts.TickTTL == 0 {
		opts.TickTTL = 2 * time.Second
	}

	return &Bybit{
		baseURL:      opts.BaseURL,
		client:       xhttp.NewClient(xhttp.WithTimeout(opts.Timeout)),
		limiter:      ratelimit.New(),
		health:       newHealthTracker(),
		log:          log,
		tickTTL:      opts.TickTTL,
		rateCapacity: opts.RateCapacity,
		rateRefill:   opts.RateRefill,
	}
}

// AttachStream wires a live ticker stream into the adapter.
func (b *Bybit) AttachStream(s *BybitStream) {
	b.stream = s
}

func (b *Bybit) Name() string { return "bybit" }

type bybitEnvelope[T any] struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  T      `json:"result"`
	Time    int64  `json:"time"`
}

type bybitTickerItem struct {
	Symbol       string `json:"symbol"`
	LastPrice    string `json:"lastPrice"`
	Bid1Price    string `json:"bid1Price"`
	Ask1Price    string `json:"ask1Price"`
	Volume24h    string `json:"volume24h"`
	Turnover24h  string `json:"turnover24h"`
	Price24hPcnt string `json:"price24hPcnt"`
	HighPrice24h string `json:"highPrice24h"`
	LowPrice24h  string `json:"lowPrice24h"`
}

type bybitTickerResult struct {
	Category string            `json:"category"`
	List     []bybitTickerItem `json:"list"`
}

type bybitOrderbookResult struct {
	Symbol string     `json:"s"`
	Bids   [][]string `json:"b"`
	Asks   [][]string `json:"a"`
	Ts     int64      `json:"ts"`
}

type bybitKlineResult struct {
	Symbol   string     `json:"symbol"`
	Category string     `json:"category"`
	List     [][]string `json:"list"`
}

func (b *Bybit) GetTicker(ctx context.Context, symbol, category string) (*models.Ticker, error) {
	if b.stream != nil {
		if t, ok := b.stream.Last(symbol); ok && time.Since(t.Timestamp) < b.tickTTL {
			return t, nil
		}
	}

	var env bybitEnvelope[bybitTickerResult]
	err := b.get(ctx, "/v5/market/tickers", map[string][]string{
		"category": {category},
		"symbol":   {symbol},
	}, &env)
	if err != nil {
		return nil, fmt.Errorf("bybit ticker: %w", err)
	}
	if env.RetCode != 0 {
		return nil, fmt.Errorf("bybit ticker: retCode %d: %s", env.RetCode, env.RetMsg)
	}
	if len(env.Result.List) == 0 {
		return nil, fmt.Errorf("bybit ticker: empty list for %s", symbol)
	}

	return bybitTickerToModel(env.Result.List[0], time.Now()), nil
}

func (b *Bybit) GetOrderbook(ctx context.Context, symbol, category string, limit int) (*models.Orderbook, error) {
	var env bybitEnvelope[bybitOrderbookResult]
	err := b.get(ctx, "/v5/market/orderbook", map[string][]string{
		"category": {category},
		"symbol":   {symbol},
		"limit":    {strconv.Itoa(limit)},
	}, &env)
	if err != nil {
		return nil, fmt.Errorf("bybit orderbook: %w", err)
	}
	if env.RetCode != 0 {
		return nil, fmt.Errorf("bybit orderbook: retCode %d: %s", env.RetCode, env.RetMsg)
	}

	return &models.Orderbook{
		Symbol:    symbol,
		Exchange:  b.Name(),
		Bids:      parseLevels(env.Result.Bids),
		Asks:      parseLevels(env.Result.Asks),
		Timestamp: time.UnixMilli(env.Result.Ts),
	}, nil
}

func (b *Bybit) GetKlines(ctx context.Context, symbol, interval string, limit int, category string) ([]models.Candle, error) {
	var env bybitEnvelope[bybitKlineResult]
	err := b.get(ctx, "/v5/market/kline", map[string][]string{
		"category": {category},
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {strconv.Itoa(limit)},
	}, &env)
	if err != nil {
		return nil, fmt.Errorf("bybit klines: %w", err)
	}
	if env.RetCode != 0 {
		return nil, fmt.Errorf("bybit klines: retCode %d: %s", env.RetCode, env.RetMsg)
	}

	return bybitKlinesToModel(env.Result.List), nil
}

func (b *Bybit) HealthCheck(ctx context.Context) models.ExchangeHealth {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	var env bybitEnvelope[map[string]any]
	_ = b.get(ctx, "/v5/market/time", nil, &env)
	return b.health.snapshot(b.Name())
}

func (b *Bybit) get(ctx context.Context, path string, query map[string][]string, dest any) error {
	if !b.limiter.Allow("bybit:market", b.rateCapacity, b.rateRefill) {
		return fmt.Errorf("rate limited")
	}

	start := time.Now()
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         b.baseURL + path,
		QueryParams: query,
	}, dest)
	b.health.observe(time.Since(start), err)
	if err != nil {
		b.log.Warn("bybit request failed",
			logger.String("path", path),
			logger.Error(err))
	}
	return err
}

func bybitTickerToModel(it bybitTickerItem, ts time.Time) *models.Ticker {
	return &models.Ticker{
		Symbol:    it.Symbol,
		Exchange:  "bybit",
		LastPrice: parseF(it.LastPrice),
		Bid1Price: parseF(it.Bid1Price),
		Ask1Price: parseF(it.Ask1Price),
		Volume24h: parseF(it.Volume24h),
		// bybit reports the 24h change as a fraction
		Change24hPcnt: parseF(it.Price24hPcnt) * 100,
		Turnover24h:   parseF(it.Turnover24h),
		High24h:       parseF(it.HighPrice24h),
		Low24h:        parseF(it.LowPrice24h),
		Timestamp:     ts,
	}
}

func parseLevels(rows [][]string) []models.PriceLevel {
	out := make([]models.PriceLevel, 0, len(rows))
	for _, r := range rows {
		if len(r) < 2 {
			continue
		}
		out = append(out, models.PriceLevel{Price: parseF(r[0]), Size: parseF(r[1])})
	}
	return out
}

// bybitKlinesToModel converts rows to candles, oldest first. Bybit returns
// newest first.
func bybitKlinesToModel(rows [][]string) []models.Candle {
	out := make([]models.Candle, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		r := rows[i]
		if len(r) < 6 {
			continue
		}
		c := models.Candle{
			Start:  time.UnixMilli(parseI(r[0])),
			Open:   parseF(r[1]),
			High:   parseF(r[2]),
			Low:    parseF(r[3]),
			Close:  parseF(r[4]),
			Volume: parseF(r[5]),
		}
		if len(r) > 6 {
			c.Turnover = parseF(r[6])
		}
		out = append(out, c)
	}
	return out
}

func parseF(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseI(s string) int64 {
	v, _ := strconv.ParseInt(s, 10, 64)
	return v
}
