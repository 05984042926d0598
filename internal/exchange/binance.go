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

// BinanceOptions configures the Binance adapter.
type BinanceOptions struct {
	BaseURL      string
	FuturesURL   string
	Timeout      time.Duration
	RateCapacity float64
	RateRefill   float64
}

// Binance serves spot data from the main API and linear contracts from the
// futures API.
type Binance struct {
	baseURL    string
	futuresURL string
	client     *xhttp.Client
	limiter    *ratelimit.Limiter
	health     *healthTracker
	log        *logger.Logger

	rateCapacity float64
	rateRefill   float64
}

func NewBinance(opts BinanceOptions, log *logger.Logger) *Binance {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.binance.com"
	}
	if opts.FuturesURL == "" {
		opts.FuturesURL = "https://fapi.binance.com"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.RateCapacity == 0 {
		opts.RateCapacity = 20
	}
	if opts.RateRefill == 0 {
		opts.RateRefill = 10
	}

	return &Binance{
		baseURL:      opts.BaseURL,
		futuresURL:   opts.FuturesURL,
		client:       xhttp.NewClient(xhttp.WithTimeout(opts.Timeout)),
		limiter:      ratelimit.New(),
		health:       newHealthTracker(),
		log:          log,
		rateCapacity: opts.RateCapacity,
		rateRefill:   opts.RateRefill,
	}
}

func (b *Binance) Name() string { return "binance" }

type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	BidPrice           string `json:"bidPrice"`
	AskPrice           string `json:"askPrice"`
	Volume             string `json:"volume"`
	QuoteVolume        string `json:"quoteVolume"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	CloseTime          int64  `json:"closeTime"`
}

type binanceDepth struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

func (b *Binance) GetTicker(ctx context.Context, symbol, category string) (*models.Ticker, error) {
	var t binanceTicker
	err := b.get(ctx, category, "/ticker/24hr", map[string][]string{
		"symbol": {symbol},
	}, &t)
	if err != nil {
		return nil, fmt.Errorf("binance ticker: %w", err)
	}
	return binanceTickerToModel(t), nil
}

func (b *Binance) GetOrderbook(ctx context.Context, symbol, category string, limit int) (*models.Orderbook, error) {
	var d binanceDepth
	err := b.get(ctx, category, "/depth", map[string][]string{
		"symbol": {symbol},
		"limit":  {strconv.Itoa(limit)},
	}, &d)
	if err != nil {
		return nil, fmt.Errorf("binance orderbook: %w", err)
	}

	return &models.Orderbook{
		Symbol:    symbol,
		Exchange:  b.Name(),
		Bids:      parseLevels(d.Bids),
		Asks:      parseLevels(d.Asks),
		Timestamp: time.Now(),
	}, nil
}

func (b *Binance) GetKlines(ctx context.Context, symbol, interval string, limit int, category string) ([]models.Candle, error) {
	var rows [][]any
	err := b.get(ctx, category, "/klines", map[string][]string{
		"symbol":   {symbol},
		"interval": {binanceInterval(interval)},
		"limit":    {strconv.Itoa(limit)},
	}, &rows)
	if err != nil {
		return nil, fmt.Errorf("binance klines: %w", err)
	}
	return binanceKlinesToModel(rows), nil
}

func (b *Binance) HealthCheck(ctx context.Context) models.ExchangeHealth {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	_ = b.get(ctx, "spot", "/ping", nil, nil)
	return b.health.snapshot(b.Name())
}

func (b *Binance) get(ctx context.Context, category, path string, query map[string][]string, dest any) error {
	if !b.limiter.Allow("binance:market", b.rateCapacity, b.rateRefill) {
		return fmt.Errorf("rate limited")
	}

	base := b.baseURL + "/api/v3"
	if category == "linear" {
		base = b.futuresURL + "/fapi/v1"
	}

	start := time.Now()
	err := b.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         base + path,
		QueryParams: query,
	}, dest)
	b.health.observe(time.Since(start), err)
	if err != nil {
		b.log.Warn("binance request failed",
			logger.String("path", path),
			logger.Error(err))
	}
	return err
}

func binanceTickerToModel(t binanceTicker) *models.Ticker {
	return &models.Ticker{
		Symbol:        t.Symbol,
		Exchange:      "binance",
		LastPrice:     parseF(t.LastPrice),
		Bid1Price:     parseF(t.BidPrice),
		Ask1Price:     parseF(t.AskPrice),
		Volume24h:     parseF(t.Volume),
		Turnover24h:   parseF(t.QuoteVolume),
		Change24hPcnt: parseF(t.PriceChangePercent),
		High24h:       parseF(t.HighPrice),
		Low24h:        parseF(t.LowPrice),
		Timestamp:     time.UnixMilli(t.CloseTime),
	}
}

// binanceKlinesToModel converts the mixed-type kline rows, oldest first as
// binance already returns them.
func binanceKlinesToModel(rows [][]any) []models.Candle {
	out := make([]models.Candle, 0, len(rows))
	for _, r := range rows {
		if len(r) < 8 {
			continue
		}
		openTime, ok := r[0].(float64)
		if !ok {
			continue
		}
		out = append(out, models.Candle{
			Start:    time.UnixMilli(int64(openTime)),
			Open:     anyF(r[1]),
			High:     anyF(r[2]),
			Low:      anyF(r[3]),
			Close:    anyF(r[4]),
			Volume:   anyF(r[5]),
			Turnover: anyF(r[7]),
		})
	}
	return out
}

func anyF(v any) float64 {
	switch t := v.(type) {
	case string:
		return parseF(t)
	case float64:
		return t
	}
	return 0
}

// binanceInterval maps the canonical bybit-style interval codes to binance
// interval strings.
func binanceInterval(interval string) string {
	switch interval {
	case "1":
		return "1m"
	case "3":
		return "3m"
	case "5":
		return "5m"
	case "15":
		return "15m"
	case "30":
		return "30m"
	case "60":
		return "1h"
	case "120":
		return "2h"
	case "240":
		return "4h"
	case "360":
		return "6h"
	case "720":
		return "12h"
	case "D":
		return "1d"
	case "W":
		return "1w"
	case "M":
		return "1M"
	}
	return interval
}
