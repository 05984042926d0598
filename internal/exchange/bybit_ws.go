package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"ExFuse/internal/domain/models"
	"ExFuse/pkg/logger"

	"github.com/gorilla/websocket"
)

// BybitStream keeps a last-tick cache fed by the public V5 ticker stream.
type BybitStream struct {
	url            string
	symbols        []string
	pingInterval   time.Duration
	reconnectDelay time.Duration
	log            *logger.Logger

	conn      *websocket.Conn
	connected bool

	mu   sync.RWMutex
	last map[string]*models.Ticker
}

func NewBybitStream(url string, symbols []string, pingInterval, reconnectDelay time.Duration, log *logger.Logger) *BybitStream {
	if url == "" {
		url = "wss://stream.bybit.com/v5/public/spot"
	}
	if pingInterval == 0 {
		pingInterval = 20 * time.Second
	}
	if reconnectDelay == 0 {
		reconnectDelay = 5 * time.Second
	}
	return &BybitStream{
		url:            url,
		symbols:        symbols,
		pingInterval:   pingInterval,
		reconnectDelay: reconnectDelay,
		log:            log,
		last:           make(map[string]*models.Ticker),
	}
}

func (s *BybitStream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("bybit stream connect: %w", err)
	}
	s.conn = conn
	s.connected = true
	s.log.Info("bybit stream connected", logger.String("url", s.url))
	return nil
}

func (s *BybitStream) Subscribe(ctx context.Context) error {
	if s.conn == nil || !s.connected {
		return fmt.Errorf("bybit stream not connected")
	}
	args := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		args = append(args, "tickers."+sym)
	}
	msg := map[string]any{"op": "subscribe", "args": args}
	if err := s.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("bybit stream subscribe: %w", err)
	}
	s.log.Info("bybit stream subscribed", logger.Strings("topics", args))
	return nil
}

type bybitWSTicker struct {
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

type bybitWSMessage struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Ts    int64           `json:"ts"`
	Data  json.RawMessage `json:"data"`
}

// Run drives the ping and read loops until ctx is cancelled, reconnecting
// after read failures.
func (s *BybitStream) Run(ctx context.Context) {
	go s.pingLoop(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.readOnce(); err != nil {
			s.log.Warn("bybit stream read failed", logger.Error(err))
			if err := s.reconnect(ctx); err != nil {
				s.log.Error("bybit stream reconnect failed", logger.Error(err))
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.reconnectDelay):
				}
			}
		}
	}
}

func (s *BybitStream) readOnce() error {
	if s.conn == nil {
		return fmt.Errorf("bybit stream conn nil")
	}
	_, b, err := s.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("bybit stream read: %w", err)
	}

	var m bybitWSMessage
	if err := json.Unmarshal(b, &m); err != nil {
		// ignore non-data frames
		return nil
	}
	if len(m.Topic) < len("tickers.") || m.Topic[:len("tickers.")] != "tickers." {
		return nil
	}

	var tick bybitWSTicker
	if err := json.Unmarshal(m.Data, &tick); err != nil {
		return nil
	}
	s.store(tick, time.UnixMilli(m.Ts))
	return nil
}

// store merges a delta frame over the previous snapshot: bybit omits
// unchanged fields on linear streams.
func (s *BybitStream) store(tick bybitWSTicker, ts time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.last[tick.Symbol]
	if !ok {
		t = &models.Ticker{Symbol: tick.Symbol, Exchange: "bybit"}
		s.last[tick.Symbol] = t
	}
	if tick.LastPrice != "" {
		t.LastPrice = parseF(tick.LastPrice)
	}
	if tick.Bid1Price != "" {
		t.Bid1Price = parseF(tick.Bid1Price)
	}
	if tick.Ask1Price != "" {
		t.Ask1Price = parseF(tick.Ask1Price)
	}
	if tick.Volume24h != "" {
		t.Volume24h = parseF(tick.Volume24h)
	}
	if tick.Turnover24h != "" {
		t.Turnover24h = parseF(tick.Turnover24h)
	}
	if tick.Price24hPcnt != "" {
		t.Change24hPcnt = parseF(tick.Price24hPcnt) * 100
	}
	if tick.HighPrice24h != "" {
		t.High24h = parseF(tick.HighPrice24h)
	}
	if tick.LowPrice24h != "" {
		t.Low24h = parseF(tick.LowPrice24h)
	}
	t.Timestamp = ts
}

// Last returns a copy of the freshest tick for symbol.
func (s *BybitStream) Last(symbol string) (*models.Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.last[symbol]
	if !ok {
		return nil, false
	}
	cp := *t
	return &cp, true
}

func (s *BybitStream) pingLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.conn != nil && s.connected {
				_ = s.conn.WriteJSON(map[string]string{"op": "ping"})
			}
		}
	}
}

func (s *BybitStream) reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

func (s *BybitStream) Close() error {
	s.connected = false
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}
