package exchange

import (
	"math"
	"testing"
	"time"
)

func TestBybitTickerToModel(t *testing.T) {
	it := bybitTickerItem{
		Symbol:       "BTCUSDT",
		LastPrice:    "65000.5",
		Bid1Price:    "65000.1",
		Ask1Price:    "65000.9",
		Volume24h:    "12345.6",
		Turnover24h:  "802000000",
		Price24hPcnt: "0.0123",
		HighPrice24h: "66000",
		LowPrice24h:  "64000",
	}

	now := time.Now()
	got := bybitTickerToModel(it, now)

	if got.Exchange != "bybit" || got.Symbol != "BTCUSDT" {
		t.Fatalf("identity fields wrong: %+v", got)
	}
	if got.LastPrice != 65000.5 {
		t.Fatalf("last price: got %v", got.LastPrice)
	}
	if math.Abs(got.Change24hPcnt-1.23) > 1e-9 {
		t.Fatalf("24h change must be scaled to percent, got %v", got.Change24hPcnt)
	}
	if !got.Timestamp.Equal(now) {
		t.Fatal("timestamp not preserved")
	}
}

func TestBybitKlinesReversedToOldestFirst(t *testing.T) {
	rows := [][]string{
		{"1700000120000", "3", "4", "2", "3.5", "10", "35"},
		{"1700000060000", "2", "3", "1", "2.5", "20", "50"},
		{"1700000000000", "1", "2", "0.5", "1.5", "30", "45"},
	}

	got := bybitKlinesToModel(rows)
	if len(got) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(got))
	}
	if !got[0].Start.Before(got[1].Start) || !got[1].Start.Before(got[2].Start) {
		t.Fatal("candles must be oldest first")
	}
	if got[0].Open != 1 || got[2].Close != 3.5 {
		t.Fatalf("values misplaced after reversal: %+v", got)
	}
}

func TestParseLevelsSkipsMalformedRows(t *testing.T) {
	rows := [][]string{
		{"100.5", "2"},
		{"101"},
		{"99.5", "3.25"},
	}

	got := parseLevels(rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 levels, got %d", len(got))
	}
	if got[1].Price != 99.5 || got[1].Size != 3.25 {
		t.Fatalf("level values wrong: %+v", got[1])
	}
}

func TestBinanceKlinesToModel(t *testing.T) {
	rows := [][]any{
		{float64(1700000000000), "1", "2", "0.5", "1.5", "30", float64(1700000059999), "45"},
		{float64(1700000060000), "2", "3", "1", "2.5", "20", float64(1700000119999), "50"},
	}

	got := binanceKlinesToModel(rows)
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if got[0].Open != 1 || got[0].Turnover != 45 {
		t.Fatalf("first candle wrong: %+v", got[0])
	}
	if !got[0].Start.Before(got[1].Start) {
		t.Fatal("binance candles arrive oldest first and must stay so")
	}
}

func TestBinanceIntervalMapping(t *testing.T) {
	cases := map[string]string{
		"1": "1m", "15": "15m", "60": "1h", "240": "4h", "D": "1d", "W": "1w",
	}
	for in, want := range cases {
		if got := binanceInterval(in); got != want {
			t.Fatalf("binanceInterval(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestHealthTrackerErrorRate(t *testing.T) {
	h := newHealthTracker()
	for i := 0; i < 6; i++ {
		h.observe(10*time.Millisecond, nil)
	}
	for i := 0; i < 4; i++ {
		h.observe(10*time.Millisecond, errTest)
	}

	snap := h.snapshot("x")
	if math.Abs(snap.ErrorRate-40) > 1e-9 {
		t.Fatalf("error rate: got %v, want 40", snap.ErrorRate)
	}
	if !snap.Healthy {
		t.Fatal("40%% error rate is still below the unhealthy threshold")
	}

	for i := 0; i < 10; i++ {
		h.observe(10*time.Millisecond, errTest)
	}
	if snap := h.snapshot("x"); snap.Healthy {
		t.Fatal("majority failures must flip health")
	}
}

var errTest = &testErr{}

type testErr struct{}

func (*testErr) Error() string { return "boom" }
