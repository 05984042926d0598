package util

import "testing"

func TestParseIntDefault(t *testing.T) {
	if got := ParseIntDefault("25", 50); got != 25 {
		t.Fatalf("got %d", got)
	}
	if got := ParseIntDefault("", 50); got != 50 {
		t.Fatalf("got %d", got)
	}
	if got := ParseIntDefault("abc", 50); got != 50 {
		t.Fatalf("got %d", got)
	}
}

func TestNormalizeSymbols(t *testing.T) {
	got := NormalizeSymbols([]string{" btcusdt", "ETHUSDT ", ""})
	if len(got) != 2 || got[0] != "BTCUSDT" || got[1] != "ETHUSDT" {
		t.Fatalf("unexpected %v", got)
	}
}
