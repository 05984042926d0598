package repository

import "time"

// Timeframe is the analysis window for dominance and correlation queries.
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

func (tf Timeframe) IsValid() bool {
	switch tf {
	case TF5m, TF15m, TF1h, TF4h, TF1d:
		return true
	}
	return false
}

func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	}
	return time.Hour
}

// Interval maps the timeframe to the kline interval used to sample it.
func (tf Timeframe) Interval() string {
	switch tf {
	case TF5m:
		return "1"
	case TF15m:
		return "3"
	case TF1h:
		return "5"
	case TF4h:
		return "15"
	case TF1d:
		return "60"
	}
	return "5"
}

func DefaultTimeframe() Timeframe { return TF1h }

// NormalizeTimeframe falls back to the default for unknown values.
func NormalizeTimeframe(s string) Timeframe {
	tf := Timeframe(s)
	if !tf.IsValid() {
		return DefaultTimeframe()
	}
	return tf
}
