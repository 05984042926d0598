package models

import (
	"errors"
	"fmt"
)

// ErrNoHealthyExchanges is returned when every registered adapter is
// unhealthy or every fetch failed. It is the only fatal condition; a subset
// of adapters failing degrades the result instead.
var ErrNoHealthyExchanges = errors.New("no healthy exchanges available")

// ErrNoUsableData is returned when healthy adapters responded but nothing
// parseable came back.
var ErrNoUsableData = errors.New("no usable exchange data")

// AggregationError wraps a fatal aggregation failure with the operation
// and symbol it happened on.
type AggregationError struct {
	Op     string
	Symbol string
	Err    error
}

func NewAggregationError(op, symbol string, err error) *AggregationError {
	return &AggregationError{Op: op, Symbol: symbol, Err: err}
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Symbol, e.Err)
}

func (e *AggregationError) Unwrap() error {
	return e.Err
}
