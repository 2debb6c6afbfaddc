package model

import "time"

// PriceSource tags where a PricePoint value came from.
type PriceSource string

const (
	SourceTrade  PriceSource = "trade"
	SourceQuote  PriceSource = "quote"
	SourceRest   PriceSource = "rest"
	SourceCached PriceSource = "cached"
)

// Bar is an OHLCV aggregate over a fixed time bucket (minute or day).
type Bar struct {
	Symbol    string
	Timestamp time.Time // Bucket start
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    uint64
}

// Trade is a single executed transaction.
type Trade struct {
	Symbol     string
	Timestamp  time.Time
	Price      float64
	Size       uint32
	Conditions []string
}

// Quote is a best bid/ask pair.
type Quote struct {
	Symbol    string
	Timestamp time.Time
	BidPrice  float64
	BidSize   uint32
	AskPrice  float64
	AskSize   uint32
}

// Mid returns the bid/ask midpoint.
func (q Quote) Mid() float64 {
	return (q.BidPrice + q.AskPrice) / 2
}

// PricePoint is the latest known price for a symbol with its provenance.
type PricePoint struct {
	Price     float64
	Source    PriceSource
	Timestamp time.Time
}
