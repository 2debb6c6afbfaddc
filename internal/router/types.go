package router

import "time"

// Stats contains runtime counters for the normalizer/router.
type Stats struct {
	Received    int64 // Data messages pulled off the stream
	Routed      int64 // Messages that updated the cache and broadcast
	Suppressed  int64 // Trades cached but not broadcast (outside regular hours)
	ParseErrors int64
	Unknown     int64 // Unrecognized discriminants, ignored without error
}

// Wire types for JSON parsing. Field names follow the provider's
// single-letter schema.

// messageHead is the discriminant envelope decoded before full parsing.
type messageHead struct {
	T string `json:"T"`
	S string `json:"S"`
}

// barWire is the wire format of a bar message (T="b").
type barWire struct {
	Symbol    string    `json:"S"`
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    uint64    `json:"v"`
}

// tradeWire is the wire format of a trade message (T="t").
type tradeWire struct {
	Symbol     string    `json:"S"`
	Timestamp  time.Time `json:"t"`
	Price      float64   `json:"p"`
	Size       uint32    `json:"s"`
	Conditions []string  `json:"c"`
}

// quoteWire is the wire format of a quote message (T="q").
type quoteWire struct {
	Symbol    string    `json:"S"`
	Timestamp time.Time `json:"t"`
	BidPrice  float64   `json:"bp"`
	BidSize   uint32    `json:"bs"`
	AskPrice  float64   `json:"ap"`
	AskSize   uint32    `json:"as"`
}
