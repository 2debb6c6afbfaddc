package model

import "time"

// EventType identifies a downstream client message kind.
type EventType string

const (
	EventSnapshot    EventType = "snapshot"
	EventBar         EventType = "bar"
	EventTrade       EventType = "trade"
	EventQuote       EventType = "quote"
	EventPriceUpdate EventType = "price_update"
	EventSubscribed  EventType = "subscribed"
)

// Event is a hub-to-client message. Exactly one of Data or Symbols is set
// depending on Type; Symbol is empty for snapshot and subscribed events.
type Event struct {
	Type    EventType `json:"type"`
	Symbol  string    `json:"symbol,omitempty"`
	Data    any       `json:"data,omitempty"`
	Symbols []string  `json:"symbols,omitempty"`
}

// BarPayload is the data body of a bar event, shaped for chart consumption.
type BarPayload struct {
	Time   time.Time `json:"x"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume uint64    `json:"volume"`
}

// TradePayload is the data body of a trade event.
type TradePayload struct {
	Price      float64   `json:"price"`
	Size       uint32    `json:"size"`
	Timestamp  time.Time `json:"timestamp"`
	Conditions []string  `json:"conditions"`
}

// QuotePayload is the data body of a quote event.
type QuotePayload struct {
	BidPrice  float64   `json:"bidPrice"`
	BidSize   uint32    `json:"bidSize"`
	AskPrice  float64   `json:"askPrice"`
	AskSize   uint32    `json:"askSize"`
	Timestamp time.Time `json:"timestamp"`
}

// PricePayload is the data body of a price_update event.
type PricePayload struct {
	Price     float64     `json:"price"`
	Timestamp time.Time   `json:"timestamp"`
	Source    PriceSource `json:"source"`
}

// NewBarEvent builds a bar event from a cached or live bar.
func NewBarEvent(b Bar) Event {
	return Event{
		Type:   EventBar,
		Symbol: b.Symbol,
		Data: BarPayload{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		},
	}
}

// NewTradeEvent builds a trade event.
func NewTradeEvent(t Trade) Event {
	return Event{
		Type:   EventTrade,
		Symbol: t.Symbol,
		Data: TradePayload{
			Price:      t.Price,
			Size:       t.Size,
			Timestamp:  t.Timestamp,
			Conditions: t.Conditions,
		},
	}
}

// NewQuoteEvent builds a quote event.
func NewQuoteEvent(q Quote) Event {
	return Event{
		Type:   EventQuote,
		Symbol: q.Symbol,
		Data: QuotePayload{
			BidPrice:  q.BidPrice,
			BidSize:   q.BidSize,
			AskPrice:  q.AskPrice,
			AskSize:   q.AskSize,
			Timestamp: q.Timestamp,
		},
	}
}

// NewPriceEvent builds a price_update event.
func NewPriceEvent(symbol string, p PricePoint) Event {
	return Event{
		Type:   EventPriceUpdate,
		Symbol: symbol,
		Data: PricePayload{
			Price:     p.Price,
			Timestamp: p.Timestamp,
			Source:    p.Source,
		},
	}
}

// NewSnapshotEvent wraps cached state for a newly connected client.
func NewSnapshotEvent(events []Event) Event {
	return Event{Type: EventSnapshot, Data: events}
}

// NewSubscribedEvent acknowledges a client subscribe request.
func NewSubscribedEvent(symbols []string) Event {
	return Event{Type: EventSubscribed, Symbols: symbols}
}
