package alpaca

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/breakoutcharts/markethub/internal/model"
)

// BarsParams selects a historical bar range.
type BarsParams struct {
	Start     time.Time
	End       time.Time
	Timeframe string // "1Min" or "1Day"
	Limit     int
}

// barsResponse is the wire format for the bars endpoint.
type barsResponse struct {
	Symbol string    `json:"symbol"`
	Bars   []barWire `json:"bars"`
}

type barWire struct {
	Timestamp time.Time `json:"t"`
	Open      float64   `json:"o"`
	High      float64   `json:"h"`
	Low       float64   `json:"l"`
	Close     float64   `json:"c"`
	Volume    uint64    `json:"v"`
}

// GetBars fetches historical bars for a symbol.
func (c *Client) GetBars(ctx context.Context, symbol string, params BarsParams) ([]model.Bar, error) {
	query := url.Values{}
	query.Set("start", params.Start.UTC().Format(time.RFC3339))
	query.Set("end", params.End.UTC().Format(time.RFC3339))
	query.Set("timeframe", params.Timeframe)
	query.Set("adjustment", "raw")
	query.Set("feed", c.feed)
	if params.Limit > 0 {
		query.Set("limit", strconv.Itoa(params.Limit))
	}

	var resp barsResponse
	path := fmt.Sprintf("/stocks/%s/bars", symbol)
	if err := c.get(ctx, path, query, &resp); err != nil {
		return nil, fmt.Errorf("get bars %s: %w", symbol, err)
	}

	bars := make([]model.Bar, 0, len(resp.Bars))
	for _, w := range resp.Bars {
		bars = append(bars, model.Bar{
			Symbol:    symbol,
			Timestamp: w.Timestamp,
			Open:      w.Open,
			High:      w.High,
			Low:       w.Low,
			Close:     w.Close,
			Volume:    w.Volume,
		})
	}
	return bars, nil
}
