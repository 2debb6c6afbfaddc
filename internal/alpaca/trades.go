package alpaca

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/breakoutcharts/markethub/internal/model"
)

// latestTradeResponse is the wire format for the latest-trade endpoint.
type latestTradeResponse struct {
	Symbol string    `json:"symbol"`
	Trade  tradeWire `json:"trade"`
}

type tradeWire struct {
	Timestamp  time.Time `json:"t"`
	Price      float64   `json:"p"`
	Size       uint32    `json:"s"`
	Conditions []string  `json:"c"`
}

// GetLatestTrade fetches the most recent trade for a symbol.
func (c *Client) GetLatestTrade(ctx context.Context, symbol string) (model.Trade, error) {
	query := url.Values{}
	query.Set("feed", c.feed)

	var resp latestTradeResponse
	path := fmt.Sprintf("/stocks/%s/trades/latest", symbol)
	if err := c.get(ctx, path, query, &resp); err != nil {
		return model.Trade{}, fmt.Errorf("get latest trade %s: %w", symbol, err)
	}

	return model.Trade{
		Symbol:     symbol,
		Timestamp:  resp.Trade.Timestamp,
		Price:      resp.Trade.Price,
		Size:       resp.Trade.Size,
		Conditions: resp.Trade.Conditions,
	}, nil
}
