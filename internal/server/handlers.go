package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/breakoutcharts/markethub/internal/alpaca"
	"github.com/breakoutcharts/markethub/internal/model"
)

// dailyLookback is how far back the daily chart endpoint reaches.
const dailyLookback = 90 * 24 * time.Hour

// getDaily returns ~90 calendar days of daily bars for charting.
func (s *Server) getDaily(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	now := time.Now()

	bars, err := s.hub.Rest().GetBars(c.Request.Context(), symbol, alpaca.BarsParams{
		Start:     now.Add(-dailyLookback),
		End:       now,
		Timeframe: "1Day",
		Limit:     1000,
	})
	if err != nil {
		s.logger.Error("daily bars fetch failed", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch daily bars"})
		return
	}

	c.JSON(http.StatusOK, toPayloads(bars))
}

// getIntraday returns minute bars from the most recent session open,
// restricted to regular trading hours so charts don't render pre/post
// market noise.
func (s *Server) getIntraday(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))
	now := time.Now()
	start := s.hub.Hours().SessionOpen(now)

	bars, err := s.hub.Rest().GetBars(c.Request.Context(), symbol, alpaca.BarsParams{
		Start:     start,
		End:       now,
		Timeframe: "1Min",
		Limit:     1000,
	})
	if err != nil {
		s.logger.Error("intraday bars fetch failed", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch intraday bars"})
		return
	}

	filtered := bars[:0]
	for _, b := range bars {
		if s.hub.Hours().IsRegularHours(b.Timestamp) {
			filtered = append(filtered, b)
		}
	}

	c.JSON(http.StatusOK, toPayloads(filtered))
}

// getLatest returns the most recent trade for a symbol straight from the
// provider, bypassing the cache.
func (s *Server) getLatest(c *gin.Context) {
	symbol := strings.ToUpper(c.Param("symbol"))

	trade, err := s.hub.Rest().GetLatestTrade(c.Request.Context(), symbol)
	if err != nil {
		s.logger.Error("latest trade fetch failed", "symbol", symbol, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch latest trade"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"symbol":    symbol,
		"price":     trade.Price,
		"timestamp": trade.Timestamp,
	})
}

// getHealth reports hub component state.
func (s *Server) getHealth(c *gin.Context) {
	stats := s.hub.Stats()

	status := "ok"
	if stats.StreamState != "authenticated" {
		status = "degraded"
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"hub":    stats,
	})
}

// toPayloads converts bars to the chart wire shape. Always returns a
// non-nil slice so empty results encode as [].
func toPayloads(bars []model.Bar) []model.BarPayload {
	out := make([]model.BarPayload, 0, len(bars))
	for _, b := range bars {
		out = append(out, model.BarPayload{
			Time:   b.Timestamp,
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		})
	}
	return out
}
