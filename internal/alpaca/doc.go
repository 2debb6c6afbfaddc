// Package alpaca provides a client for the Alpaca Market Data REST API.
//
// Only the endpoints the hub consumes are implemented: latest trade per
// symbol (poll fallback) and historical bars (daily/intraday snapshots).
package alpaca
