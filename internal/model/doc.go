// Package model defines shared data types used across the market-data hub.
//
// Conventions:
//   - Symbols: uppercase ticker strings, the unit of subscription
//   - Prices: float64 dollars, as delivered by the upstream feed
//   - Timestamps: time.Time in UTC; exchange-local conversions happen at the
//     market-hours policy boundary only
package model
