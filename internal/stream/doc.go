// Package stream owns the single upstream streaming connection to the
// market-data provider.
//
// The Manager holds at most one live connection at a time, drives the
// authenticate handshake, keeps the subscribed symbol set, and restores
// subscriptions after a reconnect. Control frames (success/error/
// subscription acks) drive manager state only; data frames (bars, trades,
// quotes) are forwarded to the message router in strict arrival order.
//
// Recovery is deliberately simple: a bounded number of reconnect attempts
// with a fixed linear delay, no jitter, no exponential growth. Exhaustion
// is fatal-and-logged and requires an external restart.
package stream
