package domain

import "time"

// MarketDescriptor identifies a tradable market on the upstream venue.
// Instances are immutable once constructed by the upstream client.
type MarketDescriptor struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"` // Normalized BASE/QUOTE form
	Base   string `json:"base"`
	Quote  string `json:"quote"`
}

// PriceLevel is a single resting order book level.
type PriceLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

// OrderBookSnapshot holds both sides of an order book at one instant.
// Bids are sorted descending by price, asks ascending. Crossed books
// (best bid above best ask) are possible with inconsistent upstream
// data and must be tolerated by consumers.
type OrderBookSnapshot struct {
	MarketID  string       `json:"market_id"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	Timestamp time.Time    `json:"timestamp"`
}

// BestBid returns the highest bid, or false when the bid side is empty.
func (ob *OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if len(ob.Bids) == 0 {
		return PriceLevel{}, false
	}
	return ob.Bids[0], true
}

// BestAsk returns the lowest ask, or false when the ask side is empty.
func (ob *OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(ob.Asks) == 0 {
		return PriceLevel{}, false
	}
	return ob.Asks[0], true
}

// MidPrice returns the arithmetic mean of best bid and best ask,
// or false when either side is empty.
func (ob *OrderBookSnapshot) MidPrice() (float64, bool) {
	bid, okBid := ob.BestBid()
	ask, okAsk := ob.BestAsk()
	if !okBid || !okAsk {
		return 0, false
	}
	return (bid.Price + ask.Price) / 2.0, true
}

// Trade is a single executed trade. Sequences handed to the metrics
// engine are sorted ascending by timestamp.
type Trade struct {
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	Timestamp time.Time `json:"timestamp"`
}
