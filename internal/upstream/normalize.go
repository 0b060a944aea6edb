package upstream

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/quantglass/marketintel/internal/domain"
)

// parseMarkets decodes a market listing and normalizes each entry to a
// MarketDescriptor. The listing arrives either as a bare array or
// wrapped in a "markets" envelope.
func parseMarkets(body []byte) ([]domain.MarketDescriptor, error) {
	var raws []rawMarket
	if err := json.Unmarshal(body, &raws); err != nil {
		var envelope struct {
			Markets []rawMarket `json:"markets"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, &FormatError{Endpoint: EndpointMarkets, Reason: fmt.Sprintf("undecodable listing: %v", err)}
		}
		raws = envelope.Markets
	}

	markets := make([]domain.MarketDescriptor, 0, len(raws))
	for i, raw := range raws {
		if raw.ID == "" {
			return nil, &FormatError{Endpoint: EndpointMarkets, Reason: fmt.Sprintf("entry %d missing id", i)}
		}

		base := assetCode(raw.Base, raw.BaseDenom)
		quote := assetCode(raw.Quote, raw.QuoteDenom)

		symbol := ""
		switch {
		case base != "" && quote != "":
			symbol = base + "/" + quote
		case strings.Contains(raw.Ticker, "/"):
			symbol = strings.ToUpper(raw.Ticker)
			parts := strings.SplitN(symbol, "/", 2)
			base, quote = parts[0], parts[1]
		default:
			return nil, &FormatError{Endpoint: EndpointMarkets, Reason: fmt.Sprintf("entry %d (%s) has no resolvable pair", i, raw.ID)}
		}

		markets = append(markets, domain.MarketDescriptor{
			ID:     string(raw.ID),
			Symbol: symbol,
			Base:   base,
			Quote:  quote,
		})
	}
	return markets, nil
}

// assetCode resolves an asset code, preferring explicit display
// metadata and falling back to the last path segment of the raw
// denomination string (e.g. "ibc/27394.../uatom" -> "UATOM").
func assetCode(meta *rawAssetMeta, denom string) string {
	if meta != nil && meta.Symbol != "" {
		return strings.ToUpper(meta.Symbol)
	}
	if denom == "" {
		return ""
	}
	segments := strings.Split(denom, "/")
	return strings.ToUpper(segments[len(segments)-1])
}

// parseOrderBook decodes an order book under either side-naming
// convention and returns a snapshot with bids sorted descending and
// asks ascending by price, regardless of input order. The timestamp is
// resolved here, before the snapshot is cached and shared: snapshots
// must not be written to after they leave the parser.
func parseOrderBook(marketID string) func([]byte) (any, error) {
	return func(body []byte) (any, error) {
		var raw rawOrderBook
		if err := json.Unmarshal(body, &raw); err != nil {
			return nil, &FormatError{Endpoint: EndpointOrderBook, Reason: fmt.Sprintf("undecodable book: %v", err)}
		}

		rawBids := raw.Bids
		if len(rawBids) == 0 {
			rawBids = raw.Buys
		}
		rawAsks := raw.Asks
		if len(rawAsks) == 0 {
			rawAsks = raw.Sells
		}

		bids, err := normalizeLevels(rawBids, "bid")
		if err != nil {
			return nil, err
		}
		asks, err := normalizeLevels(rawAsks, "ask")
		if err != nil {
			return nil, err
		}

		sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
		sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

		ts := time.Now().UTC()
		if raw.Timestamp != nil {
			ts = raw.Timestamp.time()
		}
		return &domain.OrderBookSnapshot{
			MarketID:  marketID,
			Bids:      bids,
			Asks:      asks,
			Timestamp: ts,
		}, nil
	}
}

func normalizeLevels(raws []rawLevel, side string) ([]domain.PriceLevel, error) {
	levels := make([]domain.PriceLevel, 0, len(raws))
	for i, raw := range raws {
		if raw.Price == nil {
			return nil, &FormatError{Endpoint: EndpointOrderBook, Reason: fmt.Sprintf("%s level %d missing price", side, i)}
		}
		size := raw.Size
		if size == nil {
			size = raw.Quantity
		}
		if size == nil {
			return nil, &FormatError{Endpoint: EndpointOrderBook, Reason: fmt.Sprintf("%s level %d missing size", side, i)}
		}
		if *raw.Price < 0 || *size < 0 {
			return nil, &FormatError{Endpoint: EndpointOrderBook, Reason: fmt.Sprintf("%s level %d has negative price or size", side, i)}
		}
		levels = append(levels, domain.PriceLevel{Price: float64(*raw.Price), Size: float64(*size)})
	}
	return levels, nil
}

// parseTrades decodes a trade list, validates prices and sizes are
// positive, and returns trades sorted ascending by timestamp.
func parseTrades(body []byte) (any, error) {
	var raws []rawTrade
	if err := json.Unmarshal(body, &raws); err != nil {
		var envelope struct {
			Trades []rawTrade `json:"trades"`
		}
		if err := json.Unmarshal(body, &envelope); err != nil {
			return nil, &FormatError{Endpoint: EndpointTrades, Reason: fmt.Sprintf("undecodable trades: %v", err)}
		}
		raws = envelope.Trades
	}

	trades := make([]domain.Trade, 0, len(raws))
	for i, raw := range raws {
		if raw.Price == nil {
			return nil, &FormatError{Endpoint: EndpointTrades, Reason: fmt.Sprintf("trade %d missing price", i)}
		}
		size := raw.Size
		if size == nil {
			size = raw.Quantity
		}
		if size == nil {
			return nil, &FormatError{Endpoint: EndpointTrades, Reason: fmt.Sprintf("trade %d missing size", i)}
		}
		if *raw.Price <= 0 || *size <= 0 {
			return nil, &FormatError{Endpoint: EndpointTrades, Reason: fmt.Sprintf("trade %d has non-positive price or size", i)}
		}

		ts := raw.Time
		if ts == nil {
			ts = raw.AltTime
		}
		if ts == nil {
			return nil, &FormatError{Endpoint: EndpointTrades, Reason: fmt.Sprintf("trade %d missing timestamp", i)}
		}

		trades = append(trades, domain.Trade{
			Price:     float64(*raw.Price),
			Size:      float64(*size),
			Timestamp: ts.time(),
		})
	}

	sort.Slice(trades, func(i, j int) bool { return trades[i].Timestamp.Before(trades[j].Timestamp) })
	return trades, nil
}
