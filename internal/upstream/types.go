package upstream

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// The upstream API is loosely specified: identifiers arrive as strings
// or numbers, prices and sizes as numbers or numeric strings, and
// timestamps as ISO-8601 text or epoch milliseconds. The flex types
// below absorb those variations at decode time so the rest of the
// client only sees canonical values.

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	return fmt.Errorf("value %s is neither string nor number", string(data))
}

// flexFloat accepts a JSON number or a numeric string. A non-numeric
// string is a decode error, surfaced as a FormatError by the parsers.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("value %s is neither number nor string", string(data))
	}
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("non-numeric value %q", s)
	}
	*f = flexFloat(parsed)
	return nil
}

// flexTime accepts an RFC3339 string or an epoch-millisecond number.
type flexTime time.Time

func (f *flexTime) UnmarshalJSON(data []byte) error {
	var millis int64
	if err := json.Unmarshal(data, &millis); err == nil {
		*f = flexTime(time.UnixMilli(millis).UTC())
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp %s is neither epoch millis nor string", string(data))
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("unparseable timestamp %q", s)
	}
	*f = flexTime(parsed.UTC())
	return nil
}

func (f flexTime) time() time.Time { return time.Time(f) }

// rawAssetMeta is the optional display metadata block attached to a
// market's base or quote asset.
type rawAssetMeta struct {
	Symbol string `json:"symbol"`
}

// rawMarket is one entry of the upstream market listing.
type rawMarket struct {
	ID         flexString    `json:"id"`
	Ticker     string        `json:"ticker"`
	BaseDenom  string        `json:"base_denom"`
	QuoteDenom string        `json:"quote_denom"`
	Base       *rawAssetMeta `json:"base"`
	Quote      *rawAssetMeta `json:"quote"`
}

// rawLevel is one order book level. Size arrives under either "size"
// or "quantity" depending on the endpoint variant serving the request.
type rawLevel struct {
	Price    *flexFloat `json:"price"`
	Size     *flexFloat `json:"size"`
	Quantity *flexFloat `json:"quantity"`
}

// rawOrderBook carries both observed side-naming conventions.
type rawOrderBook struct {
	Bids      []rawLevel `json:"bids"`
	Asks      []rawLevel `json:"asks"`
	Buys      []rawLevel `json:"buys"`
	Sells     []rawLevel `json:"sells"`
	Timestamp *flexTime  `json:"timestamp"`
}

// rawTrade is one executed trade entry.
type rawTrade struct {
	Price    *flexFloat `json:"price"`
	Size     *flexFloat `json:"size"`
	Quantity *flexFloat `json:"quantity"`
	Time     *flexTime  `json:"timestamp"`
	AltTime  *flexTime  `json:"time"`
}
