package model

// ImpressionFile matches the JSON shape of an impression dataset file.
//
// Example:
//
//	{
//	  "impressions": [ ... ]
//	}
type ImpressionFile struct {
	Impressions []Impression `json:"impressions"`
}

// Impression is one opportunity to bid: an auction with a floor price and
// contextual features. Impressions are immutable once produced and are
// consumed read-only, in sequence order.
type Impression struct {
	// Sequence is the position of the impression in the replay stream.
	// It doubles as the ordering key for Run Results.
	Sequence int `json:"sequence"`

	// Timestamp is unix seconds.
	Timestamp int64 `json:"timestamp"`

	// FloorPrice is the minimum clearing bid, in account currency.
	FloorPrice float64 `json:"floor_price"`

	// Features are contextual attributes (platform, geo, placement, ...).
	Features map[string]string `json:"features,omitempty"`

	// Conversion marks impressions that would convert if won.
	Conversion bool `json:"is_conversion"`
}
