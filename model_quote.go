package optionchain

import "time"

type QuoteGreeks struct {
	Vega  float64 `json:"vega"`
	Theta float64 `json:"theta"`
	Rho   float64 `json:"rho"`
	Gamma float64 `json:"gamma"`
	Delta float64 `json:"delta"`
}

// VendorGreeks holds the sensitivities as they appear in the vendor record,
// before Backfill decides whether to keep them.
type VendorGreeks struct {
	Iv float64 `json:"iv"`
	QuoteGreeks
}

type Quote struct {
	Line            int          `json:"line"`
	Underlying      string       `json:"underlying"`
	Root            Root         `json:"root"`
	QuoteTime       time.Time    `json:"quote_time"`
	Expiration      time.Time    `json:"expiration"`
	Strike          int          `json:"strike"`
	Kind            OptionKind   `json:"kind"`
	Bid             float64      `json:"bid"`
	Ask             float64      `json:"ask"`
	Mid             float64      `json:"mid"`
	UnderlyingPrice float64      `json:"underlying_price"`
	Dte             int          `json:"dte"`
	RiskFreeRate    float64      `json:"risk_free_rate"`
	DividendYield   float64      `json:"dividend_yield"`
	Iv              float64      `json:"iv"`
	Greeks          QuoteGreeks  `json:"greeks"`
	DeltaScaled     int          `json:"delta_scaled"`
	OpenInterest    int64        `json:"open_interest"`
	Source          GreeksSource `json:"source"`
	Flags           QuoteFlag    `json:"flags"`
	Vendor          VendorGreeks `json:"-"`

	raw string
}

func (q *Quote) HasFlag(f QuoteFlag) bool {
	return q.Flags&f != 0
}

func (q *Quote) GroupKey() GroupKey {
	return GroupKey{QuoteTime: q.QuoteTime, Expiration: q.Expiration, Kind: q.Kind}
}

func (q *Quote) onSentinel() bool {
	return q.DeltaScaled == q.Kind.Sentinel()
}

// zeroSensitivities marks a quote that has no price to invert.
func (q *Quote) zeroSensitivities(source GreeksSource) {
	q.Iv = 0
	q.Greeks = QuoteGreeks{}
	q.DeltaScaled = q.Kind.Sentinel()
	q.Source = source
}
