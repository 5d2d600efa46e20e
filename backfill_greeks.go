package optionchain

import (
	"math"
	"strconv"
)

// GreeksBackfiller keeps vendor sensitivities when they can be trusted and
// recomputes them through a Pricer otherwise.
type GreeksBackfiller struct {
	config    LoaderConfig
	pricer    Pricer
	rates     RateSource
	dividends DividendSource
}

func NewGreeksBackfiller(config LoaderConfig, pricer Pricer, rates RateSource, dividends DividendSource) (*GreeksBackfiller, error) {
	if pricer == nil {
		return nil, ErrorPricerNotProvided
	}
	if rates == nil {
		rates = ConstantRate(0)
	}
	if dividends == nil {
		dividends = ConstantDividend(0)
	}
	return &GreeksBackfiller{
		config:    config.withDefaults(),
		pricer:    pricer,
		rates:     rates,
		dividends: dividends,
	}, nil
}

// Backfill fills IV and Greeks on q. It only reads the quote's market data
// and vendor columns, so running it twice gives the same result. A vendor
// delta outside (-1, 1) comes back as a *RecordError.
func (b *GreeksBackfiller) Backfill(q *Quote) error {
	q.Flags &^= FlagNaN
	if q.Mid == 0 {
		q.zeroSensitivities(GREEKS_ZERO_MID)
		return nil
	}

	date := truncateDay(q.QuoteTime)
	q.RiskFreeRate = b.rates.RiskFreeRate(date, q.Dte)
	q.DividendYield = b.dividends.DividendYield(date)

	if b.isDeepInTheMoney(q) {
		q.Iv = 0
		q.Greeks = QuoteGreeks{Delta: -1}
		if q.Kind == CALL {
			q.Greeks.Delta = 1
		}
		q.DeltaScaled = q.Kind.Sentinel()
		q.Source = GREEKS_DEEP_ITM
		return nil
	}

	v := q.Vendor
	if v.Iv != 0 && v.Delta != 0 && q.Dte > 0 {
		if v.Iv < 0 || math.IsNaN(v.Iv) || math.IsInf(v.Iv, 0) {
			return newRecordError(q.Line, FieldImpliedVolatility, "a positive volatility", formatFloat(v.Iv), nil)
		}
		if !(math.Abs(v.Delta) < 1) {
			return newRecordError(q.Line, FieldDelta, "a delta inside (-1, 1)", formatFloat(v.Delta), nil)
		}
		q.Iv = v.Iv
		q.Greeks = v.QuoteGreeks
		q.DeltaScaled = scaleDelta(v.Delta)
		q.Source = GREEKS_VENDOR
		return nil
	}

	b.recompute(q)
	return nil
}

func (b *GreeksBackfiller) isDeepInTheMoney(q *Quote) bool {
	if b.config.DeepITMPoints <= 0 {
		return false
	}
	underlying := int(q.UnderlyingPrice)
	if q.Kind == CALL {
		return q.Strike < underlying-b.config.DeepITMPoints
	}
	return q.Strike > underlying+b.config.DeepITMPoints
}

// timeToExpiry is in years. A same-day expiration uses the part of the
// trading session still left instead of a whole day.
func (b *GreeksBackfiller) timeToExpiry(q *Quote) float64 {
	if q.Dte == 0 {
		return b.config.Session.remainingFraction(q.QuoteTime) / daysPerYear
	}
	return float64(q.Dte) / daysPerYear
}

func (b *GreeksBackfiller) recompute(q *Quote) {
	s, k := q.UnderlyingPrice, float64(q.Strike)
	t, r, d := b.timeToExpiry(q), q.RiskFreeRate, q.DividendYield

	iv := b.pricer.ImpliedVolatility(q.Mid, s, k, t, r, d, q.Kind)
	switch {
	case math.IsInf(iv, 0):
		q.Iv = math.Copysign(b.config.InfiniteIVEpsilon, iv)
		q.Greeks = QuoteGreeks{}
		q.DeltaScaled = 0
		q.Source = GREEKS_DEGENERATE
		return
	case math.IsNaN(iv):
		q.Iv = math.NaN()
		q.Greeks = QuoteGreeks{Delta: math.NaN(), Gamma: math.NaN(), Theta: math.NaN(), Vega: math.NaN(), Rho: math.NaN()}
		q.markNaN()
		return
	}

	q.Iv = iv
	q.Greeks = QuoteGreeks{
		Delta: b.pricer.Delta(s, k, t, r, iv, d, q.Kind),
		Gamma: b.pricer.Gamma(s, k, t, r, iv, d, q.Kind),
		Theta: b.pricer.Theta(s, k, t, r, iv, d, q.Kind),
		Vega:  b.pricer.Vega(s, k, t, r, iv, d, q.Kind),
		Rho:   b.pricer.Rho(s, k, t, r, iv, d, q.Kind),
	}
	g := q.Greeks
	if math.IsNaN(g.Delta) || math.IsNaN(g.Gamma) || math.IsNaN(g.Theta) || math.IsNaN(g.Vega) || math.IsNaN(g.Rho) {
		q.markNaN()
		return
	}
	q.Greeks.Delta = math.Max(-1, math.Min(1, g.Delta))
	q.DeltaScaled = scaleDelta(q.Greeks.Delta)
	q.Source = GREEKS_COMPUTED
}

func (q *Quote) markNaN() {
	q.Flags |= FlagNaN
	q.DeltaScaled = q.Kind.Sentinel()
	q.Source = GREEKS_NAN
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
