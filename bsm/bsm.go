// Package bsm prices European options under Black-Scholes-Merton with a
// continuous dividend yield and inverts prices to implied volatility.
//
// Greeks are in the units CBOE publishes: theta per calendar day, vega per
// volatility point and rho per rate point.
package bsm

import "math"

type OptionType int

const (
	Put OptionType = iota
	Call
)

const (
	maxIterations = 100
	maxVol        = 64.0
	priceTol      = 1e-12
	volTol        = 1e-12
)

func normCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

func d1d2(s, k, t, r, vol, q float64) (float64, float64) {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r-q+0.5*vol*vol)*t) / (vol * sqrtT)
	return d1, d1 - vol*sqrtT
}

func degenerate(s, k, t, vol float64) bool {
	return t <= 0 || vol <= 0 || s <= 0 || k <= 0
}

// Price returns the option value. A zero volatility gives the discounted
// forward intrinsic value.
func Price(s, k, t, r, vol, q float64, typ OptionType) float64 {
	if t <= 0 {
		if typ == Call {
			return math.Max(0, s-k)
		}
		return math.Max(0, k-s)
	}
	dfR := math.Exp(-r * t)
	dfQ := math.Exp(-q * t)
	if vol <= 0 || s <= 0 || k <= 0 {
		if typ == Call {
			return math.Max(0, s*dfQ-k*dfR)
		}
		return math.Max(0, k*dfR-s*dfQ)
	}
	d1, d2 := d1d2(s, k, t, r, vol, q)
	if typ == Call {
		return s*dfQ*normCDF(d1) - k*dfR*normCDF(d2)
	}
	return k*dfR*normCDF(-d2) - s*dfQ*normCDF(-d1)
}

// bounds are the no-arbitrage limits of the option value.
func bounds(s, k, t, r, q float64, typ OptionType) (float64, float64) {
	dfR := math.Exp(-r * t)
	dfQ := math.Exp(-q * t)
	if typ == Call {
		return math.Max(0, s*dfQ-k*dfR), s * dfQ
	}
	return math.Max(0, k*dfR-s*dfQ), k * dfR
}

// ImpliedVolatility inverts Price. It returns -Inf for a price below the
// lower arbitrage bound, +Inf for one at or above the upper bound and NaN
// when the inputs cannot be priced.
func ImpliedVolatility(price, s, k, t, r, q float64, typ OptionType) float64 {
	if math.IsNaN(price) || t <= 0 || s <= 0 || k <= 0 {
		return math.NaN()
	}
	lower, upper := bounds(s, k, t, r, q, typ)
	switch {
	case price < lower:
		return math.Inf(-1)
	case price >= upper:
		return math.Inf(1)
	case price == lower:
		return 0
	}

	lo, hi := 0.0, 1.0
	for Price(s, k, t, r, hi, q, typ) < price {
		if hi >= maxVol {
			return math.Inf(1)
		}
		hi *= 2
	}

	vol := math.Sqrt(2 * math.Abs(math.Log(s/k)+(r-q)*t) / t)
	if vol <= lo || vol >= hi || math.IsNaN(vol) {
		vol = 0.5 * (lo + hi)
	}
	for i := 0; i < maxIterations; i++ {
		diff := Price(s, k, t, r, vol, q, typ) - price
		if math.Abs(diff) <= priceTol*math.Max(1, price) {
			return vol
		}
		if diff > 0 {
			hi = vol
		} else {
			lo = vol
		}
		if hi-lo < volTol {
			return 0.5 * (lo + hi)
		}
		next := math.NaN()
		if v := rawVega(s, k, t, r, vol, q); v > 1e-14 {
			next = vol - diff/v
		}
		if math.IsNaN(next) || next <= lo || next >= hi {
			next = 0.5 * (lo + hi)
		}
		vol = next
	}
	return vol
}

func rawVega(s, k, t, r, vol, q float64) float64 {
	if degenerate(s, k, t, vol) {
		return 0
	}
	d1, _ := d1d2(s, k, t, r, vol, q)
	return s * math.Exp(-q*t) * normPDF(d1) * math.Sqrt(t)
}

func Delta(s, k, t, r, vol, q float64, typ OptionType) float64 {
	if degenerate(s, k, t, vol) {
		dfQ := math.Exp(-q * math.Max(t, 0))
		forwardITM := s*dfQ > k*math.Exp(-r*math.Max(t, 0))
		switch {
		case typ == Call && forwardITM:
			return dfQ
		case typ == Put && !forwardITM && s != k:
			return -dfQ
		}
		return 0
	}
	d1, _ := d1d2(s, k, t, r, vol, q)
	if typ == Call {
		return math.Exp(-q*t) * normCDF(d1)
	}
	return -math.Exp(-q*t) * normCDF(-d1)
}

func Gamma(s, k, t, r, vol, q float64, typ OptionType) float64 {
	if degenerate(s, k, t, vol) {
		return 0
	}
	d1, _ := d1d2(s, k, t, r, vol, q)
	return math.Exp(-q*t) * normPDF(d1) / (s * vol * math.Sqrt(t))
}

func Vega(s, k, t, r, vol, q float64, typ OptionType) float64 {
	return rawVega(s, k, t, r, vol, q) / 100
}

func Theta(s, k, t, r, vol, q float64, typ OptionType) float64 {
	if degenerate(s, k, t, vol) {
		return 0
	}
	d1, d2 := d1d2(s, k, t, r, vol, q)
	dfR := math.Exp(-r * t)
	dfQ := math.Exp(-q * t)
	decay := -s * dfQ * normPDF(d1) * vol / (2 * math.Sqrt(t))
	var annual float64
	if typ == Call {
		annual = decay - r*k*dfR*normCDF(d2) + q*s*dfQ*normCDF(d1)
	} else {
		annual = decay + r*k*dfR*normCDF(-d2) - q*s*dfQ*normCDF(-d1)
	}
	return annual / 365
}

func Rho(s, k, t, r, vol, q float64, typ OptionType) float64 {
	if degenerate(s, k, t, vol) {
		return 0
	}
	_, d2 := d1d2(s, k, t, r, vol, q)
	dfR := math.Exp(-r * t)
	if typ == Call {
		return k * t * dfR * normCDF(d2) / 100
	}
	return -k * t * dfR * normCDF(-d2) / 100
}
