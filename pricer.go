package optionchain

import (
	"time"

	"github.com/Hongssd/optionchain/bsm"
)

// Pricer is the numeric option-pricing primitive Backfill inverts prices
// with. Implementations must be pure; they may return ±Inf or NaN.
type Pricer interface {
	ImpliedVolatility(price, spot, strike, t, r, q float64, kind OptionKind) float64
	Delta(spot, strike, t, r, vol, q float64, kind OptionKind) float64
	Gamma(spot, strike, t, r, vol, q float64, kind OptionKind) float64
	Theta(spot, strike, t, r, vol, q float64, kind OptionKind) float64
	Vega(spot, strike, t, r, vol, q float64, kind OptionKind) float64
	Rho(spot, strike, t, r, vol, q float64, kind OptionKind) float64
}

// RateSource returns the annualized risk-free rate, as a fraction, for a
// quote date and horizon.
type RateSource interface {
	RiskFreeRate(date time.Time, dte int) float64
}

// DividendSource returns the annualized dividend yield, as a fraction.
type DividendSource interface {
	DividendYield(date time.Time) float64
}

type ConstantRate float64

func (c ConstantRate) RiskFreeRate(time.Time, int) float64 {
	return float64(c)
}

type ConstantDividend float64

func (c ConstantDividend) DividendYield(time.Time) float64 {
	return float64(c)
}

type BlackScholesPricer struct{}

func NewBlackScholesPricer() *BlackScholesPricer {
	return &BlackScholesPricer{}
}

func bsmType(kind OptionKind) bsm.OptionType {
	if kind == CALL {
		return bsm.Call
	}
	return bsm.Put
}

func (BlackScholesPricer) ImpliedVolatility(price, spot, strike, t, r, q float64, kind OptionKind) float64 {
	return bsm.ImpliedVolatility(price, spot, strike, t, r, q, bsmType(kind))
}

func (BlackScholesPricer) Delta(spot, strike, t, r, vol, q float64, kind OptionKind) float64 {
	return bsm.Delta(spot, strike, t, r, vol, q, bsmType(kind))
}

func (BlackScholesPricer) Gamma(spot, strike, t, r, vol, q float64, kind OptionKind) float64 {
	return bsm.Gamma(spot, strike, t, r, vol, q, bsmType(kind))
}

func (BlackScholesPricer) Theta(spot, strike, t, r, vol, q float64, kind OptionKind) float64 {
	return bsm.Theta(spot, strike, t, r, vol, q, bsmType(kind))
}

func (BlackScholesPricer) Vega(spot, strike, t, r, vol, q float64, kind OptionKind) float64 {
	return bsm.Vega(spot, strike, t, r, vol, q, bsmType(kind))
}

func (BlackScholesPricer) Rho(spot, strike, t, r, vol, q float64, kind OptionKind) float64 {
	return bsm.Rho(spot, strike, t, r, vol, q, bsmType(kind))
}
