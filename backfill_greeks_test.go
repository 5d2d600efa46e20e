package optionchain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parsedQuote(t *testing.T, mods ...func(*lineSpec)) *Quote {
	t.Helper()
	q, err := newTestParser(t).Parse(quoteLine(mods...), 2)
	require.NoError(t, err)
	return q
}

func newTestBackfiller(t *testing.T, pricer Pricer, mods ...func(*LoaderConfig)) *GreeksBackfiller {
	t.Helper()
	config := DefaultLoaderConfig()
	for _, m := range mods {
		m(&config)
	}
	b, err := NewGreeksBackfiller(config, pricer, ConstantRate(0.02), ConstantDividend(0.018))
	require.NoError(t, err)
	return b
}

func noVendorGreeks(s *lineSpec) {
	s.iv, s.delta, s.gamma, s.theta, s.vega, s.rho = "0", "0", "0", "0", "0", "0"
}

func TestGreeksBackfill(t *testing.T) {
	t.Run("requires a pricer", func(t *testing.T) {
		_, err := NewGreeksBackfiller(DefaultLoaderConfig(), nil, nil, nil)
		assert.ErrorIs(t, err, ErrorPricerNotProvided)
	})

	t.Run("zero mid never reaches the pricer", func(t *testing.T) {
		pricer := &fakePricer{iv: 0.3, delta: -0.4}
		q := parsedQuote(t, func(s *lineSpec) { s.bid, s.ask = "0.00", "0.00" })

		require.NoError(t, newTestBackfiller(t, pricer).Backfill(q))
		assert.Zero(t, pricer.Calls())
		assert.Zero(t, q.Iv)
		assert.Equal(t, QuoteGreeks{}, q.Greeks)
		assert.Equal(t, GREEKS_ZERO_MID, q.Source)
		assert.Equal(t, MinDeltaScaled, q.DeltaScaled)
	})

	t.Run("keeps sane vendor greeks", func(t *testing.T) {
		pricer := &fakePricer{iv: 0.3, delta: -0.4}
		q := parsedQuote(t)

		require.NoError(t, newTestBackfiller(t, pricer).Backfill(q))
		assert.Zero(t, pricer.Calls())
		assert.Equal(t, GREEKS_VENDOR, q.Source)
		assert.InDelta(t, 0.25, q.Iv, 1e-12)
		assert.InDelta(t, -0.3, q.Greeks.Delta, 1e-12)
		assert.Equal(t, -3000, q.DeltaScaled)
		assert.InDelta(t, 0.02, q.RiskFreeRate, 1e-12)
		assert.InDelta(t, 0.018, q.DividendYield, 1e-12)
	})

	t.Run("vendor delta of magnitude one is a record error", func(t *testing.T) {
		q := parsedQuote(t, func(s *lineSpec) { s.delta = "-1.0000" })
		err := newTestBackfiller(t, &fakePricer{}).Backfill(q)
		assert.True(t, IsRecordError(err), "got %v", err)
	})

	t.Run("negative vendor volatility is a record error", func(t *testing.T) {
		q := parsedQuote(t, func(s *lineSpec) { s.iv = "-0.1" })
		err := newTestBackfiller(t, &fakePricer{}).Backfill(q)
		assert.True(t, IsRecordError(err), "got %v", err)
	})

	t.Run("recomputes when the vendor has no greeks", func(t *testing.T) {
		pricer := &fakePricer{iv: 0.31, delta: -0.45}
		q := parsedQuote(t, noVendorGreeks)

		require.NoError(t, newTestBackfiller(t, pricer).Backfill(q))
		assert.Equal(t, 1, pricer.Calls())
		assert.Equal(t, GREEKS_COMPUTED, q.Source)
		assert.InDelta(t, 0.31, q.Iv, 1e-12)
		assert.Equal(t, QuoteGreeks{Delta: -0.45, Gamma: 0.002, Theta: -0.8, Vega: 1.5, Rho: -0.3}, q.Greeks)
		assert.Equal(t, -4500, q.DeltaScaled)
		assert.InDelta(t, 18.0/365, pricer.lastT, 1e-12)
	})

	t.Run("same day expiry uses the session time left", func(t *testing.T) {
		pricer := &fakePricer{iv: 0.2, delta: -0.1}
		q := parsedQuote(t, func(s *lineSpec) {
			s.quoteTime = "2020-03-02 15:00:00"
			s.expiration = "2020-03-02"
		})
		require.Equal(t, 0, q.Dte)

		require.NoError(t, newTestBackfiller(t, pricer).Backfill(q))
		assert.Equal(t, 1, pricer.Calls(), "vendor greeks are not trusted at zero dte")
		assert.InDelta(t, (60.0/390)/365, pricer.lastT, 1e-12)
	})

	t.Run("positive infinite volatility becomes the epsilon", func(t *testing.T) {
		q := parsedQuote(t, noVendorGreeks)
		require.NoError(t, newTestBackfiller(t, &fakePricer{iv: math.Inf(1)}).Backfill(q))

		assert.Equal(t, 1e-6, q.Iv)
		assert.Equal(t, QuoteGreeks{}, q.Greeks)
		assert.Equal(t, GREEKS_DEGENERATE, q.Source)
		assert.Zero(t, q.DeltaScaled)
	})

	t.Run("negative infinite volatility becomes the negative epsilon", func(t *testing.T) {
		q := parsedQuote(t, noVendorGreeks)
		require.NoError(t, newTestBackfiller(t, &fakePricer{iv: math.Inf(-1)}).Backfill(q))
		assert.Equal(t, -1e-6, q.Iv)
		assert.Equal(t, QuoteGreeks{}, q.Greeks)
	})

	t.Run("NaN volatility is kept and flagged", func(t *testing.T) {
		q := parsedQuote(t, noVendorGreeks)
		require.NoError(t, newTestBackfiller(t, &fakePricer{iv: math.NaN()}).Backfill(q))

		assert.True(t, q.HasFlag(FlagNaN))
		assert.True(t, math.IsNaN(q.Iv))
		assert.True(t, math.IsNaN(q.Greeks.Delta))
		assert.Equal(t, GREEKS_NAN, q.Source)
		assert.Equal(t, MinDeltaScaled, q.DeltaScaled)
	})

	t.Run("NaN greek is flagged", func(t *testing.T) {
		q := parsedQuote(t, noVendorGreeks)
		require.NoError(t, newTestBackfiller(t, &fakePricer{iv: 0.2, delta: math.NaN()}).Backfill(q))
		assert.True(t, q.HasFlag(FlagNaN))
		assert.Equal(t, GREEKS_NAN, q.Source)
	})

	t.Run("deep in the money skips pricing", func(t *testing.T) {
		pricer := &fakePricer{iv: 0.2, delta: -0.9}
		b := newTestBackfiller(t, pricer, func(c *LoaderConfig) { c.DeepITMPoints = 100 })

		put := parsedQuote(t, func(s *lineSpec) { s.strike = "3150" })
		require.NoError(t, b.Backfill(put))
		assert.Equal(t, GREEKS_DEEP_ITM, put.Source)
		assert.Equal(t, -1.0, put.Greeks.Delta)
		assert.Equal(t, MinDeltaScaled, put.DeltaScaled)

		call := parsedQuote(t, func(s *lineSpec) { s.kind = "C"; s.strike = "2850" })
		require.NoError(t, b.Backfill(call))
		assert.Equal(t, 1.0, call.Greeks.Delta)
		assert.Equal(t, MaxDeltaScaled, call.DeltaScaled)

		near := parsedQuote(t, func(s *lineSpec) { s.strike = "3050" })
		require.NoError(t, b.Backfill(near))
		assert.Equal(t, GREEKS_VENDOR, near.Source)
		assert.Zero(t, pricer.Calls())
	})

	t.Run("running twice gives the same sensitivities", func(t *testing.T) {
		b := newTestBackfiller(t, NewBlackScholesPricer())
		for _, mod := range []func(*lineSpec){
			noVendorGreeks,
			func(s *lineSpec) {},
			func(s *lineSpec) { noVendorGreeks(s); s.kind = "C"; s.strike = "3100" },
			func(s *lineSpec) { s.bid, s.ask = "0", "0" },
		} {
			q := parsedQuote(t, mod)
			require.NoError(t, b.Backfill(q))
			first := *q
			require.NoError(t, b.Backfill(q))
			assert.Equal(t, first.Iv, q.Iv)
			assert.Equal(t, first.Greeks, q.Greeks)
			assert.Equal(t, first.DeltaScaled, q.DeltaScaled)
			assert.Equal(t, first.Source, q.Source)
		}
	})

	t.Run("black scholes recomputation lands in range", func(t *testing.T) {
		q := parsedQuote(t, noVendorGreeks)
		require.NoError(t, newTestBackfiller(t, NewBlackScholesPricer()).Backfill(q))
		assert.Equal(t, GREEKS_COMPUTED, q.Source)
		assert.Greater(t, q.Iv, 0.0)
		assert.Less(t, q.Greeks.Delta, 0.0)
		assert.Greater(t, q.Greeks.Delta, -1.0)
		assert.Less(t, q.DeltaScaled, 0)
		assert.Greater(t, q.DeltaScaled, MinDeltaScaled)
	})
}

func TestScaleDelta(t *testing.T) {
	cases := []struct {
		delta float64
		want  int
	}{
		{-0.3, -3000},
		{0.3, 3000},
		{-0.30009, -3000},
		{0.12345, 1234},
		{-0.99999, -9999},
		{0, 0},
		{1, 10000},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, scaleDelta(tc.delta), "delta %v", tc.delta)
	}
}

func TestSessionRemainingFraction(t *testing.T) {
	s := DefaultLoaderConfig().Session
	at := func(clock string) time.Time {
		v, _ := time.Parse(quoteTimeLayout, "2020-03-02 "+clock)
		return v
	}
	assert.InDelta(t, 1.0, s.remainingFraction(at("09:30:00")), 1e-12)
	assert.InDelta(t, 1.0, s.remainingFraction(at("08:00:00")), 1e-12)
	assert.InDelta(t, 0.5, s.remainingFraction(at("12:45:00")), 1e-12)
	assert.InDelta(t, 1.0/390, s.remainingFraction(at("16:00:00")), 1e-12)
}
