package optionchain

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2020, 3, 2, 0, 0, 0, 0, time.UTC)

type lineSpec struct {
	underlying string
	quoteTime  string
	root       string
	expiration string
	strike     string
	kind       string
	bid        string
	ask        string
	underBid   string
	iv         string
	delta      string
	gamma      string
	theta      string
	vega       string
	rho        string
	oi         string
	dropOI     bool
}

func defaultLineSpec() lineSpec {
	return lineSpec{
		underlying: "^SPX",
		quoteTime:  "2020-03-02 10:00:00",
		root:       "SPX",
		expiration: "2020-03-20",
		strike:     "2900.000",
		kind:       "P",
		bid:        "10.00",
		ask:        "10.40",
		underBid:   "3000.00",
		iv:         "0.2500",
		delta:      "-0.3000",
		gamma:      "0.0010",
		theta:      "-1.0000",
		vega:       "2.0000",
		rho:        "-0.5000",
		oi:         "100",
	}
}

func (s lineSpec) String() string {
	cols := []string{
		s.underlying, s.quoteTime, s.root, s.expiration, s.strike, s.kind,
		"0", "0", "0", "0", "0", "10", s.bid, "10", s.ask,
		s.underBid, s.underBid, s.underBid, s.underBid,
		s.iv, s.delta, s.gamma, s.theta, s.vega, s.rho,
	}
	if !s.dropOI {
		cols = append(cols, s.oi)
	}
	return strings.Join(cols, ",")
}

func quoteLine(mods ...func(*lineSpec)) string {
	s := defaultLineSpec()
	for _, m := range mods {
		m(&s)
	}
	return s.String()
}

func dayCSV(lines ...string) string {
	return ExpectedHeader + "\n" + strings.Join(lines, "\n") + "\n"
}

func writeZip(t *testing.T, dir, name string, entries ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for i, content := range entries {
		w, err := zw.Create(strings.TrimSuffix(name, ".zip") + strings.Repeat("_", i) + ".csv")
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
	return path
}

// fakePricer returns fixed outputs and records how it was called.
type fakePricer struct {
	mu    sync.Mutex
	iv    float64
	delta float64
	calls int
	lastT float64
}

func (p *fakePricer) ImpliedVolatility(price, spot, strike, t, r, q float64, kind OptionKind) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	p.lastT = t
	return p.iv
}

func (p *fakePricer) Delta(spot, strike, t, r, vol, q float64, kind OptionKind) float64 {
	return p.delta
}

func (p *fakePricer) Gamma(spot, strike, t, r, vol, q float64, kind OptionKind) float64 {
	return 0.002
}

func (p *fakePricer) Theta(spot, strike, t, r, vol, q float64, kind OptionKind) float64 {
	return -0.8
}

func (p *fakePricer) Vega(spot, strike, t, r, vol, q float64, kind OptionKind) float64 {
	return 1.5
}

func (p *fakePricer) Rho(spot, strike, t, r, vol, q float64, kind OptionKind) float64 {
	if math.IsNaN(p.delta) {
		return math.NaN()
	}
	return -0.3
}

func (p *fakePricer) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// memorySink keeps every saved quote.
type memorySink struct {
	mu     sync.Mutex
	quotes []*Quote
	err    error
}

func (s *memorySink) SaveQuote(_ context.Context, q *Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.quotes = append(s.quotes, q)
	return nil
}

func (s *memorySink) Close() error { return nil }

func (s *memorySink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.quotes)
}

func putQuote(strike, deltaScaled int) *Quote {
	return &Quote{
		QuoteTime:   time.Date(2020, 3, 2, 10, 0, 0, 0, time.UTC),
		Expiration:  time.Date(2020, 3, 20, 0, 0, 0, 0, time.UTC),
		Root:        ROOT_SPX,
		Kind:        PUT,
		Strike:      strike,
		DeltaScaled: deltaScaled,
	}
}

func callQuote(strike, deltaScaled int) *Quote {
	q := putQuote(strike, deltaScaled)
	q.Kind = CALL
	return q
}
