package optionchain

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
)

type RatesConfig struct {
	RatesCSV        string  `yaml:"rates_csv" env:"RATES_CSV"`               //FRED国债利率文件
	DividendsCSV    string  `yaml:"dividends_csv" env:"DIVIDENDS_CSV"`       //标普股息率文件
	DefaultRate     float64 `yaml:"default_rate" env:"DEFAULT_RATE"`         //无数据时的利率(小数)
	DefaultDividend float64 `yaml:"default_dividend" env:"DEFAULT_DIVIDEND"` //无数据时的股息率(小数)
}

// Sources builds the rate and dividend lookups. A missing file falls back to
// the configured constant.
func (c RatesConfig) Sources() (RateSource, DividendSource, error) {
	var rates RateSource = ConstantRate(c.DefaultRate)
	var dividends DividendSource = ConstantDividend(c.DefaultDividend)
	if c.RatesCSV != "" {
		t, err := LoadRateTable(c.RatesCSV, c.DefaultRate)
		if err != nil {
			return nil, nil, err
		}
		rates = t
	}
	if c.DividendsCSV != "" {
		t, err := LoadDividendTable(c.DividendsCSV, c.DefaultDividend)
		if err != nil {
			return nil, nil, err
		}
		dividends = t
	}
	return rates, dividends, nil
}

// fredRateRow is one row of the FRED constant-maturity treasury export.
// Values are percent; "." marks a missing observation.
type fredRateRow struct {
	Date   string `csv:"DATE"`
	DGS1MO string `csv:"DGS1MO"`
	DGS3MO string `csv:"DGS3MO"`
	DGS6MO string `csv:"DGS6MO"`
	DGS1   string `csv:"DGS1"`
	DGS2   string `csv:"DGS2"`
}

type ratePoint struct {
	days int
	rate float64
}

// RateTable interpolates the treasury curve of the latest date on or before
// the quote date.
type RateTable struct {
	dates    []time.Time
	curves   [][]ratePoint
	fallback float64
}

func LoadRateTable(path string, fallback float64) (*RateTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rates %s: %w", path, err)
	}
	defer f.Close()
	return ParseRateTable(f, fallback)
}

func ParseRateTable(r io.Reader, fallback float64) (*RateTable, error) {
	var rows []*fredRateRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse rates: %w", err)
	}
	t := &RateTable{fallback: fallback}
	for _, row := range rows {
		date, err := time.Parse(dayLayout, strings.TrimSpace(row.Date))
		if err != nil {
			return nil, fmt.Errorf("parse rates date %q: %w", row.Date, err)
		}
		var curve []ratePoint
		for _, tenor := range []struct {
			days int
			raw  string
		}{{30, row.DGS1MO}, {91, row.DGS3MO}, {182, row.DGS6MO}, {365, row.DGS1}, {730, row.DGS2}} {
			v, ok, err := parsePercent(tenor.raw)
			if err != nil {
				return nil, fmt.Errorf("parse rates on %s: %w", row.Date, err)
			}
			if ok {
				curve = append(curve, ratePoint{days: tenor.days, rate: v})
			}
		}
		if len(curve) == 0 {
			continue
		}
		t.dates = append(t.dates, date)
		t.curves = append(t.curves, curve)
	}
	sortByDate(t.dates, t.curves)
	return t, nil
}

func (t *RateTable) Len() int {
	return len(t.dates)
}

func (t *RateTable) RiskFreeRate(date time.Time, dte int) float64 {
	i := latestOnOrBefore(t.dates, date)
	if i < 0 {
		return t.fallback
	}
	return interpolateCurve(t.curves[i], dte)
}

func interpolateCurve(curve []ratePoint, dte int) float64 {
	if dte <= curve[0].days {
		return curve[0].rate
	}
	for i := 1; i < len(curve); i++ {
		if dte <= curve[i].days {
			lo, hi := curve[i-1], curve[i]
			w := float64(dte-lo.days) / float64(hi.days-lo.days)
			return lo.rate + w*(hi.rate-lo.rate)
		}
	}
	return curve[len(curve)-1].rate
}

type dividendRow struct {
	Date  string `csv:"DATE"`
	Yield string `csv:"YIELD"`
}

// DividendTable returns the S&P 500 yield of the latest date on or before
// the quote date.
type DividendTable struct {
	dates    []time.Time
	yields   []float64
	fallback float64
}

func LoadDividendTable(path string, fallback float64) (*DividendTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dividends %s: %w", path, err)
	}
	defer f.Close()
	return ParseDividendTable(f, fallback)
}

func ParseDividendTable(r io.Reader, fallback float64) (*DividendTable, error) {
	var rows []*dividendRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse dividends: %w", err)
	}
	t := &DividendTable{fallback: fallback}
	for _, row := range rows {
		date, err := time.Parse(dayLayout, strings.TrimSpace(row.Date))
		if err != nil {
			return nil, fmt.Errorf("parse dividends date %q: %w", row.Date, err)
		}
		v, ok, err := parsePercent(row.Yield)
		if err != nil {
			return nil, fmt.Errorf("parse dividends on %s: %w", row.Date, err)
		}
		if !ok {
			continue
		}
		t.dates = append(t.dates, date)
		t.yields = append(t.yields, v)
	}
	sortByDate(t.dates, t.yields)
	return t, nil
}

func (t *DividendTable) Len() int {
	return len(t.dates)
}

func (t *DividendTable) DividendYield(date time.Time) float64 {
	i := latestOnOrBefore(t.dates, date)
	if i < 0 {
		return t.fallback
	}
	return t.yields[i]
}

// parsePercent converts a percent cell to a fraction. Blank and "." are
// missing.
func parsePercent(raw string) (float64, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "." {
		return 0, false, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, err
	}
	return v / 100, true, nil
}

func latestOnOrBefore(dates []time.Time, date time.Time) int {
	date = truncateDay(date)
	return sort.Search(len(dates), func(i int) bool { return dates[i].After(date) }) - 1
}

func sortByDate[V any](dates []time.Time, values []V) {
	idx := make([]int, len(dates))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return dates[idx[a]].Before(dates[idx[b]]) })
	sortedDates := make([]time.Time, len(dates))
	sortedValues := make([]V, len(values))
	for i, j := range idx {
		sortedDates[i], sortedValues[i] = dates[j], values[j]
	}
	copy(dates, sortedDates)
	copy(values, sortedValues)
}
