package optionchain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// QuoteParser turns CBOE interval lines of one trading day into quotes.
// It holds no state between lines.
type QuoteParser struct {
	config   LoaderConfig
	day      time.Time
	cutoff   time.Duration
	allowed  map[Root]bool
	ignored  map[Root]bool
	minUnder decimal.Decimal
}

func NewQuoteParser(config LoaderConfig, day time.Time) (*QuoteParser, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cutoff, err := parseClock(config.MarketCloseCutoff)
	if err != nil {
		return nil, err
	}
	p := &QuoteParser{
		config:   config,
		day:      truncateDay(day),
		cutoff:   cutoff,
		allowed:  map[Root]bool{},
		ignored:  map[Root]bool{},
		minUnder: decimal.NewFromFloat(config.MinUnderlyingPrice),
	}
	for _, r := range config.RootPriority {
		p.allowed[normalizeRoot(r)] = true
	}
	for _, r := range config.IgnoredRoots {
		p.ignored[normalizeRoot(r)] = true
	}
	return p, nil
}

// Parse validates one data line. It returns a *RecordError for a malformed
// record and a *SkipError for a record filtered out by configuration.
func (p *QuoteParser) Parse(line string, lineNo int) (*Quote, error) {
	fields := strings.Split(strings.TrimRight(line, "\r\n"), p.config.Delimiter)
	if len(fields) != int(fieldCount) && len(fields) != int(fieldCount)-1 {
		return nil, &RecordError{
			Line:     lineNo,
			Field:    "columns",
			Expected: fmt.Sprintf("%d or %d columns", fieldCount-1, fieldCount),
			Actual:   strconv.Itoa(len(fields)),
		}
	}
	field := func(f CboeField) string {
		return strings.TrimSpace(fields[f])
	}

	q := &Quote{Line: lineNo, raw: line}

	// 1. underlying
	q.Underlying = field(FieldUnderlyingSymbol)
	if q.Underlying != p.config.Ticker {
		return nil, newRecordError(lineNo, FieldUnderlyingSymbol, p.config.Ticker, q.Underlying, nil)
	}

	// 2. root
	q.Root = normalizeRoot(field(FieldRoot))
	if !p.allowed[q.Root] {
		if p.ignored[q.Root] {
			return nil, newSkip(lineNo, FieldRoot, "root %s is ignored", q.Root)
		}
		return nil, newRecordError(lineNo, FieldRoot, "one of "+strings.Join(p.config.RootPriority, "/"), q.Root.String(), nil)
	}

	// 3. option type
	switch strings.ToUpper(field(FieldOptionType)) {
	case PUT.String():
		q.Kind = PUT
	case CALL.String():
		q.Kind = CALL
	default:
		return nil, newRecordError(lineNo, FieldOptionType, "P or C", field(FieldOptionType), nil)
	}

	// 4. quote time
	quoteTime, err := time.Parse(quoteTimeLayout, field(FieldQuoteDateTime))
	if err != nil {
		return nil, newRecordError(lineNo, FieldQuoteDateTime, quoteTimeLayout, field(FieldQuoteDateTime), err)
	}
	q.QuoteTime = quoteTime
	if !p.day.IsZero() && !truncateDay(quoteTime).Equal(p.day) {
		if p.config.StrictQuoteDate {
			return nil, newRecordError(lineNo, FieldQuoteDateTime, "a time on "+p.day.Format(dayLayout), field(FieldQuoteDateTime), nil)
		}
		q.Flags |= FlagDateMismatch
	}

	// 5. after the close
	if clockOf(quoteTime) > p.cutoff {
		return nil, newSkip(lineNo, FieldQuoteDateTime, "after cutoff %s", p.config.MarketCloseCutoff)
	}

	// 6. calls not wanted
	if p.config.PutsOnly && q.Kind == CALL {
		return nil, newSkip(lineNo, FieldOptionType, "calls excluded")
	}

	// 7. strike
	strike, err := parseDecimalField(field(FieldStrike))
	if err != nil {
		return nil, newRecordError(lineNo, FieldStrike, "a number", field(FieldStrike), err)
	}
	q.Strike = int(strike.Round(0).IntPart())
	if p.config.StrikeMultiple > 0 && q.Strike%p.config.StrikeMultiple != 0 {
		return nil, newSkip(lineNo, FieldStrike, "strike %d off the %d grid", q.Strike, p.config.StrikeMultiple)
	}
	if q.Strike < p.config.MinStrike || q.Strike > p.config.MaxStrike {
		return nil, newSkip(lineNo, FieldStrike, "strike %d outside [%d, %d]", q.Strike, p.config.MinStrike, p.config.MaxStrike)
	}

	// 8. underlying price
	underlying, err := parseDecimalField(field(FieldUnderlyingBid))
	if err != nil {
		return nil, newRecordError(lineNo, FieldUnderlyingBid, "a number", field(FieldUnderlyingBid), err)
	}
	if !underlying.IsPositive() {
		return nil, newRecordError(lineNo, FieldUnderlyingBid, "a positive price", field(FieldUnderlyingBid), nil)
	}
	if underlying.LessThan(p.minUnder) {
		return nil, newRecordError(lineNo, FieldUnderlyingBid, "at least "+p.minUnder.String(), field(FieldUnderlyingBid), nil)
	}
	q.UnderlyingPrice = underlying.InexactFloat64()

	// 9. in the money
	if p.config.ExcludeITM && isInTheMoney(q.Kind, q.Strike, underlying) {
		return nil, newSkip(lineNo, FieldStrike, "strike %d in the money at %s", q.Strike, underlying)
	}

	// 10. expiration
	expiration, err := time.Parse(dayLayout, field(FieldExpiration))
	if err != nil {
		return nil, newRecordError(lineNo, FieldExpiration, dayLayout, field(FieldExpiration), err)
	}
	q.Expiration = expiration
	q.Dte = daysBetween(quoteTime, expiration)
	if q.Dte < 0 {
		return nil, newRecordError(lineNo, FieldExpiration, "on or after the quote date", field(FieldExpiration), nil)
	}
	if q.Dte > p.config.MaxDTE {
		return nil, newSkip(lineNo, FieldExpiration, "dte %d beyond %d", q.Dte, p.config.MaxDTE)
	}

	// 11. bid and ask
	bid, err := parseNonNegative(lineNo, FieldBid, field(FieldBid))
	if err != nil {
		return nil, err
	}
	ask, err := parseNonNegative(lineNo, FieldAsk, field(FieldAsk))
	if err != nil {
		return nil, err
	}
	q.Bid = bid.InexactFloat64()
	q.Ask = ask.InexactFloat64()

	// 12. mid
	mid := bid.Add(ask).Div(decimal.NewFromInt(2))
	q.Mid = mid.InexactFloat64()
	if mid.IsZero() {
		q.zeroSensitivities(GREEKS_ZERO_MID)
	} else if err := p.parseVendorGreeks(q, field); err != nil {
		return nil, err
	}

	// 13. open interest
	if len(fields) > int(FieldOpenInterest) && field(FieldOpenInterest) != "" {
		oi, err := strconv.ParseInt(field(FieldOpenInterest), 10, 64)
		if err != nil {
			return nil, newRecordError(lineNo, FieldOpenInterest, "an integer", field(FieldOpenInterest), err)
		}
		if oi < 0 {
			return nil, newRecordError(lineNo, FieldOpenInterest, "a non-negative integer", field(FieldOpenInterest), nil)
		}
		q.OpenInterest = oi
	}

	return q, nil
}

func (p *QuoteParser) parseVendorGreeks(q *Quote, field func(CboeField) string) error {
	targets := []struct {
		f   CboeField
		dst *float64
	}{
		{FieldImpliedVolatility, &q.Vendor.Iv},
		{FieldDelta, &q.Vendor.Delta},
		{FieldGamma, &q.Vendor.Gamma},
		{FieldTheta, &q.Vendor.Theta},
		{FieldVega, &q.Vendor.Vega},
		{FieldRho, &q.Vendor.Rho},
	}
	for _, t := range targets {
		v, err := parseFloatField(field(t.f))
		if err != nil {
			return newRecordError(q.Line, t.f, "a number", field(t.f), err)
		}
		*t.dst = v
	}
	return nil
}

func parseNonNegative(lineNo int, f CboeField, raw string) (decimal.Decimal, error) {
	d, err := parseDecimalField(raw)
	if err != nil {
		return decimal.Zero, newRecordError(lineNo, f, "a number", raw, err)
	}
	if d.IsNegative() {
		return decimal.Zero, newRecordError(lineNo, f, "a non-negative price", raw, nil)
	}
	return d, nil
}

func isInTheMoney(kind OptionKind, strike int, underlying decimal.Decimal) bool {
	k := decimal.NewFromInt(int64(strike))
	if kind == PUT {
		return k.GreaterThanOrEqual(underlying)
	}
	return k.LessThanOrEqual(underlying)
}

func normalizeRoot(s string) Root {
	return Root(strings.ToUpper(strings.TrimSpace(s)))
}

func truncateDay(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(truncateDay(to).Sub(truncateDay(from)).Hours() / 24)
}
