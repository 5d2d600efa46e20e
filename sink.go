package optionchain

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Sink persists normalized quotes. Each quote is an independent unit that a
// sink must store at most once. Sinks are shared by all day tasks.
type Sink interface {
	SaveQuote(ctx context.Context, q *Quote) error
	Close() error
}

// BatchSink is implemented by sinks that can store a whole day in one go.
type BatchSink interface {
	Sink
	SaveQuotes(ctx context.Context, quotes []*Quote) error
}

type SinkConfig struct {
	Kind       SinkKind       `yaml:"kind" env:"KIND"`
	JSONLPath  string         `yaml:"jsonl_path" env:"JSONL_PATH"`
	SqlitePath string         `yaml:"sqlite_path" env:"SQLITE_PATH"`
	Postgres   PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	Batch      bool           `yaml:"batch" env:"BATCH"` //整天批量写入
}

func NewSink(ctx context.Context, config SinkConfig) (Sink, error) {
	switch config.Kind {
	case "", SINK_NONE:
		return NopSink{}, nil
	case SINK_JSONL:
		return NewJSONLSink(config.JSONLPath)
	case SINK_SQLITE:
		return OpenSqliteSink(config.SqlitePath)
	case SINK_POSTGRES:
		return NewPostgresSink(ctx, config.Postgres)
	default:
		return nil, fmt.Errorf("%w: %q", ErrorUnknownSinkKind, config.Kind)
	}
}

type NopSink struct{}

func (NopSink) SaveQuote(context.Context, *Quote) error { return nil }
func (NopSink) Close() error                            { return nil }

const quoteColumns = "underlying, quote_time, root, expiration, strike, kind, bid, ask, mid, underlying_price, dte, risk_free_rate, dividend_yield, iv, delta, gamma, theta, vega, rho, delta_scaled, open_interest, source, nan_flag"

const quoteColumnCount = 23

// quoteRow flattens q in quoteColumns order. NaN and infinite values become
// NULL so they are never stored as plausible numbers.
func quoteRow(q *Quote) []any {
	return []any{
		q.Underlying,
		q.QuoteTime.UTC(),
		q.Root.String(),
		q.Expiration.UTC(),
		q.Strike,
		q.Kind.String(),
		nullable(q.Bid),
		nullable(q.Ask),
		nullable(q.Mid),
		nullable(q.UnderlyingPrice),
		q.Dte,
		nullable(q.RiskFreeRate),
		nullable(q.DividendYield),
		nullable(q.Iv),
		nullable(q.Greeks.Delta),
		nullable(q.Greeks.Gamma),
		nullable(q.Greeks.Theta),
		nullable(q.Greeks.Vega),
		nullable(q.Greeks.Rho),
		q.DeltaScaled,
		q.OpenInterest,
		q.Source.String(),
		q.HasFlag(FlagNaN),
	}
}

func nullable(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// quoteRecord is the JSON form of a stored quote.
type quoteRecord struct {
	Underlying      string   `json:"underlying"`
	QuoteTime       string   `json:"quote_time"`
	Root            string   `json:"root"`
	Expiration      string   `json:"expiration"`
	Strike          int      `json:"strike"`
	Kind            string   `json:"kind"`
	Bid             *float64 `json:"bid"`
	Ask             *float64 `json:"ask"`
	Mid             *float64 `json:"mid"`
	UnderlyingPrice *float64 `json:"underlying_price"`
	Dte             int      `json:"dte"`
	RiskFreeRate    *float64 `json:"risk_free_rate"`
	DividendYield   *float64 `json:"dividend_yield"`
	Iv              *float64 `json:"iv"`
	Delta           *float64 `json:"delta"`
	Gamma           *float64 `json:"gamma"`
	Theta           *float64 `json:"theta"`
	Vega            *float64 `json:"vega"`
	Rho             *float64 `json:"rho"`
	DeltaScaled     int      `json:"delta_scaled"`
	OpenInterest    int64    `json:"open_interest"`
	Source          string   `json:"source"`
	NaN             bool     `json:"nan"`
}

func newQuoteRecord(q *Quote) quoteRecord {
	return quoteRecord{
		Underlying:      q.Underlying,
		QuoteTime:       q.QuoteTime.UTC().Format(time.RFC3339),
		Root:            q.Root.String(),
		Expiration:      q.Expiration.Format(dayLayout),
		Strike:          q.Strike,
		Kind:            q.Kind.String(),
		Bid:             nullable(q.Bid),
		Ask:             nullable(q.Ask),
		Mid:             nullable(q.Mid),
		UnderlyingPrice: nullable(q.UnderlyingPrice),
		Dte:             q.Dte,
		RiskFreeRate:    nullable(q.RiskFreeRate),
		DividendYield:   nullable(q.DividendYield),
		Iv:              nullable(q.Iv),
		Delta:           nullable(q.Greeks.Delta),
		Gamma:           nullable(q.Greeks.Gamma),
		Theta:           nullable(q.Greeks.Theta),
		Vega:            nullable(q.Greeks.Vega),
		Rho:             nullable(q.Greeks.Rho),
		DeltaScaled:     q.DeltaScaled,
		OpenInterest:    q.OpenInterest,
		Source:          q.Source.String(),
		NaN:             q.HasFlag(FlagNaN),
	}
}
