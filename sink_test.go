package optionchain

import (
	"bytes"
	"context"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func storedQuote() *Quote {
	q := putQuote(2900, -3000)
	q.Underlying = "^SPX"
	q.Bid, q.Ask, q.Mid = 10, 10.4, 10.2
	q.UnderlyingPrice = 3000
	q.Dte = 18
	q.Iv = 0.25
	q.Greeks = QuoteGreeks{Delta: -0.3, Gamma: 0.001, Theta: -1, Vega: 2, Rho: -0.5}
	q.Source = GREEKS_VENDOR
	return q
}

func TestJSONLSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLWriterSink(&buf)

	nan := storedQuote()
	nan.Strike = 2925
	nan.Iv = math.NaN()
	nan.Greeks.Delta = math.NaN()
	nan.markNaN()

	require.NoError(t, s.SaveQuote(context.Background(), storedQuote()))
	require.NoError(t, s.SaveQuote(context.Background(), nan))
	require.NoError(t, s.Close())

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first quoteRecord
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "2020-03-02T10:00:00Z", first.QuoteTime)
	assert.Equal(t, "2020-03-20", first.Expiration)
	assert.Equal(t, 2900, first.Strike)
	assert.Equal(t, "P", first.Kind)
	require.NotNil(t, first.Iv)
	assert.Equal(t, 0.25, *first.Iv)
	assert.False(t, first.NaN)

	assert.Contains(t, lines[1], `"iv":null`)
	assert.Contains(t, lines[1], `"delta":null`)
	assert.Contains(t, lines[1], `"nan":true`)
	assert.Contains(t, lines[1], `"delta_scaled":-10000`)
}

func TestSqliteSink(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSqliteSink(filepath.Join(t.TempDir(), "db", "quotes.db"))
	require.NoError(t, err)
	defer s.Close()

	q := storedQuote()
	require.NoError(t, s.SaveQuote(ctx, q))
	require.NoError(t, s.SaveQuote(ctx, q), "a second insert is ignored")

	other := storedQuote()
	other.Strike = 2925
	other.Iv = math.Inf(1)
	require.NoError(t, s.SaveQuotes(ctx, []*Quote{q, other}))

	n, err := s.CountQuotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var iv *float64
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT iv FROM option_quotes WHERE strike = 2925`).Scan(&iv))
	assert.Nil(t, iv, "non finite values are stored as NULL")

	var quoteTime string
	require.NoError(t, s.db.QueryRowContext(ctx, `SELECT quote_time FROM option_quotes WHERE strike = 2900`).Scan(&quoteTime))
	assert.Equal(t, "2020-03-02 10:00:00", quoteTime)
}

func TestNewSink(t *testing.T) {
	ctx := context.Background()

	s, err := NewSink(ctx, SinkConfig{})
	require.NoError(t, err)
	assert.IsType(t, NopSink{}, s)

	s, err = NewSink(ctx, SinkConfig{Kind: SINK_JSONL, JSONLPath: filepath.Join(t.TempDir(), "q.jsonl")})
	require.NoError(t, err)
	assert.IsType(t, &JSONLSink{}, s)
	assert.NoError(t, s.Close())

	_, err = NewSink(ctx, SinkConfig{Kind: "kafka"})
	assert.ErrorIs(t, err, ErrorUnknownSinkKind)
}

func TestInsertQuoteSQL(t *testing.T) {
	pg := insertQuoteSQL("option_quotes", postgresPlaceholder)
	assert.True(t, strings.HasPrefix(pg, `INSERT INTO "option_quotes" (underlying, quote_time,`))
	assert.Contains(t, pg, "$1, $2,")
	assert.Contains(t, pg, "$23)")
	assert.True(t, strings.HasSuffix(pg, "ON CONFLICT DO NOTHING"))

	lite := insertQuoteSQL("option_quotes", sqlitePlaceholder)
	assert.Equal(t, quoteColumnCount, strings.Count(lite, "?"))
	assert.Len(t, quoteRow(storedQuote()), quoteColumnCount)
	assert.Equal(t, quoteColumnCount, len(strings.Split(quoteColumns, ",")))

	assert.Nil(t, nullable(math.NaN()))
	assert.Nil(t, nullable(math.Inf(-1)))
	assert.Equal(t, 1.5, *nullable(1.5))
}
