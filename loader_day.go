package optionchain

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const maxLineSize = 1 << 20

// DayStats counts what happened to the records of one day file.
type DayStats struct {
	File             string        `json:"file"`
	Day              time.Time     `json:"day"`
	Read             int           `json:"read"`
	Retained         int           `json:"retained"`
	Filtered         int           `json:"filtered"`
	Errored          int           `json:"errored"`
	Discarded        int           `json:"discarded"`
	DuplicateStrikes int           `json:"duplicate_strikes"`
	Degenerate       int           `json:"degenerate"`
	NaN              int           `json:"nan"`
	DateMismatches   int           `json:"date_mismatches"`
	HeaderMismatch   bool          `json:"header_mismatch"`
	Duration         time.Duration `json:"duration"`

	ivs []float64
}

// DayLoader drives one day file through parsing, root resolution, Greeks
// backfill and indexing, then hands the chain to the sink. A DayLoader may be
// shared by concurrent day tasks; each Load builds its own state.
type DayLoader struct {
	config   LoaderConfig
	backfill *GreeksBackfiller
	sink     Sink
	errlog   *ErrorLog
	batch    bool
}

func NewDayLoader(config LoaderConfig, backfill *GreeksBackfiller, sink Sink, errlog *ErrorLog) (*DayLoader, error) {
	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if backfill == nil {
		return nil, ErrorPricerNotProvided
	}
	if sink == nil {
		sink = NopSink{}
	}
	if errlog == nil {
		errlog = NewErrorLog(nil)
	}
	return &DayLoader{config: config, backfill: backfill, sink: sink, errlog: errlog}, nil
}

// SetBatchWrites makes the loader hand a whole day to sinks that accept it.
func (l *DayLoader) SetBatchWrites(batch bool) *DayLoader {
	l.batch = batch
	return l
}

// LoadFile opens a day file and loads it.
func (l *DayLoader) LoadFile(ctx context.Context, f DayFile) (*DayChain, DayStats, error) {
	rc, err := OpenDayFile(f.Path)
	if err != nil {
		err = &DayError{File: f.Path, Day: f.Day, Err: err}
		l.errlog.Record(f.Path, 0, err.Error(), "")
		return nil, DayStats{File: f.Path, Day: f.Day}, err
	}
	defer rc.Close()
	return l.Load(ctx, f.Path, f.Day, rc)
}

// Load processes the CSV stream r of one trading day. A read failure aborts
// the day with a *DayError; bad records only cost themselves.
func (l *DayLoader) Load(ctx context.Context, name string, day time.Time, r io.Reader) (*DayChain, DayStats, error) {
	start := time.Now()
	stats := DayStats{File: name, Day: truncateDay(day)}
	fail := func(line int, err error) (*DayChain, DayStats, error) {
		dayErr := &DayError{File: name, Day: stats.Day, Line: line, Err: err}
		l.errlog.Record(name, line, dayErr.Error(), "")
		stats.Duration = time.Since(start)
		return nil, stats, dayErr
	}

	parser, err := NewQuoteParser(l.config, day)
	if err != nil {
		return fail(0, err)
	}
	resolver := NewRootResolver(l.config.RootPriority)
	log.Infof("开始处理 %s (%s)", filepath.Base(name), stats.Day.Format(dayLayout))

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if lineNo == 1 && l.checkHeader(name, line, &stats) {
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return fail(lineNo, err)
			}
		}
		stats.Read++

		q, err := parser.Parse(line, lineNo)
		if err != nil {
			if IsSkip(err) {
				stats.Filtered++
				continue
			}
			stats.Errored++
			l.errlog.Record(name, lineNo, err.Error(), line)
			continue
		}
		if q.HasFlag(FlagDateMismatch) {
			stats.DateMismatches++
		}
		resolver.Offer(q)
	}
	if err := scanner.Err(); err != nil {
		return fail(lineNo+1, fmt.Errorf("read stream: %w", err))
	}
	if lineNo == 0 {
		log.Warnf("%s: %v", name, ErrorMissingHeader)
	}
	stats.Discarded = resolver.Dropped()

	accepted := resolver.Accepted()
	backfilled := make([]*Quote, 0, len(accepted))
	for _, q := range accepted {
		if err := l.backfill.Backfill(q); err != nil {
			stats.Errored++
			l.errlog.Record(name, q.Line, err.Error(), q.raw)
			continue
		}
		switch q.Source {
		case GREEKS_DEGENERATE:
			stats.Degenerate++
		case GREEKS_NAN:
			stats.NaN++
			l.errlog.Record(name, q.Line, fmt.Sprintf("NaN implied volatility or greeks for %s %d%s", q.Expiration.Format(dayLayout), q.Strike, q.Kind), q.raw)
		case GREEKS_VENDOR, GREEKS_COMPUTED:
			if q.Iv > 0 && !math.IsInf(q.Iv, 0) {
				stats.ivs = append(stats.ivs, q.Iv)
			}
		}
		backfilled = append(backfilled, q)
	}

	chain := NewDayChain(day)
	for _, q := range indexOrder(backfilled) {
		if _, err := chain.Insert(q); err != nil {
			if errors.Is(err, ErrorDuplicateStrike) {
				stats.DuplicateStrikes++
			} else {
				stats.Errored++
			}
			l.errlog.Record(name, q.Line, err.Error(), q.raw)
		}
	}
	stats.Retained = chain.Len()

	if err := l.persist(ctx, chain); err != nil {
		return fail(0, err)
	}
	stats.Duration = time.Since(start)
	log.Infof("处理结束 %s: 读取 %d, 保留 %d, 过滤 %d, 错误 %d, 丢弃 %d, 耗时 %s",
		filepath.Base(name), stats.Read, stats.Retained, stats.Filtered, stats.Errored, stats.Discarded, stats.Duration)
	return chain, stats, nil
}

// checkHeader reports whether line is the expected header. Anything else is
// flagged and then parsed as a record.
func (l *DayLoader) checkHeader(name, line string, stats *DayStats) bool {
	got := strings.TrimPrefix(strings.TrimSpace(line), "\ufeff")
	if strings.HasPrefix(got, l.config.ExpectedHeader) {
		return true
	}
	stats.HeaderMismatch = true
	log.Warnf("%s 表头不符: %q", name, got)
	return false
}

func (l *DayLoader) persist(ctx context.Context, chain *DayChain) error {
	quotes := chain.Quotes()
	if bs, ok := l.sink.(BatchSink); ok && l.batch {
		return bs.SaveQuotes(ctx, quotes)
	}
	for _, q := range quotes {
		if err := l.sink.SaveQuote(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// indexOrder sorts backfilled quotes so that delta collisions push away from
// the money in strike order: puts by ascending strike, calls by descending
// strike. Quotes parked on the sentinel go first, most in the money first, so
// the walk back from the bound also follows strike order. Equal strikes keep
// file order, so the first of a duplicate pair wins.
func indexOrder(quotes []*Quote) []*Quote {
	sort.SliceStable(quotes, func(i, j int) bool {
		a, b := quotes[i], quotes[j]
		if c := compareGroupKey(a.GroupKey(), b.GroupKey()); c != 0 {
			return c < 0
		}
		sa, sb := a.onSentinel(), b.onSentinel()
		if sa != sb {
			return sa
		}
		descending := a.Kind == CALL
		if sa {
			descending = !descending
		}
		if descending {
			return a.Strike > b.Strike
		}
		return a.Strike < b.Strike
	})
	return quotes
}
