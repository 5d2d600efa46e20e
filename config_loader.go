package optionchain

import (
	"fmt"
	"strings"
	"time"
)

type LoaderConfig struct {
	Ticker             string        `yaml:"ticker" env:"TICKER"`                                //标的代码，例如 ^SPX
	RootPriority       []string      `yaml:"root_priority" env:"ROOT_PRIORITY" envSeparator:","` //root优先级，靠前者优先
	IgnoredRoots       []string      `yaml:"ignored_roots" env:"IGNORED_ROOTS" envSeparator:","` //静默跳过的root（二元期权等）
	MarketCloseCutoff  string        `yaml:"market_close_cutoff" env:"MARKET_CLOSE_CUTOFF"`      //晚于该时刻的报价跳过
	StrictQuoteDate    bool          `yaml:"strict_quote_date" env:"STRICT_QUOTE_DATE"`          //报价日期与文件日期不一致时视为错误
	PutsOnly           bool          `yaml:"puts_only" env:"PUTS_ONLY"`                          //只保留看跌期权
	StrikeMultiple     int           `yaml:"strike_multiple" env:"STRIKE_MULTIPLE"`              //行权价步长过滤，0为不过滤
	MinStrike          int           `yaml:"min_strike" env:"MIN_STRIKE"`                        //最小行权价（含）
	MaxStrike          int           `yaml:"max_strike" env:"MAX_STRIKE"`                        //最大行权价（含）
	MinUnderlyingPrice float64       `yaml:"min_underlying_price" env:"MIN_UNDERLYING_PRICE"`    //标的价格下限，低于即为错误
	ExcludeITM         bool          `yaml:"exclude_itm" env:"EXCLUDE_ITM"`                      //跳过实值期权
	MaxDTE             int           `yaml:"max_dte" env:"MAX_DTE"`                              //最大剩余天数
	DeepITMPoints      int           `yaml:"deep_itm_points" env:"DEEP_ITM_POINTS"`              //深度实值阈值（点），0为关闭
	InfiniteIVEpsilon  float64       `yaml:"infinite_iv_epsilon" env:"INFINITE_IV_EPSILON"`      //隐含波动率为无穷时的替代值
	Delimiter          string        `yaml:"delimiter" env:"DELIMITER"`                          //列分隔符
	ExpectedHeader     string        `yaml:"expected_header" env:"EXPECTED_HEADER"`              //期望的表头
	Session            SessionWindow `yaml:"session" envPrefix:"SESSION_"`
}

// SessionWindow is the regular trading session used to measure time left on
// a same-day expiration.
type SessionWindow struct {
	Open          string `yaml:"open" env:"OPEN"`                     //开盘时刻 hh:mm
	LengthMinutes int    `yaml:"length_minutes" env:"LENGTH_MINUTES"` //交易时长（分钟），09:30-16:00 为 390
}

func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		Ticker:             "^SPX",
		RootPriority:       []string{ROOT_SPX.String(), ROOT_SPXW.String(), ROOT_SPXQ.String()},
		IgnoredRoots:       []string{"BSZ", "SRO"},
		MarketCloseCutoff:  "16:00:00",
		MinStrike:          625,
		MaxStrike:          10000,
		MinUnderlyingPrice: 500,
		MaxDTE:             200,
		InfiniteIVEpsilon:  1e-6,
		Delimiter:          ",",
		ExpectedHeader:     ExpectedHeader,
		Session: SessionWindow{
			Open:          "09:30",
			LengthMinutes: 390,
		},
	}
}

// withDefaults fills zero values the same way DefaultLoaderConfig would.
func (c LoaderConfig) withDefaults() LoaderConfig {
	d := DefaultLoaderConfig()
	if c.Ticker == "" {
		c.Ticker = d.Ticker
	}
	if len(c.RootPriority) == 0 {
		c.RootPriority = d.RootPriority
	}
	if c.IgnoredRoots == nil {
		c.IgnoredRoots = d.IgnoredRoots
	}
	if c.MarketCloseCutoff == "" {
		c.MarketCloseCutoff = d.MarketCloseCutoff
	}
	if c.MaxStrike == 0 {
		c.MaxStrike = d.MaxStrike
	}
	if c.MaxDTE == 0 {
		c.MaxDTE = d.MaxDTE
	}
	if c.InfiniteIVEpsilon == 0 {
		c.InfiniteIVEpsilon = d.InfiniteIVEpsilon
	}
	if c.Delimiter == "" {
		c.Delimiter = d.Delimiter
	}
	if c.ExpectedHeader == "" {
		c.ExpectedHeader = d.ExpectedHeader
	}
	if c.Session.Open == "" {
		c.Session.Open = d.Session.Open
	}
	if c.Session.LengthMinutes == 0 {
		c.Session.LengthMinutes = d.Session.LengthMinutes
	}
	return c
}

func (c LoaderConfig) Validate() error {
	if len(c.Delimiter) != 1 {
		return fmt.Errorf("delimiter must be one character, got %q", c.Delimiter)
	}
	if c.MinStrike > c.MaxStrike {
		return fmt.Errorf("min_strike %d is above max_strike %d", c.MinStrike, c.MaxStrike)
	}
	if c.MaxDTE < 0 {
		return fmt.Errorf("max_dte must not be negative, got %d", c.MaxDTE)
	}
	if c.StrikeMultiple < 0 {
		return fmt.Errorf("strike_multiple must not be negative, got %d", c.StrikeMultiple)
	}
	if c.InfiniteIVEpsilon <= 0 {
		return fmt.Errorf("infinite_iv_epsilon must be positive, got %v", c.InfiniteIVEpsilon)
	}
	seen := map[string]bool{}
	for _, r := range c.RootPriority {
		r = strings.ToUpper(strings.TrimSpace(r))
		if r == "" || seen[r] {
			return fmt.Errorf("root_priority has an empty or repeated root %q", r)
		}
		seen[r] = true
	}
	if _, err := parseClock(c.MarketCloseCutoff); err != nil {
		return fmt.Errorf("market_close_cutoff: %w", err)
	}
	if _, err := c.Session.openOffset(); err != nil {
		return fmt.Errorf("session open: %w", err)
	}
	if c.Session.LengthMinutes <= 0 {
		return fmt.Errorf("session length must be positive, got %d", c.Session.LengthMinutes)
	}
	return nil
}

func (s SessionWindow) openOffset() (time.Duration, error) {
	return parseClock(s.Open)
}

func (s SessionWindow) length() time.Duration {
	return time.Duration(s.LengthMinutes) * time.Minute
}

// remainingFraction is the share of the session still ahead of the quote's
// clock time, floored at one minute so a quote at the close still prices.
func (s SessionWindow) remainingFraction(quoteTime time.Time) float64 {
	open, err := s.openOffset()
	if err != nil {
		open = 9*time.Hour + 30*time.Minute
	}
	length := s.length()
	if length <= 0 {
		return 0
	}
	left := open + length - clockOf(quoteTime)
	if left < time.Minute {
		left = time.Minute
	}
	if left > length {
		left = length
	}
	return float64(left) / float64(length)
}

// parseClock accepts hh:mm or hh:mm:ss.
func parseClock(s string) (time.Duration, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		t, err := time.Parse(layout, strings.TrimSpace(s))
		if err == nil {
			return clockOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid clock time %q", s)
}

func clockOf(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute + time.Duration(t.Second())*time.Second
}
