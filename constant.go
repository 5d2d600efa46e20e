package optionchain

import "errors"

var (
	ErrorDuplicateStrike   = errors.New("duplicate strike in group")
	ErrorDeltaSpaceFull    = errors.New("no free scaled delta left in group")
	ErrorEmptyArchive      = errors.New("archive has no entries")
	ErrorMissingHeader     = errors.New("input has no header line")
	ErrorNoDayInFileName   = errors.New("file name carries no yyyy-mm-dd day")
	ErrorUnknownSinkKind   = errors.New("unknown sink kind")
	ErrorPricerNotProvided = errors.New("pricer not provided")
)

type OptionKind string

const (
	PUT  OptionKind = "P"
	CALL OptionKind = "C"
)

func (k OptionKind) String() string {
	return string(k)
}

func (k OptionKind) IsPut() bool {
	return k == PUT
}

// Sentinel returns the scaled delta reserved for quotes of this kind that
// carry no meaningful delta.
func (k OptionKind) Sentinel() int {
	if k.IsPut() {
		return MinDeltaScaled
	}
	return MaxDeltaScaled
}

// nudge is the step a colliding scaled delta takes away from at-the-money.
func (k OptionKind) nudge() int {
	if k.IsPut() {
		return -1
	}
	return 1
}

const (
	DeltaScale     = 10000
	MinDeltaScaled = -DeltaScale
	MaxDeltaScaled = DeltaScale
)

type Root string

const (
	ROOT_SPX  Root = "SPX"
	ROOT_SPXW Root = "SPXW"
	ROOT_SPXQ Root = "SPXQ"
)

func (r Root) String() string {
	return string(r)
}

type GreeksSource string

const (
	GREEKS_VENDOR     GreeksSource = "vendor"
	GREEKS_COMPUTED   GreeksSource = "computed"
	GREEKS_ZERO_MID   GreeksSource = "zero_mid"
	GREEKS_DEEP_ITM   GreeksSource = "deep_itm"
	GREEKS_DEGENERATE GreeksSource = "degenerate"
	GREEKS_NAN        GreeksSource = "nan"
)

func (s GreeksSource) String() string {
	return string(s)
}

type QuoteFlag uint8

const (
	FlagNaN QuoteFlag = 1 << iota
	FlagDateMismatch
)

type SinkKind string

const (
	SINK_NONE     SinkKind = "none"
	SINK_JSONL    SinkKind = "jsonl"
	SINK_SQLITE   SinkKind = "sqlite"
	SINK_POSTGRES SinkKind = "postgres"
)

func (s SinkKind) String() string {
	return string(s)
}

// CboeField is the column position of a field in a CBOE DataShop interval file.
type CboeField int

const (
	FieldUnderlyingSymbol CboeField = iota
	FieldQuoteDateTime
	FieldRoot
	FieldExpiration
	FieldStrike
	FieldOptionType
	FieldOpen
	FieldHigh
	FieldLow
	FieldClose
	FieldTradeVolume
	FieldBidSize
	FieldBid
	FieldAskSize
	FieldAsk
	FieldUnderlyingBid
	FieldUnderlyingAsk
	FieldImpliedUnderlyingPrice
	FieldActiveUnderlyingPrice
	FieldImpliedVolatility
	FieldDelta
	FieldGamma
	FieldTheta
	FieldVega
	FieldRho
	FieldOpenInterest
	fieldCount
)

var cboeFieldNames = [...]string{
	"underlying_symbol",
	"quote_datetime",
	"root",
	"expiration",
	"strike",
	"option_type",
	"open",
	"high",
	"low",
	"close",
	"trade_volume",
	"bid_size",
	"bid",
	"ask_size",
	"ask",
	"underlying_bid",
	"underlying_ask",
	"implied_underlying_price",
	"active_underlying_price",
	"implied_volatility",
	"delta",
	"gamma",
	"theta",
	"vega",
	"rho",
	"open_interest",
}

func (f CboeField) String() string {
	if f < 0 || f >= fieldCount {
		return "unknown"
	}
	return cboeFieldNames[f]
}

const ExpectedHeader = "underlying_symbol,quote_datetime,root,expiration,strike,option_type,open,high,low,close,trade_volume,bid_size,bid,ask_size,ask,underlying_bid,underlying_ask,implied_underlying_price,active_underlying_price,implied_volatility,delta,gamma,theta,vega,rho,open_interest"

const (
	quoteTimeLayout = "2006-01-02 15:04:05"
	dayLayout       = "2006-01-02"
	daysPerYear     = 365.0
)
