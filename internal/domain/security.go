package domain

// SecurityMaster holds per-instrument reference attributes from the
// securities master. These values are static over a run and are broadcast
// across the date axis when joined onto time-varying data.
type SecurityMaster struct {
	InstrumentID    string  // master-assigned instrument identifier
	Symbol          string  // traded symbol (for FX, the unit currency)
	SecType         string  // STK, FUT, CASH, ...
	PrimaryExchange string  // primary listing venue
	Currency        string  // settlement currency
	Multiplier      float64 // contract multiplier (0 means unset, treated as 1)
	PriceMagnifier  float64 // price display magnifier (0 means unset, treated as 1)
	MinTick         float64 // minimum price increment
	Timezone        string  // exchange timezone
}

// Security type constants.
const (
	SecTypeStock  = "STK"
	SecTypeFuture = "FUT"
	// SecTypeCash marks foreign-exchange instruments; their quote unit is
	// the traded symbol, not the settlement currency.
	SecTypeCash = "CASH"
)

// Reference field names.
const (
	FieldCurrency        = "Currency"
	FieldSecType         = "SecType"
	FieldPrimaryExchange = "PrimaryExchange"
	FieldSymbol          = "Symbol"
	FieldMultiplier      = "Multiplier"
	FieldPriceMagnifier  = "PriceMagnifier"
	FieldMinTick         = "MinTick"
	FieldTimezone        = "Timezone"
	FieldNlv             = "Nlv"
)

// Time-varying field names.
const (
	FieldOpen   = "Open"
	FieldHigh   = "High"
	FieldLow    = "Low"
	FieldClose  = "Close"
	FieldVolume = "Volume"
	FieldBid    = "Bid"
	FieldAsk    = "Ask"
)

// Derived result field names produced by the simulation pipeline.
const (
	FieldSignal     = "Signal"
	FieldWeight     = "Weight"
	FieldPosition   = "Position"
	FieldTrade      = "Trade"
	FieldCommission = "Commission"
	FieldSlippage   = "Slippage"
	FieldReturn     = "Return"
)

// DefaultHistoryFields is the history field set retrieved when a strategy
// does not declare its own.
var DefaultHistoryFields = []string{
	FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume,
}

// DefaultMasterFields is the reference field set retrieved when a strategy
// does not declare its own.
var DefaultMasterFields = []string{
	FieldCurrency, FieldMinTick, FieldMultiplier, FieldPriceMagnifier,
	FieldPrimaryExchange, FieldSecType, FieldSymbol, FieldTimezone,
}
