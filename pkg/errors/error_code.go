package errors

// ErrorCode represents a unique error code for identifying different error types.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199). Raised before any simulation starts.
	ErrCodeInvalidConfiguration ErrorCode = 100
	ErrCodeInvalidCostRate      ErrorCode = 101
	ErrCodeEmptyData            ErrorCode = 102
	ErrCodeInvalidSplitWindow   ErrorCode = 103
	ErrCodeInvalidParameter     ErrorCode = 104
	ErrCodeMissingParameter     ErrorCode = 105
	ErrCodeSignalLengthMismatch ErrorCode = 106
	ErrCodeInvalidSignal        ErrorCode = 107
	ErrCodeInvalidOrder         ErrorCode = 108
	ErrCodeUnsupportedMode      ErrorCode = 109
	ErrCodeInvalidPeriod        ErrorCode = 110

	// Data errors (200-299)
	ErrCodeDataNotFound           ErrorCode = 200
	ErrCodeDataGap                ErrorCode = 201
	ErrCodeNonMonotonicTimestamp  ErrorCode = 202
	ErrCodeMissingField           ErrorCode = 203
	ErrCodeQueryFailed            ErrorCode = 204
	ErrCodeDataSourceUnavailable  ErrorCode = 205
	ErrCodeInsufficientMarketData ErrorCode = 206

	// Per-bar simulation errors (300-399). Continuable: the bar is treated as "no trade".
	ErrCodeCostModelFailed       ErrorCode = 300
	ErrCodeSizingFailed          ErrorCode = 301
	ErrCodeTradeRejected         ErrorCode = 302
	ErrCodeInsufficientLiquidity ErrorCode = 303

	// Strategy errors (400-499). Fatal to the run.
	ErrCodeStrategyFailed    ErrorCode = 400
	ErrCodeStrategyPanicked  ErrorCode = 401
	ErrCodeStrategyFitFailed ErrorCode = 402

	// Result errors (500-599)
	ErrCodeResultWriteFailed  ErrorCode = 500
	ErrCodeResultReadFailed   ErrorCode = 501
	ErrCodeIncompatibleResult ErrorCode = 502

	// Validation errors (600-699)
	ErrCodeInsufficientSplitData ErrorCode = 600
	ErrCodeNoTrades              ErrorCode = 601
)

// Category groups error codes by how the engine reacts to them.
type Category string

const (
	CategoryUnknown       Category = "unknown"
	CategoryConfiguration Category = "configuration"
	CategoryData          Category = "data"
	CategorySimulation    Category = "simulation"
	CategoryStrategy      Category = "strategy"
	CategoryResult        Category = "result"
	CategoryValidation    Category = "validation"
)

// CategoryOf returns the category of an error code.
func CategoryOf(code ErrorCode) Category {
	switch {
	case code >= 100 && code < 200:
		return CategoryConfiguration
	case code >= 200 && code < 300:
		return CategoryData
	case code >= 300 && code < 400:
		return CategorySimulation
	case code >= 400 && code < 500:
		return CategoryStrategy
	case code >= 500 && code < 600:
		return CategoryResult
	case code >= 600 && code < 700:
		return CategoryValidation
	default:
		return CategoryUnknown
	}
}
