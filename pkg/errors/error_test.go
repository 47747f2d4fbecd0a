package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/suite"
)

type ErrorTestSuite struct {
	suite.Suite
}

func TestErrorSuite(t *testing.T) {
	suite.Run(t, new(ErrorTestSuite))
}

func (suite *ErrorTestSuite) TestNewError() {
	err := New(ErrCodeInvalidConfiguration, "invalid configuration")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidConfiguration, err.Code)
	suite.Equal("invalid configuration", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestNewfError() {
	err := Newf(ErrCodeInvalidConfiguration, "invalid configuration: %s", "test")
	suite.NotNil(err)
	suite.Equal(ErrCodeInvalidConfiguration, err.Code)
	suite.Equal("invalid configuration: test", err.Message)
	suite.Nil(err.Cause)
}

func (suite *ErrorTestSuite) TestWrapError() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.NotNil(err)
	suite.Equal(ErrCodeDataNotFound, err.Code)
	suite.Equal("data not found", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestWrapfError() {
	cause := errors.New("underlying error")
	err := Wrapf(ErrCodeDataNotFound, cause, "data not found for symbol: %s", "AAPL")
	suite.NotNil(err)
	suite.Equal(ErrCodeDataNotFound, err.Code)
	suite.Equal("data not found for symbol: AAPL", err.Message)
	suite.Equal(cause, err.Cause)
}

func (suite *ErrorTestSuite) TestErrorString() {
	err := New(ErrCodeInvalidConfiguration, "invalid configuration")
	suite.Equal("[100] invalid configuration", err.Error())
}

func (suite *ErrorTestSuite) TestErrorStringWithCause() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.Equal("[200] data not found: underlying error", err.Error())
}

func (suite *ErrorTestSuite) TestUnwrap() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.Equal(cause, err.Unwrap())
}

func (suite *ErrorTestSuite) TestUnwrapNil() {
	err := New(ErrCodeInvalidConfiguration, "invalid configuration")
	suite.Nil(err.Unwrap())
}

func (suite *ErrorTestSuite) TestGetCode() {
	err := New(ErrCodeInvalidConfiguration, "invalid configuration")
	suite.Equal(ErrCodeInvalidConfiguration, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromWrapped() {
	cause := New(ErrCodeDataNotFound, "data not found")
	err := Wrap(ErrCodeCostModelFailed, "slippage model failed", cause)
	// GetCode should return the outermost error's code
	suite.Equal(ErrCodeCostModelFailed, GetCode(err))
}

func (suite *ErrorTestSuite) TestGetCodeFromNonArgoError() {
	err := errors.New("standard error")
	suite.Equal(ErrCodeUnknown, GetCode(err))
}

func (suite *ErrorTestSuite) TestHasCode() {
	err := New(ErrCodeInvalidConfiguration, "invalid configuration")
	suite.True(HasCode(err, ErrCodeInvalidConfiguration))
	suite.False(HasCode(err, ErrCodeDataNotFound))
}

func (suite *ErrorTestSuite) TestWrapKeepsCauseInChain() {
	cause := errors.New("underlying error")
	err := Wrap(ErrCodeDataNotFound, "data not found", cause)
	suite.ErrorIs(err, cause)

	var typed *Error
	suite.Require().ErrorAs(err, &typed)
	suite.Equal(ErrCodeDataNotFound, typed.Code)
}

func (suite *ErrorTestSuite) TestErrorCodeValues() {
	// Verify some key error codes have expected values
	suite.Equal(ErrorCode(1), ErrCodeUnknown)
	suite.Equal(ErrorCode(100), ErrCodeInvalidConfiguration)
	suite.Equal(ErrorCode(200), ErrCodeDataNotFound)
	suite.Equal(ErrorCode(300), ErrCodeCostModelFailed)
	suite.Equal(ErrorCode(400), ErrCodeStrategyFailed)
	suite.Equal(ErrorCode(500), ErrCodeResultWriteFailed)
	suite.Equal(ErrorCode(600), ErrCodeInsufficientSplitData)
}

func (suite *ErrorTestSuite) TestCategoryOf() {
	tests := []struct {
		name     string
		code     ErrorCode
		expected Category
	}{
		{"unknown", ErrCodeUnknown, CategoryUnknown},
		{"configuration", ErrCodeInvalidSplitWindow, CategoryConfiguration},
		{"data", ErrCodeNonMonotonicTimestamp, CategoryData},
		{"simulation", ErrCodeSizingFailed, CategorySimulation},
		{"strategy", ErrCodeStrategyPanicked, CategoryStrategy},
		{"result", ErrCodeIncompatibleResult, CategoryResult},
		{"validation", ErrCodeNoTrades, CategoryValidation},
	}

	for _, tc := range tests {
		suite.Run(tc.name, func() {
			suite.Equal(tc.expected, CategoryOf(tc.code))
		})
	}
}

func (suite *ErrorTestSuite) TestCategoryPredicates() {
	suite.True(IsConfigurationError(New(ErrCodeEmptyData, "no bars")))
	suite.True(IsDataError(Wrap(ErrCodeDataGap, "gap", errors.New("missing bar"))))
	suite.True(IsContinuable(New(ErrCodeCostModelFailed, "zero volume")))
	suite.True(IsStrategyError(New(ErrCodeStrategyFailed, "boom")))

	suite.False(IsContinuable(New(ErrCodeStrategyFailed, "boom")))
	suite.False(IsConfigurationError(errors.New("plain")))
	suite.Equal(CategoryUnknown, CategoryOfError(nil))
}

func (suite *ErrorTestSuite) TestInsufficientDataError() {
	err := &InsufficientDataError{
		Required: 20,
		Actual:   5,
		Symbol:   "AAPL",
		Message:  "insufficient data for calculation",
	}
	suite.Equal("insufficient data for calculation", err.Error())
	suite.Equal(20, err.Required)
	suite.Equal(5, err.Actual)
	suite.Equal("AAPL", err.Symbol)
}

func (suite *ErrorTestSuite) TestNewInsufficientDataErrorf() {
	err := NewInsufficientDataErrorf(20, 5, "AAPL", "insufficient data for %s: required %d, got %d", "ATR", 20, 5)
	suite.NotNil(err)
	suite.Equal(20, err.Required)
	suite.Equal(5, err.Actual)
	suite.Equal("AAPL", err.Symbol)
	suite.Equal("insufficient data for ATR: required 20, got 5", err.Message)
}

func (suite *ErrorTestSuite) TestIsInsufficientDataError() {
	// Test with InsufficientDataError
	insufficientErr := NewInsufficientDataErrorf(14, 10, "SPY", "insufficient data for %d splits", 3)
	suite.True(IsInsufficientDataError(insufficientErr))

	// Test with standard error
	stdErr := errors.New("standard error")
	suite.False(IsInsufficientDataError(stdErr))

	// Test with *Error type
	argoErr := New(ErrCodeInvalidConfiguration, "invalid configuration")
	suite.False(IsInsufficientDataError(argoErr))

	// Test with nil
	suite.False(IsInsufficientDataError(nil))
}
