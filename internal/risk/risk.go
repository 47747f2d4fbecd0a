// Package risk sizes orders and decides whether a proposed trade may be placed.
package risk

import (
	"fmt"
	"math"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/cost"
	"github.com/rxtech-lab/argo-backtest/internal/types"
	"github.com/rxtech-lab/argo-backtest/internal/utils"
	"github.com/rxtech-lab/argo-backtest/pkg/errors"
)

// SizingMethod selects how CalculateSize turns capital into units.
type SizingMethod string

const (
	// SizingFixedFraction commits capital × risk_pct of notional.
	SizingFixedFraction SizingMethod = "fixed_fraction"
	// SizingFixedRisk loses capital × risk_pct if the stop is hit.
	SizingFixedRisk SizingMethod = "fixed_risk"
)

// AllSizingMethods lists the accepted sizing methods.
var AllSizingMethods = []any{
	SizingFixedFraction,
	SizingFixedRisk,
}

// SizeRequest is the input of CalculateSize.
type SizeRequest struct {
	Capital      float64
	RiskPct      float64
	StopDistance float64
	Price        float64
	Method       SizingMethod
}

// ProposedTrade is a sized order awaiting validation.
type ProposedTrade struct {
	Symbol   string
	Side     types.PurchaseType
	Quantity float64
	Price    float64
	// Closing is true when the trade only reduces the current position.
	Closing bool
}

// Notional returns quantity × price.
func (p ProposedTrade) Notional() float64 {
	return p.Quantity * p.Price
}

// Verdict is the answer of ValidateTrade.
type Verdict struct {
	Accepted bool
	Reason   string
}

// Accept returns an accepting verdict.
func Accept() Verdict {
	return Verdict{Accepted: true}
}

// Reject returns a rejecting verdict with a reason.
func Reject(format string, args ...any) Verdict {
	return Verdict{Accepted: false, Reason: fmt.Sprintf(format, args...)}
}

// Manager is the sizing and pre-trade check collaborator of the event-driven backtester.
type Manager interface {
	// CalculateSize returns the order quantity in units.
	CalculateSize(req SizeRequest) (float64, error)
	// ValidateTrade accepts or rejects a sized trade given the current portfolio.
	ValidateTrade(trade ProposedTrade, state types.PortfolioState) Verdict
}

// DefaultManager sizes by fixed fraction or fixed risk and caps gross leverage.
type DefaultManager struct {
	// MaxLeverage caps |position after the trade| × price / equity. 0 disables the cap.
	MaxLeverage float64
	// Fee, when set, keeps a fixed-fraction buy affordable after commission.
	Fee cost.FeeModel
	// DecimalPrecision rounds sizes down. Negative keeps fractional units.
	DecimalPrecision int
}

// NewDefaultManager creates a manager with fractional units.
func NewDefaultManager(maxLeverage float64, fee cost.FeeModel) *DefaultManager {
	return &DefaultManager{MaxLeverage: maxLeverage, Fee: fee, DecimalPrecision: -1}
}

func (m *DefaultManager) CalculateSize(req SizeRequest) (float64, error) {
	if !isPositive(req.Capital) {
		return 0, errors.Newf(errors.ErrCodeSizingFailed, "capital must be positive, got %v", req.Capital)
	}

	if !isPositive(req.Price) {
		return 0, errors.Newf(errors.ErrCodeSizingFailed, "price must be positive, got %v", req.Price)
	}

	if !(req.RiskPct > 0) || req.RiskPct > 1 {
		return 0, errors.Newf(errors.ErrCodeSizingFailed, "risk fraction must be in (0, 1], got %v", req.RiskPct)
	}

	var size float64

	switch req.Method {
	case SizingFixedFraction, "":
		if m.Fee != nil {
			size = utils.CalculateOrderQuantityByPercentage(req.Capital, req.Price, m.Fee, req.RiskPct)
		} else {
			size = req.Capital * req.RiskPct / req.Price
		}
	case SizingFixedRisk:
		if !isPositive(req.StopDistance) {
			return 0, errors.Newf(errors.ErrCodeSizingFailed, "fixed_risk sizing needs a positive stop distance, got %v", req.StopDistance)
		}

		size = req.Capital * req.RiskPct / req.StopDistance
	default:
		return 0, errors.Newf(errors.ErrCodeSizingFailed, "unknown sizing method %q", req.Method)
	}

	return utils.RoundToDecimalPrecision(size, m.DecimalPrecision), nil
}

func (m *DefaultManager) ValidateTrade(trade ProposedTrade, state types.PortfolioState) Verdict {
	if !(trade.Quantity > 0) || math.IsInf(trade.Quantity, 0) {
		return Reject("quantity must be positive, got %v", trade.Quantity)
	}

	if trade.Closing {
		return Accept()
	}

	if state.Equity <= 0 {
		return Reject("equity is %v", state.Equity)
	}

	if m.MaxLeverage <= 0 {
		return Accept()
	}

	after := state.Position.Quantity + trade.Side.Sign()*trade.Quantity
	leverage := math.Abs(after) * trade.Price / state.Equity

	if leverage > m.MaxLeverage+1e-9 {
		return Reject("leverage %.4f exceeds maximum %.4f", leverage, m.MaxLeverage)
	}

	return Accept()
}

func isPositive(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}
