package eventdriven

import (
	"math"

	"github.com/rxtech-lab/argo-backtest/internal/types"
)

// Trigger reports whether a resting order executes on bar and at which
// reference price. Limit and take-profit orders fill at their limit or better
// when the bar opens through it. Stops fill at the trigger, or at the open
// when the bar gaps past it.
func Trigger(order types.Order, bar types.Bar) (float64, bool) {
	switch order.Type {
	case types.OrderTypeLimit, types.OrderTypeTakeProfit:
		limit := order.LimitPrice.Unwrap()

		if order.Side == types.PurchaseTypeBuy {
			if bar.Low <= limit {
				return math.Min(bar.Open, limit), true
			}

			return 0, false
		}

		if bar.High >= limit {
			return math.Max(bar.Open, limit), true
		}

		return 0, false
	case types.OrderTypeStop:
		stop := order.StopPrice.Unwrap()

		if order.Side == types.PurchaseTypeSell {
			if bar.Low <= stop {
				return math.Min(bar.Open, stop), true
			}

			return 0, false
		}

		if bar.High >= stop {
			return math.Max(bar.Open, stop), true
		}

		return 0, false
	default:
		return bar.Close, true
	}
}

// IsReduceOnly reports whether order may only shrink the current position.
// Take-profits and protective stops are cancelled once the position they
// protect is gone.
func IsReduceOnly(order types.Order) bool {
	return order.Type == types.OrderTypeTakeProfit ||
		(order.Type == types.OrderTypeStop && order.Reason == types.OrderReasonStopLoss)
}

// Slips reports whether an order type is charged slippage. Resting limit
// orders fill at their price.
func Slips(orderType types.OrderType) bool {
	return orderType == types.OrderTypeMarket || orderType == types.OrderTypeStop
}

// ExecutionPrice moves reference against the trader by rate.
func ExecutionPrice(reference float64, side types.PurchaseType, rate float64) float64 {
	return reference * (1 + side.Sign()*rate)
}

// CapQuantity limits quantity to fraction × volume. A zero fraction disables the cap.
func CapQuantity(quantity float64, volume float64, fraction float64) float64 {
	if fraction <= 0 {
		return quantity
	}

	return math.Max(math.Min(quantity, fraction*volume), 0)
}
