package utils

import (
	"math"

	"github.com/rxtech-lab/argo-backtest/internal/backtest/cost"
)

// CalculateMaxQuantity calculates the maximum quantity that can be bought with the given balance after fees.
func CalculateMaxQuantity(balance float64, price float64, fee cost.FeeModel) float64 {
	if price <= 0 || balance <= 0 {
		return 0
	}

	maxQty := balance / price

	// Usually converges in a couple of iterations.
	for i := 0; i < 10; i++ {
		totalCost := maxQty*price + fee.Calculate(maxQty, price)
		if totalCost <= balance {
			break
		}

		maxQty *= balance / totalCost
	}

	return maxQty
}

// RoundToDecimalPrecision rounds the quantity down to the specified decimal precision.
// A negative precision leaves the quantity untouched.
func RoundToDecimalPrecision(quantity float64, decimalPrecision int) float64 {
	if decimalPrecision < 0 {
		return quantity
	}

	multiplier := math.Pow10(decimalPrecision)

	return math.Floor(quantity*multiplier) / multiplier
}

// CalculateOrderQuantityByPercentage calculates the quantity affordable with the given fraction of the balance.
func CalculateOrderQuantityByPercentage(balance float64, price float64, fee cost.FeeModel, percentage float64) float64 {
	return CalculateMaxQuantity(balance*percentage, price, fee)
}
