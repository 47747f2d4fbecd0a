package types

import "math"

// Signal is a target exposure attached to a bar: +1 long, 0 flat, -1 short.
// In continuous mode any weight in [-1, 1] is accepted. NaN means "no new
// signal" and keeps the previous exposure.
type Signal = float64

const (
	SignalLong  Signal = 1
	SignalFlat  Signal = 0
	SignalShort Signal = -1
)

// NoSignal returns the "no new signal" marker.
func NoSignal() Signal {
	return math.NaN()
}

// IsNoSignal reports whether s carries no new signal.
func IsNoSignal(s Signal) bool {
	return math.IsNaN(s)
}

// IsValidSignal reports whether s is acceptable. Discrete mode only accepts
// -1, 0, +1 and NaN.
func IsValidSignal(s Signal, continuous bool) bool {
	if math.IsNaN(s) {
		return true
	}

	if math.IsInf(s, 0) {
		return false
	}

	if continuous {
		return s >= -1 && s <= 1
	}

	return s == SignalLong || s == SignalFlat || s == SignalShort
}
