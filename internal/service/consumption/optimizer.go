package consumption

import (
	"fmt"
	"math"
)

// eps absorbs binary float noise before rounding up, so 2.0000000001 bars
// stay 2 bars.
const eps = 1e-9

// maxBars caps the bar count so it always fits an int.
const maxBars = math.MaxInt32

// OptimizeCut computes how many stock bars of standardLength a required
// length consumes when every bar loses cutMargin to the saw, and whether the
// remainder is long enough (>= minReusable) to go back to inventory.
func OptimizeCut(requiredLength, standardLength, cutMargin, minReusable float64) (CutResult, error) {
	if requiredLength <= 0 {
		return CutResult{}, nil
	}

	usable := standardLength - cutMargin
	if standardLength <= 0 || cutMargin < 0 || usable <= 0 {
		return CutResult{}, fmt.Errorf("optimize cut: standard length %v with cut margin %v leaves no usable length", standardLength, cutMargin)
	}

	ratio := requiredLength / usable
	if math.IsNaN(ratio) || ratio > maxBars {
		return CutResult{}, fmt.Errorf("optimize cut: required length %v needs more than %d bars of %v", requiredLength, maxBars, standardLength)
	}

	units := int(math.Ceil(ratio - eps))
	if units < 1 {
		units = 1
	}

	leftover := roundTo(float64(units)*standardLength-requiredLength, 6)
	if leftover <= 0 {
		leftover = 0
	}

	return CutResult{
		UnitsConsumed:    units,
		Leftover:         leftover,
		LeftoverReusable: leftover > 0 && leftover >= minReusable,
	}, nil
}

func roundTo(f float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(f*p) / p
}
