package compliance

import (
	"fmt"
	"math"
)

// Tolerance bounds the allowed difference between two elements:
// |actual - expected| <= ATol + RTol*|expected|
type Tolerance struct {
	RTol float64 `json:"rtol" yaml:"rtol"`
	ATol float64 `json:"atol" yaml:"atol"`
}

// Allowed returns the largest difference tolerated around expected
func (t Tolerance) Allowed(expected float64) float64 {
	return t.ATol + t.RTol*math.Abs(expected)
}

// Close reports whether actual is within tolerance of expected. NaN only
// matches NaN and infinities must match exactly.
func (t Tolerance) Close(actual, expected float64) bool {
	if math.IsNaN(actual) || math.IsNaN(expected) {
		return math.IsNaN(actual) && math.IsNaN(expected)
	}
	if math.IsInf(actual, 0) || math.IsInf(expected, 0) {
		return actual == expected
	}
	return math.Abs(actual-expected) <= t.Allowed(expected)
}

// MismatchError describes how two matrices differ
type MismatchError struct {
	ActualRows, ActualCols     int
	ExpectedRows, ExpectedCols int

	// Element mismatches; zero when the shapes differ
	Count, Total int
	Row, Col     int
	Actual       float64
	Expected     float64
	Allowed      float64
}

func (e *MismatchError) ShapeMismatch() bool {
	return e.ActualRows != e.ExpectedRows || e.ActualCols != e.ExpectedCols
}

func (e *MismatchError) Error() string {
	if e.ShapeMismatch() {
		return fmt.Sprintf("shape mismatch: got %dx%d, want %dx%d",
			e.ActualRows, e.ActualCols, e.ExpectedRows, e.ExpectedCols)
	}
	return fmt.Sprintf("%d of %d elements not close; greatest difference at [%d,%d]: got %g, want %g (diff %g, allowed %g)",
		e.Count, e.Total, e.Row, e.Col, e.Actual, e.Expected, math.Abs(e.Actual-e.Expected), e.Allowed)
}

// Compare checks actual against expected element by element. It returns
// nil when they match, or a *MismatchError.
func Compare(actual, expected [][]float64, tol Tolerance) error {
	ar, ac := shape(actual)
	er, ec := shape(expected)

	mismatch := &MismatchError{
		ActualRows: ar, ActualCols: ac,
		ExpectedRows: er, ExpectedCols: ec,
	}
	if mismatch.ShapeMismatch() {
		return mismatch
	}
	for i := range actual {
		if len(actual[i]) != ac || len(expected[i]) != ec {
			return fmt.Errorf("ragged matrix at row %d", i)
		}
	}

	worst := -1.0
	for i := range expected {
		for j, want := range expected[i] {
			got := actual[i][j]
			if tol.Close(got, want) {
				continue
			}
			mismatch.Count++

			excess := math.Abs(got - want)
			if math.IsNaN(excess) || math.IsInf(excess, 0) {
				excess = math.Inf(1)
			}
			if excess > worst {
				worst = excess
				mismatch.Row, mismatch.Col = i, j
				mismatch.Actual, mismatch.Expected = got, want
				mismatch.Allowed = tol.Allowed(want)
			}
		}
	}

	if mismatch.Count == 0 {
		return nil
	}
	mismatch.Total = er * ec
	return mismatch
}

func shape(m [][]float64) (rows, cols int) {
	if len(m) == 0 {
		return 0, 0
	}
	return len(m), len(m[0])
}
