// Package labdata implements the Digital Lab Assistant analysis: resistance
// of a wire readings, a least-squares best-fit line, and verification of a
// student-calculated gradient against the fit.
package labdata

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/stat"
)

// MinValidPoints is the minimum number of usable readings for a fit.
const MinValidPoints = 3

// ErrInsufficientData signals fewer than MinValidPoints readings with a
// non-zero current.
var ErrInsufficientData = errors.New("need at least 3 readings with non-zero current")

// Reading is one row of the student's lab table.
type Reading struct {
	LengthCM float64 `json:"length_cm"`
	Voltage  float64 `json:"voltage"`
	Current  float64 `json:"current"`
}

// Point is a plotted (length, resistance) pair.
type Point struct {
	LengthCM   float64 `json:"length_cm"`
	Resistance float64 `json:"resistance"`
}

// FitResult is the outcome of a best-fit analysis over valid readings.
type FitResult struct {
	Gradient  float64 `json:"gradient"`
	Intercept float64 `json:"intercept"`
	Points    []Point `json:"points"`
}

// Verdict classifies a student's gradient against the fitted one.
type Verdict string

const (
	VerdictCorrect   Verdict = "correct"   // within 5%
	VerdictClose     Verdict = "close"     // within 10%
	VerdictIncorrect Verdict = "incorrect" // beyond 10%
)

// GradientCheck is the result of verifying a student-calculated gradient.
type GradientCheck struct {
	StudentGradient float64 `json:"student_gradient"`
	FittedGradient  float64 `json:"fitted_gradient"`
	PercentDiff     float64 `json:"percent_diff"`
	Verdict         Verdict `json:"verdict"`
}

// Analyze computes resistance for every reading with positive current and
// fits a straight line of resistance against length.
func Analyze(readings []Reading) (FitResult, error) {
	var (
		xs, ys []float64
		points []Point
	)
	for _, r := range readings {
		if r.Current <= 0 {
			continue
		}
		res := r.Voltage / r.Current
		xs = append(xs, r.LengthCM)
		ys = append(ys, res)
		points = append(points, Point{LengthCM: r.LengthCM, Resistance: res})
	}
	if len(points) < MinValidPoints {
		return FitResult{}, ErrInsufficientData
	}

	intercept, gradient := stat.LinearRegression(xs, ys, nil, false)
	return FitResult{
		Gradient:  gradient,
		Intercept: intercept,
		Points:    points,
	}, nil
}

// CheckGradient compares a student's hand-calculated gradient against the
// fitted one and bands the percentage difference: under 5% correct, under
// 10% close, otherwise incorrect. A zero student gradient counts as 100% off.
func CheckGradient(student, fitted float64) GradientCheck {
	var diff float64
	if student == 0 || fitted == 0 {
		diff = 100.0
	} else {
		diff = math.Abs((student-fitted)/fitted) * 100
	}

	verdict := VerdictIncorrect
	switch {
	case diff < 5:
		verdict = VerdictCorrect
	case diff < 10:
		verdict = VerdictClose
	}

	return GradientCheck{
		StudentGradient: student,
		FittedGradient:  fitted,
		PercentDiff:     diff,
		Verdict:         verdict,
	}
}
