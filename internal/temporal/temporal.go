// Package temporal computes day-distance and precedence between market
// resolution dates.
package temporal

import (
	"math"
	"time"
)

// Precedence labels how a candidate date stands relative to a reference date.
type Precedence string

const (
	// Same means the two dates are less than 24 hours apart.
	Same   Precedence = "same"
	Before Precedence = "before"
	After  Precedence = "after"
)

const hoursPerDay = 24

// Proximity describes the distance between two resolution dates.
type Proximity struct {
	DaysDiff   float64
	Precedence Precedence
}

// Compare measures candidate against reference. The precedence is relative
// to the reference: Before means the candidate resolves earlier.
func Compare(reference, candidate time.Time) Proximity {
	diff := candidate.Sub(reference)
	days := math.Abs(diff.Hours()) / hoursPerDay

	p := Same
	if days >= 1 {
		if diff < 0 {
			p = Before
		} else {
			p = After
		}
	}
	return Proximity{DaysDiff: days, Precedence: p}
}

// Weight decays linearly from 1 at zero day-distance to 0 at maxDays.
// Distances at or beyond maxDays, or a non-positive maxDays, score 0.
func Weight(daysDiff, maxDays float64) float64 {
	if maxDays <= 0 || daysDiff >= maxDays {
		return 0
	}
	if daysDiff < 0 {
		return 1
	}
	return 1 - daysDiff/maxDays
}
