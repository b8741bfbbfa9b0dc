// Package series implements price-series alignment, return correlation, and
// volatility for market price histories.
//
// Degenerate inputs (too few points, no time overlap, zero variance) always
// yield a zero or empty result, never an error, so callers can treat "no
// signal" uniformly.
package series

import (
	"math"
	"sort"
	"time"

	"github.com/rewired-gh/polygraph/internal/models"
)

const (
	// minReturns is the minimum number of return samples for a meaningful
	// Pearson correlation.
	minReturns = 3
	// confidenceSaturation makes confidence reach 1.0 at ~50 return samples.
	confidenceSaturation = 51
	// referenceVolatility scales return stddev so typical market noise maps
	// into [0, 1].
	referenceVolatility = 0.1
)

// Result is the outcome of correlating two price series. Samples counts the
// aligned raw points; Confidence derives from the return-sample count and is
// independent of the correlation's magnitude.
type Result struct {
	Correlation float64 `json:"correlation"`
	Confidence  float64 `json:"confidence"`
	Samples     int     `json:"samples"`
}

// Correlate aligns two price series, converts them to simple returns, and
// computes their Pearson correlation. The result is clamped to [-1, 1].
func Correlate(a, b models.PriceSeries) Result {
	alignedA, alignedB := Align(a, b)

	retA := Returns(alignedA)
	retB := Returns(alignedB)

	res := Result{
		Confidence: Confidence(len(retA)),
		Samples:    len(alignedA),
	}
	if len(retA) < minReturns {
		return res
	}

	res.Correlation = clamp(pearson(retA, retB), -1, 1)
	return res
}

// Align sorts both series by timestamp and resamples b onto a's timestamps
// within their overlapping time range. Outside b's samples the value clamps
// to the nearest endpoint; between samples it interpolates linearly. If the
// overlap is empty or either series has fewer than 2 points, both returned
// slices are empty.
func Align(a, b models.PriceSeries) ([]float64, []float64) {
	if len(a) < 2 || len(b) < 2 {
		return nil, nil
	}

	sa := sortedByTime(a)
	sb := sortedByTime(b)

	start := sa[0].Timestamp
	if sb[0].Timestamp.After(start) {
		start = sb[0].Timestamp
	}
	end := sa[len(sa)-1].Timestamp
	if sb[len(sb)-1].Timestamp.Before(end) {
		end = sb[len(sb)-1].Timestamp
	}
	if start.After(end) {
		return nil, nil
	}

	var alignedA, alignedB []float64
	for _, p := range sa {
		if p.Timestamp.Before(start) || p.Timestamp.After(end) {
			continue
		}
		alignedA = append(alignedA, p.Price)
		alignedB = append(alignedB, interpolate(sb, p.Timestamp))
	}
	return alignedA, alignedB
}

// interpolate evaluates a sorted series at time t: clamped to the nearest
// sample outside its range, linear between bracketing samples, and the
// bracket's value when the bracket has zero width.
func interpolate(s models.PriceSeries, t time.Time) float64 {
	if !t.After(s[0].Timestamp) {
		return s[0].Price
	}
	last := len(s) - 1
	if !t.Before(s[last].Timestamp) {
		return s[last].Price
	}

	i := sort.Search(len(s), func(i int) bool {
		return !s[i].Timestamp.Before(t)
	})
	lo, hi := s[i-1], s[i]
	span := hi.Timestamp.Sub(lo.Timestamp)
	if span <= 0 {
		return lo.Price
	}
	frac := float64(t.Sub(lo.Timestamp)) / float64(span)
	return lo.Price + (hi.Price-lo.Price)*frac
}

// Returns converts a price array to simple returns. A zero previous price
// yields a 0 return rather than a division by zero.
func Returns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev := prices[i-1]
		if prev == 0 {
			rets = append(rets, 0)
			continue
		}
		rets = append(rets, (prices[i]-prev)/prev)
	}
	return rets
}

// Confidence maps a return-sample count to a reliability score in [0, 1],
// saturating at roughly 50 samples.
func Confidence(n int) float64 {
	if n <= 0 {
		return 0
	}
	return math.Min(1, math.Log10(float64(n)+1)/math.Log10(confidenceSaturation))
}

// Volatility is the standard deviation of a series' returns on the reference
// scale, clamped to [0, 1]. Degenerate series score 0.
func Volatility(s models.PriceSeries) float64 {
	if len(s) < 2 {
		return 0
	}
	sorted := sortedByTime(s)
	prices := make([]float64, len(sorted))
	for i, p := range sorted {
		prices[i] = p.Price
	}
	rets := Returns(prices)
	if len(rets) == 0 {
		return 0
	}

	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))

	var variance float64
	for _, r := range rets {
		d := r - mean
		variance += d * d
	}
	variance /= float64(len(rets))

	return clamp(math.Sqrt(variance)/referenceVolatility, 0, 1)
}

// pearson computes the Pearson correlation coefficient of two equal-length
// arrays, or 0 when either has zero variance.
func pearson(x, y []float64) float64 {
	n := float64(len(x))
	var sumX, sumY float64
	for i := range x {
		sumX += x[i]
		sumY += y[i]
	}
	meanX, meanY := sumX/n, sumY/n

	var cov, varX, varY float64
	for i := range x {
		dx := x[i] - meanX
		dy := y[i] - meanY
		cov += dx * dy
		varX += dx * dx
		varY += dy * dy
	}
	if varX == 0 || varY == 0 {
		return 0
	}
	return cov / math.Sqrt(varX*varY)
}

func sortedByTime(s models.PriceSeries) models.PriceSeries {
	out := make(models.PriceSeries, len(s))
	copy(out, s)
	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
