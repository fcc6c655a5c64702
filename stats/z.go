package stats

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ZVal returns the two-tailed Z-value associated with a specific confidence interval.
// The interval is a number from 0 to 100 percent.
func ZVal(confidenceInterval float64) float64 {
	dist := distuv.Normal{
		Mu:    0,
		Sigma: 1,
	}
	area := (1 + (confidenceInterval / 100)) / 2
	return dist.Quantile(area)
}

// WilsonInterval bounds a proportion of successes out of n trials at the
// given confidence (0 to 100 percent). Draws count as half a success.
func WilsonInterval(successes float64, n int, confidenceInterval float64) (lo, hi float64) {
	if n == 0 {
		return 0, 1
	}
	z := ZVal(confidenceInterval)
	fn := float64(n)
	p := successes / fn
	denom := 1 + z*z/fn
	center := (p + z*z/(2*fn)) / denom
	half := z * math.Sqrt(p*(1-p)/fn+z*z/(4*fn*fn)) / denom
	return math.Max(0, center-half), math.Min(1, center+half)
}
