// Package stats keeps the running numbers for computer-vs-computer
// matches: game lengths, node counts and win rates.
package stats

import "math"

const (
	Epsilon = 1e-6
)

func FuzzyEqual(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// Statistic is a running mean and variance (Welford's algorithm) that also
// remembers the extremes and the samples themselves, for histograms.
type Statistic struct {
	n    int
	last float64
	mean float64
	m2   float64
	min  float64
	max  float64

	keepSamples bool
	samples     []float64
}

// NewSampledStatistic returns a Statistic that keeps every pushed value.
func NewSampledStatistic() *Statistic {
	return &Statistic{keepSamples: true}
}

func (s *Statistic) Push(val float64) {
	s.last = val
	s.n++
	if s.n == 1 {
		s.mean, s.m2 = val, 0
		s.min, s.max = val, val
	} else {
		delta := val - s.mean
		s.mean += delta / float64(s.n)
		s.m2 += delta * (val - s.mean)
		s.min = math.Min(s.min, val)
		s.max = math.Max(s.max, val)
	}
	if s.keepSamples {
		s.samples = append(s.samples, val)
	}
}

func (s *Statistic) Mean() float64 {
	if s.n > 0 {
		return s.mean
	}
	return 0.0
}

func (s *Statistic) Variance() float64 {
	if s.n <= 1 {
		return 0.0
	}
	return s.m2 / float64(s.n-1)
}

func (s *Statistic) Stdev() float64 {
	return math.Sqrt(s.Variance())
}

func (s *Statistic) Last() float64 {
	return s.last
}

func (s *Statistic) Min() float64 {
	return s.min
}

func (s *Statistic) Max() float64 {
	return s.max
}

// StandardError returns the standard error of the mean.
func (s *Statistic) StandardError() float64 {
	if s.n == 0 {
		return 0.0
	}
	return math.Sqrt(s.Variance() / float64(s.n))
}

func (s *Statistic) Iterations() int {
	return s.n
}

// Samples returns the pushed values, if the statistic keeps them.
func (s *Statistic) Samples() []float64 {
	return s.samples
}
