// Package reduce collapses a time-ordered vector of samples into a single
// scalar. Every policy is pure and returns 0 for an empty vector.
package reduce

import (
	"fmt"
	"slices"
)

// Policy names a reduction strategy.
type Policy string

// Policy constants.
const (
	Latest              Policy = "latest"
	Delta               Policy = "delta"
	MinMax              Policy = "min_max"
	MinMaxOnlyAscending Policy = "min_max_only_ascending"
	Average             Policy = "average"
)

// Policies lists every supported policy in display order.
var Policies = []Policy{Latest, Delta, MinMax, MinMaxOnlyAscending, Average}

// ParsePolicy converts a snake_case name into a Policy.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(s)
	if !slices.Contains(Policies, p) {
		return "", fmt.Errorf("unknown reduction policy %q", s)
	}
	return p, nil
}

// String implements fmt.Stringer.
func (p Policy) String() string { return string(p) }

// Apply reduces samples using policy p. An unknown policy yields an error.
func Apply(p Policy, samples []float64) (float64, error) {
	switch p {
	case Latest:
		return LatestValue(samples), nil
	case Delta:
		return DeltaValue(samples), nil
	case MinMax:
		return Spread(samples), nil
	case MinMaxOnlyAscending:
		return Spread(Ascending(samples)), nil
	case Average:
		return Mean(samples), nil
	default:
		return 0, fmt.Errorf("unknown reduction policy %q", p)
	}
}

// Ascending keeps the first sample and every later sample that is strictly
// greater than the sample immediately before it in the input. Comparison is
// against the preceding raw sample, not the last kept one.
func Ascending(samples []float64) []float64 {
	if len(samples) == 0 {
		return nil
	}

	kept := make([]float64, 0, len(samples))
	kept = append(kept, samples[0])
	for i := 1; i < len(samples); i++ {
		if samples[i] > samples[i-1] {
			kept = append(kept, samples[i])
		}
	}
	return kept
}

// DeltaValue returns the last ascending sample minus the first raw sample.
func DeltaValue(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	kept := Ascending(samples)
	return kept[len(kept)-1] - samples[0]
}

// Spread returns max minus min of samples.
func Spread(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return slices.Max(samples) - slices.Min(samples)
}

// Mean returns the arithmetic mean of samples.
func Mean(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += v
	}
	return sum / float64(len(samples))
}

// LatestValue returns the last sample.
func LatestValue(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return samples[len(samples)-1]
}
