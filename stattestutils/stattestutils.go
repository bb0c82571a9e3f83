//
// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

// Package stattestutils provides basic statistical utility functions.
//
// This package is not optimized for performance or speed and is only intended
// to be used in tests.
package stattestutils

import (
	"math"

	"github.com/google/differential-privacy/quorum/rand"
)

// SampleMean returns the mean of a slice, calculated as the average over the
// values in the slice.
func SampleMean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / math.Max(1, float64(len(values)))
}

// SampleVariance returns the variance of a slice, calculated as the sum of
// squares of the distance to the mean of each of the values, divided by the
// number of values.
func SampleVariance(values []float64) float64 {
	mean := SampleMean(values)
	var sumOfSquares float64
	for _, v := range values {
		sumOfSquares += (v - mean) * (v - mean)
	}
	return sumOfSquares / math.Max(1, float64(len(values)))
}

// MeanSquaredError returns the average of (e - truth)² over estimates.
func MeanSquaredError(estimates []float64, truth float64) float64 {
	var sum float64
	for _, e := range estimates {
		sum += (e - truth) * (e - truth)
	}
	return sum / math.Max(1, float64(len(estimates)))
}

// BinomialTolerance returns z standard deviations of the empirical frequency
// of an event with probability p observed over n trials.
func BinomialTolerance(p float64, n int, z float64) float64 {
	return z * math.Sqrt(p*(1-p)/float64(n))
}

// StandardNormalSamples returns n independent draws from N(0, 1).
func StandardNormalSamples(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = rand.Normal()
	}
	return out
}

// UniformSamples returns n independent draws from the uniform distribution
// on (low, high].
func UniformSamples(n int, low, high float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = low + (high-low)*rand.Uniform()
	}
	return out
}
