//
// Copyright 2020 Google LLC
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

// Package dpmech provides differentially private mechanisms that release a
// single value, a statistic over a dataset, or a model gradient.
//
// Mechanisms are stateless functions. Each validates its parameters and data
// and returns an error wrapping checks.ErrPrecondition instead of silently
// coercing input.
package dpmech

import (
	"math"

	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/noise"
)

// LaplaceNoise returns value plus Laplace noise of scale sensitivity/ε.
func LaplaceNoise(value, sensitivity, epsilon float64) (float64, error) {
	if err := checks.CheckFinite(value); err != nil {
		return 0, err
	}
	return noise.Laplace().AddNoiseFloat64(value, 1, sensitivity, epsilon, 0)
}

// Count returns the number of elements of data with Laplace noise of scale 1/ε.
func Count[T any](data []T, epsilon float64) (float64, error) {
	return LaplaceNoise(float64(len(data)), 1, epsilon)
}

// BoundedContinuous privatizes a single value known to lie in [low, high] by
// adding Laplace noise of scale (high-low)/ε. An infinite ε or a zero-width
// range releases the value unchanged.
func BoundedContinuous(value, low, high, epsilon float64) (float64, error) {
	if err := checks.CheckBoundsFloat64(low, high); err != nil {
		return 0, err
	}
	if err := checks.CheckInBounds(value, low, high); err != nil {
		return 0, err
	}
	if err := checks.CheckEpsilonAllowInfinite(epsilon); err != nil {
		return 0, err
	}
	if math.IsInf(epsilon, 1) || low == high {
		return value, nil
	}
	return noise.Laplace().AddNoiseFloat64(value, 1, high-low, epsilon, 0)
}

// Staircase privatizes value with staircase noise for sensitivity 1. For large
// ε it is considerably more accurate than LaplaceNoise.
func Staircase(value, epsilon float64) (float64, error) {
	if err := checks.CheckFinite(value); err != nil {
		return 0, err
	}
	return noise.Staircase().AddNoiseFloat64(value, 1, 1, epsilon, 0)
}
