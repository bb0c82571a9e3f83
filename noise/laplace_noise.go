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

package noise

import (
	"math"

	"github.com/google/differential-privacy/quorum/checks"
)

// granularityParam sets the resolution of Laplace noise relative to its
// scale: samples are multiples of a power of two close to scale/granularityParam.
// With 2⁴⁰ and ε ≥ 2⁻⁵⁰ the probability of an overflow in the geometric
// sampler stays below 2⁻¹⁰⁰⁰. Must be a power of 2.
var granularityParam = math.Exp2(40)

type laplace struct{}

// Laplace returns a Noise instance that adds Laplace noise to its input.
// Its AddNoiseFloat64 function fails if called with a non-zero delta.
//
// Samples are drawn from a two-sided geometric distribution on a grid of
// power-of-two granularity, so floating point artifacts cannot leak the
// unnoised value.
func Laplace() Noise {
	return laplace{}
}

// AddNoiseFloat64 adds Laplace noise of scale l0Sensitivity·lInfSensitivity/ε
// to x.
func (laplace) AddNoiseFloat64(x float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) (float64, error) {
	if err := checkArgsLaplace(l0Sensitivity, lInfSensitivity, epsilon, delta); err != nil {
		return 0, err
	}
	return addLaplace(x, epsilon, lInfSensitivity*float64(l0Sensitivity)), nil
}

func (laplace) String() string {
	return "Laplace Noise"
}

func checkArgsLaplace(l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) error {
	if err := checks.CheckL0Sensitivity(l0Sensitivity); err != nil {
		return err
	}
	if err := checks.CheckLInfSensitivity(lInfSensitivity); err != nil {
		return err
	}
	if err := checks.CheckEpsilonVeryStrict(epsilon); err != nil {
		return err
	}
	return checks.CheckNoDelta(delta)
}

// addLaplace adds noise of scale l1Sensitivity/ε to x.
func addLaplace(x, epsilon, l1Sensitivity float64) float64 {
	granularity := ceilPowerOfTwo((l1Sensitivity / epsilon) / granularityParam)
	sample := twoSidedGeometric(granularity * epsilon / (l1Sensitivity + granularity))
	return roundToMultipleOfPowerOfTwo(x, granularity) + float64(sample)*granularity
}

// LaplaceQuantile returns z with Pr[Y ≤ z] = p for Y ~ Laplace(0, λ).
// p must lie in (0, 1).
func LaplaceQuantile(lambda, p float64) float64 {
	// Working from the nearer tail keeps precision when p is tiny or close to 1.
	if p < 0.5 {
		return lambda * math.Log(2*p)
	}
	return -lambda * math.Log(2*(1-p))
}
