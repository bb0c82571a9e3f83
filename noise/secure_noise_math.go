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

	"github.com/google/differential-privacy/quorum/rand"
)

const (
	// IEEE 754 layout of a float64 is 1 sign bit, 11 exponent bits, 52 mantissa bits.
	exponentMask uint64 = 0x7ff0000000000000
	mantissaMask uint64 = 0x000fffffffffffff
	exponentUnit uint64 = 0x0010000000000000
)

// ceilPowerOfTwo returns the smallest exact power of 2 that is at least x.
// It returns NaN if x is not a finite positive number or if the result would
// overflow.
func ceilPowerOfTwo(x float64) float64 {
	if x <= 0.0 || math.IsInf(x, 0) || math.IsNaN(x) {
		return math.NaN()
	}
	b := math.Float64bits(x)
	if b&mantissaMask == 0 {
		return x
	}
	exponent := b & exponentMask
	if exponent >= math.Float64bits(math.MaxFloat64)&exponentMask {
		return math.NaN()
	}
	// Bumping the exponent with an empty mantissa yields the next power of 2.
	return math.Float64frombits(exponent + exponentUnit)
}

// roundToMultipleOfPowerOfTwo returns the multiple of granularity closest to
// x. granularity must be an exact power of 2 for the result to be exact.
func roundToMultipleOfPowerOfTwo(x, granularity float64) float64 {
	return math.Round(x/granularity) * granularity
}

// geometric returns the number of Bernoulli trials up to and including the
// first success, where each trial succeeds with probability p = 1 - e^-λ.
// Samples larger than math.MaxInt64 are truncated. λ should exceed 2⁻⁵⁹ to
// keep the truncation probability below 10⁻⁶.
//
// The sample is located by a binary search over [1, MaxInt64] that keeps the
// left or right half with its conditional probability, so no floating point
// inversion of the CDF is needed.
func geometric(lambda float64) int64 {
	if rand.Uniform() > -math.Expm1(-lambda*math.MaxInt64) {
		return math.MaxInt64
	}
	var lo int64                 // exclusive
	var hi int64 = math.MaxInt64 // inclusive
	for lo+1 < hi {
		// Split the mass of (lo, hi] roughly in half.
		mid := lo - int64(math.Floor((math.Log(0.5)+math.Log1p(math.Exp(lambda*float64(lo-hi))))/lambda))
		if mid <= lo {
			mid = lo + 1
		} else if mid >= hi {
			mid = hi - 1
		}
		// Pr[X ≤ mid | lo < X ≤ hi]
		q := math.Expm1(lambda*float64(lo-mid)) / math.Expm1(lambda*float64(lo-hi))
		if rand.Uniform() <= q {
			hi = mid
		} else {
			lo = mid
		}
	}
	return hi
}

// twoSidedGeometric returns a sample of the geometric distribution with
// parameter p = 1 - e^-λ, shifted to start at 0 and mirrored around 0.
func twoSidedGeometric(lambda float64) int64 {
	for {
		sample := geometric(lambda) - 1
		sign := int64(rand.Sign())
		// A zero drawn with a negative sign is redrawn so that 0 is not
		// counted twice.
		if sample != 0 || sign == 1 {
			return sample * sign
		}
	}
}
