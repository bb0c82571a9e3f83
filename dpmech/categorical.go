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

package dpmech

import (
	"math"

	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/rand"
)

// FiniteCategorical applies randomized response to value over domain: with
// probability p = (e^ε-1)/(k-1+e^ε) the value is kept, otherwise a uniformly
// random element of domain is released (possibly the value itself). Overall
// the true value is released with probability e^ε/(k-1+e^ε).
//
// domain must have at least 2 distinct elements and contain value. An
// infinite ε releases value unchanged.
func FiniteCategorical[T comparable](value T, domain []T, epsilon float64) (T, error) {
	var zero T
	if err := checks.CheckDomain(domain); err != nil {
		return zero, err
	}
	if err := checks.CheckInDomain(value, domain); err != nil {
		return zero, err
	}
	if err := checks.CheckEpsilonAllowInfinite(epsilon); err != nil {
		return zero, err
	}
	if math.IsInf(epsilon, 1) {
		return value, nil
	}
	if rand.Bernoulli(keepProbability(len(domain), epsilon)) {
		return value, nil
	}
	return domain[rand.Intn(len(domain))], nil
}

// keepProbability computes (e^ε-1)/(k-1+e^ε) without overflowing for large ε.
func keepProbability(k int, epsilon float64) float64 {
	// Dividing by e^ε: (1-e^-ε)/((k-1)e^-ε+1).
	inv := math.Exp(-epsilon)
	return -math.Expm1(-epsilon) / (float64(k-1)*inv + 1)
}
