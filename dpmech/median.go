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
	"sort"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/noise"
)

// Median returns a differentially private median of data using the smooth
// sensitivity framework of Nissim, Raskhodnikova and Smith with Laplace
// noise: the release is median + S/α·Laplace(1) where S is the β-smooth
// sensitivity, α = ε/2 and β = ε/(2 ln(2/δ)).
//
// A delta of 0 selects δ = 1/(100n). data must contain at least 2 finite
// values. When the smooth sensitivity is 0 the exact median is released.
func Median(data []float64, epsilon, delta float64) (float64, error) {
	sorted, delta, err := prepareMedian(data, epsilon, delta)
	if err != nil {
		return 0, err
	}
	alpha := epsilon / 2
	beta := epsilon / (2 * math.Log(2/delta))
	s := smoothSensitivity(sorted, beta)
	m := sortedMedian(sorted)
	if s == 0 {
		return m, nil
	}
	return noise.Laplace().AddNoiseFloat64(m, 1, s, alpha, 0)
}

// MedianGaussian is Median with Gaussian noise: the release is
// median + S/α·N(0,1) with α = ε/(5√(2 ln(2/δ))) and β = ε/(4(1+ln(2/δ))).
func MedianGaussian(data []float64, epsilon, delta float64) (float64, error) {
	sorted, delta, err := prepareMedian(data, epsilon, delta)
	if err != nil {
		return 0, err
	}
	l := math.Log(2 / delta)
	alpha := epsilon / (5 * math.Sqrt(2*l))
	beta := epsilon / (4 * (1 + l))
	s := smoothSensitivity(sorted, beta)
	return noise.AddGaussianNoiseWithSigma(sortedMedian(sorted), s/alpha)
}

func prepareMedian(data []float64, epsilon, delta float64) ([]float64, float64, error) {
	if err := checks.CheckMinSize(len(data), 2); err != nil {
		return nil, 0, err
	}
	if err := checks.CheckEpsilonVeryStrict(epsilon); err != nil {
		return nil, 0, err
	}
	if err := checks.CheckDelta(delta); err != nil {
		return nil, 0, err
	}
	for _, v := range data {
		if err := checks.CheckFinite(v, "Data value"); err != nil {
			return nil, 0, err
		}
	}
	if delta == 0 {
		delta = 1 / (100 * float64(len(data)))
		log.V(2).Infof("Median: using default delta %e for %d values", delta, len(data))
	}
	sorted := append([]float64(nil), data...)
	sort.Float64s(sorted)
	return sorted, delta, nil
}

// smoothSensitivity returns max over k of e^(-kβ)·LS_k where, with
// m = (n+1)/2, LS_k = max over t in [0, k] of x[m+t] - x[m+t-k-1] and k
// ranges over [0, n-m-1]. sorted must be in ascending order with n ≥ 2.
func smoothSensitivity(sorted []float64, beta float64) float64 {
	n := len(sorted)
	m := (n + 1) / 2
	var s float64
	for k := 0; k < n-m; k++ {
		var local float64
		for t := 0; t <= k; t++ {
			local = math.Max(local, sorted[m+t]-sorted[m+t-k-1])
		}
		s = math.Max(s, math.Exp(-float64(k)*beta)*local)
	}
	return s
}

// sortedMedian averages the two middle elements for even lengths.
func sortedMedian(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
