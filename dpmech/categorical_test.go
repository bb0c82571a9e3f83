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
	"testing"

	"github.com/google/differential-privacy/quorum/stattestutils"
)

func TestFiniteCategoricalInfiniteEpsilon(t *testing.T) {
	domain := []string{"red", "green", "blue"}
	for i := 0; i < 100; i++ {
		got, err := FiniteCategorical("green", domain, math.Inf(1))
		if err != nil {
			t.Fatalf("FiniteCategorical: %v", err)
		}
		if got != "green" {
			t.Fatalf("FiniteCategorical(green, ∞) = %s, want green", got)
		}
	}
}

func TestFiniteCategoricalFrequency(t *testing.T) {
	const trials = 40000
	for _, tc := range []struct {
		domain  []int
		epsilon float64
	}{
		{[]int{0, 1}, 1},
		{[]int{1, 2, 3, 4, 5}, 0.5},
		{[]int{10, 20, 30, 40}, 3},
	} {
		value := tc.domain[0]
		counts := make(map[int]int)
		for i := 0; i < trials; i++ {
			got, err := FiniteCategorical(value, tc.domain, tc.epsilon)
			if err != nil {
				t.Fatalf("FiniteCategorical: %v", err)
			}
			counts[got]++
		}
		for v := range counts {
			found := false
			for _, d := range tc.domain {
				found = found || d == v
			}
			if !found {
				t.Errorf("FiniteCategorical released %d, which is not in %v", v, tc.domain)
			}
		}
		k := float64(len(tc.domain))
		want := math.Exp(tc.epsilon) / (k - 1 + math.Exp(tc.epsilon))
		tolerance := stattestutils.BinomialTolerance(want, trials, 5)
		if got := float64(counts[value]) / trials; math.Abs(got-want) > tolerance {
			t.Errorf("FiniteCategorical(%v, ε=%f): released the true value with frequency %f, want %f ± %f", tc.domain, tc.epsilon, got, want, tolerance)
		}
	}
}

func TestKeepProbability(t *testing.T) {
	for _, tc := range []struct {
		k       int
		epsilon float64
	}{
		{2, 1}, {5, 0.1}, {3, 10},
	} {
		e := math.Exp(tc.epsilon)
		want := (e - 1) / (float64(tc.k) - 1 + e)
		if got := keepProbability(tc.k, tc.epsilon); math.Abs(got-want) > 1e-12 {
			t.Errorf("keepProbability(%d, %f) = %f, want %f", tc.k, tc.epsilon, got, want)
		}
	}
	if got := keepProbability(3, 1000); got != 1 {
		t.Errorf("keepProbability(3, 1000) = %f, want 1", got)
	}
}
