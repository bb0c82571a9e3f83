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
	"testing"

	"github.com/grd/stat"
)

func TestStaircaseStatistics(t *testing.T) {
	const numberOfSamples = 100000
	for _, tc := range []struct {
		lInfSensitivity, epsilon float64
	}{
		{1, 6},
		{1, 2},
		{3, 4},
	} {
		samples := make(stat.Float64Slice, numberOfSamples)
		for i := range samples {
			v, err := stair.AddNoiseFloat64(0, 1, tc.lInfSensitivity, tc.epsilon, 0)
			if err != nil {
				t.Fatalf("AddNoiseFloat64: %v", err)
			}
			samples[i] = v
		}
		laplaceVariance := 2 * tc.lInfSensitivity * tc.lInfSensitivity / (tc.epsilon * tc.epsilon)
		if tolerance := 4.41717 * math.Sqrt(laplaceVariance/numberOfSamples); !nearEqual(stat.Mean(samples), 0, tolerance) {
			t.Errorf("staircase(%+v): got mean %f, want 0 ± %f", tc, stat.Mean(samples), tolerance)
		}
		if got := stat.Variance(samples); got >= laplaceVariance {
			t.Errorf("staircase(%+v): got variance %f, want less than the Laplace variance %f", tc, got, laplaceVariance)
		}
	}
}

func TestStaircaseMostlyWithinFirstStep(t *testing.T) {
	// Pr[|X| ≤ γΔ] is at least Pr[G = 0, B = 0] = (1-b)·γ/(γ+(1-γ)b).
	const epsilon, numberOfSamples = 4.0, 50000
	gamma, b := staircaseGamma(epsilon), math.Exp(-epsilon)
	want := (1 - b) * gamma / (gamma + (1-gamma)*b)
	inside := 0
	for i := 0; i < numberOfSamples; i++ {
		if math.Abs(staircaseSample(epsilon, 1)) <= gamma {
			inside++
		}
	}
	tolerance := 5 * math.Sqrt(want*(1-want)/numberOfSamples)
	if got := float64(inside) / numberOfSamples; got < want-tolerance {
		t.Errorf("staircaseSample: got Pr[|X| ≤ γ] = %f, want at least %f", got, want)
	}
}
