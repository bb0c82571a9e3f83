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

package stattestutils

import (
	"math"
	"testing"
)

func TestSampleMean(t *testing.T) {
	for _, tc := range []struct {
		input    []float64
		wantMean float64
	}{
		{[]float64{}, 0},
		{[]float64{100.123}, 100.123},
		{[]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 5},
	} {
		if got := SampleMean(tc.input); math.Abs(got-tc.wantMean) > 1e-9 {
			t.Errorf("SampleMean(%v) = %f, want %f", tc.input, got, tc.wantMean)
		}
	}
}

func TestSampleVariance(t *testing.T) {
	for _, tc := range []struct {
		input        []float64
		wantVariance float64
	}{
		{[]float64{}, 0},
		{[]float64{100.123}, 0},
		{[]float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 10},
	} {
		if got := SampleVariance(tc.input); math.Abs(got-tc.wantVariance) > 1e-9 {
			t.Errorf("SampleVariance(%v) = %f, want %f", tc.input, got, tc.wantVariance)
		}
	}
}

func TestMeanSquaredError(t *testing.T) {
	if got := MeanSquaredError([]float64{1, 3}, 2); got != 1 {
		t.Errorf("MeanSquaredError([1 3], 2) = %f, want 1", got)
	}
}

func TestSamplersMoments(t *testing.T) {
	const n = 100000
	normal := StandardNormalSamples(n)
	if m := SampleMean(normal); math.Abs(m) > 5/math.Sqrt(n) {
		t.Errorf("StandardNormalSamples: mean %f, want ≈ 0", m)
	}
	if v := SampleVariance(normal); math.Abs(v-1) > 0.05 {
		t.Errorf("StandardNormalSamples: variance %f, want ≈ 1", v)
	}
	uniform := UniformSamples(n, 2, 4)
	for _, u := range uniform {
		if u <= 2 || u > 4 {
			t.Fatalf("UniformSamples: got %f, want value in (2, 4]", u)
		}
	}
	if m := SampleMean(uniform); math.Abs(m-3) > 0.02 {
		t.Errorf("UniformSamples: mean %f, want ≈ 3", m)
	}
}
