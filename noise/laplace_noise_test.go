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

func TestLaplaceStatistics(t *testing.T) {
	const numberOfSamples = 125000
	for _, tc := range []struct {
		l0Sensitivity                            int64
		lInfSensitivity, epsilon, mean, variance float64
	}{
		{1, 1.0, 1.0, 0.0, 2.0},
		{1, 1.0, ln3, 45941223.02107, 2.0 / (ln3 * ln3)},
		{1, 2.0, 2.0 * ln3, 0.0, 2.0 / (ln3 * ln3)},
		{2, 1.0, 2.0 * ln3, -12.5, 2.0 / (ln3 * ln3)},
	} {
		noisedSamples := make(stat.Float64Slice, numberOfSamples)
		for i := 0; i < numberOfSamples; i++ {
			v, err := lap.AddNoiseFloat64(tc.mean, tc.l0Sensitivity, tc.lInfSensitivity, tc.epsilon, 0)
			if err != nil {
				t.Fatalf("AddNoiseFloat64: %v", err)
			}
			noisedSamples[i] = v
		}
		sampleMean, sampleVariance := stat.Mean(noisedSamples), stat.Variance(noisedSamples)
		// The sample mean is approximately normal with standard deviation
		// sqrt(variance/n); the sample variance has standard deviation
		// sqrt(5)·variance/sqrt(n) for Laplace data. 4.41717 is the 99.9995%
		// quantile, so each check falsely rejects with probability 10⁻⁵.
		meanErrorTolerance := 4.41717 * math.Sqrt(tc.variance/float64(numberOfSamples))
		varianceErrorTolerance := 4.41717 * math.Sqrt(5.0) * tc.variance / math.Sqrt(float64(numberOfSamples))
		if !nearEqual(sampleMean, tc.mean, meanErrorTolerance) {
			t.Errorf("got mean = %f, want %f (parameters %+v)", sampleMean, tc.mean, tc)
		}
		if !nearEqual(sampleVariance, tc.variance, varianceErrorTolerance) {
			t.Errorf("got variance = %f, want %f (parameters %+v)", sampleVariance, tc.variance, tc)
		}
	}
}

func TestLaplaceQuantile(t *testing.T) {
	for _, tc := range []struct {
		lambda, p, want float64
	}{
		{1, 0.5, 0},
		{1, 0.25, math.Log(0.5)},
		{1, 0.75, -math.Log(0.5)},
		{2, 0.025, 2 * math.Log(0.05)},
		{1, 1e-300, math.Log(2e-300)},
	} {
		if got := LaplaceQuantile(tc.lambda, tc.p); !nearEqual(got, tc.want, 1e-9) {
			t.Errorf("LaplaceQuantile(%f, %e) = %f, want %f", tc.lambda, tc.p, got, tc.want)
		}
	}
}

func TestGeometricStatistics(t *testing.T) {
	const numberOfSamples = 50000
	for _, lambda := range []float64{0.1, 0.0001, 2} {
		p := -math.Expm1(-lambda)
		mean, variance := 1/p, (1-p)/(p*p)
		samples := make(stat.Float64Slice, numberOfSamples)
		for i := range samples {
			samples[i] = float64(geometric(lambda))
		}
		tolerance := 4.41717 * math.Sqrt(variance/numberOfSamples)
		if got := stat.Mean(samples); !nearEqual(got, mean, tolerance) {
			t.Errorf("geometric(%f): got mean %f, want %f", lambda, got, mean)
		}
	}
}

func TestTwoSidedGeometricIsSymmetric(t *testing.T) {
	const numberOfSamples = 100000
	var positive, negative, zero int
	for i := 0; i < numberOfSamples; i++ {
		switch s := twoSidedGeometric(0.5); {
		case s > 0:
			positive++
		case s < 0:
			negative++
		default:
			zero++
		}
	}
	// Pr[0] = (1-e^-λ)/(1+e^-λ) for the mirrored distribution.
	wantZero := -math.Expm1(-0.5) / (1 + math.Exp(-0.5))
	tolerance := 5 * math.Sqrt(wantZero*(1-wantZero)/numberOfSamples)
	if got := float64(zero) / numberOfSamples; !nearEqual(got, wantZero, tolerance) {
		t.Errorf("twoSidedGeometric: got Pr[0] = %f, want %f", got, wantZero)
	}
	if diff := math.Abs(float64(positive-negative)) / numberOfSamples; diff > 0.02 {
		t.Errorf("twoSidedGeometric: positive %d and negative %d counts differ by more than 2%%", positive, negative)
	}
}
