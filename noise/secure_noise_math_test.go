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
)

func TestCeilPowerOfTwo(t *testing.T) {
	for _, tc := range []struct {
		x, want float64
	}{
		{1.0, 1.0},
		{2.0, 2.0},
		{math.Exp2(-30), math.Exp2(-30)},
		{3.0, 4.0},
		{0.1, 0.125},
		{1e10, math.Exp2(34)},
		{math.Nextafter(1.0, 2.0), 2.0},
	} {
		if got := ceilPowerOfTwo(tc.x); got != tc.want {
			t.Errorf("ceilPowerOfTwo(%e) = %e, want %e", tc.x, got, tc.want)
		}
	}
	for _, x := range []float64{0, -1, math.Inf(1), math.NaN(), math.MaxFloat64} {
		if got := ceilPowerOfTwo(x); !math.IsNaN(got) {
			t.Errorf("ceilPowerOfTwo(%e) = %e, want NaN", x, got)
		}
	}
}

func TestRoundToMultipleOfPowerOfTwo(t *testing.T) {
	for _, tc := range []struct {
		x, granularity, want float64
	}{
		{0.0, 1.0, 0.0},
		{3.4, 1.0, 3.0},
		{-3.6, 1.0, -4.0},
		{5.0, 4.0, 4.0},
		{6.0, 4.0, 8.0},
		{0.3, 0.25, 0.25},
		{-0.4, 0.125, -0.375},
	} {
		if got := roundToMultipleOfPowerOfTwo(tc.x, tc.granularity); got != tc.want {
			t.Errorf("roundToMultipleOfPowerOfTwo(%f, %f) = %f, want %f", tc.x, tc.granularity, got, tc.want)
		}
	}
}
