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

package checks

import (
	"errors"
	"math"
	"testing"
)

func TestCheckEpsilonVeryStrict(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		epsilon float64
		wantErr bool
	}{
		{"epsilon < 2⁻⁵⁰", math.Exp2(-51.0), true},
		{"epsilon == 2⁻⁵⁰", math.Exp2(-50.0), false},
		{"negative epsilon", -2, true},
		{"zero epsilon", 0, true},
		{"epsilon is NaN", math.NaN(), true},
		{"epsilon is positive infinity", math.Inf(1), true},
		{"positive epsilon", 50, false},
	} {
		if err := CheckEpsilonVeryStrict(tc.epsilon); (err != nil) != tc.wantErr {
			t.Errorf("CheckEpsilonVeryStrict: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckEpsilonAllowInfinite(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		epsilon float64
		wantErr bool
	}{
		{"negative epsilon", -1, true},
		{"zero epsilon", 0, true},
		{"epsilon is NaN", math.NaN(), true},
		{"epsilon is positive infinity", math.Inf(1), false},
		{"positive epsilon", 0.1, false},
	} {
		if err := CheckEpsilonAllowInfinite(tc.epsilon); (err != nil) != tc.wantErr {
			t.Errorf("CheckEpsilonAllowInfinite: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckDelta(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		delta   float64
		wantErr bool
	}{
		{"No delta", 0, false},
		{"Valid delta", 0.1, false},
		{"Negative delta", -0.1, true},
		{"Delta equal to 1", 1, true},
		{"Delta is NaN", math.NaN(), true},
	} {
		if err := CheckDelta(tc.delta); (err != nil) != tc.wantErr {
			t.Errorf("CheckDelta: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckDeltaStrict(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		delta   float64
		wantErr bool
	}{
		{"No delta", 0, true},
		{"Valid delta", 1e-5, false},
		{"Delta equal to 1", 1, true},
	} {
		if err := CheckDeltaStrict(tc.delta); (err != nil) != tc.wantErr {
			t.Errorf("CheckDeltaStrict: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckBoundsFloat64(t *testing.T) {
	for _, tc := range []struct {
		desc         string
		lower, upper float64
		wantErr      bool
	}{
		{"Lower > upper", 6, 5, true},
		{"Lower == upper", 5, 5, false},
		{"Valid bounds", 1, 5, false},
		{"Lower is infinite", math.Inf(-1), 5, true},
		{"Upper is NaN", 1, math.NaN(), true},
	} {
		if err := CheckBoundsFloat64(tc.lower, tc.upper); (err != nil) != tc.wantErr {
			t.Errorf("CheckBoundsFloat64: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckInBounds(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		value   float64
		wantErr bool
	}{
		{"Value at lower bound", 0, false},
		{"Value at upper bound", 1, false},
		{"Value below", -0.1, true},
		{"Value above", 1.1, true},
		{"Value NaN", math.NaN(), true},
	} {
		if err := CheckInBounds(tc.value, 0, 1); (err != nil) != tc.wantErr {
			t.Errorf("CheckInBounds: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckPartitions(t *testing.T) {
	for _, tc := range []struct {
		desc          string
		partitions, n int
		wantErr       bool
	}{
		{"One partition", 1, 10, true},
		{"Two partitions", 2, 10, false},
		{"As many partitions as elements", 10, 10, false},
		{"More partitions than elements", 11, 10, true},
	} {
		if err := CheckPartitions(tc.partitions, tc.n); (err != nil) != tc.wantErr {
			t.Errorf("CheckPartitions: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
}

func TestCheckDomain(t *testing.T) {
	for _, tc := range []struct {
		desc    string
		domain  []string
		wantErr bool
	}{
		{"Empty domain", nil, true},
		{"Single element", []string{"a"}, true},
		{"Duplicates", []string{"a", "b", "a"}, true},
		{"Valid domain", []string{"a", "b", "c"}, false},
	} {
		if err := CheckDomain(tc.domain); (err != nil) != tc.wantErr {
			t.Errorf("CheckDomain: when %s for err got %v, want %t", tc.desc, err, tc.wantErr)
		}
	}
	if err := CheckInDomain(3, []int{1, 2}); err == nil {
		t.Errorf("CheckInDomain: value outside of domain returned no error")
	}
	if err := CheckInDomain(2, []int{1, 2}); err != nil {
		t.Errorf("CheckInDomain: value inside of domain returned %v", err)
	}
}

func TestErrorsWrapPrecondition(t *testing.T) {
	for _, err := range []error{
		CheckEpsilonStrict(0),
		CheckDelta(2),
		CheckMinSize(1, 2),
		CheckMaxNorm(-1),
		CheckConfidence(1),
		CheckFinite(math.Inf(1)),
		CheckLInfSensitivity(0),
		CheckL0Sensitivity(0),
		CheckNoDelta(0.1),
	} {
		if !errors.Is(err, ErrPrecondition) {
			t.Errorf("got error %v, want it to wrap ErrPrecondition", err)
		}
	}
}

func TestCustomName(t *testing.T) {
	err := CheckEpsilonStrict(-1, "BoundsEpsilon")
	if err == nil {
		t.Fatal("CheckEpsilonStrict(-1) returned no error")
	}
	if got, want := err.Error(), "mechanism precondition violated: BoundsEpsilon is -1.000000, must be strictly positive and finite"; got != want {
		t.Errorf("CheckEpsilonStrict: got message %q, want %q", got, want)
	}
}
