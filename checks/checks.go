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

// Package checks contains checks for differentially private functions.
//
// Every error returned by this package wraps ErrPrecondition.
package checks

import (
	"errors"
	"fmt"
	"math"

	log "github.com/golang/glog"
)

// ErrPrecondition is wrapped by every error reporting that a mechanism was
// called with parameters or data outside its contract.
var ErrPrecondition = errors.New("mechanism precondition violated")

const (
	epsilonName = "Epsilon"
	deltaName   = "Delta"
)

func failf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

func verifyName(defaultName string, nameSlice []string) (string, error) {
	switch len(nameSlice) {
	case 0:
		return defaultName, nil
	case 1:
		return nameSlice[0], nil
	default:
		return "", fmt.Errorf("This should never happen. There should be 0 or 1 'name' parameter, got %d", len(nameSlice))
	}
}

// CheckEpsilonVeryStrict returns an error if ε is +∞ or less than 2⁻⁵⁰.
func CheckEpsilonVeryStrict(epsilon float64, name ...string) error {
	epsName, err := verifyName(epsilonName, name)
	if err != nil {
		return err
	}
	if epsilon < math.Exp2(-50.0) || math.IsInf(epsilon, 0) || math.IsNaN(epsilon) {
		return failf("%s is %f, must be at least 2^-50 and finite", epsName, epsilon)
	}
	return nil
}

// CheckEpsilonStrict returns an error if ε is nonpositive or +∞.
func CheckEpsilonStrict(epsilon float64, name ...string) error {
	epsName, err := verifyName(epsilonName, name)
	if err != nil {
		return err
	}
	if epsilon <= 0 || math.IsInf(epsilon, 0) || math.IsNaN(epsilon) {
		return failf("%s is %f, must be strictly positive and finite", epsName, epsilon)
	}
	return nil
}

// CheckEpsilonAllowInfinite returns an error if ε is nonpositive or NaN.
// +∞ is accepted and means that no noise is added.
func CheckEpsilonAllowInfinite(epsilon float64, name ...string) error {
	epsName, err := verifyName(epsilonName, name)
	if err != nil {
		return err
	}
	if epsilon <= 0 || math.IsNaN(epsilon) {
		return failf("%s is %f, must be strictly positive", epsName, epsilon)
	}
	return nil
}

// CheckDelta returns an error if δ is negative or greater than or equal to 1.
func CheckDelta(delta float64, name ...string) error {
	delName, err := verifyName(deltaName, name)
	if err != nil {
		return err
	}
	if math.IsNaN(delta) {
		return failf("%s is %e, cannot be NaN", delName, delta)
	}
	if delta < 0 {
		return failf("%s is %e, cannot be negative", delName, delta)
	}
	if delta >= 1 {
		return failf("%s is %e, must be strictly less than 1", delName, delta)
	}
	return nil
}

// CheckDeltaStrict returns an error if δ is nonpositive or greater than or equal to 1.
func CheckDeltaStrict(delta float64, name ...string) error {
	delName, err := verifyName(deltaName, name)
	if err != nil {
		return err
	}
	if math.IsNaN(delta) {
		return failf("%s is %e, cannot be NaN", delName, delta)
	}
	if delta <= 0 {
		return failf("%s is %e, must be strictly positive", delName, delta)
	}
	if delta >= 1 {
		return failf("%s is %e, must be strictly less than 1", delName, delta)
	}
	return nil
}

// CheckNoDelta returns an error if δ is non-zero.
func CheckNoDelta(delta float64, name ...string) error {
	delName, err := verifyName(deltaName, name)
	if err != nil {
		return err
	}
	if delta != 0 {
		return failf("%s is %e, must be 0", delName, delta)
	}
	return nil
}

// CheckL0Sensitivity returns an error if l0Sensitivity is nonpositive.
func CheckL0Sensitivity(l0Sensitivity int64) error {
	if l0Sensitivity <= 0 {
		return failf("L0Sensitivity is %d, must be strictly positive", l0Sensitivity)
	}
	return nil
}

// CheckLInfSensitivity returns an error if lInfSensitivity is nonpositive or +∞.
func CheckLInfSensitivity(lInfSensitivity float64) error {
	if lInfSensitivity <= 0 || math.IsInf(lInfSensitivity, 0) || math.IsNaN(lInfSensitivity) {
		return failf("LInfSensitivity is %f, must be strictly positive and finite", lInfSensitivity)
	}
	return nil
}

// CheckBoundsFloat64 returns an error if lower is larger than upper, or if either parameter is ±∞.
func CheckBoundsFloat64(lower, upper float64) error {
	if math.IsNaN(lower) {
		return failf("Lower bound cannot be NaN")
	}
	if math.IsNaN(upper) {
		return failf("Upper bound cannot be NaN")
	}
	if math.IsInf(lower, 0) {
		return failf("Lower bound cannot be infinity")
	}
	if math.IsInf(upper, 0) {
		return failf("Upper bound cannot be infinity")
	}
	if lower > upper {
		return failf("Upper bound (%f) must be larger than lower bound (%f)", upper, lower)
	}
	if lower == upper {
		log.Warningf("Lower bound is equal to upper bound: the released value carries no information beyond %f", upper)
	}
	return nil
}

// CheckInBounds returns an error if value lies outside [lower, upper] or is NaN.
func CheckInBounds(value, lower, upper float64) error {
	if math.IsNaN(value) {
		return failf("Value cannot be NaN")
	}
	if value < lower || value > upper {
		return failf("Value %f is outside of the declared bounds [%f, %f]", value, lower, upper)
	}
	return nil
}

// CheckMinSize returns an error if a dataset of size n has fewer than min elements.
func CheckMinSize(n, min int, name ...string) error {
	dataName, err := verifyName("Data", name)
	if err != nil {
		return err
	}
	if n < min {
		return failf("%s has %d elements, must have at least %d", dataName, n, min)
	}
	return nil
}

// CheckPartitions returns an error if partitions is not within [2, n].
func CheckPartitions(partitions, n int) error {
	if partitions < 2 {
		return failf("Partitions is %d, must be at least 2", partitions)
	}
	if partitions > n {
		return failf("Partitions is %d, cannot exceed the number of elements %d", partitions, n)
	}
	return nil
}

// CheckDomain returns an error if domain has fewer than 2 elements or
// contains duplicates.
func CheckDomain[T comparable](domain []T) error {
	if len(domain) < 2 {
		return failf("Domain has %d elements, must have at least 2", len(domain))
	}
	seen := make(map[T]struct{}, len(domain))
	for _, v := range domain {
		if _, ok := seen[v]; ok {
			return failf("Domain contains duplicate element %v", v)
		}
		seen[v] = struct{}{}
	}
	return nil
}

// CheckInDomain returns an error if value is not an element of domain.
func CheckInDomain[T comparable](value T, domain []T) error {
	for _, v := range domain {
		if v == value {
			return nil
		}
	}
	return failf("Value %v is not an element of the domain", value)
}

// CheckMaxNorm returns an error if maxNorm is nonpositive or +∞.
func CheckMaxNorm(maxNorm float64) error {
	if maxNorm <= 0 || math.IsInf(maxNorm, 0) || math.IsNaN(maxNorm) {
		return failf("MaxNorm is %f, must be strictly positive and finite", maxNorm)
	}
	return nil
}

// CheckConfidence returns an error if the supplied confidence level is not between 0 and 1.
func CheckConfidence(confidence float64) error {
	if confidence <= 0 || confidence >= 1 || math.IsNaN(confidence) {
		return failf("Confidence is %f, must be within (0, 1)", confidence)
	}
	return nil
}

// CheckFinite returns an error if value is NaN or ±∞.
func CheckFinite(value float64, name ...string) error {
	valueName, err := verifyName("Value", name)
	if err != nil {
		return err
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return failf("%s is %f, must be finite", valueName, value)
	}
	return nil
}
