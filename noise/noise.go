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

// Package noise contains methods to generate and add noise to data.
package noise

import (
	"fmt"

	log "github.com/golang/glog"
)

// Kind is an enum type. Its values are the supported noise distributions types
// for differential privacy operations.
type Kind int

// Noise distributions used to achieve Differential Privacy.
const (
	LaplaceNoise Kind = iota
	GaussianNoise
	StaircaseNoise
	Unrecognised
)

func (k Kind) String() string {
	switch k {
	case LaplaceNoise:
		return "laplace"
	case GaussianNoise:
		return "gaussian"
	case StaircaseNoise:
		return "staircase"
	default:
		return fmt.Sprintf("unrecognised(%d)", int(k))
	}
}

// ParseKind returns the Kind named s, or Unrecognised with an error.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{LaplaceNoise, GaussianNoise, StaircaseNoise} {
		if k.String() == s {
			return k, nil
		}
	}
	return Unrecognised, fmt.Errorf("unknown noise kind %q", s)
}

// ToNoise converts a Kind into a Noise instance.
func ToNoise(k Kind) Noise {
	switch k {
	case LaplaceNoise:
		return Laplace()
	case GaussianNoise:
		return Gaussian()
	case StaircaseNoise:
		return Staircase()
	case Unrecognised:
		log.Warningf("ToNoise: Unrecognised noise specified, returning nil")
	default:
		log.Warningf("ToNoise: unknown kind (%v) specified, returning nil", k)
	}
	return nil
}

// ToKind converts a Noise instance into a Kind.
func ToKind(n Noise) Kind {
	switch n {
	case Laplace():
		return LaplaceNoise
	case Gaussian():
		return GaussianNoise
	case Staircase():
		return StaircaseNoise
	case nil:
		log.Warningf("ToKind: nil noise specified, returning Unrecognised")
	default:
		log.Warningf("ToKind: unknown Noise (%v) specified, returning Unrecognised", n)
	}
	return Unrecognised
}

// Noise is an interface for primitives that add noise to data to make it differentially private.
type Noise interface {
	// AddNoiseFloat64 adds noise to the specified float64 x so that the output is
	// (ε,δ)-differentially private given the L_0 and L_∞ sensitivities of the database.
	// Invalid parameters are reported as an error wrapping checks.ErrPrecondition.
	AddNoiseFloat64(x float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) (float64, error)
}
