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

	"github.com/google/differential-privacy/quorum/rand"
)

type staircase struct{}

// Staircase returns a Noise instance that adds staircase noise (Geng and
// Viswanath, "The Optimal Noise-Adding Mechanism in Differential Privacy").
// For the same ε it has a smaller expected magnitude than Laplace noise, with
// the gap growing as ε grows. Like Laplace it is pure ε-DP and rejects a
// non-zero delta.
func Staircase() Noise {
	return staircase{}
}

// AddNoiseFloat64 adds staircase noise for sensitivity l0Sensitivity·lInfSensitivity.
func (staircase) AddNoiseFloat64(x float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) (float64, error) {
	if err := checkArgsLaplace(l0Sensitivity, lInfSensitivity, epsilon, delta); err != nil {
		return 0, err
	}
	return x + staircaseSample(epsilon, lInfSensitivity*float64(l0Sensitivity)), nil
}

func (staircase) String() string {
	return "Staircase Noise"
}

// staircaseGamma is the γ minimising the expected noise magnitude.
func staircaseGamma(epsilon float64) float64 {
	return 1 / (1 + math.Exp(epsilon/2))
}

// staircaseSample draws S·((1-B)(G+γU) + B(G+γ+(1-γ)U))·Δ where S is a random
// sign, G ~ Geometric(1-e^-ε) counted from 0, U ~ Uniform(0,1] and B a
// Bernoulli choosing the outer part of the step.
func staircaseSample(epsilon, sensitivity float64) float64 {
	gamma := staircaseGamma(epsilon)
	b := math.Exp(-epsilon)
	g := float64(geometric(epsilon) - 1)
	u := rand.Uniform()
	var magnitude float64
	if rand.Bernoulli((1 - gamma) * b / (gamma + (1-gamma)*b)) {
		magnitude = g + gamma + (1-gamma)*u
	} else {
		magnitude = g + gamma*u
	}
	return rand.Sign() * magnitude * sensitivity
}
