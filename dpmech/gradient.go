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
	"fmt"
	"math"

	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/noise"
	"gonum.org/v1/gonum/floats"
)

// GradientNorm returns the L2 norm of all components taken together.
func GradientNorm(components [][]float64) float64 {
	var sq float64
	for _, c := range components {
		n := floats.Norm(c, 2)
		sq += n * n
	}
	return math.Sqrt(sq)
}

// PrivatizeGradient clips the gradient to global L2 norm maxNorm and adds
// Gaussian noise with σ = maxNorm·√(2 ln(1.25/δ))/ε to every coordinate. The
// result has the same shape as components, which is left untouched.
func PrivatizeGradient(components [][]float64, epsilon, delta, maxNorm float64) ([][]float64, error) {
	if err := checks.CheckMaxNorm(maxNorm); err != nil {
		return nil, err
	}
	sigma, err := noise.ClassicGaussianSigma(maxNorm, epsilon, delta)
	if err != nil {
		return nil, err
	}
	for _, c := range components {
		for _, v := range c {
			if err := checks.CheckFinite(v, "Gradient coordinate"); err != nil {
				return nil, err
			}
		}
	}
	out := ClipGradient(components, maxNorm)
	for _, c := range out {
		for j, v := range c {
			if c[j], err = noise.AddGaussianNoiseWithSigma(v, sigma); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// ClipGradient returns a copy of components scaled by min(1, maxNorm/‖components‖₂).
func ClipGradient(components [][]float64, maxNorm float64) [][]float64 {
	scale := 1.0
	if norm := GradientNorm(components); norm > maxNorm {
		scale = maxNorm / norm
	}
	out := make([][]float64, len(components))
	for i, c := range components {
		out[i] = make([]float64, len(c))
		floats.ScaleTo(out[i], scale, c)
	}
	return out
}

// MergeGradients returns the elementwise average of gradients, which must
// all have the same shape.
func MergeGradients(gradients [][][]float64) ([][]float64, error) {
	if err := checks.CheckMinSize(len(gradients), 1, "Gradients"); err != nil {
		return nil, err
	}
	first := gradients[0]
	out := make([][]float64, len(first))
	for i, c := range first {
		out[i] = append([]float64(nil), c...)
	}
	for g, grad := range gradients[1:] {
		if len(grad) != len(first) {
			return nil, fmt.Errorf("%w: gradient %d has %d components, want %d", checks.ErrPrecondition, g+1, len(grad), len(first))
		}
		for i, c := range grad {
			if len(c) != len(out[i]) {
				return nil, fmt.Errorf("%w: component %d of gradient %d has length %d, want %d", checks.ErrPrecondition, i, g+1, len(c), len(out[i]))
			}
			floats.Add(out[i], c)
		}
	}
	for _, c := range out {
		floats.Scale(1/float64(len(gradients)), c)
	}
	return out, nil
}
