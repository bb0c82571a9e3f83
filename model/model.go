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

// Package model provides the small model capability used by federated
// gradient tasks and integrated learning tasks: differentiable models that
// round-trip through artifact.Model, optimizers that apply one gradient step,
// and differentially private estimators that fit a model in one shot.
package model

import (
	"fmt"

	"github.com/google/differential-privacy/quorum/artifact"
)

// Model is a differentiable model with named parameter tensors.
type Model interface {
	// Architecture names the model family, e.g. "linear".
	Architecture() string
	Inputs() int
	Outputs() int
	// Predict returns the model output for one input row.
	Predict(x []float64) []float64
	// Loss returns the mean squared error over the rows of xs and ys.
	Loss(xs, ys [][]float64) (float64, error)
	// Gradient returns the gradient of Loss with respect to every parameter.
	Gradient(xs, ys [][]float64) (artifact.Gradient, error)
	// Apply updates the parameters with one optimizer step along grad.
	Apply(grad artifact.Gradient, opt Optimizer) error
	// Artifact returns a snapshot of the architecture and parameters.
	Artifact() artifact.Model
}

// FromArtifact rebuilds a Model from its encoded parameters.
func FromArtifact(m artifact.Model) (Model, error) {
	switch m.Architecture {
	case LinearArchitecture:
		return linearFromArtifact(m)
	default:
		return nil, fmt.Errorf("unknown model architecture %q", m.Architecture)
	}
}

// Decode decodes an encoded artifact.Model and rebuilds it.
func Decode(encoded string) (Model, error) {
	m, err := artifact.DecodeModel(encoded)
	if err != nil {
		return nil, err
	}
	return FromArtifact(m)
}

// Encode encodes the model as an artifact string.
func Encode(m Model) (string, error) {
	a := m.Artifact()
	return artifact.Encode(&a)
}

func checkRows(xs, ys [][]float64, inputs, outputs int) error {
	if len(xs) == 0 {
		return fmt.Errorf("no rows")
	}
	if len(xs) != len(ys) {
		return fmt.Errorf("got %d input rows and %d output rows", len(xs), len(ys))
	}
	for i := range xs {
		if len(xs[i]) != inputs {
			return fmt.Errorf("row %d has %d inputs, want %d", i, len(xs[i]), inputs)
		}
		if len(ys[i]) != outputs {
			return fmt.Errorf("row %d has %d outputs, want %d", i, len(ys[i]), outputs)
		}
	}
	return nil
}
