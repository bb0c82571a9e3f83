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

package dispatch

import (
	"fmt"

	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/dpmech"
	"github.com/google/differential-privacy/quorum/model"
	"github.com/google/differential-privacy/quorum/task"
)

func validateGradient(spec task.Spec) error {
	a := spec.Aggregator
	m, err := model.Decode(a.Model)
	if err != nil {
		return fmt.Errorf("%w: decoding model: %w", task.ErrMalformedInput, err)
	}
	if len(a.Inputs) != m.Inputs() {
		return fmt.Errorf("%w: model takes %d inputs, task declares %d", task.ErrMalformedInput, m.Inputs(), len(a.Inputs))
	}
	if len(a.Outputs) != m.Outputs() {
		return fmt.Errorf("%w: model has %d outputs, task declares %d", task.ErrMalformedInput, m.Outputs(), len(a.Outputs))
	}
	if _, err := model.NewOptimizer(a.Optimizer, a.LearningRate); err != nil {
		return fmt.Errorf("%w: %w", task.ErrMalformedInput, err)
	}
	if err := checks.CheckMaxNorm(a.ClipNorm()); err != nil {
		return fmt.Errorf("%w: %w", task.ErrMalformedInput, err)
	}
	// Clients privatize their gradients with the Gaussian mechanism.
	if err := checks.CheckDeltaStrict(spec.Delta); err != nil {
		return fmt.Errorf("%w: %w", task.ErrMalformedInput, err)
	}
	return nil
}

// aggregateGradient averages the privatized gradients, clips the average to
// the task's norm and applies one optimizer step to the task's model. No
// noise is added here.
func aggregateGradient(spec task.Spec, contributions []task.Contribution) (any, error) {
	a := spec.Aggregator
	m, err := model.Decode(a.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: decoding model: %w", task.ErrMalformedInput, err)
	}
	opt, err := model.NewOptimizer(a.Optimizer, a.LearningRate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", task.ErrMalformedInput, err)
	}
	var template artifact.Gradient
	components := make([][][]float64, len(contributions))
	for i, c := range contributions {
		g, err := artifact.DecodeGradient(c.Gradient)
		if err != nil {
			return nil, fmt.Errorf("%w: contribution %d: %w", task.ErrMalformedInput, i, err)
		}
		if i == 0 {
			template = g
		}
		components[i] = g.Components()
	}
	merged, err := dpmech.MergeGradients(components)
	if err != nil {
		return nil, err
	}
	grad, err := template.WithComponents(dpmech.ClipGradient(merged, a.ClipNorm()))
	if err != nil {
		return nil, err
	}
	if err := m.Apply(grad, opt); err != nil {
		return nil, fmt.Errorf("applying merged gradient: %w", err)
	}
	return m.Artifact(), nil
}
