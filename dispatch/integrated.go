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

	"github.com/google/differential-privacy/quorum/model"
	"github.com/google/differential-privacy/quorum/task"
)

func validateIntegrated(spec task.Spec) error {
	a := spec.Aggregator
	if _, ok := model.LookupEstimator(a.Model); !ok {
		return fmt.Errorf("%w: unknown model %q, want one of %v", task.ErrMalformedInput, a.Model, model.EstimatorNames())
	}
	if len(a.Inputs) == 0 {
		return fmt.Errorf("%w: integrated task declares no inputs", task.ErrMalformedInput)
	}
	if len(a.Outputs) != 1 {
		return fmt.Errorf("%w: integrated task needs exactly one output, got %d", task.ErrMalformedInput, len(a.Outputs))
	}
	return nil
}

// aggregateIntegrated pools the raw rows of every contribution and fits the
// named estimator, which consumes the task's budget.
func aggregateIntegrated(spec task.Spec, contributions []task.Contribution) (any, error) {
	a := spec.Aggregator
	estimator, ok := model.LookupEstimator(a.Model)
	if !ok {
		return nil, fmt.Errorf("%w: unknown model %q", task.ErrMalformedInput, a.Model)
	}
	var xs [][]float64
	var ys []float64
	for i, c := range contributions {
		for j, row := range c.Rows {
			x := make([]float64, len(a.Inputs))
			for k, name := range a.Inputs {
				v, ok := row[name]
				if !ok {
					return nil, fmt.Errorf("%w: contribution %d row %d lacks input %q", task.ErrMalformedInput, i, j, name)
				}
				x[k] = v
			}
			y, ok := row[a.Outputs[0]]
			if !ok {
				return nil, fmt.Errorf("%w: contribution %d row %d lacks output %q", task.ErrMalformedInput, i, j, a.Outputs[0])
			}
			xs, ys = append(xs, x), append(ys, y)
		}
	}
	m, err := estimator.Fit(xs, ys, spec.Epsilon, spec.Delta)
	if err != nil {
		return nil, fmt.Errorf("fitting %s: %w", a.Model, err)
	}
	return m, nil
}
