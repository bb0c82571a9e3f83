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
	"github.com/google/differential-privacy/quorum/dpmech"
	"github.com/google/differential-privacy/quorum/task"
)

// statistics maps each Basic statistic to its mechanism.
var statistics = map[task.Statistic]func(values []float64, epsilon, delta float64) (float64, error){
	task.Mean:   dpmech.Mean,
	task.Median: dpmech.Median,
	task.Sum:    dpmech.Sum,
	task.Count: func(values []float64, epsilon, _ float64) (float64, error) {
		return dpmech.Count(values, epsilon)
	},
}

func validateBasic(spec task.Spec) error {
	if _, ok := statistics[spec.Aggregator.Statistic]; !ok {
		return fmt.Errorf("%w: unknown statistic %v", task.ErrMalformedInput, spec.Aggregator.Statistic)
	}
	return nil
}

func aggregateBasic(spec task.Spec, contributions []task.Contribution) (any, error) {
	mechanism, ok := statistics[spec.Aggregator.Statistic]
	if !ok {
		return nil, fmt.Errorf("%w: unknown statistic %v", task.ErrMalformedInput, spec.Aggregator.Statistic)
	}
	values := make([]float64, len(contributions))
	for i, c := range contributions {
		values[i] = *c.Scalar
	}
	v, err := mechanism(values, spec.Epsilon, spec.Delta)
	if err != nil {
		return nil, err
	}
	return artifact.Scalar{Value: v}, nil
}
