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
	"github.com/google/differential-privacy/quorum/task"
)

func validateBounded(spec task.Spec) error {
	if len(spec.Aggregator.Bounds) == 0 {
		return fmt.Errorf("%w: bounded task declares no fields", task.ErrMalformedInput)
	}
	for field, b := range spec.Aggregator.Bounds {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("field %q: %w", field, err)
		}
	}
	return nil
}

// aggregateBounded passes the records through: they were privatized by the
// clients, so only their fields are checked against the declared bounds.
func aggregateBounded(spec task.Spec, contributions []task.Contribution) (any, error) {
	var rows []map[string]artifact.FieldValue
	for i, c := range contributions {
		for j, r := range c.Records {
			for field, v := range r {
				b, ok := spec.Aggregator.Bounds[field]
				if !ok {
					return nil, fmt.Errorf("%w: contribution %d record %d has undeclared field %q", task.ErrMalformedInput, i, j, field)
				}
				if !b.Contains(v) {
					return nil, fmt.Errorf("%w: contribution %d record %d has an invalid value for %v field %q", task.ErrMalformedInput, i, j, b.Kind, field)
				}
			}
			rows = append(rows, r)
		}
	}
	return artifact.Records{Rows: rows}, nil
}
