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

package worker

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"

	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/dpmech"
	"github.com/google/differential-privacy/quorum/model"
	"github.com/google/differential-privacy/quorum/task"
)

// Contribute builds the contribution of local rows to t. Bounded and
// Gradient contributions are privatized here, before they leave the client.
func Contribute(t task.Task, rows []task.Record) (task.Contribution, error) {
	switch t.Type {
	case task.Basic:
		return contributeBasic(rows)
	case task.Bounded:
		return contributeBounded(t.Spec, rows)
	case task.Integrated:
		return contributeIntegrated(rows)
	case task.Gradient:
		return contributeGradient(t.Spec, rows)
	default:
		return task.Contribution{}, fmt.Errorf("%w: unknown task type %v", task.ErrMalformedInput, t.Type)
	}
}

// contributeBasic expects the featurizer to reduce the local data to a
// single number.
func contributeBasic(rows []task.Record) (task.Contribution, error) {
	if len(rows) != 1 || len(rows[0]) != 1 {
		return task.Contribution{}, fmt.Errorf("basic featurizers must return one row with one column, got %d rows", len(rows))
	}
	var col string
	for c := range rows[0] {
		col = c
	}
	v := rows[0][col]
	if v.Number == nil {
		return task.Contribution{}, fmt.Errorf("column %q is not numeric", col)
	}
	return task.ScalarContribution(*v.Number), nil
}

// contributeBounded privatizes every field of every row independently:
// ranges are clamped and noised, set values outside the declared values are
// replaced by the default and then randomized over values ∪ {default}.
func contributeBounded(spec task.Spec, rows []task.Record) (task.Contribution, error) {
	if len(rows) == 0 {
		return task.Contribution{}, fmt.Errorf("bounded featurizer returned no rows")
	}
	out := make([]task.Record, len(rows))
	for i, row := range rows {
		out[i] = make(task.Record, len(row))
		for field, v := range row {
			b, ok := spec.Aggregator.Bounds[field]
			if !ok {
				return task.Contribution{}, fmt.Errorf("%w: field %q has no declared bounds", task.ErrMalformedInput, field)
			}
			private, err := privatizeField(b, v, spec.Epsilon)
			if err != nil {
				return task.Contribution{}, fmt.Errorf("field %q: %w", field, err)
			}
			out[i][field] = private
		}
	}
	return task.Contribution{Records: out}, nil
}

func privatizeField(b task.Bounds, v artifact.FieldValue, epsilon float64) (artifact.FieldValue, error) {
	switch b.Kind {
	case task.Range:
		if v.Number == nil {
			return artifact.FieldValue{}, fmt.Errorf("range field holds a category")
		}
		clamped := math.Max(b.Low, math.Min(b.High, *v.Number))
		noisy, err := dpmech.BoundedContinuous(clamped, b.Low, b.High, epsilon)
		if err != nil {
			return artifact.FieldValue{}, err
		}
		return artifact.Num(noisy), nil
	case task.Set:
		var c string
		switch {
		case v.Category != nil:
			c = *v.Category
		case v.Number != nil:
			c = strconv.FormatFloat(*v.Number, 'g', -1, 64)
		}
		if !slices.Contains(b.Values, c) {
			c = b.Default
		}
		private, err := dpmech.FiniteCategorical(c, b.Domain(), epsilon)
		if err != nil {
			return artifact.FieldValue{}, err
		}
		return artifact.Cat(private), nil
	default:
		return artifact.FieldValue{}, fmt.Errorf("%w: unknown bounds kind %v", task.ErrMalformedInput, b.Kind)
	}
}

// contributeIntegrated sends the rows as they are; the server fits a
// private model over them.
func contributeIntegrated(rows []task.Record) (task.Contribution, error) {
	if len(rows) == 0 {
		return task.Contribution{}, fmt.Errorf("integrated featurizer returned no rows")
	}
	keys := columns(rows[0])
	out := make([]task.Row, len(rows))
	for i, row := range rows {
		if got := columns(row); !slices.Equal(got, keys) {
			return task.Contribution{}, fmt.Errorf("row %d has columns %v, want %v", i, got, keys)
		}
		out[i] = make(task.Row, len(row))
		for k, v := range row {
			if v.Number == nil {
				return task.Contribution{}, fmt.Errorf("row %d column %q is not numeric", i, k)
			}
			out[i][k] = *v.Number
		}
	}
	return task.Contribution{Rows: out}, nil
}

func columns(r task.Record) []string {
	keys := make([]string, 0, len(r))
	for k := range r {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// contributeGradient computes the loss gradient of the task's model on the
// local rows, clips it and adds Gaussian noise.
func contributeGradient(spec task.Spec, rows []task.Record) (task.Contribution, error) {
	a := spec.Aggregator
	m, err := model.Decode(a.Model)
	if err != nil {
		return task.Contribution{}, fmt.Errorf("%w: decoding model: %w", task.ErrMalformedInput, err)
	}
	xs, err := matrix(rows, a.Inputs)
	if err != nil {
		return task.Contribution{}, err
	}
	ys, err := matrix(rows, a.Outputs)
	if err != nil {
		return task.Contribution{}, err
	}
	grad, err := m.Gradient(xs, ys)
	if err != nil {
		return task.Contribution{}, err
	}
	noisy, err := dpmech.PrivatizeGradient(grad.Components(), spec.Epsilon, spec.Delta, a.ClipNorm())
	if err != nil {
		return task.Contribution{}, err
	}
	if grad, err = grad.WithComponents(noisy); err != nil {
		return task.Contribution{}, err
	}
	encoded, err := artifact.Encode(grad)
	if err != nil {
		return task.Contribution{}, err
	}
	return task.Contribution{Gradient: encoded}, nil
}

// matrix extracts the named numeric columns of rows.
func matrix(rows []task.Record, names []string) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = make([]float64, len(names))
		for j, name := range names {
			v, ok := row[name]
			if !ok || v.Number == nil {
				return nil, fmt.Errorf("row %d has no numeric column %q", i, name)
			}
			out[i][j] = *v.Number
		}
	}
	return out, nil
}
