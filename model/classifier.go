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

package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/checks"
)

const classesParam = "classes"

// Classifier assigns one of a fixed set of labels to an input row.
type Classifier interface {
	Architecture() string
	Inputs() int
	// Classes returns the labels in increasing order.
	Classes() []float64
	// Classify returns the most likely label of x, which must hold Inputs()
	// values.
	Classify(x []float64) float64
	Artifact() artifact.Model
}

// ClassifierFromArtifact rebuilds a Classifier from its encoded parameters.
func ClassifierFromArtifact(m artifact.Model) (Classifier, error) {
	switch m.Architecture {
	case LogisticArchitecture:
		return logisticFromArtifact(m)
	case NaiveBayesArchitecture:
		return naiveBayesFromArtifact(m)
	default:
		return nil, fmt.Errorf("unknown classifier architecture %q", m.Architecture)
	}
}

// DecodeClassifier decodes an encoded artifact.Model and rebuilds it as a
// Classifier.
func DecodeClassifier(encoded string) (Classifier, error) {
	m, err := artifact.DecodeModel(encoded)
	if err != nil {
		return nil, err
	}
	return ClassifierFromArtifact(m)
}

// labelClasses returns the distinct labels of ys in increasing order.
func labelClasses(ys []float64) ([]float64, error) {
	seen := make(map[float64]bool)
	var classes []float64
	for i, y := range ys {
		if math.IsNaN(y) || math.IsInf(y, 0) {
			return nil, fmt.Errorf("%w: label %d is %v", checks.ErrPrecondition, i, y)
		}
		if !seen[y] {
			seen[y] = true
			classes = append(classes, y)
		}
	}
	if len(classes) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 classes, got %d", checks.ErrPrecondition, len(classes))
	}
	sort.Float64s(classes)
	return classes, nil
}

// checkFitRows validates the rows handed to an Estimator and returns the
// number of inputs.
func checkFitRows(xs [][]float64, ys []float64) (int, error) {
	if len(xs) == 0 || len(xs) != len(ys) {
		return 0, fmt.Errorf("%w: got %d input rows and %d labels", checks.ErrPrecondition, len(xs), len(ys))
	}
	d := len(xs[0])
	if d == 0 {
		return 0, fmt.Errorf("%w: rows have no inputs", checks.ErrPrecondition)
	}
	for i, x := range xs {
		if len(x) != d {
			return 0, fmt.Errorf("%w: row %d has %d inputs, want %d", checks.ErrPrecondition, i, len(x), d)
		}
	}
	return d, nil
}

// params looks up the named tensors of m and checks that each is consistent
// with its shape.
func params(m artifact.Model, names ...string) ([]artifact.Tensor, error) {
	out := make([]artifact.Tensor, len(names))
	for i, name := range names {
		p, ok := m.Param(name)
		if !ok {
			return nil, fmt.Errorf("%s model has no %q parameter", m.Architecture, name)
		}
		if err := p.Validate(); err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}
