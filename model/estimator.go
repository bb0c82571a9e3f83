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

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/dpmech"
	"github.com/google/differential-privacy/quorum/noise"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Estimator fits a model to pooled raw rows under (ε, δ)-differential privacy.
type Estimator interface {
	// Fit returns the fitted model for inputs xs and a single output ys.
	Fit(xs [][]float64, ys []float64, epsilon, delta float64) (artifact.Model, error)
}

var estimators = map[string]Estimator{
	"GaussianNB":         GaussianNB{},
	"LinearRegression":   LinearRegression{},
	"LogisticRegression": LogisticRegression{},
}

// LookupEstimator returns the estimator registered under name.
func LookupEstimator(name string) (Estimator, bool) {
	e, ok := estimators[name]
	return e, ok
}

// EstimatorNames returns the registered estimator names in sorted order.
func EstimatorNames() []string {
	var names []string
	for n := range estimators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// boundsConfidence is used for the data-dependent clipping bounds; a false
// positive far out would inflate the noise of the statistics.
const boundsConfidence = 0.9999

// LinearRegression fits y = wᵀx + b by perturbing the sufficient statistics
// XᵀX and Xᵀy of the intercept-augmented data.
//
// Half of ε estimates clipping bounds (ε/4 for the row norm of x, ε/4 for
// |y|) with dpmech.ApproximateBounds; the other half noises XᵀX and Xᵀy with
// ε/4 each using Laplace noise. δ is not consumed.
type LinearRegression struct{}

// Fit implements Estimator.
func (LinearRegression) Fit(xs [][]float64, ys []float64, epsilon, delta float64) (artifact.Model, error) {
	if err := checks.CheckEpsilonStrict(epsilon); err != nil {
		return artifact.Model{}, err
	}
	if err := checks.CheckDelta(delta); err != nil {
		return artifact.Model{}, err
	}
	if len(xs) == 0 || len(xs) != len(ys) {
		return artifact.Model{}, fmt.Errorf("%w: got %d input rows and %d labels", checks.ErrPrecondition, len(xs), len(ys))
	}
	d := len(xs[0])
	norms := make([]float64, len(xs))
	absY := make([]float64, len(ys))
	for i, x := range xs {
		if len(x) != d {
			return artifact.Model{}, fmt.Errorf("%w: row %d has %d inputs, want %d", checks.ErrPrecondition, i, len(x), d)
		}
		norms[i] = floats.Norm(x, 2)
		absY[i] = math.Abs(ys[i])
	}
	opts := &dpmech.BoundsOptions{Confidence: boundsConfidence}
	_, xBound, err := dpmech.ApproximateBounds(norms, epsilon/4, opts)
	if err != nil {
		return artifact.Model{}, fmt.Errorf("estimating input norm bound: %w", err)
	}
	_, yBound, err := dpmech.ApproximateBounds(absY, epsilon/4, opts)
	if err != nil {
		return artifact.Model{}, fmt.Errorf("estimating label bound: %w", err)
	}
	log.V(1).Infof("LinearRegression: clipping inputs to norm %g and labels to %g", xBound, yBound)

	// Augmented rows [x, 1] have squared norm at most xBound²+1.
	da := d + 1
	xtx := mat.NewSymDense(da, nil)
	xty := mat.NewVecDense(da, nil)
	row := make([]float64, da)
	for i, x := range xs {
		copy(row, x)
		if n := norms[i]; n > xBound {
			floats.Scale(xBound/n, row[:d])
		}
		row[d] = 1
		y := math.Max(-yBound, math.Min(yBound, ys[i]))
		xtx.SymRankOne(xtx, 1, mat.NewVecDense(da, row))
		xty.AddScaledVec(xty, y, mat.NewVecDense(da, row))
	}

	rowNormSq := xBound*xBound + 1
	xtxSensitivity := float64(da) * rowNormSq
	xtySensitivity := math.Sqrt(float64(da)*rowNormSq) * yBound
	lap := noise.Laplace()
	noisyXTX := mat.NewDense(da, da, nil)
	for i := 0; i < da; i++ {
		for j := i; j < da; j++ {
			v, err := lap.AddNoiseFloat64(xtx.At(i, j), 1, xtxSensitivity, epsilon/4, 0)
			if err != nil {
				return artifact.Model{}, err
			}
			noisyXTX.Set(i, j, v)
			noisyXTX.Set(j, i, v)
		}
	}
	noisyXTY := mat.NewVecDense(da, nil)
	for i := 0; i < da; i++ {
		v, err := lap.AddNoiseFloat64(xty.AtVec(i), 1, xtySensitivity, epsilon/4, 0)
		if err != nil {
			return artifact.Model{}, err
		}
		noisyXTY.SetVec(i, v)
	}

	var w mat.VecDense
	if err := w.SolveVec(noisyXTX, noisyXTY); err != nil {
		return artifact.Model{}, fmt.Errorf("solving the noisy normal equations: %w", err)
	}
	l, err := NewLinear(d, 1)
	if err != nil {
		return artifact.Model{}, err
	}
	for j := 0; j < d; j++ {
		l.w.Set(0, j, w.AtVec(j))
	}
	l.b.SetVec(0, w.AtVec(d))
	return l.Artifact(), nil
}
