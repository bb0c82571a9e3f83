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

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/dpmech"
	"github.com/google/differential-privacy/quorum/noise"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogisticArchitecture is the architecture name of Logistic.
const LogisticArchitecture = "logistic"

const (
	defaultLogisticLambda = 0.01
	logisticIterations    = 2000
	logisticTolerance     = 1e-9
)

// Logistic is a linear classifier. With two classes a single score
// wᵀx + b selects classes[1] when positive; with more classes each row of W
// scores one class against the rest and the highest score wins.
type Logistic struct {
	classes []float64
	w       *mat.Dense
	b       []float64
}

func logisticFromArtifact(m artifact.Model) (*Logistic, error) {
	ps, err := params(m, classesParam, weightParam, biasParam)
	if err != nil {
		return nil, err
	}
	classes, w, b := ps[0], ps[1], ps[2]
	k := len(classes.Values)
	if k < 2 || len(w.Shape) != 2 || w.Shape[1] == 0 || len(b.Shape) != 1 || b.Shape[0] != w.Shape[0] {
		return nil, fmt.Errorf("logistic model has %d classes, weight shape %v and bias shape %v", k, w.Shape, b.Shape)
	}
	if rows := w.Shape[0]; (k == 2 && rows != 1) || (k > 2 && rows != k) {
		return nil, fmt.Errorf("logistic model with %d classes has %d weight rows", k, rows)
	}
	return &Logistic{
		classes: append([]float64(nil), classes.Values...),
		w:       mat.NewDense(w.Shape[0], w.Shape[1], append([]float64(nil), w.Values...)),
		b:       append([]float64(nil), b.Values...),
	}, nil
}

// Architecture implements Classifier.
func (l *Logistic) Architecture() string { return LogisticArchitecture }

// Inputs implements Classifier.
func (l *Logistic) Inputs() int {
	_, c := l.w.Dims()
	return c
}

// Classes implements Classifier.
func (l *Logistic) Classes() []float64 { return append([]float64(nil), l.classes...) }

// Score returns wᵀx + b for every row of W.
func (l *Logistic) Score(x []float64) []float64 {
	r, _ := l.w.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = floats.Dot(l.w.RawRowView(i), x) + l.b[i]
	}
	return out
}

// Classify implements Classifier.
func (l *Logistic) Classify(x []float64) float64 {
	scores := l.Score(x)
	if len(l.classes) == 2 {
		if scores[0] > 0 {
			return l.classes[1]
		}
		return l.classes[0]
	}
	return l.classes[floats.MaxIdx(scores)]
}

// Artifact implements Classifier.
func (l *Logistic) Artifact() artifact.Model {
	r, c := l.w.Dims()
	return artifact.Model{
		Architecture: LogisticArchitecture,
		Params: []artifact.Tensor{
			{Name: classesParam, Shape: []int{len(l.classes)}, Values: append([]float64(nil), l.classes...)},
			{Name: weightParam, Shape: []int{r, c}, Values: append([]float64(nil), l.w.RawMatrix().Data...)},
			{Name: biasParam, Shape: []int{r}, Values: append([]float64(nil), l.b...)},
		},
	}
}

// LogisticRegression fits an L2-regularized logistic regression with output
// perturbation (Chaudhuri, Monteleoni and Sarwate, "Differentially Private
// Empirical Risk Minimization").
//
// Half of ε bounds the row norm of x with dpmech.ApproximateBounds. Rows are
// clipped to that norm and mapped to z = [x/bound, 1]/√2, so that ‖z‖ ≤ 1 and
// the regularized minimizer has L2 sensitivity 2/(nλ). The other half of ε
// adds Laplace noise to every coefficient, split evenly over the
// one-vs-rest problems when there are more than two classes. δ is not
// consumed.
type LogisticRegression struct {
	// Lambda is the regularization strength. Zero selects 0.01.
	Lambda float64
}

// Fit implements Estimator.
func (e LogisticRegression) Fit(xs [][]float64, ys []float64, epsilon, delta float64) (artifact.Model, error) {
	if err := checks.CheckEpsilonStrict(epsilon); err != nil {
		return artifact.Model{}, err
	}
	if err := checks.CheckDelta(delta); err != nil {
		return artifact.Model{}, err
	}
	lambda := e.Lambda
	if lambda == 0 {
		lambda = defaultLogisticLambda
	}
	if lambda < 0 || math.IsNaN(lambda) || math.IsInf(lambda, 0) {
		return artifact.Model{}, fmt.Errorf("%w: Lambda must be finite and positive, got %f", checks.ErrPrecondition, lambda)
	}
	d, err := checkFitRows(xs, ys)
	if err != nil {
		return artifact.Model{}, err
	}
	classes, err := labelClasses(ys)
	if err != nil {
		return artifact.Model{}, err
	}
	norms := make([]float64, len(xs))
	for i, x := range xs {
		norms[i] = floats.Norm(x, 2)
	}
	_, xBound, err := dpmech.ApproximateBounds(norms, epsilon/2, &dpmech.BoundsOptions{Confidence: boundsConfidence})
	if err != nil {
		return artifact.Model{}, fmt.Errorf("estimating input norm bound: %w", err)
	}
	log.V(1).Infof("LogisticRegression: clipping inputs to norm %g", xBound)

	zs := make([][]float64, len(xs))
	for i, x := range xs {
		z := make([]float64, d+1)
		scale := 1 / xBound
		if norms[i] > xBound {
			scale = 1 / norms[i]
		}
		floats.ScaleTo(z[:d], scale/math.Sqrt2, x)
		z[d] = 1 / math.Sqrt2
		zs[i] = z
	}

	problems := len(classes)
	if problems == 2 {
		problems = 1
	}
	epsPerProblem := epsilon / 2 / float64(problems)
	l1Sensitivity := math.Sqrt(float64(d+1)) * 2 / (float64(len(xs)) * lambda)
	lap := noise.Laplace()
	out := &Logistic{classes: classes, w: mat.NewDense(problems, d, nil), b: make([]float64, problems)}
	signs := make([]float64, len(ys))
	for p := 0; p < problems; p++ {
		positive := classes[p]
		if problems == 1 {
			positive = classes[1]
		}
		for i, y := range ys {
			signs[i] = -1
			if y == positive {
				signs[i] = 1
			}
		}
		coef := minimizeLogistic(zs, signs, lambda)
		for j := range coef {
			if coef[j], err = lap.AddNoiseFloat64(coef[j], 1, l1Sensitivity, epsPerProblem, 0); err != nil {
				return artifact.Model{}, err
			}
		}
		// Undo the input map: wᵀz = (w/(bound·√2))ᵀx + w_d/√2.
		for j := 0; j < d; j++ {
			out.w.Set(p, j, coef[j]/(xBound*math.Sqrt2))
		}
		out.b[p] = coef[d] / math.Sqrt2
	}
	return out.Artifact(), nil
}

// minimizeLogistic runs gradient descent on
// (1/n)·Σ log(1 + exp(-yᵢ·wᵀzᵢ)) + (λ/2)‖w‖² for labels yᵢ ∈ {-1, 1}. With
// ‖zᵢ‖ ≤ 1 the objective is (1/4+λ)-smooth, which fixes the step size.
func minimizeLogistic(zs [][]float64, signs []float64, lambda float64) []float64 {
	n := float64(len(zs))
	w := make([]float64, len(zs[0]))
	grad := make([]float64, len(w))
	step := 1 / (0.25 + lambda)
	for it := 0; it < logisticIterations; it++ {
		floats.ScaleTo(grad, lambda, w)
		for i, z := range zs {
			margin := signs[i] * floats.Dot(w, z)
			floats.AddScaled(grad, -signs[i]*sigmoid(-margin)/n, z)
		}
		if floats.Norm(grad, 2) < logisticTolerance {
			break
		}
		floats.AddScaled(w, -step, grad)
	}
	return w
}

func sigmoid(t float64) float64 {
	return 1 / (1 + math.Exp(-t))
}
