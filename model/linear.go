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

	"github.com/google/differential-privacy/quorum/artifact"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LinearArchitecture is the architecture name of Linear.
const LinearArchitecture = "linear"

const (
	weightParam = "weight"
	biasParam   = "bias"
)

// Linear is the affine model y = Wx + b with W of shape [outputs, inputs].
type Linear struct {
	w *mat.Dense
	b *mat.VecDense
}

// NewLinear returns a Linear model with all parameters set to 0.
func NewLinear(inputs, outputs int) (*Linear, error) {
	if inputs <= 0 || outputs <= 0 {
		return nil, fmt.Errorf("linear model needs positive dimensions, got %d inputs and %d outputs", inputs, outputs)
	}
	return &Linear{w: mat.NewDense(outputs, inputs, nil), b: mat.NewVecDense(outputs, nil)}, nil
}

func linearFromArtifact(m artifact.Model) (*Linear, error) {
	w, ok := m.Param(weightParam)
	if !ok {
		return nil, fmt.Errorf("linear model has no %q parameter", weightParam)
	}
	b, ok := m.Param(biasParam)
	if !ok {
		return nil, fmt.Errorf("linear model has no %q parameter", biasParam)
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	if len(w.Shape) != 2 || len(b.Shape) != 1 || b.Shape[0] != w.Shape[0] {
		return nil, fmt.Errorf("linear model has weight shape %v and bias shape %v", w.Shape, b.Shape)
	}
	l, err := NewLinear(w.Shape[1], w.Shape[0])
	if err != nil {
		return nil, err
	}
	copy(l.w.RawMatrix().Data, w.Values)
	copy(l.b.RawVector().Data, b.Values)
	return l, nil
}

// Architecture implements Model.
func (l *Linear) Architecture() string { return LinearArchitecture }

// Inputs implements Model.
func (l *Linear) Inputs() int {
	_, c := l.w.Dims()
	return c
}

// Outputs implements Model.
func (l *Linear) Outputs() int {
	r, _ := l.w.Dims()
	return r
}

// Predict implements Model.
func (l *Linear) Predict(x []float64) []float64 {
	var y mat.VecDense
	y.MulVec(l.w, mat.NewVecDense(len(x), append([]float64(nil), x...)))
	y.AddVec(&y, l.b)
	return append([]float64(nil), y.RawVector().Data...)
}

// residuals returns Y - (XWᵀ + 1bᵀ) as an n×outputs matrix.
func (l *Linear) residuals(xs, ys [][]float64) (*mat.Dense, *mat.Dense, error) {
	if err := checkRows(xs, ys, l.Inputs(), l.Outputs()); err != nil {
		return nil, nil, err
	}
	n := len(xs)
	x := mat.NewDense(n, l.Inputs(), nil)
	r := mat.NewDense(n, l.Outputs(), nil)
	for i := range xs {
		x.SetRow(i, xs[i])
		r.SetRow(i, ys[i])
	}
	var pred mat.Dense
	pred.Mul(x, l.w.T())
	for i := 0; i < n; i++ {
		row := pred.RawRowView(i)
		for o := range row {
			row[o] += l.b.AtVec(o)
		}
	}
	r.Sub(r, &pred)
	return x, r, nil
}

// Loss implements Model.
func (l *Linear) Loss(xs, ys [][]float64) (float64, error) {
	_, r, err := l.residuals(xs, ys)
	if err != nil {
		return 0, err
	}
	n, o := r.Dims()
	data := r.RawMatrix().Data
	return floats.Dot(data, data) / float64(n*o), nil
}

// Gradient implements Model. With R the residuals and N·O the number of
// squared terms, ∂/∂W = -2RᵀX/(N·O) and ∂/∂b = -2·colsum(R)/(N·O).
func (l *Linear) Gradient(xs, ys [][]float64) (artifact.Gradient, error) {
	x, r, err := l.residuals(xs, ys)
	if err != nil {
		return artifact.Gradient{}, err
	}
	n, o := r.Dims()
	scale := -2 / float64(n*o)
	var dw mat.Dense
	dw.Mul(r.T(), x)
	dw.Scale(scale, &dw)
	db := make([]float64, o)
	for j := 0; j < o; j++ {
		db[j] = scale * mat.Sum(r.ColView(j))
	}
	return artifact.Gradient{Tensors: []artifact.Tensor{
		{Name: weightParam, Shape: []int{o, l.Inputs()}, Values: append([]float64(nil), dw.RawMatrix().Data...)},
		{Name: biasParam, Shape: []int{o}, Values: db},
	}}, nil
}

// Apply implements Model.
func (l *Linear) Apply(grad artifact.Gradient, opt Optimizer) error {
	params := map[string][]float64{
		weightParam: l.w.RawMatrix().Data,
		biasParam:   l.b.RawVector().Data,
	}
	if len(grad.Tensors) != len(params) {
		return fmt.Errorf("gradient has %d tensors, linear model has %d parameters", len(grad.Tensors), len(params))
	}
	var ps, gs [][]float64
	var names []string
	seen := make(map[string]bool, len(params))
	for _, t := range grad.Tensors {
		p, ok := params[t.Name]
		if !ok {
			return fmt.Errorf("gradient tensor %q matches no parameter", t.Name)
		}
		if seen[t.Name] {
			return fmt.Errorf("gradient tensor %q appears twice", t.Name)
		}
		seen[t.Name] = true
		if len(p) != len(t.Values) {
			return fmt.Errorf("gradient tensor %q has %d values, parameter has %d", t.Name, len(t.Values), len(p))
		}
		ps, gs, names = append(ps, p), append(gs, t.Values), append(names, t.Name)
	}
	return opt.Step(names, ps, gs)
}

// Artifact implements Model.
func (l *Linear) Artifact() artifact.Model {
	return artifact.Model{
		Architecture: LinearArchitecture,
		Params: []artifact.Tensor{
			{Name: weightParam, Shape: []int{l.Outputs(), l.Inputs()}, Values: append([]float64(nil), l.w.RawMatrix().Data...)},
			{Name: biasParam, Shape: []int{l.Outputs()}, Values: append([]float64(nil), l.b.RawVector().Data...)},
		},
	}
}
