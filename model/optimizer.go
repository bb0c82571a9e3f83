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
)

// Optimizer updates parameters in place along their gradients.
type Optimizer interface {
	// Step applies one update. names identify the parameters so stateful
	// optimizers can keep per-parameter state; params[i] and grads[i] have
	// equal lengths.
	Step(names []string, params, grads [][]float64) error
}

// Optimizer names accepted by NewOptimizer.
const (
	AdamOptimizer = "adam"
	SGDOptimizer  = "sgd"
)

// NewOptimizer returns the optimizer called name with learning rate lr. An
// empty name selects Adam.
func NewOptimizer(name string, lr float64) (Optimizer, error) {
	if !(lr > 0) || math.IsInf(lr, 1) {
		return nil, fmt.Errorf("learning rate is %f, must be strictly positive and finite", lr)
	}
	switch name {
	case "", AdamOptimizer:
		return NewAdam(lr), nil
	case SGDOptimizer:
		return &SGD{LR: lr}, nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", name)
	}
}

// SGD is plain gradient descent: p -= LR·g.
type SGD struct {
	LR float64
}

// Step implements Optimizer.
func (s *SGD) Step(names []string, params, grads [][]float64) error {
	if err := checkStep(names, params, grads); err != nil {
		return err
	}
	for i := range params {
		for j := range params[i] {
			params[i][j] -= s.LR * grads[i][j]
		}
	}
	return nil
}

// Adam is the optimizer of Kingma and Ba with bias-corrected moment
// estimates. A fresh Adam moves every coordinate by about LR on its first
// step, whatever the gradient magnitude.
type Adam struct {
	LR, Beta1, Beta2, Epsilon float64

	t    int
	m, v map[string][]float64
}

// NewAdam returns an Adam optimizer with the usual defaults β₁ = 0.9,
// β₂ = 0.999 and ε = 1e-8.
func NewAdam(lr float64) *Adam {
	return &Adam{LR: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

// Step implements Optimizer.
func (a *Adam) Step(names []string, params, grads [][]float64) error {
	if err := checkStep(names, params, grads); err != nil {
		return err
	}
	if a.m == nil {
		a.m, a.v = make(map[string][]float64), make(map[string][]float64)
	}
	a.t++
	c1 := 1 - math.Pow(a.Beta1, float64(a.t))
	c2 := 1 - math.Pow(a.Beta2, float64(a.t))
	for i, name := range names {
		m, v := a.m[name], a.v[name]
		if len(m) != len(params[i]) {
			m, v = make([]float64, len(params[i])), make([]float64, len(params[i]))
			a.m[name], a.v[name] = m, v
		}
		for j, g := range grads[i] {
			m[j] = a.Beta1*m[j] + (1-a.Beta1)*g
			v[j] = a.Beta2*v[j] + (1-a.Beta2)*g*g
			params[i][j] -= a.LR * (m[j] / c1) / (math.Sqrt(v[j]/c2) + a.Epsilon)
		}
	}
	return nil
}

func checkStep(names []string, params, grads [][]float64) error {
	if len(names) != len(params) || len(params) != len(grads) {
		return fmt.Errorf("got %d names, %d parameters and %d gradients", len(names), len(params), len(grads))
	}
	for i := range params {
		if len(params[i]) != len(grads[i]) {
			return fmt.Errorf("parameter %q has %d values, its gradient %d", names[i], len(params[i]), len(grads[i]))
		}
	}
	return nil
}
