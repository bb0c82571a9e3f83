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

package artifact

import "fmt"

// Tensor is a named, row-major array of float64 values.
type Tensor struct {
	Name   string    `json:"name"`
	Shape  []int     `json:"shape"`
	Values []float64 `json:"values"`
}

// Validate returns an error if the number of values does not match the shape.
func (t Tensor) Validate() error {
	size := 1
	for _, d := range t.Shape {
		if d < 0 {
			return fmt.Errorf("tensor %q has negative dimension %d", t.Name, d)
		}
		size *= d
	}
	if size != len(t.Values) {
		return fmt.Errorf("tensor %q has %d values, shape %v needs %d", t.Name, len(t.Values), t.Shape, size)
	}
	return nil
}

// Model is a model architecture name together with its parameters.
type Model struct {
	Architecture string   `json:"architecture"`
	Params       []Tensor `json:"params"`
}

// Param returns the parameter called name.
func (m Model) Param(name string) (Tensor, bool) {
	for _, p := range m.Params {
		if p.Name == name {
			return p, true
		}
	}
	return Tensor{}, false
}

// Gradient is one gradient tensor per model parameter.
type Gradient struct {
	Tensors []Tensor `json:"tensors"`
}

// Components returns the values of each tensor. The slices alias g.
func (g Gradient) Components() [][]float64 {
	out := make([][]float64, len(g.Tensors))
	for i, t := range g.Tensors {
		out[i] = t.Values
	}
	return out
}

// WithComponents returns a copy of g whose tensor values are replaced by
// components, which must match g tensor for tensor.
func (g Gradient) WithComponents(components [][]float64) (Gradient, error) {
	if len(components) != len(g.Tensors) {
		return Gradient{}, fmt.Errorf("got %d components for %d tensors", len(components), len(g.Tensors))
	}
	out := Gradient{Tensors: make([]Tensor, len(g.Tensors))}
	for i, t := range g.Tensors {
		if len(components[i]) != len(t.Values) {
			return Gradient{}, fmt.Errorf("component %d has %d values, tensor %q has %d", i, len(components[i]), t.Name, len(t.Values))
		}
		out.Tensors[i] = Tensor{
			Name:   t.Name,
			Shape:  append([]int(nil), t.Shape...),
			Values: append([]float64(nil), components[i]...),
		}
	}
	return out, nil
}

// Validate returns an error if any tensor is malformed.
func (g Gradient) Validate() error {
	for _, t := range g.Tensors {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	return nil
}
