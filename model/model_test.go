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
	"math"
	"testing"

	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/stattestutils"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func mustLinear(t *testing.T, w [][]float64, b []float64) *Linear {
	t.Helper()
	l, err := NewLinear(len(w[0]), len(w))
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	for o := range w {
		for i := range w[o] {
			l.w.Set(o, i, w[o][i])
		}
		l.b.SetVec(o, b[o])
	}
	return l
}

func TestLinearPredict(t *testing.T) {
	l := mustLinear(t, [][]float64{{1, 2}, {0, -1}}, []float64{0.5, 3})
	got := l.Predict([]float64{2, 1})
	if diff := cmp.Diff([]float64{4.5, 2}, got); diff != "" {
		t.Errorf("Predict (-want +got):\n%s", diff)
	}
}

func TestLinearGradientMatchesFiniteDifferences(t *testing.T) {
	l := mustLinear(t, [][]float64{{0.3, -0.2}}, []float64{0.1})
	xs := [][]float64{{1, 2}, {-1, 0.5}, {0, 3}}
	ys := [][]float64{{1}, {0}, {-2}}
	grad, err := l.Gradient(xs, ys)
	if err != nil {
		t.Fatalf("Gradient: %v", err)
	}
	const h = 1e-6
	params := [][]float64{l.w.RawMatrix().Data, l.b.RawVector().Data}
	for p, values := range params {
		for j := range values {
			orig := values[j]
			values[j] = orig + h
			up, _ := l.Loss(xs, ys)
			values[j] = orig - h
			down, _ := l.Loss(xs, ys)
			values[j] = orig
			want := (up - down) / (2 * h)
			if got := grad.Tensors[p].Values[j]; math.Abs(got-want) > 1e-6 {
				t.Errorf("gradient of %s[%d] = %f, finite difference %f", grad.Tensors[p].Name, j, got, want)
			}
		}
	}
}

func TestLinearArtifactRoundTrip(t *testing.T) {
	l := mustLinear(t, [][]float64{{1, 2, 3}}, []float64{-4})
	encoded, err := Encode(l)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if diff := cmp.Diff(l.Artifact(), m.Artifact()); diff != "" {
		t.Errorf("Decode(Encode(l)) (-want +got):\n%s", diff)
	}
	if m.Inputs() != 3 || m.Outputs() != 1 {
		t.Errorf("got %d inputs and %d outputs, want 3 and 1", m.Inputs(), m.Outputs())
	}
}

func TestFromArtifactErrors(t *testing.T) {
	for _, tc := range []struct {
		desc string
		m    artifact.Model
	}{
		{"unknown architecture", artifact.Model{Architecture: "transformer"}},
		{"missing bias", artifact.Model{Architecture: LinearArchitecture, Params: []artifact.Tensor{
			{Name: "weight", Shape: []int{1, 1}, Values: []float64{1}},
		}}},
		{"mismatched bias", artifact.Model{Architecture: LinearArchitecture, Params: []artifact.Tensor{
			{Name: "weight", Shape: []int{1, 2}, Values: []float64{1, 2}},
			{Name: "bias", Shape: []int{2}, Values: []float64{0, 0}},
		}}},
		{"bad tensor", artifact.Model{Architecture: LinearArchitecture, Params: []artifact.Tensor{
			{Name: "weight", Shape: []int{1, 2}, Values: []float64{1}},
			{Name: "bias", Shape: []int{1}, Values: []float64{0}},
		}}},
	} {
		if _, err := FromArtifact(tc.m); err == nil {
			t.Errorf("FromArtifact with %s: got nil error", tc.desc)
		}
	}
}

func TestOptimizers(t *testing.T) {
	sgd, err := NewOptimizer(SGDOptimizer, 0.5)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	params := [][]float64{{1, 2}}
	if err := sgd.Step([]string{"p"}, params, [][]float64{{2, -2}}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	if diff := cmp.Diff([][]float64{{0, 3}}, params); diff != "" {
		t.Errorf("SGD step (-want +got):\n%s", diff)
	}

	adam, err := NewOptimizer("", 0.1)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	params = [][]float64{{1, 2}}
	if err := adam.Step([]string{"p"}, params, [][]float64{{100, -0.001}}); err != nil {
		t.Fatalf("Step: %v", err)
	}
	// The first Adam step moves each coordinate by about LR.
	if diff := cmp.Diff([][]float64{{0.9, 2.1}}, params, cmpopts.EquateApprox(0, 1e-4)); diff != "" {
		t.Errorf("Adam step (-want +got):\n%s", diff)
	}

	for _, tc := range []struct {
		name string
		lr   float64
	}{
		{"rmsprop", 0.1},
		{AdamOptimizer, 0},
		{SGDOptimizer, math.Inf(1)},
	} {
		if _, err := NewOptimizer(tc.name, tc.lr); err == nil {
			t.Errorf("NewOptimizer(%q, %f): got nil error", tc.name, tc.lr)
		}
	}
	if err := adam.Step([]string{"p"}, [][]float64{{1}}, [][]float64{{1, 2}}); err == nil {
		t.Error("Step with mismatched gradient: got nil error")
	}
}

func TestApplyDecreasesLoss(t *testing.T) {
	l, err := NewLinear(1, 1)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	xs := [][]float64{{1}, {1}, {1}}
	ys := [][]float64{{2}, {2}, {2}}
	opt, err := NewOptimizer(AdamOptimizer, 0.1)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	prev, _ := l.Loss(xs, ys)
	for i := 0; i < 5; i++ {
		grad, err := l.Gradient(xs, ys)
		if err != nil {
			t.Fatalf("Gradient: %v", err)
		}
		if err := l.Apply(grad, opt); err != nil {
			t.Fatalf("Apply: %v", err)
		}
		loss, _ := l.Loss(xs, ys)
		if loss >= prev {
			t.Fatalf("step %d: loss %f did not decrease from %f", i, loss, prev)
		}
		prev = loss
	}
	if err := l.Apply(artifact.Gradient{Tensors: []artifact.Tensor{{Name: "weight", Values: []float64{1}}}}, opt); err == nil {
		t.Error("Apply with a missing tensor: got nil error")
	}
}

func TestApplyRejectsRepeatedTensor(t *testing.T) {
	l := mustLinear(t, [][]float64{{1}}, []float64{1})
	opt, err := NewOptimizer(SGDOptimizer, 0.5)
	if err != nil {
		t.Fatalf("NewOptimizer: %v", err)
	}
	grad := artifact.Gradient{Tensors: []artifact.Tensor{
		{Name: "weight", Shape: []int{1, 1}, Values: []float64{1}},
		{Name: "weight", Shape: []int{1, 1}, Values: []float64{1}},
	}}
	if err := l.Apply(grad, opt); err == nil {
		t.Error("Apply with a repeated weight tensor: got nil error")
	}
	want := []artifact.Tensor{
		{Name: "weight", Shape: []int{1, 1}, Values: []float64{1}},
		{Name: "bias", Shape: []int{1}, Values: []float64{1}},
	}
	if diff := cmp.Diff(want, l.Artifact().Params); diff != "" {
		t.Errorf("rejected Apply changed the parameters (-want +got):\n%s", diff)
	}
}

func TestLinearRegressionEstimator(t *testing.T) {
	const n = 5000
	e, ok := LookupEstimator("LinearRegression")
	if !ok {
		t.Fatalf("LookupEstimator: LinearRegression not registered, have %v", EstimatorNames())
	}
	xs := make([][]float64, n)
	ys := make([]float64, n)
	for i, x := range stattestutils.UniformSamples(n, 0, 1) {
		xs[i] = []float64{x}
		ys[i] = 2*x + 1
	}
	got, err := e.Fit(xs, ys, 10, 0)
	if err != nil {
		t.Fatalf("Fit: %v", err)
	}
	m, err := FromArtifact(got)
	if err != nil {
		t.Fatalf("FromArtifact: %v", err)
	}
	for _, x := range []float64{0, 0.5, 1} {
		if pred := m.Predict([]float64{x})[0]; math.Abs(pred-(2*x+1)) > 0.1 {
			t.Errorf("fitted model predicts %f at x = %f, want %f ± 0.1", pred, x, 2*x+1)
		}
	}
	if _, err := e.Fit(nil, nil, 1, 0); err == nil {
		t.Error("Fit without rows: got nil error")
	}
	if _, err := e.Fit(xs, ys, 0, 0); err == nil {
		t.Error("Fit with zero epsilon: got nil error")
	}
}
