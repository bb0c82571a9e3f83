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
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/dpmech"
	"github.com/google/differential-privacy/quorum/model"
	"github.com/google/differential-privacy/quorum/stattestutils"
	"github.com/google/differential-privacy/quorum/task"
	"github.com/google/go-cmp/cmp"
	"gonum.org/v1/gonum/stat"
)

func mustEncodeModel(t *testing.T, inputs, outputs int) string {
	t.Helper()
	m, err := model.NewLinear(inputs, outputs)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	s, err := model.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return s
}

func gradientSpec(t *testing.T) task.Spec {
	t.Helper()
	return task.Spec{
		Type:     task.Gradient,
		Epsilon:  1,
		Delta:    1e-5,
		MinCount: 1,
		Aggregator: task.Aggregator{
			Model:        mustEncodeModel(t, 1, 1),
			Inputs:       []string{"x"},
			Outputs:      []string{"y"},
			LearningRate: 0.1,
		},
	}
}

func TestValidate(t *testing.T) {
	basic := task.Spec{Type: task.Basic, Epsilon: 1, MinCount: 1, Aggregator: task.Aggregator{Statistic: task.Mean}}
	bounded := task.Spec{Type: task.Bounded, Epsilon: 1, MinCount: 1, Aggregator: task.Aggregator{
		Bounds: map[string]task.Bounds{"age": {Kind: task.Range, Low: 0, High: 100}},
	}}
	integrated := task.Spec{Type: task.Integrated, Epsilon: 1, MinCount: 1, Aggregator: task.Aggregator{
		Model: "LinearRegression", Inputs: []string{"x"}, Outputs: []string{"y"},
	}}
	gradient := gradientSpec(t)

	with := func(s task.Spec, f func(*task.Spec)) task.Spec {
		s.Aggregator.Bounds = map[string]task.Bounds{}
		for k, v := range bounded.Aggregator.Bounds {
			s.Aggregator.Bounds[k] = v
		}
		f(&s)
		return s
	}

	for _, tc := range []struct {
		desc    string
		spec    task.Spec
		wantErr bool
	}{
		{"basic", basic, false},
		{"bounded", bounded, false},
		{"integrated", integrated, false},
		{"gradient", gradient, false},
		{"unknown type", with(basic, func(s *task.Spec) { s.Type = task.UnknownType }), true},
		{"zero epsilon", with(basic, func(s *task.Spec) { s.Epsilon = 0 }), true},
		{"infinite epsilon", with(basic, func(s *task.Spec) { s.Epsilon = math.Inf(1) }), true},
		{"delta of one", with(basic, func(s *task.Spec) { s.Delta = 1 }), true},
		{"zero min count", with(basic, func(s *task.Spec) { s.MinCount = 0 }), true},
		{"unknown statistic", with(basic, func(s *task.Spec) { s.Aggregator.Statistic = task.UnknownStatistic }), true},
		{"bounded without fields", with(bounded, func(s *task.Spec) { s.Aggregator.Bounds = nil }), true},
		{"inverted range", with(bounded, func(s *task.Spec) {
			s.Aggregator.Bounds["age"] = task.Bounds{Kind: task.Range, Low: 1, High: 0}
		}), true},
		{"naive Bayes", with(integrated, func(s *task.Spec) { s.Aggregator.Model = "GaussianNB" }), false},
		{"logistic regression", with(integrated, func(s *task.Spec) { s.Aggregator.Model = "LogisticRegression" }), false},
		{"unknown estimator", with(integrated, func(s *task.Spec) { s.Aggregator.Model = "RandomForest" }), true},
		{"integrated without inputs", with(integrated, func(s *task.Spec) { s.Aggregator.Inputs = nil }), true},
		{"integrated with two outputs", with(integrated, func(s *task.Spec) { s.Aggregator.Outputs = []string{"y", "z"} }), true},
		{"undecodable model", with(gradient, func(s *task.Spec) { s.Aggregator.Model = "not a model" }), true},
		{"input mismatch", with(gradient, func(s *task.Spec) { s.Aggregator.Inputs = []string{"x", "z"} }), true},
		{"zero learning rate", with(gradient, func(s *task.Spec) { s.Aggregator.LearningRate = 0 }), true},
		{"unknown optimizer", with(gradient, func(s *task.Spec) { s.Aggregator.Optimizer = "lbfgs" }), true},
		{"negative max norm", with(gradient, func(s *task.Spec) { s.Aggregator.MaxNorm = -1 }), true},
		{"gradient without delta", with(gradient, func(s *task.Spec) { s.Delta = 0 }), true},
	} {
		err := Validate(tc.spec)
		if (err != nil) != tc.wantErr {
			t.Errorf("Validate with %s: got err %v, wantErr %t", tc.desc, err, tc.wantErr)
		}
		if err != nil && !errors.Is(err, task.ErrMalformedInput) {
			t.Errorf("Validate with %s: err %v does not wrap ErrMalformedInput", tc.desc, err)
		}
	}
}

func TestAccepts(t *testing.T) {
	spec := task.Spec{Type: task.Basic}
	if err := Accepts(spec, task.ScalarContribution(1)); err != nil {
		t.Errorf("Accepts(scalar): %v", err)
	}
	for _, c := range []task.Contribution{
		{},
		{Rows: []task.Row{{"x": 1}}},
		{Scalar: new(float64), Gradient: "g"},
	} {
		if err := Accepts(spec, c); !errors.Is(err, task.ErrMalformedInput) {
			t.Errorf("Accepts(%+v): got err %v, want ErrMalformedInput", c, err)
		}
	}
}

func scalars(values []float64) []task.Contribution {
	out := make([]task.Contribution, len(values))
	for i, v := range values {
		out[i] = task.ScalarContribution(v)
	}
	return out
}

func TestAggregateBasic(t *testing.T) {
	values := stattestutils.StandardNormalSamples(1000)
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	for _, tc := range []struct {
		stat      task.Statistic
		truth     float64
		tolerance float64
	}{
		{task.Mean, stat.Mean(values, nil), 1},
		{task.Median, stat.Quantile(0.5, stat.Empirical, sorted, nil), 1},
		{task.Count, 1000, 1},
	} {
		spec := task.Spec{Type: task.Basic, Epsilon: 100, MinCount: 1, Aggregator: task.Aggregator{Statistic: tc.stat}}
		encoded, err := Aggregate(spec, scalars(values))
		if err != nil {
			t.Fatalf("Aggregate(%v): %v", tc.stat, err)
		}
		got, err := artifact.DecodeScalar(encoded)
		if err != nil {
			t.Fatalf("DecodeScalar: %v", err)
		}
		if d := got.Value - tc.truth; d*d > tc.tolerance {
			t.Errorf("Aggregate(%v) = %f, want %f within squared error %f", tc.stat, got.Value, tc.truth, tc.tolerance)
		}
	}
}

func TestAggregateBasicPropagatesMechanismErrors(t *testing.T) {
	spec := task.Spec{Type: task.Basic, Epsilon: 1, MinCount: 1, Aggregator: task.Aggregator{Statistic: task.Median}}
	if _, err := Aggregate(spec, scalars([]float64{1})); err == nil {
		t.Error("Aggregate(median of one value): got nil error")
	}
	if _, err := Aggregate(spec, []task.Contribution{{Rows: []task.Row{{"x": 1}}}}); !errors.Is(err, task.ErrMalformedInput) {
		t.Errorf("Aggregate(rows into a basic task): got err %v, want ErrMalformedInput", err)
	}
}

func TestAggregateBounded(t *testing.T) {
	spec := task.Spec{Type: task.Bounded, Epsilon: 1, MinCount: 1, Aggregator: task.Aggregator{Bounds: map[string]task.Bounds{
		"age":  {Kind: task.Range, Low: 0, High: 100},
		"city": {Kind: task.Set, Values: []string{"paris", "rome"}, Default: "other"},
	}}}
	contributions := []task.Contribution{
		{Records: []task.Record{{"age": artifact.Num(131.5), "city": artifact.Cat("other")}}},
		{Records: []task.Record{{"age": artifact.Num(-3)}, {"city": artifact.Cat("rome")}}},
	}
	encoded, err := Aggregate(spec, contributions)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	got, err := artifact.DecodeRecords(encoded)
	if err != nil {
		t.Fatalf("DecodeRecords: %v", err)
	}
	want := artifact.Records{Rows: []map[string]artifact.FieldValue{
		{"age": artifact.Num(131.5), "city": artifact.Cat("other")},
		{"age": artifact.Num(-3)},
		{"city": artifact.Cat("rome")},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Aggregate (-want +got):\n%s", diff)
	}

	for _, bad := range []task.Record{
		{"height": artifact.Num(180)},
		{"city": artifact.Cat("berlin")},
		{"age": artifact.Cat("old")},
	} {
		_, err := Aggregate(spec, []task.Contribution{{Records: []task.Record{bad}}})
		if !errors.Is(err, task.ErrMalformedInput) {
			t.Errorf("Aggregate(%v): got err %v, want ErrMalformedInput", bad, err)
		}
	}
}

func TestAggregateIntegrated(t *testing.T) {
	spec := task.Spec{Type: task.Integrated, Epsilon: 10, MinCount: 1, Aggregator: task.Aggregator{
		Model: "LinearRegression", Inputs: []string{"x"}, Outputs: []string{"y"},
	}}
	var contributions []task.Contribution
	xs := stattestutils.UniformSamples(5000, 0, 1)
	for i := 0; i < len(xs); i += 50 {
		var rows []task.Row
		for _, x := range xs[i : i+50] {
			rows = append(rows, task.Row{"x": x, "y": 2*x + 1})
		}
		contributions = append(contributions, task.Contribution{Rows: rows})
	}
	encoded, err := Aggregate(spec, contributions)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	m, err := model.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := m.Predict([]float64{0.5})[0]; math.Abs(got-2) > 0.1 {
		t.Errorf("fitted model predicts %f at 0.5, want 2 ± 0.1", got)
	}

	missing := []task.Contribution{{Rows: []task.Row{{"x": 1}}}}
	if _, err := Aggregate(spec, missing); !errors.Is(err, task.ErrMalformedInput) {
		t.Errorf("Aggregate(rows without output): got err %v, want ErrMalformedInput", err)
	}
}

func TestAggregateIntegratedClassifiers(t *testing.T) {
	xs := stattestutils.StandardNormalSamples(4000)
	var contributions []task.Contribution
	for i := 0; i < len(xs); i += 40 {
		var rows []task.Row
		for j, x := range xs[i : i+40] {
			// Alternate rows between a class around -2 and a class around 2.
			label := float64((i + j) % 2)
			rows = append(rows, task.Row{"x": x*0.7 + 4*label - 2, "label": label})
		}
		contributions = append(contributions, task.Contribution{Rows: rows})
	}
	for _, name := range []string{"LogisticRegression", "GaussianNB"} {
		spec := task.Spec{Type: task.Integrated, Epsilon: 10, MinCount: 1, Aggregator: task.Aggregator{
			Model: name, Inputs: []string{"x"}, Outputs: []string{"label"},
		}}
		if err := Validate(spec); err != nil {
			t.Fatalf("Validate(%s): %v", name, err)
		}
		encoded, err := Aggregate(spec, contributions)
		if err != nil {
			t.Fatalf("Aggregate(%s): %v", name, err)
		}
		c, err := model.DecodeClassifier(encoded)
		if err != nil {
			t.Fatalf("DecodeClassifier(%s): %v", name, err)
		}
		for x, want := range map[float64]float64{-2: 0, -1: 0, 1: 1, 2: 1} {
			if got := c.Classify([]float64{x}); got != want {
				t.Errorf("%s classifies %v as %v, want %v", name, x, got, want)
			}
		}
	}
}

func TestAggregateGradientReducesLoss(t *testing.T) {
	spec := gradientSpec(t)
	spec.Epsilon = 1e6
	xs := [][]float64{{1}, {2}, {3}}
	ys := [][]float64{{2}, {4}, {6}}
	before, err := model.Decode(spec.Aggregator.Model)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	lossBefore, err := before.Loss(xs, ys)
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}

	var contributions []task.Contribution
	for i := 0; i < 10; i++ {
		grad, err := before.Gradient(xs, ys)
		if err != nil {
			t.Fatalf("Gradient: %v", err)
		}
		noisy, err := dpmech.PrivatizeGradient(grad.Components(), spec.Epsilon, spec.Delta, spec.Aggregator.ClipNorm())
		if err != nil {
			t.Fatalf("PrivatizeGradient: %v", err)
		}
		if grad, err = grad.WithComponents(noisy); err != nil {
			t.Fatalf("WithComponents: %v", err)
		}
		encoded, err := artifact.Encode(grad)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		contributions = append(contributions, task.Contribution{Gradient: encoded})
	}

	encoded, err := Aggregate(spec, contributions)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	after, err := model.Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	lossAfter, err := after.Loss(xs, ys)
	if err != nil {
		t.Fatalf("Loss: %v", err)
	}
	if lossAfter >= lossBefore {
		t.Errorf("loss after one step is %f, want below %f", lossAfter, lossBefore)
	}
}

func TestAggregateGradientRejectsMismatchedShapes(t *testing.T) {
	spec := gradientSpec(t)
	wide, err := model.NewLinear(2, 1)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	grad, err := wide.Gradient([][]float64{{1, 1}}, [][]float64{{1}})
	if err != nil {
		t.Fatalf("Gradient: %v", err)
	}
	encoded, err := artifact.Encode(grad)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, err := Aggregate(spec, []task.Contribution{{Gradient: encoded}}); err == nil {
		t.Error("Aggregate with a gradient of the wrong shape: got nil error")
	}
	if _, err := Aggregate(spec, []task.Contribution{{Gradient: "garbage"}}); !errors.Is(err, task.ErrMalformedInput) {
		t.Errorf("Aggregate with an undecodable gradient: got err %v, want ErrMalformedInput", err)
	}
}
