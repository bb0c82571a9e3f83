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
	"errors"
	"math"
	"testing"

	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/model"
	"github.com/google/differential-privacy/quorum/task"
	"github.com/google/go-cmp/cmp"
)

func TestContributeBasic(t *testing.T) {
	basic := task.Task{Spec: task.Spec{Type: task.Basic}}
	got, err := Contribute(basic, []task.Record{{"steps": artifact.Num(8042)}})
	if err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	if got.Scalar == nil || *got.Scalar != 8042 {
		t.Errorf("Contribute = %+v, want scalar 8042", got)
	}
	for _, rows := range [][]task.Record{
		nil,
		{{"a": artifact.Num(1)}, {"a": artifact.Num(2)}},
		{{"a": artifact.Num(1), "b": artifact.Num(2)}},
		{{"a": artifact.Cat("x")}},
	} {
		if _, err := Contribute(basic, rows); err == nil {
			t.Errorf("Contribute(%v): got nil error", rows)
		}
	}
}

func TestContributeBoundedWithoutNoise(t *testing.T) {
	bounded := task.Task{Spec: task.Spec{Type: task.Bounded, Epsilon: math.Inf(1), Aggregator: task.Aggregator{
		Bounds: map[string]task.Bounds{
			"age":   {Kind: task.Range, Low: 0, High: 120},
			"city":  {Kind: task.Set, Values: []string{"paris", "rome"}, Default: "other"},
			"rooms": {Kind: task.Set, Values: []string{"1", "2", "3"}, Default: "many"},
		},
	}}}
	rows := []task.Record{
		{"age": artifact.Num(150), "city": artifact.Cat("paris"), "rooms": artifact.Num(2)},
		{"age": artifact.Num(-4), "city": artifact.Cat("berlin"), "rooms": artifact.Num(7)},
		{"age": artifact.Num(40)},
	}
	got, err := Contribute(bounded, rows)
	if err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	want := task.Contribution{Records: []task.Record{
		{"age": artifact.Num(120), "city": artifact.Cat("paris"), "rooms": artifact.Cat("2")},
		{"age": artifact.Num(0), "city": artifact.Cat("other"), "rooms": artifact.Cat("many")},
		{"age": artifact.Num(40)},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Contribute (-want +got):\n%s", diff)
	}
	if *rows[0]["age"].Number != 150 {
		t.Errorf("Contribute modified its input rows: %v", rows)
	}
}

func TestContributeBoundedAddsNoise(t *testing.T) {
	bounded := task.Task{Spec: task.Spec{Type: task.Bounded, Epsilon: 0.1, Aggregator: task.Aggregator{
		Bounds: map[string]task.Bounds{"age": {Kind: task.Range, Low: 0, High: 120}},
	}}}
	got, err := Contribute(bounded, []task.Record{{"age": artifact.Num(30)}})
	if err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	if v := *got.Records[0]["age"].Number; v == 30 {
		t.Errorf("Contribute released the exact value %f", v)
	}
}

func TestContributeBoundedErrors(t *testing.T) {
	bounded := task.Task{Spec: task.Spec{Type: task.Bounded, Epsilon: 1, Aggregator: task.Aggregator{
		Bounds: map[string]task.Bounds{"age": {Kind: task.Range, Low: 0, High: 120}},
	}}}
	if _, err := Contribute(bounded, []task.Record{{"height": artifact.Num(180)}}); !errors.Is(err, task.ErrMalformedInput) {
		t.Errorf("Contribute with an undeclared field: got err %v, want ErrMalformedInput", err)
	}
	if _, err := Contribute(bounded, []task.Record{{"age": artifact.Cat("old")}}); err == nil {
		t.Error("Contribute with a category in a range field: got nil error")
	}
	if _, err := Contribute(bounded, nil); err == nil {
		t.Error("Contribute without rows: got nil error")
	}
}

func TestContributeIntegrated(t *testing.T) {
	integrated := task.Task{Spec: task.Spec{Type: task.Integrated}}
	got, err := Contribute(integrated, []task.Record{
		{"x": artifact.Num(1), "y": artifact.Num(3)},
		{"x": artifact.Num(2), "y": artifact.Num(5)},
	})
	if err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	want := task.Contribution{Rows: []task.Row{{"x": 1, "y": 3}, {"x": 2, "y": 5}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Contribute (-want +got):\n%s", diff)
	}
	for _, rows := range [][]task.Record{
		nil,
		{{"x": artifact.Num(1)}, {"y": artifact.Num(1)}},
		{{"x": artifact.Cat("a")}},
	} {
		if _, err := Contribute(integrated, rows); err == nil {
			t.Errorf("Contribute(%v): got nil error", rows)
		}
	}
}

func TestContributeGradient(t *testing.T) {
	m, err := model.NewLinear(2, 1)
	if err != nil {
		t.Fatalf("NewLinear: %v", err)
	}
	encoded, err := model.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	gradient := task.Task{Spec: task.Spec{Type: task.Gradient, Epsilon: 1e6, Delta: 1e-5, Aggregator: task.Aggregator{
		Model: encoded, Inputs: []string{"a", "b"}, Outputs: []string{"y"}, LearningRate: 0.1, MaxNorm: 0.5,
	}}}
	rows := []task.Record{
		{"a": artifact.Num(1), "b": artifact.Num(0), "y": artifact.Num(2)},
		{"a": artifact.Num(0), "b": artifact.Num(1), "y": artifact.Num(-1)},
	}
	got, err := Contribute(gradient, rows)
	if err != nil {
		t.Fatalf("Contribute: %v", err)
	}
	grad, err := artifact.DecodeGradient(got.Gradient)
	if err != nil {
		t.Fatalf("DecodeGradient: %v", err)
	}
	if len(grad.Tensors) != 2 || len(grad.Tensors[0].Values) != 2 || len(grad.Tensors[1].Values) != 1 {
		t.Fatalf("gradient has the wrong shape: %+v", grad)
	}
	var sq float64
	for _, c := range grad.Components() {
		for _, v := range c {
			sq += v * v
		}
	}
	if norm := math.Sqrt(sq); math.Abs(norm-0.5) > 1e-3 {
		t.Errorf("gradient norm = %f, want the clipping norm 0.5", norm)
	}

	rows[1] = task.Record{"a": artifact.Num(0), "y": artifact.Num(-1)}
	if _, err := Contribute(gradient, rows); err == nil {
		t.Error("Contribute with a missing input: got nil error")
	}
	gradient.Aggregator.Model = "garbage"
	if _, err := Contribute(gradient, rows); !errors.Is(err, task.ErrMalformedInput) {
		t.Errorf("Contribute with an undecodable model: got err %v, want ErrMalformedInput", err)
	}
}

func TestContributeUnknownType(t *testing.T) {
	if _, err := Contribute(task.Task{}, nil); !errors.Is(err, task.ErrMalformedInput) {
		t.Errorf("Contribute(unknown type): got err %v, want ErrMalformedInput", err)
	}
}
