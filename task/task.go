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

// Package task holds the data model shared by the platform, the protocol and
// the workers: task specs, task records and contributions.
package task

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/differential-privacy/quorum/artifact"
)

// ErrMalformedInput is wrapped by every error caused by a malformed spec or
// contribution.
var ErrMalformedInput = errors.New("malformed input")

// Spec is what a coordinator declares when creating a task.
type Spec struct {
	Type    Type    `json:"type"`
	Epsilon float64 `json:"epsilon"`
	Delta   float64 `json:"delta,omitempty"`
	// Featurizer is the query a worker runs against its local store. It is
	// opaque to the platform.
	Featurizer string     `json:"featurizer"`
	MinCount   int        `json:"min_count"`
	Aggregator Aggregator `json:"aggregator"`
}

// Aggregator carries the type-specific part of a Spec. Only the fields of the
// spec's Type are read.
type Aggregator struct {
	// Basic.
	Statistic Statistic `json:"statistic,omitempty"`

	// Bounded. Maps every field a record may carry to its bounds.
	Bounds map[string]Bounds `json:"bounds,omitempty"`

	// Integrated and Gradient. For Integrated, Model names an estimator; for
	// Gradient it is an encoded artifact.Model.
	Model   string   `json:"model,omitempty"`
	Inputs  []string `json:"inputs,omitempty"`
	Outputs []string `json:"outputs,omitempty"`

	// Gradient only.
	LearningRate float64 `json:"learning_rate,omitempty"`
	Optimizer    string  `json:"optimizer,omitempty"` // "adam" when empty
	MaxNorm      float64 `json:"max_norm,omitempty"`  // DefaultMaxNorm when zero
}

// DefaultMaxNorm is the clipping norm of gradient tasks that do not set one.
const DefaultMaxNorm = 1.0

// ClipNorm returns MaxNorm, or DefaultMaxNorm if it is unset.
func (a Aggregator) ClipNorm() float64 {
	if a.MaxNorm == 0 {
		return DefaultMaxNorm
	}
	return a.MaxNorm
}

// Bounds declares the values a Bounded field may take: a finite set of
// categories with a default for values outside it, or a numeric range.
type Bounds struct {
	Kind BoundsKind `json:"kind"`

	// Set.
	Values  []string `json:"values,omitempty"`
	Default string   `json:"default,omitempty"`

	// Range.
	Low  float64 `json:"low,omitempty"`
	High float64 `json:"high,omitempty"`
}

// Validate checks that b is well formed.
func (b Bounds) Validate() error {
	switch b.Kind {
	case Set:
		if len(b.Values) == 0 {
			return fmt.Errorf("%w: set bounds need at least one value", ErrMalformedInput)
		}
		seen := make(map[string]bool, len(b.Values))
		for _, v := range b.Values {
			if seen[v] {
				return fmt.Errorf("%w: duplicate set value %q", ErrMalformedInput, v)
			}
			seen[v] = true
		}
		if len(b.Domain()) < 2 {
			return fmt.Errorf("%w: set bounds %v with default %q leave a single category", ErrMalformedInput, b.Values, b.Default)
		}
	case Range:
		if math.IsNaN(b.Low) || math.IsInf(b.Low, 0) || math.IsNaN(b.High) || math.IsInf(b.High, 0) {
			return fmt.Errorf("%w: range bounds must be finite, got [%f, %f]", ErrMalformedInput, b.Low, b.High)
		}
		if b.Low > b.High {
			return fmt.Errorf("%w: range lower bound %f exceeds upper bound %f", ErrMalformedInput, b.Low, b.High)
		}
	default:
		return fmt.Errorf("%w: unknown bounds kind %v", ErrMalformedInput, b.Kind)
	}
	return nil
}

// Domain returns the categories a Set field can be released as: Values
// extended with Default.
func (b Bounds) Domain() []string {
	domain := append([]string(nil), b.Values...)
	for _, v := range b.Values {
		if v == b.Default {
			return domain
		}
	}
	return append(domain, b.Default)
}

// Contains reports whether v is a value the field may be released as.
func (b Bounds) Contains(v artifact.FieldValue) bool {
	switch b.Kind {
	case Set:
		if v.Category == nil || v.Number != nil {
			return false
		}
		for _, c := range b.Domain() {
			if c == *v.Category {
				return true
			}
		}
		return false
	case Range:
		// Privatized values leave the range, so only the shape is checked.
		return v.Number != nil && v.Category == nil
	default:
		return false
	}
}

// Task is the platform's record of one task.
type Task struct {
	ID string `json:"id"`
	Spec
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	CompletedAt time.Time `json:"completed_at"`
	// Result is the encoded artifact of a Complete task.
	Result string `json:"result,omitempty"`
	// Error describes why an Error task failed.
	Error string `json:"error,omitempty"`
	Count int    `json:"count"`
}

// Record is one row of a Bounded contribution.
type Record = map[string]artifact.FieldValue

// Row is one labeled feature row of an Integrated contribution.
type Row = map[string]float64

// Contribution is one client's payload for one task. Exactly the field
// matching the task's Type is set.
type Contribution struct {
	Scalar  *float64 `json:"scalar,omitempty"`
	Records []Record `json:"records,omitempty"`
	Rows    []Row    `json:"rows,omitempty"`
	// Gradient is an encoded artifact.Gradient.
	Gradient string `json:"gradient,omitempty"`
}

// Type returns the task type whose contract c has the shape of, or
// UnknownType if c sets no field or more than one.
func (c Contribution) Type() Type {
	var set []Type
	if c.Scalar != nil {
		set = append(set, Basic)
	}
	if c.Records != nil {
		set = append(set, Bounded)
	}
	if c.Rows != nil {
		set = append(set, Integrated)
	}
	if c.Gradient != "" {
		set = append(set, Gradient)
	}
	if len(set) != 1 {
		return UnknownType
	}
	return set[0]
}

// ScalarContribution returns a Basic contribution of v.
func ScalarContribution(v float64) Contribution {
	return Contribution{Scalar: &v}
}
