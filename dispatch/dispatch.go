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

// Package dispatch maps a task type to the contract its contributions must
// satisfy and to the mechanism that aggregates them.
package dispatch

import (
	"fmt"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/task"
)

// handler implements one task type.
type handler struct {
	// validate checks the type-specific part of a spec.
	validate func(spec task.Spec) error
	// aggregate pools the contributions and returns the artifact to encode.
	aggregate func(spec task.Spec, contributions []task.Contribution) (any, error)
}

var handlers = map[task.Type]handler{
	task.Basic:      {validate: validateBasic, aggregate: aggregateBasic},
	task.Bounded:    {validate: validateBounded, aggregate: aggregateBounded},
	task.Integrated: {validate: validateIntegrated, aggregate: aggregateIntegrated},
	task.Gradient:   {validate: validateGradient, aggregate: aggregateGradient},
}

func lookup(t task.Type) (handler, error) {
	h, ok := handlers[t]
	if !ok {
		return handler{}, fmt.Errorf("%w: unknown task type %v", task.ErrMalformedInput, t)
	}
	return h, nil
}

// Validate checks a spec before a task is created from it. Every error wraps
// task.ErrMalformedInput.
func Validate(spec task.Spec) error {
	h, err := lookup(spec.Type)
	if err != nil {
		return err
	}
	if err := checks.CheckEpsilonStrict(spec.Epsilon); err != nil {
		return fmt.Errorf("%w: %w", task.ErrMalformedInput, err)
	}
	if err := checks.CheckDelta(spec.Delta); err != nil {
		return fmt.Errorf("%w: %w", task.ErrMalformedInput, err)
	}
	if spec.MinCount < 1 {
		return fmt.Errorf("%w: min_count is %d, must be at least 1", task.ErrMalformedInput, spec.MinCount)
	}
	return h.validate(spec)
}

// Accepts checks that c has the shape of a contribution to a task of the
// given spec. Field-level checks happen in Aggregate.
func Accepts(spec task.Spec, c task.Contribution) error {
	if got := c.Type(); got != spec.Type {
		return fmt.Errorf("%w: contribution has the shape of a %v task, want %v", task.ErrMalformedInput, got, spec.Type)
	}
	return nil
}

// Aggregate runs the mechanism of spec over the pooled contributions and
// returns the encoded result.
func Aggregate(spec task.Spec, contributions []task.Contribution) (string, error) {
	h, err := lookup(spec.Type)
	if err != nil {
		return "", err
	}
	for i, c := range contributions {
		if err := Accepts(spec, c); err != nil {
			return "", fmt.Errorf("contribution %d: %w", i, err)
		}
	}
	log.V(1).Infof("Aggregating %d contributions for a %v task", len(contributions), spec.Type)
	result, err := h.aggregate(spec, contributions)
	if err != nil {
		return "", err
	}
	return artifact.Encode(result)
}
