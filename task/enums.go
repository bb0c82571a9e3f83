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

package task

import (
	"fmt"
)

// Type selects the contribution contract and the aggregation of a task.
type Type int

// Task types.
const (
	UnknownType Type = iota
	Basic
	Bounded
	Integrated
	Gradient
)

var typeNames = map[Type]string{
	Basic:      "basic",
	Bounded:    "bounded",
	Integrated: "integrated",
	Gradient:   "gradient",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// MarshalText implements encoding.TextMarshaler.
func (t Type) MarshalText() ([]byte, error) {
	name, ok := typeNames[t]
	if !ok {
		return nil, fmt.Errorf("%w: unknown task type %d", ErrMalformedInput, int(t))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Type) UnmarshalText(text []byte) error {
	return unmarshalEnum(typeNames, "task type", text, t)
}

// Status is the lifecycle state of a task. Transitions only go
// Pending → Running → Complete or Error.
type Status int

// Task states.
const (
	Pending Status = iota
	Running
	Complete
	Error
)

var statusNames = map[Status]string{
	Pending:  "pending",
	Running:  "running",
	Complete: "complete",
	Error:    "error",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// Terminal reports whether s is Complete or Error.
func (s Status) Terminal() bool {
	return s == Complete || s == Error
}

// CanTransition reports whether a task may move from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case Pending:
		return next == Running
	case Running:
		return next == Complete || next == Error
	default:
		return false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	name, ok := statusNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown status %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	return unmarshalEnum(statusNames, "status", text, s)
}

// Statistic is the mechanism a Basic task applies to the pooled scalars.
type Statistic int

// Basic statistics.
const (
	UnknownStatistic Statistic = iota
	Mean
	Median
	Sum
	Count
)

var statisticNames = map[Statistic]string{
	Mean:   "mean",
	Median: "median",
	Sum:    "sum",
	Count:  "count",
}

func (s Statistic) String() string {
	if name, ok := statisticNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Statistic) MarshalText() ([]byte, error) {
	name, ok := statisticNames[s]
	if !ok {
		return nil, fmt.Errorf("%w: unknown statistic %d", ErrMalformedInput, int(s))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Statistic) UnmarshalText(text []byte) error {
	return unmarshalEnum(statisticNames, "statistic", text, s)
}

// BoundsKind discriminates the two shapes of Bounds.
type BoundsKind int

// Bounds kinds.
const (
	UnknownBounds BoundsKind = iota
	Set
	Range
)

var boundsKindNames = map[BoundsKind]string{
	Set:   "set",
	Range: "range",
}

func (k BoundsKind) String() string {
	if name, ok := boundsKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k BoundsKind) MarshalText() ([]byte, error) {
	name, ok := boundsKindNames[k]
	if !ok {
		return nil, fmt.Errorf("%w: unknown bounds kind %d", ErrMalformedInput, int(k))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *BoundsKind) UnmarshalText(text []byte) error {
	return unmarshalEnum(boundsKindNames, "bounds kind", text, k)
}

func unmarshalEnum[E comparable](names map[E]string, what string, text []byte, dst *E) error {
	for e, name := range names {
		if name == string(text) {
			*dst = e
			return nil
		}
	}
	return fmt.Errorf("%w: unknown %s %q", ErrMalformedInput, what, text)
}
