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

package dpmech

import (
	"fmt"
	"math"

	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Statistic maps a group of values to a single value.
type Statistic func([]float64) float64

// Average is the arithmetic mean of a group.
func Average(values []float64) float64 {
	return stat.Mean(values, nil)
}

// Total is the sum of a group.
func Total(values []float64) float64 {
	return floats.Sum(values)
}

// SampleAndAggregate shuffles data, splits it into the given number of
// contiguous groups, applies statistic to each group and releases the
// differentially private Median of the group results.
//
// Group sizes differ by at most one, larger groups first. partitions ≤ 0
// selects ⌊√n⌋; otherwise 2 ≤ partitions ≤ n is required. delta is passed to
// Median unchanged.
func SampleAndAggregate(data []float64, statistic Statistic, epsilon float64, partitions int, delta float64) (float64, error) {
	if statistic == nil {
		return 0, fmt.Errorf("%w: statistic must not be nil", checks.ErrPrecondition)
	}
	if partitions <= 0 {
		partitions = defaultPartitions(len(data))
	}
	if err := checks.CheckPartitions(partitions, len(data)); err != nil {
		return 0, err
	}
	results := make([]float64, 0, partitions)
	for _, group := range split(rand.Float64s(data), partitions) {
		results = append(results, statistic(group))
	}
	return Median(results, epsilon, delta)
}

// Mean estimates the average of data with SampleAndAggregate over ⌊√n⌋ groups.
func Mean(data []float64, epsilon, delta float64) (float64, error) {
	return SampleAndAggregate(data, Average, epsilon, 0, delta)
}

// Sum estimates the total of data as ⌊√n⌋ times the SampleAndAggregate
// estimate of a group total.
func Sum(data []float64, epsilon, delta float64) (float64, error) {
	partitions := defaultPartitions(len(data))
	v, err := SampleAndAggregate(data, Total, epsilon, partitions, delta)
	if err != nil {
		return 0, err
	}
	return float64(partitions) * v, nil
}

func defaultPartitions(n int) int {
	return int(math.Sqrt(float64(n)))
}

// split divides values into parts contiguous groups whose sizes differ by at
// most one; the first n mod parts groups get the extra element.
func split(values []float64, parts int) [][]float64 {
	out := make([][]float64, 0, parts)
	size, extra := len(values)/parts, len(values)%parts
	start := 0
	for i := 0; i < parts; i++ {
		end := start + size
		if i < extra {
			end++
		}
		out = append(out, values[start:end])
		start = end
	}
	return out
}
