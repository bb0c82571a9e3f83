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

// Package benchmark measures the accuracy of the Basic aggregations as a
// function of ε.
package benchmark

import (
	"fmt"
	"math"
	"sort"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/dispatch"
	"github.com/google/differential-privacy/quorum/rand"
	"github.com/google/differential-privacy/quorum/task"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Config describes a sweep. Zero fields take the defaults of DefaultConfig.
type Config struct {
	// Statistics to measure.
	Statistics []task.Statistic
	// Epsilons is the grid of privacy budgets.
	Epsilons []float64
	// Delta is passed to every aggregation.
	Delta float64
	// Samples is the number of standard normal contributions per trial.
	Samples int
	// Trials per (statistic, ε) pair.
	Trials int
}

// DefaultConfig is a sweep of every Basic statistic over ε from 0.1 to 100.
var DefaultConfig = Config{
	Statistics: []task.Statistic{task.Mean, task.Median, task.Sum, task.Count},
	Epsilons:   []float64{0.1, 0.3, 1, 3, 10, 30, 100},
	Samples:    1000,
	Trials:     20,
}

func (c Config) withDefaults() Config {
	if len(c.Statistics) == 0 {
		c.Statistics = DefaultConfig.Statistics
	}
	if len(c.Epsilons) == 0 {
		c.Epsilons = DefaultConfig.Epsilons
	}
	if c.Samples == 0 {
		c.Samples = DefaultConfig.Samples
	}
	if c.Trials == 0 {
		c.Trials = DefaultConfig.Trials
	}
	return c
}

// Point is the root-mean-squared error of one statistic at one ε.
type Point struct {
	Epsilon float64
	RMSE    float64
}

// Series is the error curve of one statistic, sorted by ε.
type Series struct {
	Statistic task.Statistic
	Points    []Point
}

// Run measures every statistic of cfg at every ε of cfg. Each trial draws
// fresh samples and aggregates them the way a Basic task would.
func Run(cfg Config) ([]Series, error) {
	cfg = cfg.withDefaults()
	epsilons := append([]float64(nil), cfg.Epsilons...)
	sort.Float64s(epsilons)
	out := make([]Series, 0, len(cfg.Statistics))
	for _, s := range cfg.Statistics {
		series := Series{Statistic: s}
		for _, eps := range epsilons {
			spec := task.Spec{
				Type:       task.Basic,
				Epsilon:    eps,
				Delta:      cfg.Delta,
				MinCount:   cfg.Samples,
				Aggregator: task.Aggregator{Statistic: s},
			}
			if err := dispatch.Validate(spec); err != nil {
				return nil, err
			}
			var sq float64
			for trial := 0; trial < cfg.Trials; trial++ {
				values := make([]float64, cfg.Samples)
				for i := range values {
					values[i] = rand.Normal()
				}
				estimate, err := aggregate(spec, values)
				if err != nil {
					return nil, fmt.Errorf("%v at ε=%g: %w", s, eps, err)
				}
				d := estimate - truth(s, values)
				sq += d * d
			}
			rmse := math.Sqrt(sq / float64(cfg.Trials))
			log.V(1).Infof("%v ε=%g: RMSE %g", s, eps, rmse)
			series.Points = append(series.Points, Point{Epsilon: eps, RMSE: rmse})
		}
		out = append(out, series)
	}
	return out, nil
}

func aggregate(spec task.Spec, values []float64) (float64, error) {
	contributions := make([]task.Contribution, len(values))
	for i, v := range values {
		contributions[i] = task.ScalarContribution(v)
	}
	encoded, err := dispatch.Aggregate(spec, contributions)
	if err != nil {
		return 0, err
	}
	result, err := artifact.DecodeScalar(encoded)
	if err != nil {
		return 0, err
	}
	return result.Value, nil
}

// truth is the exact statistic of values.
func truth(s task.Statistic, values []float64) float64 {
	switch s {
	case task.Mean:
		return stat.Mean(values, nil)
	case task.Median:
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		return stat.Quantile(0.5, stat.Empirical, sorted, nil)
	case task.Sum:
		return floats.Sum(values)
	case task.Count:
		return float64(len(values))
	default:
		return math.NaN()
	}
}
