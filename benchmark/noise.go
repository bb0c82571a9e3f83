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

package benchmark

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/differential-privacy/quorum/noise"
)

// NoiseSeries is the error curve of one noise distribution at sensitivity 1.
type NoiseSeries struct {
	Kind   noise.Kind
	Points []Point
}

// RunNoise measures the root-mean-squared magnitude of each noise kind at
// every ε, with trials draws per point. delta is only used by Gaussian noise.
func RunNoise(kinds []noise.Kind, epsilons []float64, delta float64, trials int) ([]NoiseSeries, error) {
	if trials <= 0 {
		return nil, fmt.Errorf("trials must be positive, got %d", trials)
	}
	epsilons = append([]float64(nil), epsilons...)
	sort.Float64s(epsilons)
	out := make([]NoiseSeries, 0, len(kinds))
	for _, k := range kinds {
		n := noise.ToNoise(k)
		if n == nil {
			return nil, fmt.Errorf("unsupported noise kind %v", k)
		}
		d := 0.0
		if k == noise.GaussianNoise {
			d = delta
		}
		series := NoiseSeries{Kind: k}
		for _, eps := range epsilons {
			var sq float64
			for i := 0; i < trials; i++ {
				v, err := n.AddNoiseFloat64(0, 1, 1, eps, d)
				if err != nil {
					return nil, fmt.Errorf("%v at ε=%g: %w", k, eps, err)
				}
				sq += v * v
			}
			series.Points = append(series.Points, Point{Epsilon: eps, RMSE: math.Sqrt(sq / float64(trials))})
		}
		out = append(out, series)
	}
	return out, nil
}
