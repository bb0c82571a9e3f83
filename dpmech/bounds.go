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

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/noise"
)

const (
	defaultBoundsConfidence  = 0.95
	defaultBoundsMinExponent = -16
	defaultBoundsMaxExponent = 48
)

// BoundsOptions contains the options of ApproximateBounds.
type BoundsOptions struct {
	Confidence  float64 // Probability that no empty bin is reported. Defaults to 0.95.
	MinExponent int     // Values with magnitude below 2^MinExponent share a zero bin. Defaults to -16.
	MaxExponent int     // Values with magnitude above 2^MaxExponent are clamped into the last bin. Defaults to 48.
}

func (o *BoundsOptions) withDefaults() BoundsOptions {
	out := BoundsOptions{
		Confidence:  defaultBoundsConfidence,
		MinExponent: defaultBoundsMinExponent,
		MaxExponent: defaultBoundsMaxExponent,
	}
	if o == nil {
		return out
	}
	if o.Confidence != 0 {
		out.Confidence = o.Confidence
	}
	if o.MinExponent != 0 || o.MaxExponent != 0 {
		out.MinExponent, out.MaxExponent = o.MinExponent, o.MaxExponent
	}
	return out
}

// ApproximateBounds returns ε-differentially private lower and upper bounds
// of data.
//
// Values are counted in exponentially spaced bins, [2^i, 2^(i+1)) for
// positive values, their mirror images for negative values, and one zero bin
// per sign. Every count receives Laplace noise of scale 1/ε and the bounds are
// the outermost edges of the bins whose noisy count exceeds a threshold t
// chosen so that an empty bin exceeds t with probability (1-Confidence)/B,
// where B is the number of bins. If no bin qualifies an error is returned.
func ApproximateBounds(data []float64, epsilon float64, opts *BoundsOptions) (lower, upper float64, err error) {
	o := opts.withDefaults()
	if err := checks.CheckEpsilonVeryStrict(epsilon); err != nil {
		return 0, 0, err
	}
	if err := checks.CheckConfidence(o.Confidence); err != nil {
		return 0, 0, err
	}
	if o.MinExponent >= o.MaxExponent {
		return 0, 0, fmt.Errorf("%w: MinExponent %d must be smaller than MaxExponent %d", checks.ErrPrecondition, o.MinExponent, o.MaxExponent)
	}
	if err := checks.CheckMinSize(len(data), 1); err != nil {
		return 0, 0, err
	}
	h := newLogHistogram(o.MinExponent, o.MaxExponent)
	for _, v := range data {
		if err := checks.CheckFinite(v, "Data value"); err != nil {
			return 0, 0, err
		}
		h.add(v)
	}

	numBins := 2 * h.binsPerSign()
	threshold := -noise.LaplaceQuantile(1/epsilon, (1-o.Confidence)/float64(numBins))
	lap := noise.Laplace()
	noisyPos := make([]float64, h.binsPerSign())
	noisyNeg := make([]float64, h.binsPerSign())
	for i := range noisyPos {
		if noisyPos[i], err = lap.AddNoiseFloat64(float64(h.pos[i]), 1, 1, epsilon, 0); err != nil {
			return 0, 0, err
		}
		if noisyNeg[i], err = lap.AddNoiseFloat64(float64(h.neg[i]), 1, 1, epsilon, 0); err != nil {
			return 0, 0, err
		}
	}

	lowest, highest := math.Inf(1), math.Inf(-1)
	for i := range noisyPos {
		if noisyNeg[i] > threshold {
			lowest = math.Min(lowest, -h.upperEdge(i))
			highest = math.Max(highest, -h.lowerEdge(i))
		}
		if noisyPos[i] > threshold {
			lowest = math.Min(lowest, h.lowerEdge(i))
			highest = math.Max(highest, h.upperEdge(i))
		}
	}
	if math.IsInf(lowest, 1) {
		return 0, 0, fmt.Errorf("%w: no bin count exceeds the threshold %f; more data or a larger epsilon is needed", checks.ErrPrecondition, threshold)
	}
	log.V(1).Infof("ApproximateBounds: threshold %f over %d bins gives [%g, %g]", threshold, numBins, lowest, highest)
	return lowest, highest, nil
}

// logHistogram counts magnitudes per sign. Bin 0 holds [0, 2^minExp) and bin
// j ≥ 1 holds [2^(minExp+j-1), 2^(minExp+j)); the last bin is closed and
// absorbs larger magnitudes.
type logHistogram struct {
	minExp   int
	pos, neg []int64
}

func newLogHistogram(minExp, maxExp int) *logHistogram {
	n := maxExp - minExp + 1
	return &logHistogram{minExp: minExp, pos: make([]int64, n), neg: make([]int64, n)}
}

func (h *logHistogram) binsPerSign() int {
	return len(h.pos)
}

func (h *logHistogram) add(v float64) {
	if v < 0 {
		h.neg[h.bin(-v)]++
		return
	}
	h.pos[h.bin(v)]++
}

func (h *logHistogram) bin(magnitude float64) int {
	if magnitude < math.Ldexp(1, h.minExp) {
		return 0
	}
	// magnitude = frac·2^exp with frac in [0.5, 1), so ⌊log2⌋ = exp-1.
	_, exp := math.Frexp(magnitude)
	j := exp - h.minExp
	if j > h.binsPerSign()-1 {
		j = h.binsPerSign() - 1
	}
	return j
}

func (h *logHistogram) lowerEdge(j int) float64 {
	if j == 0 {
		return 0
	}
	return math.Ldexp(1, h.minExp+j-1)
}

func (h *logHistogram) upperEdge(j int) float64 {
	return math.Ldexp(1, h.minExp+j)
}
