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
	"fmt"
	"math"

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/artifact"
	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/dpmech"
	"github.com/google/differential-privacy/quorum/noise"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NaiveBayesArchitecture is the architecture name of NaiveBayes.
const NaiveBayesArchitecture = "gaussian_nb"

const (
	priorParam    = "prior"
	meanParam     = "mean"
	varianceParam = "variance"
)

// minVarianceFraction floors each variance at this fraction of the squared
// width of its feature range.
const minVarianceFraction = 1e-6

// NaiveBayes is a Gaussian naive Bayes classifier: every feature is normal
// given the class, independently of the other features.
type NaiveBayes struct {
	classes  []float64
	prior    []float64
	mean     *mat.Dense // classes × inputs
	variance *mat.Dense // classes × inputs
}

func naiveBayesFromArtifact(m artifact.Model) (*NaiveBayes, error) {
	ps, err := params(m, classesParam, priorParam, meanParam, varianceParam)
	if err != nil {
		return nil, err
	}
	classes, prior, mean, variance := ps[0], ps[1], ps[2], ps[3]
	k := len(classes.Values)
	if k < 2 || len(prior.Values) != k || len(mean.Shape) != 2 || mean.Shape[0] != k || mean.Shape[1] == 0 {
		return nil, fmt.Errorf("naive Bayes model has %d classes, %d priors and mean shape %v", k, len(prior.Values), mean.Shape)
	}
	if len(variance.Shape) != 2 || variance.Shape[0] != k || variance.Shape[1] != mean.Shape[1] {
		return nil, fmt.Errorf("naive Bayes model has mean shape %v and variance shape %v", mean.Shape, variance.Shape)
	}
	for _, v := range variance.Values {
		if !(v > 0) {
			return nil, fmt.Errorf("naive Bayes model has non-positive variance %v", v)
		}
	}
	return &NaiveBayes{
		classes:  append([]float64(nil), classes.Values...),
		prior:    append([]float64(nil), prior.Values...),
		mean:     mat.NewDense(k, mean.Shape[1], append([]float64(nil), mean.Values...)),
		variance: mat.NewDense(k, mean.Shape[1], append([]float64(nil), variance.Values...)),
	}, nil
}

// Architecture implements Classifier.
func (nb *NaiveBayes) Architecture() string { return NaiveBayesArchitecture }

// Inputs implements Classifier.
func (nb *NaiveBayes) Inputs() int {
	_, c := nb.mean.Dims()
	return c
}

// Classes implements Classifier.
func (nb *NaiveBayes) Classes() []float64 { return append([]float64(nil), nb.classes...) }

// LogLikelihood returns log P(class) + log p(x | class) for every class.
func (nb *NaiveBayes) LogLikelihood(x []float64) []float64 {
	out := make([]float64, len(nb.classes))
	for c := range out {
		ll := math.Log(nb.prior[c])
		mu, v := nb.mean.RawRowView(c), nb.variance.RawRowView(c)
		for j, xj := range x {
			diff := xj - mu[j]
			ll -= 0.5*math.Log(2*math.Pi*v[j]) + diff*diff/(2*v[j])
		}
		out[c] = ll
	}
	return out
}

// Classify implements Classifier.
func (nb *NaiveBayes) Classify(x []float64) float64 {
	return nb.classes[floats.MaxIdx(nb.LogLikelihood(x))]
}

// Artifact implements Classifier.
func (nb *NaiveBayes) Artifact() artifact.Model {
	k, d := nb.mean.Dims()
	return artifact.Model{
		Architecture: NaiveBayesArchitecture,
		Params: []artifact.Tensor{
			{Name: classesParam, Shape: []int{k}, Values: append([]float64(nil), nb.classes...)},
			{Name: priorParam, Shape: []int{k}, Values: append([]float64(nil), nb.prior...)},
			{Name: meanParam, Shape: []int{k, d}, Values: append([]float64(nil), nb.mean.RawMatrix().Data...)},
			{Name: varianceParam, Shape: []int{k, d}, Values: append([]float64(nil), nb.variance.RawMatrix().Data...)},
		},
	}
}

// GaussianNB fits a NaiveBayes classifier from noisy per-class sufficient
// statistics.
//
// Half of ε estimates a range [lo, hi] per feature with
// dpmech.ApproximateBounds (ε/(2d) each) and clamps the feature to it. The
// other half is split in three: noisy class counts, noisy sums of x-lo and
// noisy sums of (x-lo)², the last two spread evenly over the d features.
// Classes partition the rows, so each class spends the same budget. δ is not
// consumed.
type GaussianNB struct{}

// Fit implements Estimator.
func (GaussianNB) Fit(xs [][]float64, ys []float64, epsilon, delta float64) (artifact.Model, error) {
	if err := checks.CheckEpsilonStrict(epsilon); err != nil {
		return artifact.Model{}, err
	}
	if err := checks.CheckDelta(delta); err != nil {
		return artifact.Model{}, err
	}
	d, err := checkFitRows(xs, ys)
	if err != nil {
		return artifact.Model{}, err
	}
	classes, err := labelClasses(ys)
	if err != nil {
		return artifact.Model{}, err
	}
	index := make(map[float64]int, len(classes))
	for c, y := range classes {
		index[y] = c
	}

	lo, width := make([]float64, d), make([]float64, d)
	col := make([]float64, len(xs))
	opts := &dpmech.BoundsOptions{Confidence: boundsConfidence}
	for j := 0; j < d; j++ {
		for i, x := range xs {
			col[i] = x[j]
		}
		low, high, err := dpmech.ApproximateBounds(col, epsilon/2/float64(d), opts)
		if err != nil {
			return artifact.Model{}, fmt.Errorf("estimating bounds of input %d: %w", j, err)
		}
		lo[j], width[j] = low, high-low
	}
	log.V(1).Infof("GaussianNB: feature lower bounds %v, widths %v", lo, width)

	k := len(classes)
	counts := make([]float64, k)
	sums := mat.NewDense(k, d, nil)
	squares := mat.NewDense(k, d, nil)
	for i, x := range xs {
		c := index[ys[i]]
		counts[c]++
		for j, xj := range x {
			v := math.Max(0, math.Min(width[j], xj-lo[j]))
			sums.Set(c, j, sums.At(c, j)+v)
			squares.Set(c, j, squares.At(c, j)+v*v)
		}
	}

	epsCount := epsilon / 6
	epsFeature := epsilon / 6 / float64(d)
	lap := noise.Laplace()
	out := &NaiveBayes{
		classes:  classes,
		prior:    make([]float64, k),
		mean:     mat.NewDense(k, d, nil),
		variance: mat.NewDense(k, d, nil),
	}
	for c := 0; c < k; c++ {
		n, err := lap.AddNoiseFloat64(counts[c], 1, 1, epsCount, 0)
		if err != nil {
			return artifact.Model{}, err
		}
		n = math.Max(n, 1)
		out.prior[c] = n
		for j := 0; j < d; j++ {
			s, err := lap.AddNoiseFloat64(sums.At(c, j), 1, width[j], epsFeature, 0)
			if err != nil {
				return artifact.Model{}, err
			}
			sq, err := lap.AddNoiseFloat64(squares.At(c, j), 1, width[j]*width[j], epsFeature, 0)
			if err != nil {
				return artifact.Model{}, err
			}
			m := math.Max(0, math.Min(width[j], s/n))
			v := sq/n - m*m
			// A range of width w holds no distribution with variance above w²/4.
			v = math.Max(minVarianceFraction*width[j]*width[j], math.Min(width[j]*width[j]/4, v))
			out.mean.Set(c, j, lo[j]+m)
			out.variance.Set(c, j, v)
		}
	}
	floats.Scale(1/floats.Sum(out.prior), out.prior)
	return out.Artifact(), nil
}
