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

package noise

import (
	"math"

	"github.com/google/differential-privacy/quorum/checks"
	"github.com/google/differential-privacy/quorum/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

var (
	// binomialBound is the square root of the largest number of Bernoulli
	// trials behind a binomial sample. With 2⁵⁷ an overflow happens with
	// probability about 2⁻⁴⁵.
	binomialBound = math.Exp2(57.0)
	// geometricBound caps the two-sided geometric samples used by the
	// binomial rejection sampler so that (k+l)·(√(2n)+1) cannot overflow.
	geometricBound int64 = (math.MaxInt64 / int64(math.Round(math.Sqrt2*binomialBound+1.0))) - 1
	// gaussianSigmaAccuracy is the relative accuracy of sigmaForGaussian.
	gaussianSigmaAccuracy = 1e-3
)

type gaussian struct{}

// Gaussian returns a Noise instance that adds Gaussian noise to its input,
// calibrated with the tight analytic bound of Balle and Wang.
//
// Samples are scaled symmetric binomials on a power-of-two grid, which keeps
// them robust against floating point artifacts.
func Gaussian() Noise {
	return gaussian{}
}

// AddNoiseFloat64 adds Gaussian noise to the specified float64, so that its
// output is (ε,δ)-differentially private.
func (gaussian) AddNoiseFloat64(x float64, l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) (float64, error) {
	if err := checkArgsGaussian(l0Sensitivity, lInfSensitivity, epsilon, delta); err != nil {
		return 0, err
	}
	sigma := sigmaForGaussian(l0Sensitivity, lInfSensitivity, epsilon, delta)
	return addGaussian(x, sigma), nil
}

func (gaussian) String() string {
	return "Gaussian Noise"
}

func checkArgsGaussian(l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) error {
	if err := checks.CheckL0Sensitivity(l0Sensitivity); err != nil {
		return err
	}
	if err := checks.CheckLInfSensitivity(lInfSensitivity); err != nil {
		return err
	}
	if err := checks.CheckEpsilonStrict(epsilon); err != nil {
		return err
	}
	return checks.CheckDeltaStrict(delta)
}

// ClassicGaussianSigma returns σ = Δ₂·√(2 ln(1.25/δ))/ε, the calibration of
// the classic Gaussian mechanism for an L2 sensitivity Δ₂.
func ClassicGaussianSigma(l2Sensitivity, epsilon, delta float64) (float64, error) {
	if err := checks.CheckEpsilonStrict(epsilon); err != nil {
		return 0, err
	}
	if err := checks.CheckDeltaStrict(delta); err != nil {
		return 0, err
	}
	if err := checks.CheckLInfSensitivity(l2Sensitivity); err != nil {
		return 0, err
	}
	return l2Sensitivity * math.Sqrt(2*math.Log(1.25/delta)) / epsilon, nil
}

// AddGaussianNoiseWithSigma adds Gaussian noise of standard deviation sigma to
// x. A zero sigma returns x unchanged.
func AddGaussianNoiseWithSigma(x, sigma float64) (float64, error) {
	if sigma == 0 {
		return x, nil
	}
	if err := checks.CheckFinite(sigma, "Sigma"); err != nil {
		return 0, err
	}
	if err := checks.CheckLInfSensitivity(sigma); err != nil {
		return 0, err
	}
	return addGaussian(x, sigma), nil
}

// addGaussian adds Gaussian noise of scale σ to the specified float64.
func addGaussian(x, sigma float64) float64 {
	granularity := ceilPowerOfTwo(2.0 * sigma / binomialBound)
	// sqrtN lies between binomialBound/2 and binomialBound, enough trials for
	// the binomial to track a Gaussian closely.
	sqrtN := 2.0 * sigma / granularity
	sample := symmetricBinomial(sqrtN)
	return roundToMultipleOfPowerOfTwo(x, granularity) + float64(sample)*granularity
}

// symmetricBinomial returns m such that m + n/2 follows Binomial(n, 1/2),
// using the rejection sampler of Bringmann et al., "Internal DLA: Efficient
// Simulation of a Physical Growth Model".
func symmetricBinomial(sqrtN float64) int64 {
	stepSize := int64(math.Round(math.Sqrt2*sqrtN + 1.0))
	for {
		// Failures before the first success.
		k := int64(math.Min(rand.Geometric()-1.0, float64(geometricBound)))
		twoSided := k
		if rand.Boolean() {
			twoSided = -k - 1
		}
		m := stepSize*twoSided + rand.I63n(stepSize)
		p := binomialProbability(sqrtN, m)
		if p > 0.0 && rand.Uniform() < p*float64(stepSize)*math.Pow(2.0, float64(k))/4.0 {
			return m
		}
	}
}

// binomialProbability approximates Pr[m + n/2] for Binomial(n, 1/2), with
// n = sqrtN².
func binomialProbability(sqrtN float64, m int64) float64 {
	fm := float64(m)
	if math.Abs(fm) > sqrtN*math.Sqrt(math.Log(sqrtN)/2.0) {
		return 0.0
	}
	return (math.Sqrt(2.0/math.Pi) / sqrtN) *
		math.Exp((-2.0*fm*fm)/(sqrtN*sqrtN)) *
		(1 - 0.4*math.Pow(2.0, 1.5)*math.Pow(math.Log(sqrtN), 1.5)/sqrtN)
}

// deltaForGaussian returns the smallest δ for which Gaussian noise of standard
// deviation σ is (ε,δ)-differentially private:
//
//	δ = Φ(s/(2σ) - εσ/s) - e^ε·Φ(-s/(2σ) - εσ/s)
//
// where s is the L2 sensitivity (Balle and Wang, Theorem 8).
func deltaForGaussian(sigma float64, l0Sensitivity int64, lInfSensitivity, epsilon float64) float64 {
	s := lInfSensitivity * math.Sqrt(float64(l0Sensitivity))
	a := s / (2 * sigma)
	b := epsilon * sigma / s
	c := math.Exp(epsilon)
	if math.IsInf(c, 1) || math.IsInf(b, 1) {
		return 0
	}
	return distuv.UnitNormal.CDF(a-b) - c*distuv.UnitNormal.CDF(-a-b)
}

// sigmaForGaussian binary searches the smallest σ satisfying (ε,δ) within a
// relative error of gaussianSigmaAccuracy.
func sigmaForGaussian(l0Sensitivity int64, lInfSensitivity, epsilon, delta float64) float64 {
	if delta >= 1 {
		return 0
	}
	// δ decreases in σ, so double from the L2 sensitivity until it is an
	// upper bound, then bisect.
	hi := lInfSensitivity * math.Sqrt(float64(l0Sensitivity))
	var lo float64
	for deltaForGaussian(hi, l0Sensitivity, lInfSensitivity, epsilon) > delta {
		lo = hi
		hi *= 2
	}
	for hi-lo > gaussianSigmaAccuracy*lo {
		mid := lo*0.5 + hi*0.5
		if deltaForGaussian(mid, l0Sensitivity, lInfSensitivity, epsilon) > delta {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi
}
