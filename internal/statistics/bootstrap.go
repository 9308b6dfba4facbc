// Package statistics estimates how much a run's pass rate could move if the
// same generator were evaluated on a different sample of cases.
package statistics

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/montanaflynn/stats"
	"github.com/timsvoice/specimin/internal/models"
)

// ConfidenceInterval holds the result of a bootstrap confidence interval computation.
type ConfidenceInterval struct {
	Lower           float64 `json:"lower"`
	Upper           float64 `json:"upper"`
	Mean            float64 `json:"mean"`
	ConfidenceLevel float64 `json:"confidence_level"`
	NumBootstraps   int     `json:"num_bootstraps"`
}

const (
	// DefaultBootstrapIterations is the number of bootstrap resamples.
	DefaultBootstrapIterations = 10000
	// DefaultConfidenceLevel is used for report and metrics output.
	DefaultConfidenceLevel = 0.95
	// DefaultSeed keeps regenerated reports byte-for-byte stable.
	DefaultSeed uint64 = 1
)

// BootstrapCI computes a bootstrap confidence interval for the mean of values
// using the percentile method. confidenceLevel should be in (0, 1), e.g. 0.95.
// With fewer than 2 values the interval collapses onto the mean.
func BootstrapCI(values []float64, confidenceLevel float64, seed uint64) ConfidenceInterval {
	m := mean(values)
	n := len(values)
	if n < 2 {
		return ConfidenceInterval{Lower: m, Upper: m, Mean: m, ConfidenceLevel: confidenceLevel}
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	iters := DefaultBootstrapIterations

	bootMeans := make([]float64, iters)
	sample := make([]float64, n)
	for i := range iters {
		for j := range n {
			sample[j] = values[rng.IntN(n)]
		}
		bootMeans[i] = mean(sample)
	}
	slices.Sort(bootMeans)

	alpha := 1.0 - confidenceLevel
	loIdx := int(math.Floor(alpha / 2.0 * float64(iters)))
	hiIdx := min(int(math.Floor((1.0-alpha/2.0)*float64(iters))), iters-1)

	return ConfidenceInterval{
		Lower:           bootMeans[loIdx],
		Upper:           bootMeans[hiIdx],
		Mean:            m,
		ConfidenceLevel: confidenceLevel,
		NumBootstraps:   iters,
	}
}

// PassRateCI bootstraps the pass rate of results, in percent. Bounds are
// rounded to two decimals like the reported pass rate.
func PassRateCI(results []models.ResultRecord, confidenceLevel float64) ConfidenceInterval {
	outcomes := make([]float64, len(results))
	for i, r := range results {
		if r.Passed {
			outcomes[i] = 100
		}
	}
	ci := BootstrapCI(outcomes, confidenceLevel, DefaultSeed)
	ci.Lower = Round2(ci.Lower)
	ci.Upper = Round2(ci.Upper)
	ci.Mean = Round2(ci.Mean)
	return ci
}

// Round2 rounds v to two decimals, resolving exact halves to the even digit
// (3.125 becomes 3.12). Every reported rate and delta goes through it.
func Round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func mean(values []float64) float64 {
	m, err := stats.Mean(values)
	if err != nil {
		return 0
	}
	return m
}
