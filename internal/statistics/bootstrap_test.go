package statistics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timsvoice/specimin/internal/models"
)

func TestBootstrapCI_Degenerate(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single value", []float64{0.75}, 0.75},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ci := BootstrapCI(tt.values, 0.95, 42)
			assert.Equal(t, tt.want, ci.Mean)
			assert.Equal(t, tt.want, ci.Lower)
			assert.Equal(t, tt.want, ci.Upper)
			assert.Zero(t, ci.NumBootstraps)
		})
	}
}

func TestBootstrapCI_IdenticalValues(t *testing.T) {
	ci := BootstrapCI([]float64{0.5, 0.5, 0.5, 0.5}, 0.95, 42)
	assert.InDelta(t, 0.5, ci.Lower, 1e-9)
	assert.InDelta(t, 0.5, ci.Upper, 1e-9)
}

func TestBootstrapCI_KnownDistribution(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0}
	ci := BootstrapCI(values, 0.95, 42)

	assert.InDelta(t, 0.55, ci.Mean, 1e-9)
	assert.Less(t, ci.Lower, ci.Mean)
	assert.Greater(t, ci.Upper, ci.Mean)
	assert.GreaterOrEqual(t, ci.Lower, 0.1)
	assert.LessOrEqual(t, ci.Upper, 1.0)
	assert.Equal(t, DefaultBootstrapIterations, ci.NumBootstraps)
	assert.Equal(t, 0.95, ci.ConfidenceLevel)
}

func TestBootstrapCI_WiderAtHigherConfidence(t *testing.T) {
	values := []float64{0.3, 0.5, 0.7, 0.4, 0.6, 0.2, 0.8}
	narrow := BootstrapCI(values, 0.80, 7)
	wide := BootstrapCI(values, 0.99, 7)

	assert.LessOrEqual(t, wide.Lower, narrow.Lower)
	assert.GreaterOrEqual(t, wide.Upper, narrow.Upper)
}

func TestBootstrapCI_SameSeedSameInterval(t *testing.T) {
	values := []float64{0, 1, 1, 0, 1, 1, 1, 0}
	assert.Equal(t, BootstrapCI(values, 0.95, 3), BootstrapCI(values, 0.95, 3))
}

func TestPassRateCI(t *testing.T) {
	t.Run("all passing", func(t *testing.T) {
		results := []models.ResultRecord{{ExecutionResult: models.ExecutionResult{Passed: true}}, {ExecutionResult: models.ExecutionResult{Passed: true}}, {ExecutionResult: models.ExecutionResult{Passed: true}}}
		ci := PassRateCI(results, DefaultConfidenceLevel)
		assert.Equal(t, 100.0, ci.Mean)
		assert.Equal(t, 100.0, ci.Lower)
		assert.Equal(t, 100.0, ci.Upper)
	})

	t.Run("mixed", func(t *testing.T) {
		results := make([]models.ResultRecord, 10)
		for i := range 7 {
			results[i].Passed = true
		}
		ci := PassRateCI(results, DefaultConfidenceLevel)
		assert.Equal(t, 70.0, ci.Mean)
		assert.Less(t, ci.Lower, 70.0)
		assert.Greater(t, ci.Upper, 70.0)
		assert.GreaterOrEqual(t, ci.Lower, 0.0)
		assert.LessOrEqual(t, ci.Upper, 100.0)
	})

	t.Run("reproducible", func(t *testing.T) {
		results := []models.ResultRecord{{ExecutionResult: models.ExecutionResult{Passed: true}}, {ExecutionResult: models.ExecutionResult{Passed: false}}, {ExecutionResult: models.ExecutionResult{Passed: true}}, {ExecutionResult: models.ExecutionResult{Passed: false}}}
		require.Equal(t, PassRateCI(results, 0.9), PassRateCI(results, 0.9))
	})
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{3.125, 3.12},
		{15.625, 15.62},
		{9.375, 9.38},
		{33.333333, 33.33},
		{66.666666, 66.67},
		{-5.125, -5.12},
		{80, 80},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Round2(tt.in), "Round2(%v)", tt.in)
	}
}
