package consumption

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptimizeCut_TubeBars(t *testing.T) {
	res, err := OptimizeCut(12.5, 5.8, 0.005, DefaultMinReusableLeftover)
	require.NoError(t, err)

	assert.Equal(t, 3, res.UnitsConsumed)
	assert.InDelta(t, 4.9, res.Leftover, 1e-9)
	assert.True(t, res.LeftoverReusable)
}

func TestOptimizeCut_ScrapBelowThreshold(t *testing.T) {
	res, err := OptimizeCut(5.7, 5.8, 0.005, 0.30)
	require.NoError(t, err)

	assert.Equal(t, 1, res.UnitsConsumed)
	assert.InDelta(t, 0.1, res.Leftover, 1e-9)
	assert.False(t, res.LeftoverReusable)
}

func TestOptimizeCut_NothingRequired(t *testing.T) {
	for _, required := range []float64{0, -3} {
		res, err := OptimizeCut(required, 5.8, 0.005, 0.3)
		require.NoError(t, err)
		assert.Equal(t, CutResult{}, res)
	}
}

func TestOptimizeCut_ExactMultipleDoesNotAddBar(t *testing.T) {
	res, err := OptimizeCut(0.6*9, 1.8, 0, 0.3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.UnitsConsumed)
	assert.Equal(t, 0.0, res.Leftover)
	assert.False(t, res.LeftoverReusable)
}

func TestOptimizeCut_InvalidStock(t *testing.T) {
	_, err := OptimizeCut(3, 0.005, 0.005, 0.3)
	assert.Error(t, err)

	_, err = OptimizeCut(3, 0, 0, 0.3)
	assert.Error(t, err)
}

func TestOptimizeCut_TooManyBars(t *testing.T) {
	for _, required := range []float64{1e22, math.Inf(1), 5.795 * (math.MaxInt32 + 10.0)} {
		_, err := OptimizeCut(required, 5.8, 0.005, 0.3)
		assert.Error(t, err, "required %v", required)
	}

	// на границе еще считается
	cut, err := OptimizeCut(5.795*1000000, 5.8, 0.005, 0.3)
	require.NoError(t, err)
	assert.Equal(t, 1000000, cut.UnitsConsumed)
}

func TestOptimizeCut_Consistency(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		required := rng.Float64() * 40
		standard := 1 + rng.Float64()*6
		margin := rng.Float64() * 0.05

		res, err := OptimizeCut(required, standard, margin, 0.3)
		require.NoError(t, err)

		total := float64(res.UnitsConsumed) * standard
		assert.GreaterOrEqual(t, total+1e-6, required)
		assert.GreaterOrEqual(t, res.Leftover, 0.0)
		assert.InDelta(t, total-required, res.Leftover, 1e-6)
	}
}
