package multiplexer

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestQuantileEstimatorMedianOfUniformSample(t *testing.T) {
	est := newQuantileEstimator(0.5)
	r := rand.New(rand.NewSource(1))
	for i := 0; i < 10000; i++ {
		est.Update(r.Float64() * 100)
	}
	median := est.Quantile()
	require.InDelta(t, 50, median, 5)
	require.Equal(t, 10000, est.Count())
}

func TestQuantileEstimatorSmallSampleExact(t *testing.T) {
	est := newQuantileEstimator(0.5)
	for _, v := range []float64{3, 1, 2} {
		est.Update(v)
	}
	require.Equal(t, float64(2), est.Quantile())
}

func TestMultiQuantileTracksMeanMaxAndPercentiles(t *testing.T) {
	m := newMultiQuantile(0.5, 0.9, 0.99)
	r := rand.New(rand.NewSource(2))
	var sum, max float64
	const n = 5000
	for i := 0; i < n; i++ {
		v := r.Float64() * 1000
		m.Update(v)
		sum += v
		if v > max {
			max = v
		}
	}
	require.InDelta(t, sum/n, m.Mean(), 1)
	require.Equal(t, max, m.Max())
	require.Less(t, m.Quantile(0), m.Quantile(1))
	require.Less(t, m.Quantile(1), m.Quantile(2))
}

func TestMultiQuantileOutOfRangeIndexReturnsZero(t *testing.T) {
	m := newMultiQuantile(0.5)
	require.Equal(t, float64(0), m.Quantile(5))
	require.Equal(t, float64(0), m.Quantile(-1))
}

func TestMultiQuantileEmptyReportsZero(t *testing.T) {
	m := newMultiQuantile(0.5)
	require.Equal(t, float64(0), m.Mean())
	require.Equal(t, float64(0), m.Max())
	require.NotEqual(t, math.MaxFloat64, m.Max())
}
