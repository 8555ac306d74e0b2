package analog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingAvg(t *testing.T) {
	r := NewRing(4)
	for _, s := range []float64{10, 20, 30, 40} {
		r.Push(s)
	}
	assert.Equal(t, 25.0, r.Avg())

	r.Push(50) // evicts the 10
	assert.Equal(t, 35.0, r.Avg())
}

func TestRingRejectsNonPowerOfTwo(t *testing.T) {
	assert.Panics(t, func() { NewRing(3) })
}

func TestHysteresisFilter(t *testing.T) {
	f := NewHysteresisFilter(0.05, 0.5)

	// Inside the band: holds.
	assert.Equal(t, 0.5, f.Step(0.52))

	// Above the band: snaps to input-H.
	assert.InDelta(t, 0.65, f.Step(0.70), 1e-9)

	// Below the new band: snaps to input+H.
	assert.InDelta(t, 0.55, f.Step(0.50), 1e-9)
}

func TestLowpassFilter(t *testing.T) {
	f := NewLowpassFilter(0.5, 0)
	out := f.Step(1.0)
	assert.Equal(t, 0.5, out)
	out = f.Step(1.0)
	assert.Equal(t, 0.75, out)
}

func TestKalmanFilterConverges(t *testing.T) {
	f := NewKalmanFilter(1.0/1000, 0.01, 0.1, 0.5, 0)
	var out float64
	for i := 0; i < 500; i++ {
		out = f.Step(1.0)
	}
	require.InDelta(t, 1.0, out, 0.05)
}

func TestWarmupKalmanFloorsVariance(t *testing.T) {
	samples := make([]float64, KalmanWarmupSamples)
	for i := range samples {
		samples[i] = 100 // zero variance
	}
	f := WarmupKalman(samples, 1.0/1000)
	assert.Equal(t, 0.5, f.R)
	assert.Equal(t, 100.0, f.pos)
}
