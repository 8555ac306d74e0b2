package analog

import "math"

// DefaultHysteresis is the default ± band width (FILTER_HYSTERESIS in the
// source), expressed in whichever domain (raw or normalized) the filter
// is applied.
const DefaultHysteresis = 0.01

// DefaultLowpassAlpha is the default IIR coefficient (FILTER_LOWPASS_ALPHA).
const DefaultLowpassAlpha = 0.5

// KalmanWarmupSamples is the number of samples accumulated before a
// Kalman filter is initialized from measured variance.
const KalmanWarmupSamples = 128

// Filter is the pluggable smoothing stage applied either in the raw or
// the normalized domain. Only one concrete implementation is active per
// build: selection happens once, at construction of the owning
// AdvancedKey, never per sample.
type Filter interface {
	// Step advances the filter by one input sample and returns the
	// filtered output.
	Step(input float64) float64
	// Reset reinitializes the filter's internal state to the given
	// value, as if no samples had ever been seen.
	Reset(initial float64)
}

// HysteresisFilter pins its output to the nearer edge of a ±H band
// around the input; inside the band, the output holds.
type HysteresisFilter struct {
	H     float64
	state float64
}

// NewHysteresisFilter constructs a HysteresisFilter with the given band
// half-width and initial state.
func NewHysteresisFilter(h, initial float64) *HysteresisFilter {
	return &HysteresisFilter{H: h, state: initial}
}

// Step applies the hysteresis rule: the state only moves when the input
// lies strictly outside the ±H band around the current state, and then
// it snaps to the band edge nearer the input rather than to the input
// itself.
func (f *HysteresisFilter) Step(input float64) float64 {
	switch {
	case input-f.H > f.state:
		f.state = input - f.H
	case input+f.H < f.state:
		f.state = input + f.H
	}
	return f.state
}

// Reset reinitializes the filter state.
func (f *HysteresisFilter) Reset(initial float64) { f.state = initial }

// LowpassFilter is a scalar one-pole IIR filter.
type LowpassFilter struct {
	Alpha float64
	state float64
}

// NewLowpassFilter constructs a LowpassFilter with the given coefficient
// and initial state.
func NewLowpassFilter(alpha, initial float64) *LowpassFilter {
	return &LowpassFilter{Alpha: alpha, state: initial}
}

// Step computes state = alpha*state + (1-alpha)*input.
func (f *LowpassFilter) Step(input float64) float64 {
	f.state = f.Alpha*f.state + (1-f.Alpha)*input
	return f.state
}

// Reset reinitializes the filter state.
func (f *LowpassFilter) Reset(initial float64) { f.state = initial }

// KalmanFilter is a 2-state (position, velocity) constant-velocity
// filter with a 2x2 covariance matrix, matching the source's
// kalman_filter_init/kalman_filter pair.
type KalmanFilter struct {
	Dt   float64
	Qpos float64
	Qvel float64
	R    float64

	pos, vel       float64
	p00, p01, p10, p11 float64
}

// NewKalmanFilter constructs a KalmanFilter with explicit noise
// parameters. Use WarmupKalman to derive R from measured variance the
// way the source does at boot.
func NewKalmanFilter(dt, qpos, qvel, r, initialPos float64) *KalmanFilter {
	return &KalmanFilter{
		Dt: dt, Qpos: qpos, Qvel: qvel, R: r,
		pos: initialPos,
		p00: 1, p11: 1,
	}
}

// WarmupKalman accumulates KalmanWarmupSamples raw samples at the given
// sample interval, estimates the observation noise R from their sample
// variance (floored at 0.5 as the source does), and returns a
// KalmanFilter initialized with Q_pos=0.01, Q_vel=0.1.
func WarmupKalman(samples []float64, dt float64) *KalmanFilter {
	n := float64(len(samples))
	var mean float64
	for _, s := range samples {
		mean += s
	}
	mean /= n

	var variance float64
	for _, s := range samples {
		d := s - mean
		variance += d * d
	}
	variance /= n

	r := variance
	if r < 0.5 {
		r = 0.5
	}
	return NewKalmanFilter(dt, 0.01, 0.1, r, mean)
}

// Step runs one predict/update cycle and returns the filtered position
// estimate.
func (f *KalmanFilter) Step(input float64) float64 {
	// Predict.
	predPos := f.pos + f.vel*f.Dt
	predVel := f.vel

	p00 := f.p00 + f.Dt*(f.p10+f.p01+f.Dt*f.p11) + f.Qpos
	p01 := f.p01 + f.Dt*f.p11
	p10 := f.p10 + f.Dt*f.p11
	p11 := f.p11 + f.Qvel

	// Update.
	innovation := input - predPos
	s := p00 + f.R
	kPos := p00 / s
	kVel := p10 / s

	f.pos = predPos + kPos*innovation
	f.vel = predVel + kVel*innovation

	f.p00 = (1 - kPos) * p00
	f.p01 = (1 - kPos) * p01
	f.p10 = p10 - kVel*p00
	f.p11 = p11 - kVel*p01

	return f.pos
}

// Reset reinitializes position to the given value, zeroes velocity, and
// resets the covariance to identity.
func (f *KalmanFilter) Reset(initial float64) {
	f.pos = initial
	f.vel = 0
	f.p00, f.p11 = 1, 1
	f.p01, f.p10 = 0, 0
}

// Velocity returns the filter's current velocity estimate, used by
// speed-mode advanced keys that want a smoothed derivative rather than a
// raw sample difference.
func (f *KalmanFilter) Velocity() float64 { return f.vel }

// clamp restricts v to [lo, hi].
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
