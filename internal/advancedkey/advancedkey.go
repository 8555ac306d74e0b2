// Package advancedkey implements the per-key analog trigger engine (C2):
// the raw -> filtered -> normalized -> logical pipeline, its four trigger
// modes, and the three auto-calibration submodes.
package advancedkey

import (
	"math"

	"github.com/HopIT-Hub/AmpCore/internal/analog"
)

// Normalized analog values live in [AnalogValueMin, AnalogValueMax]. This
// module always uses the floating-point representation; the source's
// FIXED_POINT_EXPERIMENTAL fixed-point build variant has no analogue here
// and is out of scope (no component needs integer-only arithmetic on a
// host-class Go build).
const (
	AnalogValueMin   = 0.0
	AnalogValueMax   = 1.0
	AnalogValueRange = AnalogValueMax - AnalogValueMin
)

// DefaultEstimatedRange is the drift threshold (in raw units) that an
// Undefined-calibration key must cross before latching Positive or
// Negative, mirroring DEFAULT_ESTIMATED_RANGE in the source.
const DefaultEstimatedRange = 0.1

// Mode selects the per-key trigger discipline.
type Mode uint8

const (
	Digital Mode = iota
	AnalogNormal
	AnalogRapid
	AnalogSpeed
)

// CalibrationMode selects the auto-calibration submode applied during
// UpdateRaw.
type CalibrationMode uint8

const (
	CalibrationNone CalibrationMode = iota
	CalibrationPositive
	CalibrationNegative
	CalibrationUndefined
)

// FilterDomain selects whether a key's Filter runs on raw samples or on
// normalized values. Only one is meaningful per key; this mirrors the
// source's compile-time raw-vs-normalized filter placement.
type FilterDomain uint8

const (
	FilterDomainNone FilterDomain = iota
	FilterDomainRaw
	FilterDomainNormalized
)

// Config holds a key's trigger thresholds. Thresholds are normalized-unit
// except UpperBound/LowerBound, which are raw-domain calibration bounds
// and are never normalized. Invariant: DeactivationValue <= ActivationValue.
type Config struct {
	Mode            Mode
	CalibrationMode CalibrationMode
	FilterDomain    FilterDomain
	EstimatedRange  float64

	ActivationValue   float64
	DeactivationValue float64

	TriggerDistance float64
	ReleaseDistance float64

	TriggerSpeed float64
	ReleaseSpeed float64

	UpperDeadzone float64
	LowerDeadzone float64

	UpperBound float64
	LowerBound float64
}

// Key is the physical key base shared with the debouncer and event
// dispatch: identity, physical state, debounced report state, and a
// signed debounce counter (positive = press-debounce remaining, negative
// = release-debounce remaining).
type Key struct {
	ID           uint16
	State        bool
	ReportState  bool
	DebounceLeft int16
}

// AdvancedKey extends Key with the analog pipeline state.
type AdvancedKey struct {
	Key

	Value      float64
	Raw        float64
	Extremum   float64
	Difference float64

	Config Config

	reciprocal float64
	filter     analog.Filter
	calFilter  *analog.LowpassFilter
}

// New constructs an AdvancedKey with the given id and config. If
// cfg.EstimatedRange is zero, DefaultEstimatedRange is used.
func New(id uint16, cfg Config) *AdvancedKey {
	if cfg.EstimatedRange == 0 {
		cfg.EstimatedRange = DefaultEstimatedRange
	}
	a := &AdvancedKey{
		Key:    Key{ID: id},
		Config: cfg,
	}
	a.calFilter = analog.NewLowpassFilter(analog.DefaultLowpassAlpha, cfg.UpperBound)
	a.recomputeReciprocal()
	return a
}

// SetFilter installs the pluggable smoothing stage (hysteresis, lowpass,
// or Kalman), applied in the domain selected by Config.FilterDomain. This
// is meant to be called once at construction; switching filters mid-run
// is not a supported build configuration (see spec Design Notes on
// filter pluggability).
func (a *AdvancedKey) SetFilter(f analog.Filter) { a.filter = f }

func (a *AdvancedKey) recomputeReciprocal() {
	span := a.Config.UpperBound - a.Config.LowerBound
	if span == 0 {
		a.reciprocal = 0
		return
	}
	a.reciprocal = 1 / span
}

// SetBounds updates the raw-domain calibration bounds and recomputes the
// cached normalization reciprocal.
func (a *AdvancedKey) SetBounds(upper, lower float64) {
	a.Config.UpperBound = upper
	a.Config.LowerBound = lower
	a.recomputeReciprocal()
}

// Normalize maps a raw sample into [AnalogValueMin, AnalogValueMax] using
// the current calibration bounds. When UpperBound == LowerBound the
// mapping is degenerate and Normalize returns AnalogValueMin, per the
// spec's edge-case contract.
func (a *AdvancedKey) Normalize(raw float64) float64 {
	if a.reciprocal == 0 {
		return AnalogValueMin
	}
	v := math.Max(0, a.Config.UpperBound-raw) * a.reciprocal
	return clamp(v, AnalogValueMin, AnalogValueMax)
}

// EffectiveValue applies the upper/lower deadzones on top of an already
// normalized value, clipping the result back into range.
func (a *AdvancedKey) EffectiveValue(value float64) float64 {
	span := AnalogValueRange - a.Config.UpperDeadzone - a.Config.LowerDeadzone
	if span == 0 {
		return AnalogValueMin
	}
	return clamp((value-a.Config.UpperDeadzone)/span, AnalogValueMin, AnalogValueMax)
}

// UpdateRaw runs the raw-domain filter chain (if configured there),
// updates auto-calibration, and then calls Update with the normalized
// result. It returns whether the logical state changed.
func (a *AdvancedKey) UpdateRaw(raw float64) bool {
	if a.Config.FilterDomain == FilterDomainRaw && a.filter != nil {
		raw = a.filter.Step(raw)
	}
	a.Raw = raw
	a.runAutoCalibration(raw)
	return a.Update(a.Normalize(raw))
}

// runAutoCalibration applies the configured calibration submode to a
// freshly smoothed raw sample, mirroring advanced_key_update_raw's
// calibration branch in the source. Smoothing for calibration purposes
// always runs through a dedicated low-pass stage, independent of the
// key's own pluggable Filter, since calibration must work even in builds
// that select hysteresis or Kalman as the primary filter.
func (a *AdvancedKey) runAutoCalibration(raw float64) {
	lpf := a.calFilter.Step(raw)

	switch a.Config.CalibrationMode {
	case CalibrationPositive:
		if lpf > a.Config.LowerBound {
			a.SetBounds(a.Config.UpperBound, lpf)
		}
	case CalibrationNegative:
		if lpf < a.Config.LowerBound {
			a.SetBounds(a.Config.UpperBound, lpf)
		}
	case CalibrationUndefined:
		switch {
		case lpf-a.Config.UpperBound > a.Config.EstimatedRange:
			a.Config.CalibrationMode = CalibrationPositive
			a.SetBounds(a.Config.UpperBound, lpf)
		case a.Config.UpperBound-lpf > a.Config.EstimatedRange:
			a.Config.CalibrationMode = CalibrationNegative
			a.SetBounds(a.Config.UpperBound, lpf)
		}
	}
}

// Update runs the normalized-domain filter chain (if configured there),
// updates the sample difference, runs the mode-specific decider, and
// returns whether the logical state changed.
func (a *AdvancedKey) Update(value float64) bool {
	if a.Config.FilterDomain == FilterDomainNormalized && a.filter != nil {
		value = a.filter.Step(value)
	}

	if a.Config.CalibrationMode == CalibrationUndefined {
		// Suppress spurious activations until calibration has latched a
		// direction.
		value = AnalogValueMin
	}

	previous := a.Value
	a.Difference = value - previous
	a.Value = value

	switch a.Config.Mode {
	case Digital:
		return a.digitalMode()
	case AnalogNormal:
		return a.analogNormalMode()
	case AnalogRapid:
		return a.analogRapidMode()
	case AnalogSpeed:
		return a.analogSpeedMode()
	default:
		return a.digitalMode()
	}
}

func (a *AdvancedKey) digitalMode() bool {
	prev := a.State
	a.State = a.Value != AnalogValueMin
	a.Key.State = a.State
	return a.State != prev
}

func (a *AdvancedKey) analogNormalMode() bool {
	prev := a.State
	switch {
	case a.Value-AnalogValueMin > a.Config.ActivationValue:
		a.State = true
	case a.Value-AnalogValueMin < a.Config.DeactivationValue:
		a.State = false
	}
	a.Key.State = a.State
	return a.State != prev
}

func (a *AdvancedKey) analogRapidMode() bool {
	prev := a.State
	v := a.Value
	cfg := &a.Config
	switch {
	case v <= cfg.UpperDeadzone:
		a.State = false
		a.Extremum = math.Min(a.Extremum, v)
	case v >= AnalogValueMax-cfg.LowerDeadzone:
		a.State = true
		a.Extremum = math.Max(a.Extremum, v)
	case a.State && a.Extremum-v >= cfg.ReleaseDistance:
		a.State = false
		a.Extremum = v
	case !a.State && v-a.Extremum >= cfg.TriggerDistance:
		a.State = true
		a.Extremum = v
	case a.State:
		a.Extremum = math.Max(a.Extremum, v)
	default:
		a.Extremum = math.Min(a.Extremum, v)
	}
	a.Key.State = a.State
	return a.State != prev
}

// analogSpeedMode implements the speed/derivative trigger. The source's
// switch is missing a break and falls through into default; this module
// resolves that ambiguity (spec §9 Open Questions) by giving each
// condition independent, non-fallthrough precedence with the absolute
// deadzone bounds checked ahead of the derivative thresholds, since an
// end-of-travel position is a more reliable signal than sample-to-sample
// noise in the derivative.
func (a *AdvancedKey) analogSpeedMode() bool {
	prev := a.State
	v := a.Value
	d := a.Difference
	cfg := &a.Config
	switch {
	case v <= cfg.UpperDeadzone:
		a.State = false
	case v >= AnalogValueMax-cfg.LowerDeadzone:
		a.State = true
	case d > cfg.TriggerSpeed:
		a.State = true
	case d < -cfg.ReleaseSpeed:
		a.State = false
	}
	a.Key.State = a.State
	return a.State != prev
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
