package report

import (
	"math"

	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

// JoystickButtonCount and JoystickAxisCount mirror the source's
// JOYSTICK_BUTTON_COUNT / JOYSTICK_AXIS_COUNT defaults.
const (
	JoystickButtonCount  = 8
	JoystickAxisCount    = 2
	JoystickAxisResBits  = 8
	JoystickMaxValue     = (1 << (JoystickAxisResBits - 1)) - 1 // 127
)

// Joystick is the {buttons bitmap, axes[]} report.
type Joystick struct {
	Buttons uint8
	Axes    [JoystickAxisCount]int16
	Dirty   bool
}

// Clear zeroes the buffer.
func (j *Joystick) Clear() { *j = Joystick{} }

// AddButton sets a button bit.
func (j *Joystick) AddButton(bit uint8) {
	j.Buttons |= 1 << bit
	j.Dirty = true
}

// SetAxis accumulates an axis keycode's analog travel into Axes[axis],
// per the 2-bit direction encoding: Positive adds, Negative subtracts,
// Bipolar maps the full [0,1] range onto [-max, max] (optionally
// inverted by the keycode's high bit).
func (j *Joystick) SetAxis(kc keycode.Code, effectiveValue float64) {
	direction, axis := kc.JoystickAxisField()
	if int(axis) >= JoystickAxisCount {
		return
	}

	switch direction {
	case keycode.JoystickAxisPositive:
		j.Axes[axis] = clampI16(j.Axes[axis]+int16(math.Round(effectiveValue*JoystickMaxValue)), -JoystickMaxValue, JoystickMaxValue)
	case keycode.JoystickAxisNegative:
		j.Axes[axis] = clampI16(j.Axes[axis]-int16(math.Round(effectiveValue*JoystickMaxValue)), -JoystickMaxValue, JoystickMaxValue)
	case keycode.JoystickAxisBipolar:
		v := int16(math.Round((effectiveValue*2-1) * JoystickMaxValue))
		if kc.Inverted() {
			v = -v
		}
		j.Axes[axis] = v
	default:
		return
	}
	j.Dirty = true
}

func clampI16(v, lo, hi int16) int16 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Bytes serializes the report as {buttons, axis0 LE, axis1 LE, ...}.
func (j *Joystick) Bytes() []byte {
	out := make([]byte, 1+2*JoystickAxisCount)
	out[0] = j.Buttons
	for i, a := range j.Axes {
		out[1+2*i] = byte(a)
		out[1+2*i+1] = byte(a >> 8)
	}
	return out
}
