package report

import (
	"math"

	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

// Mouse kinds pack into a mouse keycode's sub-field (high nibble, read
// via Code.MouseSubField): which report field a mouse keycode drives.
const (
	MouseKindButton  uint8 = iota // low nibble = button bit index
	MouseKindWheelV               // vertical wheel, +1 per tick held; no kind yields -1
	MouseKindWheelH               // horizontal wheel, +1 per tick held; no kind yields -1
	MouseKindAxisXPos             // low nibble unused; positive X travel
	MouseKindAxisXNeg
	MouseKindAxisYPos
	MouseKindAxisYNeg
)

// DefaultMouseMaxSpeed is MOUSE_MAX_SPEED: the maximum per-second signed
// travel an axis keycode can produce at full analog deflection.
const DefaultMouseMaxSpeed = 1000.0

// Mouse is the aggregated {buttons, x, y, v, h} HID mouse report.
type Mouse struct {
	Buttons uint32
	X, Y    int32
	V, H    int8
	Dirty   bool
}

// Clear zeroes the buffer for the next tick's fill pass. The
// shouldMove formula derives its carry purely from the absolute tick
// counter, so no cadence state needs to survive the clear.
func (m *Mouse) Clear() {
	m.Buttons, m.X, m.Y, m.V, m.H, m.Dirty = 0, 0, 0, 0, 0, false
}

// Add handles button and wheel mouse keycodes.
func (m *Mouse) Add(kc keycode.Code) {
	kind, lo := kc.MouseSubField()
	switch kind {
	case MouseKindButton:
		m.Buttons |= 1 << uint(lo)
		m.Dirty = true
	case MouseKindWheelV:
		m.V = 1
		m.Dirty = true
	case MouseKindWheelH:
		m.H = 1
		m.Dirty = true
	}
}

// shouldMove implements the fractional-carry axis-speed formula:
// should_move = floor((t+1)*speed/rate) - floor(t*speed/rate). It
// guarantees that low speeds still produce 1-unit movements at regular,
// predictable intervals instead of being rounded away to zero every
// tick.
func shouldMove(tick uint32, speed, reportRate float64) int32 {
	t := float64(tick)
	return int32(math.Floor((t+1)*speed/reportRate) - math.Floor(t*speed/reportRate))
}

// SetAxis converts an axis keycode's analog travel into a proportional
// signed per-tick delta, accumulating into X or Y. tick is the keyboard's
// monotonic tick counter (not wall-clock); reportRate is POLLING_RATE.
func (m *Mouse) SetAxis(kc keycode.Code, effectiveValue float64, tick uint32, reportRate, maxSpeed float64) {
	kind, _ := kc.MouseSubField()

	var axis *int32
	var sign float64 = 1
	switch kind {
	case MouseKindAxisXPos:
		axis, sign = &m.X, 1
	case MouseKindAxisXNeg:
		axis, sign = &m.X, -1
	case MouseKindAxisYPos:
		axis, sign = &m.Y, 1
	case MouseKindAxisYNeg:
		axis, sign = &m.Y, -1
	default:
		return
	}

	speed := effectiveValue * maxSpeed
	delta := shouldMove(tick, speed, reportRate)
	*axis += int32(sign) * delta
	if delta != 0 {
		m.Dirty = true
	}
}

// Bytes serializes the mouse report as {buttons(4 LE), x(4 LE signed),
// y(4 LE signed), v, h}.
func (m *Mouse) Bytes() []byte {
	out := make([]byte, 14)
	putU32(out[0:4], m.Buttons)
	putI32(out[4:8], m.X)
	putI32(out[8:12], m.Y)
	out[12] = byte(m.V)
	out[13] = byte(m.H)
	return out
}

func putU32(dst []byte, v uint32) {
	dst[0] = byte(v)
	dst[1] = byte(v >> 8)
	dst[2] = byte(v >> 16)
	dst[3] = byte(v >> 24)
}

func putI32(dst []byte, v int32) { putU32(dst, uint32(v)) }
