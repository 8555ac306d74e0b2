package report

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

const (
	modLeftCtrl uint8 = 1 << 0
	modLeftAlt  uint8 = 1 << 2
	usageA            = 4
	usageS            = 22
)

// TestS5NKROMultiKey reproduces scenario S5.
func TestS5NKROMultiKey(t *testing.T) {
	var nkro NKRO
	nkro.Add(keycode.New(keycode.DomainModifier, modLeftCtrl))
	nkro.Add(keycode.New(keycode.DomainKeyboard, usageA))
	nkro.Add(keycode.New(keycode.DomainModifier, modLeftAlt))
	nkro.Add(keycode.New(keycode.DomainKeyboard, usageS))

	assert.Equal(t, modLeftCtrl|modLeftAlt, nkro.Modifier)
	assert.NotZero(t, nkro.Bitmap[usageA/8]&(1<<(usageA%8)))
	assert.NotZero(t, nkro.Bitmap[usageS/8]&(1<<(usageS%8)))

	// every other bit stays zero
	for i, b := range nkro.Bitmap {
		want := uint8(0)
		if i == usageA/8 {
			want |= 1 << (usageA % 8)
		}
		if i == usageS/8 {
			want |= 1 << (usageS % 8)
		}
		assert.Equal(t, want, b, "byte %d", i)
	}
}

// TestS6JoystickAxisMapping reproduces scenario S6.
func TestS6JoystickAxisMapping(t *testing.T) {
	var j Joystick
	kc := keycode.New(keycode.DomainJoystick, (keycode.JoystickAxisPositive<<5)|0)
	j.SetAxis(kc, 0.6)
	want := int16(0.6 * JoystickMaxValue)
	assert.InDelta(t, float64(want), float64(j.Axes[0]), 1)
}

func TestSixKROOverflowDropsSilently(t *testing.T) {
	var b SixKRO
	for i := 0; i < 8; i++ {
		b.Add(keycode.New(keycode.DomainKeyboard, uint8(4+i)))
	}
	assert.Equal(t, uint8(6), b.Count)
	assert.Equal(t, uint8(4), b.Keys[0])
	assert.Equal(t, uint8(9), b.Keys[5])
}

func TestSixKROWinLockMasksGUI(t *testing.T) {
	var b SixKRO
	b.Modifier = ModifierLeftGUI | modLeftCtrl
	out := b.Bytes(true)
	assert.Equal(t, modLeftCtrl, out[0])
	out = b.Bytes(false)
	assert.Equal(t, ModifierLeftGUI|modLeftCtrl, out[0])
}

func TestExtraKeyFirstWriterWinsOnSustain(t *testing.T) {
	var e ExtraKey
	e.SetUsageIfEmpty(10)
	e.SetUsageIfEmpty(20) // should not overwrite
	assert.Equal(t, uint16(10), e.Usage)
	e.Release()
	assert.Equal(t, uint16(0), e.Usage)
}

func TestExtraKeyDownOverwrites(t *testing.T) {
	var e ExtraKey
	e.SetUsage(10)
	e.SetUsage(20)
	assert.Equal(t, uint16(20), e.Usage)
}

func TestMouseShouldMoveProducesSteadyPulses(t *testing.T) {
	var m Mouse
	kc := keycode.New(keycode.DomainMouse, MouseKindAxisXPos<<4)
	var total int32
	for tick := uint32(0); tick < 1000; tick++ {
		m.Clear()
		m.SetAxis(kc, 0.1, tick, 1000, DefaultMouseMaxSpeed)
		total += m.X
	}
	// at effectiveValue=0.1 and maxSpeed=1000, speed=100 units/sec over a
	// 1000-tick (1s) window should sum to ~100.
	assert.InDelta(t, 100, total, 1)
}

func TestReportIdempotence(t *testing.T) {
	var b SixKRO
	b.Add(keycode.New(keycode.DomainKeyboard, usageA))
	first := b.Bytes(false)

	// No state changes this tick: Clear+refill with the same inputs must
	// reproduce a byte-equal report.
	b.Clear()
	b.Add(keycode.New(keycode.DomainKeyboard, usageA))
	second := b.Bytes(false)

	assert.Equal(t, first, second)
}
