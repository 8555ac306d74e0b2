package hid

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptorBytesNonNilForEveryKnownDescriptor(t *testing.T) {
	for _, d := range []Descriptor{DescKeyboard, DescNKRO, DescMouse, DescConsumer, DescSystem, DescJoystick} {
		assert.NotNil(t, d.Bytes(), "%v must have a descriptor", d)
		assert.NotEmpty(t, d.String())
	}
}

func TestDescriptorBytesNilForUnknownDescriptor(t *testing.T) {
	assert.Nil(t, Descriptor(99).Bytes())
}

func TestSelectKeyboardDescriptorPrefersNKROWhenRegisteredAndShapeMatches(t *testing.T) {
	assert.Equal(t, DescNKRO, selectKeyboardDescriptor(true, nkroReportSize))
}

func TestSelectKeyboardDescriptorFallsBackToSixKRO(t *testing.T) {
	assert.Equal(t, DescKeyboard, selectKeyboardDescriptor(true, 8), "an 8-byte payload is a 6KRO report even with NKRO registered")
	assert.Equal(t, DescKeyboard, selectKeyboardDescriptor(false, nkroReportSize), "NKRO-shaped payload with no NKRO descriptor registered still falls back")
}
