package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseModifiersKnown(t *testing.T) {
	mods, err := ParseModifiers([]string{"ctrl", "Alt"})
	assert.NoError(t, err)
	assert.Len(t, mods, 2)
}

func TestParseModifiersUnknown(t *testing.T) {
	_, err := ParseModifiers([]string{"hyper"})
	assert.Error(t, err)
}

func TestParseKeyKnownAndUnknown(t *testing.T) {
	_, err := ParseKey("r")
	assert.NoError(t, err)

	_, err = ParseKey("nonsense")
	assert.Error(t, err)
}

func TestJSCodeToKeyName(t *testing.T) {
	name, err := JSCodeToKeyName("KeyR")
	assert.NoError(t, err)
	assert.Equal(t, "r", name)

	_, err = JSCodeToKeyName("Unknown")
	assert.Error(t, err)
}
