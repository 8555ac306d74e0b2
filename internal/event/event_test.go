package event

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

func TestDispatchOrderAndDomainRouting(t *testing.T) {
	var order []string
	var routed keycode.Code

	sinks := Sinks{
		ScriptHook: func(e KeyboardEvent) { order = append(order, "script") },
		MacroHook:  func(e KeyboardEvent) { order = append(order, "macro") },
		Mouse: func(e KeyboardEvent) {
			order = append(order, "mouse")
			routed = e.Keycode
		},
	}
	b := NewBus(sinks)

	mouseCode := keycode.New(keycode.DomainMouse, 1)
	b.Dispatch(New(mouseCode, KeyDown, nil))

	assert.Equal(t, []string{"script", "macro", "mouse"}, order)
	assert.Equal(t, mouseCode, routed)
}

func TestKeyUpTriggersLayerLockHook(t *testing.T) {
	var unlocked keycode.Code
	sinks := Sinks{
		OnKeyUpLayer: func(kc keycode.Code) { unlocked = kc },
		Default:      func(e KeyboardEvent) {},
	}
	b := NewBus(sinks)

	kc := keycode.New(keycode.DomainKeyboard, 4)
	b.Dispatch(New(kc, KeyUp, nil))
	assert.Equal(t, kc, unlocked)
}

func TestDefaultDomainFallback(t *testing.T) {
	dirty := false
	sinks := Sinks{Default: func(e KeyboardEvent) { dirty = true }}
	b := NewBus(sinks)
	b.Dispatch(New(keycode.New(keycode.DomainKeyboard, 4), KeyDown, nil))
	assert.True(t, dirty)
}

func TestNilSinksAreSkippedSafely(t *testing.T) {
	b := NewBus(Sinks{})
	assert.NotPanics(t, func() {
		b.Dispatch(New(keycode.New(keycode.DomainJoystick, 1), KeyTrue, nil))
	})
}
