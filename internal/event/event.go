// Package event implements the single-threaded synchronous event bus
// (C6): KeyboardEvent values and the dispatcher that routes them to
// domain sinks by keycode.
package event

import "github.com/HopIT-Hub/AmpCore/internal/keycode"

// Kind distinguishes edge events (KeyDown/KeyUp) from sustaining events
// (KeyTrue/KeyFalse) that fire every tick while a key is held or not.
type Kind uint8

const (
	NoEvent Kind = iota
	KeyDown
	KeyUp
	KeyTrue
	KeyFalse
)

// Source identifies the Key (or AdvancedKey) that originated an event, so
// downstream sinks (mouse axis mapping, extra-key usage) can read its
// analog value when needed. It is an opaque pointer-shaped value; sinks
// that need the underlying key cast it to the type they expect.
type Source = any

// KeyboardEvent is the bus's sole payload type.
type KeyboardEvent struct {
	Keycode keycode.Code
	Kind    Kind
	Source  Source
}

// New constructs a KeyboardEvent.
func New(kc keycode.Code, kind Kind, source Source) KeyboardEvent {
	return KeyboardEvent{Keycode: kc, Kind: kind, Source: source}
}

// Sinks groups every domain handler the bus can dispatch to. A nil field
// means that domain is not wired; the bus silently skips dispatch to it.
type Sinks struct {
	Mouse         func(KeyboardEvent)
	Consumer      func(KeyboardEvent)
	System        func(KeyboardEvent)
	Joystick      func(KeyboardEvent)
	MIDI          func(KeyboardEvent)
	Layer         func(KeyboardEvent)
	KeyboardOp    func(KeyboardEvent)
	User          func(KeyboardEvent)
	DynamicKey    func(KeyboardEvent)
	Default       func(KeyboardEvent) // marks the keyboard report dirty
	ScriptHook    func(KeyboardEvent)
	MacroHook     func(KeyboardEvent)
	OnKeyUpLayer  func(kc keycode.Code) // updates keymap_lock on key-up
}

// Bus dispatches KeyboardEvent values to the sinks it was constructed
// with, in the fixed order the source uses: script/macro hooks first,
// then the keymap-lock update, then the domain switch.
type Bus struct {
	sinks Sinks
}

// NewBus constructs a Bus over the given Sinks. Sinks may be updated
// later in place (the Bus holds the struct by value but callers keep a
// pointer to it via SetSinks if they need live rewiring).
func NewBus(sinks Sinks) *Bus {
	return &Bus{sinks: sinks}
}

// SetSinks replaces the wired sinks.
func (b *Bus) SetSinks(sinks Sinks) { b.sinks = sinks }

// Dispatch routes one event through the bus. All events generated by a
// single key-state transition must be dispatched, in source order,
// before the scan loop advances to the next key — the bus itself does
// not queue; callers are responsible for that ordering discipline.
func (b *Bus) Dispatch(e KeyboardEvent) {
	if b.sinks.ScriptHook != nil {
		b.sinks.ScriptHook(e)
	}
	if b.sinks.MacroHook != nil {
		b.sinks.MacroHook(e)
	}
	if e.Kind == KeyUp && b.sinks.OnKeyUpLayer != nil {
		b.sinks.OnKeyUpLayer(e.Keycode)
	}

	switch e.Keycode.Domain() {
	case keycode.DomainMouse:
		b.call(b.sinks.Mouse, e)
	case keycode.DomainConsumer:
		b.call(b.sinks.Consumer, e)
	case keycode.DomainSystem:
		b.call(b.sinks.System, e)
	case keycode.DomainJoystick:
		b.call(b.sinks.Joystick, e)
	case keycode.DomainMIDI:
		b.call(b.sinks.MIDI, e)
	case keycode.DomainLayer:
		b.call(b.sinks.Layer, e)
	case keycode.DomainKeyboardOp:
		b.call(b.sinks.KeyboardOp, e)
	case keycode.DomainDynamicKey:
		b.call(b.sinks.DynamicKey, e)
	case keycode.DomainUser:
		b.call(b.sinks.User, e)
	default:
		b.call(b.sinks.Default, e)
	}
}

func (b *Bus) call(sink func(KeyboardEvent), e KeyboardEvent) {
	if sink != nil {
		sink(e)
	}
}
