// Package dynamickey implements the four dynamic-key state machines
// (C5): Stroke4x4, ModTap, ToggleKey and MutexPair. Each consumes the
// underlying physical key's state or analog value and synthesizes
// virtual KeyboardEvents of its own bound keycodes.
package dynamickey

import (
	"github.com/HopIT-Hub/AmpCore/internal/advancedkey"
	"github.com/HopIT-Hub/AmpCore/internal/event"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
	"github.com/HopIT-Hub/AmpCore/internal/layer"
)

// TapDuration is DK_TAP_DURATION: the number of ticks a synthesized tap
// stays latched before auto-releasing.
const TapDuration uint32 = 5

// EndTimeNever is the "never expires" end_time sentinel, kept bit-
// compatible with the persisted stroke/modtap wire format rather than
// modeled as an Option.
const EndTimeNever uint32 = 0xFFFFFFFF

// Control is a Stroke4x4 binding's per-trigger-point action.
type Control uint8

const (
	ControlRelease Control = iota
	ControlTap
	_ // 2 is unused in the source's two-bit encoding
	ControlHold
)

// calcEvent derives an event.Kind from a binding's previous and next
// logical report state: rising edge -> KeyDown, falling edge -> KeyUp,
// held true -> KeyTrue, held false -> KeyFalse.
func calcEvent(last, next bool) event.Kind {
	switch {
	case !last && next:
		return event.KeyDown
	case last && !next:
		return event.KeyUp
	case next:
		return event.KeyTrue
	default:
		return event.KeyFalse
	}
}

// KeyRef is the minimal view a dynamic key needs of its owning physical
// or advanced key: identity, physical edge state, and (for advanced
// keys) the current effective analog value.
type KeyRef interface {
	KeyID() uint16
	Pressed() bool
}

// AnalogRef is implemented by KeyRef values that also expose an analog
// value, used by Stroke4x4 and the DistancePriority mutex policy.
type AnalogRef interface {
	KeyRef
	AnalogValue() float64
	UpperDeadzone() float64
	LowerDeadzone() float64
}

// advancedKeyRef adapts an *advancedkey.AdvancedKey to AnalogRef.
type advancedKeyRef struct{ k *advancedkey.AdvancedKey }

func (r advancedKeyRef) KeyID() uint16          { return r.k.ID }
func (r advancedKeyRef) Pressed() bool          { return r.k.State }
func (r advancedKeyRef) AnalogValue() float64   { return r.k.Value }
func (r advancedKeyRef) UpperDeadzone() float64 { return r.k.Config.UpperDeadzone }
func (r advancedKeyRef) LowerDeadzone() float64 { return r.k.Config.LowerDeadzone }

// WrapAdvancedKey exposes an AdvancedKey as an AnalogRef for use as a
// dynamic key's underlying key.
func WrapAdvancedKey(k *advancedkey.AdvancedKey) AnalogRef { return advancedKeyRef{k} }

// plainKeyRef adapts a base (non-advanced) debounced Key to KeyRef, for
// ModTap/ToggleKey/MutexPair bindings over digital-only keys.
type plainKeyRef struct{ k *advancedkey.Key }

func (r plainKeyRef) KeyID() uint16 { return r.k.ID }
func (r plainKeyRef) Pressed() bool { return r.k.ReportState }

// WrapKey exposes a base Key as a KeyRef.
func WrapKey(k *advancedkey.Key) KeyRef { return plainKeyRef{k} }

// precondition verifies that the layer resolver still resolves id's
// keycode to this dynamic key's own reference code. If the layer
// changed out from under the key, the machine must leave its state
// untouched and emit nothing — the core consistency invariant that
// prevents dangling virtual presses.
func precondition(resolver *layer.Resolver, id uint16, self keycode.Code) bool {
	return resolver.Keycode(int(id)) == self
}

// Stroke4x4 is four independently controlled bindings driven by a
// single analog key's travel, each latched by a {Release,Tap,Hold}
// action at up to four trigger-point crossings (press/release x
// begin/fully).
type Stroke4x4 struct {
	Self    keycode.Code // this dynamic key's own DomainDynamicKey reference code
	KeyID   uint16
	Binding [4]keycode.Code
	Control [4][4]Control // Control[point][binding], point in {pressBegin,pressFully,releaseBegin,releaseFully}

	PressBeginDistance   float64
	PressFullyDistance   float64
	ReleaseBeginDistance float64
	ReleaseFullyDistance float64

	value    float64
	endTime  [4]uint32
	active   uint8 // 4-bit active mask
}

const (
	pointPressBegin = iota
	pointPressFully
	pointReleaseBegin
	pointReleaseFully
)

func (s *Stroke4x4) applyControl(point int, tick uint32) {
	for i := 0; i < 4; i++ {
		switch s.Control[point][i] {
		case ControlTap:
			s.endTime[i] = tick + TapDuration
			s.active |= 1 << uint(i)
		case ControlHold:
			s.endTime[i] = EndTimeNever
			s.active |= 1 << uint(i)
		default: // ControlRelease and the unused encoding both release
			s.active &^= 1 << uint(i)
		}
	}
}

// Process runs one tick of the Stroke4x4 state machine against the
// underlying analog key and dispatches events through bus.
func (s *Stroke4x4) Process(resolver *layer.Resolver, key AnalogRef, tick uint32, bus *event.Bus) {
	if !precondition(resolver, s.KeyID, s.Self) {
		return
	}

	last := s.value
	current := key.AnalogValue()
	lastActive := s.active

	if current > last {
		if current >= s.PressBeginDistance && last < s.PressBeginDistance {
			s.applyControl(pointPressBegin, tick)
		}
		if current >= s.PressFullyDistance && last < s.PressFullyDistance {
			s.applyControl(pointPressFully, tick)
		}
	}
	if current < last {
		if current <= s.ReleaseBeginDistance && last > s.ReleaseBeginDistance {
			s.applyControl(pointReleaseBegin, tick)
		}
		if current <= s.ReleaseFullyDistance && last > s.ReleaseFullyDistance {
			s.applyControl(pointReleaseFully, tick)
		}
	}

	for i := 0; i < 4; i++ {
		if tick > s.endTime[i] {
			s.active &^= 1 << uint(i)
		}
		wasActive := lastActive&(1<<uint(i)) != 0
		isActive := s.active&(1<<uint(i)) != 0
		bus.Dispatch(event.New(s.Binding[i], calcEvent(wasActive, isActive), key))
	}

	s.value = current
}

// ReportState is the OR of the four bindings' active bits.
func (s *Stroke4x4) ReportState() bool { return s.active != 0 }

// ActiveBindings reports which of the four bindings currently holds its
// active bit set, for the report-builder "still-pressed" walk.
func (s *Stroke4x4) ActiveBindings() (codes []keycode.Code) {
	for i := 0; i < 4; i++ {
		if s.active&(1<<uint(i)) != 0 {
			codes = append(codes, s.Binding[i])
		}
	}
	return codes
}

// modTapState distinguishes which of the two bindings is currently
// latched in.
type modTapState uint8

const (
	modTapTap modTapState = iota
	modTapHold
)

// ModTap reports a short tap of Binding[0] on a quick press/release, or
// holds Binding[1] for the duration of a press once Duration ticks have
// elapsed.
type ModTap struct {
	Self     keycode.Code
	KeyID    uint16
	Binding  [2]keycode.Code // [0]=tap, [1]=hold
	Duration uint32

	keyState    bool
	beginTime   uint32
	endTime     uint32
	state       modTapState
	reportState bool
}

// Process runs one tick of the ModTap state machine.
func (m *ModTap) Process(resolver *layer.Resolver, key KeyRef, tick uint32, bus *event.Bus) {
	if !precondition(resolver, m.KeyID, m.Self) {
		return
	}

	lastReport := m.reportState
	nextReport := m.reportState
	pressed := key.Pressed()

	if !m.keyState && pressed {
		m.beginTime = tick
	}
	if m.keyState && !pressed {
		if tick-m.beginTime < m.Duration {
			m.endTime = tick + TapDuration
			m.state = modTapTap
			nextReport = true
		} else {
			nextReport = false
		}
		m.beginTime = tick
	}
	if pressed && !lastReport && tick-m.beginTime > m.Duration {
		m.endTime = EndTimeNever
		m.state = modTapHold
		nextReport = true
	}
	if tick > m.endTime && lastReport {
		nextReport = false
	}

	bus.Dispatch(event.New(m.Binding[modTapTap],
		calcEvent(m.state == modTapTap && lastReport, m.state == modTapTap && nextReport), key))
	bus.Dispatch(event.New(m.Binding[modTapHold],
		calcEvent(m.state == modTapHold && lastReport, m.state == modTapHold && nextReport), key))

	m.keyState = pressed
	m.reportState = nextReport
}

// ReportState is the key's current reported logical state.
func (m *ModTap) ReportState() bool { return m.reportState }

// ActiveBinding returns the binding currently latched in (tap or hold)
// while reportState is true, or keycode.No otherwise, for the
// report-builder "still-pressed" walk.
func (m *ModTap) ActiveBinding() keycode.Code {
	if !m.reportState {
		return keycode.No
	}
	return m.Binding[m.state]
}

// ToggleKey inverts its reported state on every rising edge of the
// underlying key.
type ToggleKey struct {
	Self    keycode.Code
	KeyID   uint16
	Binding keycode.Code

	keyState bool
	state    bool
}

// Process runs one tick of the ToggleKey state machine.
func (tk *ToggleKey) Process(resolver *layer.Resolver, key KeyRef, bus *event.Bus) {
	if !precondition(resolver, tk.KeyID, tk.Self) {
		return
	}

	next := tk.state
	pressed := key.Pressed()
	if !tk.keyState && pressed {
		next = !tk.state
	}

	bus.Dispatch(event.New(tk.Binding, calcEvent(tk.state, next), key))

	tk.keyState = pressed
	tk.state = next
}

// ReportState is the toggle's current latched state.
func (tk *ToggleKey) ReportState() bool { return tk.state }

// ActiveBinding returns Binding while the toggle is latched on, or
// keycode.No otherwise, for the report-builder "still-pressed" walk.
func (tk *ToggleKey) ActiveBinding() keycode.Code {
	if !tk.state {
		return keycode.No
	}
	return tk.Binding
}

// MutexMode selects a MutexPair's arbitration policy.
type MutexMode uint8

const (
	MutexDistancePriority MutexMode = iota
	MutexLastPriority
	MutexKey1Priority
	MutexKey2Priority
	MutexNeutral
)

// MutexPair arbitrates between two underlying keys sharing one logical
// slot, using Mode to decide which (if either) side reports.
// BothFullyOverride, when set, re-enables simultaneous output once both
// sides exceed ANALOG_MAX - their own lower_deadzone.
type MutexPair struct {
	Self    keycode.Code
	KeyID   [2]uint16
	Binding [2]keycode.Code
	Mode    MutexMode

	BothFullyOverride bool

	keyState    [2]bool
	reportState [2]bool
}

// Process runs one tick of the MutexPair state machine against its two
// underlying keys. key0 and key1 implement AnalogRef only when
// DistancePriority or BothFullyOverride need an analog reading; a plain
// KeyRef suffices for the other modes (pass the same value cast twice
// if it satisfies both interfaces).
func (mp *MutexPair) Process(resolver *layer.Resolver, key0, key1 KeyRef, bus *event.Bus) {
	if !precondition(resolver, mp.KeyID[0], mp.Self) {
		return
	}
	if !precondition(resolver, mp.KeyID[1], mp.Self) {
		return
	}

	next0, next1 := mp.reportState[0], mp.reportState[1]

	if mp.Mode == MutexDistancePriority {
		a0, ok0 := key0.(AnalogRef)
		a1, ok1 := key1.(AnalogRef)
		if ok0 && ok1 {
			switch {
			case a0.AnalogValue() > a1.AnalogValue():
				next0, next1 = true, false
			case a0.AnalogValue() < a1.AnalogValue():
				next0, next1 = false, true
			}
			if a0.AnalogValue() < a0.UpperDeadzone() {
				next0 = false
			}
			if a1.AnalogValue() < a1.UpperDeadzone() {
				next1 = false
			}
		}
	} else {
		switch mp.Mode {
		case MutexLastPriority:
			if !mp.keyState[0] && key0.Pressed() {
				next0, next1 = true, false
			}
			if mp.keyState[0] && !key0.Pressed() {
				next0, next1 = false, key1.Pressed()
			}
			if !mp.keyState[1] && key1.Pressed() {
				next0, next1 = false, true
			}
			if mp.keyState[1] && !key1.Pressed() {
				next0, next1 = key0.Pressed(), false
			}
		case MutexKey1Priority:
			next0 = key0.Pressed()
			next1 = !key0.Pressed() && key1.Pressed()
		case MutexKey2Priority:
			next0 = !key1.Pressed() && key0.Pressed()
			next1 = key1.Pressed()
		case MutexNeutral:
			next0, next1 = key0.Pressed(), key1.Pressed()
			if key0.Pressed() && key1.Pressed() {
				next0, next1 = false, false
			}
		}
	}

	if mp.BothFullyOverride {
		a0, ok0 := key0.(AnalogRef)
		a1, ok1 := key1.(AnalogRef)
		if ok0 && ok1 {
			if a0.AnalogValue() >= advancedkey.AnalogValueMax-a0.LowerDeadzone() &&
				a1.AnalogValue() >= advancedkey.AnalogValueMax-a1.LowerDeadzone() {
				next0, next1 = true, true
			}
		}
	}

	bus.Dispatch(event.New(mp.Binding[0], calcEvent(mp.reportState[0], next0), key0))
	bus.Dispatch(event.New(mp.Binding[1], calcEvent(mp.reportState[1], next1), key1))

	mp.keyState[0], mp.keyState[1] = key0.Pressed(), key1.Pressed()
	mp.reportState[0], mp.reportState[1] = next0, next1
}

// ReportState returns each side's current logical report state.
func (mp *MutexPair) ReportState() (key0, key1 bool) {
	return mp.reportState[0], mp.reportState[1]
}

// ActiveBindings returns each side's binding while that side currently
// reports, or keycode.No otherwise, for the report-builder
// "still-pressed" walk.
func (mp *MutexPair) ActiveBindings() (binding0, binding1 keycode.Code) {
	binding0, binding1 = keycode.No, keycode.No
	if mp.reportState[0] {
		binding0 = mp.Binding[0]
	}
	if mp.reportState[1] {
		binding1 = mp.Binding[1]
	}
	return
}
