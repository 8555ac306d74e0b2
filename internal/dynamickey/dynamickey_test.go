package dynamickey

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HopIT-Hub/AmpCore/internal/event"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
	"github.com/HopIT-Hub/AmpCore/internal/layer"
)

// fakeKeyRef is a minimal settable KeyRef/AnalogRef for tests.
type fakeKeyRef struct {
	id            uint16
	pressed       bool
	value         float64
	upperDeadzone float64
	lowerDeadzone float64
}

func (f *fakeKeyRef) KeyID() uint16          { return f.id }
func (f *fakeKeyRef) Pressed() bool          { return f.pressed }
func (f *fakeKeyRef) AnalogValue() float64   { return f.value }
func (f *fakeKeyRef) UpperDeadzone() float64 { return f.upperDeadzone }
func (f *fakeKeyRef) LowerDeadzone() float64 { return f.lowerDeadzone }

func oneKeyResolver(self keycode.Code, numKeys int) *layer.Resolver {
	row := make([]keycode.Code, numKeys)
	for i := range row {
		row[i] = self
	}
	return layer.NewResolver([][]keycode.Code{row})
}

const (
	bindingA = keycode.Code(0x0400 | 4)
	bindingB = keycode.Code(0x0400 | 22)
)

// TestModTapShortPressTaps reproduces the short-press half of scenario S2.
func TestModTapShortPressTaps(t *testing.T) {
	self := keycode.New(keycode.DomainDynamicKey, 0)
	resolver := oneKeyResolver(self, 1)
	mt := &ModTap{Self: self, KeyID: 0, Binding: [2]keycode.Code{bindingA, bindingB}, Duration: 10}
	key := &fakeKeyRef{id: 0}
	bus := event.NewBus(event.Sinks{})

	key.pressed = true
	mt.Process(resolver, key, 0, bus)
	assert.False(t, mt.ReportState())

	key.pressed = false
	mt.Process(resolver, key, 5, bus) // released well before duration elapses
	assert.True(t, mt.ReportState(), "short tap should report immediately on release")

	mt.Process(resolver, key, 9, bus)
	assert.True(t, mt.ReportState(), "tap should still be held within DK_TAP_DURATION")

	mt.Process(resolver, key, 11, bus) // past endTime = 5+TapDuration(5) = 10
	assert.False(t, mt.ReportState(), "tap should auto-release after DK_TAP_DURATION")
}

// TestModTapLongPressHolds reproduces the hold half of scenario S2.
func TestModTapLongPressHolds(t *testing.T) {
	self := keycode.New(keycode.DomainDynamicKey, 0)
	resolver := oneKeyResolver(self, 1)
	mt := &ModTap{Self: self, KeyID: 0, Binding: [2]keycode.Code{bindingA, bindingB}, Duration: 10}
	key := &fakeKeyRef{id: 0}
	bus := event.NewBus(event.Sinks{})

	key.pressed = true
	mt.Process(resolver, key, 0, bus)
	for tick := uint32(1); tick < 11; tick++ {
		mt.Process(resolver, key, tick, bus)
		assert.False(t, mt.ReportState(), "no report before duration elapses")
	}
	mt.Process(resolver, key, 11, bus)
	assert.True(t, mt.ReportState(), "holding past duration should start reporting the hold binding")

	// stays reported indefinitely while physically held
	mt.Process(resolver, key, 500, bus)
	assert.True(t, mt.ReportState())

	key.pressed = false
	mt.Process(resolver, key, 501, bus)
	assert.False(t, mt.ReportState(), "release ends the hold immediately (endTime is unbounded)")
}

func TestModTapPreconditionMismatchNoOps(t *testing.T) {
	self := keycode.New(keycode.DomainDynamicKey, 0)
	other := keycode.New(keycode.DomainDynamicKey, 1)
	resolver := oneKeyResolver(other, 1) // layer resolves to a different dynamic key
	mt := &ModTap{Self: self, KeyID: 0, Binding: [2]keycode.Code{bindingA, bindingB}, Duration: 10}
	key := &fakeKeyRef{id: 0, pressed: true}
	bus := event.NewBus(event.Sinks{})

	mt.Process(resolver, key, 0, bus)
	assert.False(t, mt.ReportState())
	assert.Equal(t, uint32(0), mt.beginTime)
}

// TestMutexLastPriority reproduces scenario S3 exactly.
func TestMutexLastPriority(t *testing.T) {
	self := keycode.New(keycode.DomainDynamicKey, 2)
	resolver := oneKeyResolver(self, 2)
	mp := &MutexPair{
		Self:    self,
		KeyID:   [2]uint16{0, 1},
		Binding: [2]keycode.Code{bindingA, bindingB},
		Mode:    MutexLastPriority,
	}
	key0 := &fakeKeyRef{id: 0}
	key1 := &fakeKeyRef{id: 1}
	bus := event.NewBus(event.Sinks{})

	key0.pressed = true
	mp.Process(resolver, key0, key1, bus)
	r0, r1 := mp.ReportState()
	assert.True(t, r0)
	assert.False(t, r1)

	key1.pressed = true
	mp.Process(resolver, key0, key1, bus)
	r0, r1 = mp.ReportState()
	assert.False(t, r0)
	assert.True(t, r1)

	key0.pressed = false
	mp.Process(resolver, key0, key1, bus)
	r0, r1 = mp.ReportState()
	assert.False(t, r0)
	assert.True(t, r1)

	key1.pressed = false
	mp.Process(resolver, key0, key1, bus)
	r0, r1 = mp.ReportState()
	assert.False(t, r0)
	assert.False(t, r1)
}

func TestToggleKeyInvertsOnRisingEdge(t *testing.T) {
	self := keycode.New(keycode.DomainDynamicKey, 3)
	resolver := oneKeyResolver(self, 1)
	tk := &ToggleKey{Self: self, KeyID: 0, Binding: bindingA}
	key := &fakeKeyRef{id: 0}
	bus := event.NewBus(event.Sinks{})

	key.pressed = true
	tk.Process(resolver, key, bus)
	assert.True(t, tk.ReportState())

	key.pressed = false
	tk.Process(resolver, key, bus)
	assert.True(t, tk.ReportState(), "release alone must not untoggle")

	key.pressed = true
	tk.Process(resolver, key, bus)
	assert.False(t, tk.ReportState(), "second rising edge toggles back off")
}

func TestStroke4x4TapAndHold(t *testing.T) {
	self := keycode.New(keycode.DomainDynamicKey, 4)
	resolver := oneKeyResolver(self, 1)
	s := &Stroke4x4{
		Self:                 self,
		KeyID:                0,
		Binding:              [4]keycode.Code{bindingA, bindingA, bindingA, bindingA},
		PressBeginDistance:   0.2,
		PressFullyDistance:   0.8,
		ReleaseBeginDistance: 0.8,
		ReleaseFullyDistance: 0.2,
	}
	s.Control[pointPressBegin][0] = ControlTap
	s.Control[pointPressFully][1] = ControlHold
	key := &fakeKeyRef{id: 0}
	bus := event.NewBus(event.Sinks{})

	key.value = 0.0
	s.Process(resolver, key, 0, bus)
	assert.False(t, s.ReportState())

	key.value = 0.3 // crosses press_begin: binding 0 taps
	s.Process(resolver, key, 1, bus)
	assert.True(t, s.ReportState())

	key.value = 0.9 // crosses press_fully: binding 1 holds
	s.Process(resolver, key, 2, bus)
	assert.True(t, s.ReportState())

	// binding 0's tap should expire after DK_TAP_DURATION, but binding 1
	// keeps the report active via Hold.
	s.Process(resolver, key, 10, bus)
	assert.True(t, s.ReportState())

	key.value = 0.1 // release past both release thresholds
	s.Process(resolver, key, 11, bus)
	assert.False(t, s.ReportState())
}
