package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HopIT-Hub/AmpCore/internal/advancedkey"
	"github.com/HopIT-Hub/AmpCore/internal/dynamickey"
	"github.com/HopIT-Hub/AmpCore/internal/event"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
	"github.com/HopIT-Hub/AmpCore/internal/layer"
)

// flatKeymap builds a one-layer keymap where key id i resolves to
// codes[i].
func flatKeymap(codes []keycode.Code) *layer.Resolver {
	return layer.NewResolver([][]keycode.Code{codes})
}

func digitalKeyConfig() advancedkey.Config {
	return advancedkey.Config{Mode: advancedkey.Digital, UpperBound: 1, LowerBound: 0}
}

func newTestKeyboard(numKeys int) (*Keyboard, []keycode.Code) {
	codes := make([]keycode.Code, numKeys)
	aks := make([]*advancedkey.AdvancedKey, numKeys)
	for i := range codes {
		codes[i] = keycode.New(keycode.DomainKeyboard, uint8(4+i))
		aks[i] = advancedkey.New(uint16(i), digitalKeyConfig())
	}
	resolver := flatKeymap(codes)
	return New(aks, nil, resolver, 8), codes
}

// --- debounce monotonicity -------------------------------------------------

func TestDebouncePressRequiresFullCountdown(t *testing.T) {
	var key advancedkey.Key
	key.State = true
	reported := debounce(&key, true, 3, 3)
	require.False(t, reported, "report state must not flip before the countdown completes")
	require.EqualValues(t, 2, key.DebounceLeft)

	reported = debounce(&key, false, 3, 3)
	assert.False(t, reported)
	reported = debounce(&key, false, 3, 3)
	assert.True(t, reported, "report state flips exactly when the countdown reaches zero")
}

func TestDebounceZeroTicksIsPassThrough(t *testing.T) {
	var key advancedkey.Key
	key.State = true
	reported := debounce(&key, true, 0, 0)
	assert.True(t, reported)
	assert.EqualValues(t, 0, key.DebounceLeft)
}

func TestDebounceDirectionReversalReloadsOppositeCounter(t *testing.T) {
	var key advancedkey.Key
	key.State = true
	debounce(&key, true, 5, 5)
	require.EqualValues(t, 4, key.DebounceLeft, "one decrement happens in the same call that loads the counter")

	// reverse mid-countdown
	key.State = false
	reported := debounce(&key, true, 5, 5)
	assert.False(t, reported)
	assert.EqualValues(t, -4, key.DebounceLeft, "reversal reloads the release counter (then ticks once), not a continuation of the press one")
}

// --- tick-loop ordering -----------------------------------------------------

func TestTickDispatchesKeyDownOnPress(t *testing.T) {
	kb, codes := newTestKeyboard(1)
	kb.DebouncePressTicks, kb.DebounceReleaseTicks = 0, 0
	pressed := false
	kb.ReadRaw = func(id uint16) float64 {
		if pressed {
			return 0 // Normalize maps UpperBound-raw, so 0 raw -> max value
		}
		return 1
	}
	var sent []byte
	kb.Transport.SendKeyboard = func(r []byte) error { sent = r; return nil }

	kb.Tick() // released, no report expected
	assert.False(t, kb.ReportFlags.Keyboard)

	pressed = true
	kb.Tick()
	assert.True(t, kb.Bitmap[0]&1 != 0, "bitmap bit set on press")
	require.NotNil(t, sent)
	assert.Equal(t, codes[0].SubUsage(), sent[2], "pressed key lands in the first report slot")
}

func TestTickFillReassertsHeldKeyEveryTick(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	kb.DebouncePressTicks, kb.DebounceReleaseTicks = 0, 0
	kb.ReadRaw = func(id uint16) float64 { return 0 } // held down every tick

	var sends int
	kb.Transport.SendKeyboard = func(r []byte) error { sends++; return nil }

	kb.Tick()
	kb.Tick()
	kb.Tick()
	assert.Equal(t, 3, sends, "fill pass re-sends the report every tick the key is held")
}

func TestTickSuspendSkipsReportUntilDirtyThenWakes(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	kb.DebouncePressTicks, kb.DebounceReleaseTicks = 0, 0
	kb.Suspend = true
	kb.ReadRaw = func(id uint16) float64 { return 1 } // released, no change

	wake := 0
	kb.Transport.SendRemoteWakeup = func() error { wake++; return nil }
	sent := 0
	kb.Transport.SendKeyboard = func(r []byte) error { sent++; return nil }

	kb.Tick()
	assert.True(t, kb.Suspend, "stays suspended while nothing changed")
	assert.Zero(t, sent)

	kb.ReadRaw = func(id uint16) float64 { return 0 } // press -> raw state change
	kb.Tick()
	assert.False(t, kb.Suspend, "a dirty tick wakes the link")
	assert.Equal(t, 1, wake)
}

func TestTickContinuousPollForcesKeyboardDirty(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	kb.Config.ContinuousPoll = true
	kb.ReadRaw = func(id uint16) float64 { return 1 } // always released

	sends := 0
	kb.Transport.SendKeyboard = func(r []byte) error { sends++; return nil }

	kb.Tick()
	kb.Tick()
	assert.Equal(t, 2, sends, "continuous poll sends every tick even with no key activity")
}

// --- bitmap walk -------------------------------------------------------------

func TestBitmapWalkVisitsEveryHeldKeyAcrossWords(t *testing.T) {
	kb, codes := newTestKeyboard(40) // exercises a bitmap spanning more than one word
	kb.DebouncePressTicks, kb.DebounceReleaseTicks = 0, 0

	held := []uint16{3, 31, 32, 39}
	heldSet := map[uint16]bool{}
	for _, id := range held {
		heldSet[id] = true
	}
	kb.ReadRaw = func(id uint16) float64 {
		if heldSet[id] {
			return 0
		}
		return 1
	}

	kb.Tick()

	wantSubs := make([]uint8, len(held))
	for i, id := range held {
		wantSubs[i] = codes[id].SubUsage()
	}
	assert.ElementsMatch(t, wantSubs, kb.SixKRO.Keys[:kb.SixKRO.Count], "every held key across multiple bitmap words is walked")
}

// --- dynamic-key fill-pass reassertion ---------------------------------------
//
// S2/S3 require a held ModTap/ToggleKey/MutexPair binding to keep landing
// in every tick's report, exactly like a held plain key or Stroke4x4
// binding — these drive that through Tick() end to end.

func newDynamicKeyTestKeyboard(self keycode.Code, numKeys int) (*Keyboard, []*advancedkey.AdvancedKey) {
	codes := make([]keycode.Code, numKeys)
	aks := make([]*advancedkey.AdvancedKey, numKeys)
	for i := range codes {
		codes[i] = self
		aks[i] = advancedkey.New(uint16(i), digitalKeyConfig())
	}
	kb := New(aks, nil, flatKeymap(codes), 8)
	kb.DebouncePressTicks, kb.DebounceReleaseTicks = 0, 0
	return kb, aks
}

func TestFillBuffersReassertsHeldModTap(t *testing.T) {
	self := keycode.New(keycode.DomainDynamicKey, 0)
	kb, _ := newDynamicKeyTestKeyboard(self, 1)

	tap := keycode.New(keycode.DomainKeyboard, 4)
	hold := keycode.New(keycode.DomainKeyboard, 5)
	mt := &dynamickey.ModTap{Self: self, KeyID: 0, Binding: [2]keycode.Code{tap, hold}, Duration: 2}
	kb.ModTaps = []*dynamickey.ModTap{mt}

	kb.ReadRaw = func(id uint16) float64 { return 0 } // held down from tick 0

	var sent []byte
	kb.Transport.SendKeyboard = func(r []byte) error { sent = r; return nil }

	for i := 0; i < 5; i++ { // long enough to cross Duration and latch the hold binding
		kb.Tick()
	}
	require.NotNil(t, sent)
	require.True(t, mt.ReportState(), "key held past Duration must latch the hold binding")
	assert.Equal(t, hold.SubUsage(), sent[2], "held ModTap binding must reassert on the fill pass")

	sent = nil
	kb.Tick()
	require.NotNil(t, sent)
	assert.Equal(t, hold.SubUsage(), sent[2], "still held the next tick too")
}

func TestFillBuffersReassertsHeldToggleKey(t *testing.T) {
	self := keycode.New(keycode.DomainDynamicKey, 1)
	kb, _ := newDynamicKeyTestKeyboard(self, 1)

	binding := keycode.New(keycode.DomainKeyboard, 6)
	tk := &dynamickey.ToggleKey{Self: self, KeyID: 0, Binding: binding}
	kb.ToggleKeys = []*dynamickey.ToggleKey{tk}

	pressed := false
	kb.ReadRaw = func(id uint16) float64 {
		if pressed {
			return 0
		}
		return 1
	}

	var sent []byte
	kb.Transport.SendKeyboard = func(r []byte) error { sent = r; return nil }

	kb.Tick() // released, toggle still off
	pressed = true
	kb.Tick() // rising edge toggles on
	pressed = false
	kb.Tick() // physical release alone must not untoggle

	require.NotNil(t, sent)
	assert.Equal(t, binding.SubUsage(), sent[2], "toggled-on binding must reassert on the fill pass even though the physical key released")
}

func TestFillBuffersReassertsHeldMutexPair(t *testing.T) {
	self := keycode.New(keycode.DomainDynamicKey, 2)
	kb, _ := newDynamicKeyTestKeyboard(self, 2)

	binding0 := keycode.New(keycode.DomainKeyboard, 7)
	binding1 := keycode.New(keycode.DomainKeyboard, 8)
	mp := &dynamickey.MutexPair{
		Self:    self,
		KeyID:   [2]uint16{0, 1},
		Binding: [2]keycode.Code{binding0, binding1},
		Mode:    dynamickey.MutexKey1Priority,
	}
	kb.MutexPairs = []*dynamickey.MutexPair{mp}

	kb.ReadRaw = func(id uint16) float64 {
		if id == 0 {
			return 0 // key0 held
		}
		return 1 // key1 released
	}

	var sent []byte
	kb.Transport.SendKeyboard = func(r []byte) error { sent = r; return nil }

	kb.Tick()

	require.NotNil(t, sent)
	assert.Equal(t, binding0.SubUsage(), sent[2], "mutex-pair winning side's binding must reassert on the fill pass")
}

// --- keyboard-op side effects ------------------------------------------------

func dispatchOp(kb *Keyboard, sub uint8, kind event.Kind) {
	kb.Bus.Dispatch(event.New(keycode.New(keycode.DomainKeyboardOp, sub), kind, nil))
}

func TestOpsFireOnlyOnKeyDown(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	rebooted := 0
	kb.Ops.Reboot = func() { rebooted++ }

	dispatchOp(kb, keycode.OpReboot, event.KeyTrue)
	assert.Zero(t, rebooted, "a sustaining event must not trigger a one-shot op")

	dispatchOp(kb, keycode.OpReboot, event.KeyDown)
	assert.Equal(t, 1, rebooted)
}

func TestOpSwitchConfigDecodesIndex(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	got := -1
	kb.Ops.SwitchConfig = func(index int) { got = index }

	dispatchOp(kb, keycode.OpConfigIndex2, event.KeyDown)
	assert.Equal(t, 2, got)
	assert.Equal(t, 2, kb.CurrentConfig)
}

func TestOpBrightnessClampsAtZero(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	kb.RGBBrightness = 10
	dispatchOp(kb, keycode.OpRGBBrightnessDown, event.KeyDown)
	assert.EqualValues(t, 0, kb.RGBBrightness, "brightness never goes negative")
}

func TestApplyConfigBitSetResetToggle(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	const nkroBit = 1
	setCode := keycode.ConfigBitOp(keycode.OpConfigBitSet, nkroBit)
	toggleCode := keycode.ConfigBitOp(keycode.OpConfigBitToggle, nkroBit)
	resetCode := keycode.ConfigBitOp(keycode.OpConfigBitReset, nkroBit)

	kb.Bus.Dispatch(event.New(setCode, event.KeyDown, nil))
	assert.True(t, kb.Config.NKRO)

	kb.Bus.Dispatch(event.New(toggleCode, event.KeyDown, nil))
	assert.False(t, kb.Config.NKRO)

	kb.Bus.Dispatch(event.New(toggleCode, event.KeyDown, nil))
	assert.True(t, kb.Config.NKRO)

	kb.Bus.Dispatch(event.New(resetCode, event.KeyDown, nil))
	assert.False(t, kb.Config.NKRO)
}

// --- nexus master/slave round trip ------------------------------------------

func TestNexusMasterAppliesReceivedSlaveBitmap(t *testing.T) {
	resolver := flatKeymap([]keycode.Code{keycode.New(keycode.DomainKeyboard, 4), keycode.New(keycode.DomainKeyboard, 5)})
	keys := []*advancedkey.Key{{ID: 0}, {ID: 1}}
	kb := New(nil, keys, resolver, 4)
	kb.DebouncePressTicks, kb.DebounceReleaseTicks = 0, 0
	kb.Nexus = NewNexus(NexusMaster, []SlaveConfig{{Begin: 0, Length: 2}})

	kb.Nexus.ReceiveFromSlave(kb, 0, NexusFrame{Bitmap: []uint32{0b01}})
	kb.Nexus.process(kb)

	assert.True(t, keys[0].ReportState)
	assert.False(t, keys[1].ReportState)
}

func TestNexusSlaveTickStreamsRoundRobin(t *testing.T) {
	resolver := flatKeymap([]keycode.Code{keycode.New(keycode.DomainKeyboard, 4), keycode.New(keycode.DomainKeyboard, 5)})
	keys := []*advancedkey.Key{{ID: 0}, {ID: 1}}
	kb := New(nil, keys, resolver, 4)
	kb.ReadDigital = func(id uint16) bool { return id == 1 }
	kb.Nexus = NewNexus(NexusSlave, nil)

	var frames []NexusFrame
	kb.Nexus.SendToMaster = func(f NexusFrame) error { frames = append(frames, f); return nil }

	kb.Nexus.slaveTick(kb)
	kb.Nexus.slaveTick(kb)

	require.Len(t, frames, 2)
	assert.EqualValues(t, 0, frames[0].Index)
	assert.EqualValues(t, 1, frames[1].Index)
	assert.NotZero(t, frames[0].Bitmap[0]&0b10, "slave's own bitmap reflects the held key")
}

// --- MIDI --------------------------------------------------------------------

func dispatchMIDI(kb *Keyboard, sub uint8, kind event.Kind) {
	kb.Bus.Dispatch(event.New(keycode.New(keycode.DomainMIDI, sub), kind, nil))
}

func TestMIDIToneNoteOnOffLatches(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	var on, off []uint8
	kb.MIDI.NoteOn = func(ch, note, vel uint8) { on = append(on, note) }
	kb.MIDI.NoteOff = func(ch, note, vel uint8) { off = append(off, note) }

	dispatchMIDI(kb, 0, event.KeyDown) // tone index 0
	require.Len(t, on, 1)
	// a second down while already sounding must not re-fire note-on
	dispatchMIDI(kb, 0, event.KeyDown)
	assert.Len(t, on, 1)

	dispatchMIDI(kb, 0, event.KeyUp)
	require.Len(t, off, 1)
	assert.Equal(t, on[0], off[0], "note-off uses the latched note, not a recomputed one")
}

func TestMIDIDirectNoteUsesLowByteAsNoteNumber(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	var note uint8
	kb.MIDI.NoteOn = func(ch, n, vel uint8) { note = n }
	dispatchMIDI(kb, midiNoteBase+60, event.KeyDown)
	assert.EqualValues(t, 60, note)
}

func TestMIDISustainSendsFixedCC(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	var controller, value uint8
	kb.MIDI.CC = func(ch, c, v uint8) { controller, value = c, v }
	dispatchMIDI(kb, MIDISustain, event.KeyDown)
	assert.EqualValues(t, 0x40, controller)
	assert.EqualValues(t, 127, value)
	dispatchMIDI(kb, MIDISustain, event.KeyUp)
	assert.EqualValues(t, 0, value)
}

func TestMIDIPitchBendIsStatefulNotEdgeOnly(t *testing.T) {
	kb, _ := newTestKeyboard(1)
	var amount int16 = -1
	kb.MIDI.PitchBend = func(ch uint8, a int16) { amount = a }
	dispatchMIDI(kb, MIDIPitchBendUp, event.KeyDown)
	assert.EqualValues(t, 0x1FFF, amount)
	dispatchMIDI(kb, MIDIPitchBendUp, event.KeyUp)
	assert.EqualValues(t, 0, amount, "release resets bend to center rather than leaving it latched")
}
