package keyboard

import (
	"math/bits"

	"github.com/HopIT-Hub/AmpCore/internal/dynamickey"
	"github.com/HopIT-Hub/AmpCore/internal/event"
	"github.com/HopIT-Hub/AmpCore/internal/holdinglist"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

// Tick runs one pass of keyboard_task: hardware scan, the nexus
// master/slave branch, per-key update/debounce/event, the dynamic-key
// pass, the optional script tick, suspend/remote-wakeup handling, and
// (unless suspended) report composition and dispatch.
func (kb *Keyboard) Tick() {
	if kb.Scan != nil {
		kb.Scan()
	}

	if kb.Nexus != nil && kb.Nexus.Role == NexusSlave {
		kb.Nexus.slaveTick(kb)
		kb.Tick++
		return
	}
	if kb.Nexus != nil && kb.Nexus.Role == NexusMaster {
		kb.Nexus.process(kb)
	}

	changed := false
	for _, k := range kb.AdvancedKeys {
		raw := 0.0
		if kb.ReadRaw != nil {
			raw = kb.ReadRaw(k.ID)
		}
		if kb.updateAdvanced(k, raw, kb.DebouncePressTicks, kb.DebounceReleaseTicks) {
			changed = true
		}
	}
	for _, k := range kb.Keys {
		state := false
		if kb.ReadDigital != nil {
			state = kb.ReadDigital(k.ID)
		}
		if kb.PressDigital(k, state, kb.DebouncePressTicks, kb.DebounceReleaseTicks) {
			changed = true
		}
	}

	kb.runDynamicKeys()

	if kb.Script != nil {
		kb.Script()
	}
	kb.midiTick()

	dirty := changed || kb.ReportFlags.any()

	if kb.Suspend {
		if !dirty {
			kb.Tick++
			return
		}
		kb.Suspend = false
		if kb.Transport.SendRemoteWakeup != nil {
			_ = kb.Transport.SendRemoteWakeup()
		}
	}

	kb.clearBuffers()
	kb.fillBuffers()

	if kb.Config.ContinuousPoll {
		kb.ReportFlags.Keyboard = true
	}

	kb.sendBuffers()

	kb.Tick++
}

// runDynamicKeys runs every registered dynamic key's Process against its
// underlying key reference(s) looked up by id. A dynamic key whose id no
// longer resolves (a malformed table) is silently skipped, per §4.5's
// failure semantics for an invalid underlying key id.
func (kb *Keyboard) runDynamicKeys() {
	for _, s := range kb.Strokes {
		if ref, ok := kb.refByID[s.KeyID].(dynamickey.AnalogRef); ok {
			s.Process(kb.Resolver, ref, kb.Tick, kb.Bus)
		}
	}
	for _, m := range kb.ModTaps {
		if ref, ok := kb.refByID[m.KeyID]; ok {
			m.Process(kb.Resolver, ref, kb.Tick, kb.Bus)
		}
	}
	for _, t := range kb.ToggleKeys {
		if ref, ok := kb.refByID[t.KeyID]; ok {
			t.Process(kb.Resolver, ref, kb.Bus)
		}
	}
	for _, mp := range kb.MutexPairs {
		ref0, ok0 := kb.refByID[mp.KeyID[0]]
		ref1, ok1 := kb.refByID[mp.KeyID[1]]
		if ok0 && ok1 {
			mp.Process(kb.Resolver, ref0, ref1, kb.Bus)
		}
	}
}

func (kb *Keyboard) clearBuffers() {
	kb.SixKRO.Clear()
	kb.NKRO.Clear()
	kb.Mouse.Clear()
	kb.Consumer.Clear()
	kb.System.Clear()
	kb.Joystick.Clear()
	kb.ReportFlags = ReportFlags{}
}

// fillBuffers walks the key bitmap, the dynamic-key active set, and the
// holding list, feeding a KeyTrue reassertion for each still-held
// keycode directly into the report sinks. Unlike Bus.Dispatch (used for
// KeyDown/KeyUp edges), this bypasses script/macro forwarding and the
// Layer/KeyboardOp/DynamicKey sinks: re-running a keyboard-op or layer
// mutation every tick a key is held is not the fill pass's job.
func (kb *Keyboard) fillBuffers() {
	for word, w := range kb.Bitmap {
		for w != 0 {
			bit := bits.TrailingZeros32(w)
			id := uint16(word*32 + bit)
			w &^= 1 << uint(bit)
			kb.addToReport(kb.Resolver.Keycode(int(id)), kb.sourceByID[id])
		}
	}

	for _, s := range kb.Strokes {
		src := kb.sourceByID[s.KeyID]
		for _, kc := range s.ActiveBindings() {
			kb.addToReport(kc, src)
		}
	}

	for _, m := range kb.ModTaps {
		kb.addToReport(m.ActiveBinding(), kb.sourceByID[m.KeyID])
	}

	for _, t := range kb.ToggleKeys {
		kb.addToReport(t.ActiveBinding(), kb.sourceByID[t.KeyID])
	}

	for _, mp := range kb.MutexPairs {
		b0, b1 := mp.ActiveBindings()
		kb.addToReport(b0, kb.sourceByID[mp.KeyID[0]])
		kb.addToReport(b1, kb.sourceByID[mp.KeyID[1]])
	}

	kb.Holding.Each(func(item holdinglist.Item) {
		kb.addToReport(item.Event.Keycode, item.Event.Source)
	})
}

// addToReport routes one "still active" keycode directly to the report
// sink for its domain, without touching the side-effect-bearing sinks.
func (kb *Keyboard) addToReport(kc keycode.Code, source event.Source) {
	if kc == keycode.No {
		return
	}
	ev := event.New(kc, event.KeyTrue, source)
	switch kc.Domain() {
	case keycode.DomainMouse:
		kb.mouseEventHandler(ev)
	case keycode.DomainConsumer, keycode.DomainSystem:
		kb.extraKeyEventHandler(ev)
	case keycode.DomainJoystick:
		kb.joystickEventHandler(ev)
	case keycode.DomainKeyboard, keycode.DomainModifier:
		kb.defaultEventHandler(ev)
	}
}

// sendBuffers dispatches every dirty report sink through its Transport
// hook, clearing the dirty flag only on success (a nil result); ErrBusy
// or any other error leaves it set so the next tick retries, per the
// cooperative no-blocking contract.
func (kb *Keyboard) sendBuffers() {
	if kb.ReportFlags.Keyboard && kb.Transport.SendKeyboard != nil {
		var payload []byte
		if kb.Config.NKRO {
			payload = kb.NKRO.Bytes(kb.Config.WinLock)
		} else {
			payload = kb.SixKRO.Bytes(kb.Config.WinLock)
		}
		if kb.Transport.SendKeyboard(payload) == nil {
			kb.ReportFlags.Keyboard = false
		}
	}
	if kb.ReportFlags.Mouse && kb.Transport.SendMouse != nil {
		if kb.Transport.SendMouse(kb.Mouse.Bytes()) == nil {
			kb.ReportFlags.Mouse = false
		}
	}
	if kb.ReportFlags.Consumer && kb.Transport.SendConsumer != nil {
		if kb.Transport.SendConsumer(kb.Consumer.Bytes()) == nil {
			kb.ReportFlags.Consumer = false
		}
	}
	if kb.ReportFlags.System && kb.Transport.SendSystem != nil {
		if kb.Transport.SendSystem(kb.System.Bytes()) == nil {
			kb.ReportFlags.System = false
		}
	}
	if kb.ReportFlags.Joystick && kb.Transport.SendJoystick != nil {
		if kb.Transport.SendJoystick(kb.Joystick.Bytes()) == nil {
			kb.ReportFlags.Joystick = false
		}
	}
}
