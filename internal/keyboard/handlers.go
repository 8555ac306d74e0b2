package keyboard

import (
	"github.com/HopIT-Hub/AmpCore/internal/event"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
	"github.com/HopIT-Hub/AmpCore/internal/report"
)

// mouseEventHandler implements C7's mouse add path: button/wheel
// keycodes fire on the edge/sustain events Add already understands;
// axis keycodes need the originating key's effective analog value and
// the tick counter, both only available here (not inside report.Mouse).
func (kb *Keyboard) mouseEventHandler(e event.KeyboardEvent) {
	kind, _ := e.Keycode.MouseSubField()
	switch kind {
	case report.MouseKindButton, report.MouseKindWheelV, report.MouseKindWheelH:
		if e.Kind == event.KeyDown || e.Kind == event.KeyTrue {
			kb.Mouse.Add(e.Keycode)
			kb.ReportFlags.Mouse = true
		}
	default: // axis
		if e.Kind == event.KeyTrue {
			v := EffectiveValue(e.Source)
			kb.Mouse.SetAxis(e.Keycode, v, kb.Tick, kb.mouseReportRate, kb.mouseMaxSpeed)
			kb.ReportFlags.Mouse = true
		}
	}
}

// extraKeyEventHandler implements the consumer/system "last usage wins,
// release clears" add path, shared by both domains.
func (kb *Keyboard) extraKeyEventHandler(e event.KeyboardEvent) {
	buf := &kb.Consumer
	dirty := &kb.ReportFlags.Consumer
	if e.Keycode.Domain() == keycode.DomainSystem {
		buf, dirty = &kb.System, &kb.ReportFlags.System
	}
	usage := report.RawSubCode(e.Keycode)
	switch e.Kind {
	case event.KeyDown:
		buf.SetUsage(usage)
		*dirty = true
	case event.KeyTrue:
		buf.SetUsageIfEmpty(usage)
		*dirty = true
	case event.KeyUp:
		buf.Release()
		*dirty = true
	}
}

// joystickEventHandler implements C7's joystick add path. A direction of
// 0 is unused by JoystickAxisField's {positive,negative,bipolar}
// encoding, so this core repurposes it to mark a button keycode (low 5
// bits = button index), keeping axis and button codes in one domain.
func (kb *Keyboard) joystickEventHandler(e event.KeyboardEvent) {
	direction, index := e.Keycode.JoystickAxisField()
	if direction == 0 {
		if e.Kind == event.KeyDown || e.Kind == event.KeyTrue {
			kb.Joystick.AddButton(index)
			kb.ReportFlags.Joystick = true
		}
		return
	}
	if e.Kind == event.KeyTrue {
		kb.Joystick.SetAxis(e.Keycode, EffectiveValue(e.Source))
		kb.ReportFlags.Joystick = true
	}
}

// layerEventHandler implements C4's layer-op side effects: momentary
// layers activate on key-down and release on key-up; on/off/toggle
// mutate the bitmap directly on key-down only. Before any of these
// mutations, every key whose report state is set (the originating key
// included) is locked so it keeps the keycode it was pressed under until
// its key-up releases the lock in setReportState.
func (kb *Keyboard) layerEventHandler(e event.KeyboardEvent) {
	op, layer := e.Keycode.DecodeLayerOp()
	if e.Kind == event.KeyDown || (op == keycode.LayerOpMomentary && e.Kind == event.KeyUp) {
		for id, k := range kb.keyByID {
			if k.ReportState && int(id) < kb.Resolver.NumKeys() {
				kb.Resolver.Lock(int(id))
			}
		}
	}
	switch op {
	case keycode.LayerOpMomentary:
		switch e.Kind {
		case event.KeyDown:
			kb.Resolver.MomentaryPress(int(layer))
		case event.KeyUp:
			kb.Resolver.MomentaryRelease(int(layer))
		}
	case keycode.LayerOpTurnOn:
		if e.Kind == event.KeyDown {
			kb.Resolver.Set(int(layer))
		}
	case keycode.LayerOpTurnOff:
		if e.Kind == event.KeyDown {
			kb.Resolver.Reset(int(layer))
		}
	case keycode.LayerOpToggle:
		if e.Kind == event.KeyDown {
			kb.Resolver.Toggle(int(layer))
		}
	}
	kb.ReportFlags.Keyboard = true
}

// dynamicKeyEventHandler handles a DomainDynamicKey event reaching the
// bus directly (e.g. a stroke binding that itself targets another
// dynamic key's reference code). The common case — a dynamic key's
// *bindings* resolving to keyboard/mouse/etc domains — is handled by
// those domains' own sinks since Dispatch re-enters the bus per binding
// event; this sink only covers a dynamic key referencing another
// dynamic key's Self code as a binding target, which the core treats
// as a no-op passthrough (chained dynamic keys are not supported).
func (kb *Keyboard) dynamicKeyEventHandler(e event.KeyboardEvent) {}

// defaultEventHandler marks the 6KRO/NKRO keyboard report dirty and
// fills it directly — used for DomainKeyboard and DomainModifier
// keycodes, which have no dedicated domain sink.
func (kb *Keyboard) defaultEventHandler(e event.KeyboardEvent) {
	switch e.Kind {
	case event.KeyDown, event.KeyTrue:
		if kb.Config.NKRO {
			kb.NKRO.Add(e.Keycode)
		} else {
			kb.SixKRO.Add(e.Keycode)
		}
		kb.ReportFlags.Keyboard = true
	}
}
