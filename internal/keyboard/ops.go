package keyboard

import (
	"github.com/HopIT-Hub/AmpCore/internal/event"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

// RGBBrightnessStep is the fixed step keyboard_operation_event_handler
// applies per brightness-up/down event.
const RGBBrightnessStep = 16

// Ops collects the external side-effect hooks a keyboard-op keycode
// drives. Every hook is optional; a nil hook makes that op a no-op.
type Ops struct {
	Reboot        func()
	Bootloader    func()
	FactoryReset  func()
	Save          func() error
	SwitchConfig  func(index int) // keyboard_recovery: reload from the newly selected slot
	SetBrightness func(level uint8)
}

// keyboardOpEventHandler implements keyboard_operation_event_handler:
// every op fires once on the triggering key-down, never on sustain or
// release, and config-bit ops mutate the persisted behavior bits
// in-place via keycode.DecodeConfigBitOp.
func (kb *Keyboard) keyboardOpEventHandler(e event.KeyboardEvent) {
	if e.Kind != event.KeyDown {
		return
	}
	sub := e.Keycode.SubUsage()

	switch sub {
	case keycode.OpReboot:
		if kb.Ops.Reboot != nil {
			kb.Ops.Reboot()
		}
	case keycode.OpBootloader:
		if kb.Ops.Bootloader != nil {
			kb.Ops.Bootloader()
		}
	case keycode.OpFactoryReset:
		if kb.Ops.FactoryReset != nil {
			kb.Ops.FactoryReset()
		}
	case keycode.OpSave:
		if kb.Ops.Save != nil {
			_ = kb.Ops.Save()
		}
	case keycode.OpConfigIndex0, keycode.OpConfigIndex1, keycode.OpConfigIndex2, keycode.OpConfigIndex3:
		kb.switchConfig(int(sub - keycode.OpConfigIndex0))
	case keycode.OpRGBBrightnessUp:
		kb.adjustBrightness(RGBBrightnessStep)
	case keycode.OpRGBBrightnessDown:
		kb.adjustBrightness(-RGBBrightnessStep)
	default:
		// Everything else is a config-bit op (set/reset/toggle) with a
		// bit index packed into the high nibble by keycode.ConfigBitOp;
		// the low nibble alone (matched against OpConfigBit*) only
		// disambiguates when bit == 0, so decode unconditionally.
		kb.applyConfigBit(e.Keycode)
	}
}

// SwitchConfig applies a persisted-slot switch exactly as the
// config-index keyboard-op does. Exposed for the raw config packet
// layer's config-index set handler, which changes the active slot
// outside of any keycode dispatch.
func (kb *Keyboard) SwitchConfig(index int) { kb.switchConfig(index) }

// ConfigBit returns a pointer to one of the four persisted config bits
// (0=debug, 1=nkro, 2=winlock, 3=continuous_poll), or nil for an
// out-of-range index. Exposed for the raw config packet layer's
// config-bitmap set/reset/get handler.
func (kb *Keyboard) ConfigBit(index uint8) *bool { return kb.Config.bit(index) }

func (kb *Keyboard) switchConfig(index int) {
	kb.CurrentConfig = index
	if kb.Ops.SwitchConfig != nil {
		kb.Ops.SwitchConfig(index)
	}
}

func (kb *Keyboard) adjustBrightness(delta int) {
	v := int(kb.RGBBrightness) + delta
	if v < 0 {
		v = 0
	}
	if v > 255 {
		v = 255
	}
	kb.RGBBrightness = uint8(v)
	if kb.Ops.SetBrightness != nil {
		kb.Ops.SetBrightness(kb.RGBBrightness)
	}
}

// applyConfigBit handles OpConfigBitSet/Reset/Toggle, packed with the
// target bit index by keycode.ConfigBitOp (mirroring KEYBOARD_CONFIG).
func (kb *Keyboard) applyConfigBit(kc keycode.Code) {
	op, bit := kc.DecodeConfigBitOp()
	target := kb.Config.bit(bit)
	if target == nil {
		return
	}
	switch op {
	case keycode.OpConfigBitSet:
		*target = true
	case keycode.OpConfigBitReset:
		*target = false
	case keycode.OpConfigBitToggle:
		*target = !*target
	}
}
