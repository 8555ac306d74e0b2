// Package keyboard implements the tick-loop aggregate (C10): the per-tick
// advanced-key update/debounce/event pass (folding in C3, the key
// debouncer, which the source embeds directly in keyboard.c rather than
// giving it its own file), the dynamic-key pass, and report composition
// and dispatch. ops.go, nexus.go and midi.go extend the aggregate with
// keyboard-operation side effects, multi-board pass-through, and the MIDI
// event boundary respectively.
package keyboard

import (
	"errors"

	"github.com/HopIT-Hub/AmpCore/internal/advancedkey"
	"github.com/HopIT-Hub/AmpCore/internal/dynamickey"
	"github.com/HopIT-Hub/AmpCore/internal/event"
	"github.com/HopIT-Hub/AmpCore/internal/holdinglist"
	"github.com/HopIT-Hub/AmpCore/internal/layer"
	"github.com/HopIT-Hub/AmpCore/internal/report"
)

// ErrBusy is returned by a Transport send hook to mean "host stack is not
// ready, retry next tick". Any other error is treated the same way by the
// core (the report is left dirty) but ErrBusy names the expected case.
var ErrBusy = errors.New("keyboard: transport busy")

// Transport is the set of non-blocking send hooks the core drives once a
// tick's reports are composed. Every hook returns nil on acceptance,
// ErrBusy to request a retry next tick, or any other error (treated the
// same as ErrBusy but worth logging).
type Transport struct {
	SendKeyboard      func(report []byte) error
	SendSharedEP      func(report []byte) error
	SendNKRO          func(report []byte) error
	SendMouse         func(report []byte) error
	SendConsumer      func(report []byte) error
	SendSystem        func(report []byte) error
	SendJoystick      func(report []byte) error
	SendMIDI          func(report []byte) error
	SendRemoteWakeup  func() error
}

// Config mirrors KeyboardConfig: the four persisted behavior bits plus
// enable_report, which is never persisted (it is driven by nexus-slave
// mode and suspend handling instead).
type Config struct {
	Debug           bool
	NKRO            bool
	WinLock         bool
	ContinuousPoll  bool
	EnableReport    bool
}

// bit returns a pointer to one of Config's four persisted bits, indexed
// the way KEYBOARD_CONFIG_* enumerates them in the source (0=debug,
// 1=nkro, 2=winlock, 3=continuous_poll), or nil for any other index.
func (c *Config) bit(index uint8) *bool {
	switch index {
	case 0:
		return &c.Debug
	case 1:
		return &c.NKRO
	case 2:
		return &c.WinLock
	case 3:
		return &c.ContinuousPoll
	default:
		return nil
	}
}

// ReportFlags mirrors KeyboardReportFlag: one dirty bit per report sink.
type ReportFlags struct {
	Keyboard bool
	Mouse    bool
	Consumer bool
	System   bool
	Joystick bool
}

func (f *ReportFlags) any() bool {
	return f.Keyboard || f.Mouse || f.Consumer || f.System || f.Joystick
}

// Keyboard is the tick-loop aggregate: every physical/advanced key, the
// layer resolver, the dynamic-key tables, the report buffers, and the
// transport/storage collaborators the core drives each tick.
type Keyboard struct {
	AdvancedKeys []*advancedkey.AdvancedKey
	Keys         []*advancedkey.Key // KEY_NUM plain digital keys, ids continue past ADVANCED_KEY_NUM

	Resolver *layer.Resolver
	Bus      *event.Bus

	Strokes     []*dynamickey.Stroke4x4
	ModTaps     []*dynamickey.ModTap
	ToggleKeys  []*dynamickey.ToggleKey
	MutexPairs  []*dynamickey.MutexPair

	Holding *holdinglist.List

	SixKRO   report.SixKRO
	NKRO     report.NKRO
	Mouse    report.Mouse
	Consumer report.ExtraKey
	System   report.ExtraKey
	Joystick report.Joystick

	Config      Config
	ReportFlags ReportFlags

	// Bitmap is the process-wide key bitmap (KEY_BITMAP_SIZE words): bit
	// id is set while key id's report_state is true. Walked by the
	// report-fill pass via math/bits.TrailingZeros32 instead of the
	// per-key report_state slice, per OPTIMIZE_KEY_BITMAP in the source.
	Bitmap []uint32

	// DebouncePressTicks/DebounceReleaseTicks are DEBOUNCE_PRESS/
	// DEBOUNCE_RELEASE: the global tick counts C3 loads on a rising/
	// falling edge. Zero makes that direction pass-through.
	DebouncePressTicks   uint32
	DebounceReleaseTicks uint32

	Tick          uint32
	Suspend       bool
	CurrentConfig int // active persisted config slot index

	Transport Transport
	Nexus     *Nexus
	Ops       Ops
	MIDI      MIDISender

	RGBBrightness uint8

	// ReadRaw is the external ADC collaborator: given an advanced key's
	// id, returns its latest raw sample (a ring-buffer average, or
	// whatever the caller's scan step produced this tick).
	ReadRaw func(id uint16) float64

	// Scan is the external hardware-scan hook invoked at the top of each
	// tick, before any key is read. It populates whatever ReadRaw/plain
	// key state reads from; the core does not interpret it.
	Scan func()

	// ReadDigital reads a plain (non-advanced) key's physical state.
	ReadDigital func(id uint16) bool

	// Script is the optional script/macro tick hook (step 4 of C10). It
	// may itself push/pop holding-list entries and dispatch synthetic
	// events through Bus.
	Script func()

	refByID         map[uint16]dynamickey.KeyRef
	sourceByID      map[uint16]event.Source
	keyByID         map[uint16]*advancedkey.Key
	advancedKeyByID map[uint16]*advancedkey.AdvancedKey

	mouseReportRate float64
	mouseMaxSpeed   float64

	midi *midiState
}

// New builds a Keyboard over already-constructed advanced/plain keys and
// a layer resolver, with a holding list of holdingCapacity arena nodes.
// Dynamic keys are added by the caller after construction
// (AppendStroke/AppendModTap/...).
func New(advancedKeys []*advancedkey.AdvancedKey, keys []*advancedkey.Key, resolver *layer.Resolver, holdingCapacity int) *Keyboard {
	maxID := uint16(0)
	for _, k := range advancedKeys {
		if k.ID > maxID {
			maxID = k.ID
		}
	}
	for _, k := range keys {
		if k.ID > maxID {
			maxID = k.ID
		}
	}

	kb := &Keyboard{
		AdvancedKeys:         advancedKeys,
		Keys:                 keys,
		Resolver:             resolver,
		Holding:              holdinglist.New(holdingCapacity),
		Config:               Config{EnableReport: true},
		Bitmap:               make([]uint32, maxID/32+1),
		DebouncePressTicks:   5,
		DebounceReleaseTicks: 5,
		refByID:              make(map[uint16]dynamickey.KeyRef, len(advancedKeys)+len(keys)),
		sourceByID:           make(map[uint16]event.Source, len(advancedKeys)+len(keys)),
		keyByID:              make(map[uint16]*advancedkey.Key, len(advancedKeys)+len(keys)),
		advancedKeyByID:      make(map[uint16]*advancedkey.AdvancedKey, len(advancedKeys)),
		mouseReportRate:      1000,
		mouseMaxSpeed:        report.DefaultMouseMaxSpeed,
	}
	for _, k := range advancedKeys {
		kb.refByID[k.ID] = dynamickey.WrapAdvancedKey(k)
		kb.sourceByID[k.ID] = k
		kb.keyByID[k.ID] = &k.Key
		kb.advancedKeyByID[k.ID] = k
	}
	for _, k := range keys {
		kb.refByID[k.ID] = dynamickey.WrapKey(k)
		kb.sourceByID[k.ID] = k
		kb.keyByID[k.ID] = k
	}

	kb.Bus = event.NewBus(event.Sinks{
		Mouse:      kb.mouseEventHandler,
		Consumer:   kb.extraKeyEventHandler,
		System:     kb.extraKeyEventHandler,
		Joystick:   kb.joystickEventHandler,
		MIDI:       kb.midiEventHandler,
		Layer:      kb.layerEventHandler,
		KeyboardOp: kb.keyboardOpEventHandler,
		DynamicKey: kb.dynamicKeyEventHandler,
		Default:    kb.defaultEventHandler,
	})
	return kb
}

// SetMouseRate overrides the mouse axis fractional-carry parameters
// (POLLING_RATE and MOUSE_MAX_SPEED in the source).
func (kb *Keyboard) SetMouseRate(reportRate, maxSpeed float64) {
	kb.mouseReportRate = reportRate
	kb.mouseMaxSpeed = maxSpeed
}

// AppendStroke, AppendModTap, AppendToggleKey and AppendMutexPair add one
// dynamic key of each family to the keyboard's tables.
func (kb *Keyboard) AppendStroke(s *dynamickey.Stroke4x4)       { kb.Strokes = append(kb.Strokes, s) }
func (kb *Keyboard) AppendModTap(m *dynamickey.ModTap)          { kb.ModTaps = append(kb.ModTaps, m) }
func (kb *Keyboard) AppendToggleKey(t *dynamickey.ToggleKey)    { kb.ToggleKeys = append(kb.ToggleKeys, t) }
func (kb *Keyboard) AppendMutexPair(m *dynamickey.MutexPair)    { kb.MutexPairs = append(kb.MutexPairs, m) }

// debounce implements C3's debounce(key) contract: changed/newState is
// the rising/falling edge this tick's raw update just produced. A
// pressTicks/releaseTicks of zero makes that direction pass-through.
// Direction reversal mid-countdown always reloads the opposite counter,
// matching "the counter is reset on direction reversal".
func debounce(key *advancedkey.Key, changed bool, pressTicks, releaseTicks uint32) bool {
	if changed {
		if key.State {
			if pressTicks == 0 {
				key.DebounceLeft = 0
				return true
			}
			key.DebounceLeft = int16(pressTicks)
		} else {
			if releaseTicks == 0 {
				key.DebounceLeft = 0
				return false
			}
			key.DebounceLeft = -int16(releaseTicks)
		}
	}
	switch {
	case key.DebounceLeft > 0:
		key.DebounceLeft--
		if key.DebounceLeft == 0 {
			return key.State
		}
		return key.ReportState
	case key.DebounceLeft < 0:
		key.DebounceLeft++
		if key.DebounceLeft == 0 {
			return key.State
		}
		return key.ReportState
	default:
		return key.State
	}
}

// setReportState applies a freshly debounced value to key, dispatching
// KeyDown/KeyUp on change and releasing any layer lock held for this key
// id on KeyUp, mirroring keyboard_key_set_report_state plus the
// keymap_lock clear it performs inline.
func (kb *Keyboard) setReportState(key *advancedkey.Key, debounced bool, source event.Source) bool {
	changed := debounced != key.ReportState
	key.ReportState = debounced
	kb.setBitmapBit(key.ID, debounced)

	var ev event.Kind
	switch {
	case changed && debounced:
		ev = event.KeyDown
	case changed && !debounced:
		ev = event.KeyUp
	default:
		ev = event.NoEvent
	}
	if ev == event.NoEvent {
		return changed
	}
	kb.Bus.Dispatch(event.New(kb.Resolver.Keycode(int(key.ID)), ev, source))
	if ev == event.KeyUp && kb.Resolver.Locked(int(key.ID)) {
		kb.Resolver.Unlock(int(key.ID))
	}
	return changed
}

// PressDigital feeds one tick's physical sample for a plain (non-
// advanced) key through edge detection, debounce, and event dispatch,
// mirroring keyboard_key_update.
func (kb *Keyboard) PressDigital(key *advancedkey.Key, state bool, pressTicks, releaseTicks uint32) bool {
	changed := state != key.State
	key.State = state
	debounced := debounce(key, changed, pressTicks, releaseTicks)
	return kb.setReportState(key, debounced, key)
}

// updateAdvanced feeds one tick's raw sample for an advanced key through
// C2's update_raw, C3's debounce, and event dispatch, mirroring
// keyboard_advanced_key_update_raw.
func (kb *Keyboard) updateAdvanced(key *advancedkey.AdvancedKey, raw float64, pressTicks, releaseTicks uint32) bool {
	changed := key.UpdateRaw(raw)
	debounced := debounce(&key.Key, changed, pressTicks, releaseTicks)
	return kb.setReportState(&key.Key, debounced, key)
}

func (kb *Keyboard) setBitmapBit(id uint16, set bool) {
	word, bit := id/32, id%32
	if int(word) >= len(kb.Bitmap) {
		return
	}
	if set {
		kb.Bitmap[word] |= 1 << bit
	} else {
		kb.Bitmap[word] &^= 1 << bit
	}
}

// EffectiveValue returns a key-or-advanced-key's effective analog value
// (KEYBOARD_GET_KEY_EFFECTIVE_ANALOG_VALUE): an advanced key's own
// deadzone-adjusted value, or AnalogValueMax/AnalogValueMin for a plain
// key depending on its physical state.
func EffectiveValue(source event.Source) float64 {
	switch k := source.(type) {
	case *advancedkey.AdvancedKey:
		return k.EffectiveValue(k.Value)
	case *advancedkey.Key:
		if k.State {
			return advancedkey.AnalogValueMax
		}
		return advancedkey.AnalogValueMin
	default:
		return advancedkey.AnalogValueMin
	}
}
