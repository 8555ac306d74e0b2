// Package packet implements the core's raw HID config-packet boundary
// (§6's "HID control plane"): a fixed 64-byte opcode/data-type record
// parsed and dispatched against a live *keyboard.Keyboard and
// *store.Store, plus (in large.go) the chunked large-set/large-get
// protocol used for payloads too big for one frame.
//
// Multi-byte fields are packed and unpacked by hand (manual byte-offset
// indexing and shifts), not encoding/binary — the same idiom the
// teacher's own accessory protocol code uses for its control-transfer
// payloads.
package packet

import (
	"math"

	"github.com/HopIT-Hub/AmpCore/internal/dynamickey"
	"github.com/HopIT-Hub/AmpCore/internal/event"
	"github.com/HopIT-Hub/AmpCore/internal/keyboard"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
	"github.com/HopIT-Hub/AmpCore/internal/store"
)

// Size is the fixed packet length the transport frames every config
// packet into, matching the source's 64-byte HID report payload.
const Size = 64

// HeaderSize is the two leading bytes every packet carries: opcode then
// data type. Everything from HeaderSize onward is type-specific payload.
const HeaderSize = 2

// Opcodes (byte 0), matching PACKET_CODE_*.
const (
	CodeAction uint8 = iota
	CodeSet
	CodeGet
	CodeLog
)

// CodeUser is the vendor-extension opcode, matching PACKET_CODE_USER.
const CodeUser uint8 = 0xFF

// Data types (byte 1), matching PACKET_DATA_*.
const (
	DataAdvancedKey uint8 = iota
	DataKeymap
	DataRGBBaseConfig
	DataRGBConfig
	DataDynamicKey
	DataConfigIndex
	DataConfig
	DataDebug
	DataReport
	DataVersion
	DataMacro
)

// --- manual byte packing, matching the teacher's aoa.go idiom ---------------

func putUint16(buf []byte, off int, v uint16) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
}

func getUint16(buf []byte, off int) uint16 {
	return uint16(buf[off]) | uint16(buf[off+1])<<8
}

func putUint32(buf []byte, off int, v uint32) {
	buf[off] = byte(v)
	buf[off+1] = byte(v >> 8)
	buf[off+2] = byte(v >> 16)
	buf[off+3] = byte(v >> 24)
}

func getUint32(buf []byte, off int) uint32 {
	return uint32(buf[off]) | uint32(buf[off+1])<<8 | uint32(buf[off+2])<<16 | uint32(buf[off+3])<<24
}

func putFloat32(buf []byte, off int, v float64) {
	putUint32(buf, off, math.Float32bits(float32(v)))
}

func getFloat32(buf []byte, off int) float64 {
	return float64(math.Float32frombits(getUint32(buf, off)))
}

// --- advanced-key config wire layout ----------------------------------------
//
// payload[0:2]  index (uint16)
// payload[2]    Mode
// payload[3]    CalibrationMode
// payload[4:44] 10 normalized thresholds, float32 each, in
//               AdvancedKeyConfigNormalized field order (Activation,
//               Deactivation, TriggerDistance, ReleaseDistance,
//               TriggerSpeed, ReleaseSpeed, UpperDeadzone, LowerDeadzone,
//               UpperBound, LowerBound).

const akFieldOffset = HeaderSize + 4

func putAdvancedKeyConfig(buf []byte, cfg store.AdvancedKeyConfigNormalized) {
	buf[HeaderSize+2] = cfg.Mode
	buf[HeaderSize+3] = cfg.CalibrationMode
	fields := [10]float64{
		cfg.ActivationValue, cfg.DeactivationValue,
		cfg.TriggerDistance, cfg.ReleaseDistance,
		cfg.TriggerSpeed, cfg.ReleaseSpeed,
		cfg.UpperDeadzone, cfg.LowerDeadzone,
		cfg.UpperBound, cfg.LowerBound,
	}
	for i, v := range fields {
		putFloat32(buf, akFieldOffset+4*i, v)
	}
}

func getAdvancedKeyConfig(buf []byte) store.AdvancedKeyConfigNormalized {
	f := func(i int) float64 { return getFloat32(buf, akFieldOffset+4*i) }
	return store.AdvancedKeyConfigNormalized{
		Mode:              buf[HeaderSize+2],
		CalibrationMode:   buf[HeaderSize+3],
		ActivationValue:   f(0),
		DeactivationValue: f(1),
		TriggerDistance:   f(2),
		ReleaseDistance:   f(3),
		TriggerSpeed:      f(4),
		ReleaseSpeed:      f(5),
		UpperDeadzone:     f(6),
		LowerDeadzone:     f(7),
		UpperBound:        f(8),
		LowerBound:        f(9),
	}
}

// --- keymap wire layout ------------------------------------------------------
//
// payload[0]    layer
// payload[1:3]  key id (uint16)
// payload[3:5]  keycode (uint16), set-only

// --- config-index wire layout ------------------------------------------------
//
// payload[0]    slot index

// --- config-bitmap wire layout -----------------------------------------------
//
// payload[0]    bit index
// payload[1]    action: 0 = get, 1 = set, 2 = reset, 3 = toggle (set-type
//               packets only use set/reset/toggle; get-type packets
//               ignore this byte and always read)

const (
	configBitGet uint8 = iota
	configBitSet
	configBitReset
	configBitToggle
)

// --- debug snapshot wire layout (get-only) -----------------------------------
//
// payload[0:2]  advanced key index (uint16)
// reply payload[2:10] raw (float32), value (float32), then state byte,
// report_state byte

// --- version wire layout (get-only) ------------------------------------------
//
// payload[0] major, payload[1] minor, payload[2] patch

// Dispatcher binds the raw packet protocol to a live keyboard and its
// config store, mirroring packet_process's direct access to
// g_keyboard_config/g_advanced_key/g_keymap. RGB and macro payloads are
// routed through optional hooks instead of direct keyboard fields: this
// module has no RGB/macro state of its own to mutate (see DESIGN.md), so
// a caller wires those in only once it has somewhere for them to land.
type Dispatcher struct {
	KB    *keyboard.Keyboard
	Store *store.Store

	// RGBBaseConfig/RGBConfig handle the RGB data types' set/get. Left
	// nil (silently ignored) until a lamp driver is wired in.
	SetRGBBaseConfig func(buf []byte) bool
	GetRGBBaseConfig func(buf []byte) bool
	SetRGBConfig     func(index int, buf []byte) bool
	GetRGBConfig     func(index int, buf []byte) bool

	// MacroSet/MacroGet handle the macro data type's set/get. Left nil
	// (silently ignored): macro/script bytecode storage is out of scope
	// (see §1 Non-goals and DESIGN.md).
	MacroSet func(index int, buf []byte) bool
	MacroGet func(index int, buf []byte) bool

	// Version returns the three-part firmware-equivalent version
	// reported by the version data type's get handler.
	Version func() (major, minor, patch uint8)
}

// Process parses one received Size-byte buffer, applies its effect to KB
// and/or Store, and returns the reply buffer (the same buffer, mutated
// in place for a Get, echoed unchanged for a Set/Action) the caller
// sends back over its transport. A malformed or out-of-range request is
// silently ignored per §7: existing state is left untouched and the
// original buffer is echoed back.
func (d *Dispatcher) Process(buf []byte) []byte {
	if len(buf) < Size {
		padded := make([]byte, Size)
		copy(padded, buf)
		buf = padded
	}
	code, typ := buf[0], buf[1]

	switch code {
	case CodeAction:
		d.processAction(buf)
	case CodeSet:
		d.processSet(typ, buf)
	case CodeGet:
		d.processGet(typ, buf)
	case CodeLog, CodeUser:
		// No in-core state to mutate; echoed back unchanged, matching
		// packet_process_user's pass-through default case.
	}
	return buf
}

// processAction dispatches byte[2] as a DomainKeyboardOp sub-usage
// directly into the event bus, mirroring packet_process's ACTION branch
// calling straight into keyboard_operation_event_handler.
func (d *Dispatcher) processAction(buf []byte) {
	if d.KB == nil || d.KB.Bus == nil {
		return
	}
	sub := buf[HeaderSize]
	kc := keycode.New(keycode.DomainKeyboardOp, sub)
	d.KB.Bus.Dispatch(event.New(kc, event.KeyDown, nil))
}

func (d *Dispatcher) processSet(typ uint8, buf []byte) {
	switch typ {
	case DataAdvancedKey:
		d.setAdvancedKey(buf)
	case DataKeymap:
		d.setKeymap(buf)
	case DataRGBBaseConfig:
		if d.SetRGBBaseConfig != nil {
			d.SetRGBBaseConfig(buf)
		}
	case DataRGBConfig:
		if d.SetRGBConfig != nil {
			d.SetRGBConfig(int(buf[HeaderSize]), buf)
		}
	case DataDynamicKey:
		d.setDynamicKey(buf)
	case DataConfigIndex:
		d.setConfigIndex(buf)
	case DataConfig:
		d.applyConfigBit(buf)
	case DataMacro:
		if d.MacroSet != nil {
			d.MacroSet(int(getUint16(buf, HeaderSize)), buf)
		}
	}
}

func (d *Dispatcher) processGet(typ uint8, buf []byte) {
	switch typ {
	case DataAdvancedKey:
		d.getAdvancedKey(buf)
	case DataKeymap:
		d.getKeymap(buf)
	case DataRGBBaseConfig:
		if d.GetRGBBaseConfig != nil {
			d.GetRGBBaseConfig(buf)
		}
	case DataRGBConfig:
		if d.GetRGBConfig != nil {
			d.GetRGBConfig(int(buf[HeaderSize]), buf)
		}
	case DataDynamicKey:
		d.getDynamicKey(buf)
	case DataConfigIndex:
		d.getConfigIndex(buf)
	case DataConfig:
		d.applyConfigBit(buf)
	case DataDebug:
		d.getDebug(buf)
	case DataVersion:
		d.getVersion(buf)
	case DataMacro:
		if d.MacroGet != nil {
			d.MacroGet(int(getUint16(buf, HeaderSize)), buf)
		}
	}
}

func (d *Dispatcher) setAdvancedKey(buf []byte) {
	if d.KB == nil {
		return
	}
	idx := int(getUint16(buf, HeaderSize))
	if idx < 0 || idx >= len(d.KB.AdvancedKeys) {
		return
	}
	cfg := store.AntiNormalizeAdvancedKeyConfig(getAdvancedKeyConfig(buf))
	ak := d.KB.AdvancedKeys[idx]
	// FilterDomain/EstimatedRange are build-time selections excluded
	// from the wire form (see store.go); preserve whatever the key was
	// already constructed with rather than zeroing them.
	cfg.FilterDomain = ak.Config.FilterDomain
	cfg.EstimatedRange = ak.Config.EstimatedRange
	ak.Config = cfg
	ak.SetBounds(cfg.UpperBound, cfg.LowerBound)
}

func (d *Dispatcher) getAdvancedKey(buf []byte) {
	if d.KB == nil {
		return
	}
	idx := int(getUint16(buf, HeaderSize))
	if idx < 0 || idx >= len(d.KB.AdvancedKeys) {
		return
	}
	cfg := store.NormalizeAdvancedKeyConfig(d.KB.AdvancedKeys[idx].Config)
	putAdvancedKeyConfig(buf, cfg)
}

func (d *Dispatcher) setKeymap(buf []byte) {
	if d.KB == nil || d.KB.Resolver == nil {
		return
	}
	layer := int(buf[HeaderSize])
	id := int(getUint16(buf, HeaderSize+1))
	kc := keycode.Code(getUint16(buf, HeaderSize+3))
	d.KB.Resolver.SetKeymapAt(layer, id, kc)
}

func (d *Dispatcher) getKeymap(buf []byte) {
	if d.KB == nil || d.KB.Resolver == nil {
		return
	}
	layer := int(buf[HeaderSize])
	id := int(getUint16(buf, HeaderSize+1))
	kc, ok := d.KB.Resolver.KeymapAt(layer, id)
	if !ok {
		return
	}
	putUint16(buf, HeaderSize+3, uint16(kc))
}

// setConfigIndex switches the active slot and, when a Store is wired,
// immediately reloads that slot's persisted advanced-key configs,
// keymap and stroke dynamic keys into the live keyboard, mirroring
// keyboard_recovery's read-then-apply sequence in the source.
func (d *Dispatcher) setConfigIndex(buf []byte) {
	if d.KB == nil {
		return
	}
	idx := int(buf[HeaderSize])
	if idx < 0 || idx >= store.NumSlots {
		return
	}
	d.KB.SwitchConfig(idx)
	if d.Store == nil {
		return
	}
	slot, err := d.Store.LoadSlot(idx)
	if err != nil {
		return
	}
	d.applySlot(slot)
}

// applySlot writes a loaded Slot's state into the live keyboard.
func (d *Dispatcher) applySlot(slot *store.Slot) {
	for i, cfg := range slot.AdvancedKeys {
		if i >= len(d.KB.AdvancedKeys) {
			break
		}
		ak := d.KB.AdvancedKeys[i]
		runtime := store.AntiNormalizeAdvancedKeyConfig(cfg)
		runtime.FilterDomain = ak.Config.FilterDomain
		runtime.EstimatedRange = ak.Config.EstimatedRange
		ak.Config = runtime
		ak.SetBounds(runtime.UpperBound, runtime.LowerBound)
	}
	if d.KB.Resolver != nil {
		for l, row := range slot.Keymap {
			for id, kc := range row {
				d.KB.Resolver.SetKeymapAt(l, id, kc)
			}
		}
	}
	for i, sn := range slot.Strokes {
		if i >= len(d.KB.Strokes) {
			break
		}
		self := d.KB.Strokes[i].Self
		d.KB.Strokes[i] = store.AntiNormalizeStroke(self, sn)
	}
}

// Snapshot builds a store.Slot from the keyboard's current advanced-key
// configs, keymap and stroke dynamic keys — the save-path counterpart
// to applySlot. Meant to be wired into Ops.Save, e.g.
// kb.Ops.Save = func() error { return st.SaveSlot(kb.CurrentConfig, d.Snapshot()) }.
func (d *Dispatcher) Snapshot() *store.Slot {
	slot := &store.Slot{}
	if d.KB == nil {
		return slot
	}
	for _, ak := range d.KB.AdvancedKeys {
		slot.AdvancedKeys = append(slot.AdvancedKeys, store.NormalizeAdvancedKeyConfig(ak.Config))
	}
	if d.KB.Resolver != nil {
		layers := d.KB.Resolver.NumKeymapLayers()
		keys := d.KB.Resolver.NumKeys()
		slot.Keymap = make([][]keycode.Code, layers)
		for l := 0; l < layers; l++ {
			row := make([]keycode.Code, keys)
			for id := 0; id < keys; id++ {
				row[id], _ = d.KB.Resolver.KeymapAt(l, id)
			}
			slot.Keymap[l] = row
		}
	}
	for _, s := range d.KB.Strokes {
		slot.Strokes = append(slot.Strokes, store.NormalizeStroke(s))
	}
	return slot
}

func (d *Dispatcher) getConfigIndex(buf []byte) {
	if d.KB == nil {
		return
	}
	buf[HeaderSize] = byte(d.KB.CurrentConfig)
}

func (d *Dispatcher) applyConfigBit(buf []byte) {
	if d.KB == nil {
		return
	}
	bit := buf[HeaderSize]
	action := buf[HeaderSize+1]
	target := d.KB.ConfigBit(bit)
	if target == nil {
		return
	}
	switch action {
	case configBitSet:
		*target = true
	case configBitReset:
		*target = false
	case configBitToggle:
		*target = !*target
	}
	if *target {
		buf[HeaderSize+2] = 1
	} else {
		buf[HeaderSize+2] = 0
	}
}

func (d *Dispatcher) getDebug(buf []byte) {
	if d.KB == nil {
		return
	}
	idx := int(getUint16(buf, HeaderSize))
	if idx < 0 || idx >= len(d.KB.AdvancedKeys) {
		return
	}
	ak := d.KB.AdvancedKeys[idx]
	putFloat32(buf, HeaderSize+2, ak.Raw)
	putFloat32(buf, HeaderSize+6, ak.Value)
	if ak.State {
		buf[HeaderSize+10] = 1
	}
	if ak.ReportState {
		buf[HeaderSize+11] = 1
	}
}

func (d *Dispatcher) getVersion(buf []byte) {
	if d.Version == nil {
		return
	}
	major, minor, patch := d.Version()
	buf[HeaderSize] = major
	buf[HeaderSize+1] = minor
	buf[HeaderSize+2] = patch
}

// --- dynamic-key (Stroke4x4 only) -------------------------------------------
//
// Only the stroke variant is addressable over the packet boundary,
// matching store.go's own scope decision (ModTap/ToggleKey/MutexPair
// carry no normalized thresholds worth round-tripping this way).
//
// payload[0:2] dynamic-key index (position in KB.Strokes)
// payload[2:10] binding[4] keycodes (uint16 each)
// payload[10:26] control[4][4] bytes
// payload[26:28] key id (uint16)
// payload[28:44] 4 distances, float32 each (press-begin, press-fully,
//                release-begin, release-fully)

const strokeFieldOffset = HeaderSize + 2

func (d *Dispatcher) setDynamicKey(buf []byte) {
	if d.KB == nil {
		return
	}
	idx := int(getUint16(buf, HeaderSize))
	if idx < 0 || idx >= len(d.KB.Strokes) {
		return
	}
	self := d.KB.Strokes[idx].Self
	norm := decodeStrokeWire(buf)
	d.KB.Strokes[idx] = store.AntiNormalizeStroke(self, norm)
}

func (d *Dispatcher) getDynamicKey(buf []byte) {
	if d.KB == nil {
		return
	}
	idx := int(getUint16(buf, HeaderSize))
	if idx < 0 || idx >= len(d.KB.Strokes) {
		return
	}
	encodeStrokeWire(buf, store.NormalizeStroke(d.KB.Strokes[idx]))
}

func decodeStrokeWire(buf []byte) store.StrokeNormalized {
	var out store.StrokeNormalized
	for i := 0; i < 4; i++ {
		out.Binding[i] = keycode.Code(getUint16(buf, strokeFieldOffset+2*i))
	}
	ctrlOff := strokeFieldOffset + 8
	for point := 0; point < 4; point++ {
		for i := 0; i < 4; i++ {
			out.Control[point][i] = dynamickey.Control(buf[ctrlOff+point*4+i])
		}
	}
	idOff := ctrlOff + 16
	out.KeyID = getUint16(buf, idOff)
	distOff := idOff + 2
	out.PressBeginDistance = getFloat32(buf, distOff)
	out.PressFullyDistance = getFloat32(buf, distOff+4)
	out.ReleaseBeginDistance = getFloat32(buf, distOff+8)
	out.ReleaseFullyDistance = getFloat32(buf, distOff+12)
	return out
}

func encodeStrokeWire(buf []byte, s store.StrokeNormalized) {
	for i := 0; i < 4; i++ {
		putUint16(buf, strokeFieldOffset+2*i, uint16(s.Binding[i]))
	}
	ctrlOff := strokeFieldOffset + 8
	for point := 0; point < 4; point++ {
		for i := 0; i < 4; i++ {
			buf[ctrlOff+point*4+i] = byte(s.Control[point][i])
		}
	}
	idOff := ctrlOff + 16
	putUint16(buf, idOff, s.KeyID)
	distOff := idOff + 2
	putFloat32(buf, distOff, s.PressBeginDistance)
	putFloat32(buf, distOff+4, s.PressFullyDistance)
	putFloat32(buf, distOff+8, s.ReleaseBeginDistance)
	putFloat32(buf, distOff+12, s.ReleaseFullyDistance)
}
