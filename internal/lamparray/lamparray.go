// Package lamparray implements the HID Lighting and Illumination
// lamp-array control plane (§6): the fixed feature/output report shapes
// a host lighting client (e.g. Windows Dynamic Lighting) drives, and
// the lamp-id cursor, bounds-checked range/multi-lamp updates, and
// autonomous/host-mode flag those reports exercise. Color blending and
// animation are out of scope (see §1 Non-goals) — this package only
// decodes a report and forwards a resolved color to SetColor.
package lamparray

// Manual byte packing, matching the idiom internal/packet already
// established for this module's other wire-format package (see its
// doc comment: the teacher never imports encoding/binary anywhere in
// its tree).

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

// Kind mirrors LAMPARRAY_KIND: the physical device class a host uses
// to decide how to render a lamp layout.
type Kind uint32

const (
	KindUndefined Kind = iota
	KindKeyboard
	KindMouse
	KindGameController
	KindPeripheral
	KindScene
	KindNotification
	KindChassis
	KindWearable
	KindFurniture
	KindArt
	KindHeadset
	KindMicrophone
	KindSpeaker
)

// Purpose bits mirror LAMP_PURPOSE_*.
type Purpose uint32

const (
	PurposeControl Purpose = 1 << iota
	PurposeAccent
	PurposeBranding
	PurposeStatus
	PurposeIllumination
	PurposePresentation
)

// NoInputBinding marks a lamp with no associated key, matching the
// source's use of KEY_NO_EVENT as the default input_binding.
const NoInputBinding uint8 = 0

// KeySwitchDistanceUM is KEY_SWITCH_DISTANCE: the HID LampArray position
// unit (micrometers) of one key-pitch step, used to convert a lamp's
// grid location into a report's physical position fields.
const KeySwitchDistanceUM = 19050

// UpdateIntervalUS is LAMPARRAY_UPDATE_INTERVAL in microseconds.
const UpdateIntervalUS uint32 = 10000

// Fixed report sizes, including the leading report-id byte every
// report carries.
const (
	AttributesReportSize   = 1 + 2 + 4 + 4 + 4 + 4 + 4 // id, lamp_count, width, height, depth, kind, min_update_interval
	AttributesResponseSize = 1 + 2 + 12 + 4 + 4 + 1 + 1 + 1 + 1 + 1 + 1
	MaxLampsPerUpdate      = 8
	MultiUpdateSize        = 1 + 1 + 1 + 2*MaxLampsPerUpdate + 4*MaxLampsPerUpdate // id, lamp_count, flags, lamp_ids, colors
	RangeUpdateSize        = 1 + 1 + 2 + 2 + 4                                    // id, flags, lamp_id_start, lamp_id_end, color

	multiUpdateLampIDsOffset = 3
	multiUpdateColorsOffset  = multiUpdateLampIDsOffset + 2*MaxLampsPerUpdate
	rangeColorOffset         = 6
)

// Color is a LampArrayColor: red, green, blue, and an overall intensity.
type Color struct {
	Red, Green, Blue, Intensity uint8
}

// Location is a lamp's position on the array's width/height/depth grid,
// expressed in key-pitch units (converted to micrometers on encode).
type Location struct {
	X, Y, Z float64
}

// Sink receives a resolved lamp color; it's the only coupling point to
// whatever owns the physical LED strip, matching rgb_set/lamp_set_color
// in the source.
type Sink func(lampID uint16, c Color)

// Array is the lamp-array control-plane state: the fixed lamp layout
// plus the enumeration cursor a host walks one lamp at a time and the
// autonomous/host-mode flag, held as fields on a value instead of the
// source's two package-level globals (current_lamp_id, g_rgb_hid_mode)
// so more than one array can exist per process.
type Array struct {
	Kind      Kind
	Width     float64 // grid units; multiplied by KeySwitchDistanceUM on encode
	Height    float64
	Depth     float64
	Locations []Location

	// HostMode reports whether a host lighting client currently owns
	// the lamps. It is the inverse of a LampArrayControlReport's wire
	// flag, matching the source's g_rgb_hid_mode = !autonomous_mode.
	HostMode bool

	// SetColor applies a resolved color to one lamp. Left nil makes
	// every color-setting handler a no-op.
	SetColor Sink

	cursor uint16
}

// New builds an Array over a fixed lamp layout. HostMode starts false:
// the device runs its own autonomous lighting until a host claims it.
func New(kind Kind, width, height, depth float64, locations []Location, sink Sink) *Array {
	return &Array{Kind: kind, Width: width, Height: height, Depth: depth, Locations: locations, SetColor: sink}
}

// NumLamps is RGB_NUM: the lamp count carried in the attributes report.
func (a *Array) NumLamps() int { return len(a.Locations) }

// AttributesReport encodes a LampArrayAttributesReport into a fresh
// AttributesReportSize buffer, matching
// lamp_array_get_lamp_array_attributes_report.
func (a *Array) AttributesReport(reportID uint8) []byte {
	buf := make([]byte, AttributesReportSize)
	buf[0] = reportID
	putUint16(buf, 1, uint16(a.NumLamps()))
	putUint32(buf, 3, uint32(a.Width*KeySwitchDistanceUM))
	putUint32(buf, 7, uint32(a.Height*KeySwitchDistanceUM))
	putUint32(buf, 11, uint32(a.Depth*KeySwitchDistanceUM))
	putUint32(buf, 15, uint32(a.Kind))
	putUint32(buf, 19, UpdateIntervalUS)
	return buf
}

// SetAttributesCursor handles a LampAttributesRequestReport: the host
// asks to set the enumeration cursor to a specific lamp id, matching
// lamp_array_set_lamp_attributes_id. Unlike the getter's auto-advance,
// the source applies no bounds check here either; an out-of-range
// cursor simply yields an empty-position attributes response on the
// next get rather than being rejected outright.
func (a *Array) SetAttributesCursor(lampID uint16) { a.cursor = lampID }

// SetLampAttributesID handles a LampAttributesRequestReport wire
// payload (report id already stripped at buf[0]): lampID at buf[0:2].
func (a *Array) SetLampAttributesID(buf []byte) {
	a.SetAttributesCursor(getUint16(buf, 0))
}

// LampAttributesReport encodes the current cursor lamp's
// LampAttributesResponseReport into a fresh AttributesResponseSize
// buffer and advances the cursor, clamped at the last lamp — matching
// the source's saturating increment in
// lamp_array_get_lamp_attributes_report, which never wraps back to 0.
func (a *Array) LampAttributesReport(reportID uint8) []byte {
	buf := make([]byte, AttributesResponseSize)
	buf[0] = reportID
	putUint16(buf, 1, a.cursor)

	var loc Location
	if int(a.cursor) < len(a.Locations) {
		loc = a.Locations[a.cursor]
	}
	putUint32(buf, 3, uint32(loc.X*KeySwitchDistanceUM))
	putUint32(buf, 7, uint32(loc.Y*KeySwitchDistanceUM))
	putUint32(buf, 11, 0) // z always flat on a keyboard's lamp grid

	putUint32(buf, 15, UpdateIntervalUS) // update_latency
	putUint32(buf, 19, uint32(PurposeControl))
	buf[23] = 255 // red_level_count
	buf[24] = 255 // green_level_count
	buf[25] = 255 // blue_level_count
	buf[26] = 1   // intensity_level_count
	buf[27] = 1   // is_programmable
	buf[28] = NoInputBinding

	if int(a.cursor)+1 < a.NumLamps() {
		a.cursor++
	}
	return buf
}

func (a *Array) setLamp(id uint16, c Color) {
	if int(id) >= a.NumLamps() || a.SetColor == nil {
		return
	}
	a.SetColor(id, c)
}

// SetMultipleLamps handles a LampMultiUpdateReport payload (report id
// already stripped): up to MaxLampsPerUpdate explicit (lamp id, color)
// pairs, matching lamp_array_set_multiple_lamps. Two departures from
// the source, both deliberate:
//
//   - The source's loop runs "i <= lamp_count", one past the declared
//     count; a full 8-lamp update then reads a 9th, out-of-bounds slot
//     from its backing array. Clamped here to min(lampCount, MaxLampsPerUpdate)
//     with a strict "<" bound instead.
//   - The early "lamp id 0 after a nonzero id" break is kept: it works
//     around a Windows Dynamic Lighting client that zero-pads a short
//     update instead of reporting the true count.
func (a *Array) SetMultipleLamps(buf []byte) {
	count := int(buf[0])
	if count > MaxLampsPerUpdate {
		count = MaxLampsPerUpdate
	}
	var lastID uint16
	for i := 0; i < count; i++ {
		id := getUint16(buf, multiUpdateLampIDsOffset-1+2*i)
		if id == 0 && lastID > 0 {
			break
		}
		lastID = id
		c := decodeColor(buf, multiUpdateColorsOffset-1+4*i)
		a.setLamp(id, c)
	}
}

// SetLampRange handles a LampRangeUpdateReport payload (report id
// already stripped): one color applied to a contiguous id range,
// clamped to the array's lamp count, matching lamp_array_set_lamp_range.
func (a *Array) SetLampRange(buf []byte) {
	start := getUint16(buf, 1)
	end := getUint16(buf, 3)
	if int(start) >= a.NumLamps() {
		return
	}
	if int(end) >= a.NumLamps() {
		end = uint16(a.NumLamps() - 1)
	}
	c := decodeColor(buf, rangeColorOffset-1)
	for i := start; i <= end; i++ {
		a.setLamp(i, c)
	}
}

// SetAutonomousMode handles a LampArrayControlReport payload (report id
// already stripped): autonomousMode true means the host is releasing
// control back to on-device lighting, matching
// lamp_array_set_autonomous_mode.
func (a *Array) SetAutonomousMode(autonomousMode bool) {
	a.HostMode = !autonomousMode
}

func decodeColor(buf []byte, off int) Color {
	return Color{Red: buf[off], Green: buf[off+1], Blue: buf[off+2], Intensity: buf[off+3]}
}
