package report

import "github.com/HopIT-Hub/AmpCore/internal/keycode"

// ExtraKey is the single-usage consumer or system-control report: a
// press of one member overwrites the stored usage; any release clears
// it.
type ExtraKey struct {
	Usage uint16
	Dirty bool
}

// Clear zeroes the buffer.
func (e *ExtraKey) Clear() { *e = ExtraKey{} }

// SetUsage overwrites the stored usage on a key-down.
func (e *ExtraKey) SetUsage(usage uint16) {
	e.Usage = usage
	e.Dirty = true
}

// SetUsageIfEmpty stores usage only if nothing is currently set — the
// "first writer wins" contract used for KeyTrue sustaining events, as
// distinct from the overwrite-on-KeyDown path.
func (e *ExtraKey) SetUsageIfEmpty(usage uint16) {
	if e.Usage != 0 {
		return
	}
	e.Usage = usage
	e.Dirty = true
}

// Release clears the usage on a key-up.
func (e *ExtraKey) Release() {
	e.Usage = 0
	e.Dirty = true
}

// Bytes serializes the report as a little-endian 16-bit usage.
func (e *ExtraKey) Bytes() []byte {
	return []byte{byte(e.Usage), byte(e.Usage >> 8)}
}

// RawSubCode extracts a raw consumer/system sub-usage carried directly
// in a keycode's low byte, for domains that don't need the full 16-bit
// consumer usage table.
func RawSubCode(kc keycode.Code) uint16 { return uint16(kc.SubUsage()) }
