// Package report implements the C7 report builders: 6KRO and NKRO
// keyboard buffers, mouse aggregation, consumer/system, and joystick
// (button bitmap + axis accumulators).
package report

import "github.com/HopIT-Hub/AmpCore/internal/keycode"

// ModifierLeftGUI and ModifierRightGUI are the two bits masked off by the
// win-lock feature before a 6KRO/NKRO send.
const (
	ModifierLeftGUI  uint8 = 1 << 3
	ModifierRightGUI uint8 = 1 << 7
)

// SixKRO is the {modifier, reserved, keys[6], count} boot-protocol
// keyboard report. Count clamps to 6; overflow keys are dropped silently.
type SixKRO struct {
	Modifier uint8
	Reserved uint8
	Keys     [6]uint8
	Count    uint8
	Dirty    bool
}

// Clear zeroes the buffer, including Modifier, before the next fill
// pass — the buffer-clear contract the spec's Design Notes call out
// explicitly is structural here, not a convention callers must remember.
func (b *SixKRO) Clear() {
	*b = SixKRO{}
}

// Add OR-accumulates modifier bits and appends up to 6 non-modifier
// keycodes. A usage already present is left alone rather than
// duplicated — the same key can be handed to Add twice in one tick (an
// edge dispatch followed by the report-fill reassertion of the same
// still-held key).
func (b *SixKRO) Add(kc keycode.Code) {
	if kc.Domain() == keycode.DomainModifier {
		b.Modifier |= kc.SubUsage()
		b.Dirty = true
		return
	}
	usage := kc.SubUsage()
	for i := uint8(0); i < b.Count; i++ {
		if b.Keys[i] == usage {
			return
		}
	}
	if b.Count >= 6 {
		return
	}
	b.Keys[b.Count] = usage
	b.Count++
	b.Dirty = true
}

// Bytes serializes the buffer into an 8-byte boot-protocol report,
// applying the win-lock GUI mask when winLock is set.
func (b *SixKRO) Bytes(winLock bool) []byte {
	mod := b.Modifier
	if winLock {
		mod &^= ModifierLeftGUI | ModifierRightGUI
	}
	out := make([]byte, 8)
	out[0] = mod
	out[1] = b.Reserved
	copy(out[2:8], b.Keys[:])
	return out
}

// NKROBytes is the byte width of the NKRO bitmap (>=240 bits / 8).
const NKROBytes = 30

// NKRO is the {modifier, bitmap[30]} n-key-rollover report.
type NKRO struct {
	Modifier uint8
	Bitmap   [NKROBytes]uint8
	Dirty    bool
}

// Clear zeroes the buffer, including Modifier.
func (b *NKRO) Clear() {
	*b = NKRO{}
}

// Add OR-accumulates modifier bits, or sets the bitmap bit at the
// keycode's sub-usage index.
func (b *NKRO) Add(kc keycode.Code) {
	if kc.Domain() == keycode.DomainModifier {
		b.Modifier |= kc.SubUsage()
		b.Dirty = true
		return
	}
	idx := int(kc.SubUsage())
	byteIdx := idx / 8
	if byteIdx >= NKROBytes {
		return
	}
	b.Bitmap[byteIdx] |= 1 << uint(idx%8)
	b.Dirty = true
}

// Bytes serializes the buffer, applying the win-lock GUI mask when set.
func (b *NKRO) Bytes(winLock bool) []byte {
	mod := b.Modifier
	if winLock {
		mod &^= ModifierLeftGUI | ModifierRightGUI
	}
	out := make([]byte, 1+NKROBytes)
	out[0] = mod
	copy(out[1:], b.Bitmap[:])
	return out
}
