// Package layer implements the keymap layer resolver (C4): a 16-bit
// active-layer bitmap, a derived per-key keycode cache with transparent
// fallthrough, and a per-key lock that pins the resolved keycode while a
// key is held through a layer change.
package layer

import (
	"math/bits"

	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

// NumLayers is the number of addressable layers (one bit per layer in
// the active-layer bitmap).
const NumLayers = 16

// Resolver owns the active-layer bitmap and the derived per-key cache.
type Resolver struct {
	keymap [][]keycode.Code // keymap[layer][keyID]
	active uint16
	cache  []keycode.Code
	locked []bool
}

// NewResolver builds a Resolver over a dense keymap[layer][keyID] table.
// All layer rows must have equal length; that length is the number of
// addressable key ids.
func NewResolver(keymap [][]keycode.Code) *Resolver {
	numKeys := 0
	if len(keymap) > 0 {
		numKeys = len(keymap[0])
	}
	r := &Resolver{
		keymap: keymap,
		cache:  make([]keycode.Code, numKeys),
		locked: make([]bool, numKeys),
	}
	r.RefreshCache()
	return r
}

// Current returns the index of the highest set bit in the active-layer
// bitmap, or 0 if no layer bit is set.
func (r *Resolver) Current() int {
	if r.active == 0 {
		return 0
	}
	return bits.Len16(r.active) - 1
}

// Set activates layer L.
func (r *Resolver) Set(layer int) {
	r.active |= 1 << uint(layer)
	r.RefreshCache()
}

// Reset deactivates layer L.
func (r *Resolver) Reset(layer int) {
	r.active &^= 1 << uint(layer)
	r.RefreshCache()
}

// Toggle flips layer L's active bit.
func (r *Resolver) Toggle(layer int) {
	r.active ^= 1 << uint(layer)
	r.RefreshCache()
}

// MomentaryPress activates layer L for as long as the owning key is held;
// callers pair this with MomentaryRelease on the corresponding key-up.
func (r *Resolver) MomentaryPress(layer int) { r.Set(layer) }

// MomentaryRelease deactivates a momentary layer on key-up.
func (r *Resolver) MomentaryRelease(layer int) { r.Reset(layer) }

// RefreshCache recomputes keymap_cache[id] for every key id: starting
// from the current layer, it walks downward past any transparent cell,
// returning the first non-transparent keycode, or keycode.No if every
// active-and-below layer is transparent for that id. Keys whose lock bit
// is set are skipped, preserving the keycode they were pressed under.
func (r *Resolver) RefreshCache() {
	current := r.Current()
	for id := range r.cache {
		if r.locked[id] {
			continue
		}
		r.cache[id] = r.resolve(id, current)
	}
}

func (r *Resolver) resolve(id int, fromLayer int) keycode.Code {
	for l := fromLayer; l >= 0; l-- {
		c := r.keymap[l][id]
		if !c.IsTransparent() {
			return c
		}
	}
	return keycode.No
}

// Keycode returns the cached resolved keycode for key id.
func (r *Resolver) Keycode(id int) keycode.Code {
	return r.cache[id]
}

// Lock pins key id's cached keycode against further layer changes, used
// when a key is physically held at the moment a layer is activated or
// deactivated.
func (r *Resolver) Lock(id int) { r.locked[id] = true }

// Unlock releases a key's pin, then immediately recomputes its cache
// entry from the current layer stack so it reflects any layer changes
// that happened while it was locked.
func (r *Resolver) Unlock(id int) {
	r.locked[id] = false
	r.cache[id] = r.resolve(id, r.Current())
}

// Locked reports whether key id's cached keycode is currently pinned.
func (r *Resolver) Locked(id int) bool { return r.locked[id] }

// NumKeys returns the number of addressable key ids.
func (r *Resolver) NumKeys() int { return len(r.cache) }

// NumKeymapLayers returns the number of rows in the underlying keymap
// table (may be less than NumLayers if the caller built a sparser one).
func (r *Resolver) NumKeymapLayers() int { return len(r.keymap) }

// KeymapAt returns the raw (pre-fallthrough) cell at keymap[layer][id],
// used by the raw config packet layer's keymap-range get handler.
func (r *Resolver) KeymapAt(layer, id int) (keycode.Code, bool) {
	if layer < 0 || layer >= len(r.keymap) || id < 0 || id >= len(r.cache) {
		return keycode.No, false
	}
	return r.keymap[layer][id], true
}

// SetKeymapAt writes keymap[layer][id] and refreshes the derived cache,
// used by the raw config packet layer's keymap-range set handler.
func (r *Resolver) SetKeymapAt(layer, id int, kc keycode.Code) bool {
	if layer < 0 || layer >= len(r.keymap) || id < 0 || id >= len(r.cache) {
		return false
	}
	r.keymap[layer][id] = kc
	r.RefreshCache()
	return true
}
