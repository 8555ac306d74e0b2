package layer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

func kc(domain keycode.Domain, usage uint8) keycode.Code {
	return keycode.New(domain, usage)
}

func TestLayerFallthrough(t *testing.T) {
	keyA := kc(keycode.DomainKeyboard, 4)
	keymap := [][]keycode.Code{
		{keyA, keycode.Transparent},
		{keycode.Transparent, keycode.Transparent},
		{keycode.Transparent, keycode.Transparent},
	}
	r := NewResolver(keymap)

	// Layer 0 active: id 0 resolves to layer 0's keycode.
	assert.Equal(t, keyA, r.Keycode(0))

	// Activate layer 2: id 0 is transparent there and on layer 1, falls
	// through to layer 0's keyA.
	r.Set(2)
	assert.Equal(t, keyA, r.Keycode(0))

	// id 1 is transparent everywhere: resolves to No.
	assert.Equal(t, keycode.No, r.Keycode(1))
}

// TestS4LayerMomentaryWithLock reproduces scenario S4.
func TestS4LayerMomentaryWithLock(t *testing.T) {
	layer0Key1 := kc(keycode.DomainKeyboard, 1)
	layer1Key1 := kc(keycode.DomainKeyboard, 2)
	keymap := [][]keycode.Code{
		{keycode.No, layer0Key1},
		{keycode.No, layer1Key1},
	}
	r := NewResolver(keymap)

	// Press key 1 on layer 0.
	resolved := r.Keycode(1)
	assert.Equal(t, layer0Key1, resolved)

	// Key 1 is physically held; press key 60's momentary-layer-1 binding.
	// The keyboard aggregate locks every physically-held key before the
	// layer mutation so its cache entry survives the refresh.
	r.Lock(1)
	r.MomentaryPress(1)
	assert.Equal(t, layer0Key1, r.Keycode(1), "locked key keeps its pre-layer-change keycode")

	// Release key 1: the lock clears and the cache recomputes under the
	// *current* layer stack, but by then layer 1 is still active (key 60
	// has not released in this scenario), so the released key up event
	// itself still carried the locked keycode; Unlock reflects layer 1 now.
	r.Unlock(1)
	assert.Equal(t, layer1Key1, r.Keycode(1))
}

func TestMomentaryReleaseRestoresLowerLayer(t *testing.T) {
	r := NewResolver([][]keycode.Code{
		{kc(keycode.DomainKeyboard, 1)},
		{kc(keycode.DomainKeyboard, 2)},
	})
	r.MomentaryPress(1)
	assert.Equal(t, kc(keycode.DomainKeyboard, 2), r.Keycode(0))
	r.MomentaryRelease(1)
	assert.Equal(t, kc(keycode.DomainKeyboard, 1), r.Keycode(0))
}

func TestCurrentLayerHighestSetBit(t *testing.T) {
	r := NewResolver([][]keycode.Code{{keycode.No}, {keycode.No}, {keycode.No}})
	assert.Equal(t, 0, r.Current())
	r.Set(2)
	r.Set(1)
	assert.Equal(t, 2, r.Current())
	r.Reset(2)
	assert.Equal(t, 1, r.Current())
}
