package holdinglist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HopIT-Hub/AmpCore/internal/event"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

func TestPushFrontAndLen(t *testing.T) {
	l := New(4)
	require.Equal(t, 0, l.Len())
	require.Equal(t, 4, l.Cap())

	kc := keycode.New(keycode.DomainMacro, 1)
	owner := "macro-1"
	ok := l.PushFront(Item{Event: event.New(kc, event.KeyDown, nil), Owner: owner})
	assert.True(t, ok)
	assert.Equal(t, 1, l.Len())
}

func TestPushOnFullListDropsSilently(t *testing.T) {
	l := New(3) // one arena node is the head sentinel, leaving room for two items
	kc := keycode.New(keycode.DomainMacro, 1)
	assert.True(t, l.PushFront(Item{Event: event.New(kc, event.KeyDown, nil)}))
	assert.True(t, l.PushFront(Item{Event: event.New(kc, event.KeyDown, nil)}))
	assert.False(t, l.PushFront(Item{Event: event.New(kc, event.KeyDown, nil)}))
	assert.Equal(t, 2, l.Len())
}

// TestOwnerCleanupSynthesizesKeyUp verifies property 7: after
// RemoveSpecificOwner, no node with that owner remains, and exactly one
// KeyUp fires per removed node.
func TestOwnerCleanupSynthesizesKeyUp(t *testing.T) {
	l := New(8)
	ownerA, ownerB := "script-A", "script-B"

	kc1 := keycode.New(keycode.DomainMacro, 1)
	kc2 := keycode.New(keycode.DomainMacro, 2)
	kc3 := keycode.New(keycode.DomainMacro, 3)

	l.PushFront(Item{Event: event.New(kc1, event.KeyDown, nil), Owner: ownerA})
	l.PushFront(Item{Event: event.New(kc2, event.KeyDown, nil), Owner: ownerA})
	l.PushFront(Item{Event: event.New(kc3, event.KeyDown, nil), Owner: ownerB})

	var keyUps []event.KeyboardEvent
	l.RemoveSpecificOwner(ownerA, func(e event.KeyboardEvent) {
		keyUps = append(keyUps, e)
	})

	assert.Len(t, keyUps, 2)
	for _, e := range keyUps {
		assert.Equal(t, event.KeyUp, e.Kind)
	}
	assert.False(t, l.ExistsKeycode(ownerA, kc1))
	assert.False(t, l.ExistsKeycode(ownerA, kc2))
	assert.True(t, l.ExistsKeycode(ownerB, kc3))
	assert.Equal(t, 1, l.Len())
}

func TestInsertAfterAndEraseAfter(t *testing.T) {
	l := New(4)
	kc := keycode.New(keycode.DomainMacro, 9)
	l.PushFront(Item{Event: event.New(kc, event.KeyDown, nil)})
	ok := l.InsertAfter(l.head, Item{Event: event.New(kc, event.KeyUp, nil)})
	assert.True(t, ok)
	assert.Equal(t, 2, l.Len())

	l.EraseAfter(l.head)
	assert.Equal(t, 1, l.Len())
}
