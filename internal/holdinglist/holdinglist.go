// Package holdinglist implements the virtual-event holding list (C8): an
// intrusive singly-linked free-listed list over a fixed-capacity node
// arena, used to track outstanding virtual key presses owned by macros
// or scripts so they can be force-released on owner teardown.
package holdinglist

import (
	"github.com/HopIT-Hub/AmpCore/internal/event"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

// none is the free-chain/list terminator, matching the source's use of
// -1 for int16 next-pointers.
const none = -1

// Item is one outstanding virtual key press.
type Item struct {
	Event event.KeyboardEvent
	Owner any
}

type node struct {
	data Item
	next int16
}

// List is the fixed-capacity arena-backed holding list. The zero value
// is not usable; construct with New.
type List struct {
	nodes    []node
	head     int16
	freeNode int16
}

// New builds a List with the given capacity, matching
// event_forward_list_init: every node is threaded onto the free-chain,
// then a dummy sentinel node is pushed as the list head so head.next
// always points at the first real element.
func New(capacity int) *List {
	l := &List{
		nodes: make([]node, capacity),
		head:  none,
	}
	for i := range l.nodes {
		l.nodes[i].next = int16(i) + 1
	}
	l.nodes[len(l.nodes)-1].next = none
	l.freeNode = 0
	l.pushFront(Item{})
	return l
}

func (l *List) alloc() (int16, bool) {
	if l.freeNode == none {
		return none, false
	}
	idx := l.freeNode
	l.freeNode = l.nodes[idx].next
	return idx, true
}

func (l *List) free(idx int16) {
	l.nodes[idx].next = l.freeNode
	l.freeNode = idx
}

func (l *List) pushFront(item Item) bool {
	idx, ok := l.alloc()
	if !ok {
		return false
	}
	l.nodes[idx].data = item
	l.nodes[idx].next = l.head
	l.head = idx
	return true
}

// PushFront inserts item at the head of the list. Returns false (and
// silently drops the insertion) if the arena is full, per the bounded-
// capacity contract in §7.
func (l *List) PushFront(item Item) bool { return l.pushFront(item) }

// walk calls visit(prevNodeIdx, nodeIdx) for every real node, in list
// order, starting from the sentinel head.
func (l *List) walk(visit func(prev, cur int16) (stop bool)) {
	prev := l.head
	cur := l.nodes[l.head].next
	for cur != none {
		if visit(prev, cur) {
			return
		}
		prev = cur
		cur = l.nodes[cur].next
	}
}

// EraseAfter removes the node following prev from the list and returns
// it to the free-chain.
func (l *List) EraseAfter(prev int16) {
	target := l.nodes[prev].next
	if target == none {
		return
	}
	l.nodes[prev].next = l.nodes[target].next
	l.free(target)
}

// InsertAfter inserts item immediately after prev.
func (l *List) InsertAfter(prev int16, item Item) bool {
	idx, ok := l.alloc()
	if !ok {
		return false
	}
	l.nodes[idx].data = item
	l.nodes[idx].next = l.nodes[prev].next
	l.nodes[prev].next = idx
	return true
}

// RemoveFirst removes the first node whose event matches (by keycode and
// Source identity), per event_forward_list_remove_first.
func (l *List) RemoveFirst(match event.KeyboardEvent) {
	l.walk(func(prev, cur int16) bool {
		item := l.nodes[cur].data
		if item.Event.Keycode == match.Keycode && item.Event.Source == match.Source {
			l.EraseAfter(prev)
			return true
		}
		return false
	})
}

// RemoveSpecificOwner removes every node owned by owner, synthesizing a
// KeyUp event for each one via emit before returning its node to the
// free-chain. This is the core auto-release contract: when a macro or
// script is torn down mid-sequence, every key-down it injected becomes a
// matching key-up regardless of which dispatcher originated it.
func (l *List) RemoveSpecificOwner(owner any, emit func(event.KeyboardEvent)) {
	prev := l.head
	cur := l.nodes[l.head].next
	for cur != none {
		item := l.nodes[cur].data
		if item.Owner == owner {
			next := l.nodes[cur].next
			if emit != nil {
				emit(event.New(item.Event.Keycode, event.KeyUp, item.Event.Source))
			}
			l.nodes[prev].next = next
			l.free(cur)
			cur = next
			continue
		}
		prev = cur
		cur = l.nodes[cur].next
	}
}

// ExistsKeycode reports whether owner has an outstanding node for
// keycode.
func (l *List) ExistsKeycode(owner any, kc keycode.Code) bool {
	found := false
	l.walk(func(prev, cur int16) bool {
		item := l.nodes[cur].data
		if item.Owner == owner && item.Event.Keycode == kc {
			found = true
			return true
		}
		return false
	})
	return found
}

// RemoveFirstKeycode removes the first node owned by owner with the
// given keycode, without synthesizing a KeyUp (used when the caller is
// about to emit one itself).
func (l *List) RemoveFirstKeycode(owner any, kc keycode.Code) {
	l.walk(func(prev, cur int16) bool {
		item := l.nodes[cur].data
		if item.Owner == owner && item.Event.Keycode == kc {
			l.EraseAfter(prev)
			return true
		}
		return false
	})
}

// Each calls visit for every outstanding item, in list order. Used by the
// report-fill pass to re-assert every virtual press still held this tick.
func (l *List) Each(visit func(Item)) {
	l.walk(func(prev, cur int16) bool {
		visit(l.nodes[cur].data)
		return false
	})
}

// Len returns the number of real (non-sentinel) nodes currently held.
func (l *List) Len() int {
	n := 0
	l.walk(func(prev, cur int16) bool { n++; return false })
	return n
}

// Cap returns the arena's total node capacity.
func (l *List) Cap() int { return len(l.nodes) }
