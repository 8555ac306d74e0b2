// Package bootstrap builds a *keyboard.Keyboard from a persisted
// calibration slot (or a small built-in default layout), shared by
// cmd/ampd and cmd/ampsim so both composition roots start from the
// same on-disk state.
package bootstrap

import (
	"errors"
	"log"

	"github.com/HopIT-Hub/AmpCore/internal/advancedkey"
	"github.com/HopIT-Hub/AmpCore/internal/keyboard"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
	"github.com/HopIT-Hub/AmpCore/internal/layer"
	"github.com/HopIT-Hub/AmpCore/internal/store"
)

// DefaultKeyCount is how many analog-normal keys the built-in fallback
// layout provisions, enough for the simulator's sample hotkey bindings.
const DefaultKeyCount = 4

// BuildKeyboard constructs the tick-loop aggregate from st's active
// slot, falling back to DefaultSlot on any load error (e.g. first run,
// before any calibration has been saved). A slot stamped with a stale
// format version is factory-reset: DefaultSlot is saved over it.
func BuildKeyboard(st *store.Store) *keyboard.Keyboard {
	index := st.ReadConfigIndex()
	slot, err := st.LoadSlot(index)
	if err != nil {
		log.Printf("[bootstrap] load slot %d: %v (using built-in default layout)", index, err)
		slot = DefaultSlot()
		if errors.Is(err, store.ErrVersionMismatch) {
			if err := st.SaveSlot(index, slot); err != nil {
				log.Printf("[bootstrap] reset slot %d: %v", index, err)
			}
		}
	}

	advancedKeys := make([]*advancedkey.AdvancedKey, len(slot.AdvancedKeys))
	for i, normalized := range slot.AdvancedKeys {
		advancedKeys[i] = advancedkey.New(uint16(i), store.AntiNormalizeAdvancedKeyConfig(normalized))
	}

	resolver := layer.NewResolver(slot.Keymap)
	kb := keyboard.New(advancedKeys, nil, resolver, 16)
	kb.CurrentConfig = index
	return kb
}

// DefaultSlot is the fallback layout for an unprovisioned device:
// DefaultKeyCount analog-normal keys on one layer, mapped to the HID
// usages for A, B, C, D (usages 4-7).
func DefaultSlot() *store.Slot {
	cfgs := make([]store.AdvancedKeyConfigNormalized, DefaultKeyCount)
	keymap := make([]keycode.Code, DefaultKeyCount)
	for i := 0; i < DefaultKeyCount; i++ {
		cfgs[i] = store.NormalizeAdvancedKeyConfig(advancedkey.Config{
			Mode:              advancedkey.AnalogNormal,
			ActivationValue:   0.5,
			DeactivationValue: 0.4,
			UpperBound:        1.0,
			LowerBound:        0.0,
		})
		keymap[i] = keycode.New(keycode.DomainKeyboard, uint8(4+i))
	}
	return &store.Slot{
		Version:      store.FormatVersion,
		AdvancedKeys: cfgs,
		Keymap:       [][]keycode.Code{keymap},
	}
}
