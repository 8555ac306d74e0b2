package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HopIT-Hub/AmpCore/internal/advancedkey"
	"github.com/HopIT-Hub/AmpCore/internal/dynamickey"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

// TestAdvancedKeyConfigRoundTrip covers property 6: anti_normalize(
// normalize(cfg)) == cfg, excluding UpperBound/LowerBound which pass
// through unchanged regardless (and FilterDomain/EstimatedRange, which
// are build-time fields outside the wire format).
func TestAdvancedKeyConfigRoundTrip(t *testing.T) {
	cfg := advancedkey.Config{
		Mode:              advancedkey.AnalogRapid,
		CalibrationMode:   advancedkey.CalibrationPositive,
		ActivationValue:   0.7,
		DeactivationValue: 0.6,
		TriggerDistance:   0.05,
		ReleaseDistance:   0.03,
		TriggerSpeed:      0.02,
		ReleaseSpeed:      0.01,
		UpperDeadzone:     0.1,
		LowerDeadzone:     0.1,
		UpperBound:        3800,
		LowerBound:        200,
	}

	wire := NormalizeAdvancedKeyConfig(cfg)
	got := AntiNormalizeAdvancedKeyConfig(wire)

	assert.InDelta(t, cfg.ActivationValue, got.ActivationValue, 1e-9)
	assert.InDelta(t, cfg.DeactivationValue, got.DeactivationValue, 1e-9)
	assert.InDelta(t, cfg.TriggerDistance, got.TriggerDistance, 1e-9)
	assert.InDelta(t, cfg.ReleaseDistance, got.ReleaseDistance, 1e-9)
	assert.InDelta(t, cfg.TriggerSpeed, got.TriggerSpeed, 1e-9)
	assert.InDelta(t, cfg.ReleaseSpeed, got.ReleaseSpeed, 1e-9)
	assert.InDelta(t, cfg.UpperDeadzone, got.UpperDeadzone, 1e-9)
	assert.InDelta(t, cfg.LowerDeadzone, got.LowerDeadzone, 1e-9)
	assert.Equal(t, cfg.Mode, got.Mode)
	assert.Equal(t, cfg.CalibrationMode, got.CalibrationMode)
	assert.Equal(t, cfg.UpperBound, got.UpperBound, "bounds pass through unconverted")
	assert.Equal(t, cfg.LowerBound, got.LowerBound, "bounds pass through unconverted")
}

func TestStrokeRoundTripExcludesTransientState(t *testing.T) {
	self := keycode.New(keycode.DomainDynamicKey, 5)
	s := &dynamickey.Stroke4x4{
		Self:                 self,
		KeyID:                3,
		Binding:              [4]keycode.Code{keycode.New(keycode.DomainKeyboard, 4)},
		PressBeginDistance:   0.2,
		PressFullyDistance:   0.8,
		ReleaseBeginDistance: 0.8,
		ReleaseFullyDistance: 0.2,
	}
	s.Control[0][0] = dynamickey.ControlTap

	wire := NormalizeStroke(s)
	restored := AntiNormalizeStroke(self, wire)

	assert.Equal(t, s.KeyID, restored.KeyID)
	assert.Equal(t, s.Binding, restored.Binding)
	assert.InDelta(t, s.PressBeginDistance, restored.PressBeginDistance, 1e-9)
	assert.InDelta(t, s.PressFullyDistance, restored.PressFullyDistance, 1e-9)
	assert.InDelta(t, s.ReleaseBeginDistance, restored.ReleaseBeginDistance, 1e-9)
	assert.InDelta(t, s.ReleaseFullyDistance, restored.ReleaseFullyDistance, 1e-9)
	assert.Equal(t, dynamickey.ControlTap, restored.Control[0][0])
	assert.False(t, restored.ReportState(), "a freshly loaded stroke starts with no active bindings")
}

func TestSlotSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)

	slot := &Slot{
		AdvancedKeys: []AdvancedKeyConfigNormalized{
			NormalizeAdvancedKeyConfig(advancedkey.Config{Mode: advancedkey.AnalogNormal, UpperBound: 4000, LowerBound: 100}),
		},
		Keymap: [][]keycode.Code{{keycode.New(keycode.DomainKeyboard, 4)}},
	}
	require.NoError(t, s.SaveSlot(1, slot))

	loaded, err := s.LoadSlot(1)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, loaded.Version)
	assert.Equal(t, slot.AdvancedKeys, loaded.AdvancedKeys)
	assert.Equal(t, slot.Keymap, loaded.Keymap)

	// The slot file must exist directly under dir (atomic rename leaves no
	// .tmp file behind).
	_, err = os.Stat(filepath.Join(dir, "config1.json.tmp"))
	assert.True(t, os.IsNotExist(err))
}

func TestLoadSlotVersionMismatchReturnsErrVersionMismatch(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	// Write a slot file stamped with a stale format version directly,
	// bypassing SaveSlot (which always stamps the current version).
	require.NoError(t, os.WriteFile(s.slotPath(0), []byte(`{"version":999}`), 0o644))

	_, err := s.LoadSlot(0)
	assert.ErrorIs(t, err, ErrVersionMismatch)
}

func TestConfigIndexClampsOutOfRange(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	assert.Equal(t, 0, s.ReadConfigIndex(), "missing index file defaults to slot 0")

	require.NoError(t, s.SaveConfigIndex(2))
	assert.Equal(t, 2, s.ReadConfigIndex())

	require.NoError(t, os.WriteFile(s.indexPath(), []byte{NumSlots + 5}, 0o644))
	assert.Equal(t, 0, s.ReadConfigIndex(), "out-of-range index clamps to slot 0")
}

func TestExportImportYAMLRoundTrip(t *testing.T) {
	slot := &Slot{
		Version: FormatVersion,
		AdvancedKeys: []AdvancedKeyConfigNormalized{
			NormalizeAdvancedKeyConfig(advancedkey.Config{Mode: advancedkey.Digital}),
		},
	}
	data, err := ExportYAML(slot)
	require.NoError(t, err)

	restored, err := ImportYAML(data)
	require.NoError(t, err)
	assert.Equal(t, slot.AdvancedKeys, restored.AdvancedKeys)
}
