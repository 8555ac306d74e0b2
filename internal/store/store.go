// Package store implements the config store interface (C9): the
// normalized on-wire/on-flash representation of per-key and dynamic-key
// configuration, slot-based persistence with atomic writes, and a
// human-editable YAML export/import path.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/HopIT-Hub/AmpCore/internal/advancedkey"
	"github.com/HopIT-Hub/AmpCore/internal/dynamickey"
	"github.com/HopIT-Hub/AmpCore/internal/keycode"
)

// NumSlots is STORAGE_CONFIG_FILE_NUM.
const NumSlots = 4

// FormatVersion is bumped whenever the on-disk Slot layout changes in a
// way that makes an old file unreadable; a version mismatch on load
// triggers a factory reset rather than attempting a partial read.
const FormatVersion = 1

// AdvancedKeyConfigNormalized is the on-wire mirror of
// advancedkey.Config. Thresholds are normalized-unit for portability;
// UpperBound/LowerBound are raw-domain calibration bounds and pass
// through unconverted, matching the source's AdvancedKeyConfiguration
// ->AdvancedKeyConfigurationNormalized mapping. FilterDomain and
// EstimatedRange are build-time selections in the source (not part of
// the persisted config struct) and are likewise excluded here; callers
// re-apply them after AntiNormalize.
type AdvancedKeyConfigNormalized struct {
	Mode              uint8   `json:"mode" yaml:"mode"`
	CalibrationMode   uint8   `json:"calibration_mode" yaml:"calibration_mode"`
	ActivationValue   float64 `json:"activation_value" yaml:"activation_value"`
	DeactivationValue float64 `json:"deactivation_value" yaml:"deactivation_value"`
	TriggerDistance   float64 `json:"trigger_distance" yaml:"trigger_distance"`
	ReleaseDistance   float64 `json:"release_distance" yaml:"release_distance"`
	TriggerSpeed      float64 `json:"trigger_speed" yaml:"trigger_speed"`
	ReleaseSpeed      float64 `json:"release_speed" yaml:"release_speed"`
	UpperDeadzone     float64 `json:"upper_deadzone" yaml:"upper_deadzone"`
	LowerDeadzone     float64 `json:"lower_deadzone" yaml:"lower_deadzone"`
	UpperBound        float64 `json:"upper_bound" yaml:"upper_bound"`
	LowerBound        float64 `json:"lower_bound" yaml:"lower_bound"`
}

// analogNormalize and analogAntiNormalize are identity operations in
// this build (AnalogValueRange == 1, matching the source's float-build
// ANALOG_VALUE_NORMALIZE), kept as named steps rather than inlined so a
// future fixed-point build has a single place to change the scale.
func analogNormalize(x float64) float64     { return x / advancedkey.AnalogValueRange }
func analogAntiNormalize(x float64) float64 { return x * advancedkey.AnalogValueRange }

// NormalizeAdvancedKeyConfig converts a runtime Config into its on-wire
// form.
func NormalizeAdvancedKeyConfig(cfg advancedkey.Config) AdvancedKeyConfigNormalized {
	return AdvancedKeyConfigNormalized{
		Mode:              uint8(cfg.Mode),
		CalibrationMode:   uint8(cfg.CalibrationMode),
		ActivationValue:   analogNormalize(cfg.ActivationValue),
		DeactivationValue: analogNormalize(cfg.DeactivationValue),
		TriggerDistance:   analogNormalize(cfg.TriggerDistance),
		ReleaseDistance:   analogNormalize(cfg.ReleaseDistance),
		TriggerSpeed:      analogNormalize(cfg.TriggerSpeed),
		ReleaseSpeed:      analogNormalize(cfg.ReleaseSpeed),
		UpperDeadzone:     analogNormalize(cfg.UpperDeadzone),
		LowerDeadzone:     analogNormalize(cfg.LowerDeadzone),
		UpperBound:        cfg.UpperBound,
		LowerBound:        cfg.LowerBound,
	}
}

// AntiNormalizeAdvancedKeyConfig converts an on-wire config back into
// its runtime form. FilterDomain and EstimatedRange are left at their
// zero value; callers reapply build-time selections after this call.
func AntiNormalizeAdvancedKeyConfig(buf AdvancedKeyConfigNormalized) advancedkey.Config {
	return advancedkey.Config{
		Mode:              advancedkey.Mode(buf.Mode),
		CalibrationMode:   advancedkey.CalibrationMode(buf.CalibrationMode),
		ActivationValue:   analogAntiNormalize(buf.ActivationValue),
		DeactivationValue: analogAntiNormalize(buf.DeactivationValue),
		TriggerDistance:   analogAntiNormalize(buf.TriggerDistance),
		ReleaseDistance:   analogAntiNormalize(buf.ReleaseDistance),
		TriggerSpeed:      analogAntiNormalize(buf.TriggerSpeed),
		ReleaseSpeed:      analogAntiNormalize(buf.ReleaseSpeed),
		UpperDeadzone:     analogAntiNormalize(buf.UpperDeadzone),
		LowerDeadzone:     analogAntiNormalize(buf.LowerDeadzone),
		UpperBound:        buf.UpperBound,
		LowerBound:        buf.LowerBound,
	}
}

// StrokeNormalized is the on-wire mirror of a Stroke4x4 dynamic key.
// Transient runtime state (the live value, the per-binding active mask
// and end-times) is deliberately excluded: the source's own
// dynamic_key_stroke_normalize leaves that state out of the persisted
// buffer (its commented-out key_end_time memcpy shows the author's
// intent), since it has no meaning until the key starts moving again
// after load.
type StrokeNormalized struct {
	Binding              [4]keycode.Code    `json:"binding" yaml:"binding"`
	Control              [4][4]uint8        `json:"control" yaml:"control"`
	KeyID                uint16             `json:"key_id" yaml:"key_id"`
	PressBeginDistance   float64            `json:"press_begin_distance" yaml:"press_begin_distance"`
	PressFullyDistance   float64            `json:"press_fully_distance" yaml:"press_fully_distance"`
	ReleaseBeginDistance float64            `json:"release_begin_distance" yaml:"release_begin_distance"`
	ReleaseFullyDistance float64            `json:"release_fully_distance" yaml:"release_fully_distance"`
}

// NormalizeStroke converts a live Stroke4x4 into its on-wire form.
func NormalizeStroke(s *dynamickey.Stroke4x4) StrokeNormalized {
	var out StrokeNormalized
	out.Binding = s.Binding
	for point := 0; point < 4; point++ {
		for i := 0; i < 4; i++ {
			out.Control[point][i] = uint8(s.Control[point][i])
		}
	}
	out.KeyID = s.KeyID
	out.PressBeginDistance = analogNormalize(s.PressBeginDistance)
	out.PressFullyDistance = analogNormalize(s.PressFullyDistance)
	out.ReleaseBeginDistance = analogNormalize(s.ReleaseBeginDistance)
	out.ReleaseFullyDistance = analogNormalize(s.ReleaseFullyDistance)
	return out
}

// AntiNormalizeStroke reconstructs a Stroke4x4 from its on-wire form.
// Self must be supplied by the caller (it is derived from the key's
// table slot, not persisted).
func AntiNormalizeStroke(self keycode.Code, buf StrokeNormalized) *dynamickey.Stroke4x4 {
	s := &dynamickey.Stroke4x4{
		Self:                 self,
		KeyID:                buf.KeyID,
		Binding:              buf.Binding,
		PressBeginDistance:   analogAntiNormalize(buf.PressBeginDistance),
		PressFullyDistance:   analogAntiNormalize(buf.PressFullyDistance),
		ReleaseBeginDistance: analogAntiNormalize(buf.ReleaseBeginDistance),
		ReleaseFullyDistance: analogAntiNormalize(buf.ReleaseFullyDistance),
	}
	for point := 0; point < 4; point++ {
		for i := 0; i < 4; i++ {
			s.Control[point][i] = dynamickey.Control(buf.Control[point][i])
		}
	}
	return s
}

// Slot is one persisted configuration: every advanced key's config, the
// full keymap, and every Stroke4x4 dynamic key. ModTap/ToggleKey/
// MutexPair dynamic keys are not part of Slot, and nothing in this
// module persists them; they exist only in RAM.
type Slot struct {
	Version        int                           `json:"version" yaml:"version"`
	AdvancedKeys   []AdvancedKeyConfigNormalized `json:"advanced_keys" yaml:"advanced_keys"`
	Keymap         [][]keycode.Code              `json:"keymap" yaml:"keymap"`
	Strokes        []StrokeNormalized            `json:"strokes" yaml:"strokes"`
}

// Store owns the on-disk directory holding the config-index record and
// the NumSlots slot files.
type Store struct {
	dir string
}

// New constructs a Store rooted at dir. The directory is created lazily
// on first Save.
func New(dir string) *Store { return &Store{dir: dir} }

func (s *Store) indexPath() string     { return filepath.Join(s.dir, "config_index") }
func (s *Store) slotPath(n int) string { return filepath.Join(s.dir, fmt.Sprintf("config%d.json", n)) }

// ReadConfigIndex reads the active slot index, clamping an out-of-range
// value to 0 (matching storage_read_config_index's guard). A missing
// index file is treated as slot 0.
func (s *Store) ReadConfigIndex() int {
	data, err := os.ReadFile(s.indexPath())
	if err != nil || len(data) == 0 {
		return 0
	}
	n := int(data[0])
	if n < 0 || n >= NumSlots {
		return 0
	}
	return n
}

// SaveConfigIndex writes the active slot index atomically.
func (s *Store) SaveConfigIndex(index int) error {
	if index < 0 || index >= NumSlots {
		return fmt.Errorf("store: slot index %d out of range [0,%d)", index, NumSlots)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}
	return atomicWrite(s.indexPath(), []byte{byte(index)})
}

// LoadSlot reads and decodes slot n. A version mismatch returns
// ErrVersionMismatch so the caller can trigger a factory reset before
// its first read, per the source's mount contract; any other I/O error
// leaves the caller's previous in-RAM values untouched (the caller
// simply discards a failed LoadSlot's result).
func (s *Store) LoadSlot(n int) (*Slot, error) {
	data, err := os.ReadFile(s.slotPath(n))
	if err != nil {
		return nil, fmt.Errorf("store: read slot %d: %w", n, err)
	}
	var slot Slot
	if err := json.Unmarshal(data, &slot); err != nil {
		return nil, fmt.Errorf("store: decode slot %d: %w", n, err)
	}
	if slot.Version != FormatVersion {
		return nil, ErrVersionMismatch
	}
	return &slot, nil
}

// SaveSlot atomically writes slot n.
func (s *Store) SaveSlot(n int, slot *Slot) error {
	slot.Version = FormatVersion
	data, err := json.MarshalIndent(slot, "", "  ")
	if err != nil {
		return fmt.Errorf("store: encode slot %d: %w", n, err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("store: create dir: %w", err)
	}
	return atomicWrite(s.slotPath(n), data)
}

// ErrVersionMismatch is returned by LoadSlot when a persisted slot's
// format version does not match FormatVersion.
var ErrVersionMismatch = fmt.Errorf("store: slot format version mismatch")

func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("store: write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: rename temp file: %w", err)
	}
	return nil
}

// ExportYAML renders a Slot as human-editable YAML, for the calibration
// profile export path exposed over the local HTTP API.
func ExportYAML(slot *Slot) ([]byte, error) {
	data, err := yaml.Marshal(slot)
	if err != nil {
		return nil, fmt.Errorf("store: marshal yaml: %w", err)
	}
	return data, nil
}

// ImportYAML parses a human-edited YAML profile back into a Slot.
func ImportYAML(data []byte) (*Slot, error) {
	var slot Slot
	if err := yaml.Unmarshal(data, &slot); err != nil {
		return nil, fmt.Errorf("store: unmarshal yaml: %w", err)
	}
	return &slot, nil
}
