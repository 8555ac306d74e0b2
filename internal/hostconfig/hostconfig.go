// Package hostconfig handles loading and saving the bridge daemon's
// own configuration: which USB accessory to bind, the simulator's
// hotkey bindings, and autostart/tray preferences. It holds no
// keyboard state — per-key calibration and keymap data live in
// internal/store instead.
package hostconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Config holds the bridge daemon's configuration.
type Config struct {
	mu sync.RWMutex `json:"-"`

	VendorID  uint16 `json:"vendor_id"`
	ProductID uint16 `json:"product_id"`
	Serial    string `json:"serial"`

	PollingRateHz int  `json:"polling_rate_hz"`
	AutoStart     bool `json:"auto_start"`
	TrayEnabled   bool `json:"tray_enabled"`

	SimHotkeys map[string]HotkeyConfig `json:"sim_hotkeys"`
}

// HotkeyConfig defines a global hotkey binding.
type HotkeyConfig struct {
	Modifiers []string `json:"modifiers"` // "ctrl", "shift", "alt", "super"
	Key       string   `json:"key"`       // "r", "space", "f5", etc.
}

// String returns a human-readable representation like "Ctrl+Alt+R".
func (h HotkeyConfig) String() string {
	s := ""
	for _, m := range h.Modifiers {
		switch m {
		case "ctrl":
			s += "Ctrl+"
		case "shift":
			s += "Shift+"
		case "alt":
			s += "Alt+"
		case "super":
			s += "Super+"
		}
	}
	if len(h.Key) == 1 {
		s += string(h.Key[0] - 32) // uppercase single letter
	} else {
		s += h.Key
	}
	return s
}

// DefaultConfig returns the default configuration: the pid.codes
// test-allocation VID/PID internal/transport/hid opens by default, and
// a handful of sample key bindings for the simulator (rig keys "q" and
// "w" to two test positions) so cmd/ampsim has something to press on
// first run.
func DefaultConfig() *Config {
	return &Config{
		VendorID:      0x1209,
		ProductID:     0x0001,
		PollingRateHz: 1000,
		TrayEnabled:   true,
		SimHotkeys: map[string]HotkeyConfig{
			"key0": {Modifiers: []string{"ctrl", "alt"}, Key: "q"},
			"key1": {Modifiers: []string{"ctrl", "alt"}, Key: "w"},
		},
	}
}

// Dir returns the OS-appropriate config directory for ampd.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(base, "ampcore"), nil
}

// Path returns the full path to the config file.
func Path() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "ampd.json"), nil
}

// Load reads the config from disk. If the file doesn't exist, it
// creates a default config and saves it.
func Load() (*Config, error) {
	p, err := Path()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if os.IsNotExist(err) {
		cfg := DefaultConfig()
		if saveErr := cfg.Save(); saveErr != nil {
			return nil, fmt.Errorf("create default config: %w", saveErr)
		}
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig() // start with defaults so new fields get populated
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to disk atomically (write temp, rename).
func (c *Config) Save() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	p, err := Path()
	if err != nil {
		return err
	}

	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, p); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// GetDevice returns the configured USB accessory identity.
func (c *Config) GetDevice() (vendorID, productID uint16, serial string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.VendorID, c.ProductID, c.Serial
}

// SetDevice updates the USB accessory identity and saves to disk.
func (c *Config) SetDevice(vendorID, productID uint16, serial string) error {
	c.mu.Lock()
	c.VendorID, c.ProductID, c.Serial = vendorID, productID, serial
	c.mu.Unlock()
	return c.Save()
}

// GetSimHotkey returns a copy of the binding registered under name.
func (c *Config) GetSimHotkey(name string) (HotkeyConfig, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	hk, ok := c.SimHotkeys[name]
	return hk, ok
}

// SetSimHotkey binds name to a hotkey and saves to disk.
func (c *Config) SetSimHotkey(name string, mods []string, key string) error {
	c.mu.Lock()
	if c.SimHotkeys == nil {
		c.SimHotkeys = map[string]HotkeyConfig{}
	}
	c.SimHotkeys[name] = HotkeyConfig{Modifiers: mods, Key: key}
	c.mu.Unlock()
	return c.Save()
}

// SimHotkeyNames returns every currently bound simulator key name.
func (c *Config) SimHotkeyNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.SimHotkeys))
	for name := range c.SimHotkeys {
		names = append(names, name)
	}
	return names
}

// GetAutoStart returns the current auto-start setting.
func (c *Config) GetAutoStart() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AutoStart
}

// SetAutoStart updates the auto-start setting and saves to disk.
func (c *Config) SetAutoStart(enabled bool) error {
	c.mu.Lock()
	c.AutoStart = enabled
	c.mu.Unlock()
	return c.Save()
}

// GetPollingRateHz returns the configured tick rate.
func (c *Config) GetPollingRateHz() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.PollingRateHz
}

// SetPollingRateHz updates the tick rate and saves to disk.
func (c *Config) SetPollingRateHz(hz int) error {
	c.mu.Lock()
	c.PollingRateHz = hz
	c.mu.Unlock()
	return c.Save()
}

// GetTrayEnabled returns whether the tray icon should be shown.
func (c *Config) GetTrayEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.TrayEnabled
}

// SetTrayEnabled updates tray enablement and saves to disk.
func (c *Config) SetTrayEnabled(enabled bool) error {
	c.mu.Lock()
	c.TrayEnabled = enabled
	c.mu.Unlock()
	return c.Save()
}
