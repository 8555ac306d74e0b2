package hostconfig

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfigHasAPidCodesDeviceIdentity(t *testing.T) {
	cfg := DefaultConfig()
	vid, pid, _ := cfg.GetDevice()
	assert.Equal(t, uint16(0x1209), vid)
	assert.Equal(t, uint16(0x0001), pid)
	assert.NotEmpty(t, cfg.SimHotkeys)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := DefaultConfig()
	assert.NoError(t, cfg.SetDevice(0x1209, 0x0002, "abc123"))
	assert.NoError(t, cfg.SetPollingRateHz(500))
	assert.NoError(t, cfg.SetSimHotkey("key2", []string{"ctrl"}, "e"))

	loaded, err := Load()
	assert.NoError(t, err)
	vid, pid, serial := loaded.GetDevice()
	assert.Equal(t, uint16(0x1209), vid)
	assert.Equal(t, uint16(0x0002), pid)
	assert.Equal(t, "abc123", serial)
	assert.Equal(t, 500, loaded.GetPollingRateHz())

	hk, ok := loaded.GetSimHotkey("key2")
	assert.True(t, ok)
	assert.Equal(t, "e", hk.Key)
}

func TestLoadCreatesDefaultWhenMissing(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load()
	assert.NoError(t, err)
	assert.True(t, cfg.GetTrayEnabled())
}

func TestHotkeyConfigString(t *testing.T) {
	hk := HotkeyConfig{Modifiers: []string{"ctrl", "alt"}, Key: "r"}
	assert.Equal(t, "Ctrl+Alt+R", hk.String())

	hkF := HotkeyConfig{Modifiers: []string{"ctrl"}, Key: "f5"}
	assert.Equal(t, "Ctrl+f5", hkF.String())
}
