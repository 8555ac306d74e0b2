//go:build darwin

package hotkey

import "golang.design/x/hotkey"

// modMap and keyMap resolve the config-file modifier/key names used by
// HotkeyConfig into this platform's golang.design/x/hotkey constants.
// darwin has no literal "super"; Cmd is the closest analogue a user
// reaches for when they type "super" in a binding.
var modMap = map[string]hotkey.Modifier{
	"ctrl":  hotkey.ModCtrl,
	"shift": hotkey.ModShift,
	"alt":   hotkey.ModOption,
	"super": hotkey.ModCmd,
}

var keyMap = baseKeyMap
