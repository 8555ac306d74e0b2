//go:build linux

package hotkey

import "golang.design/x/hotkey"

// X11's Super/Mod4 is the analogue of "super" on linux.
var modMap = map[string]hotkey.Modifier{
	"ctrl":  hotkey.ModCtrl,
	"shift": hotkey.ModShift,
	"alt":   hotkey.ModAlt,
	"super": hotkey.Mod4,
}

var keyMap = baseKeyMap
