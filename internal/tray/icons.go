package tray

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

// solidIcon renders a flat-color square PNG at init time instead of
// embedding a binary asset, so the tray icon set has no external file
// dependency. systray.SetIcon accepts raw PNG bytes on every platform
// this module targets.
func solidIcon(c color.RGBA) []byte {
	const size = 16
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("tray: encode built-in icon: " + err.Error())
	}
	return buf.Bytes()
}

var (
	// IconDisconnected is grey: no accessory link.
	IconDisconnected = solidIcon(color.RGBA{R: 120, G: 120, B: 120, A: 255})
	// IconConnected is green: link up, reports flowing.
	IconConnected = solidIcon(color.RGBA{R: 40, G: 180, B: 80, A: 255})
	// IconSuspended is amber: link up but the host has suspended the bus.
	IconSuspended = solidIcon(color.RGBA{R: 220, G: 160, B: 30, A: 255})
)
