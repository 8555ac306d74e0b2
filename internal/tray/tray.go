// Package tray manages the system tray icon and menu for the bridge
// daemon, reflecting the keyboard accessory's connection state.
package tray

import (
	"strings"

	"github.com/HopIT-Hub/AmpCore/internal/device"

	"fyne.io/systray"
)

// RunOpts configures the system tray.
type RunOpts struct {
	Version          string // app version string (e.g., "1.0.0")
	AutoStartEnabled bool   // initial state of "Start on Login" checkbox
	OnReady          func()
	OnSettings       func()
	OnAutoStart      func(enabled bool) // called when user toggles auto-start
	OnQuit           func()
}

// Run starts the system tray. It blocks on the main thread.
func Run(opts RunOpts) {
	systray.Run(func() {
		systray.SetIcon(IconDisconnected)
		systray.SetTitle("")
		systray.SetTooltip("AmpCore — No device")

		// Version label (disabled — just informational)
		versionLabel := "AmpCore"
		if opts.Version != "" && opts.Version != "dev" {
			versionLabel += " v" + strings.TrimPrefix(opts.Version, "v")
		}
		mVersion := systray.AddMenuItem(versionLabel, "")
		mVersion.Disable()

		systray.AddSeparator()

		mSettings := systray.AddMenuItem("Settings...", "Open calibration page")
		mAutoStart := systray.AddMenuItemCheckbox("Start on Login", "Launch automatically on login", opts.AutoStartEnabled)

		systray.AddSeparator()

		mStatus := systray.AddMenuItem("Status: Disconnected", "")
		mStatus.Disable()

		systray.AddSeparator()

		mQuit := systray.AddMenuItem("Quit", "Exit AmpCore")

		// Store status item for updates
		statusItem = mStatus

		if opts.OnReady != nil {
			opts.OnReady()
		}

		go func() {
			for {
				select {
				case <-mSettings.ClickedCh:
					if opts.OnSettings != nil {
						opts.OnSettings()
					}
				case <-mAutoStart.ClickedCh:
					if mAutoStart.Checked() {
						mAutoStart.Uncheck()
						if opts.OnAutoStart != nil {
							opts.OnAutoStart(false)
						}
					} else {
						mAutoStart.Check()
						if opts.OnAutoStart != nil {
							opts.OnAutoStart(true)
						}
					}
				case <-mQuit.ClickedCh:
					if opts.OnQuit != nil {
						opts.OnQuit()
					}
					systray.Quit()
				}
			}
		}()
	}, func() {
		// cleanup on systray exit
	})
}

var statusItem *systray.MenuItem

// SetState updates the tray icon and tooltip based on the accessory
// link's current state.
func SetState(state device.State) {
	switch state {
	case device.Disconnected:
		systray.SetIcon(IconDisconnected)
		systray.SetTooltip("AmpCore — No device")
		if statusItem != nil {
			statusItem.SetTitle("Status: Disconnected")
		}
	case device.Connected:
		systray.SetIcon(IconConnected)
		systray.SetTooltip("AmpCore — Connected")
		if statusItem != nil {
			statusItem.SetTitle("Status: Connected")
		}
	case device.Suspended:
		systray.SetIcon(IconSuspended)
		systray.SetTooltip("AmpCore — Suspended")
		if statusItem != nil {
			statusItem.SetTitle("Status: Suspended")
		}
	}
}

// Quit stops the system tray.
func Quit() {
	systray.Quit()
}
