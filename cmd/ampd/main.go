// ampd — AmpCore bridge daemon.
//
// Wires a running keyboard core to a real USB HID accessory link,
// exposes a local calibration/status HTTP API, and shows a system-tray
// icon reflecting the link's connection state.
package main

import (
	"context"
	"log"
	"os/exec"
	"runtime"
	"time"

	"github.com/google/gousb"

	"github.com/HopIT-Hub/AmpCore/internal/autostart"
	"github.com/HopIT-Hub/AmpCore/internal/bootstrap"
	"github.com/HopIT-Hub/AmpCore/internal/device"
	"github.com/HopIT-Hub/AmpCore/internal/hostconfig"
	"github.com/HopIT-Hub/AmpCore/internal/keyboard"
	"github.com/HopIT-Hub/AmpCore/internal/server"
	"github.com/HopIT-Hub/AmpCore/internal/store"
	"github.com/HopIT-Hub/AmpCore/internal/tray"
)

var version = "dev"

func main() {
	log.SetFlags(log.Ltime)

	cfg, err := hostconfig.Load()
	if err != nil {
		log.Fatalf("[ampd] config: %v", err)
	}

	storeDir, err := hostconfig.Dir()
	if err != nil {
		log.Fatalf("[ampd] store dir: %v", err)
	}
	st := store.New(storeDir)

	kb := bootstrap.BuildKeyboard(st)

	ctx, cancel := context.WithCancel(context.Background())

	vid, pid, serial := cfg.GetDevice()
	devMgr := device.NewManager(kb, gousb.ID(vid), gousb.ID(pid), serial, func(state device.State) {
		tray.SetState(state)
		log.Printf("[ampd] device: %s", state)
	})

	srv := server.New(devMgr, kb, st, cfg, version)

	tray.Run(tray.RunOpts{
		Version:          version,
		AutoStartEnabled: cfg.GetAutoStart(),

		OnReady: func() {
			go devMgr.Run(ctx)
			go runTickLoop(ctx, kb, cfg.GetPollingRateHz())

			if _, err := srv.Start(); err != nil {
				log.Printf("[ampd] calibration server: %v", err)
			}

			log.Printf("[ampd] ready (version %s)", version)
		},

		OnSettings: func() {
			url := srv.URL()
			if url == "" {
				log.Println("[ampd] calibration server not running")
				return
			}
			openBrowser(url)
		},

		OnAutoStart: func(enabled bool) {
			if enabled {
				if err := autostart.Enable(); err != nil {
					log.Printf("[ampd] enable autostart: %v", err)
					return
				}
			} else {
				if err := autostart.Disable(); err != nil {
					log.Printf("[ampd] disable autostart: %v", err)
					return
				}
			}
			if err := cfg.SetAutoStart(enabled); err != nil {
				log.Printf("[ampd] save autostart config: %v", err)
			}
			log.Printf("[ampd] auto-start: %v", enabled)
		},

		OnQuit: func() {
			cancel()
			devMgr.Close()
			srv.Stop()
		},
	})
}

// runTickLoop drives the core at the configured polling rate until ctx
// is cancelled.
func runTickLoop(ctx context.Context, kb *keyboard.Keyboard, hz int) {
	if hz <= 0 {
		hz = 1000
	}
	t := time.NewTicker(time.Second / time.Duration(hz))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			kb.Tick()
		}
	}
}

func openBrowser(url string) {
	var cmd string
	var args []string

	switch runtime.GOOS {
	case "darwin":
		cmd = "open"
		args = []string{url}
	case "windows":
		cmd = "cmd"
		args = []string{"/c", "start", url}
	default: // linux, bsd
		cmd = "xdg-open"
		args = []string{url}
	}

	if err := exec.Command(cmd, args...).Start(); err != nil {
		log.Printf("[ampd] open browser: %v", err)
	}
}
