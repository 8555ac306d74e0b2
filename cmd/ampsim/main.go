// ampsim — a hotkey-driven simulator/demo binary.
//
// Registers one OS global hotkey per configured simulator binding and
// feeds each press/release into the tick loop as a synthetic digital
// extreme on one advanced key, so the whole core (trigger engine,
// dynamic keys, layer resolution, report composition) can be exercised
// from genuine OS key events without any real ADC hardware.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/HopIT-Hub/AmpCore/internal/advancedkey"
	"github.com/HopIT-Hub/AmpCore/internal/bootstrap"
	"github.com/HopIT-Hub/AmpCore/internal/hostconfig"
	"github.com/HopIT-Hub/AmpCore/internal/hotkey"
	"github.com/HopIT-Hub/AmpCore/internal/keyboard"
	"github.com/HopIT-Hub/AmpCore/internal/store"
)

func main() {
	log.SetFlags(log.Ltime)

	cfg, err := hostconfig.Load()
	if err != nil {
		log.Fatalf("[ampsim] config: %v", err)
	}

	storeDir, err := hostconfig.Dir()
	if err != nil {
		log.Fatalf("[ampsim] store dir: %v", err)
	}
	kb := bootstrap.BuildKeyboard(store.New(storeDir))

	rig := newSimRig(kb)
	defer rig.Close()

	for _, name := range sortedNames(cfg.SimHotkeyNames()) {
		hk, _ := cfg.GetSimHotkey(name)
		id, err := keyIDFromName(name)
		if err != nil {
			log.Printf("[ampsim] skipping %q: %v", name, err)
			continue
		}
		if err := rig.Bind(name, id, hk.Modifiers, hk.Key); err != nil {
			log.Printf("[ampsim] bind %q (%s): %v", name, hk.String(), err)
			continue
		}
		log.Printf("[ampsim] %s -> key %d bound to %s", name, id, hk.String())
	}

	kb.Transport = loggingTransport()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go runTickLoop(ctx, kb, cfg.GetPollingRateHz())

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("[ampsim] shutting down")
}

func sortedNames(names []string) []string {
	sort.Strings(names)
	return names
}

// keyIDFromName parses the "keyN" binding-name convention into an
// advanced-key id.
func keyIDFromName(name string) (uint16, error) {
	n, ok := strings.CutPrefix(name, "key")
	if !ok {
		return 0, fmt.Errorf("binding name must look like \"keyN\"")
	}
	id, err := strconv.Atoi(n)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid key index %q", n)
	}
	return uint16(id), nil
}

// simRig owns one hotkey.Manager per bound key and the shared raw-value
// table kb.ReadRaw reads from — the only cross-goroutine state, per the
// concurrency model's single-shared-atomics rule.
type simRig struct {
	kb      *keyboard.Keyboard
	raw     map[uint16]*atomic.Int32 // raw sample*1000: 1000 at rest, 0 fully pressed
	hotkeys []*hotkey.Manager
}

func newSimRig(kb *keyboard.Keyboard) *simRig {
	raw := make(map[uint16]*atomic.Int32, len(kb.AdvancedKeys))
	for _, k := range kb.AdvancedKeys {
		v := &atomic.Int32{}
		v.Store(int32(advancedkey.AnalogValueMax * 1000))
		raw[k.ID] = v
	}
	rig := &simRig{kb: kb, raw: raw}
	kb.ReadRaw = func(id uint16) float64 {
		v, ok := raw[id]
		if !ok {
			return advancedkey.AnalogValueMin
		}
		return float64(v.Load()) / 1000
	}
	return rig
}

// Bind registers a new OS hotkey that sets id's raw sample to
// AnalogValueMin on press and AnalogValueMax on release; under the
// default bounds (upper 1.0, lower 0.0) Normalize maps these to full
// travel and rest.
func (r *simRig) Bind(name string, id uint16, mods []string, key string) error {
	v, ok := r.raw[id]
	if !ok {
		return fmt.Errorf("no advanced key with id %d", id)
	}
	mgr := hotkey.NewManager(
		func() {
			v.Store(int32(advancedkey.AnalogValueMin * 1000))
			log.Printf("[ampsim] %s down", name)
		},
		func() {
			v.Store(int32(advancedkey.AnalogValueMax * 1000))
			log.Printf("[ampsim] %s up", name)
		},
	)
	if err := mgr.Register(mods, key); err != nil {
		return err
	}
	r.hotkeys = append(r.hotkeys, mgr)
	return nil
}

func (r *simRig) Close() {
	for _, mgr := range r.hotkeys {
		mgr.Unregister()
	}
}

// loggingTransport stands in for a real link: every send just logs,
// since the simulator's purpose is exercising the core, not HID
// hardware.
func loggingTransport() keyboard.Transport {
	return keyboard.Transport{
		SendKeyboard: func(report []byte) error { log.Printf("[ampsim] keyboard report % x", report); return nil },
		SendMouse:    func(report []byte) error { log.Printf("[ampsim] mouse report % x", report); return nil },
		SendConsumer: func(report []byte) error { log.Printf("[ampsim] consumer report % x", report); return nil },
		SendSystem:   func(report []byte) error { log.Printf("[ampsim] system report % x", report); return nil },
		SendJoystick: func(report []byte) error { log.Printf("[ampsim] joystick report % x", report); return nil },
	}
}

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
