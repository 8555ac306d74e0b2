// Package device manages the USB link to the keyboard's HID accessory
// interface. It auto-detects the device when plugged in, reconnects on
// disconnect, and wires the core's Transport hooks to the link once
// every report sink is registered.
package device

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/gousb"

	"github.com/HopIT-Hub/AmpCore/internal/keyboard"
	"github.com/HopIT-Hub/AmpCore/internal/transport/hid"
)

// State represents the current device-link state.
type State int

const (
	Disconnected State = iota
	Connected
	Suspended
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Suspended:
		return "suspended"
	default:
		return "unknown"
	}
}

// sinks lists every report descriptor a bridged core needs registered
// before its Transport is wired in. NKRO is always registered too, even
// when the core currently has NKRO off: Config.NKRO can flip at runtime
// via a raw config packet, and hid.Device.Transport's SendKeyboard hook
// picks between 6KRO/NKRO purely from payload length, so both
// descriptors must already exist.
var sinks = []hid.Descriptor{hid.DescKeyboard, hid.DescNKRO, hid.DescMouse, hid.DescConsumer, hid.DescSystem, hid.DescJoystick}

// Manager handles the keyboard accessory's USB link lifecycle: connect
// detection, health polling, reconnect, and wiring the live link's
// Transport into the core on every (re)connect.
type Manager struct {
	mu       sync.Mutex
	dev      *hid.Device
	state    State
	onChange func(State)

	kb        *keyboard.Keyboard
	serial    string
	vendorID  gousb.ID
	productID gousb.ID
}

// NewManager creates a Manager that bridges kb's Transport hooks to
// whichever matching accessory device it can find. onChange is called
// whenever the link state changes.
func NewManager(kb *keyboard.Keyboard, vendorID, productID gousb.ID, serial string, onChange func(State)) *Manager {
	return &Manager{
		state:     Disconnected,
		onChange:  onChange,
		kb:        kb,
		serial:    serial,
		vendorID:  vendorID,
		productID: productID,
	}
}

// State returns the current link state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Run starts the auto-detection loop: it polls for the accessory every
// 2 seconds when disconnected, and health-checks an active link on the
// same cadence. Blocks until ctx is cancelled.
func (m *Manager) Run(ctx context.Context) {
	poll := time.NewTicker(2 * time.Second)
	defer poll.Stop()

	m.tryConnect()

	for {
		select {
		case <-ctx.Done():
			return
		case <-poll.C:
			m.mu.Lock()
			state := m.state
			m.mu.Unlock()

			if state == Disconnected {
				m.tryConnect()
			} else {
				m.healthCheck()
			}
		}
	}
}

// tryConnect opens the accessory device, registers every report sink,
// and wires the resulting Transport into the bridged core.
func (m *Manager) tryConnect() {
	dev, err := hid.Open(m.vendorID, m.productID, m.serial)
	if err != nil {
		return // device not found, will retry
	}

	for _, d := range sinks {
		if regErr := dev.Register(d); regErr != nil {
			log.Printf("[device] %v register failed: %v", d, regErr)
			dev.Close()
			return
		}
	}

	m.mu.Lock()
	m.dev = dev
	m.state = Connected
	if m.kb != nil {
		m.kb.Transport = dev.Transport()
		m.kb.Suspend = false
	}
	m.mu.Unlock()

	log.Println("[device] keyboard link connected")
	if m.onChange != nil {
		m.onChange(Connected)
	}
}

// healthCheck verifies the link is still alive.
func (m *Manager) healthCheck() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev == nil {
		return
	}

	if err := m.dev.Ping(); err != nil {
		log.Printf("[device] keyboard link disconnected: %v", err)
		m.dev.Close()
		m.dev = nil
		m.state = Disconnected
		if m.kb != nil {
			m.kb.Transport = keyboard.Transport{}
		}
		if m.onChange != nil {
			m.onChange(Disconnected)
		}
	}
}

// Suspend marks the link suspended (host put the bus to sleep) without
// tearing the connection down: the core stops composing reports
// (Keyboard.Suspend) but the USB handle stays open for a remote wakeup.
func (m *Manager) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return
	}
	m.state = Suspended
	if m.kb != nil {
		m.kb.Suspend = true
	}
	if m.onChange != nil {
		m.onChange(Suspended)
	}
}

// Resume asks the host to wake the bus (if a remote-wakeup-capable link
// is suspended) and resumes normal report composition.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dev == nil {
		return nil
	}
	err := m.dev.RemoteWakeup()
	m.state = Connected
	if m.kb != nil {
		m.kb.Suspend = false
	}
	if m.onChange != nil {
		m.onChange(Connected)
	}
	return err
}

// Close shuts the link down cleanly.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dev != nil {
		m.dev.Close()
		m.dev = nil
	}
	m.state = Disconnected
	if m.kb != nil {
		m.kb.Transport = keyboard.Transport{}
	}
}
